package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"emsgateway/pkg/apis"
	"emsgateway/pkg/runtime"
	"emsgateway/pkg/utils/fileutil"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// FsClient keeps one json document per key below <root>/<group>.
type FsClient struct {
	storePath string
}

var _ Storage = (*FsClient)(nil)

func NewFsClient(root string, sg StoreGroup) (*FsClient, error) {
	fc := &FsClient{}
	if err := fc.Init(root, sg); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FsClient) Init(root string, sg StoreGroup) error {
	if len(root) == 0 {
		root = DefaultStorePath
	}

	var dirs []string
	switch sg {
	case StoreGroupDevice:
		dirs = []string{Devices}
	case StoreGroupParameter:
		dirs = []string{Parameters}
	case StoreGroupGateway:
		dirs = []string{""}
	default:
		return errors.Errorf("unsupported store group %d", sg)
	}

	fc.storePath = filepath.Join(root, StoreGroupToString[sg])

	for _, m := range dirs {
		p := filepath.Join(fc.storePath, m)

		_, err := os.Stat(p)
		if os.IsNotExist(err) {
			absPath, _ := filepath.Abs(p)
			klog.V(2).InfoS("Created", "path", absPath)
			if err = os.MkdirAll(p, 0711); err != nil {
				return errors.Wrapf(err, "create store dir %s", p)
			}
		} else if err != nil {
			return errors.Wrapf(err, "stat store dir %s", p)
		}
	}
	return nil
}

func (fc *FsClient) Create(key string, obj interface{}) (interface{}, error) {
	f, err := os.OpenFile(filepath.Join(fc.storePath, key), os.O_CREATE|os.O_RDWR|os.O_EXCL, 0640)
	if err != nil {
		klog.V(2).InfoS("Failed to create file", "err", err)
		return nil, err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(obj)
	if err != nil {
		klog.V(2).InfoS("Failed to encode", "err", err)
		return nil, err
	}
	return obj, nil
}

func (fc *FsClient) Get(key string) (interface{}, error) {
	data, err := os.ReadFile(filepath.Join(fc.storePath, key))
	if err != nil {
		klog.V(2).InfoS("Failed to read", "err", err)
		return nil, err
	}
	return data, nil
}

func (fc *FsClient) List(key string) (interface{}, error) {
	var files []*FileInfo
	err := filepath.Walk(filepath.Join(fc.storePath, key), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, &FileInfo{
				Path:    path,
				ModTime: info.ModTime(),
			})
		}
		return nil
	})
	if err != nil {
		klog.V(2).InfoS("Failed to list", "err", err)
	}
	return files, nil
}

// Put overwrites key unconditionally under an exclusive lock.
func (fc *FsClient) Put(key string, obj interface{}) error {
	f, release, err := fc.openLocked(key, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return err
	}
	defer release()
	return rewrite(f, obj)
}

func (fc *FsClient) Delete(key, version string) (interface{}, error) {
	path := filepath.Join(fc.storePath, key)
	// version is not required when cascading delete
	if len(version) == 0 {
		c, cancel := context.WithCancel(context.Background())
		wait.UntilWithContext(c, func(ctx context.Context) {
			if err := os.Remove(path); !isEphemeralError(err) {
				if err != nil {
					klog.V(5).InfoS("Failed to remove file", "key", key, "err", err)
				}
				cancel()
			}
		}, 10*time.Millisecond)
		return nil, nil
	}

	f, release, err := fc.openLocked(key, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer release()

	if err = checkVersion(f, version); err != nil {
		return nil, err
	}
	if err = os.Remove(path); err != nil {
		klog.V(2).InfoS("Failed to remove", "key", key, "err", err)
		return nil, apis.ErrInternal
	}
	return nil, nil
}

// Update replaces key when its stored version equals version and bumps the
// version of obj.
func (fc *FsClient) Update(key, version string, obj interface{}) (interface{}, error) {
	f, release, err := fc.openLocked(key, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	defer release()

	if err = checkVersion(f, version); err != nil {
		return nil, err
	}
	ver, _ := strconv.ParseUint(version, 10, 64)
	accessor, err := runtime.Accessor(obj)
	if err != nil {
		klog.V(2).InfoS("Failed to get accessor", "key", key, "err", err)
		return nil, apis.ErrInternal
	}
	accessor.SetVersion(strconv.FormatUint(ver+1, 10))
	accessor.SetModTime(time.Now())

	if err = rewrite(f, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// openLocked opens key with an exclusive lock, release unlocks and closes it.
func (fc *FsClient) openLocked(key string, flag int) (*os.File, func(), error) {
	f, err := os.OpenFile(filepath.Join(fc.storePath, key), flag, 0640)
	if err != nil {
		klog.V(2).InfoS("Failed to open file", "key", key, "err", err)
		switch {
		case os.IsNotExist(err):
			return nil, nil, os.ErrNotExist
		case isEphemeralError(err):
			return nil, nil, apis.ErrWriteConflict
		default:
			return nil, nil, apis.ErrInternal
		}
	}
	lock, err := fileutil.NewLock(f)
	if err != nil {
		klog.V(2).InfoS("Failed to lock", "key", key, "err", err)
		_ = f.Close()
		return nil, nil, apis.ErrWriteConflict
	}
	return f, func() {
		lock.Release()
		_ = f.Close()
	}, nil
}

func checkVersion(f *os.File, version string) error {
	var stored runtime.ObjectMeta
	if err := json.NewDecoder(f).Decode(&stored); err != nil {
		klog.V(2).InfoS("Failed to unmarshal", "file", f.Name(), "err", err)
		return apis.ErrInternal
	}
	if stored.Version != version {
		return apis.ErrMismatch
	}
	return nil
}

func rewrite(f *os.File, obj interface{}) error {
	if err := f.Truncate(0); err != nil {
		klog.V(2).InfoS("Failed to truncate", "err", err)
		return apis.ErrInternal
	}
	if _, err := f.Seek(0, 0); err != nil {
		klog.V(2).InfoS("Failed to seek", "err", err)
		return apis.ErrInternal
	}
	if err := json.NewEncoder(f).Encode(obj); err != nil {
		klog.V(2).InfoS("Failed to marshal", "err", err)
		return apis.ErrInternal
	}
	return nil
}
