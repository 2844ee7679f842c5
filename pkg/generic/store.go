package generic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"emsgateway/pkg/runtime"
	"emsgateway/pkg/storage"
	"k8s.io/klog/v2"
)

// Store persists objects of one resource as <resource>/<id>.json.
type Store[T runtime.Object] struct {
	Resource  string
	newObject func() T
	client    storage.Storage
}

func NewStore[T runtime.Object](client storage.Storage, resource string, newObject func() T) *Store[T] {
	return &Store[T]{
		Resource:  resource,
		newObject: newObject,
		client:    client,
	}
}

func (s *Store[T]) key(obj T) string {
	return filepath.Join(s.Resource, fmt.Sprintf("%s.json", obj.GetID()))
}

func (s *Store[T]) Create(obj T) (save T, returnErr error) {
	if saved, err := s.client.Create(s.key(obj), obj); err == nil {
		save = saved.(T)
	} else {
		returnErr = err
	}
	return
}

func (s *Store[T]) Update(obj T) (update T, returnErr error) {
	if updated, err := s.client.Update(s.key(obj), obj.GetVersion(), obj); err == nil {
		update = updated.(T)
	} else {
		returnErr = err
	}
	return
}

func (s *Store[T]) Delete(obj T) (delete T, returnErr error) {
	if _, err := s.client.Delete(s.key(obj), obj.GetVersion()); err == nil {
		delete = obj
	} else {
		returnErr = err
	}
	return
}

func (s *Store[T]) LoadResource() ([]T, error) {
	objs, err := s.client.List(s.Resource)
	if err != nil {
		return nil, err
	}

	var ret []T
	if files, ok := objs.([]*storage.FileInfo); ok {
		for _, file := range files {
			func() {
				obj := s.newObject()
				f, err := os.Open(file.Path)
				if err != nil {
					klog.V(2).InfoS("Failed to open", "file", file.Path, "resource", s.Resource, "err", err)
					return
				}
				defer f.Close()
				if err = json.NewDecoder(f).Decode(obj); err != nil {
					klog.V(3).InfoS("Failed to unmarshal", "file", file.Path, "resource", s.Resource, "err", err)
					return
				}
				ret = append(ret, obj)
			}()
		}
	}
	return ret, nil
}
