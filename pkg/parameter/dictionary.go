package parameter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"emsgateway/pkg/utils/hexutil"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var integerLiteral = regexp.MustCompile(`^-?\d+$`)

// Persister stores the whole dictionary.
type Persister interface {
	Load() (map[uint8]string, error)
	Save(values map[uint8]string) error
}

// Dictionary holds the collector level parameters, indexed 0-255.
type Dictionary struct {
	mu        sync.RWMutex
	values    map[uint8]string
	persister Persister
}

func NewDictionary(p Persister) *Dictionary {
	return &Dictionary{
		values:    make(map[uint8]string),
		persister: p,
	}
}

// Init loads the persisted dictionary.
func (d *Dictionary) Init() error {
	if d.persister == nil {
		return nil
	}
	values, err := d.persister.Load()
	if err != nil {
		return errors.Wrap(err, "load parameters")
	}
	d.Load(values)
	klog.V(2).InfoS("Loaded parameters", "count", len(values))
	return nil
}

// Load replaces the dictionary content without persisting it.
func (d *Dictionary) Load(values map[uint8]string) {
	m := make(map[uint8]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	d.mu.Lock()
	d.values = m
	d.mu.Unlock()
}

func (d *Dictionary) Get(key uint8) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// Set overwrites one key and persists the dictionary.
func (d *Dictionary) Set(key uint8, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
	return d.save()
}

func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}

func (d *Dictionary) Snapshot() map[uint8]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m := make(map[uint8]string, len(d.values))
	for k, v := range d.values {
		m[k] = v
	}
	return m
}

// Encode serializes the entries named in filter, or all entries when filter
// is nil, as key(2B) len(2B) value tuples in ascending key order. Unknown
// keys in filter are skipped.
func (d *Dictionary) Encode(filter []uint8) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var wanted map[uint8]struct{}
	if filter != nil {
		wanted = make(map[uint8]struct{}, len(filter))
		for _, k := range filter {
			wanted[k] = struct{}{}
		}
	}

	keys := make([]int, 0, len(d.values))
	for k := range d.values {
		if wanted != nil {
			if _, ok := wanted[k]; !ok {
				continue
			}
		}
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := ValueHex(d.values[uint8(k)])
		fmt.Fprintf(&sb, "%04x%04x%s", k, len(v)/2, v)
	}
	return sb.String()
}

// Value returns the encoded value of one key.
func (d *Dictionary) Value(key uint8) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	return ValueHex(v), true
}

// RuntimeInfo renders the collector's own report block.
func (d *Dictionary) RuntimeInfo(collectorSerial string) string {
	return hexutil.SerialField(collectorSerial) + fmt.Sprintf("%04X", d.Len()) + "00" + d.Encode(nil)
}

// SetSystemTime records now as the collector's system time.
func (d *Dictionary) SetSystemTime(now time.Time) error {
	return d.Set(KeySystemTime, now.Format(systemTimeLayout))
}

// Patch applies a JSON merge patch to the dictionary. Keys are decimal
// strings, a null value removes the key.
func (d *Dictionary) Patch(patch []byte) (map[uint8]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	original, err := json.Marshal(d.values)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err = json.Unmarshal(merged, &raw); err != nil {
		return nil, err
	}
	values := make(map[uint8]string, len(raw))
	for k, v := range raw {
		key, err := strconv.ParseUint(k, 10, 8)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, k)
		}
		s, ok := v.(string)
		if !ok {
			return nil, errors.Wrap(ErrInvalidValue, k)
		}
		values[uint8(key)] = s
	}

	old := d.values
	d.values = values
	if err = d.save(); err != nil {
		d.values = old
		return nil, err
	}

	snapshot := make(map[uint8]string, len(values))
	for k, v := range values {
		snapshot[k] = v
	}
	return snapshot, nil
}

func (d *Dictionary) save() error {
	if d.persister == nil {
		return nil
	}
	if err := d.persister.Save(d.values); err != nil {
		klog.V(2).InfoS("Failed to persist parameters", "err", err)
		return err
	}
	return nil
}

// ValueHex encodes a parameter value. Integer literals that fit in 32 bits
// are written as their hex value, negative ones in two's complement. Any
// other value is written as the hex of its bytes.
func ValueHex(value string) string {
	var v string
	if integerLiteral.MatchString(value) {
		if n, err := strconv.ParseInt(value, 10, 32); err == nil {
			v = strconv.FormatUint(uint64(uint32(int32(n))), 16)
		}
	}
	if len(v) == 0 {
		v = hexutil.FromASCII(value)
	}
	if len(v)%2 != 0 {
		v = "0" + v
	}
	return v
}
