package device

import (
	"context"
	"sort"
	"sync"

	"emsgateway/pkg/generic"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CommandDevice is a device reachable over its own channel.
type CommandDevice interface {
	SendAndReceive(ctx context.Context, hexFrame string) (string, error)
}

type Option func(*Manager)

func WithMessenger(open NewMessenger) Option {
	return func(m *Manager) {
		m.openMessenger = open
	}
}

// Manager is the device registry, keyed by serial number.
type Manager struct {
	mu            sync.RWMutex
	devices       map[string]*Device
	locks         map[string]*sync.Mutex
	store         *generic.Store[*Device]
	openMessenger NewMessenger
}

func NewManager(store *generic.Store[*Device], opts ...Option) *Manager {
	m := &Manager{
		devices:       make(map[string]*Device),
		locks:         make(map[string]*sync.Mutex),
		store:         store,
		openMessenger: OpenMessenger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads persisted devices.
func (m *Manager) Init() error {
	if m.store == nil {
		return nil
	}
	devices, err := m.store.LoadResource()
	if err != nil {
		return errors.Wrap(err, "load devices")
	}
	for _, d := range devices {
		if err := d.Validate(); err != nil {
			klog.V(2).InfoS("Skipped invalid persisted device", "device", d.Serial, "err", err)
			continue
		}
		m.put(d)
	}
	klog.V(2).InfoS("Loaded devices", "count", len(devices))
	return nil
}

// Register adds or replaces a device and persists it.
func (m *Manager) Register(d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if len(d.ID) == 0 {
		d.ID = d.Serial
	}
	if len(d.Version) == 0 {
		d.Version = "1"
	}

	if m.store != nil {
		old, exist := m.Lookup(d.Serial)
		var err error
		if exist {
			d.Version = old.Version
			_, err = m.store.Update(d)
		} else {
			_, err = m.store.Create(d)
		}
		if err != nil {
			klog.V(2).InfoS("Failed to store device", "device", d.Serial, "err", err)
			return err
		}
	}
	m.put(d)
	klog.V(2).InfoS("Registered device", "device", d.String(), "transport", d.Transport.Type)
	return nil
}

// Remove drops a device, its children keep their ParentSerial.
func (m *Manager) Remove(serial string) (*Device, error) {
	d, ok := m.Lookup(serial)
	if !ok {
		return nil, ErrUnknownDevice
	}
	if m.store != nil {
		if _, err := m.store.Delete(d); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	delete(m.devices, serial)
	delete(m.locks, serial)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) Lookup(serial string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[serial]
	return d, ok
}

// List returns all devices ordered by serial.
func (m *Manager) List() []*Device {
	m.mu.RLock()
	ds := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		ds = append(ds, d)
	}
	m.mu.RUnlock()
	sort.Slice(ds, func(i, j int) bool { return ds[i].Serial < ds[j].Serial })
	return ds
}

func (m *Manager) Children(parentSerial string) []*Device {
	var ds []*Device
	for _, d := range m.List() {
		if d.ParentSerial == parentSerial {
			ds = append(ds, d)
		}
	}
	return ds
}

// FirstOfKind returns the device of a kind with the lowest serial.
func (m *Manager) FirstOfKind(kind Kind) (*Device, bool) {
	for _, d := range m.List() {
		if d.Kind == kind {
			return d, true
		}
	}
	return nil, false
}

// CommandDevice resolves serial to a device with its own channel.
func (m *Manager) CommandDevice(serial string) (CommandDevice, bool) {
	m.mu.RLock()
	d, ok := m.devices[serial]
	lock := m.locks[serial]
	m.mu.RUnlock()
	if !ok || lock == nil || !d.IsCommandDevice() {
		return nil, false
	}
	return &commandDevice{device: d, lock: lock, open: m.openMessenger}, true
}

func (m *Manager) put(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.Serial] = d
	if _, ok := m.locks[d.Serial]; !ok {
		m.locks[d.Serial] = &sync.Mutex{}
	}
}

// Decode builds devices from loosely typed configuration entries.
func Decode(raw []map[string]interface{}) ([]*Device, error) {
	ds := make([]*Device, 0, len(raw))
	for i, item := range raw {
		d := &Device{}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
			Result:     d,
		})
		if err != nil {
			return nil, err
		}
		if err = decoder.Decode(item); err != nil {
			return nil, errors.Wrapf(err, "devices[%d]", i)
		}
		if len(d.Name) == 0 {
			d.Name = string(d.Kind)
		}
		if err = d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "devices[%d]", i)
		}
		ds = append(ds, d)
	}
	return ds, nil
}

// commandDevice opens a fresh channel per command and serializes commands
// per device.
type commandDevice struct {
	device *Device
	lock   *sync.Mutex
	open   NewMessenger
}

func (cd *commandDevice) SendAndReceive(ctx context.Context, hexFrame string) (string, error) {
	cd.lock.Lock()
	defer cd.lock.Unlock()

	messenger, err := cd.open(ctx, cd.device.Transport, cd.device.timeout())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := messenger.Close(); err != nil {
			klog.V(4).InfoS("Failed to close command channel", "device", cd.device.Serial, "err", err)
		}
	}()

	reply, err := messenger.Ask(ctx, hexFrame)
	if err != nil {
		return "", errors.Wrapf(err, "device %s", cd.device.Serial)
	}
	klog.V(4).InfoS("Command device replied", "device", cd.device.Serial, "request", hexFrame, "reply", reply)
	return reply, nil
}
