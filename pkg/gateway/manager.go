package gateway

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"emsgateway/pkg/runtime"
	"emsgateway/pkg/storage"
	"emsgateway/pkg/utils/uuidutil"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"k8s.io/klog/v2"
)

const cpuSampleInterval = 200 * time.Millisecond

type Option func(*Manager)

// WithDiskPath selects the filesystem reported by the disk endpoint.
func WithDiskPath(path string) Option {
	return func(m *Manager) {
		m.diskPath = path
	}
}

type Manager struct {
	mu              sync.RWMutex
	gatewayMeta     *GatewayMeta
	client          storage.Storage
	collectorSerial string
	diskPath        string
}

func NewGatewayManager(client storage.Storage, collectorSerial string, opts ...Option) *Manager {
	m := &Manager{
		gatewayMeta:     &GatewayMeta{},
		client:          client,
		collectorSerial: collectorSerial,
		diskPath:        "/",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads the persisted gateway identity or creates one on first boot.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	gd, err := m.client.Get(gateway)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrap(err, "read gateway information")
		}
		m.gatewayMeta = &GatewayMeta{
			CollectorSerial: m.collectorSerial,
			Hostname:        hostname(),
			ObjectMeta: runtime.ObjectMeta{
				Name:    gatewayName,
				ID:      uuidutil.UUID(),
				Version: "1",
				ModTime: time.Now(),
			},
		}
		klog.V(3).InfoS("Gateway information not exist,been created automatically", "gatewayId", m.gatewayMeta.ID)
		if _, err := m.client.Create(gateway, m.gatewayMeta); err != nil {
			klog.V(2).InfoS("Failed to create gateway information", "err", err)
			return err
		}
		return nil
	}

	data, ok := gd.([]byte)
	if !ok {
		return errors.Errorf("unexpected %T from gateway store", gd)
	}
	meta := &GatewayMeta{}
	if err = json.Unmarshal(data, meta); err != nil {
		klog.V(2).InfoS("Failed to unmarshal gateway information", "err", err)
		return err
	}
	if meta.CollectorSerial != m.collectorSerial {
		klog.V(1).InfoS("Collector serial changed", "old", meta.CollectorSerial, "new", m.collectorSerial)
		meta.CollectorSerial = m.collectorSerial
		version, _ := strconv.ParseUint(meta.Version, 10, 64)
		meta.Version = strconv.FormatUint(version+1, 10)
		meta.ModTime = time.Now()
		if err = m.client.Put(gateway, meta); err != nil {
			return err
		}
	}
	m.gatewayMeta = meta
	return nil
}

func (m *Manager) GetGatewayMeta() (*GatewayMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gatewayMeta, nil
}

func (m *Manager) getGatewayCpu(ctx context.Context) (*CpuUsageInfo, error) {
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		klog.V(2).InfoS("Failed to count cpus", "err", err)
		return nil, err
	}
	percent, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil || len(percent) == 0 {
		klog.V(2).InfoS("Failed to sample cpu usage", "err", err)
		return nil, errors.Errorf("sample cpu usage: %v", err)
	}
	return &CpuUsageInfo{Counts: counts, UsedPercent: formatPercent(percent[0])}, nil
}

func (m *Manager) getGatewayMem(ctx context.Context) (*MemUsageInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		klog.V(2).InfoS("Failed to read memory usage", "err", err)
		return nil, err
	}
	return &MemUsageInfo{
		Total:       strconv.FormatUint(vm.Total, 10),
		Used:        strconv.FormatUint(vm.Used, 10),
		UsedPercent: formatPercent(vm.UsedPercent),
	}, nil
}

func (m *Manager) getGatewayDisk(ctx context.Context) (*DiskUsageInfo, error) {
	usage, err := disk.UsageWithContext(ctx, m.diskPath)
	if err != nil {
		klog.V(2).InfoS("Failed to read disk usage", "path", m.diskPath, "err", err)
		return nil, err
	}
	return &DiskUsageInfo{
		Path:        usage.Path,
		Total:       strconv.FormatUint(usage.Total, 10),
		Used:        strconv.FormatUint(usage.Used, 10),
		UsedPercent: formatPercent(usage.UsedPercent),
	}, nil
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func hostname() string {
	info, err := host.Info()
	if err != nil {
		klog.V(4).InfoS("Failed to read host information", "err", err)
		return ""
	}
	return info.Hostname
}
