package gateway

import "emsgateway/pkg/runtime"

// GatewayMeta identifies this collector towards the cloud.
type GatewayMeta struct {
	CollectorSerial string `json:"collectorSerial"`
	Hostname        string `json:"hostname,omitempty"`
	runtime.ObjectMeta
}

type ResponseModel struct {
	Cpus  interface{} `json:"cpus,omitempty"`
	Mem   interface{} `json:"mem,omitempty"`
	Disks interface{} `json:"disk,omitempty"`
}

type CpuUsageInfo struct {
	Counts      int
	UsedPercent string
}

type MemUsageInfo struct {
	Total       string
	Used        string
	UsedPercent string
}

type DiskUsageInfo struct {
	Path        string
	Total       string
	Used        string
	UsedPercent string
}

const (
	gateway     = "meta"
	gatewayName = "ems-gateway"
)
