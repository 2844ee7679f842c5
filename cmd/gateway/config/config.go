package config

import (
	"emsgateway/pkg/agent"
	"emsgateway/pkg/device"
	"emsgateway/pkg/gateway"
	"emsgateway/pkg/parameter"
	"emsgateway/pkg/runtime"
)

type Config struct {
	CollectorSerial string
	DeviceMgr       *device.Manager
	Dictionary      *parameter.Dictionary
	Agent           *agent.Agent
	GatewayMgr      *gateway.Manager
	CertFile        string
	KeyFile         string
	// Closers run in order once the http server stopped accepting requests.
	Closers []runtime.LabeledCloser
}
