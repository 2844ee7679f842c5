package options

import (
	"time"

	"emsgateway/pkg/agent"
	"emsgateway/pkg/bridge"
	baseoptions "emsgateway/pkg/generic/options"
	"emsgateway/pkg/storage"
	"emsgateway/pkg/telemetry"
	"emsgateway/pkg/uplink"
	"github.com/spf13/pflag"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type BridgeOptions struct {
	Address string          `json:"address"`
	Timeout metav1.Duration `json:"timeout"`
}

type TranscodeOptions struct {
	// LegacyTail ends transcoded frames with the fixed "1234" tail some
	// bridge firmware expects instead of a CRC.
	LegacyTail bool `json:"legacyTail"`
}

type BootOptions struct {
	IPFile string `json:"ipFile"`
}

type UplinkOptions struct {
	Broker   string          `json:"broker,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Interval metav1.Duration `json:"interval"`
}

func (uo UplinkOptions) Config() uplink.Config {
	return uplink.Config{
		Broker:   uo.Broker,
		ClientID: uo.ClientID,
		Interval: uo.Interval.Duration,
	}
}

type Options struct {
	Port            string                   `json:"port"`
	Wait            metav1.Duration          `json:"graceful-timeout"`
	CollectorSerial string                   `json:"collectorSerial"`
	StorePath       string                   `json:"storePath"`
	Bridge          BridgeOptions            `json:"bridge"`
	Transcode       TranscodeOptions         `json:"transcode"`
	Boot            BootOptions              `json:"boot"`
	Influx          telemetry.InfluxConfig   `json:"influx"`
	Uplink          UplinkOptions            `json:"uplink"`
	Devices         []map[string]interface{} `json:"devices,omitempty"`
	TimezoneFile    string                   `json:"timezoneFile"`
	CertFile        string                   `json:"certFile,omitempty"`
	KeyFile         string                   `json:"keyFile,omitempty"`
	baseoptions.BaseOptions
}

const (
	_defaultPort   = "8080"
	_defaultWait   = 15 * time.Second
	_defaultIPFile = "/etc/ems/ip"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:      _defaultPort,
		Wait:      metav1.Duration{Duration: _defaultWait},
		StorePath: storage.DefaultStorePath,
		Bridge: BridgeOptions{
			Address: bridge.DefaultAddress,
			Timeout: metav1.Duration{Duration: bridge.DefaultTimeout},
		},
		Boot:         BootOptions{IPFile: _defaultIPFile},
		Influx:       telemetry.InfluxConfig{URL: "http://127.0.0.1:8086", Org: "ems", Bucket: "ems"},
		Uplink:       UplinkOptions{Interval: metav1.Duration{Duration: uplink.DefaultInterval}},
		TimezoneFile: agent.DefaultTimezoneFile,
		BaseOptions:  baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait.Duration, "graceful-timeout", o.Wait.Duration, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.CollectorSerial, "collector-serial", o.CollectorSerial, "Serial number of the collector this gateway runs on")
	fs.StringVar(&o.StorePath, "store-path", o.StorePath, "Root directory of the file store")
	fs.StringVar(&o.Bridge.Address, "bridge-address", o.Bridge.Address, "Listen address for the CAN bridge")
	fs.DurationVar(&o.Bridge.Timeout.Duration, "bridge-timeout", o.Bridge.Timeout.Duration, "How long to wait for a CAN bridge reply")
	fs.BoolVar(&o.Transcode.LegacyTail, "legacy-tail", o.Transcode.LegacyTail, "End transcoded frames with the fixed legacy tail instead of a CRC")
	fs.StringVar(&o.Boot.IPFile, "ip-file", o.Boot.IPFile, "File that appears once the network is configured, boot waits for it. Empty disables the wait")
	fs.StringVar(&o.Influx.URL, "influx-url", o.Influx.URL, "InfluxDB server url")
	fs.StringVar(&o.Influx.Token, "influx-token", o.Influx.Token, "InfluxDB token")
	fs.StringVar(&o.Influx.Org, "influx-org", o.Influx.Org, "InfluxDB organization")
	fs.StringVar(&o.Influx.Bucket, "influx-bucket", o.Influx.Bucket, "InfluxDB bucket holding device telemetry")
	fs.StringVar(&o.Uplink.Broker, "uplink-broker", o.Uplink.Broker, "MQTT broker for periodic reports, e.g. tcp://127.0.0.1:1883. Empty disables the uplink")
	fs.DurationVar(&o.Uplink.Interval.Duration, "uplink-interval", o.Uplink.Interval.Duration, "Period of uplink reports")
	fs.StringVar(&o.TimezoneFile, "timezone-file", o.TimezoneFile, "File holding the system timezone name")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "TLS certificate, serves plain http when empty")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "TLS private key")
}
