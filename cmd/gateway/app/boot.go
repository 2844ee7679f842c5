package app

import (
	"context"
	"os"
	"time"

	"emsgateway/cmd/gateway/config"
	"emsgateway/cmd/gateway/options"
	"emsgateway/pkg/agent"
	"emsgateway/pkg/bridge"
	"emsgateway/pkg/device"
	"emsgateway/pkg/gateway"
	"emsgateway/pkg/generic"
	"emsgateway/pkg/parameter"
	"emsgateway/pkg/protocol/transcode"
	"emsgateway/pkg/router"
	"emsgateway/pkg/runtime"
	"emsgateway/pkg/storage"
	"emsgateway/pkg/telemetry"
	"emsgateway/pkg/upgrade"
	"emsgateway/pkg/uplink"
	"emsgateway/pkg/utils/differenceutil"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const (
	ipPollInterval = 5 * time.Second
	pingTimeout    = 3 * time.Second
)

// waitForIP blocks until the network setup wrote the ip file.
func waitForIP(ctx context.Context, ipFile string) error {
	if len(ipFile) == 0 {
		return nil
	}
	return wait.PollUntilContextCancel(ctx, ipPollInterval, true, func(context.Context) (bool, error) {
		if _, err := os.Stat(ipFile); err != nil {
			klog.V(2).InfoS("Waiting for ip file", "file", ipFile, "err", err)
			return false, nil
		}
		return true, nil
	})
}

func defaultDevices(collectorSerial string) []*device.Device {
	return []*device.Device{
		device.New(device.DehumidifierPrefix+collectorSerial, device.KindDehumidifier, device.Transport{
			Type:    device.TransportTcp,
			Address: device.DehumidifierAddress,
		}),
		device.New(device.LiquidCoolingPrefix+collectorSerial, device.KindLiquidCooling, device.Transport{
			Type:    device.TransportTcp,
			Address: device.LiquidCoolingAddress,
		}),
	}
}

func logDeviceChanges(persisted, desired []*device.Device) {
	serials := func(ds []*device.Device) []string {
		s := make([]string, 0, len(ds))
		for _, d := range ds {
			s = append(s, d.Serial)
		}
		return s
	}
	added, kept, apiOnly := differenceutil.DifferenceAndIntersectionStrings(serials(desired), serials(persisted))
	klog.V(2).InfoS("Reconciled configured devices", "added", added, "updated", kept, "registeredByApi", apiOnly)
}

// newConfig wires every component. Components started here are closed again
// when a later step fails.
func newConfig(ctx context.Context, o *options.Options) (_ *config.Config, returnErr error) {
	c := &config.Config{
		CollectorSerial: o.CollectorSerial,
		CertFile:        o.CertFile,
		KeyFile:         o.KeyFile,
	}
	defer func() {
		if returnErr == nil {
			return
		}
		for _, closer := range c.Closers {
			if err := closer.Closer(ctx); err != nil {
				klog.V(2).InfoS("Failed to close", "component", closer.Label, "err", err)
			}
		}
	}()

	deviceClient, err := storage.NewFsClient(o.StorePath, storage.StoreGroupDevice)
	if err != nil {
		return nil, exit(ExitStorage, err)
	}
	parameterClient, err := storage.NewFsClient(o.StorePath, storage.StoreGroupParameter)
	if err != nil {
		return nil, exit(ExitStorage, err)
	}
	gatewayClient, err := storage.NewFsClient(o.StorePath, storage.StoreGroupGateway)
	if err != nil {
		return nil, exit(ExitStorage, err)
	}

	c.Dictionary = parameter.NewDictionary(parameter.NewStore(parameterClient))
	if err = c.Dictionary.Init(); err != nil {
		return nil, exit(ExitStorage, err)
	}

	c.GatewayMgr = gateway.NewGatewayManager(gatewayClient, o.CollectorSerial, gateway.WithDiskPath(o.StorePath))
	if err = c.GatewayMgr.Init(); err != nil {
		return nil, exit(ExitSerial, err)
	}

	store := generic.NewStore[*device.Device](deviceClient, storage.Devices, func() *device.Device { return &device.Device{} })
	c.DeviceMgr = device.NewManager(store)
	if err = c.DeviceMgr.Init(); err != nil {
		return nil, exit(ExitStorage, err)
	}
	configured, err := device.Decode(o.Devices)
	if err != nil {
		return nil, exit(ExitConfig, err)
	}
	desired := append(defaultDevices(o.CollectorSerial), configured...)
	logDeviceChanges(c.DeviceMgr.List(), desired)
	for _, d := range desired {
		if err = c.DeviceMgr.Register(d); err != nil {
			return nil, exit(ExitStorage, errors.Wrapf(err, "register %s", d.String()))
		}
	}

	link := bridge.NewLink(o.Bridge.Address)
	if err = link.Start(ctx); err != nil {
		return nil, exit(ExitDeploy, err)
	}
	c.Closers = append(c.Closers, runtime.LabeledCloser{Label: "can bridge", Closer: func(context.Context) error {
		link.Stop()
		return nil
	}})

	tail := transcode.TailCRC
	if o.Transcode.LegacyTail {
		tail = transcode.TailLegacy
	}
	r := router.NewRouter(c.DeviceMgr, link, router.WithTailMode(tail), router.WithTimeout(o.Bridge.Timeout.Duration))

	source := telemetry.NewInfluxSource(o.Influx)
	c.Closers = append(c.Closers, runtime.LabeledCloser{Label: "influxdb", Closer: func(context.Context) error {
		return source.Close()
	}})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	if err = source.Ping(pingCtx); err != nil {
		// reports fall back to null sections until influxdb is reachable
		klog.V(1).InfoS("Failed to reach influxdb", "url", o.Influx.URL, "err", err)
	}
	cancel()

	assembler := telemetry.NewAssembler(source, o.CollectorSerial, c.Dictionary.RuntimeInfo)
	c.Agent = agent.New(o.CollectorSerial, r, c.Dictionary, upgrade.NewTracker(), assembler,
		agent.WithTimezoneFile(o.TimezoneFile),
		agent.WithWriter(source),
		agent.WithQuerier(source),
	)

	if len(o.Uplink.Broker) != 0 {
		client, err := uplink.Connect(o.Uplink.Config(), o.CollectorSerial)
		if err != nil {
			return nil, exit(ExitDeploy, err)
		}
		publisher := uplink.NewPublisher(client, o.CollectorSerial, o.Uplink.Interval.Duration, func(ctx context.Context) (interface{}, error) {
			return assembler.Realtime(ctx)
		})
		go publisher.Run(ctx)
		// stop publishing before the sources go away
		c.Closers = append([]runtime.LabeledCloser{{Label: "uplink", Closer: publisher.Close}}, c.Closers...)
	}

	klog.V(1).InfoS("Gateway configured", "collector", o.CollectorSerial, "devices", len(c.DeviceMgr.List()), "bridge", o.Bridge.Address)
	return c, nil
}
