package telemetry

import (
	"context"
	"sync"
	"time"

	"emsgateway/pkg/device"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Info is the report pair of one device family.
type Info struct {
	RuntimeInfo *string `json:"runtimeInfo"`
	ConfigInfo  *string `json:"configInfo"`
}

// RuntimeOnly is a block without configuration data.
type RuntimeOnly struct {
	RuntimeInfo *string `json:"runtimeInfo"`
}

// Document is what the uplink agent reads from the realtime and config
// endpoints.
type Document struct {
	Dehumidifier  Info        `json:"dehumidifier"`
	BMS           Info        `json:"bms"`
	BMSMonomer    RuntimeOnly `json:"bms_monomer"`
	IOModule      Info        `json:"ioModule"`
	LiquidCooling Info        `json:"liquidCooling"`
	PCS           Info        `json:"pcs"`
	Beidou        Info        `json:"beidou"`
	Air           Info        `json:"air"`
	Ebox          RuntimeOnly `json:"ebox"`
}

// EboxInfo renders the collector's own parameter block.
type EboxInfo func(collectorSerial string) string

const maxConcurrentQueries = 4

type Assembler struct {
	source          Source
	collectorSerial string
	ebox            EboxInfo
	now             func() time.Time
}

func NewAssembler(source Source, collectorSerial string, ebox EboxInfo) *Assembler {
	return &Assembler{
		source:          source,
		collectorSerial: collectorSerial,
		ebox:            ebox,
		now:             time.Now,
	}
}

type target struct {
	kind   device.Kind
	info   *Info
	window time.Duration
}

func (a *Assembler) targets(doc *Document) []target {
	return []target{
		{kind: device.KindDehumidifier, info: &doc.Dehumidifier, window: DefaultWindow},
		{kind: device.KindBMS, info: &doc.BMS, window: DefaultWindow},
		{kind: device.KindIOModule, info: &doc.IOModule, window: DefaultWindow},
		{kind: device.KindLiquidCooling, info: &doc.LiquidCooling, window: DefaultWindow},
		{kind: device.KindPCS, info: &doc.PCS, window: PCSWindow},
		{kind: device.KindBeidou, info: &doc.Beidou, window: DefaultWindow},
		{kind: device.KindAirConditioner, info: &doc.Air, window: DefaultWindow},
	}
}

// Realtime collects runtime and configuration reports of every family.
func (a *Assembler) Realtime(ctx context.Context) (*Document, error) {
	return a.assemble(ctx, true)
}

// Config collects configuration reports only, runtime blocks stay null.
func (a *Assembler) Config(ctx context.Context) (*Document, error) {
	return a.assemble(ctx, false)
}

func (a *Assembler) assemble(ctx context.Context, runtime bool) (*Document, error) {
	doc := &Document{}
	now := a.now()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, t := range a.targets(doc) {
		t := t
		if runtime {
			g.Go(func() error {
				r := a.encode(gctx, t.kind, RuntimeInformation, t.window, now)
				mu.Lock()
				t.info.RuntimeInfo = r
				mu.Unlock()
				return gctx.Err()
			})
		}
		g.Go(func() error {
			r := a.encode(gctx, t.kind, ConfigurationInformation, t.window, now)
			mu.Lock()
			t.info.ConfigInfo = r
			mu.Unlock()
			return gctx.Err()
		})
	}
	if runtime {
		g.Go(func() error {
			r := a.monomer(gctx, now)
			mu.Lock()
			doc.BMSMonomer.RuntimeInfo = r
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.ebox != nil {
		ebox := a.ebox(a.collectorSerial)
		doc.Ebox.RuntimeInfo = &ebox
	}
	return doc, nil
}

func (a *Assembler) encode(ctx context.Context, kind device.Kind, subTag string, window time.Duration, now time.Time) *string {
	s, err := a.source.Latest(ctx, kind, subTag, window)
	if err != nil {
		klog.V(2).InfoS("Failed to read telemetry", "device", kind, "subTag", subTag, "err", err)
		return nil
	}
	if s == nil {
		return nil
	}
	if len(Registers(s.Registers)) == 0 {
		klog.V(3).InfoS("Skipped telemetry", "device", kind, "subTag", subTag, "err", ErrEmptyRegisters)
		return nil
	}
	s.DeviceType = kind
	report := Encode(s, a.collectorSerial, now)
	return &report
}

func (a *Assembler) monomer(ctx context.Context, now time.Time) *string {
	records, err := a.source.Monomer(ctx)
	if err != nil {
		klog.V(2).InfoS("Failed to read cell telemetry", "err", err)
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	report := EncodeMonomer(records, a.collectorSerial, records[0].DeviceSerial, now)
	return &report
}
