package agent

import (
	"context"
	"os"
	"strings"
	"time"

	"emsgateway/pkg/parameter"
	"emsgateway/pkg/router"
	"emsgateway/pkg/telemetry"
	"emsgateway/pkg/upgrade"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const DefaultTimezoneFile = "/etc/timezone"

// Commander delivers cloud commands to the field.
type Commander interface {
	Route(ctx context.Context, cmd router.Command) string
	Upgrade(ctx context.Context, command string)
}

// Reporter assembles the report documents.
type Reporter interface {
	Realtime(ctx context.Context) (*telemetry.Document, error)
	Config(ctx context.Context) (*telemetry.Document, error)
}

type Option func(*Agent)

func WithTimezoneFile(path string) Option {
	return func(a *Agent) {
		a.timezoneFile = path
	}
}

func WithWriter(w telemetry.Writer) Option {
	return func(a *Agent) {
		a.writer = w
	}
}

func WithQuerier(q telemetry.Querier) Option {
	return func(a *Agent) {
		a.querier = q
	}
}

// Agent serves the local uplink agent that relays between the cloud and the
// gateway.
type Agent struct {
	collectorSerial string
	commander       Commander
	dictionary      *parameter.Dictionary
	tracker         *upgrade.Tracker
	reporter        Reporter
	writer          telemetry.Writer
	querier         telemetry.Querier
	timezoneFile    string
	now             func() time.Time
}

func New(collectorSerial string, commander Commander, dictionary *parameter.Dictionary, tracker *upgrade.Tracker, reporter Reporter, opts ...Option) *Agent {
	a := &Agent{
		collectorSerial: collectorSerial,
		commander:       commander,
		dictionary:      dictionary,
		tracker:         tracker,
		reporter:        reporter,
		timezoneFile:    DefaultTimezoneFile,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplySettings executes a box command. Key 80 is a firmware upgrade for the
// CAN bridge, key 30 also rewrites the timezone file, every other key only
// updates the dictionary.
func (a *Agent) ApplySettings(ctx context.Context, settings []Setting) {
	for _, s := range settings {
		if s.Key > 0xff {
			klog.V(2).InfoS("Skipped parameter out of range", "key", s.Key)
			continue
		}
		key := uint8(s.Key)
		switch key {
		case parameter.KeyUpgrade:
			klog.V(1).InfoS("Forwarding firmware upgrade", "command", s.Content)
			a.commander.Upgrade(ctx, s.Content)
			continue
		case parameter.KeyTimezone:
			klog.V(1).InfoS("Timezone changed", "timezone", s.Content)
			if err := a.writeTimezone(s.Content); err != nil {
				klog.V(2).InfoS("Failed to write timezone file", "file", a.timezoneFile, "err", err)
			}
		}
		if err := a.dictionary.Set(key, s.Content); err != nil {
			klog.V(2).InfoS("Failed to store parameter", "key", key, "err", err)
		}
	}
}

// ReadParameters answers a box read. System time and timezone are refreshed
// from the host before encoding.
func (a *Agent) ReadParameters(r *BoxRead) string {
	for _, p := range r.Params {
		switch p {
		case parameter.KeySystemTime:
			if err := a.dictionary.SetSystemTime(a.now()); err != nil {
				klog.V(2).InfoS("Failed to store system time", "err", err)
			}
		case parameter.KeyTimezone:
			tz, err := a.readTimezone()
			if err != nil {
				klog.V(2).InfoS("Failed to read timezone file", "file", a.timezoneFile, "err", err)
				continue
			}
			if err = a.dictionary.Set(parameter.KeyTimezone, tz); err != nil {
				klog.V(2).InfoS("Failed to store timezone", "err", err)
			}
		}
	}
	return r.Echo + statusOK + a.dictionary.Encode(r.Params)
}

func (a *Agent) readTimezone() (string, error) {
	data, err := os.ReadFile(a.timezoneFile)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	tz := strings.TrimSpace(line)
	if len(tz) == 0 {
		return "", errors.Errorf("%s is empty", a.timezoneFile)
	}
	return tz, nil
}

func (a *Agent) writeTimezone(tz string) error {
	if len(a.timezoneFile) == 0 {
		return nil
	}
	return os.WriteFile(a.timezoneFile, []byte(tz+"\n"), 0644)
}
