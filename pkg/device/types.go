package device

import (
	"fmt"
	"time"

	"emsgateway/pkg/runtime"
	"github.com/pkg/errors"
)

// Transport describes the command channel of a device.
type Transport struct {
	Type     TransportType `json:"type,omitempty" mapstructure:"type"`
	Address  string        `json:"address,omitempty" mapstructure:"address"`
	BaudRate int           `json:"baudRate,omitempty" mapstructure:"baudRate"`
	Timeout  time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
}

// Device is one registry record. Sub-devices point at their parent through
// ParentSerial.
type Device struct {
	runtime.ObjectMeta `mapstructure:",squash"`
	Serial             string    `json:"serial" mapstructure:"serial"`
	Kind               Kind      `json:"kind" mapstructure:"kind"`
	ParentSerial       string    `json:"parentSerial,omitempty" mapstructure:"parentSerial"`
	Transport          Transport `json:"transport" mapstructure:"transport"`
}

func New(serial string, kind Kind, transport Transport) *Device {
	return &Device{
		ObjectMeta: runtime.ObjectMeta{
			Name:    string(kind),
			ID:      serial,
			Version: "1",
			ModTime: time.Now(),
		},
		Serial:    serial,
		Kind:      kind,
		Transport: transport,
	}
}

func (d *Device) IsCommandDevice() bool {
	return d.Transport.Type != TransportNone
}

func (d *Device) timeout() time.Duration {
	if d.Transport.Timeout > 0 {
		return d.Transport.Timeout
	}
	return defaultTimeout
}

func (d *Device) String() string {
	return fmt.Sprintf("%s/%s", d.Kind, d.Serial)
}

func (d *Device) Validate() error {
	if len(d.Serial) == 0 {
		return errors.Wrap(ErrInvalidDevice, "serial is required")
	}
	if !d.Kind.Valid() {
		return errors.Wrapf(ErrInvalidDevice, "unsupported kind %q", d.Kind)
	}
	if d.ParentSerial == d.Serial {
		return errors.Wrap(ErrInvalidDevice, "device cannot be its own parent")
	}
	switch d.Transport.Type {
	case TransportNone:
	case TransportTcp, TransportModbusTcp, TransportSerial:
		if len(d.Transport.Address) == 0 {
			return errors.Wrapf(ErrInvalidDevice, "%s transport needs an address", d.Transport.Type)
		}
	default:
		return errors.Wrapf(ErrInvalidDevice, "unsupported transport %q", d.Transport.Type)
	}
	return nil
}
