package options

import (
	"net"
	"strconv"

	"emsgateway/pkg/device"
	"emsgateway/pkg/utils/hexutil"
	"github.com/pkg/errors"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if port, err := strconv.Atoi(o.Port); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, errors.Errorf("invalid port %q", o.Port))
	}
	if len(o.CollectorSerial) > hexutil.SerialSize {
		errs = append(errs, errors.Errorf("collectorSerial %q is longer than %d characters", o.CollectorSerial, hexutil.SerialSize))
	}
	if _, _, err := net.SplitHostPort(o.Bridge.Address); err != nil {
		errs = append(errs, errors.Wrap(err, "bridge.address"))
	}
	if o.Bridge.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("bridge.timeout must be positive"))
	}
	if len(o.Uplink.Broker) != 0 && o.Uplink.Interval.Duration <= 0 {
		errs = append(errs, errors.New("uplink.interval must be positive"))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		errs = append(errs, errors.New("certFile and keyFile must be set together"))
	}
	if _, err := device.Decode(o.Devices); err != nil {
		errs = append(errs, errors.Wrap(err, "devices"))
	}
	return errs
}
