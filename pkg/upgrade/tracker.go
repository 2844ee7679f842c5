package upgrade

import (
	"errors"
	"strings"
	"sync"

	"emsgateway/pkg/utils/hexutil"
	"k8s.io/klog/v2"
)

const (
	// Done is 100 percent in hex.
	Done = "64"
	// Idle is the reset value of every field.
	Idle = "00"

	downloadType   = "A"
	downloadMarker = "A1"
)

var ErrMalformedProgress = errors.New("progress report must be type(1) + serial + progress(2)")

// Tracker follows the firmware download and upgrade progress the CAN bridge
// reports for one device at a time.
type Tracker struct {
	mu       sync.Mutex
	serial   string
	download string
	upgrade  string
}

func NewTracker() *Tracker {
	return &Tracker{serial: Idle, download: Idle, upgrade: Idle}
}

// Report records a progress line: "A" + serial + progress for the download
// phase, any other type letter for the upgrade phase.
func (t *Tracker) Report(line string) error {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return ErrMalformedProgress
	}
	kind := line[0:1]
	serial := line[1 : len(line)-2]
	progress := line[len(line)-2:]

	t.mu.Lock()
	defer t.mu.Unlock()
	t.serial = serial
	if kind == downloadType {
		t.download = progress
	} else {
		t.upgrade = progress
	}
	klog.V(2).InfoS("Firmware progress", "device", serial, "download", t.download, "upgrade", t.upgrade)
	return nil
}

// Progress renders the progress block for the cloud. Once both phases are
// done the tracker resets.
func (t *Tracker) Progress(collectorSerial string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	collector := hexutil.SerialField(collectorSerial)
	if t.upgrade == Idle && t.download != Done {
		sb.WriteString(collector + t.serial + downloadMarker + t.download)
	}
	if t.download == Done {
		sb.WriteString(collector + t.serial + t.upgrade)
	}
	if t.upgrade == Done && t.download == Done {
		klog.V(2).InfoS("Firmware upgrade finished", "device", t.serial)
		t.serial, t.download, t.upgrade = Idle, Idle, Idle
	}
	return sb.String()
}
