package upgrade

import (
	"testing"

	"emsgateway/pkg/utils/hexutil"
	"github.com/stretchr/testify/assert"
)

func TestProgressLifecycle(t *testing.T) {
	tr := NewTracker()
	collector := hexutil.SerialField("EMS1")

	assert.Equal(t, collector+"00"+"A1"+"00", tr.Progress("EMS1"))

	assert.NoError(t, tr.Report("ABMS0132"))
	assert.Equal(t, collector+"BMS01"+"A1"+"32", tr.Progress("EMS1"))

	assert.NoError(t, tr.Report("ABMS0164"))
	assert.Equal(t, collector+"BMS01"+"00", tr.Progress("EMS1"))

	assert.NoError(t, tr.Report("BBMS0150"))
	assert.Equal(t, collector+"BMS01"+"50", tr.Progress("EMS1"))

	assert.NoError(t, tr.Report("BBMS0164"))
	assert.Equal(t, collector+"BMS01"+"64", tr.Progress("EMS1"))

	// reset after completion
	assert.Equal(t, collector+"00"+"A1"+"00", tr.Progress("EMS1"))
}

func TestUpgradeBeforeDownloadDone(t *testing.T) {
	tr := NewTracker()
	assert.NoError(t, tr.Report("BPCS110"))
	assert.Empty(t, tr.Progress("EMS1"))
}

func TestReportMalformed(t *testing.T) {
	tr := NewTracker()
	assert.ErrorIs(t, tr.Report("A1"), ErrMalformedProgress)
	assert.ErrorIs(t, tr.Report(""), ErrMalformedProgress)
}
