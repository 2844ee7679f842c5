package hexutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadLeft(t *testing.T) {
	assert.Equal(t, "0000ab", PadLeft("ab", 3))
	assert.Equal(t, "abcdef", PadLeft("abcdef", 2))
}

func TestSerialField(t *testing.T) {
	f := SerialField("EMS1")
	assert.Len(t, f, 60)
	assert.True(t, strings.HasSuffix(f, "454d5331"))
	assert.Equal(t, strings.Repeat("0", 52), f[:52])
}

func TestSerialFieldTruncatesLongSerial(t *testing.T) {
	serial := strings.Repeat("A", SerialSize) + "XYZ"
	f := SerialField(serial)
	assert.Len(t, f, 2*SerialSize)
	assert.Equal(t, FromASCII(strings.Repeat("A", SerialSize)), f)
}

func TestASCII(t *testing.T) {
	assert.Equal(t, "DH01", ASCII([]byte{0, 0, 'D', 'H', '0', '1', 0}))
}
