package binutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint16(t *testing.T) {
	assert.Equal(t, uint16(0x0102), ParseUint16BigEndian([]byte{0x01, 0x02}))
	assert.Equal(t, uint16(0x0201), ParseUint16LittleEndian([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x1e, 0x50}, Uint16ToBytes(0x1e50))
	assert.Equal(t, []byte{0x50, 0x1e}, Uint16ToBytesLittleEndian(0x1e50))
	assert.Equal(t, uint16(0xbeef), ParseUint16LittleEndian(Uint16ToBytesLittleEndian(0xbeef)))
}
