package hexutil

import (
	"encoding/hex"
	"strings"

	"k8s.io/klog/v2"
)

// SerialSize is the byte width of a serial number field.
const SerialSize = 30

// PadLeft left-pads an ascii hex string with '0' to size bytes (2*size chars).
// Longer input is returned unchanged.
func PadLeft(s string, size int) string {
	if n := size*2 - len(s); n > 0 {
		return strings.Repeat("0", n) + s
	}
	return s
}

// FromASCII renders every byte of s as two lower-case hex characters.
func FromASCII(s string) string {
	return hex.EncodeToString([]byte(s))
}

// SerialField encodes a serial number into the fixed 30 byte report field.
// Longer serials are cut to the field width.
func SerialField(serial string) string {
	if len(serial) > SerialSize {
		klog.V(1).InfoS("Truncated serial longer than its field", "serial", serial, "size", SerialSize)
		serial = serial[:SerialSize]
	}
	return PadLeft(FromASCII(serial), SerialSize)
}

// ASCII decodes a raw byte field into text, dropping NUL padding.
func ASCII(b []byte) string {
	return strings.Trim(string(b), "\x00 ")
}

func Upper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func Decode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func Lower(b []byte) string {
	return hex.EncodeToString(b)
}
