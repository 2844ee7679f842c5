package crcutil

import (
	"encoding/hex"
	"strings"

	"github.com/sigurn/crc16"
)

// CRC-16/MODBUS: init 0xFFFF, reflected poly 0xA001, no final xor.
var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}

// LowFirst returns the checksum in transmission order.
func LowFirst(data []byte) [2]byte {
	sum := Checksum(data)
	return [2]byte{byte(sum), byte(sum >> 8)}
}

func HighFirst(data []byte) [2]byte {
	sum := Checksum(data)
	return [2]byte{byte(sum >> 8), byte(sum)}
}

func Verify(data []byte, crc [2]byte) bool {
	return LowFirst(data) == crc
}

// VerifyFrame checks a frame whose last two bytes carry the wire order checksum.
func VerifyFrame(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	n := len(frame) - 2
	return Verify(frame[:n], [2]byte{frame[n], frame[n+1]})
}

// HexLowFirst computes the checksum of an ascii hex frame and renders it as
// four upper-case hex characters in wire order.
func HexLowFirst(hexFrame string) (string, error) {
	b, err := hex.DecodeString(hexFrame)
	if err != nil {
		return "", err
	}
	crc := LowFirst(b)
	return strings.ToUpper(hex.EncodeToString(crc[:])), nil
}

func HexHighFirst(hexFrame string) (string, error) {
	b, err := hex.DecodeString(hexFrame)
	if err != nil {
		return "", err
	}
	crc := HighFirst(b)
	return strings.ToUpper(hex.EncodeToString(crc[:])), nil
}
