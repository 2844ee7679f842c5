package binutil

// ParseUint16BigEndian 解析 AB
func ParseUint16BigEndian(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

// ParseUint16LittleEndian 解析 BA
func ParseUint16LittleEndian(buf []byte) uint16 {
	return uint16(buf[1])<<8 + uint16(buf[0])
}

// Uint16ToBytes 编码
func Uint16ToBytes(value uint16) []byte {
	return []byte{byte(value >> 8), byte(value)}
}

// Uint16ToBytesLittleEndian 编码
func Uint16ToBytesLittleEndian(value uint16) []byte {
	return []byte{byte(value), byte(value >> 8)}
}
