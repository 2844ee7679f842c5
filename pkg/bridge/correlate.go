package bridge

import (
	"strconv"
	"strings"
)

const exceptionBit = 0x80

// request identifies the reply a register frame expects: the same slave
// address and function code, plus what the function echoes back.
type request struct {
	frame    string
	address  string
	function byte
}

// newRequest returns false for messages that are not register frames, their
// first reply is taken as is.
func newRequest(message string) (*request, bool) {
	frame := strings.ToUpper(message)
	if len(frame) < 8 || !isHex(frame[:8]) {
		return nil, false
	}
	fn, _ := strconv.ParseUint(frame[2:4], 16, 8)
	return &request{frame: frame, address: frame[0:2], function: byte(fn)}, true
}

// matches applies the modbus reply layout of the request function:
// 0x03 answers with a byte count of twice the register count, 0x06 echoes
// register and value, 0x10 echoes start and count. An exception reply only
// carries address and function|0x80.
func (r *request) matches(reply string) bool {
	reply = strings.ToUpper(reply)
	if len(reply) < 4 || reply[0:2] != r.address || !isHex(reply[2:4]) {
		return false
	}
	fn, _ := strconv.ParseUint(reply[2:4], 16, 8)
	switch byte(fn) {
	case r.function | exceptionBit:
		return true
	case r.function:
	default:
		return false
	}

	switch r.function {
	case 0x03, 0x04:
		if len(r.frame) < 12 || len(reply) < 6 {
			return len(reply) >= 6
		}
		count, err := strconv.ParseUint(r.frame[8:12], 16, 16)
		if err != nil {
			return true
		}
		byteCount, err := strconv.ParseUint(reply[4:6], 16, 8)
		return err == nil && byteCount == 2*count
	case 0x06:
		return len(reply) >= 8 && len(r.frame) >= 8 && reply[4:8] == r.frame[4:8]
	case 0x10:
		if len(r.frame) < 12 {
			return len(reply) >= 8 && reply[4:8] == r.frame[4:8]
		}
		return len(reply) >= 12 && reply[4:12] == r.frame[4:12]
	default:
		return true
	}
}

func isHex(s string) bool {
	for _, c := range s {
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
