package transcode

import (
	"fmt"
	"strconv"
	"strings"

	"emsgateway/pkg/utils/crcutil"
	"github.com/pkg/errors"
)

// RegisterCommand is a decoded ascii hex register request.
type RegisterCommand struct {
	Address   byte
	Function  FunctionCode
	Start     uint16
	Count     uint16
	ByteCount byte
	Data      string
}

func (rc *RegisterCommand) StartHex() string {
	return fmt.Sprintf("%04X", rc.Start)
}

// Parse decodes [addr:1B][func:1B][start:2B][count:2B][byteCount:1B][data].
// Count, byteCount and data are only present for function 0x10.
func Parse(frame string) (*RegisterCommand, error) {
	if len(frame) < 8 {
		return nil, ErrShortFrame
	}
	addr, err := strconv.ParseUint(frame[0:2], 16, 8)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "address")
	}
	fc, err := strconv.ParseUint(frame[2:4], 16, 8)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "function")
	}
	start, err := strconv.ParseUint(frame[4:8], 16, 16)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "start address")
	}
	rc := &RegisterCommand{
		Address:  byte(addr),
		Function: FunctionCode(fc),
		Start:    uint16(start),
	}
	if rc.Function != WriteMultipleRegister {
		return rc, nil
	}

	if len(frame) < headerChars {
		return nil, ErrShortFrame
	}
	count, err := strconv.ParseUint(frame[8:12], 16, 16)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "register count")
	}
	bc, err := strconv.ParseUint(frame[12:14], 16, 8)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, "byte count")
	}
	rc.Count = uint16(count)
	rc.ByteCount = byte(bc)
	rc.Data = frame[headerChars:]
	return rc, nil
}

// Split turns one 0x10 frame into one 0x06 frame per register, ascending by
// register address. Each register carries two data bytes.
func Split(frame string, tail TailMode) ([]string, error) {
	rc, err := Parse(frame)
	if err != nil {
		return nil, err
	}
	if rc.Function != WriteMultipleRegister {
		return nil, errors.Wrapf(ErrUnsupportedFunction, "%02X", byte(rc.Function))
	}
	if len(rc.Data) < int(rc.Count)*4 {
		return nil, errors.Wrapf(ErrShortData, "want %d chars, got %d", int(rc.Count)*4, len(rc.Data))
	}

	addr := frame[0:2]
	frames := make([]string, 0, rc.Count)
	for i := 0; i < int(rc.Count); i++ {
		body := addr + "06" + fmt.Sprintf("%04X", int(rc.Start)+i) + rc.Data[i*4:i*4+4]
		switch tail {
		case TailLegacy:
			body += legacyTail
		default:
			crc, err := crcutil.HexLowFirst(body)
			if err != nil {
				return nil, errors.Wrap(ErrMalformedFrame, err.Error())
			}
			body += crc
		}
		frames = append(frames, body)
	}
	return frames, nil
}

// Aggregate folds the acknowledgements of a split write back into a single
// 0x10 style acknowledgement. A missing or refused reply yields ExceptionReply.
func Aggregate(original string, replies []string) string {
	if len(original) < 12 {
		return ExceptionReply
	}
	for _, r := range replies {
		if len(r) < 4 || strings.EqualFold(r[2:4], fmt.Sprintf("%02X", byte(WriteSingleRegisterFail))) {
			return ExceptionReply
		}
	}
	head := original[0:12]
	crc, err := crcutil.HexHighFirst(head)
	if err != nil {
		return ExceptionReply
	}
	return head + crc
}

// NeedsSplit reports whether a frame targets a register range that must be
// written one register at a time.
func NeedsSplit(frame string) bool {
	if len(frame) < 8 || !strings.EqualFold(frame[2:4], "10") {
		return false
	}
	return splitAddresses.Has(strings.ToUpper(frame[4:8]))
}

func IsBMSDirect(frame string) bool {
	if len(frame) < 8 {
		return false
	}
	return bmsDirectAddresses.Has(strings.ToUpper(frame[4:8]))
}

// IsRead reports a plain holding register read.
func IsRead(frame string) bool {
	return len(frame) >= 4 && frame[2:4] == "03"
}

func IsMultipleWrite(frame string) bool {
	return len(frame) >= 4 && frame[2:4] == "10"
}
