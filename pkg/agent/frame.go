package agent

import (
	"emsgateway/pkg/router"
	"emsgateway/pkg/utils/binutil"
	"emsgateway/pkg/utils/hexutil"
	"github.com/pkg/errors"
)

const (
	commandSkip     = 8
	serialBytes     = 30
	commandHeader   = 2*serialBytes + 2
	boxCountOffset  = 38
	boxLenOffset    = 40
	boxDataOffset   = 42
	tupleHeader     = 4
	readCountOffset = 30
	readListOffset  = 32
	readEchoBytes   = 32
)

var (
	ErrShortFrame   = errors.New("frame is too short")
	ErrMalformedSet = errors.New("parameter tuples overrun the frame")
)

// Bytes maps the json number array the agent posts to raw bytes.
func Bytes(values []int) []byte {
	b := make([]byte, len(values))
	for i, v := range values {
		b[i] = byte(v & 0xff)
	}
	return b
}

// ParseCommand decodes a pass-through frame: 8 leading bytes, collector
// serial(30), device serial(30), payload length(2, big endian), payload.
func ParseCommand(b []byte) (*router.Command, error) {
	if len(b) < commandSkip+commandHeader {
		return nil, ErrShortFrame
	}
	data := b[commandSkip:]
	n := int(binutil.ParseUint16BigEndian(data[2*serialBytes : commandHeader]))
	payload := data[commandHeader:]
	if n > 0 && n <= len(payload) {
		payload = payload[:n]
	}
	return &router.Command{
		CollectorSerial: hexutil.ASCII(data[0:serialBytes]),
		DeviceSerial:    hexutil.ASCII(data[serialBytes : 2*serialBytes]),
		Payload:         hexutil.Upper(payload),
	}, nil
}

// Setting is one num(2) len(2) content tuple of a box command.
type Setting struct {
	Key     uint16
	Content string
}

// ParseBoxCommand decodes the parameter tuples of a box command. The tuple
// count sits at byte 38, the tuple area length at 40 and the tuples start at
// 42.
func ParseBoxCommand(b []byte) ([]Setting, error) {
	if len(b) < boxDataOffset {
		return nil, ErrShortFrame
	}
	count := int(binutil.ParseUint16BigEndian(b[boxCountOffset:boxLenOffset]))
	length := int(binutil.ParseUint16BigEndian(b[boxLenOffset:boxDataOffset]))
	if boxDataOffset+length > len(b) {
		return nil, ErrShortFrame
	}
	area := b[boxDataOffset : boxDataOffset+length]

	settings := make([]Setting, 0, count)
	for i := 0; i < len(area); {
		if i+tupleHeader > len(area) {
			return nil, ErrMalformedSet
		}
		key := binutil.ParseUint16BigEndian(area[i : i+2])
		n := int(binutil.ParseUint16BigEndian(area[i+2 : i+4]))
		if i+tupleHeader+n > len(area) {
			return nil, ErrMalformedSet
		}
		settings = append(settings, Setting{Key: key, Content: hexutil.ASCII(area[i+tupleHeader : i+tupleHeader+n])})
		i += tupleHeader + n
	}
	return settings, nil
}

// BoxRead is a parameter query.
type BoxRead struct {
	CollectorSerial string
	// Echo is the hex of the first 32 request bytes, repeated in the answer.
	Echo   string
	Params []uint8
}

// ParseBoxRead decodes collector serial(30), count(2, little endian) and
// count parameter numbers of two bytes each.
func ParseBoxRead(b []byte) (*BoxRead, error) {
	if len(b) < readListOffset {
		return nil, ErrShortFrame
	}
	count := int(binutil.ParseUint16LittleEndian(b[readCountOffset:readListOffset]))
	if readListOffset+2*count > len(b) {
		return nil, ErrShortFrame
	}
	r := &BoxRead{
		CollectorSerial: hexutil.ASCII(b[0:serialBytes]),
		Echo:            hexutil.Lower(b[0:readEchoBytes]),
		Params:          make([]uint8, 0, count),
	}
	for i := 0; i < count; i++ {
		p := binutil.ParseUint16BigEndian(b[readListOffset+2*i : readListOffset+2*i+2])
		if p > 0xff {
			continue
		}
		r.Params = append(r.Params, uint8(p))
	}
	return r, nil
}
