package transcode

import (
	"errors"

	"k8s.io/apimachinery/pkg/util/sets"
)

type FunctionCode byte

const (
	ReadHoldRegister        FunctionCode = 0x03
	WriteSingleRegister     FunctionCode = 0x06
	WriteMultipleRegister   FunctionCode = 0x10
	WriteSingleRegisterFail FunctionCode = 0x86
)

// TailMode selects what closes a generated 0x06 frame.
type TailMode int

const (
	TailCRC TailMode = iota
	// TailLegacy appends the constant deployed connector firmware expects.
	TailLegacy
)

const (
	legacyTail = "1234"
	// ExceptionReply answers a 0x10 write when any single write was refused.
	ExceptionReply = "0190018DC0"

	headerChars = 14
)

var (
	ErrUnsupportedFunction = errors.New("unsupported function code")
	ErrShortFrame          = errors.New("frame too short")
	ErrShortData           = errors.New("register data shorter than register count")
	ErrMalformedFrame      = errors.New("malformed hex frame")
)

// dehumidifier registers that reject function 0x10
var splitAddresses = sets.NewString("7594", "7595", "7596", "7597")

// BMS serial number and clock blocks (20001.., 23020..) only accept 0x10
var bmsDirectAddresses = sets.NewString("4E21", "59EC")
