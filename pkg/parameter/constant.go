package parameter

import "errors"

// Well known dictionary keys.
const (
	KeyTimezone   uint8 = 30
	KeySystemTime uint8 = 31
	KeyUpgrade    uint8 = 80
)

const (
	dictionaryFile   = "dictionary.json"
	systemTimeLayout = "2006-01-02 15:04:05"
)

var (
	ErrInvalidKey   = errors.New("parameter key must be an integer in [0, 255]")
	ErrInvalidValue = errors.New("parameter value must be a string")
)
