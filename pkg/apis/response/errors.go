package response

var errorMessages = map[ErrCode]string{
	ErrCodeMalformedJSON:  "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:    "Request body error",
	ErrCodeDeviceNotFound: "Device %s not found.",
	ErrCodeDeviceInvalid:  "Device is invalid: %s",
	ErrCodeMalformedPatch: "The merge patch you provided could not be applied: %s",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errorMessages[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: errorMessages[ErrCodeRequestBody],
}

func ErrDeviceNotFound(serial string) *responseError {
	return generateError(ErrCodeDeviceNotFound, serial)
}

func ErrDeviceInvalid(err error) *responseError {
	return generateErrorWrapper(ErrCodeDeviceInvalid, err, err.Error())
}

func ErrMalformedPatch(err error) *responseError {
	return generateErrorWrapper(ErrCodeMalformedPatch, err, err.Error())
}

// Envelope wraps every answer given to the cloud agent. The HTTP status is
// always 200, success or failure is carried in Code.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(data interface{}) *Envelope {
	return &Envelope{Code: CodeSuccess, Message: MessageSuccess, Data: data}
}

func Failure(data interface{}) *Envelope {
	return &Envelope{Code: CodeFailure, Message: MessageFailure, Data: data}
}

// OptionalString maps an empty device reply to a json null.
func OptionalString(s string) interface{} {
	if len(s) == 0 {
		return nil
	}
	return s
}
