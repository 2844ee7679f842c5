package response

type ErrCode int

const (
	_                     ErrCode = 10000 + iota
	ErrCodeMalformedJSON          // 10001
	ErrCodeRequestBody            // 10002
	_                             // 10003 retired
	_                             // 10004 retired
	_                             // 10005 retired
	ErrCodeDeviceNotFound         // 10006
	ErrCodeDeviceInvalid          // 10007
	ErrCodeMalformedPatch         // 10008
)

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end, and append comment of number
// Meanwhile, the corresponding error message SHOULD be appended in response.errors
// The order MUST be consistent between them

// Envelope codes understood by the cloud agent.
const (
	CodeSuccess = 20000
	CodeFailure = 40000

	MessageSuccess = "成功调用"
	MessageFailure = "调用失败"
)
