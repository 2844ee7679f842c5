package response

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelope(t *testing.T) {
	b, err := json.Marshal(Success(OptionalString("")))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"code":20000,"message":"成功调用","data":null}`, string(b))

	b, err = json.Marshal(Failure("bad frame"))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"code":40000,"message":"调用失败","data":"bad frame"}`, string(b))
}

func TestResponseError(t *testing.T) {
	cause := errors.New("boom")
	err := ErrDeviceInvalid(cause)
	assert.Equal(t, ErrCodeDeviceInvalid, err.GetCode())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsResponseError(err))
	assert.Contains(t, ErrDeviceNotFound("DH1").Error(), "DH1")
}

func TestErrorCodesKeepTheirNumbers(t *testing.T) {
	assert.Equal(t, ErrCode(10001), ErrCodeMalformedJSON)
	assert.Equal(t, ErrCode(10002), ErrCodeRequestBody)
	assert.Equal(t, ErrCode(10006), ErrCodeDeviceNotFound)
	assert.Equal(t, ErrCode(10007), ErrCodeDeviceInvalid)
	assert.Equal(t, ErrCode(10008), ErrCodeMalformedPatch)
	for _, code := range []ErrCode{ErrCodeMalformedJSON, ErrCodeRequestBody, ErrCodeDeviceNotFound, ErrCodeDeviceInvalid, ErrCodeMalformedPatch} {
		assert.NotEmpty(t, errorMessages[code], code)
	}
	assert.Len(t, errorMessages, 5)
}
