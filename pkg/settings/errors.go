package settings

import (
	"errors"
	"fmt"
)

// Errors reported by the speech API, keyed by its error numbers.
var (
	ErrQuota  = errors.New("speech api: quota exceeded")
	ErrVerify = errors.New("speech api: verification failed")
	ErrAPI    = errors.New("speech api: request failed")
)

var errorCodes = map[int]error{
	3001: ErrQuota,
	3002: ErrVerify,
	3003: ErrAPI,
}

// ErrorForCode maps an API error number to its error. Unknown numbers wrap ErrAPI.
func ErrorForCode(code int) error {
	if err, ok := errorCodes[code]; ok {
		return err
	}
	return fmt.Errorf("%w (code %d)", ErrAPI, code)
}
