package errprocess

import (
	"errors"

	"realtime_chat_service/pkg/logger"
)

// Set logs err info and returns it as an error value.
func Set(errMsg string) error {
	if logger.Log != nil {
		logger.Log.Error(errMsg)
	}
	return errors.New(errMsg)
}
