package push

import (
	"errors"
	"strconv"
)

// ErrDisabled is returned by Send when VAPID keys are not configured.
var ErrDisabled = errors.New("push: sender disabled")

// StatusError reports a non-success HTTP status from the push service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "push: unexpected status " + strconv.Itoa(e.Code)
}
