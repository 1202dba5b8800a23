package khalti

import (
	"errors"
	"fmt"
)

type KhaltiError struct {
	StatusCode int
	ErrorKey   string
	Detail     string
	Body       string
}

func (e *KhaltiError) Error() string {
	return fmt.Sprintf("khalti error [%s]: %s (status: %d)", e.ErrorKey, e.Detail, e.StatusCode)
}

func (e *KhaltiError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsKhaltiError(err error) (*KhaltiError, bool) {
	var kErr *KhaltiError
	ok := errors.As(err, &kErr)
	return kErr, ok
}
