package api

import (
	"errors"
	"fmt"
)

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Operation  string
	StatusCode int
	// Status is the status description, e.g. "404 Not Found"
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s: %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Status)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
