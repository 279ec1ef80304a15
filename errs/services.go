package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Third-party service errors
var (
	ErrServiceUnreachable = errors.New("service unreachable")
	ErrServiceRejected    = errors.New("service rejected request")
	ErrConfigMissing      = errors.New("configuration missing")
)

// Dependency & Service Discovery Error Constructors
func NewServiceUnreachableError(service string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusServiceUnavailable,
		err:        ErrServiceUnreachable,
		Details:    fmt.Sprintf("Service %s is unreachable", service),
		Cause:      cause,
		Field:      "service_discovery",
	}
}

// NewServiceRejectedError reports a non-2xx answer; body is the raw response, kept for the caller.
func NewServiceRejectedError(service string, status int, body string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadGateway,
		err:        ErrServiceRejected,
		Details:    fmt.Sprintf("%s returned %d: %s", service, status, body),
	}
}

func NewConfigMissingError(configName string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigMissing,
		Details:    fmt.Sprintf("%s is not configured", configName),
		Field:      configName,
	}
}

func IsServiceUnreachableError(err error) bool {
	return errors.Is(err, ErrServiceUnreachable)
}

func IsServiceRejectedError(err error) bool {
	return errors.Is(err, ErrServiceRejected)
}

func IsConfigMissingError(err error) bool {
	return errors.Is(err, ErrConfigMissing)
}
