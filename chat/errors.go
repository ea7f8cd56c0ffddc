package chat

import (
	"errors"
	"fmt"

	"github.com/shimarch/smrkit/resilience"
)

var (
	// ErrUnavailable wraps transport failures such as DNS or connection
	// errors. A call that exceeds the timeout fails with resilience.ErrTimeout.
	ErrUnavailable = errors.New("chat: webhook unavailable")

	// ErrInvalidSpace rejects empty space names.
	ErrInvalidSpace = errors.New("chat: invalid space name")

	// ErrInvalidPayload is returned when the payload cannot be encoded.
	ErrInvalidPayload = errors.New("chat: invalid payload")
)

// APIError is a non-2xx answer from the webhook endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat: webhook returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("chat: webhook returned HTTP %d: %s", e.Status, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

// Retryable is the default retry predicate used by WithRetry.
func Retryable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, resilience.ErrTimeout) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
