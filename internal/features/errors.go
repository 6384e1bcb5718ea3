package features

import (
	"time"
)

// Error carries the HTTP status and client-safe detail for a failed
// operation. Internal causes stay in the logs only.
type Error struct {
	Status     int
	Detail     string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return e.Detail
}

func NewError(status int, detail string) *Error {
	return &Error{Status: status, Detail: detail}
}
