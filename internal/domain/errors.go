package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")

	// ErrConnection marks a failed dial, subscription or an unexpected drop of
	// the feed connection. It is the only error that ends a session.
	ErrConnection = errors.New("feed connection failed")

	ErrDecode            = errors.New("frame is not valid JSON")
	ErrUnknownInstrument = errors.New("event for unsubscribed instrument")
	ErrData              = errors.New("price level has missing or non-numeric fields")
	ErrUnsupportedEvent  = errors.New("unsupported event type")
)

// ConnectionError carries the underlying transport failure of a session.
// errors.Is(err, ErrConnection) reports true for it.
type ConnectionError struct {
	Op  string // dial, subscribe, read
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes ConnectionError match the ErrConnection sentinel.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
