package lookup

import (
	"fmt"
)

// DecodeError means the message data was not valid base64 or not UTF-8.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError means one of the two JSON passes failed. Pass is 1 or 2.
type ParseError struct {
	Pass int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse message json (pass %d): %v", e.Pass, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps a failure from the timelog store.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to fetch timelogs: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotificationError wraps a failure from the dashboard sender.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send dashboard update: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
