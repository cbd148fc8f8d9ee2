// Package dashboard publishes updates to the timesheet dashboard.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Update is the message the dashboard service consumes.
type Update struct {
	Target    string    `json:"target"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Topic     string    `json:"topic,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender delivers a dashboard update. Implementations return once the
// transport has accepted the update.
type Sender interface {
	Send(ctx context.Context, target, eventType string, payload any) error
}

// Closer is implemented by senders that hold a connection of their own.
type Closer interface {
	Close() error
}

var now = func() time.Time { return time.Now().UTC() }

func newUpdate(topic, target, eventType string, payload any) Update {
	return Update{
		Target:    target,
		Type:      eventType,
		Payload:   payload,
		Topic:     topic,
		Timestamp: now(),
	}
}

func encodeUpdate(u Update) ([]byte, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard update: %w", err)
	}
	return body, nil
}
