package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Message is the inbound queue message. Data holds base64-encoded JSON text.
type Message struct {
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	PublishTime time.Time         `json:"publish_time,omitempty"`
}

// DeliveryContext describes how a message reached the handler.
// It is only used for logging.
type DeliveryContext struct {
	EventID         string
	Source          string
	Timestamp       time.Time
	DeliveryAttempt int
}

// PushEnvelope is the body Google Pub/Sub sends to push subscriptions.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is the message part of a PushEnvelope.
// Pub/Sub uses camelCase keys here, unlike Message.
type PushMessage struct {
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	MessageID   string            `json:"messageId"`
	PublishTime time.Time         `json:"publishTime"`
}

// ToMessage converts the push message into the handler's Message.
func (p PushMessage) ToMessage() Message {
	return Message{
		Data:        p.Data,
		Attributes:  p.Attributes,
		MessageID:   p.MessageID,
		PublishTime: p.PublishTime,
	}
}

// ParseBody builds a Message from a raw queue body. The body is either a JSON
// envelope with a "data" field or the bare base64 text.
func ParseBody(body []byte) Message {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg Message
		if err := json.Unmarshal(trimmed, &msg); err == nil && msg.Data != "" {
			return msg
		}
	}
	return Message{Data: string(trimmed)}
}
