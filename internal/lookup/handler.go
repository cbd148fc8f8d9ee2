// Package lookup implements the bulk timelog lookup: it turns one inbound
// message into a dashboard update carrying every timelog grouped by employee.
package lookup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/models"
	"github.com/mathewdenison/employees-timesheet-list/internal/serializer"
)

const (
	// BroadcastTarget addresses every connected dashboard.
	BroadcastTarget = "all"
	// EventType tags the dashboard update.
	EventType = "bulk_timelog_lookup"
)

// Store fetches every timelog.
type Store interface {
	FetchAll(ctx context.Context) ([]models.TimeLog, error)
}

// Serializer renders timelogs as flat records.
type Serializer interface {
	Serialize(logs []models.TimeLog, many bool) ([]serializer.Record, error)
}

// Notifier publishes a dashboard update.
type Notifier interface {
	Send(ctx context.Context, target, eventType string, payload any) error
}

// BulkLookupPayload is the payload of a bulk_timelog_lookup dashboard update.
type BulkLookupPayload struct {
	Timelogs *GroupedTimelogs `json:"timelogs"`
	Message  string           `json:"message"`
}

// Result is the outcome of a lookup before it is forwarded.
type Result struct {
	Count   int
	Grouped *GroupedTimelogs
	Message string
}

// Payload returns the dashboard payload for r.
func (r *Result) Payload() BulkLookupPayload {
	return BulkLookupPayload{Timelogs: r.Grouped, Message: r.Message}
}

// Handler runs the lookup for each inbound message. It keeps no state
// between calls and is safe for concurrent use.
type Handler struct {
	store      Store
	serializer Serializer
	notifier   Notifier
	logger     *zap.Logger
}

func New(store Store, s Serializer, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      store,
		serializer: s,
		notifier:   notifier,
		logger:     logger,
	}
}

// HandleMessage decodes msg, looks up all timelogs and sends them to the
// dashboard. A non-nil error means the message should be redelivered.
func (h *Handler) HandleMessage(ctx context.Context, msg models.Message, dctx models.DeliveryContext) error {
	log := h.logger.With(deliveryFields(msg, dctx)...)

	if err := h.handle(ctx, msg, log); err != nil {
		log.Error("Error processing employee_timelog_list message", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) handle(ctx context.Context, msg models.Message, log *zap.Logger) error {
	raw, err := DecodeData(msg.Data)
	if err != nil {
		return err
	}
	log.Info("Raw message received", zap.String("raw_data", raw))

	data, err := ParsePayload(raw)
	if err != nil {
		return err
	}
	// The payload does not scope the lookup; every message triggers a full read.
	log.Debug("Decoded message payload", zap.Any("payload", data))

	log.Info("Fetching all employee timesheet objects...")
	result, err := h.Lookup(ctx)
	if err != nil {
		return err
	}
	log.Info(result.Message,
		zap.Int("record_count", result.Count),
		zap.Int("employee_count", result.Grouped.Len()),
	)

	if err := h.notifier.Send(ctx, BroadcastTarget, EventType, result.Payload()); err != nil {
		return &NotificationError{Err: err}
	}

	log.Info("Sent dashboard update with grouped employee timelogs")
	return nil
}

// Lookup fetches, serializes and groups every timelog.
func (h *Handler) Lookup(ctx context.Context) (*Result, error) {
	logs, err := h.store.FetchAll(ctx)
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	records, err := h.serializer.Serialize(logs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize timelogs: %w", err)
	}

	return &Result{
		Count:   len(records),
		Grouped: GroupByEmployee(records),
		Message: SummaryMessage(len(records)),
	}, nil
}

// SummaryMessage is the human readable summary sent with the update.
func SummaryMessage(count int) string {
	return fmt.Sprintf("Bulk Timesheet Lookup: found %d timelog records.", count)
}

// DecodeData base64-decodes message data and checks it is UTF-8 text.
func DecodeData(data string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	if !utf8.Valid(b) {
		return "", &DecodeError{Err: errors.New("data is not valid UTF-8")}
	}
	return string(b), nil
}

// ParsePayload parses JSON text. If the result is a JSON string its content
// is parsed once more, which unwraps producers that encode twice.
func ParsePayload(raw string) (any, error) {
	var first any
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		return nil, &ParseError{Pass: 1, Err: err}
	}

	inner, ok := first.(string)
	if !ok {
		return first, nil
	}

	var second any
	if err := json.Unmarshal([]byte(inner), &second); err != nil {
		return nil, &ParseError{Pass: 2, Err: err}
	}
	return second, nil
}

func deliveryFields(msg models.Message, dctx models.DeliveryContext) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", dctx.EventID),
		zap.String("source", dctx.Source),
	}
	if msg.MessageID != "" && msg.MessageID != dctx.EventID {
		fields = append(fields, zap.String("message_id", msg.MessageID))
	}
	if !dctx.Timestamp.IsZero() {
		fields = append(fields, zap.Time("event_timestamp", dctx.Timestamp))
	}
	if dctx.DeliveryAttempt > 0 {
		fields = append(fields, zap.Int("delivery_attempt", dctx.DeliveryAttempt))
	}
	return fields
}
