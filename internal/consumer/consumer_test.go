package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) HandleMessage(ctx context.Context, msg models.Message, dctx models.DeliveryContext) error {
	args := m.Called(ctx, msg, dctx)
	return args.Error(0)
}

// fakeAcknowledger records what the consumer told the broker.
type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
	ackErr  error
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return f.ackErr
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  7,
		MessageId:    "amqp-id",
		Timestamp:    time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		Body:         []byte(body),
	}
}

func TestProcessMessage_AcksOnSuccess(t *testing.T) {
	ack := &fakeAcknowledger{}
	h := &MockHandler{}
	h.On("HandleMessage", mock.Anything, models.Message{Data: "e30="}, mock.AnythingOfType("models.DeliveryContext")).Return(nil)

	ok := ProcessMessage(context.Background(), zap.NewNop(), "timelogs", delivery(ack, "e30="), h, Options{RequeueOnFailure: true})

	assert.True(t, ok)
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
	h.AssertExpectations(t)
}

func TestProcessMessage_NacksOnFailure(t *testing.T) {
	for _, requeue := range []bool{true, false} {
		ack := &fakeAcknowledger{}
		h := &MockHandler{}
		h.On("HandleMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("store down"))

		ok := ProcessMessage(context.Background(), zap.NewNop(), "timelogs", delivery(ack, "e30="), h, Options{RequeueOnFailure: requeue})

		assert.False(t, ok)
		assert.Equal(t, 0, ack.acked)
		assert.Equal(t, 1, ack.nacked)
		assert.Equal(t, requeue, ack.requeue)
	}
}

func TestProcessMessage_AckFailure(t *testing.T) {
	ack := &fakeAcknowledger{ackErr: amqp.ErrClosed}
	h := &MockHandler{}
	h.On("HandleMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ok := ProcessMessage(context.Background(), zap.NewNop(), "timelogs", delivery(ack, "e30="), h, Options{})
	assert.False(t, ok)
	assert.Equal(t, 0, ack.nacked)
}

func TestProcessMessage_EnvelopeBody(t *testing.T) {
	ack := &fakeAcknowledger{}
	h := &MockHandler{}

	var got models.Message
	var gotCtx models.DeliveryContext
	h.On("HandleMessage", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(models.Message)
		gotCtx = args.Get(2).(models.DeliveryContext)
	}).Return(nil)

	body := `{"data":"e30=","attributes":{"origin":"scheduler"},"message_id":"msg-42"}`
	require.True(t, ProcessMessage(context.Background(), zap.NewNop(), "timelogs", delivery(ack, body), h, Options{}))

	assert.Equal(t, "e30=", got.Data)
	assert.Equal(t, map[string]string{"origin": "scheduler"}, got.Attributes)
	assert.Equal(t, "msg-42", gotCtx.EventID)
	assert.Equal(t, "rabbitmq:timelogs", gotCtx.Source)
	assert.Equal(t, 1, gotCtx.DeliveryAttempt)
}

func TestDeliveryContext(t *testing.T) {
	d := amqp.Delivery{MessageId: "amqp-id", Redelivered: true}
	dctx := DeliveryContext("q", d, models.Message{})
	assert.Equal(t, "amqp-id", dctx.EventID)
	assert.Equal(t, 2, dctx.DeliveryAttempt)
	assert.False(t, dctx.Timestamp.IsZero())

	d = amqp.Delivery{Headers: amqp.Table{"x-delivery-count": int64(3)}}
	dctx = DeliveryContext("q", d, models.Message{})
	assert.NotEmpty(t, dctx.EventID)
	assert.Equal(t, 4, dctx.DeliveryAttempt)
}

func TestProcessMessage_FailureLogsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ack := &fakeAcknowledger{}
	h := &MockHandler{}
	h.On("HandleMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("store down"))

	ok := ProcessMessage(context.Background(), zap.New(core), "timelogs", delivery(ack, "e30="), h, Options{RequeueOnFailure: true})
	require.False(t, ok)

	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	warnings := logs.FilterMessage("Failed to process message from queue").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, true, warnings[0].ContextMap()["requeue"])
}
