package sqspoller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

const queueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/timelog-lookup"

type MockSQSClient struct {
	mock.Mock
}

func (m *MockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) HandleMessage(ctx context.Context, msg models.Message, dctx models.DeliveryContext) error {
	return m.Called(ctx, msg, dctx).Error(0)
}

func testConfig() *config.SQSConfig {
	return &config.SQSConfig{QueueURL: queueURL, WaitTimeSeconds: 20, MaxMessages: 10, VisibilityTimeout: 60}
}

func sqsMessage(id, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
		Attributes: map[string]string{
			"SentTimestamp":           "1709899200000",
			"ApproximateReceiveCount": "2",
		},
	}
}

func TestPollOnce_DeletesOnlySuccessful(t *testing.T) {
	client := &MockSQSClient{}
	handler := &MockHandler{}

	client.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return aws.ToString(in.QueueUrl) == queueURL && in.MaxNumberOfMessages == 10 && in.WaitTimeSeconds == 20
	})).Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{
		sqsMessage("ok", "e30="),
		sqsMessage("bad", "!!!"),
	}}, nil)

	handler.On("HandleMessage", mock.Anything, models.Message{Data: "e30="}, mock.Anything).Return(nil)
	handler.On("HandleMessage", mock.Anything, models.Message{Data: "!!!"}, mock.Anything).Return(errors.New("decode failed"))

	client.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return aws.ToString(in.ReceiptHandle) == "rh-ok"
	})).Return(&sqs.DeleteMessageOutput{}, nil)

	p := New(testConfig(), client, handler, zap.NewNop())
	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	client.AssertNumberOfCalls(t, "DeleteMessage", 1)
	handler.AssertExpectations(t)
}

func TestPollOnce_ReceiveError(t *testing.T) {
	client := &MockSQSClient{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	p := New(testConfig(), client, &MockHandler{}, zap.NewNop())
	n, err := p.PollOnce(context.Background())
	assert.EqualError(t, err, "throttled")
	assert.Equal(t, 0, n)
}

func TestDeliveryContext(t *testing.T) {
	dctx := deliveryContext(sqsMessage("abc", "e30="), models.Message{})

	assert.Equal(t, "abc", dctx.EventID)
	assert.Equal(t, "sqs", dctx.Source)
	assert.Equal(t, 2, dctx.DeliveryAttempt)
	assert.True(t, time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC).Equal(dctx.Timestamp), dctx.Timestamp)

	dctx = deliveryContext(sqsMessage("abc", ""), models.Message{MessageID: "envelope-id"})
	assert.Equal(t, "envelope-id", dctx.EventID)
}

func TestRun_RequiresQueueURL(t *testing.T) {
	p := New(&config.SQSConfig{}, &MockSQSClient{}, &MockHandler{}, zap.NewNop())
	assert.EqualError(t, p.Run(context.Background()), "SQS queue URL is required")
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := &MockSQSClient{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&sqs.ReceiveMessageOutput{}, nil)

	p := New(testConfig(), client, &MockHandler{}, zap.NewNop())
	assert.NoError(t, p.Run(ctx))
	client.AssertNumberOfCalls(t, "ReceiveMessage", 1)
}
