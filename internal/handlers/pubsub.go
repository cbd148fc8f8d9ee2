package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/consumer"
	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

// PubSubHandler accepts Google Pub/Sub push deliveries
type PubSubHandler struct {
	Handler consumer.MessageHandler
	Logger  *zap.Logger
}

func NewPubSubHandler(handler consumer.MessageHandler, logger *zap.Logger) *PubSubHandler {
	return &PubSubHandler{Handler: handler, Logger: logger}
}

// Push handles POST /api/v1/pubsub/push. Pub/Sub treats any non-2xx
// response as a nack and redelivers.
func (h *PubSubHandler) Push(c *fiber.Ctx) error {
	var envelope models.PushEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		h.Logger.Warn("Rejecting malformed push envelope", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid push envelope",
		})
	}

	msg := envelope.Message.ToMessage()
	dctx := models.DeliveryContext{
		EventID:   msg.MessageID,
		Source:    "pubsub:" + envelope.Subscription,
		Timestamp: msg.PublishTime,
	}
	if attempt, err := strconv.Atoi(c.Get("X-Goog-Delivery-Attempt")); err == nil {
		dctx.DeliveryAttempt = attempt
	}

	if err := h.Handler.HandleMessage(c.UserContext(), msg, dctx); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
