package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/lookup"
)

// Lookuper runs a grouped timelog lookup
type Lookuper interface {
	Lookup(ctx context.Context) (*lookup.Result, error)
}

// TimelogsHandler serves the grouped timelog view synchronously
type TimelogsHandler struct {
	Lookup Lookuper
	Logger *zap.Logger
}

func NewTimelogsHandler(l Lookuper, logger *zap.Logger) *TimelogsHandler {
	return &TimelogsHandler{Lookup: l, Logger: logger}
}

// TimelogsResponse has the same shape as the bulk_timelog_lookup payload
type TimelogsResponse struct {
	Timelogs *lookup.GroupedTimelogs `json:"timelogs"`
	Message  string                  `json:"message"`
	Count    int                     `json:"count"`
}

// GetTimelogs handles GET /api/v1/timelogs
func (h *TimelogsHandler) GetTimelogs(c *fiber.Ctx) error {
	result, err := h.Lookup.Lookup(c.UserContext())
	if err != nil {
		h.Logger.Error("Failed to look up timelogs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch timelogs",
		})
	}

	return c.JSON(TimelogsResponse{
		Timelogs: result.Grouped,
		Message:  result.Message,
		Count:    result.Count,
	})
}
