package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/handlers"
	"github.com/mathewdenison/employees-timesheet-list/internal/lookup"
	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

type nopHandler struct{}

func (nopHandler) HandleMessage(context.Context, models.Message, models.DeliveryContext) error {
	return nil
}

type emptyLookup struct{}

func (emptyLookup) Lookup(context.Context) (*lookup.Result, error) {
	return &lookup.Result{Grouped: lookup.NewGroupedTimelogs(), Message: lookup.SummaryMessage(0)}, nil
}

func TestSetupRoutes(t *testing.T) {
	app := fiber.New()
	SetupRoutes(app,
		handlers.NewHealthHandler(map[string]handlers.HealthChecker{}),
		handlers.NewPubSubHandler(nopHandler{}, zap.NewNop()),
		handlers.NewTimelogsHandler(emptyLookup{}, zap.NewNop()),
	)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/", "", http.StatusOK},
		{http.MethodGet, "/api/v1/timelogs", "", http.StatusOK},
		{http.MethodPost, "/api/v1/pubsub/push", `{"message":{"data":"e30="},"subscription":"s"}`, http.StatusNoContent},
		{http.MethodGet, "/api/v1/pubsub/push", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
