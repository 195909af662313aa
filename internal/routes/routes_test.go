package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ananth-NQI/soko-ussd/internal/handlers"
	"github.com/Ananth-NQI/soko-ussd/internal/logger"
	"github.com/Ananth-NQI/soko-ussd/internal/services"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/Ananth-NQI/soko-ussd/internal/ussd"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, secret string) *fiber.App {
	t.Helper()
	log := logger.NewNop()
	store := storage.NewMemoryStore()
	sessions := session.NewMemoryStore(0, 0, log)

	notifier := services.NewNotificationService(services.NewLogSender(log), 1, 8, log)
	t.Cleanup(notifier.Close)

	machine := ussd.NewMachine(store, services.NewPINService(store), log)
	app := fiber.New()
	SetupRoutes(app,
		handlers.NewUSSDHandler(sessions, machine, notifier, log),
		handlers.NewHealthHandler("test", "memory", store, sessions),
		secret,
	)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t, "")

	status, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)
	assert.Contains(t, body, `"active":0`)

	status, body = get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "soko_ussd_active_sessions")

	status, body = get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"ussd":"/ussd"`)
}

func TestUSSDRoute_SignatureRequiredWhenSecretSet(t *testing.T) {
	form := "sessionId=ATUid_1&phoneNumber=%2B255700000001&text="

	for _, tc := range []struct {
		secret string
		want   int
	}{
		{"", http.StatusOK},
		{"s3cret", http.StatusUnauthorized},
	} {
		req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := newApp(t, tc.secret).Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "secret %q", tc.secret)
	}
}
