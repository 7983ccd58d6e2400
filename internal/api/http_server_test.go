package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"consultdesk/internal/availability"
	"consultdesk/internal/config"
	"consultdesk/internal/dialogue"
	"consultdesk/internal/events"
	"consultdesk/internal/export"
	"consultdesk/internal/models"
	"consultdesk/internal/repository"
	"consultdesk/internal/schedule"
	"consultdesk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Friday.
var t0 = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	clock   *schedule.ManualClock
	bus     *events.EventBus
}

func newTestEnv(t *testing.T, apiCfg config.APIConfig, checks ...HealthCheck) *testEnv {
	t.Helper()
	clock := schedule.NewManualClock(t0)
	booking, err := availability.NewEngine(config.BookingConfig{
		WorkingDays:     []int{1, 2, 3, 4, 5},
		StartHour:       9,
		EndHour:         17,
		MeetingDuration: 60,
		SlotInterval:    60,
		DaysAheadToBook: 60,
		MinHoursNotice:  24,
		NotifyEmail:     "owner@example.com",
		Timezone:        "UTC",
	}, clock)
	require.NoError(t, err)

	dlg := dialogue.NewEngine(config.ChatbotConfig{
		BotName:     "Madame Marketing Assistant",
		TypingDelay: time.Second,
		InputDelay:  500 * time.Millisecond,
	}, nil)

	bus := events.NewEventBus()
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(0), booking, dlg, bus, clock,
		config.SessionConfig{RateLimitMessages: 100, RateLimitWindow: time.Minute}, nil)
	exporter := export.NewExporter(booking, config.ExportConfig{Path: t.TempDir(), Months: 2}, nil)

	srv := NewHTTPServer(apiCfg, sessions, exporter, nil, checks...)
	return &testEnv{handler: srv.Handler(), clock: clock, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session models.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{}, HealthCheck{Name: "sessions", Check: func(context.Context) error { return nil }})
	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	env = newTestEnv(t, config.APIConfig{}, HealthCheck{Name: "outbox", Check: func(context.Context) error { return errors.New("disk full") }})
	rec = env.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "disk full", body.Checks["outbox"])
}

func TestConfigAndServices(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "owner@example.com")

	var cfg struct {
		Slots []models.TimeSlot `json:"slots"`
		Today string            `json:"today"`
	}
	decode(t, rec, &cfg)
	assert.Len(t, cfg.Slots, 8)
	assert.Equal(t, "2026-10-16", cfg.Today)

	rec = env.do(t, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var services struct {
		Services []models.Service `json:"services"`
	}
	decode(t, rec, &services)
	assert.NotEmpty(t, services.Services)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/api/v1/availability/export?months=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "availability_2026-10-16.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = env.do(t, http.MethodGet, "/api/v1/availability/export?months=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	id := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/missing/booking/open", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	id := env.createSession(t)
	base := "/api/v1/sessions/" + id + "/booking"

	rec := env.do(t, http.MethodGet, base+"/calendar", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "widget must be opened first")

	rec = env.do(t, http.MethodPost, base+"/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view service.BookingView
	decode(t, rec, &view)
	require.NotNil(t, view.Grid)
	assert.Equal(t, "October 2026", view.Grid.Title)
	assert.Equal(t, 4, view.Grid.Blanks)

	rec = env.do(t, http.MethodPost, base+"/calendar/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.BookingView{}
	decode(t, rec, &view)
	assert.Equal(t, "November 2026", view.Grid.Title)

	rec = env.do(t, http.MethodPost, base+"/calendar/prev", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/date", `{"date":"16-10-2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/date", `{"date":"2026-10-17"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "Saturday is not bookable")

	rec = env.do(t, http.MethodPost, base+"/submit", `{"name":"Ada"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing selected yet")

	rec = env.do(t, http.MethodPost, base+"/date", `{"date":"2026-10-19"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.BookingView{}
	decode(t, rec, &view)
	assert.Len(t, view.Slots, 8)
	assert.False(t, view.CanSubmit)

	rec = env.do(t, http.MethodPost, base+"/time", `{"time":"7:00 PM"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/time", `{"time":"2:00 PM"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.BookingView{}
	decode(t, rec, &view)
	assert.True(t, view.CanSubmit)
	assert.Equal(t, "Monday, October 19, 2026 at 2:00 PM", view.Summary)

	rec = env.do(t, http.MethodPost, base+"/submit", `{"name":"Ada","email":"not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var verr struct {
		Fields []availability.ValidationError `json:"fields"`
	}
	decode(t, rec, &verr)
	assert.NotEmpty(t, verr.Fields)

	var mu sync.Mutex
	var submitted []models.BookingNotification
	env.bus.Subscribe(events.EventBookingSubmitted, func(ev *events.Event) error {
		var n models.BookingNotification
		if err := ev.Decode(&n); err != nil {
			return err
		}
		mu.Lock()
		submitted = append(submitted, n)
		mu.Unlock()
		return nil
	})

	rec = env.do(t, http.MethodPost, base+"/submit",
		`{"name":"Ada Lovelace","email":"ada@example.com","phone":"+1 555 0100","service":"Brand Strategy"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.SubmitResult
	decode(t, rec, &result)
	assert.Contains(t, result.Event.URL, "action=TEMPLATE")

	mu.Lock()
	require.Len(t, submitted, 1)
	assert.Equal(t, "ada@example.com", submitted[0].Email)
	mu.Unlock()

	rec = env.do(t, http.MethodGet, base+"/calendar", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "widget closes after submit")
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	id := env.createSession(t)
	base := "/api/v1/sessions/" + id + "/chat"

	rec := env.do(t, http.MethodPost, base+"/messages", `{"text":"hello"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "chat must be opened first")

	rec = env.do(t, http.MethodPost, base+"/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view service.ChatView
	decode(t, rec, &view)
	assert.True(t, view.Open)
	assert.NotZero(t, view.Pending)

	env.clock.Advance(10 * time.Second)
	rec = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.ChatView{}
	decode(t, rec, &view)
	assert.NotEmpty(t, view.Delivered)
	assert.Zero(t, view.Pending)

	rec = env.do(t, http.MethodPost, base+"/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/services/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/messages", `{"text":"how much does it cost?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.ChatView{}
	decode(t, rec, &view)
	assert.NotZero(t, view.Pending)

	rec = env.do(t, http.MethodPost, base+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = service.ChatView{}
	decode(t, rec, &view)
	assert.False(t, view.Open)
	assert.Zero(t, view.Pending)
}

func TestBadJSON(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/booking/date", `{"date":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/booking/date", `{"day":"2026-10-19"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2}})

	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/sessions", "").Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/sessions", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/v1/sessions", "").Code)

	// Public endpoints are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/services", "").Code)
}

func TestNotFoundAndMethod(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodPost, "/api/v1/services", "").Code)
}
