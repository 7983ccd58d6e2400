package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"consultdesk/internal/availability"
	"consultdesk/internal/dialogue"
	"consultdesk/internal/models"
	"consultdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.Name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": results})
}

func (s *HTTPServer) handleConfig(w http.ResponseWriter, _ *http.Request) {
	engine := s.sessions.Booking()
	writeJSON(w, http.StatusOK, map[string]any{
		"booking":  engine.Config(),
		"slots":    engine.Slots(),
		"today":    engine.Today().Format(models.DateLayout),
		"bot_name": s.sessions.Dialogue().BotName(),
	})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": s.sessions.Dialogue().Catalog().All()})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}

	months := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = n
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, months); err != nil {
		s.logger.Error().Err(err).Msg("availability export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.exporter.FileName()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel string `json:"channel"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.sessions.Create(r.Context(), body.Channel)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleOpenBooking(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.OpenBooking(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleCloseBooking(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.CloseBooking(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Calendar(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleShiftMonth(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.sessions.ShiftMonth(r.Context(), chi.URLParam(r, "id"), delta)
		s.respond(w, view, err)
	}
}

func (s *HTTPServer) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Date) == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	view, err := s.sessions.SelectDate(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(body.Date))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSelectTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Time string `json:"time"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Time) == "" {
		writeError(w, http.StatusBadRequest, "time is required")
		return
	}

	view, err := s.sessions.SelectTime(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(body.Time))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var form models.BookingForm
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.sessions.Submit(r.Context(), chi.URLParam(r, "id"), form)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.ChatView(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.OpenChat(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleCloseChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.CloseChat(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.sessions.SendMessage(r.Context(), chi.URLParam(r, "id"), body.Text)
	s.respond(w, view, err)
}

func (s *HTTPServer) handleSelectService(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.SelectService(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "key"))
	s.respond(w, view, err)
}

func (s *HTTPServer) respond(w http.ResponseWriter, view any, err error) {
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as 500 without details.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verrs availability.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verrs,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dialogue.ErrUnknownService):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrUnknownSlot),
		errors.Is(err, dialogue.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, availability.ErrDateUnavailable),
		errors.Is(err, availability.ErrNoDateSelected),
		errors.Is(err, availability.ErrIncompleteSelection),
		errors.Is(err, service.ErrBookingClosed),
		errors.Is(err, service.ErrChatClosed),
		errors.Is(err, service.ErrFormNotStarted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
