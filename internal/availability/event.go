package availability

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"consultdesk/internal/models"
)

const eventTimeLayout = "20060102T150405"

// BuildCalendarEvent turns a complete selection and the contact form into a
// calendar template link. Nothing is sent anywhere; the link is opened by the
// visitor.
func (e *Engine) BuildCalendarEvent(sel models.Selection, form models.BookingForm) (models.CalendarEvent, error) {
	if !sel.Complete() {
		return models.CalendarEvent{}, ErrIncompleteSelection
	}
	hour, minute, err := ParseSlot(sel.Time)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	d := sel.Date.In(e.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, e.loc)
	end := start.Add(time.Duration(e.cfg.MeetingDuration) * time.Minute)

	ev := models.CalendarEvent{
		Title:    fmt.Sprintf("%s - %s", e.cfg.EventTitle, form.Name),
		Start:    start,
		End:      end,
		Details:  eventDetails(form),
		Location: e.cfg.MeetingPlace,
	}
	ev.URL = e.calendarURL(ev)
	return ev, nil
}

func (e *Engine) calendarURL(ev models.CalendarEvent) string {
	var b strings.Builder
	b.WriteString(e.cfg.CalendarURL)
	b.WriteString("?action=TEMPLATE")
	b.WriteString("&text=" + encodeComponent(ev.Title))
	b.WriteString("&dates=" + ev.Start.Format(eventTimeLayout) + "/" + ev.End.Format(eventTimeLayout))
	b.WriteString("&details=" + encodeComponent(ev.Details))
	b.WriteString("&location=" + encodeComponent(ev.Location))
	b.WriteString("&ctz=" + encodeComponent(e.loc.String()))
	b.WriteString("&sf=true&output=xml")
	return b.String()
}

func eventDetails(form models.BookingForm) string {
	return strings.Join([]string{
		"Name: " + form.Name,
		"Email: " + form.Email,
		"Phone: " + form.Phone,
		"Company: " + orNA(form.Company),
		"Service: " + form.Service,
		"Message: " + orNA(form.Message),
	}, "\n")
}

// encodeComponent escapes a query value with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotApplicable
	}
	return s
}

// Notification builds the payload handed to notification dispatch.
func (e *Engine) Notification(sessionID string, sel models.Selection, form models.BookingForm, ev models.CalendarEvent, notifyTo string) models.BookingNotification {
	n := models.BookingNotification{
		SessionID:   sessionID,
		NotifyTo:    notifyTo,
		Name:        form.Name,
		Email:       form.Email,
		Phone:       form.Phone,
		Company:     orNA(form.Company),
		Service:     form.Service,
		Message:     orNA(form.Message),
		Time:        sel.Time,
		CalendarURL: ev.URL,
		SubmittedAt: e.clock.Now(),
	}
	if sel.Date != nil {
		n.Date = sel.Date.In(e.loc).Format(models.DisplayLayout)
	}
	return n
}
