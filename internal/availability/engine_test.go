package availability

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"consultdesk/internal/config"
	"consultdesk/internal/models"
	"consultdesk/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Friday.
var friday = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func testConfig() config.BookingConfig {
	return config.BookingConfig{
		WorkingDays:     []int{1, 2, 3, 4, 5},
		StartHour:       9,
		EndHour:         17,
		MeetingDuration: 60,
		SlotInterval:    60,
		DaysAheadToBook: 60,
		MinHoursNotice:  24,
		NotifyEmail:     "owner@example.com",
		Timezone:        "UTC",
	}
}

func newTestEngine(t *testing.T, cfg config.BookingConfig, now time.Time) (*Engine, *schedule.ManualClock) {
	t.Helper()
	clock := schedule.NewManualClock(now)
	e, err := NewEngine(cfg, clock)
	require.NoError(t, err)
	return e, clock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.StartHour = 17
	_, err := NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig()
	cfg.SlotInterval = 0
	_, err = NewEngine(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewEngine_Defaults(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	assert.Equal(t, config.DefaultCalendarURL, e.Config().CalendarURL)
	assert.Equal(t, config.DefaultEventTitle, e.Config().EventTitle)
	assert.Equal(t, config.DefaultLocation, e.Config().MeetingPlace)
}

func TestRenderMonth_Layout(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)

	grid := e.RenderMonth(models.CalendarCursor{Year: 2026, Month: time.October})
	assert.Equal(t, "October 2026", grid.Title)
	assert.Equal(t, []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, grid.Weekdays)
	// October 1st 2026 is a Thursday.
	assert.Equal(t, 4, grid.Blanks)
	assert.Len(t, grid.Days, 31)

	// November 1st 2026 is a Sunday: no blanks.
	nov := e.RenderMonth(models.CalendarCursor{Year: 2026, Month: time.November})
	assert.Equal(t, 0, nov.Blanks)
	assert.Len(t, nov.Days, 30)

	feb := e.RenderMonth(models.CalendarCursor{Year: 2028, Month: time.February})
	assert.Len(t, feb.Days, 29)
}

func TestRenderMonth_BlanksMatchFirstWeekday(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	cursor := models.CalendarCursor{Year: 2026, Month: time.January}
	for i := 0; i < 24; i++ {
		grid := e.RenderMonth(cursor)
		first := time.Date(cursor.Year, cursor.Month, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, int(first.Weekday()), grid.Blanks, cursor.Title())
		cursor = cursor.Next()
	}
}

func TestRenderMonth_NoticeAndHorizon(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)

	grid := e.RenderMonth(models.CalendarCursor{Year: 2026, Month: time.October})
	var selectable []int
	for _, c := range grid.Selectable() {
		selectable = append(selectable, c.Day)
	}
	// Today and the weekend are out; the next working day is Monday the 19th.
	assert.Equal(t, []int{19, 20, 21, 22, 23, 26, 27, 28, 29, 30}, selectable)

	today := grid.Days[15]
	assert.True(t, today.Today)
	assert.True(t, today.Disabled)
	assert.False(t, grid.Days[14].Today)

	// today + 60 days = December 15th, which is still in range.
	dec := e.RenderMonth(models.CalendarCursor{Year: 2026, Month: time.December})
	assert.False(t, dec.Days[14].Disabled)
	assert.True(t, dec.Days[15].Disabled)
	assert.True(t, dec.Days[30].Disabled)

	jan := e.RenderMonth(models.CalendarCursor{Year: 2027, Month: time.January})
	assert.Empty(t, jan.Selectable())

	sep := e.RenderMonth(models.CalendarCursor{Year: 2026, Month: time.September})
	assert.Empty(t, sep.Selectable())
}

func TestRenderMonth_NoticeIsExactInstant(t *testing.T) {
	cfg := testConfig()
	cfg.WorkingDays = []int{0, 1, 2, 3, 4, 5, 6}

	// 23:00 + 24h = tomorrow 23:00: tomorrow's midnight is too early.
	e, _ := newTestEngine(t, cfg, time.Date(2026, time.October, 16, 23, 0, 0, 0, time.UTC))
	assert.False(t, e.IsSelectable(day(2026, time.October, 17)))
	assert.True(t, e.IsSelectable(day(2026, time.October, 18)))

	// At midnight the bound is exactly tomorrow's midnight, which is allowed.
	e, _ = newTestEngine(t, cfg, day(2026, time.October, 16))
	assert.False(t, e.IsSelectable(day(2026, time.October, 16)))
	assert.True(t, e.IsSelectable(day(2026, time.October, 17)))
}

func TestRenderMonth_ZeroNoticeAllowsLaterToday(t *testing.T) {
	cfg := testConfig()
	cfg.MinHoursNotice = 0
	e, _ := newTestEngine(t, cfg, friday)
	// Today's midnight is before now, so today stays disabled.
	assert.False(t, e.IsSelectable(day(2026, time.October, 16)))
	assert.True(t, e.IsSelectable(day(2026, time.October, 19)))
}

func TestRenderMonth_RecomputesBoundsOnEveryCall(t *testing.T) {
	e, clock := newTestEngine(t, testConfig(), friday)
	cursor := models.CalendarCursor{Year: 2026, Month: time.October}

	assert.False(t, e.RenderMonth(cursor).Days[18].Disabled)

	clock.Advance(4 * 24 * time.Hour)
	grid := e.RenderMonth(cursor)
	assert.True(t, grid.Days[18].Disabled)
	assert.True(t, grid.Days[19].Today)
}

func TestRenderMonth_ZeroCursorUsesCurrentMonth(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	grid := e.RenderMonth(models.CalendarCursor{})
	assert.Equal(t, time.October, grid.Month)
	assert.Equal(t, 2026, grid.Year)
}

func TestSlots(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	slots := e.Slots()
	require.Len(t, slots, 8)
	assert.Equal(t, "9:00 AM", slots[0].Label)
	assert.Equal(t, 540, slots[0].Minutes)
	assert.Equal(t, "12:00 PM", slots[3].Label)
	assert.Equal(t, "1:00 PM", slots[4].Label)
	assert.Equal(t, "4:00 PM", slots[7].Label)
}

func TestSlots_UnevenInterval(t *testing.T) {
	cfg := testConfig()
	cfg.SlotInterval = 45
	e, _ := newTestEngine(t, cfg, friday)
	slots := e.Slots()
	// ceil(480 / 45)
	require.Len(t, slots, 11)
	assert.Equal(t, "9:45 AM", slots[1].Label)
	assert.Equal(t, "4:30 PM", slots[10].Label)
}

func TestFormatSlot(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "12:00 AM"},
		{30, "12:30 AM"},
		{545, "9:05 AM"},
		{720, "12:00 PM"},
		{810, "1:30 PM"},
		{1410, "11:30 PM"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSlot(tt.minutes))
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		label  string
		hour   int
		minute int
	}{
		{"12:00 AM", 0, 0},
		{"9:05 AM", 9, 5},
		{"12:00 PM", 12, 0},
		{"4:30 PM", 16, 30},
		{"11:30 PM", 23, 30},
	}
	for _, tt := range tests {
		h, m, err := ParseSlot(tt.label)
		require.NoError(t, err, tt.label)
		assert.Equal(t, tt.hour, h, tt.label)
		assert.Equal(t, tt.minute, m, tt.label)
	}

	for _, bad := range []string{"", "noon", "25:00 PM", "9:00"} {
		_, _, err := ParseSlot(bad)
		assert.ErrorIs(t, err, ErrInvalidSlotLabel, bad)
	}
}

func TestSelectDate(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	var sel models.Selection

	slots, err := e.SelectDate(&sel, day(2026, time.October, 20))
	require.NoError(t, err)
	assert.Len(t, slots, 8)
	require.NotNil(t, sel.Date)
	assert.Equal(t, day(2026, time.October, 20), *sel.Date)

	require.NoError(t, e.SelectTime(&sel, "10:00 AM"))
	assert.True(t, sel.Complete())

	// A new date always drops the chosen time.
	_, err = e.SelectDate(&sel, day(2026, time.October, 21))
	require.NoError(t, err)
	assert.Empty(t, sel.Time)
	assert.False(t, sel.Complete())
}

func TestSelectDate_Disabled(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)
	sel := models.Selection{Date: &d, Time: "10:00 AM"}

	_, err := e.SelectDate(&sel, day(2026, time.October, 24))
	assert.ErrorIs(t, err, ErrDateUnavailable)
	assert.Equal(t, d, *sel.Date)
	assert.Equal(t, "10:00 AM", sel.Time)
}

func TestSelectTime_Errors(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	var sel models.Selection
	assert.ErrorIs(t, e.SelectTime(&sel, "10:00 AM"), ErrNoDateSelected)

	_, err := e.SelectDate(&sel, day(2026, time.October, 20))
	require.NoError(t, err)
	assert.ErrorIs(t, e.SelectTime(&sel, "5:00 PM"), ErrUnknownSlot)
	assert.Empty(t, sel.Time)
}

func TestParseDate(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d, err := e.ParseDate("2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.October, 20), d)

	_, err = e.ParseDate("20/10/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func testForm() models.BookingForm {
	return models.BookingForm{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Phone:   "+44 20 7946 0000",
		Service: "Social Media Management",
	}
}

func TestBuildCalendarEvent(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)

	ev, err := e.BuildCalendarEvent(models.Selection{Date: &d, Time: "4:30 PM"}, testForm())
	require.NoError(t, err)

	assert.Equal(t, "Consultation - Ada Lovelace", ev.Title)
	assert.Equal(t, "Online Meeting", ev.Location)
	assert.Equal(t, time.Date(2026, time.October, 20, 16, 30, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Date(2026, time.October, 20, 17, 30, 0, 0, time.UTC), ev.End)

	assert.True(t, strings.HasPrefix(ev.URL, "https://calendar.google.com/calendar/render?action=TEMPLATE&text=Consultation%20-%20Ada%20Lovelace&"))
	assert.Contains(t, ev.URL, "&dates=20261020T163000/20261020T173000&")
	assert.True(t, strings.HasSuffix(ev.URL, "&sf=true&output=xml"))
	assert.NotContains(t, ev.URL, "+")

	u, err := url.Parse(ev.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Online Meeting", q.Get("location"))
	assert.Equal(t, "UTC", q.Get("ctz"))
	assert.Equal(t,
		"Name: Ada Lovelace\nEmail: ada@example.com\nPhone: +44 20 7946 0000\nCompany: N/A\nService: Social Media Management\nMessage: N/A",
		q.Get("details"))
}

// 20:00 UTC on Friday is already 01:30 on Saturday in Kolkata: the calendar
// and the notice window follow the local day, not the UTC one.
func TestKolkataLocalDay(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Asia/Kolkata"
	cfg.MinHoursNotice = 48
	e, _ := newTestEngine(t, cfg, time.Date(2026, time.October, 16, 20, 0, 0, 0, time.UTC))

	assert.Equal(t, "2026-10-17", e.Today().Format(models.DateLayout))
	assert.Equal(t, "Asia/Kolkata", e.Today().Location().String())

	grid := e.RenderMonth(e.CurrentCursor())
	assert.Equal(t, "October 2026", grid.Title)
	assert.False(t, grid.Days[15].Today)
	assert.True(t, grid.Days[16].Today)
	// the notice ends at 01:30 local on Monday the 19th
	assert.True(t, grid.Days[18].Disabled)
	assert.False(t, grid.Days[19].Disabled)

	monday, err := e.ParseDate("2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", monday.Location().String())
	assert.False(t, e.IsSelectable(monday))

	var sel models.Selection
	_, err = e.SelectDate(&sel, monday)
	assert.ErrorIs(t, err, ErrDateUnavailable)

	tuesday, err := e.ParseDate("2026-10-20")
	require.NoError(t, err)
	_, err = e.SelectDate(&sel, tuesday)
	require.NoError(t, err)
	require.NoError(t, e.SelectTime(&sel, "9:00 AM"))

	// selections are stored as JSON between requests
	raw, err := json.Marshal(sel)
	require.NoError(t, err)
	var stored models.Selection
	require.NoError(t, json.Unmarshal(raw, &stored))

	ev, err := e.BuildCalendarEvent(stored, testForm())
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(time.Date(2026, time.October, 20, 3, 30, 0, 0, time.UTC)), "start %s", ev.Start)
	assert.True(t, ev.End.Equal(time.Date(2026, time.October, 20, 4, 30, 0, 0, time.UTC)), "end %s", ev.End)
	assert.Contains(t, ev.URL, "&dates=20261020T090000/20261020T100000&")
	assert.Contains(t, ev.URL, "&ctz=Asia%2FKolkata&")
}

func TestBuildCalendarEvent_RollsIntoNextDay(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)

	ev, err := e.BuildCalendarEvent(models.Selection{Date: &d, Time: "11:30 PM"}, testForm())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 21, 0, 30, 0, 0, time.UTC), ev.End)
	assert.Contains(t, ev.URL, "&dates=20261020T233000/20261021T003000&")
}

func TestBuildCalendarEvent_LongMeeting(t *testing.T) {
	cfg := testConfig()
	cfg.MeetingDuration = 150
	e, _ := newTestEngine(t, cfg, friday)
	d := day(2026, time.October, 20)

	ev, err := e.BuildCalendarEvent(models.Selection{Date: &d, Time: "9:45 AM"}, testForm())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 20, 12, 15, 0, 0, time.UTC), ev.End)
}

func TestBuildCalendarEvent_OptionalFields(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)
	form := testForm()
	form.Company = "Analytical Engines Ltd"
	form.Message = "Let's talk & plan"

	ev, err := e.BuildCalendarEvent(models.Selection{Date: &d, Time: "9:00 AM"}, form)
	require.NoError(t, err)
	assert.Contains(t, ev.Details, "Company: Analytical Engines Ltd\n")
	assert.True(t, strings.HasSuffix(ev.Details, "Message: Let's talk & plan"))

	u, err := url.Parse(ev.URL)
	require.NoError(t, err)
	assert.Equal(t, ev.Details, u.Query().Get("details"))
}

func TestBuildCalendarEvent_Incomplete(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)

	_, err := e.BuildCalendarEvent(models.Selection{}, testForm())
	assert.ErrorIs(t, err, ErrIncompleteSelection)

	_, err = e.BuildCalendarEvent(models.Selection{Date: &d}, testForm())
	assert.ErrorIs(t, err, ErrIncompleteSelection)

	_, err = e.BuildCalendarEvent(models.Selection{Time: "9:00 AM"}, testForm())
	assert.ErrorIs(t, err, ErrIncompleteSelection)
}

func TestValidateForm(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	assert.NoError(t, e.ValidateForm(testForm()))

	form := testForm()
	form.Name = "   "
	form.Email = "not-an-email"
	err := e.ValidateForm(form)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 2)
	assert.Equal(t, "name", verrs[0].Field)
	assert.Equal(t, "name is required", verrs[0].Message)
	assert.Equal(t, "email", verrs[1].Field)
	assert.Equal(t, "email must be a valid email address", verrs[1].Message)
}

func TestValidateField(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	assert.NoError(t, e.ValidateField(models.FormStepName, "Ada"))
	assert.NoError(t, e.ValidateField(models.FormStepCompany, ""))
	assert.NoError(t, e.ValidateField(models.FormStepMessage, ""))

	err := e.ValidateField(models.FormStepPhone, " ")
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "phone is required", verrs[0].Message)

	err = e.ValidateField(models.FormStepEmail, "ada@")
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "email must be a valid email address", verrs[0].Message)
}

func TestNotification(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(), friday)
	d := day(2026, time.October, 20)
	sel := models.Selection{Date: &d, Time: "10:00 AM"}

	ev, err := e.BuildCalendarEvent(sel, testForm())
	require.NoError(t, err)

	n := e.Notification("sess-1", sel, testForm(), ev, "owner@example.com")
	assert.Equal(t, "sess-1", n.SessionID)
	assert.Equal(t, "owner@example.com", n.NotifyTo)
	assert.Equal(t, "Tuesday, October 20, 2026", n.Date)
	assert.Equal(t, "10:00 AM", n.Time)
	assert.Equal(t, "N/A", n.Company)
	assert.Equal(t, "N/A", n.Message)
	assert.Equal(t, ev.URL, n.CalendarURL)
	assert.Equal(t, friday, n.SubmittedAt)
}
