package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBooking() BookingConfig {
	return BookingConfig{
		WorkingDays:     []int{1, 2, 3, 4, 5},
		StartHour:       9,
		EndHour:         17,
		MeetingDuration: 60,
		SlotInterval:    60,
		DaysAheadToBook: 60,
		MinHoursNotice:  24,
		NotifyEmail:     "owner@example.com",
		Timezone:        "Asia/Kolkata",
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("NOTIFY_EMAIL", "studio@example.com")

	yamlContent := `
app:
  name: "consultdesk-test"
booking:
  working_days: [1, 2, 3, 4, 5]
  start_hour: 9
  end_hour: 17
  meeting_duration: 60
  slot_interval: 30
  days_ahead_to_book: 60
  min_hours_notice: 24
  notify_email: "${NOTIFY_EMAIL}"
  timezone: "Asia/Kolkata"
chatbot:
  typing_delay: 2s
database:
  path: "test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "consultdesk-test", cfg.App.Name)
	assert.Equal(t, "studio@example.com", cfg.Booking.NotifyEmail)
	assert.Equal(t, 30, cfg.Booking.SlotInterval)
	assert.Equal(t, 2*time.Second, cfg.Chatbot.TypingDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Chatbot.InputDelay)
	assert.Equal(t, DefaultCalendarURL, cfg.Booking.CalendarURL)
	assert.Equal(t, DefaultLocation, cfg.Booking.MeetingPlace)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, []string{"log"}, cfg.Worker.Channels)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, "data/backups", cfg.Database.Backup.StoragePath)
}

func TestLoadConfig_FailsFastOnInvalidHours(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
booking:
  working_days: [1]
  start_hour: 17
  end_hour: 9
  meeting_duration: 60
  slot_interval: 60
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBookingConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *BookingConfig)
		field  string
	}{
		{name: "valid", mutate: func(b *BookingConfig) {}},
		{name: "no working days", mutate: func(b *BookingConfig) { b.WorkingDays = nil }, field: "booking.working_days"},
		{name: "weekday out of range", mutate: func(b *BookingConfig) { b.WorkingDays = []int{7} }, field: "booking.working_days[0]"},
		{name: "start equals end", mutate: func(b *BookingConfig) { b.EndHour = b.StartHour }, field: "booking.end_hour"},
		{name: "end hour out of range", mutate: func(b *BookingConfig) { b.EndHour = 24 }, field: "booking.end_hour"},
		{name: "zero interval", mutate: func(b *BookingConfig) { b.SlotInterval = 0 }, field: "booking.slot_interval"},
		{name: "zero duration", mutate: func(b *BookingConfig) { b.MeetingDuration = 0 }, field: "booking.meeting_duration"},
		{name: "negative horizon", mutate: func(b *BookingConfig) { b.DaysAheadToBook = -1 }, field: "booking.days_ahead_to_book"},
		{name: "negative notice", mutate: func(b *BookingConfig) { b.MinHoursNotice = -1 }, field: "booking.min_hours_notice"},
		{name: "zero notice and horizon", mutate: func(b *BookingConfig) { b.MinHoursNotice = 0; b.DaysAheadToBook = 0 }},
		{name: "unknown timezone", mutate: func(b *BookingConfig) { b.Timezone = "Mars/Olympus" }, field: "booking.timezone"},
		{name: "empty timezone is UTC", mutate: func(b *BookingConfig) { b.Timezone = "" }},
		{name: "bad notify email", mutate: func(b *BookingConfig) { b.NotifyEmail = "not-an-email" }, field: "booking.notify_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(&b)
			err := b.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBookingConfigValidate_ReportsEveryField(t *testing.T) {
	b := validBooking()
	b.SlotInterval = 0
	b.MinHoursNotice = -3

	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking.slot_interval: 0 fails gt=0")
	assert.Contains(t, err.Error(), "booking.min_hours_notice: -3 fails min=0")
}

func TestBookingConfig_IsWorkingDay(t *testing.T) {
	b := validBooking()
	assert.True(t, b.IsWorkingDay(time.Monday))
	assert.True(t, b.IsWorkingDay(time.Friday))
	assert.False(t, b.IsWorkingDay(time.Saturday))
	assert.False(t, b.IsWorkingDay(time.Sunday))
}

func TestBookingConfig_Location(t *testing.T) {
	b := validBooking()
	assert.Equal(t, "Asia/Kolkata", b.Location().String())
}
