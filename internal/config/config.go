package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Booking    BookingConfig    `yaml:"booking"`
	Chatbot    ChatbotConfig    `yaml:"chatbot"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	SendGrid   SendGridConfig   `yaml:"sendgrid"`
	Exports    ExportConfig     `yaml:"exports"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// BookingConfig describes when consultations can be booked. It is loaded once
// and never mutated afterwards.
type BookingConfig struct {
	WorkingDays     []int  `yaml:"working_days" json:"working_days" validate:"required,min=1,dive,min=0,max=6"` // 0=Sunday ... 6=Saturday
	StartHour       int    `yaml:"start_hour" json:"start_hour" validate:"min=0,max=23"`
	EndHour         int    `yaml:"end_hour" json:"end_hour" validate:"min=0,max=23,gtfield=StartHour"`
	MeetingDuration int    `yaml:"meeting_duration" json:"meeting_duration" validate:"gt=0"` // minutes
	SlotInterval    int    `yaml:"slot_interval" json:"slot_interval" validate:"gt=0"`       // minutes
	DaysAheadToBook int    `yaml:"days_ahead_to_book" json:"days_ahead_to_book" validate:"min=0"`
	MinHoursNotice  int    `yaml:"min_hours_notice" json:"min_hours_notice" validate:"min=0"`
	NotifyEmail     string `yaml:"notify_email" json:"-" validate:"omitempty,email"`
	Timezone        string `yaml:"timezone" json:"timezone" validate:"omitempty,timezone"`

	CalendarURL  string `yaml:"calendar_url" json:"-"`
	EventTitle   string `yaml:"event_title" json:"-"`
	MeetingPlace string `yaml:"location" json:"location"`
}

type ChatbotConfig struct {
	BotName      string        `yaml:"bot_name"`
	TypingDelay  time.Duration `yaml:"typing_delay"`
	InputDelay   time.Duration `yaml:"input_delay"`
	ServicesFile string        `yaml:"services_file"`
}

type SessionConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	RateLimitMessages int           `yaml:"rate_limit_messages"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DatabaseConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	Debug       bool   `yaml:"debug"`
	OwnerChatID int64  `yaml:"owner_chat_id"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// WorkerConfig controls notification delivery. Channels lists the notifiers
// a submitted booking fans out to (email, sheets, log).
type WorkerConfig struct {
	Channels      []string      `yaml:"channels"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

type ExportConfig struct {
	Path   string `yaml:"path"`
	Months int    `yaml:"months"`
}

const (
	DefaultCalendarURL = "https://calendar.google.com/calendar/render"
	DefaultEventTitle  = "Consultation"
	DefaultLocation    = "Online Meeting"
)

func Load(configPath string) (*Config, error) {
	// .env is optional; only a malformed file is an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := c.Booking.Validate(); err != nil {
		return err
	}
	if c.Chatbot.TypingDelay < 0 || c.Chatbot.InputDelay < 0 {
		return errors.New("chatbot delays must not be negative")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	return nil
}

// bookingValidator reports fields by their yaml keys.
var bookingValidator = newBookingValidator()

func newBookingValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate rejects configurations that would produce an empty, infinite or
// malformed slot list.
func (b BookingConfig) Validate() error {
	err := bookingValidator.Struct(b)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("booking.%s: %v fails %s", fe.Field(), fe.Value(), rule))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsWorkingDay reports whether bookings are accepted on the weekday.
func (b BookingConfig) IsWorkingDay(day time.Weekday) bool {
	for _, d := range b.WorkingDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "consultdesk"
	}
	if c.Booking.CalendarURL == "" {
		c.Booking.CalendarURL = DefaultCalendarURL
	}
	if c.Booking.EventTitle == "" {
		c.Booking.EventTitle = DefaultEventTitle
	}
	if c.Booking.MeetingPlace == "" {
		c.Booking.MeetingPlace = DefaultLocation
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}

	if c.Chatbot.BotName == "" {
		c.Chatbot.BotName = "Madame Marketing Assistant"
	}
	if c.Chatbot.TypingDelay == 0 {
		c.Chatbot.TypingDelay = time.Second
	}
	if c.Chatbot.InputDelay == 0 {
		c.Chatbot.InputDelay = 500 * time.Millisecond
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Session.RateLimitMessages == 0 {
		c.Session.RateLimitMessages = 20
	}
	if c.Session.RateLimitWindow == 0 {
		c.Session.RateLimitWindow = time.Minute
	}

	if c.Database.Path == "" {
		c.Database.Path = "data/outbox.db"
	}
	if c.Database.Backup.StoragePath == "" {
		c.Database.Backup.StoragePath = "data/backups"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = c.Chatbot.BotName
	}
	if len(c.Worker.Channels) == 0 {
		c.Worker.Channels = []string{"log"}
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "data/exports"
	}
	if c.Exports.Months == 0 {
		c.Exports.Months = 3
	}
}
