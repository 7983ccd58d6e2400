package models

const (
	TaskStatusPending    = "pending"
	TaskStatusRetry      = "retry"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

const (
	ChannelEmail    = "email"
	ChannelSheets   = "sheets"
	ChannelLog      = "log"
	ChannelTelegram = "telegram"
)

const (
	SessionChannelWeb      = "web"
	SessionChannelTelegram = "telegram"
)

const (
	DayStatusAvailable   = "available"
	DayStatusUnavailable = "unavailable"
	DayStatusToday       = "today"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// WorkerQueueSize is the in-memory notification queue capacity.
	WorkerQueueSize = 1000

	// NotApplicable replaces empty optional form fields.
	NotApplicable = "N/A"
)
