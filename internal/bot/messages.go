package bot

const (
	msgGenericError   = "❌ Something went wrong. Please try again later."
	msgSlowDown       = "⚠️ You are sending messages too quickly. Please wait a moment."
	msgHelp           = "I can help you pick a marketing service and book a free consultation.\n\n/book - open the booking calendar\n/services - show all services\n/cancel - close the booking calendar\n/help - show this message"
	msgBookingClosed  = "Booking closed. Send /book whenever you are ready."
	msgPickTime       = "Selected %s. Now pick a time:"
	msgOwnerOnly      = "This command is only available to the studio owner."
	msgExportCaption  = "Availability for the next months"
	msgServicesHeader = "Our services:"
	msgBookingDone    = "✅ Thank you, %s! Your request for %s at %s was sent. We will confirm by e-mail shortly.\n\nAdd the meeting to your calendar:"
	msgAddToCalendar  = "📅 Add to Google Calendar"
)

var formPrompts = map[string]string{
	"name":    "What's your name?",
	"email":   "What's your e-mail address?",
	"phone":   "What's the best phone number to reach you?",
	"company": "Company name? Send - to skip.",
	"service": "Which service are you interested in?",
	"message": "Anything else we should know before the call? Send - to skip.",
}
