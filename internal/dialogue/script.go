package dialogue

import (
	"fmt"
	"strings"
	"time"

	"consultdesk/internal/models"
)

const (
	MsgGreeting      = "👋 Hi there! I'm here to help you find the perfect marketing solution for your brand."
	MsgWhatBrings    = "What brings you to Madame Marketing today?"
	MsgNoProblem     = "No problem! I'll help you figure it out. Let's start with a few questions:"
	MsgMainGoal      = "What's your main goal right now?"
	MsgBrandingIntro = "For branding, we offer two comprehensive services:"
	MsgBrandingNext  = "Click on any service to learn more, or I can help you explore other options!"
	MsgSoundsRight   = "Does this sound like what you need?"
	MsgShowServices  = "Great! Let me show you our services to help you find the best fit."
	MsgAllNext       = "Click any service to learn more, or let's schedule a call to discuss your needs!"
	MsgOpenBooking   = "Excellent! Let me open our booking calendar for you."
	MsgBookingOpen   = "The booking form is now open. Fill in your details and choose a convenient time! 📅"
	MsgPricing       = "Our pricing is customized based on your specific needs. I recommend booking a free consultation so we can provide you with an accurate quote tailored to your project."
	MsgBookPrompt    = "Would you like to book a free consultation to discuss this service in detail?"

	MsgAssessBranding = "Perfect! It sounds like you need comprehensive branding services."
	MsgAssessSocial   = "Great! Social media management would be perfect for you."
	MsgAssessVideo    = "Excellent! Video content can really boost your engagement."
	MsgAssessOther    = "Based on what you've shared, here are my recommendations:"
)

var (
	RepliesStart = []string{
		"I need help with branding",
		"I want to improve social media",
		"I need video content",
		"I'm not sure what I need",
	}
	RepliesGoals = []string{
		"Build brand awareness",
		"Increase online presence",
		"Create content",
		"Full brand makeover",
	}
	RepliesBranding = []string{
		"Tell me about social media",
		"Show me video services",
		"I want to book a call",
	}
	RepliesService = []string{
		"Yes, tell me more!",
		"Show other services",
		"Book a consultation",
	}
	RepliesAll = []string{
		"Book a consultation",
		"Ask a question",
	}
	RepliesPricing = []string{
		"Book a consultation",
		"Ask another question",
	}
	RepliesSelected = []string{
		"Yes, book a call!",
		"Learn about pricing",
		"See other services",
	}
)

// step is one bot message of a script. Pause is measured from the moment the
// previous message of the same reply started typing.
type step struct {
	pause   time.Duration
	message models.ChatMessage
}

func say(pause time.Duration, text string, replies ...string) step {
	return step{pause: pause, message: models.ChatMessage{Role: models.RoleBot, Text: text, QuickReplies: replies}}
}

func cards(pause time.Duration, services []models.Service) step {
	return step{pause: pause, message: models.ChatMessage{Role: models.RoleBot, Services: services}}
}

func (e *Engine) greetingScript() []step {
	return []step{
		say(0, MsgGreeting),
		say(1500*time.Millisecond, MsgWhatBrings, RepliesStart...),
	}
}

func (e *Engine) needsAssessmentScript() []step {
	return []step{
		say(0, MsgNoProblem),
		say(1500*time.Millisecond, MsgMainGoal, RepliesGoals...),
	}
}

func (e *Engine) brandingScript() []step {
	return []step{
		say(0, MsgBrandingIntro),
		cards(800*time.Millisecond, e.catalog.pick(ServiceBrandStrategy, ServiceLogoDesign)),
		say(1000*time.Millisecond, MsgBrandingNext, RepliesBranding...),
	}
}

func (e *Engine) serviceScript(key string) []step {
	return []step{
		cards(0, e.catalog.pick(key)),
		say(1000*time.Millisecond, MsgSoundsRight, RepliesService...),
	}
}

func (e *Engine) showAllScript() []step {
	return []step{
		cards(800*time.Millisecond, e.catalog.All()),
		say(1000*time.Millisecond, MsgAllNext, RepliesAll...),
	}
}

func (e *Engine) bookingScript() []step {
	handoff := say(1000*time.Millisecond, MsgBookingOpen)
	handoff.message.Action = models.ActionOpenBooking
	return []step{
		say(800*time.Millisecond, MsgOpenBooking),
		handoff,
	}
}

func (e *Engine) pricingScript() []step {
	return []step{
		say(1000*time.Millisecond, MsgPricing, RepliesPricing...),
	}
}

func (e *Engine) selectedScript(s models.Service) []step {
	return []step{
		say(1000*time.Millisecond, fmt.Sprintf("Great choice! %s is perfect for businesses looking to %s",
			s.Name, strings.ToLower(s.Description))),
		say(1500*time.Millisecond, MsgBookPrompt, RepliesSelected...),
	}
}

// suggestionScript is the reply to the three service intents.
func (e *Engine) suggestionScript(intent models.Intent) []step {
	switch intent {
	case models.IntentBranding:
		return e.brandingScript()
	case models.IntentSocial:
		return e.serviceScript(ServiceSocialMedia)
	case models.IntentVideo:
		return e.serviceScript(ServiceVideoMotion)
	}
	return nil
}

var assessPreface = map[models.Intent]string{
	models.IntentBranding: MsgAssessBranding,
	models.IntentSocial:   MsgAssessSocial,
	models.IntentVideo:    MsgAssessVideo,
}
