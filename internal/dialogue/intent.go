package dialogue

import (
	"strings"

	"consultdesk/internal/models"
)

type intentRule struct {
	intent   models.Intent
	keywords []string
}

// First match wins; the order is part of the contract.
var intentRules = []intentRule{
	{models.IntentNeedsHelp, []string{"not sure", "help me choose"}},
	{models.IntentBranding, []string{"brand", "logo", "identity", "awareness", "makeover"}},
	{models.IntentSocial, []string{"social", "instagram", "facebook", "online", "presence"}},
	{models.IntentVideo, []string{"video", "motion", "animation", "content"}},
	{models.IntentBooking, []string{"book", "consultation", "call"}},
	{models.IntentPricing, []string{"pricing"}},
	{models.IntentShowAll, []string{"other services", "show"}},
}

// ClassifyIntent maps free text or a quick reply to an intent by
// case-insensitive substring search.
func ClassifyIntent(text string) models.Intent {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return models.IntentUnrecognized
}
