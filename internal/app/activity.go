package app

import (
	"consultdesk/internal/events"
	"consultdesk/internal/metrics"

	"github.com/rs/zerolog"
)

// subscribeActivity turns chat and session events into metrics and an
// activity log.
func subscribeActivity(bus *events.EventBus, logger *zerolog.Logger) {
	decode := func(ev *events.Event, v interface{}) bool {
		if err := ev.Decode(v); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return false
		}
		return true
	}

	bus.Subscribe(events.EventChatIntent, func(ev *events.Event) error {
		var p events.ChatIntentPayload
		if !decode(ev, &p) {
			return nil
		}
		metrics.IncIntent(string(p.Intent))
		logger.Debug().
			Str("session_id", p.SessionID).
			Str("intent", string(p.Intent)).
			Str("state", string(p.State)).
			Msg("chat message classified")
		return nil
	})

	bus.Subscribe(events.EventBookingHandoff, func(ev *events.Event) error {
		var p events.BookingHandoffPayload
		if !decode(ev, &p) {
			return nil
		}
		metrics.IncBookingHandoff(p.Channel)
		logger.Info().
			Str("session_id", p.SessionID).
			Str("channel", p.Channel).
			Time("at", p.At).
			Msg("chat handed off to booking")
		return nil
	})

	bus.Subscribe(events.EventSessionClosed, func(ev *events.Event) error {
		var p events.SessionClosedPayload
		if !decode(ev, &p) {
			return nil
		}
		metrics.IncSessionClosed()
		logger.Info().Str("session_id", p.SessionID).Msg("session closed")
		return nil
	})
}
