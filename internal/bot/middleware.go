package bot

import (
	"runtime/debug"

	"github.com/rs/zerolog"
)

// withRecovery keeps the update loop alive when a handler panics. The panic
// is logged on the update's logger so it carries the request id.
func (b *Bot) withRecovery(l *zerolog.Logger, kind string, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			l.Error().
				Interface("panic", r).
				Str("kind", kind).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}
