package bot

// Stop stops receiving Telegram updates and drops undelivered chat messages
// (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.tg == nil {
		return
	}
	b.cancelAll()
	b.tg.StopReceivingUpdates()
}
