package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"consultdesk/internal/models"
	"consultdesk/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbNoop  = "noop"
	cbPrev  = "cal:prev"
	cbNext  = "cal:next"
	cbShow  = "cal:show"
	cbClose = "book:close"
	cbDate  = "date:"
	cbTime  = "time:"

	disabledDay = "·"
	slotsPerRow = 3
)

// calendarKeyboard renders the month as an inline keyboard: a navigation
// row, the weekday header, then weeks Sunday first. Blank and disabled cells
// are inert.
func calendarKeyboard(grid models.MonthGrid, selected *time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("‹", cbPrev),
			tgbotapi.NewInlineKeyboardButtonData(grid.Title, cbNoop),
			tgbotapi.NewInlineKeyboardButtonData("›", cbNext),
		),
	}

	header := make([]tgbotapi.InlineKeyboardButton, 0, len(grid.Weekdays))
	for _, wd := range grid.Weekdays {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd[:2], cbNoop))
	}
	rows = append(rows, header)

	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < grid.Blanks; i++ {
		week = append(week, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
	}
	for _, d := range grid.Days {
		week = append(week, dayButton(d, selected))
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
		}
		rows = append(rows, week)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖ Close", cbClose)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dayButton(d models.DayCell, selected *time.Time) tgbotapi.InlineKeyboardButton {
	if d.Disabled {
		return tgbotapi.NewInlineKeyboardButtonData(disabledDay, cbNoop)
	}
	label := strconv.Itoa(d.Day)
	if selected != nil && d.Key() == selected.Format(models.DateLayout) {
		label = "•" + label
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, cbDate+d.Key())
}

func slotKeyboard(slots []models.TimeSlot) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(slots)/slotsPerRow+2)
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.Label, cbTime+s.Label))
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back to calendar", cbShow)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func calendarText(view service.BookingView) string {
	return "📅 Pick a day for your free consultation.\n" + view.Summary
}

func (b *Bot) openBooking(ctx context.Context, chatID int64) {
	if _, err := b.ensureSession(ctx, chatID); err != nil {
		b.fail(chatID, err)
		return
	}
	view, err := b.sessions.OpenBooking(ctx, sessionID(chatID))
	if err != nil {
		b.fail(chatID, err)
		return
	}
	b.sendCalendar(chatID, view)
}

// showCalendar sends the calendar of an already open widget, as after a
// chat hand-off.
func (b *Bot) showCalendar(ctx context.Context, chatID int64) {
	view, err := b.sessions.Calendar(ctx, sessionID(chatID))
	if err != nil {
		b.fail(chatID, err)
		return
	}
	b.sendCalendar(chatID, view)
}

func (b *Bot) sendCalendar(chatID int64, view service.BookingView) {
	if view.Grid == nil {
		return
	}
	keyboard := calendarKeyboard(*view.Grid, view.Selection.Date)
	if _, err := b.tg.SendWithInlineKeyboard(chatID, calendarText(view), keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send calendar")
	}
}

func (b *Bot) closeBooking(ctx context.Context, chatID int64) {
	if _, err := b.sessions.CloseBooking(ctx, sessionID(chatID)); err != nil {
		b.fail(chatID, err)
		return
	}
	if _, err := b.tg.SendWithReplies(chatID, msgBookingClosed, nil); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// The calendar lives in one message; navigation edits it in place.

func (b *Bot) editCalendar(chatID int64, messageID int, view service.BookingView) error {
	if view.Grid == nil {
		return nil
	}
	keyboard := calendarKeyboard(*view.Grid, view.Selection.Date)
	_, err := b.tg.EditMessage(chatID, messageID, calendarText(view), &keyboard)
	return err
}

func (b *Bot) shiftMonth(ctx context.Context, chatID int64, messageID, delta int) error {
	view, err := b.sessions.ShiftMonth(ctx, sessionID(chatID), delta)
	if err != nil {
		return err
	}
	return b.editCalendar(chatID, messageID, view)
}

func (b *Bot) redrawCalendar(ctx context.Context, chatID int64, messageID int) error {
	view, err := b.sessions.Calendar(ctx, sessionID(chatID))
	if err != nil {
		return err
	}
	return b.editCalendar(chatID, messageID, view)
}

func (b *Bot) selectDate(ctx context.Context, chatID int64, messageID int, day string) error {
	view, err := b.sessions.SelectDate(ctx, sessionID(chatID), day)
	if err != nil {
		return err
	}
	keyboard := slotKeyboard(view.Slots)
	text := fmt.Sprintf(msgPickTime, view.Selection.Date.Format(models.DisplayLayout))
	_, err = b.tg.EditMessage(chatID, messageID, text, &keyboard)
	return err
}

func (b *Bot) selectTime(ctx context.Context, chatID int64, messageID int, label string) error {
	view, err := b.sessions.SelectTime(ctx, sessionID(chatID), label)
	if err != nil {
		return err
	}
	step, err := b.sessions.StartForm(ctx, sessionID(chatID))
	if err != nil {
		return err
	}
	if _, err := b.tg.EditMessage(chatID, messageID, "✅ "+view.Summary, nil); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to update calendar message")
	}
	b.askFormStep(chatID, step)
	return nil
}
