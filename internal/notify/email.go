package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"consultdesk/internal/config"
	"consultdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

// SendGridSender sends emails through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *zerolog.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg config.SendGridConfig, logger *zerolog.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error().Int("status", response.StatusCode).Str("body", response.Body).Str("to", msg.To).Msg("sendgrid returned error status")
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Debug().Str("to", msg.To).Int("status", response.StatusCode).Msg("email sent")
	return nil
}

// EmailNotifier mails each booking request to the studio inbox.
type EmailNotifier struct {
	sender EmailSender
}

func NewEmailNotifier(sender EmailSender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) Channel() string { return models.ChannelEmail }

func (n *EmailNotifier) Notify(ctx context.Context, b *models.BookingNotification) error {
	if b.NotifyTo == "" {
		return fmt.Errorf("no recipient configured for booking request from %s", b.Email)
	}
	return n.sender.Send(ctx, BuildEmail(b))
}

// BuildEmail renders the request as a plain-text and HTML email.
func BuildEmail(b *models.BookingNotification) EmailMessage {
	rows := requestFields(b)

	var text strings.Builder
	text.WriteString("New consultation request\n\n")
	for _, r := range rows {
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
	}
	fmt.Fprintf(&text, "\nAdd to calendar: %s\n", b.CalendarURL)

	var body strings.Builder
	body.WriteString("<h2>New consultation request</h2><table>")
	for _, r := range rows {
		fmt.Fprintf(&body, "<tr><th align=\"left\">%s</th><td>%s</td></tr>", html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	fmt.Fprintf(&body, "</table><p><a href=\"%s\">Add to calendar</a></p>", html.EscapeString(b.CalendarURL))

	return EmailMessage{
		To:      b.NotifyTo,
		Subject: fmt.Sprintf("New consultation request: %s (%s at %s)", b.Name, b.Date, b.Time),
		Body:    text.String(),
		HTML:    body.String(),
	}
}

func requestFields(b *models.BookingNotification) [][2]string {
	return [][2]string{
		{"Name", b.Name},
		{"Email", b.Email},
		{"Phone", b.Phone},
		{"Company", b.Company},
		{"Service", b.Service},
		{"Date", b.Date},
		{"Time", b.Time},
		{"Message", b.Message},
	}
}
