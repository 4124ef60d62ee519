package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/luoli523/x-monitor/internal/models"
)

// EmailConfig holds the SMTP settings for the email sink.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	To       string
}

// EmailNotifier sends the summary as a multipart (plain + HTML) email.
type EmailNotifier struct {
	cfg EmailConfig
	log *slog.Logger
}

func NewEmailNotifier(cfg EmailConfig, log *slog.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, log: log}
}

func (n *EmailNotifier) Name() string {
	return "email"
}

func (n *EmailNotifier) Send(ctx context.Context, summary *models.Summary) error {
	dateStr := summary.Date.UTC().Format("2006-01-02")

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.Username); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(fmt.Sprintf("X/Twitter Daily Report - %s", dateStr))
	msg.SetBodyString(mail.TypeTextPlain, renderText(summary))
	msg.AddAlternativeString(mail.TypeTextHTML, renderHTML(summary))

	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.log.InfoContext(ctx, "Summary sent via email",
		"to", n.cfg.To,
		"date", dateStr)

	return nil
}
