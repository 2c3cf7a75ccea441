package scraperd

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"a11yhood-backend/lib/scrapers"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

type NotifyConfig struct {
	Smtp SmtpConfig
	// operator address receiving failure notifications, empty disables them
	OperatorEmail string
}

// notifyFailure emails the operator about an error-status run. notification
// failures are logged and swallowed, the run itself already finished.
func (s *Service) notifyFailure(ctx context.Context, report scrapers.Report) {
	cfg := s.options.Notify
	if cfg.OperatorEmail == "" {
		return
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("a11yhood scraper <%s>", cfg.Smtp.EmailAddress)
	mail.To = []string{cfg.OperatorEmail}
	mail.Subject = fmt.Sprintf("[a11yhood] %s scrape failed", report.Source)

	body := fmt.Sprintf(`The %s scrape finished with status %s.

Products found: %d
Products added: %d
Products updated: %d
Duration: %.1fs

%s
%s`,
		report.Source, report.Status,
		report.ProductsFound, report.ProductsAdded, report.ProductsUpdated,
		report.DurationSeconds, report.Message, report.ErrorMessage)
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", cfg.Smtp.Server, cfg.Smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", cfg.Smtp.EmailAddress, cfg.Smtp.Password, cfg.Smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to send failure notification",
			"source", report.Source, "err", err)
	}
}
