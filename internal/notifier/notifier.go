package notifier

import (
	"fmt"
	"log/slog"

	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/notifier/providers"
	"github.com/ibeckermayer/threadkeeper/internal/report"
)

// Notifier handles sending run reports
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier with the given sender
func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, logger: logger}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig, logger *slog.Logger) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, logger), nil
}

// SendReport emails a rendered run report.
func (n *Notifier) SendReport(e *report.Email, toAddr string) error {
	if err := n.sender.Send(toAddr, e.Subject, e.HTMLBody, e.PlainBody); err != nil {
		return err
	}
	n.logger.Info("report sent", "to", toAddr, "subject", e.Subject)
	return nil
}
