package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/paularlott/gisadmin/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

type Email struct {
	cfg config.EmailConfig
}

func NewEmail(cfg config.EmailConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email sender is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("at least one email recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	return &Email{cfg: cfg}, nil
}

func (e *Email) message(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.To(e.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text())
	return m, nil
}

func (e *Email) Notify(ctx context.Context, msg Message) error {
	m, err := e.message(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}

	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Debug().Strs("to", e.cfg.To).Str("subject", msg.Subject).Msg("notify: email sent")
	return nil
}
