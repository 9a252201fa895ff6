package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/config"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message is an alert about one command run.
type Message struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Level   Level     `json:"level"`
	Command string    `json:"command"`
	Host    string    `json:"host"`
	RunID   string    `json:"run_id,omitempty"`
	Time    time.Time `json:"time"`
}

func NewMessage(level Level, command string, subject string, lines ...string) Message {
	host, _ := os.Hostname()
	return Message{
		Subject: subject,
		Body:    strings.Join(lines, "\n"),
		Level:   level,
		Command: command,
		Host:    host,
		Time:    time.Now().UTC(),
	}
}

// Text renders the message for plain text channels.
func (m Message) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", m.Subject)
	if m.Body != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Body)
	}
	fmt.Fprintf(&b, "Command: %s\nHost: %s\nTime: %s\n", m.Command, m.Host, m.Time.Format(time.RFC3339))
	if m.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", m.RunID)
	}
	return b.String()
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi sends to every notifier, one failing channel does not stop the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Enabled() bool {
	return len(m) > 0
}

// Close releases notifiers that hold a connection.
func (m Multi) Close() {
	for _, n := range m {
		if c, ok := n.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// FromConfig builds the enabled notifiers, an empty Multi when none are configured.
func FromConfig(cfg config.NotifyConfig) (Multi, error) {
	var m Multi

	if cfg.Email.Enabled {
		email, err := NewEmail(cfg.Email)
		if err != nil {
			return nil, err
		}
		m = append(m, email)
	}

	if cfg.NATS.Enabled {
		bus, err := NewNATS(cfg.NATS)
		if err != nil {
			m.Close()
			return nil, err
		}
		m = append(m, bus)
	}

	return m, nil
}
