package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paularlott/gisadmin/internal/config"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const DefaultSubject = "gisadmin.alerts"

// NATS publishes alerts as JSON to a JetStream subject.
type NATS struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

func NewNATS(cfg config.NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{nats.Name("gisadmin")}
	if cfg.Creds != "" {
		opts = append(opts, nats.UserCredentials(cfg.Creds))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open jetstream: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	return &NATS{conn: nc, js: js, subject: subject}, nil
}

func (n *NATS) Notify(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	subject := n.subject + "." + string(msg.Level)
	if _, err := n.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	log.Debug().Str("subject", subject).Msg("notify: alert published")
	return nil
}

func (n *NATS) Close() {
	if n == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
