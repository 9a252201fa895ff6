package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paularlott/gisadmin/internal/config"
)

type fakeNotifier struct {
	sent []Message
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, msg Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	failing := &fakeNotifier{err: errors.New("smtp down")}
	working := &fakeNotifier{}

	err := Multi{failing, working}.Notify(context.Background(), NewMessage(LevelError, "services check", "2 services down"))

	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Errorf("err = %v", err)
	}
	if len(working.sent) != 1 {
		t.Errorf("working notifier sent %d messages, want 1", len(working.sent))
	}
}

func TestMessageText(t *testing.T) {
	msg := NewMessage(LevelError, "services check", "Services need attention", "Roads.MapServer: No data", "Old.MapServer: service is stopped")
	msg.RunID = "run-1"

	text := msg.Text()
	for _, want := range []string{"Services need attention", "Roads.MapServer: No data\nOld.MapServer", "Command: services check", "Run: run-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestNewEmailValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmailConfig
		wantErr bool
	}{
		{"complete", config.EmailConfig{Host: "smtp", From: "gis@example.com", To: []string{"ops@example.com"}}, false},
		{"no host", config.EmailConfig{From: "gis@example.com", To: []string{"ops@example.com"}}, true},
		{"no recipients", config.EmailConfig{Host: "smtp", From: "gis@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := NewEmail(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEmail() error = %v", err)
			}
			if err == nil && email.cfg.Port != 25 {
				t.Errorf("port = %d, want 25", email.cfg.Port)
			}
		})
	}
}

func TestEmailMessage(t *testing.T) {
	email, _ := NewEmail(config.EmailConfig{Host: "smtp", From: "gis@example.com", To: []string{"ops@example.com", "gis@example.com"}})

	m, err := email.message(NewMessage(LevelInfo, "users import", "Import complete"))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.GetTo()) != 2 {
		t.Errorf("to = %v", m.GetTo())
	}

	email.cfg.From = "not an address"
	if _, err := email.message(NewMessage(LevelInfo, "x", "y")); err == nil {
		t.Error("expected an error for an invalid sender")
	}
}

func TestFromConfigDisabled(t *testing.T) {
	m, err := FromConfig(config.NotifyConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Enabled() {
		t.Error("expected no notifiers")
	}
}
