package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/paularlott/gisadmin/internal/config"
)

func TestDisabledIsNoop(t *testing.T) {
	tracing, err := Init(context.Background(), &config.TelemetryConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tracing.Enabled() {
		t.Error("Enabled() = true for empty config")
	}

	rt := http.DefaultTransport
	if got := tracing.Transport(rt); got != rt {
		t.Error("Transport() wrapped the transport while disabled")
	}

	_, span := tracing.StartCommand(context.Background(), "services check", "prod")
	EndSpan(span, errors.New("boom"))

	if err := tracing.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.TelemetryConfig
		wantErr  bool
		wantOpts int
	}{
		{"http url", config.TelemetryConfig{Endpoint: "http://collector:4318"}, false, 2},
		{"https url with path", config.TelemetryConfig{Endpoint: "https://collector.example.com/otlp/v1/traces"}, false, 2},
		{"host only", config.TelemetryConfig{Endpoint: "collector:4318"}, false, 2},
		{"explicit path", config.TelemetryConfig{Endpoint: "https://collector.example.com", URLPath: "/v1/traces"}, false, 2},
		{"insecure https", config.TelemetryConfig{Endpoint: "https://collector.example.com", Insecure: true}, false, 2},
		{"missing host", config.TelemetryConfig{Endpoint: "http://"}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := exporterOptions(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(opts) != tt.wantOpts {
				t.Errorf("len(opts) = %d, want %d", len(opts), tt.wantOpts)
			}
		})
	}
}
