package arcrest

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantKind    EnvelopeKind
		wantCode    int
		wantMessage string
		wantDetails int
		wantErr     bool
	}{
		{
			name:     "success",
			body:     `{"token":"abc","expires":1}`,
			wantKind: EnvelopeSuccess,
		},
		{
			name:        "portal error",
			body:        `{"error":{"code":498,"message":"Invalid token.","details":[]}}`,
			wantKind:    EnvelopeError,
			wantCode:    498,
			wantMessage: "Invalid token.",
		},
		{
			name:        "portal error with details",
			body:        `{"error":{"code":400,"message":"Unable to create user.","details":["Username already exists.","Try again"]}}`,
			wantKind:    EnvelopeError,
			wantCode:    400,
			wantMessage: "Unable to create user.",
			wantDetails: 2,
		},
		{
			name:        "portal error with string code",
			body:        `{"error":{"code":"499","messages":["Token Required"]}}`,
			wantKind:    EnvelopeError,
			wantCode:    499,
			wantMessage: "Token Required",
		},
		{
			name:        "server admin error",
			body:        `{"status":"error","messages":["Service not found."],"code":404}`,
			wantKind:    EnvelopeError,
			wantCode:    404,
			wantMessage: "Service not found.",
		},
		{
			name:     "server admin success",
			body:     `{"status":"success"}`,
			wantKind: EnvelopeSuccess,
		},
		{
			name:     "job messages are objects",
			body:     `{"jobId":"j1","jobStatus":"esriJobExecuting","messages":[{"type":"esriJobMessageTypeInformative","description":"Submitted."}]}`,
			wantKind: EnvelopeSuccess,
		},
		{
			name:     "word error inside a success body",
			body:     `{"realTimeState":"STARTED","description":"no error here"}`,
			wantKind: EnvelopeSuccess,
		},
		{
			name:        "error as plain string",
			body:        `{"error":"Something broke"}`,
			wantKind:    EnvelopeError,
			wantMessage: "Something broke",
		},
		{
			name:    "not json",
			body:    `<html>Bad gateway</html>`,
			wantErr: true,
		},
		{
			name:    "empty",
			body:    ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEnvelope() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrNotJSON) {
					t.Errorf("expected ErrNotJSON, got %v", err)
				}
				return
			}

			if env.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", env.Kind, tt.wantKind)
			}
			if env.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", env.Code, tt.wantCode)
			}
			if env.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", env.Message, tt.wantMessage)
			}
			if len(env.Details) != tt.wantDetails {
				t.Errorf("Details = %v, want %d entries", env.Details, tt.wantDetails)
			}
		})
	}
}

func TestEnvelopeErr(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"error":{"code":498,"message":"Invalid token."}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	apiErr := env.Err("sharing/rest/search")

	var target *ApiError
	if !errors.As(apiErr, &target) {
		t.Fatalf("expected *ApiError, got %T", apiErr)
	}
	if target.Endpoint != "sharing/rest/search" {
		t.Errorf("Endpoint = %q", target.Endpoint)
	}
	if !IsTokenExpired(apiErr) {
		t.Error("IsTokenExpired() = false, want true")
	}
}
