package arcrest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type EnvelopeKind int

const (
	EnvelopeSuccess EnvelopeKind = iota
	EnvelopeError
)

var ErrNotJSON = errors.New("response is not a JSON object")

// Envelope is the parsed outer shape of a response body.
type Envelope struct {
	Kind    EnvelopeKind
	Code    int
	Message string
	Details []string
	Body    json.RawMessage
}

// Err converts an error envelope into an *ApiError, success envelopes return nil.
func (e *Envelope) Err(endpoint string) error {
	if e.Kind != EnvelopeError {
		return nil
	}
	return &ApiError{
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Endpoint: endpoint,
	}
}

// The code is sometimes sent as a string.
type flexCode int

func (c *flexCode) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		*c = 0
		return nil
	}
	*c = flexCode(n)
	return nil
}

type wireError struct {
	Code     flexCode        `json:"code"`
	Message  string          `json:"message"`
	Messages json.RawMessage `json:"messages"`
	Details  json.RawMessage `json:"details"`
}

type wireEnvelope struct {
	Error    json.RawMessage `json:"error"`
	Status   json.RawMessage `json:"status"`
	Code     flexCode        `json:"code"`
	Messages json.RawMessage `json:"messages"`
}

// ParseEnvelope classifies a response body as success or error.
//
// Two error shapes are recognised, the portal form {"error":{"code":..,"message":..}}
// and the server admin form {"status":"error","messages":[..],"code":..}.
func ParseEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotJSON
	}

	var wire wireEnvelope
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, errors.Join(ErrNotJSON, err)
	}

	env := &Envelope{Kind: EnvelopeSuccess, Body: json.RawMessage(trimmed)}

	var wireErr wireError
	switch {
	case len(wire.Error) > 0 && !bytes.Equal(wire.Error, []byte("null")):
		env.Kind = EnvelopeError
		if err := json.Unmarshal(wire.Error, &wireErr); err != nil {
			// {"error":"some text"}
			env.Details = decodeDetails(wire.Error)
		} else {
			env.Code = int(wireErr.Code)
			env.Message = wireErr.Message
			env.Details = append(env.Details, decodeDetails(wireErr.Messages)...)
			env.Details = append(env.Details, decodeDetails(wireErr.Details)...)
		}

	case strings.EqualFold(decodeString(wire.Status), "error"):
		env.Kind = EnvelopeError
		env.Code = int(wire.Code)
		env.Details = decodeDetails(wire.Messages)
	}

	if env.Kind == EnvelopeError && env.Message == "" && len(env.Details) > 0 {
		env.Message = env.Details[0]
		env.Details = env.Details[1:]
	}

	return env, nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// details may be a list of strings, a single string or null
func decodeDetails(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}

	return nil
}
