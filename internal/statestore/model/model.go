package model

import (
	"time"

	"github.com/google/uuid"
)

// ServiceState is the last availability result recorded for a service.
type ServiceState struct {
	Site      string    `json:"site" db:"site" msgpack:"site"`
	Service   string    `json:"service" db:"service" msgpack:"service"`
	Result    string    `json:"result" db:"result" msgpack:"result"`
	State     string    `json:"state" db:"state" msgpack:"state"`
	Message   string    `json:"message" db:"message" msgpack:"message"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" msgpack:"updated_at"`
}

// Run records one command execution.
type Run struct {
	Id         string    `json:"run_id" db:"run_id" msgpack:"run_id"`
	Command    string    `json:"command" db:"command" msgpack:"command"`
	Site       string    `json:"site" db:"site" msgpack:"site"`
	StartedAt  time.Time `json:"started_at" db:"started_at" msgpack:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at" msgpack:"finished_at"`
	Success    bool      `json:"success" db:"success" msgpack:"success"`
	Summary    string    `json:"summary" db:"summary" msgpack:"summary"`
}

func NewRun(command string, site string) *Run {
	return &Run{
		Id:        uuid.Must(uuid.NewV7()).String(),
		Command:   command,
		Site:      site,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run complete, a nil err is a success.
func (r *Run) Finish(summary string, err error) {
	r.FinishedAt = time.Now().UTC()
	r.Success = err == nil
	r.Summary = summary
	if err != nil && summary == "" {
		r.Summary = err.Error()
	}
}

func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
