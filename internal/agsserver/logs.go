package agsserver

import (
	"context"
	"encoding/json"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/rs/zerolog/log"
)

const DefaultLogPageSize = 10000

// LogQuery selects log records between Start (newest) and End (oldest), the server returns them newest first.
type LogQuery struct {
	Level    string
	Start    time.Time
	End      time.Time
	Services []string
	PageSize int
}

type LogMessage struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Time       int64   `json:"time"`
	Source     string  `json:"source"`
	Machine    string  `json:"machine"`
	User       string  `json:"user"`
	Code       int     `json:"code"`
	Elapsed    Elapsed `json:"elapsed"`
	MethodName string  `json:"methodName"`
}

// Elapsed is a duration in seconds, sent as a string that may be empty.
type Elapsed float64

func (e *Elapsed) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*e = 0
		return nil
	}
	*e = Elapsed(v)
	return nil
}

type logPage struct {
	HasMore     bool         `json:"hasMore"`
	StartTime   int64        `json:"startTime"`
	EndTime     int64        `json:"endTime"`
	LogMessages []LogMessage `json:"logMessages"`
}

func (q LogQuery) filter() string {
	services := "*"
	if len(q.Services) > 0 {
		services = strings.Join(q.Services, ",")
	}

	filter, _ := json.Marshal(map[string]any{
		"services": services,
		"server":   "*",
		"machines": "*",
	})
	return string(filter)
}

// QueryLogs lazily pages backwards through the logs.
//
// The next page starts at the time of the last record received, iteration stops when
// the server reports no more records or the cursor does not move back in time.
func (s *Server) QueryLogs(ctx context.Context, q LogQuery) iter.Seq2[LogMessage, error] {
	if q.Level == "" {
		q.Level = "FINE"
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultLogPageSize
	}

	return func(yield func(LogMessage, error) bool) {
		cursor := q.Start.UnixMilli()
		end := q.End.UnixMilli()
		filter := q.filter()

		for {
			params := arcrest.Params{
				"level":     q.Level,
				"startTime": strconv.FormatInt(cursor, 10),
				"endTime":   strconv.FormatInt(end, 10),
				"filter":    filter,
				"pageSize":  strconv.Itoa(q.PageSize),
			}

			page := &logPage{}
			if err := s.admin.Call(ctx, "admin/logs/query", params, page); err != nil {
				yield(LogMessage{}, err)
				return
			}

			for _, msg := range page.LogMessages {
				if !yield(msg, nil) {
					return
				}
			}

			if !page.HasMore || len(page.LogMessages) == 0 {
				return
			}

			next := page.LogMessages[len(page.LogMessages)-1].Time
			if next >= cursor || next <= end {
				return
			}

			log.Debug().Time("to", time.UnixMilli(next)).Msg("server: more log records")
			cursor = next
		}
	}
}
