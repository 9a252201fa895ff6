package stats

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/agsserver"

	"github.com/rs/zerolog/log"
)

const (
	Last24Hours = 24 * time.Hour
	LastWeek    = 7 * 24 * time.Hour
	Last30Days  = 30 * 24 * time.Hour
)

// ParsePeriod accepts 24h, week and 30d, and the long forms used in older job definitions.
func ParsePeriod(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24h", "day", "last 24 hours":
		return Last24Hours, nil
	case "week", "7d", "last week":
		return LastWeek, nil
	case "30d", "month", "last 30 days":
		return Last30Days, nil
	}
	return 0, fmt.Errorf("unknown period %q, use 24h, week or 30d", s)
}

var Header = []string{"Service", "Requests", "Request Time", "Draw Requests", "Draw Time", "Query Requests", "Query Time"}

type Usage struct {
	Service     string
	Requests    int
	RequestTime float64
	Draws       int
	DrawTime    float64
	Queries     int
	QueryTime   float64
}

func average(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row returns the counts with the average elapsed seconds of each kind.
func (u *Usage) Row() []string {
	return []string{
		u.Service,
		strconv.Itoa(u.Requests),
		formatSeconds(average(u.RequestTime, u.Requests)),
		strconv.Itoa(u.Draws),
		formatSeconds(average(u.DrawTime, u.Draws)),
		strconv.Itoa(u.Queries),
		formatSeconds(average(u.QueryTime, u.Queries)),
	}
}

var queryMarkers = []string{"End Query", "End Find", "End Identify"}

type Aggregator struct {
	services map[string]*Usage
	messages int
}

func NewAggregator() *Aggregator {
	return &Aggregator{services: make(map[string]*Usage)}
}

func (a *Aggregator) usage(service string) *Usage {
	u, ok := a.services[service]
	if !ok {
		u = &Usage{Service: service}
		a.services[service] = u
	}
	return u
}

// Add counts one log message against its source service, messages that are not requests, draws or queries are ignored.
func (a *Aggregator) Add(msg agsserver.LogMessage) {
	a.messages++
	elapsed := float64(msg.Elapsed)

	if strings.Contains(msg.Message, "request successfully processed") {
		u := a.usage(msg.Source)
		u.Requests++
		u.RequestTime += elapsed
	}

	if strings.Contains(msg.Message, "End ExportMapImage") {
		u := a.usage(msg.Source)
		u.Draws++
		u.DrawTime += elapsed
	}

	for _, marker := range queryMarkers {
		if strings.Contains(msg.Message, marker) {
			u := a.usage(msg.Source)
			u.Queries++
			u.QueryTime += elapsed
			break
		}
	}
}

// Usage returns the per service totals sorted by service name.
func (a *Aggregator) Usage() []*Usage {
	usage := make([]*Usage, 0, len(a.services))
	for _, u := range a.services {
		usage = append(usage, u)
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].Service < usage[j].Service })
	return usage
}

func (a *Aggregator) Rows() [][]string {
	usage := a.Usage()
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, u.Row())
	}
	return rows
}

func (a *Aggregator) Messages() int {
	return a.messages
}

type LogSource interface {
	QueryLogs(ctx context.Context, q agsserver.LogQuery) iter.Seq2[agsserver.LogMessage, error]
}

// Collect reads the FINE log records for the period ending at now and aggregates them.
func Collect(ctx context.Context, src LogSource, period time.Duration, now time.Time) (*Aggregator, error) {
	agg := NewAggregator()

	query := agsserver.LogQuery{
		Level: "FINE",
		Start: now,
		End:   now.Add(-period),
	}

	log.Info().Time("from", query.End).Time("to", query.Start).Msg("stats: querying logs")

	for msg, err := range src.QueryLogs(ctx, query) {
		if err != nil {
			return nil, fmt.Errorf("failed to query logs: %w", err)
		}
		agg.Add(msg)
	}

	log.Info().Int("messages", agg.Messages()).Int("services", len(agg.services)).Msg("stats: logs aggregated")

	return agg, nil
}
