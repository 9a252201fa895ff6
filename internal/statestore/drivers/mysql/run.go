package driver_mysql

import (
	"database/sql"
	"fmt"

	"github.com/paularlott/gisadmin/internal/statestore/model"
)

func (db *MySQLDriver) SaveRun(run *model.Run) error {
	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}

	_, err := db.connection.Exec(`REPLACE INTO runs (run_id, command, site, started_at, finished_at, success, summary) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Id, run.Command, run.Site, run.StartedAt.UTC(), finished, run.Success, run.Summary)
	return err
}

func (db *MySQLDriver) GetRuns(limit int) ([]*model.Run, error) {
	query := "SELECT run_id, command, site, started_at, finished_at, success, summary FROM runs ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.connection.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var (
			run      model.Run
			finished sql.NullTime
			summary  sql.NullString
		)
		if err := rows.Scan(&run.Id, &run.Command, &run.Site, &run.StartedAt, &finished, &run.Success, &summary); err != nil {
			return nil, err
		}
		run.FinishedAt = finished.Time
		run.Summary = summary.String
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
