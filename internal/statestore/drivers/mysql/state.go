package driver_mysql

import (
	"database/sql"
	"fmt"

	"github.com/paularlott/gisadmin/internal/statestore/model"
)

func (db *MySQLDriver) SaveServiceStates(site string, states []*model.ServiceState) error {
	tx, err := db.connection.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM service_states WHERE site = ?", site); err != nil {
		tx.Rollback()
		return err
	}

	for _, s := range states {
		_, err := tx.Exec("INSERT INTO service_states (site, service, result, state, message, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			site, s.Service, s.Result, s.State, s.Message, s.UpdatedAt.UTC())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save state of %s: %w", s.Service, err)
		}
	}

	return tx.Commit()
}

func (db *MySQLDriver) GetServiceStates(site string) ([]*model.ServiceState, error) {
	rows, err := db.connection.Query("SELECT site, service, result, state, message, updated_at FROM service_states WHERE site = ? ORDER BY service", site)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*model.ServiceState
	for rows.Next() {
		var (
			s       model.ServiceState
			message sql.NullString
		)
		if err := rows.Scan(&s.Site, &s.Service, &s.Result, &s.State, &message, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Message = message.String
		states = append(states, &s)
	}

	return states, rows.Err()
}
