package driver_mysql

import (
	"github.com/rs/zerolog/log"
)

func (db *MySQLDriver) initialize() error {

	log.Debug().Msg("db: creating service states table")
	_, err := db.connection.Exec(`CREATE TABLE IF NOT EXISTS service_states (
site VARCHAR(64) NOT NULL,
service VARCHAR(255) NOT NULL,
result VARCHAR(32) NOT NULL DEFAULT '',
state VARCHAR(32) NOT NULL DEFAULT '',
message TEXT,
updated_at TIMESTAMP(6),
PRIMARY KEY (site, service)
)`)
	if err != nil {
		return err
	}

	log.Debug().Msg("db: creating runs table")
	_, err = db.connection.Exec(`CREATE TABLE IF NOT EXISTS runs (
run_id CHAR(36) PRIMARY KEY,
command VARCHAR(64) NOT NULL DEFAULT '',
site VARCHAR(64) NOT NULL DEFAULT '',
started_at TIMESTAMP(6),
finished_at TIMESTAMP(6) NULL DEFAULT NULL,
success TINYINT(1) NOT NULL DEFAULT 0,
summary TEXT,
INDEX started_at (started_at)
)`)
	if err != nil {
		return err
	}

	log.Debug().Msg("db: MySQL is initialized")

	return nil
}
