package driver_mysql

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/paularlott/gisadmin/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

type MySQLDriver struct {
	cfg        config.MySQLConfig
	connection *sql.DB
}

func New(cfg config.MySQLConfig) *MySQLDriver {
	return &MySQLDriver{cfg: cfg}
}

func (db *MySQLDriver) dsn() string {
	dsn := mysql.NewConfig()
	dsn.User = db.cfg.User
	dsn.Passwd = db.cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = db.cfg.Host
	if db.cfg.Port > 0 {
		dsn.Addr = db.cfg.Host + ":" + strconv.Itoa(db.cfg.Port)
	}
	dsn.DBName = db.cfg.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn.FormatDSN()
}

func (db *MySQLDriver) Connect() error {
	log.Debug().Msg("db: connecting to MySQL")

	var err error
	db.connection, err = sql.Open("mysql", db.dsn())
	if err != nil {
		log.Error().Err(err).Msg("db: failed to connect to MySQL")
		return err
	}

	db.connection.SetConnMaxLifetime(time.Minute * time.Duration(db.cfg.ConnectionMaxLifetime))
	db.connection.SetMaxOpenConns(db.cfg.ConnectionMaxOpen)
	db.connection.SetMaxIdleConns(db.cfg.ConnectionMaxIdle)

	if err := db.connection.Ping(); err != nil {
		db.connection.Close()
		return err
	}

	log.Debug().Msg("db: connected to MySQL")

	return db.initialize()
}

func (db *MySQLDriver) Close() error {
	if db.connection == nil {
		return nil
	}
	return db.connection.Close()
}
