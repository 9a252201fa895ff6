package driver_badgerdb

import (
	"github.com/paularlott/gisadmin/internal/config"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

type BadgerDbDriver struct {
	cfg        config.BadgerDBConfig
	connection *badger.DB
}

func New(cfg config.BadgerDBConfig) *BadgerDbDriver {
	return &BadgerDbDriver{cfg: cfg}
}

func (db *BadgerDbDriver) Connect() error {
	log.Debug().Str("path", db.cfg.Path).Msg("db: connecting to BadgerDB")

	options := badger.DefaultOptions(db.cfg.Path)
	if db.cfg.Path == "" {
		options = options.WithInMemory(true)
	}
	options.Logger = badgerdbLogger()
	options.IndexCacheSize = 16 << 20 // 16MB

	var err error
	db.connection, err = badger.Open(options)
	return err
}

// Close reclaims value log space before closing, the store is only open for one command.
func (db *BadgerDbDriver) Close() error {
	if db.connection == nil {
		return nil
	}

again:
	log.Debug().Msg("db: running GC")
	if err := db.connection.RunValueLogGC(0.5); err == nil {
		goto again
	}

	return db.connection.Close()
}
