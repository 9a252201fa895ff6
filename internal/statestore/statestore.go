package statestore

import (
	"github.com/paularlott/gisadmin/internal/config"
	driver_badgerdb "github.com/paularlott/gisadmin/internal/statestore/drivers/badgerdb"
	driver_memory "github.com/paularlott/gisadmin/internal/statestore/drivers/memory"
	driver_mysql "github.com/paularlott/gisadmin/internal/statestore/drivers/mysql"
	driver_redis "github.com/paularlott/gisadmin/internal/statestore/drivers/redis"
	"github.com/paularlott/gisadmin/internal/statestore/model"

	"github.com/rs/zerolog/log"
)

const DefaultHistory = 20

// Driver is the interface for the state store drivers
type Driver interface {
	Connect() error
	Close() error

	// Service states, saving replaces every state held for the site
	SaveServiceStates(site string, states []*model.ServiceState) error
	GetServiceStates(site string) ([]*model.ServiceState, error)

	// Runs, newest first
	SaveRun(run *model.Run) error
	GetRuns(limit int) ([]*model.Run, error)
}

// Open connects the enabled driver, MySQL then BadgerDB then Redis, falling back to memory
// when none is enabled so results are simply not kept between runs.
func Open(cfg *config.StoreConfig) (Driver, error) {
	var driver Driver

	if cfg.MySQL.Enabled {
		log.Debug().Msg("db: MySQL enabled")
		driver = driver_mysql.New(cfg.MySQL)
	} else if cfg.BadgerDB.Enabled {
		log.Debug().Msg("db: BadgerDB enabled")
		driver = driver_badgerdb.New(cfg.BadgerDB)
	} else if cfg.Redis.Enabled {
		log.Debug().Msg("db: Redis enabled")
		driver = driver_redis.New(cfg.Redis)
	} else {
		log.Debug().Msg("db: no store enabled, using memory")
		driver = driver_memory.New()
	}

	if err := driver.Connect(); err != nil {
		return nil, err
	}

	log.Debug().Msg("db: connected to state store")
	return driver, nil
}

// PreviousStates maps each service of the site to its last recorded result.
func PreviousStates(driver Driver, site string) (map[string]string, error) {
	states, err := driver.GetServiceStates(site)
	if err != nil {
		return nil, err
	}

	previous := make(map[string]string, len(states))
	for _, s := range states {
		previous[s.Service] = s.Result
	}
	return previous, nil
}
