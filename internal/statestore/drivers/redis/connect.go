package driver_redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const connectTimeout = 5 * time.Second

type RedisDbDriver struct {
	cfg        config.RedisConfig
	prefix     string
	connection redis.UniversalClient
}

func New(cfg config.RedisConfig) *RedisDbDriver {
	return &RedisDbDriver{cfg: cfg}
}

func convertRedisError(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (db *RedisDbDriver) Connect() error {

	// If prefix doesn't end with : append it
	db.prefix = db.cfg.KeyPrefix
	if db.prefix != "" && !strings.HasSuffix(db.prefix, ":") {
		db.prefix += ":"
	}

	hosts := db.cfg.Hosts
	if len(hosts) == 0 {
		hosts = []string{"localhost:6379"}
	}

	log.Debug().Msgf("db: connecting to redis server: %s, db: %d", hosts, db.cfg.DB)

	db.connection = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      hosts,
		Password:   db.cfg.Password,
		DB:         db.cfg.DB,
		MasterName: db.cfg.MasterName,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if _, err := db.connection.Ping(ctx).Result(); err != nil {
		db.connection.Close()
		return err
	}

	log.Debug().Msg("db: connected to Redis")
	return nil
}

func (db *RedisDbDriver) Close() error {
	if db.connection == nil {
		return nil
	}
	return db.connection.Close()
}
