package driver_redis

import (
	"context"
	"fmt"

	"github.com/paularlott/gisadmin/internal/statestore/model"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Runs are stored under Runs:<id> with a sorted set scored by start time as the index.
func (db *RedisDbDriver) SaveRun(run *model.Run) error {
	ctx := context.Background()

	data, err := msgpack.Marshal(run)
	if err != nil {
		return err
	}

	_, err = db.connection.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf("%sRuns:%s", db.prefix, run.Id), data, 0)
		pipe.ZAdd(ctx, db.prefix+"RunIndex", redis.Z{Score: float64(run.StartedAt.UnixMicro()), Member: run.Id})
		return nil
	})
	return err
}

func (db *RedisDbDriver) GetRun(id string) (*model.Run, error) {
	v, err := db.connection.Get(context.Background(), fmt.Sprintf("%sRuns:%s", db.prefix, id)).Bytes()
	if err != nil {
		return nil, convertRedisError(err)
	}

	run := &model.Run{}
	if err := msgpack.Unmarshal(v, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (db *RedisDbDriver) GetRuns(limit int) ([]*model.Run, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := db.connection.ZRevRange(context.Background(), db.prefix+"RunIndex", 0, stop).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}

	runs := make([]*model.Run, 0, len(ids))
	for _, id := range ids {
		run, err := db.GetRun(id)
		if err != nil {
			return nil, err
		}
		if run != nil {
			runs = append(runs, run)
		}
	}

	return runs, nil
}
