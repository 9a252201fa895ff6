package driver_redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/paularlott/gisadmin/internal/statestore/model"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// The states of a site are held in one hash keyed by service name.
func (db *RedisDbDriver) statesKey(site string) string {
	return fmt.Sprintf("%sServiceStates:%s", db.prefix, site)
}

func (db *RedisDbDriver) SaveServiceStates(site string, states []*model.ServiceState) error {
	ctx := context.Background()
	key := db.statesKey(site)

	values := make(map[string]interface{}, len(states))
	for _, state := range states {
		data, err := msgpack.Marshal(state)
		if err != nil {
			return err
		}
		values[state.Service] = data
	}

	_, err := db.connection.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	return err
}

func (db *RedisDbDriver) GetServiceStates(site string) ([]*model.ServiceState, error) {
	values, err := db.connection.HGetAll(context.Background(), db.statesKey(site)).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}

	states := make([]*model.ServiceState, 0, len(values))
	for _, v := range values {
		var state model.ServiceState
		if err := msgpack.Unmarshal([]byte(v), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal service state: %w", err)
		}
		states = append(states, &state)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].Service < states[j].Service })
	return states, nil
}
