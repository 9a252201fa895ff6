package driver_badgerdb

import (
	"fmt"

	"github.com/paularlott/gisadmin/internal/statestore/model"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

func statesPrefix(site string) []byte {
	return []byte(fmt.Sprintf("ServiceStates:%s:", site))
}

func (db *BadgerDbDriver) SaveServiceStates(site string, states []*model.ServiceState) error {
	prefix := statesPrefix(site)

	return db.connection.Update(func(txn *badger.Txn) error {
		// Drop the services no longer reported
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, state := range states {
			data, err := msgpack.Marshal(state)
			if err != nil {
				return err
			}

			e := badger.NewEntry(append(append([]byte{}, prefix...), state.Service...), data)
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}

		return nil
	})
}

func (db *BadgerDbDriver) GetServiceStates(site string) ([]*model.ServiceState, error) {
	var states []*model.ServiceState

	err := db.connection.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = statesPrefix(site)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var state model.ServiceState
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &state)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal service state: %w", err)
			}

			states = append(states, &state)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return states, nil
}
