package driver_badgerdb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/paularlott/gisadmin/internal/statestore/model"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Runs are keyed by start time so iteration is in time order.
func runKey(run *model.Run) ([]byte, error) {
	key := new(bytes.Buffer)
	if err := binary.Write(key, binary.BigEndian, []byte("Runs:")); err != nil {
		return nil, err
	}
	if err := binary.Write(key, binary.BigEndian, run.StartedAt.UnixMicro()); err != nil {
		return nil, err
	}
	key.WriteString(run.Id)
	return key.Bytes(), nil
}

func (db *BadgerDbDriver) SaveRun(run *model.Run) error {
	key, err := runKey(run)
	if err != nil {
		return err
	}

	return db.connection.Update(func(txn *badger.Txn) error {
		data, err := msgpack.Marshal(run)
		if err != nil {
			return err
		}

		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

func (db *BadgerDbDriver) GetRuns(limit int) ([]*model.Run, error) {
	var runs []*model.Run

	err := db.connection.View(func(txn *badger.Txn) error {
		prefix := []byte("Runs:")

		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		opts.Reverse = true // Newest first
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xFF)); it.Valid(); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			var run model.Run
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &run)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal run: %w", err)
			}

			runs = append(runs, &run)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return runs, nil
}
