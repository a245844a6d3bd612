package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flowforge-io/flowforge/internal/domain"
)

const nodeRecordPrefix = "node:record:"

// nodeRecordKey builds the canonical key for one persisted status record.
// The nanosecond component keeps records of a node ordered by key.
func nodeRecordKey(executionID, nodeID string, at time.Time, recordID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%020d:%s", nodeRecordPrefix, executionID, nodeID, at.UnixNano(), recordID))
}

func nodeHistoryPrefix(executionID, nodeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:", nodeRecordPrefix, executionID, nodeID))
}

// BadgerRecorder durably persists node status transitions in a badger
// keyspace, one record per transition.
type BadgerRecorder struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerRecorder wraps an already-open badger database. The caller owns
// the database lifetime.
func NewBadgerRecorder(db *badger.DB, logger *slog.Logger) *BadgerRecorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &BadgerRecorder{
		db:     db,
		logger: logger.With("component", "badger-recorder"),
	}
}

func (r *BadgerRecorder) RecordNode(ctx context.Context, node *domain.Node) error {
	snap := node.Snapshot()

	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializing node record %s: %w", snap.ID, err)
	}

	key := nodeRecordKey(snap.ExecutionID, snap.ID, time.Now(), uuid.NewString())

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("persisting node record %s: %w", snap.ID, err)
	}

	r.logger.Debug("node record persisted",
		"execution_id", snap.ExecutionID,
		"node_id", snap.ID,
		"status", snap.Status,
	)
	return nil
}

// UpdateCount reports how many status records exist for one node of one
// execution.
func (r *BadgerRecorder) UpdateCount(ctx context.Context, executionID, nodeID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = nodeHistoryPrefix(executionID, nodeID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// History returns the persisted status records of one node, oldest first.
// A node with no records reports domain.ErrNotFound.
func (r *BadgerRecorder) History(ctx context.Context, executionID, nodeID string) ([]domain.NodeSnapshot, error) {
	var history []domain.NodeSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = nodeHistoryPrefix(executionID, nodeID)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var snap domain.NodeSnapshot
				if err := json.Unmarshal(value, &snap); err != nil {
					return err
				}
				history = append(history, snap)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no records for node %s of execution %s: %w", nodeID, executionID, domain.ErrNotFound)
	}
	return history, nil
}
