// Package mempool submits a settlement's transaction to one or more
// broadcast targets, tracks it until it is mined or reverts or a bounded
// number of attempts is used up, and persists a record of each submission
// while it is in flight.
package mempool

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists the in-flight submissions a restart would otherwise lose
// track of: which tx hash was last broadcast for which settlement, and at
// what gas price. The submitter writes and clears these records; nothing
// reads them back at startup, so tracking does not resume after a restart.
type Store struct {
	db *pebble.DB
}

// NewStore opens (or creates) a Pebble database at path.
func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("mempool: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handles.
func (s *Store) Close() error { return s.db.Close() }

// Record is the persisted state of one in-flight submission.
type Record struct {
	Settlement common.Hash `json:"settlement"`
	TxHash     common.Hash `json:"txHash"`
	GasFeeCap  string      `json:"gasFeeCap"`
	Attempt    int         `json:"attempt"`
}

func key(settlement common.Hash) []byte {
	return append([]byte("sub:"), settlement[:]...)
}

// Save persists the latest submission record for a settlement.
func (s *Store) Save(r Record) error {
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("mempool: encode record: %w", err)
	}
	if err := s.db.Set(key(r.Settlement), val, pebble.Sync); err != nil {
		return fmt.Errorf("mempool: save record: %w", err)
	}
	return nil
}

// Load returns the last persisted record for a settlement, if any.
func (s *Store) Load(settlement common.Hash) (Record, bool, error) {
	val, closer, err := s.db.Get(key(settlement))
	if err != nil {
		if err == pebble.ErrNotFound {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("mempool: load record: %w", err)
	}
	defer closer.Close()
	var out Record
	if err := json.Unmarshal(val, &out); err != nil {
		return Record{}, false, fmt.Errorf("mempool: decode record: %w", err)
	}
	return out, true, nil
}

// Delete removes a settlement's tracking record once it is resolved
// (mined, reverted, or expired).
func (s *Store) Delete(settlement common.Hash) error {
	if err := s.db.Delete(key(settlement), pebble.Sync); err != nil {
		return fmt.Errorf("mempool: delete record: %w", err)
	}
	return nil
}
