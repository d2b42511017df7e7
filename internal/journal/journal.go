// Package journal keeps a local record of every submission outcome, keyed by
// transaction hash and indexed by sender and sequence number.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/opendlt/movecall/bridge/nodeapi"
)

const (
	txPrefix     = "tx/"
	senderPrefix = "sender/"
)

// Journal stores submission outcomes. It implements nodeapi.OutcomeRecorder.
type Journal struct {
	store KVStore
	enc   cbor.EncMode
	dec   cbor.DecMode
}

// New creates a journal writing through store
func New(store KVStore) (*Journal, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	enc, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &Journal{store: store, enc: enc, dec: dec}, nil
}

// Open creates a journal on the named backend: "memory" or "badger"
func Open(backend, path string) (*Journal, error) {
	var (
		store KVStore
		err   error
	)

	switch backend {
	case "", "memory":
		store = NewMemoryStore()
	case "badger":
		store, err = NewBadgerStore(path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown journal backend %q", backend)
	}

	j, err := New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return j, nil
}

// RecordOutcome stores outcome, replacing any earlier record for the same hash.
// The sender index entry is written once, when the hash is first seen.
func (j *Journal) RecordOutcome(_ context.Context, outcome *nodeapi.Outcome) error {
	if outcome == nil || outcome.Hash == "" {
		return fmt.Errorf("outcome must carry a transaction hash")
	}

	data, err := j.enc.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome %s: %w", outcome.Hash, err)
	}

	known, err := j.store.Has(txKey(outcome.Hash))
	if err != nil {
		return fmt.Errorf("failed to look up outcome %s: %w", outcome.Hash, err)
	}

	if err := j.store.Put(txKey(outcome.Hash), data); err != nil {
		return fmt.Errorf("failed to store outcome %s: %w", outcome.Hash, err)
	}
	if known {
		return nil
	}
	if err := j.store.Put(senderKey(outcome.Sender, outcome.SequenceNumber, outcome.Hash), []byte(outcome.Hash)); err != nil {
		return fmt.Errorf("failed to index outcome %s: %w", outcome.Hash, err)
	}
	return nil
}

// Get returns the outcome recorded for hash
func (j *Journal) Get(hash string) (*nodeapi.Outcome, error) {
	data, err := j.store.Get(txKey(hash))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("no outcome recorded for %s: %w", hash, err)
		}
		return nil, err
	}

	var outcome nodeapi.Outcome
	if err := j.dec.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode outcome %s: %w", hash, err)
	}
	return &outcome, nil
}

// ListBySender returns every outcome recorded for sender in sequence number order
func (j *Journal) ListBySender(sender string) ([]*nodeapi.Outcome, error) {
	var hashes []string
	err := j.store.Scan(senderPrefix+strings.ToLower(sender)+"/", func(_ string, value []byte) error {
		hashes = append(hashes, string(value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcomes for %s: %w", sender, err)
	}

	outcomes := make([]*nodeapi.Outcome, 0, len(hashes))
	for _, hash := range hashes {
		outcome, err := j.Get(hash)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Close closes the underlying store
func (j *Journal) Close() error {
	return j.store.Close()
}

func txKey(hash string) string {
	return txPrefix + strings.ToLower(hash)
}

// senderKey zero-pads the sequence number so keys sort numerically
func senderKey(sender string, seq uint64, hash string) string {
	return fmt.Sprintf("%s%s/%020d/%s", senderPrefix, strings.ToLower(sender), seq, strings.ToLower(hash))
}
