package journal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound is returned when a key is absent from the store
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the storage the journal writes through
type KVStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Has(key string) (bool, error)
	// Scan calls fn for every key with prefix, in key order
	Scan(prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// MemoryStore is an in-memory KVStore
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get retrieves a value by key
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put stores a key-value pair
func (s *MemoryStore) Put(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Has checks if a key exists
func (s *MemoryStore) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Scan iterates keys with prefix in order
func (s *MemoryStore) Scan(prefix string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), s.data[k]...)
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// BadgerStore is a persistent KVStore backed by Badger
type BadgerStore struct {
	db   *badger.DB
	stop chan struct{}
	done chan struct{}
}

// NewBadgerStore opens or creates a Badger database at path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithValueLogFileSize(16 << 20).
		WithNumMemtables(2).
		WithLogger(nil)
	return openBadger(opts, true)
}

// NewInMemoryBadgerStore opens a Badger database that lives only in memory
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), false)
}

func openBadger(opts badger.Options, gc bool) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &BadgerStore{
		db:   db,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if gc {
		go s.runGC(5 * time.Minute)
	} else {
		close(s.done)
	}
	return s, nil
}

// Get retrieves a value by key
func (s *BadgerStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Put stores a key-value pair
func (s *BadgerStore) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Has checks if a key exists
func (s *BadgerStore) Has(key string) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Scan iterates keys with prefix in order
func (s *BadgerStore) Scan(prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read key %s: %w", item.Key(), err)
			}
			if err := fn(string(item.KeyCopy(nil)), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close stops garbage collection and closes the database
func (s *BadgerStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// runGC periodically reclaims value log space
func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
