package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond
)

// KeyValue represents a key-value pair for batch operations.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Option customizes how a Storage is opened.
type Option func(*options)

type options struct {
	fs           vfs.FS
	syncInterval time.Duration
}

// InMemory keeps the whole database in memory. Nothing touches the disk.
func InMemory() Option {
	return func(o *options) { o.fs = vfs.NewMem() }
}

// WithSyncInterval overrides the background WAL sync interval.
func WithSyncInterval(d time.Duration) Option {
	return func(o *options) { o.syncInterval = d }
}

// Storage is a small key-value store backed by Pebble.
// Writes are NoSync and a background goroutine syncs the WAL periodically.
type Storage struct {
	db       *pebble.DB    // db is the underlying Pebble database
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
	once     sync.Once
}

// New opens a Storage at path.
func New(path string, opts ...Option) (*Storage, error) {
	o := options{syncInterval: defaultSyncInterval}
	for _, opt := range opts {
		opt(&o)
	}

	pOpts := &pebble.Options{
		Cache:                       pebble.NewCache(8 << 20),
		MemTableSize:                4 << 20,
		MemTableStopWritesThreshold: 2,
	}
	if o.fs != nil {
		pOpts.FS = o.fs
	}

	db, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s:\n%w", path, err)
	}

	s := &Storage{
		db:       db,
		stopSync: make(chan struct{}),
	}

	if o.syncInterval > 0 {
		s.startSyncLoop(o.syncInterval)
	}

	return s, nil
}

// Get returns the value for key, or nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q:\n%w", key, err)
	}
	defer closer.Close()

	// The value is only valid until closer.Close()
	return append([]byte(nil), value...), nil
}

// Set stores a key-value pair.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.NoSync)
}

// Delete removes a key.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, pebble.NoSync)
}

// SetBatch atomically stores multiple key-value pairs.
func (s *Storage) SetBatch(pairs []KeyValue) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range pairs {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return fmt.Errorf("batch set %q:\n%w", kv.Key, err)
		}
	}

	return batch.Commit(pebble.NoSync)
}

// IteratePrefix calls fn for each pair whose key starts with prefix, in key
// order. An empty prefix visits the whole store. Iteration stops at the first
// error returned by fn.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iterOpts := &pebble.IterOptions{}
	if len(prefix) > 0 {
		iterOpts.LowerBound = prefix
		iterOpts.UpperBound = prefixUpperBound(prefix)
	}

	iter, err := s.db.NewIter(iterOpts)
	if err != nil {
		return fmt.Errorf("new iterator:\n%w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// CountPrefix returns the number of keys starting with prefix.
func (s *Storage) CountPrefix(prefix []byte) (int, error) {
	n := 0
	err := s.IteratePrefix(prefix, func(_, _ []byte) error {
		n++
		return nil
	})

	return n, err
}

// prefixUpperBound returns the exclusive upper bound of a prefix scan,
// or nil when the prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}

// Close syncs the WAL one last time and closes the database.
// Calling Close more than once is a no-op.
func (s *Storage) Close() error {
	var err error

	s.once.Do(func() {
		close(s.stopSync)
		s.wg.Wait()

		if err = s.sync(); err != nil {
			s.db.Close()
			return
		}

		err = s.db.Close()
	})

	return err
}

func (s *Storage) startSyncLoop(interval time.Duration) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
