package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures the on-disk backend.
type BadgerConfig struct {
	Path     string // directory for the value log; ignored when InMemory
	InMemory bool
	Capacity int64 // bytes of keys+values; Unlimited disables the limit
}

// BadgerBackend implements Backend on an embedded Badger database. Capacity is
// accounted in process: the byte count is rebuilt from the stored entries on
// open and kept up to date by every write.
type BadgerBackend struct {
	db       *badger.DB
	capacity int64

	mu   sync.Mutex
	used int64
}

// OpenBadgerBackend opens (or creates) the database described by cfg.
func OpenBadgerBackend(cfg BadgerConfig) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	b := &BadgerBackend{db: db, capacity: cfg.Capacity}
	if err := b.recount(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BadgerBackend) recount() error {
	var used int64
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			used += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger recount: %w", err)
	}
	b.mu.Lock()
	b.used = used
	b.mu.Unlock()
	return nil
}

// Close releases the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func (b *BadgerBackend) Get(_ context.Context, key string) (string, bool, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("badger get: %w", err)
	}
	return string(val), true, nil
}

// sizeOf returns the bytes counted for key inside txn (0 when absent).
func sizeOf(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return int64(len(key)) + item.ValueSize(), nil
}

func (b *BadgerBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	newSize := entrySize(key, value)
	var delta int64
	err := b.db.Update(func(txn *badger.Txn) error {
		oldSize, err := sizeOf(txn, key)
		if err != nil {
			return err
		}
		if !fits(b.capacity, b.used, oldSize, newSize) {
			return ErrQuotaExceeded
		}
		delta = newSize - oldSize
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, badger.ErrTxnTooBig) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("badger set: %w", err)
	}
	b.used += delta
	return nil
}

func (b *BadgerBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size int64
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		size, err = sizeOf(txn, key)
		if err != nil || size == 0 {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger remove: %w", err)
	}
	b.used -= size
	return nil
}

func (b *BadgerBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger keys: %w", err)
	}
	return out, nil
}

// Used returns the number of bytes currently counted against capacity.
func (b *BadgerBackend) Used() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
