package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/mrz1836/chaincache/internal/chaindata"
)

// badgerBackend persists entries in a badger database rooted at a directory.
// Keys are "<kind>/<query key>", values the JSON encoding of the entry.
type badgerBackend struct {
	dir    string
	logger *zap.Logger
	db     *badger.DB
}

func newBadgerBackend(dir string, logger *zap.Logger) *badgerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &badgerBackend{dir: dir, logger: logger}
}

// open opens the database on first use.
func (b *badgerBackend) open() (*badger.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	if b.dir == "" {
		return nil, fmt.Errorf("badger backend: directory is required")
	}

	opts := badger.DefaultOptions(b.dir)
	opts = opts.WithLogger(nil) // badger logs every compaction at info

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	b.db = db
	return db, nil
}

// Load reads every entry into memory.
func (b *badgerBackend) Load() (rawEntries, error) {
	db, err := b.open()
	if err != nil {
		return nil, err
	}

	entries := make(rawEntries)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			kind, key, ok := splitKey(string(item.Key()))
			if !ok {
				b.logger.Debug("skipping malformed badger key", zap.ByteString("key", item.Key()))
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if entries[kind] == nil {
				entries[kind] = make(map[string]json.RawMessage)
			}
			entries[kind][key] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading badger db: %w", err)
	}
	return entries, nil
}

// Save writes every entry in one batch. Existing keys not in entries are kept;
// the in-memory cache is always a superset of what was loaded.
func (b *badgerBackend) Save(entries rawEntries) error {
	db, err := b.open()
	if err != nil {
		return err
	}

	wb := db.NewWriteBatch()
	for kind, byKey := range entries {
		for key, value := range byKey {
			if err := wb.Set([]byte(joinKey(kind, key)), value); err != nil {
				wb.Cancel()
				return fmt.Errorf("writing badger entry: %w", err)
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing badger batch: %w", err)
	}
	return nil
}

// Close releases all BadgerDB resources.
func (b *badgerBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *badgerBackend) Path() string { return b.dir }

func joinKey(kind chaindata.Kind, key string) string {
	return string(kind) + "/" + key
}

// splitKey splits at the first slash; query keys may contain slashes
// themselves (storage keys do), kinds never do.
func splitKey(raw string) (chaindata.Kind, string, bool) {
	kind, key, ok := strings.Cut(raw, "/")
	if !ok || !chaindata.Kind(kind).Valid() {
		return "", "", false
	}
	return chaindata.Kind(kind), key, true
}
