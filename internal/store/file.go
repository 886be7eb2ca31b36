package store

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mrz1836/chaincache/internal/fileutil"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// cacheFilePermissions is the permission mode for cache snapshot files.
const cacheFilePermissions = 0o640

// fileBackend persists the cache as a single snapshot file.
type fileBackend struct {
	path  string
	codec Codec
	now   func() time.Time
}

func newFileBackend(path string, codec Codec) *fileBackend {
	return &fileBackend{path: path, codec: codec, now: time.Now}
}

// Load reads and decodes the snapshot file. A file that cannot be decoded is
// moved aside so the next Save starts clean.
func (b *fileBackend) Load() (rawEntries, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ccerr.WithDetails(ErrCacheFileNotFound, map[string]string{"path": b.path})
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	snap, err := b.codec.Decode(data)
	if err != nil {
		moved, renameErr := fileutil.Quarantine(b.path, b.now())
		if renameErr != nil {
			return nil, ccerr.WithCause(ErrCorruptCache, fmt.Errorf("%w (also failed to move file: %w)", err, renameErr))
		}
		return nil, ccerr.WithCause(ErrCorruptCache, fmt.Errorf("%w (moved to %s)", err, moved))
	}

	if snap.Version != snapshotVersion {
		return nil, ccerr.WithDetails(ErrUnsupportedVersion, map[string]string{
			"version":  strconv.Itoa(snap.Version),
			"expected": strconv.Itoa(snapshotVersion),
		})
	}
	if snap.Entries == nil {
		snap.Entries = make(rawEntries)
	}
	return snap.Entries, nil
}

// Save writes the snapshot atomically.
func (b *fileBackend) Save(entries rawEntries) error {
	snap := &snapshot{Version: snapshotVersion, Entries: entries}
	return fileutil.WriteAtomicFunc(b.path, cacheFilePermissions, func(w io.Writer) error {
		return b.codec.Encode(w, snap)
	})
}

func (b *fileBackend) Close() error { return nil }

func (b *fileBackend) Path() string { return b.path }
