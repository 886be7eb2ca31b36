package store

import (
	"encoding/json"

	"github.com/mrz1836/chaincache/internal/chaindata"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// BackendKind names a persistence backend.
type BackendKind string

// Supported backends.
const (
	BackendFile   BackendKind = "file"
	BackendBadger BackendKind = "badger"
)

// Backends returns every supported backend.
func Backends() []BackendKind {
	return []BackendKind{BackendFile, BackendBadger}
}

// rawEntries is the persisted content: kind -> query key -> JSON value.
type rawEntries map[chaindata.Kind]map[string]json.RawMessage

// Backend persists the whole cache in one piece.
type Backend interface {
	// Load returns every persisted entry.
	Load() (rawEntries, error)

	// Save replaces the persisted content with entries.
	Save(entries rawEntries) error

	// Close releases resources held by the backend.
	Close() error

	// Path returns the location the backend persists to.
	Path() string
}

// newBackend builds the backend selected by opts for path.
func newBackend(path string, opts *Options) (Backend, error) {
	switch opts.Backend {
	case BackendFile, "":
		codec, err := CodecFor(opts.Format)
		if err != nil {
			return nil, err
		}
		return newFileBackend(path, codec), nil
	case BackendBadger:
		return newBadgerBackend(path, opts.Logger), nil
	default:
		return nil, ccerr.WithDetails(ErrUnknownBackend, map[string]string{"backend": string(opts.Backend)})
	}
}
