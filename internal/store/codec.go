package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mrz1836/chaincache/internal/chaindata"
	ccerr "github.com/mrz1836/chaincache/pkg/errors"
)

// snapshotVersion is bumped whenever the on-disk layout changes.
const snapshotVersion = 1

// Format names a snapshot encoding for the file backend.
type Format string

// Supported snapshot formats.
const (
	FormatJSON    Format = "json"
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatCBOR, FormatMsgpack}
}

// snapshot is the persisted form of the whole cache. Values stay in their
// JSON encoding in every format so entries decode the same way regardless of
// the container.
type snapshot struct {
	Version int                                           `json:"version" cbor:"version" msgpack:"version"`
	Entries map[chaindata.Kind]map[string]json.RawMessage `json:"entries" cbor:"entries" msgpack:"entries"`
}

// Codec encodes and decodes snapshots.
type Codec interface {
	Format() Format
	Encode(w io.Writer, s *snapshot) error
	Decode(data []byte) (*snapshot, error)
}

// CodecFor returns the codec for format. An empty format selects JSON.
func CodecFor(format Format) (Codec, error) {
	switch format {
	case FormatJSON, "":
		return jsonCodec{}, nil
	case FormatCBOR:
		return newCBORCodec()
	case FormatMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, ccerr.WithDetails(ErrUnknownFormat, map[string]string{"format": string(format)})
	}
}

// jsonCodec writes indented JSON so the cache stays inspectable by hand.
type jsonCodec struct{}

func (jsonCodec) Format() Format { return FormatJSON }

func (jsonCodec) Encode(w io.Writer, s *snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func (jsonCodec) Decode(data []byte) (*snapshot, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// cborCodec uses canonical encoding so identical caches produce identical files.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (cborCodec, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return cborCodec{}, fmt.Errorf("building cbor encoder: %w", err)
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return cborCodec{}, fmt.Errorf("building cbor decoder: %w", err)
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Format() Format { return FormatCBOR }

func (c cborCodec) Encode(w io.Writer, s *snapshot) error {
	return c.enc.NewEncoder(w).Encode(s)
}

func (c cborCodec) Decode(data []byte) (*snapshot, error) {
	var s snapshot
	if err := c.dec.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type msgpackCodec struct{}

func (msgpackCodec) Format() Format { return FormatMsgpack }

func (msgpackCodec) Encode(w io.Writer, s *snapshot) error {
	return msgpack.NewEncoder(w).Encode(s)
}

func (msgpackCodec) Decode(data []byte) (*snapshot, error) {
	var s snapshot
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
