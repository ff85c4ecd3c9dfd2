// Package dataset stores cleaned dataset snapshots in object storage and
// reloads them for chart rendering.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/storage"
	"github.com/plotforge/plotforge/pkg/types"
)

// ErrChecksumMismatch indicates a snapshot whose decompressed bytes no longer
// match the checksum recorded at write time.
var ErrChecksumMismatch = errors.New("dataset: snapshot checksum mismatch")

// SnapshotMeta describes a written snapshot. The catalog persists these
// fields on the session record so Load can verify integrity later.
type SnapshotMeta struct {
	Path         string
	Rows         int
	Columns      []types.Column
	RawBytes     int64
	EncodedBytes int64
	Checksum     uint64
}

// Write encodes the cleaned table as CSV, compresses it with Snappy, and
// stores it at the session's snapshot path. The checksum covers the
// uncompressed CSV bytes, so a successful verify also proves decompression
// produced the original payload.
func Write(ctx context.Context, store storage.ObjectStorage, sessionID string, table *profile.Table) (*SnapshotMeta, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header()); err != nil {
		return nil, fmt.Errorf("dataset: failed to encode snapshot header: %w", err)
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("dataset: failed to encode snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("dataset: failed to flush snapshot csv: %w", err)
	}

	raw := buf.Bytes()
	encoded := snappy.Encode(nil, raw)
	path := storage.SnapshotPath(sessionID)

	if err := store.Put(ctx, path, encoded); err != nil {
		return nil, fmt.Errorf("dataset: failed to store snapshot: %w", err)
	}

	cols := make([]types.Column, len(table.Columns))
	copy(cols, table.Columns)

	return &SnapshotMeta{
		Path:         path,
		Rows:         len(table.Rows),
		Columns:      cols,
		RawBytes:     int64(len(raw)),
		EncodedBytes: int64(len(encoded)),
		Checksum:     murmur3.Sum64(raw),
	}, nil
}

// Load reads a session's snapshot back into a table. The decompressed bytes
// are checked against meta.Checksum before parsing; a mismatch means the
// stored object was corrupted or replaced and returns ErrChecksumMismatch.
func Load(ctx context.Context, store storage.ObjectStorage, sessionID string, meta SnapshotMeta) (*profile.Table, error) {
	encoded, err := store.Get(ctx, storage.SnapshotPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read snapshot: %w", err)
	}

	raw, err := snappy.Decode(nil, encoded)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to decompress snapshot: %w", err)
	}

	if sum := murmur3.Sum64(raw); sum != meta.Checksum {
		return nil, fmt.Errorf("dataset: %w: got %016x, want %016x", ErrChecksumMismatch, sum, meta.Checksum)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = len(meta.Columns)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read snapshot header: %w", err)
	}
	for i, col := range meta.Columns {
		if header[i] != col.Name {
			return nil, fmt.Errorf("dataset: snapshot column %d is %q, catalog says %q", i, header[i], col.Name)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to read snapshot rows: %w", err)
	}
	if len(rows) != meta.Rows {
		return nil, fmt.Errorf("dataset: snapshot has %d rows, catalog says %d", len(rows), meta.Rows)
	}

	cols := make([]types.Column, len(meta.Columns))
	copy(cols, meta.Columns)

	return &profile.Table{Columns: cols, Rows: rows}, nil
}
