package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"stocktally/internal/domain/catalog"
	"stocktally/internal/domain/reconcile"
)

// Snapshot is the durable form of a computed summary set. It lets a restart
// serve data immediately, marked stale until the first recompute.
type Snapshot struct {
	Summaries   []reconcile.Summary  `json:"summaries"`
	Products    []catalog.ProductRef `json:"products"`
	LastUpdated time.Time            `json:"lastUpdated"`
}

// SnapshotStore persists summary snapshots as zstd-compressed JSON.
type SnapshotStore struct {
	path    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSnapshotStore creates a snapshot store writing to the given path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &SnapshotStore{
		path:    path,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Save writes a snapshot atomically (temp file + rename), so a crash mid-write
// never corrupts the previous snapshot.
func (s *SnapshotStore) Save(snapshot Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	compressed := s.encoder.EncodeAll(raw, nil)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot from disk. ok is false when no snapshot exists.
func (s *SnapshotStore) Load() (Snapshot, bool, error) {
	compressed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("decompress snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return snapshot, true, nil
}
