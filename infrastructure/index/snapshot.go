package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/praxishq/praxis/domain/record"
)

// snapshotHeader identifies a snapshot. A snapshot written for one model
// version is never loaded under another.
type snapshotHeader struct {
	ModelVersion string
	Dimension    int
	Size         int
	CreatedAt    time.Time
}

type snapshotEntry struct {
	InternalID uint64
	RecordID   string
	Kind       string
	Vector     []float32
}

type snapshot struct {
	Header     snapshotHeader
	Entries    []snapshotEntry
	Tombstones []uint64
	NextID     uint64
}

// writeSnapshot persists a snapshot atomically: write to a temp file in
// the same directory, then rename over the target.
func writeSnapshot(path string, snap snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func readSnapshot(path string) (snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return snapshot{}, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(snap.Entries) != snap.Header.Size {
		return snapshot{}, fmt.Errorf("snapshot entry count %d does not match header size %d",
			len(snap.Entries), snap.Header.Size)
	}
	for _, e := range snap.Entries {
		if _, err := record.ParseKind(e.Kind); err != nil {
			return snapshot{}, fmt.Errorf("snapshot entry %d: %w", e.InternalID, err)
		}
		if len(e.Vector) != snap.Header.Dimension {
			return snapshot{}, fmt.Errorf("snapshot entry %d: dimension %d, want %d",
				e.InternalID, len(e.Vector), snap.Header.Dimension)
		}
	}
	return snap, nil
}
