// Package journal keeps an append-only WAL of per-tick snapshots with
// monotonically increasing indices, feeding the SSE stream of the dashboard
// server. The CSV series files remain the canonical history; the journal
// exists so browser clients can resume from a known index.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/hlboard/internal/domain"
)

const (
	defaultDir   = "./wal/snapshots"
	segmentLimit = 1000
	maxSegments  = 100
	keyPrefix    = "tick_snapshot_"
)

// Journal persists tick snapshots in a WAL.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// New initializes a WAL-backed journal under the provided directory.
func New(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init snapshot journal")
	}

	return &Journal{wal: wal}, nil
}

// Record writes the snapshot to the WAL. Callers must set snapshot.Dashboard.
func (j *Journal) Record(snapshot domain.Snapshot) error {
	if j == nil || j.wal == nil {
		return errors.New("snapshot journal is not initialized")
	}
	if snapshot.Dashboard == "" {
		return fmt.Errorf("snapshot dashboard name is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	key := fmt.Sprintf("%s%s", keyPrefix, snapshot.Dashboard)

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, payload)
}

// SnapshotsAfter returns all snapshots written after the provided index.
func (j *Journal) SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("snapshot journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.SnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		var snapshot domain.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode snapshot")
		}
		records = append(records, domain.SnapshotRecord{Index: idx, Snapshot: snapshot})
	}

	return records, nil
}

// CurrentIndex returns the latest index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("snapshot journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
