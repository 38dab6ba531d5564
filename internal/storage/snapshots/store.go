// Package snapshots persists per-dashboard time series as CSV files with
// columns timestamp, wallet, value, total.
package snapshots

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/hlboard/internal/domain"
)

var header = []string{"timestamp", "wallet", "value", "total"}

// Store keeps every dashboard's series in memory, backed by one CSV file per
// dashboard. Appends rewrite the whole file; series are small and ticks are
// minutes apart, so the O(n) write is acceptable.
type Store struct {
	dir string

	mu     sync.Mutex
	series map[string]domain.Series
}

// NewStore creates the data directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &Store{dir: dir, series: make(map[string]domain.Series)}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// Load returns the series for a dashboard. A dashboard without a data file
// yet gets an empty, correctly shaped series.
func (s *Store) Load(name string) (domain.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(name)
}

func (s *Store) load(name string) (domain.Series, error) {
	if series, ok := s.series[name]; ok {
		return append(domain.Series(nil), series...), nil
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			s.series[name] = domain.Series{}
			return domain.Series{}, nil
		}
		return nil, errors.Wrap(err, "open series file")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read series file")
	}

	series := make(domain.Series, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) != 4 {
			// header line
			continue
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "parse series row %d", i)
		}
		series = append(series, row)
	}

	s.series[name] = series
	return append(domain.Series(nil), series...), nil
}

// Init ensures a dashboard has an (empty) data file, mirroring the create
// action which persists a header-only series up front.
func (s *Store) Init(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.load(name); err != nil {
		return err
	}
	return s.persist(name)
}

// Append adds rows to a dashboard's series and immediately persists the full
// series. Rows are never mutated or reordered after this point.
func (s *Store) Append(name string, rows []domain.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, err := s.load(name)
	if err != nil {
		return err
	}
	s.series[name] = append(series, rows...)
	return s.persist(name)
}

// Delete removes the persisted series and the in-memory copy. Absent series
// delete cleanly.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.series, name)
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove series file")
	}
	return nil
}

func (s *Store) persist(name string) error {
	f, err := os.Create(s.path(name))
	if err != nil {
		return errors.Wrap(err, "create series file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write series header")
	}
	for _, row := range s.series[name] {
		rec := []string{
			row.Timestamp.Format(time.RFC3339Nano),
			row.Entity,
			row.Value.String(),
			row.Total.String(),
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrap(err, "write series row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush series file")
}

func parseRow(rec []string) (domain.SnapshotRow, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return domain.SnapshotRow{}, err
	}
	value, err := decimal.NewFromString(rec[2])
	if err != nil {
		return domain.SnapshotRow{}, err
	}
	total, err := decimal.NewFromString(rec[3])
	if err != nil {
		return domain.SnapshotRow{}, err
	}
	return domain.SnapshotRow{Timestamp: ts, Entity: rec[1], Value: value, Total: total}, nil
}
