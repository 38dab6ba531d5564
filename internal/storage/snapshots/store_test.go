package snapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hlboard/internal/domain"
)

func row(ts time.Time, entity string, value, total int64) domain.SnapshotRow {
	return domain.SnapshotRow{
		Timestamp: ts,
		Entity:    entity,
		Value:     decimal.NewFromInt(value),
		Total:     decimal.NewFromInt(total),
	}
}

func TestLoad_MissingFileYieldsEmptySeries(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	series, err := s.Load("fresh")
	require.NoError(t, err)
	require.Empty(t, series)
}

func TestAppend_IsAppendOnly(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first := []domain.SnapshotRow{
		row(t0, "0xA", 1050, 1050),
		row(t0, domain.TotalEntity, 1050, 1050),
	}
	require.NoError(t, s.Append("D", first))

	t1 := t0.Add(5 * time.Minute)
	second := []domain.SnapshotRow{
		row(t1, "0xA", 1100, 1100),
		row(t1, domain.TotalEntity, 1100, 1100),
	}
	require.NoError(t, s.Append("D", second))

	series, err := s.Load("D")
	require.NoError(t, err)
	require.Len(t, series, 4)
	require.Equal(t, domain.Series(append(first, second...)), series)
}

func TestAppend_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := []domain.SnapshotRow{
		row(t0, "0xA", 1050, 1050),
		row(t0, domain.TotalEntity, 1050, 1050),
	}
	require.NoError(t, s.Append("D", rows))

	// a fresh store instance must read the series back from disk
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	series, err := reopened.Load("D")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.True(t, series[0].Timestamp.Equal(t0))
	require.Equal(t, "0xA", series[0].Entity)
	require.True(t, series[0].Value.Equal(decimal.NewFromInt(1050)))
	require.Equal(t, domain.TotalEntity, series[1].Entity)
	require.True(t, series[1].Total.Equal(decimal.NewFromInt(1050)))
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	t0 := time.Now().UTC()
	require.NoError(t, s.Append("D", []domain.SnapshotRow{row(t0, "0xA", 1, 1)}))
	require.NoError(t, s.Delete("D"))
	require.NoError(t, s.Delete("D")) // absent series delete cleanly

	series, err := s.Load("D")
	require.NoError(t, err)
	require.Empty(t, series)
}

func TestInit_WritesHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Init("D"))

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	series, err := reopened.Load("D")
	require.NoError(t, err)
	require.Empty(t, series)
}

func TestTotalValues(t *testing.T) {
	t0 := time.Now().UTC()
	series := domain.Series{
		row(t0, "0xA", 500, 1050),
		row(t0, domain.TotalEntity, 1050, 1050),
		row(t0.Add(time.Minute), "0xA", 600, 1200),
		row(t0.Add(time.Minute), domain.TotalEntity, 1200, 1200),
	}
	totals := series.TotalValues()
	require.Len(t, totals, 2)
	require.True(t, totals[0].Equal(decimal.NewFromInt(1050)))
	require.True(t, totals[1].Equal(decimal.NewFromInt(1200)))
}
