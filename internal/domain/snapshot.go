package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TotalEntity is the sentinel entity label for the combined-value row written
// alongside the per-wallet rows on every tick.
const TotalEntity = "total"

// SnapshotRow is one persisted point of a dashboard's time series.
// Rows are immutable once written; a series is append-only and never re-sorted.
type SnapshotRow struct {
	Timestamp time.Time
	Entity    string // wallet address or TotalEntity
	Value     decimal.Decimal
	Total     decimal.Decimal
}

// Series is the full recorded history of one dashboard, in insertion order.
type Series []SnapshotRow

// TotalValues returns the values of the "total" rows, oldest first.
func (s Series) TotalValues() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(s))
	for _, row := range s {
		if row.Entity == TotalEntity {
			out = append(out, row.Value)
		}
	}
	return out
}

// Snapshot is the per-tick event appended to the journal and streamed to the
// browser. Decimal values travel as strings, the same way balances do on the
// exchange wire.
type Snapshot struct {
	Timestamp time.Time         `json:"ts"`
	Dashboard string            `json:"dashboard"`
	Values    map[string]string `json:"values"`
	Total     string            `json:"total"`
}

// SnapshotRecord bundles a journaled snapshot with its journal index.
type SnapshotRecord struct {
	Index    uint64
	Snapshot Snapshot
}
