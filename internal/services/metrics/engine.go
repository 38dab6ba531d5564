// Package metrics turns live exchange reads into persisted snapshot rows and
// the derived values shown on a dashboard.
package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hlboard/internal/domain"
	"github.com/hlboard/internal/services/positions"
	"github.com/hlboard/internal/storage/registry"
	"github.com/hlboard/internal/storage/snapshots"
)

// marketClient is the read-only exchange surface the engine needs.
type marketClient interface {
	AccountValue(ctx context.Context, wallet string) decimal.Decimal
	TradeVolume(ctx context.Context, wallet string, sinceMs int64) decimal.Decimal
	AccountState(ctx context.Context, wallet string) (json.RawMessage, error)
}

// recorder receives one journal event per appended tick.
type recorder interface {
	Record(snapshot domain.Snapshot) error
}

// State is what the engine currently holds for one dashboard; the UI layer
// renders it as-is between ticks.
type State struct {
	Metrics   domain.Metrics
	Positions []domain.Position
	UpdatedAt time.Time
}

// Engine runs the per-dashboard refresh cycle: fetch current values, append a
// snapshot, recompute derived metrics, refresh open positions.
type Engine struct {
	client   marketClient
	registry *registry.Store
	store    *snapshots.Store
	journal  recorder
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	states map[string]State
}

// NewEngine wires the engine; journal may be nil when no live stream is served.
func NewEngine(client marketClient, reg *registry.Store, store *snapshots.Store, journal recorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:   client,
		registry: reg,
		store:    store,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
		states:   make(map[string]State),
	}
}

// RefreshAll runs one full pass over every registered dashboard, sequentially.
// A failing dashboard degrades its own numbers for this tick only; the pass
// always continues.
func (e *Engine) RefreshAll(ctx context.Context) {
	for _, name := range e.registry.Names() {
		cfg, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		if _, err := e.Refresh(ctx, name, cfg); err != nil {
			e.logger.Error("dashboard refresh failed",
				zap.String("dashboard", name), zap.Error(err))
		}
	}
}

// Refresh runs one tick for a single dashboard and returns the resulting state.
func (e *Engine) Refresh(ctx context.Context, name string, cfg domain.DashboardConfig) (State, error) {
	wallets := cfg.TrackedWallets()
	now := e.now()

	values := make([]decimal.Decimal, len(wallets))
	total := decimal.Zero
	for i, w := range wallets {
		values[i] = e.client.AccountValue(ctx, w)
		total = total.Add(values[i])
	}

	// an all-zero read is most likely a full API outage; skip the append so
	// the chart does not dip to zero on transient failures
	if anyNonzero(values) {
		rows := make([]domain.SnapshotRow, 0, len(wallets)+1)
		for i, w := range wallets {
			rows = append(rows, domain.SnapshotRow{
				Timestamp: now, Entity: w, Value: values[i], Total: total,
			})
		}
		rows = append(rows, domain.SnapshotRow{
			Timestamp: now, Entity: domain.TotalEntity, Value: total, Total: total,
		})
		if err := e.store.Append(name, rows); err != nil {
			return State{}, err
		}
		e.journalTick(name, now, wallets, values, total)
	}

	// baseline is captured lazily from the first nonzero total
	if cfg.StartTotal == 0 && total.IsPositive() {
		startTotal, _ := total.Float64()
		if err := e.registry.SetStartTotal(name, startTotal); err != nil {
			return State{}, err
		}
		cfg.StartTotal = startTotal
	}

	volume := decimal.Zero
	for _, w := range wallets {
		volume = volume.Add(e.client.TradeVolume(ctx, w, cfg.VolumeStartTS))
	}

	start := decimal.NewFromFloat(cfg.StartTotal)
	state := State{
		Metrics: domain.Metrics{
			StartValue:       start,
			CurrentValue:     total,
			PercentChange:    domain.PercentChange(start, total),
			VolumeSinceStart: volume,
		},
		Positions: e.fetchPositions(ctx, wallets),
		UpdatedAt: now,
	}

	e.mu.Lock()
	e.states[name] = state
	e.mu.Unlock()

	return state, nil
}

// Current returns the engine's latest state for a dashboard, if it has been
// refreshed at least once since process start.
func (e *Engine) Current(name string) (State, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state, ok := e.states[name]
	return state, ok
}

// Forget drops the cached state of a deleted dashboard.
func (e *Engine) Forget(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.states, name)
}

func (e *Engine) fetchPositions(ctx context.Context, wallets []string) []domain.Position {
	var out []domain.Position
	for _, w := range wallets {
		payload, err := e.client.AccountState(ctx, w)
		if err != nil {
			e.logger.Warn("fetch account state failed",
				zap.String("wallet", domain.DisplayAddress(w)), zap.Error(err))
			continue
		}
		out = append(out, positions.Extract(payload)...)
	}
	domain.SortPositions(out)
	return out
}

func (e *Engine) journalTick(name string, ts time.Time, wallets []string, values []decimal.Decimal, total decimal.Decimal) {
	if e.journal == nil {
		return
	}
	snap := domain.Snapshot{
		Timestamp: ts,
		Dashboard: name,
		Values:    make(map[string]string, len(wallets)),
		Total:     total.String(),
	}
	for i, w := range wallets {
		snap.Values[w] = values[i].String()
	}
	if err := e.journal.Record(snap); err != nil {
		e.logger.Warn("journal snapshot failed", zap.String("dashboard", name), zap.Error(err))
	}
}

func anyNonzero(values []decimal.Decimal) bool {
	for _, v := range values {
		if !v.IsZero() {
			return true
		}
	}
	return false
}
