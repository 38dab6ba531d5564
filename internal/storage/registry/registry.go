// Package registry persists the dashboard name -> configuration mapping as a
// single JSON file, read and written as one unit.
package registry

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hlboard/internal/domain"
)

// ErrExists is returned when creating a dashboard under a taken name.
var ErrExists = errors.New("dashboard already exists")

// ErrInvalidName is returned when a dashboard name cannot safely become a
// file name.
var ErrInvalidName = errors.New("invalid dashboard name")

// ValidateName rejects names that could escape the data directory once used
// as a series file name. The dashboard name doubles as the series file stem,
// so path separators and parent references are forbidden.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// Store is the durable dashboard registry. The mapping lives in memory and is
// flushed to disk synchronously on every mutation; the write frequency is
// human-triggered creates and deletes, so whole-file rewrites are cheap.
type Store struct {
	path   string
	logger *zap.Logger

	mu         sync.RWMutex
	dashboards map[string]domain.DashboardConfig
}

// NewStore loads the registry from path. A missing file yields an empty
// registry; a corrupt file is treated as empty as well, with a warning.
// Legacy entries carrying only a plural wallets list are migrated in place
// (primary wallet taken from the head of the list) and re-persisted once.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:       path,
		logger:     logger,
		dashboards: make(map[string]domain.DashboardConfig),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrap(err, "read registry file")
	}

	if err := json.Unmarshal(raw, &s.dashboards); err != nil {
		logger.Warn("registry file is corrupt, starting with empty registry",
			zap.String("path", path), zap.Error(err))
		s.dashboards = make(map[string]domain.DashboardConfig)
		return s, nil
	}

	if s.migrate() {
		if err := s.persist(); err != nil {
			return nil, errors.Wrap(err, "persist migrated registry")
		}
	}
	return s, nil
}

// migrate upgrades legacy entries in place and reports whether anything changed.
func (s *Store) migrate() bool {
	changed := false
	for name, cfg := range s.dashboards {
		if cfg.Wallet == "" && len(cfg.Wallets) > 0 {
			cfg.Wallet = cfg.Wallets[0]
			s.dashboards[name] = cfg
			changed = true
			s.logger.Info("migrated legacy registry entry",
				zap.String("dashboard", name),
				zap.String("wallet", domain.DisplayAddress(cfg.Wallet)))
		}
	}
	return changed
}

// Create registers a new dashboard. Names are globally unique among active
// dashboards; a taken name returns ErrExists and an unsafe name returns
// ErrInvalidName, both with no state change.
func (s *Store) Create(name string, cfg domain.DashboardConfig) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dashboards[name]; ok {
		return ErrExists
	}
	s.dashboards[name] = cfg
	return s.persist()
}

// Delete removes a dashboard entry. Deleting an absent name is a no-op.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dashboards[name]; !ok {
		return nil
	}
	delete(s.dashboards, name)
	return s.persist()
}

// Get returns the configuration of one dashboard.
func (s *Store) Get(name string) (domain.DashboardConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.dashboards[name]
	return cfg, ok
}

// All returns a copy of the full mapping.
func (s *Store) All() map[string]domain.DashboardConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.DashboardConfig, len(s.dashboards))
	for name, cfg := range s.dashboards {
		out[name] = cfg
	}
	return out
}

// Names returns all dashboard names in stable order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.dashboards))
	for name := range s.dashboards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetStartTotal records the dashboard's baseline equity. Once a nonzero
// baseline is set it is never overwritten.
func (s *Store) SetStartTotal(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.dashboards[name]
	if !ok {
		return errors.Errorf("dashboard %q not found", name)
	}
	if cfg.StartTotal != 0 {
		return nil
	}
	cfg.StartTotal = value
	s.dashboards[name] = cfg
	return s.persist()
}

func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.dashboards, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal registry")
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return errors.Wrap(err, "write registry file")
	}
	return nil
}
