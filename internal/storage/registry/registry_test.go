package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlboard/internal/domain"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboards.json")
	s, err := NewStore(path, nil)
	require.NoError(t, err)
	return s, path
}

func TestCreate_DuplicateRejected(t *testing.T) {
	s, _ := testStore(t)

	cfg := domain.DashboardConfig{Wallet: "0xA", VolumeStartTS: 1700000000000}
	require.NoError(t, s.Create("D", cfg))
	require.ErrorIs(t, s.Create("D", cfg), ErrExists)

	got, ok := s.Get("D")
	require.True(t, ok)
	require.Equal(t, cfg, got)
}

func TestCreate_UnsafeNameRejected(t *testing.T) {
	s, _ := testStore(t)

	for _, name := range []string{"", "..", "../escape", "../../escape", "a/b", `a\b`, "nested/../up"} {
		require.ErrorIs(t, s.Create(name, domain.DashboardConfig{Wallet: "0xA"}), ErrInvalidName)
		_, ok := s.Get(name)
		require.False(t, ok, "unsafe name %q must not be registered", name)
	}

	// names that merely look odd stay legal
	require.NoError(t, s.Create("my board-2", domain.DashboardConfig{Wallet: "0xA"}))
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := testStore(t)

	require.NoError(t, s.Create("D", domain.DashboardConfig{Wallet: "0xA"}))
	require.NoError(t, s.Delete("D"))
	require.NoError(t, s.Delete("D"))
	require.NoError(t, s.Delete("never-existed"))

	_, ok := s.Get("D")
	require.False(t, ok)
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	s, path := testStore(t)

	first := domain.DashboardConfig{Wallet: "0xA", VolumeStartTS: 1700000000000, StartTotal: 1000}
	second := domain.DashboardConfig{Wallets: []string{"0xB", "0xC"}, Wallet: "0xB"}
	require.NoError(t, s.Create("first", first))
	require.NoError(t, s.Create("second", second))

	reloaded, err := NewStore(path, nil)
	require.NoError(t, err)
	require.Equal(t, s.All(), reloaded.All())
}

func TestLoad_LegacyWalletsMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboards.json")
	legacy := `{"legacy":{"wallets":["0xA","0xB"],"volume_start_ts":0,"start_total":0}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)

	cfg, ok := s.Get("legacy")
	require.True(t, ok)
	require.Equal(t, "0xA", cfg.Wallet)
	require.Equal(t, []string{"0xA", "0xB"}, cfg.Wallets)

	// migration must be written back to disk immediately
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]domain.DashboardConfig
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Equal(t, "0xA", onDisk["legacy"].Wallet)
}

func TestLoad_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboards.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)
	require.Empty(t, s.All())
}

func TestSetStartTotal_SetOnce(t *testing.T) {
	s, _ := testStore(t)
	require.NoError(t, s.Create("D", domain.DashboardConfig{Wallet: "0xA"}))

	require.NoError(t, s.SetStartTotal("D", 1000))
	require.NoError(t, s.SetStartTotal("D", 2000))

	cfg, _ := s.Get("D")
	require.Equal(t, float64(1000), cfg.StartTotal)

	require.Error(t, s.SetStartTotal("missing", 1))
}
