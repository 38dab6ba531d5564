// Package setup provides the terminal wizard that creates a dashboard.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/hlboard/internal/domain"
	"github.com/hlboard/internal/storage/registry"
	"github.com/hlboard/internal/storage/snapshots"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)
)

// Run launches the create-dashboard wizard and registers the result.
func Run(reg *registry.Store, store *snapshots.Store) error {
	var (
		name        string
		wallet1     string
		wallet2     string
		startValue  string
		volumeStart string
		confirm     bool
	)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HLBOARD — NEW DASHBOARD"))

	fmt.Println(stepStyle.Render("STEP 1: NAME & WALLETS"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dashboard name").
				Value(&name).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("name cannot be empty")
					}
					if err := registry.ValidateName(s); err != nil {
						return fmt.Errorf("name must not contain path separators or '..'")
					}
					if _, taken := reg.Get(s); taken {
						return fmt.Errorf("dashboard %q already exists", s)
					}
					return nil
				}),
			huh.NewInput().
				Title("Wallet 1 address").
				Value(&wallet1).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("a wallet address is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Wallet 2 address (optional)").
				Description("Leave empty for a single-wallet dashboard").
				Value(&wallet2),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 2: BASELINE & VOLUME TRACKING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting equity (USD, optional)").
				Description("Leave empty to capture the baseline from the first nonzero read").
				Value(&startValue).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.ParseFloat(s, 64)
					return err
				}),
			huh.NewInput().
				Title("Volume tracking start (optional)").
				Description("Format: 2006-01-02 15:04, empty tracks all volume").
				Value(&volumeStart).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
					return err
				}),
			huh.NewConfirm().
				Title("Create dashboard?").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled")
	}

	cfg := domain.DashboardConfig{Wallet: wallet1}
	if wallet2 != "" {
		cfg.Wallets = []string{wallet1, wallet2}
	}
	if startValue != "" {
		cfg.StartTotal, _ = strconv.ParseFloat(startValue, 64)
	}
	if volumeStart != "" {
		t, _ := time.ParseInLocation("2006-01-02 15:04", volumeStart, time.Local)
		cfg.VolumeStartTS = t.UnixMilli()
	}

	if err := reg.Create(name, cfg); err != nil {
		return errors.Wrap(err, "create dashboard")
	}
	if err := store.Init(name); err != nil {
		return errors.Wrap(err, "init series")
	}

	fmt.Println(stepStyle.Render(fmt.Sprintf("Dashboard %q created, tracking %s", name, domain.DisplayAddress(wallet1))))
	return nil
}
