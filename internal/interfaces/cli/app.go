// Package cli implements pricingctl, the batch command line for the
// pricing ledgers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/spf13/cobra"
)

// ErrCollectorDisabled is returned by collect when no collector is configured
var ErrCollectorDisabled = errors.New("network collector is not configured")

// CostEngine computes venture costs
type CostEngine interface {
	AssetsCountPriceCost(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) (allocation.AssetsSummary, error)
	UsagesCountPrice(ctx context.Context, ventureID uuid.UUID, start, end time.Time, typeID uuid.UUID, opts ...allocation.Option) (allocation.UsageSummary, error)
	ExtraCosts(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) (allocation.ExtraCostSummary, error)
	DailyDevicePrices(ctx context.Context, ventureID uuid.UUID, start, end time.Time, opts ...allocation.Option) ([]allocation.DayPrice, error)
}

// Ingester collects the network usage of one day
type Ingester interface {
	IngestNetworkUsage(ctx context.Context, day time.Time) (*collection.IngestResult, error)
	Recollect(ctx context.Context, day time.Time) (*collection.IngestResult, error)
}

// VentureStore reads and re-parents ventures
type VentureStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*pricing.Venture, error)
	FindByVentureID(ctx context.Context, ventureID int) (*pricing.Venture, error)
	FindAll(ctx context.Context) ([]*pricing.Venture, error)
	Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*pricing.Venture, error)
}

// UsageTypeFinder looks usage types up
type UsageTypeFinder interface {
	FindByName(ctx context.Context, name string) (*pricing.UsageType, error)
	FindAll(ctx context.Context) ([]*pricing.UsageType, error)
}

// Dependencies are the services the commands run against. Ingester,
// Reports and Tokens are nil when their feature is not configured.
type Dependencies struct {
	Engine     CostEngine
	Ventures   VentureStore
	UsageTypes UsageTypeFinder
	Ingester   Ingester
	Reports    ReportUploader
	Tokens     TokenIssuer
	Close      func() error
}

// Settings are the global flags handed to the Loader
type Settings struct {
	ConfigFile string
}

// Loader opens the dependencies. It is called once, before the first
// command that needs them.
type Loader func(ctx context.Context, settings Settings) (*Dependencies, error)

// App is the pricingctl command tree
type App struct {
	rootCmd  *cobra.Command
	load     Loader
	settings Settings
	deps     *Dependencies
	now      func() time.Time
}

// NewApp creates the command tree
func NewApp(version string, load Loader) *App {
	app := &App{load: load, now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "pricingctl",
		Short:         "Venture cost allocation batch tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(`{{printf "pricingctl version: %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&app.settings.ConfigFile, "config", "c", "",
		"configuration file (default: config.toml in ., /etc/pricing or /app)")

	rootCmd.AddCommand(
		app.collectCmd(),
		app.assetsCmd(),
		app.usagesCmd(),
		app.extraCostsCmd(),
		app.dailyCmd(),
		app.treeCmd(),
		app.moveCmd(),
		app.exportCmd(),
		app.tokenCmd(),
	)

	app.rootCmd = rootCmd
	return app
}

// Command returns the root command
func (app *App) Command() *cobra.Command {
	return app.rootCmd
}

// Execute runs the command line and releases the dependencies
func (app *App) Execute(ctx context.Context) error {
	defer app.close()
	return app.rootCmd.ExecuteContext(ctx)
}

func (app *App) dependencies(ctx context.Context) (*Dependencies, error) {
	if app.deps != nil {
		return app.deps, nil
	}
	deps, err := app.load(ctx, app.settings)
	if err != nil {
		return nil, err
	}
	app.deps = deps
	return deps, nil
}

func (app *App) close() {
	if app.deps != nil && app.deps.Close != nil {
		_ = app.deps.Close()
	}
}

// resolveVenture accepts a venture UUID or its numeric business ID
func resolveVenture(ctx context.Context, ventures VentureStore, ref string) (*pricing.Venture, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return ventures.FindByID(ctx, id)
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid venture %q: expected a UUID or a numeric venture ID", ref)
	}
	return ventures.FindByVentureID(ctx, n)
}
