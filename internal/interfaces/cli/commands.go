package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/application/collection"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// rangeFlags are the flags shared by the report commands
type rangeFlags struct {
	start         string
	end           string
	subventures   bool
	billingPeriod int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.start, "start", "s", "", "First day (YYYY-MM-DD, default: first day of the end month)")
	cmd.Flags().StringVarP(&f.end, "end", "e", "", "Last day (YYYY-MM-DD, default: yesterday)")
	cmd.Flags().BoolVar(&f.subventures, "subventures", false, "Include all descendant ventures")
	cmd.Flags().IntVar(&f.billingPeriod, "billing-period", 0, "Scale the cost to a period of this many days")
}

// resolve returns the requested range, defaulting to the current month up
// to yesterday
func (f *rangeFlags) resolve(now time.Time) (time.Time, time.Time, []allocation.Option, error) {
	end := pricing.Day(now).AddDate(0, 0, -1)
	if f.end != "" {
		d, err := pricing.ParseDay(f.end)
		if err != nil {
			return time.Time{}, time.Time{}, nil, fmt.Errorf("invalid --end: %w", err)
		}
		end = d
	}
	start := pricing.Date(end.Year(), end.Month(), 1)
	if f.start != "" {
		d, err := pricing.ParseDay(f.start)
		if err != nil {
			return time.Time{}, time.Time{}, nil, fmt.Errorf("invalid --start: %w", err)
		}
		start = d
	}

	var opts []allocation.Option
	if f.subventures {
		opts = append(opts, allocation.WithSubventures())
	}
	if f.billingPeriod < 0 {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("--billing-period must be positive")
	}
	if f.billingPeriod > 0 {
		opts = append(opts, allocation.WithBillingPeriod(f.billingPeriod))
	}
	return start, end, opts, nil
}

func (app *App) collectCmd() *cobra.Command {
	var (
		date  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect the network usage of one day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			day := pricing.Day(app.now()).AddDate(0, 0, -1)
			if date != "" {
				d, err := pricing.ParseDay(date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				day = d
			}

			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			if deps.Ingester == nil {
				return ErrCollectorDisabled
			}

			var result *collection.IngestResult
			if force {
				result, err = deps.Ingester.Recollect(ctx, day)
			} else {
				result, err = deps.Ingester.IngestNetworkUsage(ctx, day)
			}
			if err != nil {
				return err
			}
			return renderIngest(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to collect (YYYY-MM-DD, default: yesterday)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Collect again even if the day is already collected")
	return cmd
}

func (app *App) assetsCmd() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "assets VENTURE",
		Short: "Show the device count, price and cost of a venture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, opts, err := rf.resolve(app.now())
			if err != nil {
				return err
			}
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}
			s, err := deps.Engine.AssetsCountPriceCost(ctx, v.ID, start, end, opts...)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), [][]string{
				{"Venture", "Start", "End", "Devices", "Price", "Cost"},
				{v.Name, day(start), day(end), fmt.Sprint(s.Count), money(s.Price), money(s.Cost)},
			})
		},
	}
	rf.register(cmd)
	return cmd
}

func (app *App) usagesCmd() *cobra.Command {
	var (
		rf        rangeFlags
		usageType string
	)
	cmd := &cobra.Command{
		Use:   "usages VENTURE",
		Short: "Show the consumption and price of one usage type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, opts, err := rf.resolve(app.now())
			if err != nil {
				return err
			}
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}
			t, err := deps.UsageTypes.FindByName(ctx, usageType)
			if err != nil {
				return fmt.Errorf("usage type %q: %w", usageType, err)
			}
			s, err := deps.Engine.UsagesCountPrice(ctx, v.ID, start, end, t.ID, opts...)
			if err != nil {
				return err
			}
			price := "unpriced"
			if s.Priced() {
				price = money(s.Price.Decimal)
			}
			return renderTable(cmd.OutOrStdout(), [][]string{
				{"Venture", "Usage", "Start", "End", "Count", "Price"},
				{v.Name, t.Name, day(start), day(end), quantity(s.Count), price},
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&usageType, "usage-type", "u", pricing.NetworkUsageTypeName, "Usage type name")
	return cmd
}

func (app *App) extraCostsCmd() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "extra-costs VENTURE",
		Short: "Show the extra costs overlapping the range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, opts, err := rf.resolve(app.now())
			if err != nil {
				return err
			}
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}
			s, err := deps.Engine.ExtraCosts(ctx, v.ID, start, end, opts...)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), [][]string{
				{"Venture", "Start", "End", "Costs", "Price", "Prorated"},
				{v.Name, day(start), day(end), fmt.Sprint(s.Count), money(s.Price), money(s.Prorated)},
			})
		},
	}
	rf.register(cmd)
	return cmd
}

func (app *App) dailyCmd() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "daily VENTURE",
		Short: "Show the device price of every day of the range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, opts, err := rf.resolve(app.now())
			if err != nil {
				return err
			}
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}
			days, err := deps.Engine.DailyDevicePrices(ctx, v.ID, start, end, opts...)
			if err != nil {
				return err
			}

			rows := [][]string{{"Date", "Devices", "Price"}}
			total := decimal.Zero
			for _, d := range days {
				rows = append(rows, []string{day(d.Date), fmt.Sprint(d.Devices), money(d.Price)})
				total = total.Add(d.Price)
			}
			rows = append(rows, []string{"Total", "", money(total)})
			return renderTable(cmd.OutOrStdout(), rows)
		},
	}
	rf.register(cmd)
	return cmd
}

func (app *App) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the venture hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			ventures, err := deps.Ventures.FindAll(ctx)
			if err != nil {
				return err
			}
			tree, err := pricing.NewTree(ventures)
			if err != nil {
				return err
			}
			return renderTree(cmd.OutOrStdout(), tree)
		},
	}
}

func (app *App) moveCmd() *cobra.Command {
	var (
		parent string
		root   bool
	)
	cmd := &cobra.Command{
		Use:   "move VENTURE",
		Short: "Move a venture and its subtree under another parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root == (parent != "") {
				return fmt.Errorf("exactly one of --parent or --root is required")
			}
			ctx := cmd.Context()
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}

			var parentID *uuid.UUID
			if parent != "" {
				p, err := resolveVenture(ctx, deps.Ventures, parent)
				if err != nil {
					return fmt.Errorf("parent: %w", err)
				}
				parentID = &p.ID
			}
			moved, err := deps.Ventures.Move(ctx, v.ID, parentID)
			if err != nil {
				return err
			}
			return renderMessage(cmd.OutOrStdout(), "Moved %s to %s", moved.Name, moved.Path)
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "New parent venture")
	cmd.Flags().BoolVar(&root, "root", false, "Make the venture a root")
	return cmd
}
