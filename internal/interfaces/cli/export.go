package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

// ErrExportDisabled is returned by export --upload when no bucket is configured
var ErrExportDisabled = errors.New("report export bucket is not configured")

const (
	summarySheet = "Summary"
	dailySheet   = "Daily"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// excelize built-in number format "#,##0.00"
	moneyNumFmt = 4
)

// ReportUploader stores an exported report and returns where it went
type ReportUploader interface {
	Upload(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

func (app *App) exportCmd() *cobra.Command {
	var (
		rf     rangeFlags
		output string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "export VENTURE",
		Short: "Export the cost report of a venture as an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" && !upload {
				return fmt.Errorf("at least one of --output or --upload is required")
			}
			ctx := cmd.Context()
			start, end, opts, err := rf.resolve(app.now())
			if err != nil {
				return err
			}
			deps, err := app.dependencies(ctx)
			if err != nil {
				return err
			}
			if upload && deps.Reports == nil {
				return ErrExportDisabled
			}
			v, err := resolveVenture(ctx, deps.Ventures, args[0])
			if err != nil {
				return err
			}

			report, err := collectReport(ctx, deps, v, start, end, opts...)
			if err != nil {
				return err
			}
			f, err := report.workbook()
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if output != "" {
				if err := f.SaveAs(output); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				if err := renderMessage(cmd.OutOrStdout(), "Report written to %s", output); err != nil {
					return err
				}
			}
			if upload {
				buf, err := f.WriteToBuffer()
				if err != nil {
					return fmt.Errorf("encode workbook: %w", err)
				}
				name := fmt.Sprintf("%d/%s_%s.xlsx", v.VentureID, day(start), day(end))
				uri, err := deps.Reports.Upload(ctx, name, buf.Bytes(), xlsxContentType)
				if err != nil {
					return err
				}
				return renderMessage(cmd.OutOrStdout(), "Report uploaded to %s", uri)
			}
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the workbook to this file")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the workbook to the export bucket")
	return cmd
}

type usageLine struct {
	name  string
	count float64
	price decimal.NullDecimal
}

// costReport is everything the workbook shows for one venture and range
type costReport struct {
	venture *pricing.Venture
	start   time.Time
	end     time.Time

	devices    int
	assetPrice decimal.Decimal
	assetCost  decimal.Decimal
	usages     []usageLine
	extraCount int
	extraPrice decimal.Decimal
	extraCost  decimal.Decimal
	days       []dayLine
}

type dayLine struct {
	date    time.Time
	devices int
	price   decimal.Decimal
}

func collectReport(ctx context.Context, deps *Dependencies, v *pricing.Venture, start, end time.Time, opts ...allocation.Option) (*costReport, error) {
	r := &costReport{venture: v, start: start, end: end}

	assets, err := deps.Engine.AssetsCountPriceCost(ctx, v.ID, start, end, opts...)
	if err != nil {
		return nil, err
	}
	r.devices, r.assetPrice, r.assetCost = assets.Count, assets.Price, assets.Cost

	types, err := deps.UsageTypes.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	for _, t := range types {
		s, err := deps.Engine.UsagesCountPrice(ctx, v.ID, start, end, t.ID, opts...)
		if err != nil {
			return nil, fmt.Errorf("usage type %q: %w", t.Name, err)
		}
		r.usages = append(r.usages, usageLine{name: t.Name, count: s.Count, price: s.Price})
	}

	extra, err := deps.Engine.ExtraCosts(ctx, v.ID, start, end, opts...)
	if err != nil {
		return nil, err
	}
	r.extraCount, r.extraPrice, r.extraCost = extra.Count, extra.Price, extra.Prorated

	days, err := deps.Engine.DailyDevicePrices(ctx, v.ID, start, end, opts...)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		r.days = append(r.days, dayLine{date: d.Date, devices: d.Devices, price: d.Price})
	}
	return r, nil
}

func (r *costReport) workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := r.writeSummary(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := r.writeDaily(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (r *costReport) writeSummary(f *excelize.File) error {
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := [][]any{
		{"Venture", r.venture.Name},
		{"Venture ID", r.venture.VentureID},
		{"Start", day(r.start)},
		{"End", day(r.end)},
		{},
		{"Item", "Count", "Price", "Cost"},
		{"Devices", r.devices, r.assetPrice.InexactFloat64(), r.assetCost.InexactFloat64()},
	}
	for _, u := range r.usages {
		var price any = "unpriced"
		if u.price.Valid {
			price = u.price.Decimal.InexactFloat64()
		}
		rows = append(rows, []any{u.name, u.count, price})
	}
	rows = append(rows, []any{"Extra costs", r.extraCount, r.extraPrice.InexactFloat64(), r.extraCost.InexactFloat64()})

	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	const tableHeader = 6
	if err := f.SetCellStyle(summarySheet, "A1", "A4", headerStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", tableHeader), fmt.Sprintf("D%d", tableHeader), headerStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("C%d", tableHeader+1), fmt.Sprintf("D%d", len(rows)), moneyStyle); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "A", 18)
}

func (r *costReport) writeDaily(f *excelize.File) error {
	if _, err := f.NewSheet(dailySheet); err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return err
	}

	if err := setRow(f, dailySheet, 1, []any{"Date", "Devices", "Price"}); err != nil {
		return err
	}
	total := decimal.Zero
	for i, d := range r.days {
		if err := setRow(f, dailySheet, i+2, []any{day(d.date), d.devices, d.price.InexactFloat64()}); err != nil {
			return err
		}
		total = total.Add(d.price)
	}
	last := len(r.days) + 2
	if err := setRow(f, dailySheet, last, []any{"Total", "", total.InexactFloat64()}); err != nil {
		return err
	}
	if err := f.SetCellStyle(dailySheet, "C2", fmt.Sprintf("C%d", last), moneyStyle); err != nil {
		return err
	}
	return f.SetColWidth(dailySheet, "A", "A", 12)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
