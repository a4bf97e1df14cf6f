package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pricing/backend/internal/application/allocation"
	"github.com/pricing/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingUploader struct {
	name        string
	contentType string
	body        []byte
	err         error
}

func (u *recordingUploader) Upload(_ context.Context, name string, body []byte, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.name, u.body, u.contentType = name, body, contentType
	return "s3://finance/reports/" + name, nil
}

// expectReport stubs every engine call of an export of the root venture for
// 2024-05-01..2024-05-02
func (f *fixture) expectReport(t *testing.T) {
	t.Helper()
	start, end := pricing.Date(2024, 5, 1), pricing.Date(2024, 5, 2)
	f.engine.On("AssetsCountPriceCost", f.root.ID, start, end, 0).
		Return(allocation.AssetsSummary{Count: 3, Price: decimal.RequireFromString("420.5"), Cost: decimal.NewFromInt(28)}, nil)
	f.engine.On("UsagesCountPrice", f.root.ID, start, end, f.network.ID, 0).
		Return(allocation.UsageSummary{Count: 2048}, nil)
	f.engine.On("ExtraCosts", f.root.ID, start, end, 0).
		Return(allocation.ExtraCostSummary{Count: 1, Price: decimal.NewFromInt(310), Prorated: decimal.NewFromInt(20)}, nil)
	f.engine.On("DailyDevicePrices", f.root.ID, start, end, 0).
		Return([]allocation.DayPrice{
			{Date: start, Devices: 2, Price: decimal.NewFromInt(30)},
			{Date: end, Devices: 1, Price: decimal.RequireFromString("12.5")},
		}, nil)
}

func rowsByLabel(t *testing.T, f *excelize.File, sheet string) map[string][]string {
	t.Helper()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	byLabel := make(map[string][]string)
	for _, row := range rows {
		if len(row) > 0 {
			byLabel[row[0]] = row
		}
	}
	return byLabel
}

func TestExport_File(t *testing.T) {
	f := newFixture(t)
	f.expectReport(t)
	path := filepath.Join(t.TempDir(), "platform.xlsx")

	out, err := f.run("export", "10", "-s", "2024-05-01", "-e", "2024-05-02", "-o", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Report written to")
	f.engine.AssertExpectations(t)

	book, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	assert.Equal(t, []string{"Summary", "Daily"}, book.GetSheetList())

	summary := rowsByLabel(t, book, "Summary")
	assert.Equal(t, []string{"Venture", "Platform"}, summary["Venture"])
	assert.Equal(t, []string{"Devices", "3", "420.5", "28"}, summary["Devices"])
	assert.Equal(t, []string{"network", "2048", "unpriced"}, summary["network"])
	assert.Equal(t, []string{"Extra costs", "1", "310", "20"}, summary["Extra costs"])

	daily := rowsByLabel(t, book, "Daily")
	assert.Equal(t, []string{"2024-05-01", "2", "30"}, daily["2024-05-01"])
	assert.Equal(t, []string{"2024-05-02", "1", "12.5"}, daily["2024-05-02"])
	assert.Equal(t, []string{"Total", "", "42.5"}, daily["Total"])
}

func TestExport_Upload(t *testing.T) {
	f := newFixture(t)
	f.expectReport(t)
	uploader := &recordingUploader{}
	f.deps.Reports = uploader

	out, err := f.run("export", "10", "-s", "2024-05-01", "-e", "2024-05-02", "--upload")

	require.NoError(t, err)
	assert.Contains(t, out, "s3://finance/reports/10/2024-05-01_2024-05-02.xlsx")
	assert.Equal(t, "10/2024-05-01_2024-05-02.xlsx", uploader.name)
	assert.Equal(t, xlsxContentType, uploader.contentType)

	book, err := excelize.OpenReader(bytes.NewReader(uploader.body))
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	assert.Equal(t, []string{"Summary", "Daily"}, book.GetSheetList())
}

func TestExport_Errors(t *testing.T) {
	t.Run("requires a destination", func(t *testing.T) {
		_, err := newFixture(t).run("export", "10")
		assert.ErrorContains(t, err, "--output or --upload")
	})

	t.Run("upload without bucket", func(t *testing.T) {
		_, err := newFixture(t).run("export", "10", "--upload")
		assert.ErrorIs(t, err, ErrExportDisabled)
	})

	t.Run("upload failure", func(t *testing.T) {
		f := newFixture(t)
		f.expectReport(t)
		f.deps.Reports = &recordingUploader{err: errors.New("access denied")}

		_, err := f.run("export", "10", "-s", "2024-05-01", "-e", "2024-05-02", "--upload")

		assert.EqualError(t, err, "access denied")
	})
}
