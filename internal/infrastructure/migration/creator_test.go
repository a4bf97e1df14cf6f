package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/pricing/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add usage types", "add_usage_types"},
		{"Add-Usage-Types", "add_usage_types"},
		{"ADD_USAGE_TYPES", "add_usage_types"},
		{"add__usage__types", "add_usage_types"},
		{"Add Prices 123", "add_prices_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add extra cost index")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_extra_cost_index.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_extra_cost_index.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_extra_cost_index\n")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	second, err := CreateMigration(dir, "drop old view")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "000002_drop_old_view", second.File())

	_, err = CreateMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_prices.up.sql":   {Data: []byte("--")},
		"000002_add_prices.down.sql": {Data: []byte("--")},
		"000010_backfill.up.sql":     {Data: []byte("--")},
		"000001_init.up.sql":         {Data: []byte("--")},
		"000001_init.down.sql":       {Data: []byte("--")},
		"README.md":                  {Data: []byte("docs")},
		"notes.sql":                  {Data: []byte("--")},
		"abc_init.up.sql":            {Data: []byte("--")},
		"000003_sub.up.sql/x":        {Data: []byte("--")},
	}

	list, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{
		{Version: 1, Name: "init", HasDown: true},
		{Version: 2, Name: "add_prices", HasDown: true},
		{Version: 10, Name: "backfill", HasDown: false},
	}, list)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	list, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrations(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i, m := range list {
		assert.Equal(t, uint(i+1), m.Version, "versions are sequential")
		assert.True(t, m.HasDown, "%s has a down migration", m.File())
	}
}
