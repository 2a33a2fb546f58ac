package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE", "SQLITE_PATH", "HOLIDAY_REFRESH", "FEMALE_LEAVE_DEDUCT", "CORS_ORIGINS", "BULK_CONCURRENCY", "LOG_JSON", "LOCALE"} {
		unsetEnv(t, k)
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "hours.db", cfg.SQLitePath)
	assert.Equal(t, 6*time.Hour, cfg.HolidayRefresh)
	assert.True(t, cfg.FemaleLeaveDeduct.IsZero())
	assert.Equal(t, 8, cfg.BulkConcurrency)
	assert.Equal(t, "ko", cfg.Locale)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("STORE", "Mongo")
	t.Setenv("FEMALE_LEAVE_DEDUCT", "0.5")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LOG_JSON", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Equal(t, "0.5", cfg.FemaleLeaveDeduct.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.LogJSON)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "eighty"},
		{"PORT", "70000"},
		{"STORE", "postgres"},
		{"HOLIDAY_REFRESH", "daily"},
		{"FEMALE_LEAVE_DEDUCT", "-1"},
		{"BULK_CONCURRENCY", "0"},
		{"LOG_JSON", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	// GIVEN: a .env file in the working directory and PORT already set
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLITE_PATH=from-file.db\nPORT=1111\n"), 0o600))
	t.Chdir(dir)
	unsetEnv(t, "SQLITE_PATH")
	t.Setenv("PORT", "2222")

	// WHEN: loading
	cfg, err := Load()
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("SQLITE_PATH") })

	// THEN: the file fills gaps, the environment wins
	assert.True(t, cfg.EnvFile)
	assert.Equal(t, "from-file.db", cfg.SQLitePath)
	assert.Equal(t, 2222, cfg.Port)
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
