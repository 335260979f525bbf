package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tioga/tax-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "./data/taxledger.db", cfg.Database.Path)
	assert.Equal(t, "./data/backups", cfg.Database.BackupDir)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), cfg.IssueDate())
	assert.NotEmpty(t, cfg.CORS.Origins)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/other.db")
	t.Setenv("DEFAULT_ISSUE_DATE", "2026-03-01")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 2026, cfg.IssueDate().Year())
}

func TestLoad_BadIssueDate(t *testing.T) {
	t.Setenv("DEFAULT_ISSUE_DATE", "March 1st")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_ISSUE_DATE")
}
