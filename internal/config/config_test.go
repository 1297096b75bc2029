package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 14*24*time.Hour, cfg.Lending.LoanPeriod)
	assert.Equal(t, 14*24*time.Hour, cfg.Lending.RenewalPeriod)
	assert.Equal(t, 5, cfg.Lending.MaxActiveLoans)
	assert.Equal(t, 3, cfg.Lending.MaxRenewals)
	assert.Equal(t, 1, cfg.Lending.FinePerDay)
	assert.Equal(t, 3, cfg.Lending.ConflictRetries)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiry)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.False(t, cfg.Global.ReadOnly)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LENDING_MAX_ACTIVE_LOANS", "2")
	t.Setenv("LENDING_LOAN_PERIOD", "72h")
	t.Setenv("AUTH_SECURE_COOKIES", "false")
	t.Setenv("READ_ONLY", "true")

	cfg := NewConfig()

	assert.Equal(t, int32(9000), cfg.HTTP.Port)
	assert.Equal(t, 2, cfg.Lending.MaxActiveLoans)
	assert.Equal(t, 72*time.Hour, cfg.Lending.LoanPeriod)
	assert.False(t, cfg.Auth.SecureCookies)
	assert.True(t, cfg.Global.ReadOnly)
}

func TestDefaultLending_MatchesEnvDefaults(t *testing.T) {
	assert.Equal(t, DefaultLending().MaxActiveLoans, NewConfig().Lending.MaxActiveLoans)
	assert.Equal(t, DefaultLending().FinePerDay, NewConfig().Lending.FinePerDay)
}
