package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 14, cfg.Circulation.BorrowDurationDays)
	assert.Equal(t, 7, cfg.Circulation.RenewalDurationDays)
	assert.Equal(t, 2, cfg.Circulation.MaxRenewals)
	assert.Equal(t, 3, cfg.Circulation.PickupWindowDays)
	assert.Equal(t, 5, cfg.Circulation.MaxConcurrentLoans)
	assert.True(t, cfg.Circulation.FinePerDayDecimal().Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.Circulation.MaxFineDecimal().Equal(decimal.RequireFromString("50")))
}

func TestCirculationConfig_Validate(t *testing.T) {
	valid := CirculationConfig{
		BorrowDurationDays:  14,
		RenewalDurationDays: 7,
		MaxRenewals:         2,
		FinePerDay:          0.50,
		MaxFineAmount:       50.00,
		PickupWindowDays:    3,
		MaxConcurrentLoans:  5,
	}
	require.NoError(t, valid.validate())

	tests := []struct {
		name   string
		mutate func(c *CirculationConfig)
	}{
		{"zero borrow duration", func(c *CirculationConfig) { c.BorrowDurationDays = 0 }},
		{"zero renewal duration", func(c *CirculationConfig) { c.RenewalDurationDays = 0 }},
		{"negative max renewals", func(c *CirculationConfig) { c.MaxRenewals = -1 }},
		{"negative fine per day", func(c *CirculationConfig) { c.FinePerDay = -0.01 }},
		{"negative max fine", func(c *CirculationConfig) { c.MaxFineAmount = -1 }},
		{"zero pickup window", func(c *CirculationConfig) { c.PickupWindowDays = 0 }},
		{"zero loan limit", func(c *CirculationConfig) { c.MaxConcurrentLoans = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestCirculationConfig_ZeroMaxRenewalsAllowed(t *testing.T) {
	cfg := CirculationConfig{
		BorrowDurationDays:  14,
		RenewalDurationDays: 7,
		MaxRenewals:         0,
		FinePerDay:          0.50,
		MaxFineAmount:       50.00,
		PickupWindowDays:    3,
		MaxConcurrentLoans:  5,
	}

	// A library may disallow renewals entirely
	assert.NoError(t, cfg.validate())
}
