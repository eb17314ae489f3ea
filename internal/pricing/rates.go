package pricing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RateConfig holds the global percentages deducted from a sale price.
// Every field is a percentage in [0, 100).
type RateConfig struct {
	ProfitMin        decimal.Decimal
	ProfitIdeal      decimal.Decimal
	AgencyCommission decimal.Decimal
	BV               decimal.Decimal
	Taxes            decimal.Decimal
}

// Validate rejects any rate outside [0, 100).
func (r RateConfig) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"profit_min", r.ProfitMin},
		{"profit_ideal", r.ProfitIdeal},
		{"agency_commission", r.AgencyCommission},
		{"bv", r.BV},
		{"taxes", r.Taxes},
	}
	for _, f := range fields {
		if f.value.IsNegative() || f.value.GreaterThanOrEqual(hundred) {
			return fmt.Errorf("%w: %s must be at least 0 and below 100, got %s", ErrInvalidRate, f.name, f.value)
		}
	}
	return nil
}

// Load is the share of the final price, in percent, taken by the given
// profit rate plus taxes, agency commission and volume bonus.
func (r RateConfig) Load(profit decimal.Decimal) decimal.Decimal {
	return profit.Add(r.Taxes).Add(r.AgencyCommission).Add(r.BV)
}

// ActiveRates is the single rate configuration in effect. The zero value
// holds all-zero rates, which prices at cost.
type ActiveRates struct {
	mu  sync.RWMutex
	cfg RateConfig
}

// Set replaces the active configuration. There is no partial update.
func (a *ActiveRates) Set(cfg RateConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	return nil
}

// Get returns a copy of the active configuration.
func (a *ActiveRates) Get() RateConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}
