package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/itabus/internal/pricing"
)

// RateStore keeps the single rate_config row.
type RateStore struct {
	db *sql.DB
}

// NewRateStore returns a RateStore backed by db.
func NewRateStore(db *sql.DB) *RateStore {
	return &RateStore{db: db}
}

// Load returns the saved configuration. ok is false when rates were never saved.
func (s *RateStore) Load() (cfg pricing.RateConfig, ok bool, err error) {
	err = s.db.QueryRow(`
		SELECT profit_min, profit_ideal, agency_commission, bv, taxes
		FROM rate_config
		WHERE id = 1
	`).Scan(&cfg.ProfitMin, &cfg.ProfitIdeal, &cfg.AgencyCommission, &cfg.BV, &cfg.Taxes)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.RateConfig{}, false, nil
	}
	if err != nil {
		return pricing.RateConfig{}, false, fmt.Errorf("query rate_config: %w", err)
	}
	return cfg, true, nil
}

// Save overwrites every rate.
func (s *RateStore) Save(cfg pricing.RateConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO rate_config (id, profit_min, profit_ideal, agency_commission, bv, taxes)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profit_min = excluded.profit_min,
			profit_ideal = excluded.profit_ideal,
			agency_commission = excluded.agency_commission,
			bv = excluded.bv,
			taxes = excluded.taxes,
			updated_at = CURRENT_TIMESTAMP
	`,
		cfg.ProfitMin.String(),
		cfg.ProfitIdeal.String(),
		cfg.AgencyCommission.String(),
		cfg.BV.String(),
		cfg.Taxes.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert rate_config: %w", err)
	}
	return nil
}
