package seed

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/itabus/internal/pricing"
	"github.com/Simplici0/itabus/internal/store"
)

const defaultAdminUsername = "admin"

// DefaultRates is the rate configuration installed on an empty database.
var DefaultRates = pricing.RateConfig{
	ProfitMin:        decimal.NewFromInt(10),
	ProfitIdeal:      decimal.NewFromInt(20),
	AgencyCommission: decimal.NewFromInt(5),
	BV:               decimal.NewFromInt(3),
	Taxes:            decimal.NewFromInt(15),
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRateConfig(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

// seedAdmin creates the configured admin unless any admin account exists.
func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM users WHERE role = ? OR email = ? LIMIT 1)
	`, string(store.RoleAdmin), email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO users (username, email, password_hash, role)
		VALUES (?, ?, ?, ?)
	`, defaultAdminUsername, email, hash, string(store.RoleAdmin)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureRateConfig(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM rate_config WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check rate config existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO rate_config (id, profit_min, profit_ideal, agency_commission, bv, taxes)
		VALUES (1, ?, ?, ?, ?, ?)
	`,
		DefaultRates.ProfitMin.String(),
		DefaultRates.ProfitIdeal.String(),
		DefaultRates.AgencyCommission.String(),
		DefaultRates.BV.String(),
		DefaultRates.Taxes.String(),
	); err != nil {
		return fmt.Errorf("insert rate config singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
