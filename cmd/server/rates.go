package main

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/itabus/internal/pricing"
)

var simulationCost = decimal.NewFromInt(1000)

type ratesPayload struct {
	ProfitMin        *decimal.Decimal `json:"profit_min"`
	ProfitIdeal      *decimal.Decimal `json:"profit_ideal"`
	AgencyCommission *decimal.Decimal `json:"agency_commission"`
	BV               *decimal.Decimal `json:"bv"`
	Taxes            *decimal.Decimal `json:"taxes"`
}

func (p ratesPayload) config() (pricing.RateConfig, error) {
	fields := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"profit_min", p.ProfitMin},
		{"profit_ideal", p.ProfitIdeal},
		{"agency_commission", p.AgencyCommission},
		{"bv", p.BV},
		{"taxes", p.Taxes},
	}
	for _, f := range fields {
		if f.value == nil {
			return pricing.RateConfig{}, fmt.Errorf("%w: %s is required", errBadRequest, f.name)
		}
	}

	return pricing.RateConfig{
		ProfitMin:        *p.ProfitMin,
		ProfitIdeal:      *p.ProfitIdeal,
		AgencyCommission: *p.AgencyCommission,
		BV:               *p.BV,
		Taxes:            *p.Taxes,
	}, nil
}

type simulationResponse struct {
	Cost         string `json:"cost"`
	MinPrice     string `json:"min_price"`
	TargetPrice  string `json:"target_price"`
	MinMargin    string `json:"min_margin"`
	TargetMargin string `json:"target_margin"`
}

type ratesResponse struct {
	ProfitMin        string              `json:"profit_min"`
	ProfitIdeal      string              `json:"profit_ideal"`
	AgencyCommission string              `json:"agency_commission"`
	BV               string              `json:"bv"`
	Taxes            string              `json:"taxes"`
	Simulation       *simulationResponse `json:"simulation"`
}

// toRatesResponse leaves Simulation nil when the rates add up to 100% or
// more and no price can be derived.
func toRatesResponse(cfg pricing.RateConfig) ratesResponse {
	resp := ratesResponse{
		ProfitMin:        cfg.ProfitMin.String(),
		ProfitIdeal:      cfg.ProfitIdeal.String(),
		AgencyCommission: cfg.AgencyCommission.String(),
		BV:               cfg.BV.String(),
		Taxes:            cfg.Taxes.String(),
	}

	sim, err := pricing.Simulate(cfg, simulationCost)
	if err == nil {
		resp.Simulation = &simulationResponse{
			Cost:         money(sim.Cost),
			MinPrice:     money(sim.MinPrice),
			TargetPrice:  money(sim.TargetPrice),
			MinMargin:    pricing.Margin(sim.MinPrice, sim.Cost).StringFixed(1),
			TargetMargin: pricing.Margin(sim.TargetPrice, sim.Cost).StringFixed(1),
		}
	}
	return resp
}

func (s *server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toRatesResponse(s.rates.Get()))
}

// handleUpdateRates replaces the whole configuration. It is persisted first
// and activated only once stored.
func (s *server) handleUpdateRates(w http.ResponseWriter, r *http.Request) {
	var p ratesPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	cfg, err := p.config()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.rateStore.Save(cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.rates.Set(cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRatesResponse(cfg))
}
