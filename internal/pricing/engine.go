// Package pricing implements the services catalog and the price calculation
// over it: cost roll-ups, rate validation and inverse-margin price derivation.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is a priced snapshot of one selected item. It keeps the item name and
// unit cost as they were when the project was computed.
type Line struct {
	ItemID    int64
	ItemName  string
	Period    Period
	UnitCost  decimal.Decimal
	Quantity  int
	Duration  int
	TotalCost decimal.Decimal
}

// Project is the result of pricing a selection.
type Project struct {
	Name        string
	Items       []Line
	TotalCost   decimal.Decimal
	MinPrice    decimal.Decimal
	TargetPrice decimal.Decimal
}

// TargetMargin is the margin, in percent, left by the target price.
func (p Project) TargetMargin() decimal.Decimal {
	return Margin(p.TargetPrice, p.TotalCost)
}

// ComputeTotalCost resolves every selected item and sums cost × quantity ×
// duration. Lines come back in input order; an item may appear only once.
func ComputeTotalCost(selection []LineSelection, items ItemResolver) ([]Line, decimal.Decimal, error) {
	lines := make([]Line, 0, len(selection))
	total := decimal.Zero
	seen := make(map[int64]struct{}, len(selection))

	for _, sel := range selection {
		if _, dup := seen[sel.ItemID]; dup {
			return nil, decimal.Zero, fmt.Errorf("%w: %d", ErrDuplicateItem, sel.ItemID)
		}
		seen[sel.ItemID] = struct{}{}

		if sel.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidQuantity, sel.ItemID, sel.Quantity)
		}
		if sel.Duration < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d has duration %d", ErrInvalidDuration, sel.ItemID, sel.Duration)
		}

		item, ok := items.Item(sel.ItemID)
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownItem, sel.ItemID)
		}
		if !item.Billable() {
			return nil, decimal.Zero, fmt.Errorf("%w: %q has no cost", ErrNotBillable, item.Name)
		}

		lineTotal := item.Cost.Decimal.
			Mul(decimal.NewFromInt(int64(sel.Quantity))).
			Mul(decimal.NewFromInt(int64(sel.Duration)))
		total = total.Add(lineTotal)

		lines = append(lines, Line{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Period:    item.Period,
			UnitCost:  item.Cost.Decimal,
			Quantity:  sel.Quantity,
			Duration:  sel.Duration,
			TotalCost: lineTotal,
		})
	}

	return lines, total, nil
}

// DerivePrice returns totalCost / (1 - load/100), where load is profitRate
// plus taxes, agency commission and volume bonus. Every percentage is taken
// out of the final price, so the cost is divided rather than marked up.
func DerivePrice(totalCost, profitRate decimal.Decimal, rates RateConfig) (decimal.Decimal, error) {
	load := rates.Load(profitRate)
	if load.GreaterThanOrEqual(hundred) {
		return decimal.Zero, fmt.Errorf("%w: deductions add up to %s%%", ErrDegenerateMargin, load)
	}
	if totalCost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: total cost %s is negative", ErrInvalidCost, totalCost)
	}
	if totalCost.IsZero() {
		return decimal.Zero, nil
	}

	denominator := decimal.NewFromInt(1).Sub(load.Div(hundred))
	return totalCost.Div(denominator), nil
}

// ComputeProject prices a named selection: the minimum price uses the
// minimum profit rate and the target price the ideal one.
func ComputeProject(name string, selection []LineSelection, items ItemResolver, rates RateConfig) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("project: %w", ErrEmptyName)
	}
	if len(selection) == 0 {
		return Project{}, ErrEmptySelection
	}

	lines, total, err := ComputeTotalCost(selection, items)
	if err != nil {
		return Project{}, err
	}

	minPrice, err := DerivePrice(total, rates.ProfitMin, rates)
	if err != nil {
		return Project{}, fmt.Errorf("minimum price: %w", err)
	}
	targetPrice, err := DerivePrice(total, rates.ProfitIdeal, rates)
	if err != nil {
		return Project{}, fmt.Errorf("target price: %w", err)
	}

	return Project{
		Name:        name,
		Items:       lines,
		TotalCost:   total,
		MinPrice:    minPrice,
		TargetPrice: targetPrice,
	}, nil
}

// Simulation shows the prices a given cost would reach under a rate set.
type Simulation struct {
	Cost        decimal.Decimal
	MinPrice    decimal.Decimal
	TargetPrice decimal.Decimal
}

// Simulate derives the minimum and target prices for cost.
func Simulate(rates RateConfig, cost decimal.Decimal) (Simulation, error) {
	minPrice, err := DerivePrice(cost, rates.ProfitMin, rates)
	if err != nil {
		return Simulation{}, err
	}
	targetPrice, err := DerivePrice(cost, rates.ProfitIdeal, rates)
	if err != nil {
		return Simulation{}, err
	}
	return Simulation{Cost: cost, MinPrice: minPrice, TargetPrice: targetPrice}, nil
}

// Margin is (price - cost) / price in percent, or zero for a zero price.
func Margin(price, cost decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(price).Mul(hundred)
}
