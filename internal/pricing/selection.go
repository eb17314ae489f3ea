package pricing

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// LineSelection is one item picked for a pricing request.
type LineSelection struct {
	ItemID   int64
	Quantity int
	Duration int
}

// Selection accumulates line selections before pricing. Each item appears at
// most once; lines keep the order they were added in.
type Selection struct {
	lines []LineSelection
}

// Add appends itemID with quantity 1 and duration 1. Adding an item that is
// already selected does nothing and returns false.
func (s *Selection) Add(itemID int64) bool {
	if _, ok := s.index(itemID); ok {
		return false
	}
	s.lines = append(s.lines, LineSelection{ItemID: itemID, Quantity: 1, Duration: 1})
	return true
}

// Remove drops the line for itemID, if any.
func (s *Selection) Remove(itemID int64) {
	if i, ok := s.index(itemID); ok {
		s.lines = slices.Delete(s.lines, i, i+1)
	}
}

// SetQuantity rejects non-positive values and leaves the line unchanged.
func (s *Selection) SetQuantity(itemID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	i, ok := s.index(itemID)
	if !ok {
		return fmt.Errorf("%w: %d is not selected", ErrUnknownItem, itemID)
	}
	s.lines[i].Quantity = quantity
	return nil
}

// SetDuration rejects non-positive values and leaves the line unchanged.
func (s *Selection) SetDuration(itemID int64, duration int) error {
	if duration < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, duration)
	}
	i, ok := s.index(itemID)
	if !ok {
		return fmt.Errorf("%w: %d is not selected", ErrUnknownItem, itemID)
	}
	s.lines[i].Duration = duration
	return nil
}

// Lines returns a copy of the selected lines in insertion order.
func (s *Selection) Lines() []LineSelection {
	return slices.Clone(s.lines)
}

// Len is the number of selected lines.
func (s *Selection) Len() int {
	return len(s.lines)
}

func (s *Selection) index(itemID int64) (int, bool) {
	_, i, ok := lo.FindIndexOf(s.lines, func(l LineSelection) bool {
		return l.ItemID == itemID
	})
	return i, ok
}
