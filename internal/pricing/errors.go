package pricing

import "errors"

var (
	ErrInvalidHierarchy = errors.New("invalid item hierarchy")
	ErrInvalidCost      = errors.New("invalid item cost")
	ErrEmptyName        = errors.New("name is required")
	ErrNotFound         = errors.New("item not found")
	ErrHasChildren      = errors.New("item has children")

	ErrInvalidRate      = errors.New("invalid rate")
	ErrDegenerateMargin = errors.New("rates leave no margin for a price")

	ErrUnknownItem     = errors.New("unknown item")
	ErrDuplicateItem   = errors.New("item selected more than once")
	ErrNotBillable     = errors.New("item is not billable")
	ErrEmptySelection  = errors.New("selection is empty")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidDuration = errors.New("duration must be a positive integer")
)
