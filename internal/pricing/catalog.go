package pricing

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Period is the recurrence unit an item cost is charged in.
type Period string

const (
	PeriodWeek  Period = "semana"
	PeriodMonth Period = "mes"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodWeek || p == PeriodMonth
}

const (
	LevelCategory      = 1
	LevelSubcategory   = 2
	LevelSpecification = 3
)

// Item is a node of the three-level services catalog.
type Item struct {
	ID       int64
	Name     string
	Level    int
	ParentID *int64
	Cost     decimal.NullDecimal
	Period   Period
}

// Billable reports whether the item carries its own cost and can be priced.
func (i Item) Billable() bool {
	return i.Cost.Valid
}

func (i Item) clone() Item {
	if i.ParentID != nil {
		i.ParentID = lo.ToPtr(*i.ParentID)
	}
	return i
}

// ItemFields are the caller-supplied attributes of an item.
type ItemFields struct {
	Name     string
	Level    int
	ParentID *int64
	Cost     decimal.NullDecimal
	Period   Period
}

// CatalogListener receives catalog mutations before they become visible.
// Returning an error aborts the mutation.
type CatalogListener interface {
	ItemChanged(item Item) error
	ItemRemoved(id int64) error
}

// ItemResolver looks up catalog items by id.
type ItemResolver interface {
	Item(id int64) (Item, bool)
}

// Catalog owns the item tree. Every mutation goes through AddItem, UpdateItem
// and RemoveItem so the hierarchy invariants hold at all times.
type Catalog struct {
	mu       sync.RWMutex
	items    map[int64]*Item
	children map[int64][]int64
	nextID   int64
	listener CatalogListener
}

// NewCatalog returns an empty catalog. listener may be nil.
func NewCatalog(listener CatalogListener) *Catalog {
	return &Catalog{
		items:    make(map[int64]*Item),
		children: make(map[int64][]int64),
		nextID:   1,
		listener: listener,
	}
}

// Load replaces the catalog contents with items read from persistence.
// The whole set is validated before anything is installed.
func (c *Catalog) Load(items []Item) error {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int {
		if a.Level != b.Level {
			return cmp.Compare(a.Level, b.Level)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	fresh := &Catalog{
		items:    make(map[int64]*Item, len(sorted)),
		children: make(map[int64][]int64),
		nextID:   1,
	}
	for _, it := range sorted {
		if it.ID <= 0 {
			return fmt.Errorf("load item %q: invalid id %d", it.Name, it.ID)
		}
		if _, dup := fresh.items[it.ID]; dup {
			return fmt.Errorf("load item %d: duplicate id", it.ID)
		}
		fields := fieldsOf(it)
		if err := fresh.validate(fields, 0); err != nil {
			return fmt.Errorf("load item %d: %w", it.ID, err)
		}
		fresh.insert(itemOf(it.ID, fields))
		if it.ID >= fresh.nextID {
			fresh.nextID = it.ID + 1
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = fresh.items
	c.children = fresh.children
	c.nextID = fresh.nextID
	return nil
}

// ReserveIDs keeps ids up to lastID from being assigned again, including
// ids of items removed before the catalog was loaded.
func (c *Catalog) ReserveIDs(lastID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lastID >= c.nextID {
		c.nextID = lastID + 1
	}
}

// AddItem validates fields and inserts a new item with a fresh id.
func (c *Catalog) AddItem(fields ItemFields) (Item, error) {
	fields = normalize(fields)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate(fields, 0); err != nil {
		return Item{}, err
	}

	item := itemOf(c.nextID, fields)
	if c.listener != nil {
		if err := c.listener.ItemChanged(item.clone()); err != nil {
			return Item{}, fmt.Errorf("persist new item: %w", err)
		}
	}

	c.nextID++
	c.insert(item)
	return item.clone(), nil
}

// UpdateItem replaces the fields of an existing item. The post-update state
// must satisfy the same rules as a new item.
func (c *Catalog) UpdateItem(id int64, fields ItemFields) (Item, error) {
	fields = normalize(fields)

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err := c.validate(fields, id); err != nil {
		return Item{}, err
	}
	if fields.Level != current.Level && len(c.children[id]) > 0 {
		return Item{}, fmt.Errorf("%w: item %d has children and cannot change level", ErrInvalidHierarchy, id)
	}

	item := itemOf(id, fields)
	if c.listener != nil {
		if err := c.listener.ItemChanged(item.clone()); err != nil {
			return Item{}, fmt.Errorf("persist item %d: %w", id, err)
		}
	}

	c.unlink(*current)
	c.insert(item)
	return item.clone(), nil
}

// RemoveItem deletes a leaf item. Items with children are rejected; callers
// cascade by removing the deepest level first.
func (c *Catalog) RemoveItem(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.items[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if n := len(c.children[id]); n > 0 {
		return fmt.Errorf("%w: item %d has %d children", ErrHasChildren, id, n)
	}

	if c.listener != nil {
		if err := c.listener.ItemRemoved(id); err != nil {
			return fmt.Errorf("persist removal of item %d: %w", id, err)
		}
	}

	c.unlink(*current)
	delete(c.children, id)
	return nil
}

// Item returns a copy of the item with the given id.
func (c *Catalog) Item(id int64) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return view{c}.Item(id)
}

// TotalCost is the item's own cost plus the total cost of each child,
// recomputed on every call.
func (c *Catalog) TotalCost(id int64) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.items[id]; !ok {
		return decimal.Zero, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return c.totalCost(id), nil
}

func (c *Catalog) totalCost(id int64) decimal.Decimal {
	total := decimal.Zero
	if it := c.items[id]; it.Cost.Valid {
		total = it.Cost.Decimal
	}
	for _, child := range c.children[id] {
		total = total.Add(c.totalCost(child))
	}
	return total
}

// ItemsAt lists items of a level ordered by id. A non-nil parentID narrows
// the result to that parent's children.
func (c *Catalog) ItemsAt(level int, parentID *int64) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.sortedIDs()
	if parentID != nil {
		ids = c.children[*parentID]
	}
	matching := lo.Filter(ids, func(id int64, _ int) bool {
		return c.items[id].Level == level
	})
	return lo.Map(matching, func(id int64, _ int) Item {
		return c.items[id].clone()
	})
}

// Children returns the direct children of an item ordered by id.
func (c *Catalog) Children(id int64) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.Map(c.children[id], func(child int64, _ int) Item {
		return c.items[child].clone()
	})
}

// All returns every item ordered by id.
func (c *Catalog) All() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.Map(c.sortedIDs(), func(id int64, _ int) Item {
		return c.items[id].clone()
	})
}

// View runs fn with a consistent read-only view of the catalog. Mutations
// wait until fn returns.
func (c *Catalog) View(fn func(ItemResolver) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(view{c})
}

type view struct {
	c *Catalog
}

func (v view) Item(id int64) (Item, bool) {
	it, ok := v.c.items[id]
	if !ok {
		return Item{}, false
	}
	return it.clone(), true
}

func (c *Catalog) sortedIDs() []int64 {
	return slices.Sorted(maps.Keys(c.items))
}

func (c *Catalog) insert(item Item) {
	stored := item
	c.items[item.ID] = &stored
	if item.ParentID == nil {
		return
	}
	siblings := c.children[*item.ParentID]
	pos, _ := slices.BinarySearch(siblings, item.ID)
	c.children[*item.ParentID] = slices.Insert(siblings, pos, item.ID)
}

func (c *Catalog) unlink(item Item) {
	delete(c.items, item.ID)
	if item.ParentID == nil {
		return
	}
	siblings := c.children[*item.ParentID]
	if pos, found := slices.BinarySearch(siblings, item.ID); found {
		siblings = slices.Delete(siblings, pos, pos+1)
	}
	if len(siblings) == 0 {
		delete(c.children, *item.ParentID)
		return
	}
	c.children[*item.ParentID] = siblings
}

// validate checks fields against the current tree. self is the id of the
// item being updated, or 0 for a new item.
func (c *Catalog) validate(f ItemFields, self int64) error {
	if f.Name == "" {
		return ErrEmptyName
	}

	if f.Level < LevelCategory || f.Level > LevelSpecification {
		return fmt.Errorf("%w: level %d is not 1, 2 or 3", ErrInvalidHierarchy, f.Level)
	}
	if f.Level == LevelCategory {
		if f.ParentID != nil {
			return fmt.Errorf("%w: level 1 items cannot have a parent", ErrInvalidHierarchy)
		}
	} else {
		if f.ParentID == nil {
			return fmt.Errorf("%w: level %d items need a parent", ErrInvalidHierarchy, f.Level)
		}
		if *f.ParentID == self {
			return fmt.Errorf("%w: item cannot be its own parent", ErrInvalidHierarchy)
		}
		parent, ok := c.items[*f.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent %d does not exist", ErrInvalidHierarchy, *f.ParentID)
		}
		if parent.Level != f.Level-1 {
			return fmt.Errorf("%w: level %d item cannot sit under level %d item %d",
				ErrInvalidHierarchy, f.Level, parent.Level, parent.ID)
		}
	}

	switch {
	case f.Cost.Valid && f.Period == "":
		return fmt.Errorf("%w: cost requires a period", ErrInvalidCost)
	case !f.Cost.Valid && f.Period != "":
		return fmt.Errorf("%w: period requires a cost", ErrInvalidCost)
	case f.Cost.Valid && f.Cost.Decimal.IsNegative():
		return fmt.Errorf("%w: cost %s is negative", ErrInvalidCost, f.Cost.Decimal)
	case f.Period != "" && !f.Period.Valid():
		return fmt.Errorf("%w: unknown period %q", ErrInvalidCost, f.Period)
	}
	return nil
}

func normalize(f ItemFields) ItemFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Period = Period(strings.TrimSpace(string(f.Period)))
	if f.ParentID != nil {
		f.ParentID = lo.ToPtr(*f.ParentID)
	}
	return f
}

func fieldsOf(it Item) ItemFields {
	return normalize(ItemFields{
		Name:     it.Name,
		Level:    it.Level,
		ParentID: it.ParentID,
		Cost:     it.Cost,
		Period:   it.Period,
	})
}

func itemOf(id int64, f ItemFields) Item {
	return Item{
		ID:       id,
		Name:     f.Name,
		Level:    f.Level,
		ParentID: f.ParentID,
		Cost:     f.Cost,
		Period:   f.Period,
	}
}
