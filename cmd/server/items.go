package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/itabus/internal/pricing"
)

type itemResponse struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Level     int            `json:"level"`
	ParentID  *int64         `json:"parent_id"`
	Cost      *string        `json:"cost"`
	Period    string         `json:"period,omitempty"`
	Billable  bool           `json:"billable"`
	TotalCost string         `json:"total_cost"`
	Children  []itemResponse `json:"children,omitempty"`
}

// itemPayload is the writable part of an item. A PUT body is decoded over
// the current item, so absent fields keep their value and null clears them.
type itemPayload struct {
	Name     string           `json:"name"`
	Level    int              `json:"level"`
	ParentID *int64           `json:"parent_id"`
	Cost     *decimal.Decimal `json:"cost"`
	Period   string           `json:"period"`
}

func (p itemPayload) fields() pricing.ItemFields {
	f := pricing.ItemFields{
		Name:     p.Name,
		Level:    p.Level,
		ParentID: p.ParentID,
		Period:   pricing.Period(p.Period),
	}
	if p.Cost != nil {
		f.Cost = decimal.NewNullDecimal(*p.Cost)
	}
	return f
}

func payloadOf(it pricing.Item) itemPayload {
	p := itemPayload{
		Name:   it.Name,
		Level:  it.Level,
		Period: string(it.Period),
	}
	if it.ParentID != nil {
		p.ParentID = lo.ToPtr(*it.ParentID)
	}
	if it.Cost.Valid {
		p.Cost = lo.ToPtr(it.Cost.Decimal)
	}
	return p
}

func (s *server) toItemResponse(it pricing.Item) (itemResponse, error) {
	total, err := s.catalog.TotalCost(it.ID)
	if err != nil {
		return itemResponse{}, err
	}

	resp := itemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Level:     it.Level,
		ParentID:  it.ParentID,
		Period:    string(it.Period),
		Billable:  it.Billable(),
		TotalCost: money(total),
	}
	if it.Cost.Valid {
		resp.Cost = lo.ToPtr(money(it.Cost.Decimal))
	}
	return resp, nil
}

func (s *server) itemTree(it pricing.Item) (itemResponse, error) {
	resp, err := s.toItemResponse(it)
	if err != nil {
		return itemResponse{}, err
	}
	for _, child := range s.catalog.Children(it.ID) {
		node, err := s.itemTree(child)
		if err != nil {
			return itemResponse{}, err
		}
		resp.Children = append(resp.Children, node)
	}
	return resp, nil
}

// handleListItems supports ?level=N and ?parent_id=N, where parent_id=null
// selects the roots. With ?children=1 every item carries its subtree.
func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		parentID *int64
		roots    bool
		level    int
		nested   bool
	)
	if raw := strings.TrimSpace(q.Get("parent_id")); raw != "" {
		if raw == "null" {
			roots = true
		} else {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				s.writeError(w, r, fmt.Errorf("%w: parent_id must be an integer or null", errBadRequest))
				return
			}
			parentID = &id
		}
	}
	if raw := strings.TrimSpace(q.Get("level")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: level must be an integer", errBadRequest))
			return
		}
		level = n
	}
	if raw := strings.TrimSpace(q.Get("children")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: children must be a boolean", errBadRequest))
			return
		}
		nested = b
	}

	var items []pricing.Item
	switch {
	case level != 0:
		items = s.catalog.ItemsAt(level, parentID)
	case parentID != nil:
		items = s.catalog.Children(*parentID)
	default:
		items = s.catalog.All()
	}
	if roots {
		items = lo.Filter(items, func(it pricing.Item, _ int) bool { return it.ParentID == nil })
	}

	resp := make([]itemResponse, 0, len(items))
	render := s.toItemResponse
	if nested {
		render = s.itemTree
	}
	for _, it := range items {
		ir, err := render(it)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp = append(resp, ir)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.itemParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.itemTree(it)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var p itemPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	it, err := s.catalog.AddItem(p.fields())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.toItemResponse(it)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	current, err := s.itemParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p := payloadOf(current)
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	it, err := s.catalog.UpdateItem(current.ID, p.fields())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.toItemResponse(it)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.catalog.RemoveItem(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) itemParam(r *http.Request) (pricing.Item, error) {
	id, err := int64Param(r, "id")
	if err != nil {
		return pricing.Item{}, err
	}
	it, ok := s.catalog.Item(id)
	if !ok {
		return pricing.Item{}, fmt.Errorf("item %d: %w", id, pricing.ErrNotFound)
	}
	return it, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}
