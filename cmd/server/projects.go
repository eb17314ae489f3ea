package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/itabus/internal/pricing"
	"github.com/Simplici0/itabus/internal/store"
)

const previewName = "Simulação"

type lineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity *int  `json:"quantity"`
	Duration *int  `json:"duration"`
}

type projectRequest struct {
	Name  string        `json:"name"`
	Items []lineRequest `json:"items"`
}

// selection builds the line selection. Missing quantity and duration default
// to 1; explicit values below 1 are rejected.
func (req projectRequest) selection() ([]pricing.LineSelection, error) {
	var sel pricing.Selection
	for _, l := range req.Items {
		if !sel.Add(l.ItemID) {
			return nil, fmt.Errorf("%w: item %d selected more than once", errBadRequest, l.ItemID)
		}
		if l.Quantity != nil {
			if err := sel.SetQuantity(l.ItemID, *l.Quantity); err != nil {
				return nil, err
			}
		}
		if l.Duration != nil {
			if err := sel.SetDuration(l.ItemID, *l.Duration); err != nil {
				return nil, err
			}
		}
	}
	return sel.Lines(), nil
}

type lineResponse struct {
	ItemID    int64  `json:"item_id"`
	ItemName  string `json:"item_name"`
	Period    string `json:"period"`
	UnitCost  string `json:"unit_cost"`
	Quantity  int    `json:"quantity"`
	Duration  int    `json:"duration"`
	TotalCost string `json:"total_cost"`
}

type projectResponse struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	OwnerID      int64          `json:"owner_id,omitempty"`
	OwnerName    string         `json:"owner_name,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	TotalCost    string         `json:"total_cost"`
	MinPrice     string         `json:"min_price"`
	TargetPrice  string         `json:"target_price"`
	TargetMargin string         `json:"target_margin"`
	Items        []lineResponse `json:"items"`
}

func toProjectResponse(p pricing.Project) projectResponse {
	return projectResponse{
		Name:         p.Name,
		TotalCost:    money(p.TotalCost),
		MinPrice:     money(p.MinPrice),
		TargetPrice:  money(p.TargetPrice),
		TargetMargin: p.TargetMargin().StringFixed(1),
		Items: lo.Map(p.Items, func(l pricing.Line, _ int) lineResponse {
			return lineResponse{
				ItemID:    l.ItemID,
				ItemName:  l.ItemName,
				Period:    string(l.Period),
				UnitCost:  money(l.UnitCost),
				Quantity:  l.Quantity,
				Duration:  l.Duration,
				TotalCost: money(l.TotalCost),
			}
		}),
	}
}

func toStoredProjectResponse(p store.StoredProject) projectResponse {
	resp := toProjectResponse(p.Project)
	resp.ID = p.ID
	resp.OwnerID = p.OwnerID
	resp.OwnerName = p.OwnerName
	resp.CreatedAt = p.CreatedAt.Format(timeLayout)
	return resp
}

// price resolves the whole selection under one catalog read lock against
// the rates active at call time.
func (s *server) price(req projectRequest) (pricing.Project, error) {
	lines, err := req.selection()
	if err != nil {
		return pricing.Project{}, err
	}

	rates := s.rates.Get()
	var project pricing.Project
	err = s.catalog.View(func(items pricing.ItemResolver) error {
		var err error
		project, err = pricing.ComputeProject(req.Name, lines, items, rates)
		return err
	})
	return project, err
}

func (s *server) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = previewName
	}

	project, err := s.price(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (s *server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	project, err := s.price(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user := userFrom(r)
	stored, err := s.projects.Create(user.ID, project)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stored.OwnerName = user.Username

	writeJSON(w, http.StatusCreated, toStoredProjectResponse(stored))
}

// handleListProjects returns every project to admins and only their own to
// commercial users.
func (s *server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	filter := store.ProjectFilter{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if !user.IsAdmin() {
		filter.OwnerID = user.ID
	}

	projects, err := s.projects.List(filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(projects, func(p store.StoredProject, _ int) projectResponse {
		return toStoredProjectResponse(p)
	}))
}

func (s *server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.visibleProject(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoredProjectResponse(p))
}

func (s *server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.visibleProject(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.projects.Delete(p.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProjectText renders the stored snapshot as a plain-text quote. The
// catalog is not consulted, so later price edits do not change it.
func (s *server) handleProjectText(w http.ResponseWriter, r *http.Request) {
	p, err := s.visibleProject(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(projectText(p)))
}

func (s *server) visibleProject(r *http.Request) (store.StoredProject, error) {
	p, err := s.projects.Get(chi.URLParam(r, "id"))
	if err != nil {
		return store.StoredProject{}, err
	}

	user := userFrom(r)
	if !user.IsAdmin() && p.OwnerID != user.ID {
		return store.StoredProject{}, fmt.Errorf("%w: project belongs to another user", errForbidden)
	}
	return p, nil
}

var periodLabels = map[pricing.Period]string{
	pricing.PeriodWeek:  "semana",
	pricing.PeriodMonth: "mês",
}

func projectText(p store.StoredProject) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Projeto: %s\n", p.Name)
	fmt.Fprintf(&b, "Data: %s\n", p.CreatedAt.Format("02/01/2006 15:04"))
	if p.OwnerName != "" {
		fmt.Fprintf(&b, "Responsável: %s\n", p.OwnerName)
	}

	b.WriteString("\nItens:\n")
	for _, l := range p.Items {
		fmt.Fprintf(&b, "- %s: %d x %d %s x %s = %s\n",
			l.ItemName, l.Quantity, l.Duration, periodLabels[l.Period], brl(l.UnitCost), brl(l.TotalCost))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Custo total: %s\n", brl(p.TotalCost))
	fmt.Fprintf(&b, "Preço mínimo: %s\n", brl(p.MinPrice))
	fmt.Fprintf(&b, "Preço ideal: %s\n", brl(p.TargetPrice))
	fmt.Fprintf(&b, "Margem ideal: %s%%\n", humanize.FormatFloat("#.###,#", p.TargetMargin().Round(1).InexactFloat64()))

	return b.String()
}

// brl formats an amount the way quotes are read in Brazil: R$ 1.234,56.
func brl(d decimal.Decimal) string {
	return "R$ " + humanize.FormatFloat("#.###,##", d.Round(2).InexactFloat64())
}
