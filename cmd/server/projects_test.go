package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/itabus/internal/pricing"
	"github.com/Simplici0/itabus/internal/store"
)

// seedBillable creates Mídia > TV (1000/mes) and returns the billable id.
func (e *testEnv) seedBillable(t *testing.T) int64 {
	t.Helper()

	root := e.createItem(t, `{"name":"Mídia","level":1}`)
	tv := e.createItem(t, `{"name":"TV","level":2,"parent_id":`+itoa(root.ID)+`,"cost":"1000","period":"mes"}`)
	return tv.ID
}

func TestCalculatePrice_UsesActiveRates(t *testing.T) {
	env := newTestEnv(t)
	tv := env.seedBillable(t)

	rr := env.do(t, http.MethodPost, "/api/calculate-price", `{"items":[{"item_id":`+itoa(tv)+`}]}`, env.sales)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decodeBody[projectResponse](t, rr)
	assert.Equal(t, previewName, got.Name)
	assert.Empty(t, got.ID)
	assert.Equal(t, "1000.00", got.TotalCost)
	assert.Equal(t, "1492.54", got.MinPrice)
	assert.Equal(t, "1754.39", got.TargetPrice)
	assert.Equal(t, "43.0", got.TargetMargin)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Quantity)
	assert.Equal(t, 1, got.Items[0].Duration)

	rr = env.do(t, http.MethodPost, "/api/calculate-price", `{"items":[{"item_id":`+itoa(tv)+`,"quantity":2,"duration":3}]}`, env.sales)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "6000.00", decodeBody[projectResponse](t, rr).TotalCost)

	projects := decodeBody[[]projectResponse](t, env.do(t, http.MethodGet, "/api/projects", nil, env.admin))
	assert.Empty(t, projects, "a preview must not be persisted")
}

func TestCalculatePrice_Rejections(t *testing.T) {
	env := newTestEnv(t)
	tv := env.seedBillable(t)
	id := itoa(tv)

	roots := decodeBody[[]itemResponse](t, env.do(t, http.MethodGet, "/api/items?level=1", nil, env.sales))
	require.Len(t, roots, 1)

	for name, body := range map[string]string{
		"empty selection":   `{"items":[]}`,
		"zero quantity":     `{"items":[{"item_id":` + id + `,"quantity":0}]}`,
		"negative duration": `{"items":[{"item_id":` + id + `,"duration":-2}]}`,
		"unknown item":      `{"items":[{"item_id":999}]}`,
		"not billable":      `{"items":[{"item_id":` + itoa(roots[0].ID) + `}]}`,
		"duplicate item":    `{"items":[{"item_id":` + id + `},{"item_id":` + id + `}]}`,
	} {
		rr := env.do(t, http.MethodPost, "/api/calculate-price", body, env.sales)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
	}

	rr := env.do(t, http.MethodPost, "/api/projects", `{"name":"  ","items":[{"item_id":`+id+`}]}`, env.sales)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRates_GetAndReplace(t *testing.T) {
	env := newTestEnv(t)

	got := decodeBody[ratesResponse](t, env.do(t, http.MethodGet, "/api/global-rates", nil, env.sales))
	assert.Equal(t, "20", got.ProfitIdeal)
	require.NotNil(t, got.Simulation)
	assert.Equal(t, "1000.00", got.Simulation.Cost)
	assert.Equal(t, "1754.39", got.Simulation.TargetPrice)
	assert.Equal(t, "43.0", got.Simulation.TargetMargin)
	assert.Equal(t, "33.0", got.Simulation.MinMargin)

	rr := env.do(t, http.MethodPut, "/api/global-rates", `{"profit_min":10,"profit_ideal":20,"agency_commission":5,"bv":100,"taxes":15}`, env.admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/global-rates", `{"profit_min":10,"profit_ideal":20}`, env.admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/global-rates", `{"profit_min":"12.5","profit_ideal":25,"agency_commission":5,"bv":0,"taxes":10}`, env.admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "12.5", decodeBody[ratesResponse](t, rr).ProfitMin)

	assert.True(t, env.srv.rates.Get().ProfitIdeal.Equal(decimal.NewFromInt(25)))
	stored, ok, err := env.srv.rateStore.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12.5", stored.ProfitMin.String())

	// 60% profit plus 45% of deductions leaves nothing to divide by.
	rr = env.do(t, http.MethodPut, "/api/global-rates", `{"profit_min":10,"profit_ideal":60,"agency_commission":20,"bv":10,"taxes":15}`, env.admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Nil(t, decodeBody[ratesResponse](t, rr).Simulation)

	tv := env.seedBillable(t)
	rr = env.do(t, http.MethodPost, "/api/calculate-price", `{"items":[{"item_id":`+itoa(tv)+`}]}`, env.sales)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProjects_OwnershipAndSnapshots(t *testing.T) {
	env := newTestEnv(t)
	tv := env.seedBillable(t)

	rr := env.do(t, http.MethodPost, "/api/projects", `{"name":"Campanha Verão","items":[{"item_id":`+itoa(tv)+`,"duration":2}]}`, env.sales)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[projectResponse](t, rr)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "vendas", created.OwnerName)
	assert.Equal(t, "2000.00", created.TotalCost)

	rr = env.do(t, http.MethodPost, "/api/projects", `{"name":"Interno","items":[{"item_id":`+itoa(tv)+`}]}`, env.admin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	adminProject := decodeBody[projectResponse](t, rr)

	mine := decodeBody[[]projectResponse](t, env.do(t, http.MethodGet, "/api/projects", nil, env.sales))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	all := decodeBody[[]projectResponse](t, env.do(t, http.MethodGet, "/api/projects", nil, env.admin))
	assert.Len(t, all, 2)

	filtered := decodeBody[[]projectResponse](t, env.do(t, http.MethodGet, "/api/projects?q=Inter", nil, env.admin))
	require.Len(t, filtered, 1)
	assert.Equal(t, adminProject.ID, filtered[0].ID)

	rr = env.do(t, http.MethodGet, "/api/projects/"+adminProject.ID, nil, env.sales)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/projects/"+adminProject.ID, nil, env.sales)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/items/"+itoa(tv), `{"name":"TV aberta","cost":"5000"}`, env.admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/projects/"+created.ID, nil, env.admin)
	require.Equal(t, http.StatusOK, rr.Code)
	snapshot := decodeBody[projectResponse](t, rr)
	assert.Equal(t, "2000.00", snapshot.TotalCost)
	assert.Equal(t, "TV", snapshot.Items[0].ItemName)
	assert.Equal(t, "1000.00", snapshot.Items[0].UnitCost)

	rr = env.do(t, http.MethodGet, "/api/projects/"+created.ID+"/text", nil, env.sales)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, expected := range []string{"Projeto: Campanha Verão", "Responsável: vendas", "- TV: 1 x 2 mês x R$ 1.000,00 = R$ 2.000,00", "Preço ideal: R$ 3.508,77"} {
		assert.Contains(t, body, expected)
	}

	rr = env.do(t, http.MethodDelete, "/api/projects/"+created.ID, nil, env.sales)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/projects/"+created.ID, nil, env.sales)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleProjectTextReturnsPlainText(t *testing.T) {
	env := newTestEnv(t)

	admin, err := env.srv.users.Authenticate(adminEmail, adminPassword)
	require.NoError(t, err)

	stored, err := env.srv.projects.Create(admin.ID, pricing.Project{
		Name: "Cotação Demo",
		Items: []pricing.Line{{
			ItemID: 7, ItemName: "Outdoor", Period: pricing.PeriodWeek,
			UnitCost: decimal.RequireFromString("1234.5"), Quantity: 2, Duration: 4,
			TotalCost: decimal.RequireFromString("9876"),
		}},
		TotalCost:   decimal.RequireFromString("9876"),
		MinPrice:    decimal.RequireFromString("14740.2985"),
		TargetPrice: decimal.RequireFromString("17326.3158"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+stored.ID+"/text", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", stored.ID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, userKey, admin)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	env.srv.handleProjectText(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", rr.Header().Get("Content-Type"))
	}

	body := rr.Body.String()
	for _, expected := range []string{
		"Projeto: Cotação Demo",
		"- Outdoor: 2 x 4 semana x R$ 1.234,50 = R$ 9.876,00",
		"Custo total: R$ 9.876,00",
		"Preço mínimo: R$ 14.740,30",
		"Margem ideal: 43,0%",
	} {
		if !strings.Contains(body, expected) {
			t.Fatalf("expected body to contain %q, got: %s", expected, body)
		}
	}
}

func TestProjectTextDate(t *testing.T) {
	p := store.StoredProject{
		Project:   pricing.Project{Name: "X"},
		CreatedAt: time.Date(2024, 2, 1, 14, 5, 0, 0, time.UTC),
	}
	assert.Contains(t, projectText(p), "Data: 01/02/2024 14:05")
}
