package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/itabus/internal/db"
	"github.com/Simplici0/itabus/internal/migrations"
	"github.com/Simplici0/itabus/internal/pricing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(database))
	return database
}

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestItemStore_CatalogRoundTrip(t *testing.T) {
	database := newTestDB(t)
	items := NewItemStore(database)

	catalog := pricing.NewCatalog(items)
	root, err := catalog.AddItem(pricing.ItemFields{Name: "Mídia", Level: 1})
	require.NoError(t, err)
	sub, err := catalog.AddItem(pricing.ItemFields{Name: "Rádio", Level: 2, ParentID: &root.ID})
	require.NoError(t, err)
	spot, err := catalog.AddItem(pricing.ItemFields{Name: "Spot 30s", Level: 3, ParentID: &sub.ID, Cost: money("1200.75"), Period: pricing.PeriodWeek})
	require.NoError(t, err)
	_, err = catalog.UpdateItem(spot.ID, pricing.ItemFields{Name: "Spot 30s", Level: 3, ParentID: &sub.ID, Cost: money("1300"), Period: pricing.PeriodMonth})
	require.NoError(t, err)
	extra, err := catalog.AddItem(pricing.ItemFields{Name: "Extra", Level: 1})
	require.NoError(t, err)
	require.NoError(t, catalog.RemoveItem(extra.ID))

	loaded, err := items.LoadAllItems()
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	reloaded := pricing.NewCatalog(items)
	require.NoError(t, reloaded.Load(loaded))
	last, err := items.LastItemID()
	require.NoError(t, err)
	assert.Equal(t, extra.ID, last)
	reloaded.ReserveIDs(last)

	got, ok := reloaded.Item(spot.ID)
	require.True(t, ok)
	assert.Equal(t, pricing.PeriodMonth, got.Period)
	assert.Equal(t, "1300", got.Cost.Decimal.String())
	assert.Equal(t, sub.ID, *got.ParentID)

	rootItem, _ := reloaded.Item(root.ID)
	assert.Nil(t, rootItem.ParentID)
	assert.False(t, rootItem.Cost.Valid)

	total, err := reloaded.TotalCost(root.ID)
	require.NoError(t, err)
	assert.Equal(t, "1300", total.String())

	next, err := reloaded.AddItem(pricing.ItemFields{Name: "Nova", Level: 1})
	require.NoError(t, err)
	assert.Equal(t, extra.ID+1, next.ID, "the removed item's id must not be reused")
}

func TestRateStore(t *testing.T) {
	rates := NewRateStore(newTestDB(t))

	_, ok, err := rates.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := pricing.RateConfig{
		ProfitMin:        decimal.RequireFromString("10"),
		ProfitIdeal:      decimal.RequireFromString("20.5"),
		AgencyCommission: decimal.RequireFromString("5"),
		BV:               decimal.RequireFromString("3"),
		Taxes:            decimal.RequireFromString("15.25"),
	}
	require.NoError(t, rates.Save(cfg))

	cfg.Taxes = decimal.RequireFromString("16")
	require.NoError(t, rates.Save(cfg))

	got, ok, err := rates.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20.5", got.ProfitIdeal.String())
	assert.Equal(t, "16", got.Taxes.String())
}

func TestProjectStore_Lifecycle(t *testing.T) {
	database := newTestDB(t)
	users := NewUserStore(database)
	projects := NewProjectStore(database)

	owner, err := users.Create("vendedor", "vendas@itabus.com", "secret", RoleCommercial)
	require.NoError(t, err)
	other, err := users.Create("outro", "outro@itabus.com", "secret", "")
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	projects.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	project := pricing.Project{
		Name: "Campanha Inverno",
		Items: []pricing.Line{
			{ItemID: 3, ItemName: "Spot", Period: pricing.PeriodWeek, UnitCost: decimal.RequireFromString("100"), Quantity: 2, Duration: 3, TotalCost: decimal.RequireFromString("600")},
			{ItemID: 9, ItemName: "Outdoor", Period: pricing.PeriodMonth, UnitCost: decimal.RequireFromString("50.5"), Quantity: 1, Duration: 2, TotalCost: decimal.RequireFromString("101")},
		},
		TotalCost:   decimal.RequireFromString("701"),
		MinPrice:    decimal.RequireFromString("1046.2686567164179104"),
		TargetPrice: decimal.RequireFromString("1229.8245614035087719"),
	}

	first, err := projects.Create(owner.ID, project)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	project.Name = "Campanha Verão"
	second, err := projects.Create(other.ID, project)
	require.NoError(t, err)

	got, err := projects.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campanha Inverno", got.Name)
	assert.Equal(t, "vendedor", got.OwnerName)
	assert.True(t, got.TargetPrice.Equal(project.TargetPrice))
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Spot", got.Items[0].ItemName)
	assert.Equal(t, "Outdoor", got.Items[1].ItemName)
	assert.Equal(t, "50.5", got.Items[1].UnitCost.String())

	all, err := projects.List(ProjectFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, lo.Map(all, func(p StoredProject, _ int) string { return p.ID }))

	mine, err := projects.List(ProjectFilter{OwnerID: owner.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Len(t, mine[0].Items, 2)

	byName, err := projects.List(ProjectFilter{Query: "Verão"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, second.ID, byName[0].ID)

	require.NoError(t, projects.Delete(first.ID))
	require.ErrorIs(t, projects.Delete(first.ID), ErrNotFound)
	_, err = projects.Get(first.ID)
	require.ErrorIs(t, err, ErrNotFound)

	var orphanLines int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM project_items WHERE project_id = ?`, first.ID).Scan(&orphanLines))
	assert.Zero(t, orphanLines)
}

func TestUserStore(t *testing.T) {
	users := NewUserStore(newTestDB(t))

	admin, err := users.Create("admin", " Admin@Itabus.com ", "admin123", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin@itabus.com", admin.Email)
	assert.True(t, admin.IsAdmin())

	_, err = users.Create("admin2", "admin@itabus.com", "x", RoleAdmin)
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = users.Create("x", "x@itabus.com", "x", "root")
	require.ErrorIs(t, err, ErrInvalidUser)

	_, err = users.Create("", "y@itabus.com", "x", RoleAdmin)
	require.ErrorIs(t, err, ErrInvalidUser)

	got, err := users.Authenticate("ADMIN@itabus.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = users.Authenticate("admin@itabus.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate("nobody@itabus.com", "admin123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	exists, err := users.Exists("admin@itabus.com")
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := users.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, users.Delete(admin.ID))
	require.ErrorIs(t, users.Delete(admin.ID), ErrNotFound)
	_, err = users.ByID(admin.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2024-02-01 14:00:00", "2024-02-01T14:00:00Z", formatTimestamp(want)} {
		got, err := parseTimestamp(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}

	_, err := parseTimestamp("yesterday")
	require.Error(t, err)
}
