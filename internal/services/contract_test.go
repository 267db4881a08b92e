package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chxlky/contract-kanban/internal/activity/activitytest"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItems struct {
	items []models.Item
	err   error
	urls  []string
}

func (f *fakeItems) FetchItems(_ context.Context, url string) ([]models.Item, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Item(nil), f.items...), nil
}

type contractFixture struct {
	svc    *ContractService
	items  *fakeItems
	events *activitytest.Capture
	actor  Actor
}

func newContractFixture(t *testing.T) *contractFixture {
	t.Helper()
	f := &contractFixture{
		items:  &fakeItems{},
		events: &activitytest.Capture{},
		actor:  Actor{UserID: ref(uuid.New()), IP: "10.0.0.2"},
	}
	clock := newClock()
	f.svc = NewContractService(testutil.DB(t), testutil.Logger(t), f.events, ContractOptions{Items: f.items, Now: clock.now})
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func contractInput(number string) ContractInput {
	return ContractInput{
		Name:           "Reforma do pavilhão",
		ContractNumber: number,
		StartDate:      "2025-03-01",
		Value:          decPtr("150000.50"),
	}
}

func TestContractCreate(t *testing.T) {
	f := newContractFixture(t)

	contract, err := f.svc.Create(context.Background(), f.actor, contractInput("12/2025"))
	require.NoError(t, err)

	assert.Equal(t, models.ContractActive, contract.Status)
	assert.True(t, contract.CurrentValue.Equal(dec("150000.50")))
	assert.Equal(t, f.actor.UserID, contract.CreatedBy)
	assert.Nil(t, contract.BaseImportedAt)
	assert.Empty(t, f.items.urls)
	assert.Equal(t, []models.Action{models.ActionCreate}, f.events.Actions())
}

func TestContractCreateValidation(t *testing.T) {
	f := newContractFixture(t)

	tests := []struct {
		name   string
		mutate func(*ContractInput)
	}{
		{"missing name", func(in *ContractInput) { in.Name = " " }},
		{"missing value", func(in *ContractInput) { in.Value = nil }},
		{"bad start date", func(in *ContractInput) { in.StartDate = "01/03/2025" }},
		{"bad status", func(in *ContractInput) { in.Status = "Pausado" }},
		{"bad fiscal", func(in *ContractInput) { in.FiscalID = "fiscal" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := contractInput("1/2025")
			tt.mutate(&in)
			_, err := f.svc.Create(context.Background(), f.actor, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, f.events.Actions())
}

func TestContractCreateDuplicateNumber(t *testing.T) {
	f := newContractFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.actor, contractInput("7/2025"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.actor, contractInput("7/2025"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestContractCreateImportsSheet(t *testing.T) {
	f := newContractFixture(t)
	ctx := context.Background()
	f.items.items = []models.Item{
		{
			OrderNumber:   2,
			ItemNumber:    "1.2",
			Unit:          "m2",
			ContractedQty: dec("10"),
			SheetType:     models.SheetServices,
			AdminPrices:   models.PriceBreakdown{UnitLabor: dec("2.5"), UnitMaterial: dec("4")},
			CompanyPrices: models.PriceBreakdown{UnitLabor: dec("3"), UnitMaterial: dec("5")},
		},
		{OrderNumber: 1, ItemNumber: "1.1", Unit: "un", ContractedQty: dec("3"), IsOriginal: true},
	}

	in := contractInput("9/2025")
	in.BaseSheetURL = "https://sheets.example.com/base.json"
	contract, err := f.svc.Create(ctx, f.actor, in)
	require.NoError(t, err)
	require.NotNil(t, contract.BaseImportedAt)
	assert.Equal(t, []string{"https://sheets.example.com/base.json"}, f.items.urls)

	items, err := f.svc.Items(ctx, contract.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1.1", items[0].ItemNumber)
	assert.Equal(t, models.SheetServices, items[0].SheetType)

	want := models.PriceBreakdown{
		UnitLabor:     dec("2.5"),
		UnitMaterial:  dec("4"),
		UnitTotal:     dec("6.5"),
		TotalLabor:    dec("25"),
		TotalMaterial: dec("40"),
		TotalAmount:   dec("65"),
	}
	decimalEqual := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, items[1].AdminPrices, decimalEqual); diff != "" {
		t.Errorf("admin prices mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, items[1].CompanyPrices.TotalAmount.Equal(dec("80")))
	assert.True(t, items[1].OriginalQty.Equal(dec("10")))
	assert.True(t, items[1].CurrentQty.Equal(dec("10")))
	assert.Equal(t, contract.ID, items[1].ContractID)
}

func TestContractCreateSurvivesImportFailure(t *testing.T) {
	f := newContractFixture(t)
	f.items.err = errors.New("sheet unavailable")

	in := contractInput("10/2025")
	in.BaseSheetURL = "https://sheets.example.com/broken.json"
	contract, err := f.svc.Create(context.Background(), f.actor, in)
	require.NoError(t, err)
	assert.Nil(t, contract.BaseImportedAt)

	items, err := f.svc.Items(context.Background(), contract.ID.String())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestContractUpdateRecordsRevision(t *testing.T) {
	f := newContractFixture(t)
	ctx := context.Background()

	contract, err := f.svc.Create(ctx, f.actor, contractInput("11/2025"))
	require.NoError(t, err)

	status := string(models.ContractSuspended)
	name := "Reforma do pavilhão B"
	updated, err := f.svc.Update(ctx, f.actor, contract.ID.String(), ContractPatch{
		Name:      &name,
		Status:    &status,
		PaidValue: decPtr("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, models.ContractSuspended, updated.Status)
	assert.True(t, updated.PaidValue.Equal(dec("1000")))

	revisions, err := f.svc.Revisions(ctx, contract.ID.String())
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, f.actor.UserID, revisions[0].ChangedBy)

	var before map[string]any
	require.NoError(t, json.Unmarshal(revisions[0].Snapshot, &before))
	got := map[string]any{"name": before["name"], "status": before["status"]}
	want := map[string]any{"name": "Reforma do pavilhão", "status": "Ativo"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []models.Action{models.ActionCreate, models.ActionUpdate}, f.events.Actions())
}

func TestContractUpdateRejectsInvalidStatus(t *testing.T) {
	f := newContractFixture(t)
	ctx := context.Background()

	contract, err := f.svc.Create(ctx, f.actor, contractInput("13/2025"))
	require.NoError(t, err)

	status := "Arquivado"
	_, err = f.svc.Update(ctx, f.actor, contract.ID.String(), ContractPatch{Status: &status})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	revisions, err := f.svc.Revisions(ctx, contract.ID.String())
	require.NoError(t, err)
	assert.Empty(t, revisions)
}

func TestContractGetNotFound(t *testing.T) {
	f := newContractFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestContractMeasure(t *testing.T) {
	f := newContractFixture(t)
	ctx := context.Background()
	f.items.items = []models.Item{{OrderNumber: 1, ItemNumber: "3.1", Unit: "m", ContractedQty: dec("10")}}

	in := contractInput("14/2025")
	in.BaseSheetURL = "https://sheets.example.com/base.json"
	contract, err := f.svc.Create(ctx, f.actor, in)
	require.NoError(t, err)
	items, err := f.svc.Items(ctx, contract.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item, err := f.svc.Measure(ctx, f.actor, contract.ID.String(), items[0].ID.String(), dec("4"))
	require.NoError(t, err)
	assert.True(t, item.CurrentQty.Equal(dec("6")))

	item, err = f.svc.Measure(ctx, f.actor, contract.ID.String(), items[0].ID.String(), dec("7.5"))
	require.NoError(t, err)
	assert.True(t, item.CurrentQty.IsZero())

	_, err = f.svc.Measure(ctx, f.actor, contract.ID.String(), items[0].ID.String(), dec("0"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Measure(ctx, f.actor, uuid.NewString(), items[0].ID.String(), dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	events := f.events.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "Items", events[2].Collection)
	assert.Equal(t, "6", events[2].Metadata["fromQty"])
}
