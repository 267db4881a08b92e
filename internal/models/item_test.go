package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerivePrices(t *testing.T) {
	pb := PriceBreakdown{UnitLabor: dec("12.50"), UnitMaterial: dec("7.25")}

	got := DerivePrices(pb, dec("4"))

	assert.True(t, got.UnitTotal.Equal(dec("19.75")))
	assert.True(t, got.TotalLabor.Equal(dec("50")))
	assert.True(t, got.TotalMaterial.Equal(dec("29")))
	assert.True(t, got.TotalAmount.Equal(dec("79")))
	assert.True(t, got.UnitLabor.Equal(pb.UnitLabor))
}

func TestDerivePricesIgnoresStaleTotals(t *testing.T) {
	pb := PriceBreakdown{UnitLabor: dec("1"), TotalLabor: dec("999"), TotalAmount: dec("999")}

	got := DerivePrices(pb, dec("3"))

	assert.True(t, got.TotalLabor.Equal(dec("3")))
	assert.True(t, got.TotalAmount.Equal(dec("3")))
}

func TestItemPrepare(t *testing.T) {
	it := &Item{
		ContractedQty: dec("10"),
		AdminPrices:   PriceBreakdown{UnitLabor: dec("2"), UnitMaterial: dec("3")},
		CompanyPrices: PriceBreakdown{UnitLabor: dec("1.5")},
	}

	it.Prepare(true)

	assert.True(t, it.OriginalQty.Equal(dec("10")))
	assert.True(t, it.CurrentQty.Equal(dec("10")))
	assert.Equal(t, SheetServices, it.SheetType)
	assert.True(t, it.AdminPrices.TotalAmount.Equal(dec("50")))
	assert.True(t, it.CompanyPrices.TotalAmount.Equal(dec("15")))

	it.CurrentQty = dec("4")
	it.ContractedQty = dec("12")
	it.Prepare(false)

	assert.True(t, it.OriginalQty.Equal(dec("10")), "original quantity is only seeded once")
	assert.True(t, it.CurrentQty.Equal(dec("4")))
	assert.True(t, it.AdminPrices.TotalAmount.Equal(dec("60")))
}

func TestItemApplyMeasurement(t *testing.T) {
	it := &Item{CurrentQty: dec("5")}

	assert.True(t, it.ApplyMeasurement(dec("2")).Equal(dec("3")))
	assert.True(t, it.ApplyMeasurement(dec("7")).Equal(decimal.Zero))
}
