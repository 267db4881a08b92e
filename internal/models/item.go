package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SheetServices   = "A"
	SheetEquipments = "B"
)

// PriceBreakdown holds unit rates and the totals derived from them.
type PriceBreakdown struct {
	UnitLabor     decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitLabor"`
	UnitMaterial  decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitMaterial"`
	UnitTotal     decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitTotal"`
	TotalLabor    decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalLabor"`
	TotalMaterial decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalMaterial"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalAmount"`
}

// DerivePrices computes the totals of pb for qty units. Only the unit rates
// of pb are read.
func DerivePrices(pb PriceBreakdown, qty decimal.Decimal) PriceBreakdown {
	pb.UnitTotal = pb.UnitLabor.Add(pb.UnitMaterial)
	pb.TotalLabor = pb.UnitLabor.Mul(qty)
	pb.TotalMaterial = pb.UnitMaterial.Mul(qty)
	pb.TotalAmount = pb.TotalLabor.Add(pb.TotalMaterial)
	return pb
}

// Item is one line of a contract's bill of quantities.
type Item struct {
	Model
	ContractID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"contractId"`
	OrderNumber     int             `json:"orderNumber"`
	ItemNumber      string          `json:"itemNumber"`
	CompositionCode string          `json:"compositionCode"`
	Base            string          `json:"base"`
	Description     string          `json:"description"`
	Unit            string          `json:"unit"`
	ContractedQty   decimal.Decimal `gorm:"type:decimal(20,4)" json:"contractedQty"`
	OriginalQty     decimal.Decimal `gorm:"type:decimal(20,4)" json:"originalQty"`
	CurrentQty      decimal.Decimal `gorm:"type:decimal(20,4)" json:"currentQty"`
	IsOriginal      bool            `gorm:"not null" json:"isOriginal"`
	SheetType       string          `gorm:"not null;default:A" json:"sheetType"`
	MacroItem       string          `json:"macroItem"`
	AdminPrices     PriceBreakdown  `gorm:"embedded;embeddedPrefix:admin_" json:"adminPrices"`
	CompanyPrices   PriceBreakdown  `gorm:"embedded;embeddedPrefix:company_" json:"companyPrices"`
	Observations    string          `json:"observations"`
}

// Prepare seeds the quantities of a new item and re-derives both price
// breakdowns from the contracted quantity.
func (it *Item) Prepare(isNew bool) {
	if isNew {
		it.OriginalQty = it.ContractedQty
		it.CurrentQty = it.ContractedQty
	}
	if it.SheetType == "" {
		it.SheetType = SheetServices
	}
	it.AdminPrices = DerivePrices(it.AdminPrices, it.ContractedQty)
	it.CompanyPrices = DerivePrices(it.CompanyPrices, it.ContractedQty)
}

// ApplyMeasurement deducts a measured quantity from the remaining balance,
// never going below zero.
func (it *Item) ApplyMeasurement(qty decimal.Decimal) decimal.Decimal {
	it.CurrentQty = decimal.Max(decimal.Zero, it.CurrentQty.Sub(qty))
	return it.CurrentQty
}
