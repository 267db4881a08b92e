package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ContractStatus string

const (
	ContractActive    ContractStatus = "Ativo"
	ContractDone      ContractStatus = "Concluído"
	ContractSuspended ContractStatus = "Suspenso"
	ContractCancelled ContractStatus = "Cancelado"
)

var ContractStatuses = []ContractStatus{ContractActive, ContractDone, ContractSuspended, ContractCancelled}

func (s ContractStatus) Valid() bool {
	return slices.Contains(ContractStatuses, s)
}

type Contract struct {
	Model
	Name            string          `gorm:"not null" json:"name"`
	ContractNumber  string          `gorm:"uniqueIndex;not null" json:"contractNumber"`
	ReferenceNumber string          `json:"referenceNumber"`
	Description     string          `json:"description"`
	StartDate       time.Time       `gorm:"not null" json:"startDate"`
	EndDate         *time.Time      `json:"endDate"`
	Value           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"value"`
	CurrentValue    decimal.Decimal `gorm:"type:decimal(20,4)" json:"currentValue"`
	PaidValue       decimal.Decimal `gorm:"type:decimal(20,4)" json:"paidValue"`
	AvailableValue  decimal.Decimal `gorm:"type:decimal(20,4)" json:"availableValue"`
	FiscalID        *uuid.UUID      `gorm:"type:uuid" json:"fiscalId"`
	Fiscal          *User           `gorm:"foreignKey:FiscalID" json:"fiscal,omitempty"`
	FacilityID      *uuid.UUID      `gorm:"type:uuid" json:"omId"`
	Facility        *Facility       `gorm:"foreignKey:FacilityID" json:"om,omitempty"`
	BaseSheetURL    string          `json:"baseSheetUrl"`
	BaseImportedAt  *time.Time      `json:"baseImportedAt"`
	Status          ContractStatus  `gorm:"not null;default:Ativo" json:"status"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid" json:"createdBy"`
}

// ContractRevision keeps the state a contract had before an update.
type ContractRevision struct {
	Model
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index" json:"contractId"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	ChangedBy  *uuid.UUID     `gorm:"type:uuid" json:"changedBy"`
}
