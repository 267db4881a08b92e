package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ItemSource loads the bill of quantities published at a sheet URL.
type ItemSource interface {
	FetchItems(ctx context.Context, sheetURL string) ([]models.Item, error)
}

type ContractOptions struct {
	Items         ItemSource
	ImportTimeout time.Duration
	Now           func() time.Time
}

type ContractService struct {
	db            *gorm.DB
	log           *zap.Logger
	events        recorder
	itemEvents    recorder
	items         ItemSource
	importTimeout time.Duration
	now           func() time.Time
}

func NewContractService(db *gorm.DB, log *zap.Logger, rec activity.Recorder, opts ContractOptions) *ContractService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = time.Minute
	}
	return &ContractService{
		db:            db,
		log:           log.With(zap.String("service", "contracts")),
		events:        recorder{rec: rec, collection: "Contracts"},
		itemEvents:    recorder{rec: rec, collection: "Items"},
		items:         opts.Items,
		importTimeout: opts.ImportTimeout,
		now:           opts.Now,
	}
}

type ContractInput struct {
	Name            string           `json:"name"`
	ContractNumber  string           `json:"contractNumber"`
	ReferenceNumber string           `json:"referenceNumber"`
	Description     string           `json:"description"`
	StartDate       string           `json:"startDate"`
	EndDate         string           `json:"endDate"`
	Value           *decimal.Decimal `json:"value"`
	CurrentValue    *decimal.Decimal `json:"currentValue"`
	PaidValue       *decimal.Decimal `json:"paidValue"`
	AvailableValue  *decimal.Decimal `json:"availableValue"`
	FiscalID        string           `json:"fiscalId"`
	FacilityID      string           `json:"omId"`
	BaseSheetURL    string           `json:"baseSheetUrl"`
	Status          string           `json:"status"`
}

// ContractPatch lists the fields a client may change. Nil means unchanged.
type ContractPatch struct {
	Name            *string          `json:"name"`
	ContractNumber  *string          `json:"contractNumber"`
	ReferenceNumber *string          `json:"referenceNumber"`
	Description     *string          `json:"description"`
	StartDate       *string          `json:"startDate"`
	EndDate         *string          `json:"endDate"`
	Value           *decimal.Decimal `json:"value"`
	CurrentValue    *decimal.Decimal `json:"currentValue"`
	PaidValue       *decimal.Decimal `json:"paidValue"`
	AvailableValue  *decimal.Decimal `json:"availableValue"`
	FiscalID        *string          `json:"fiscalId"`
	FacilityID      *string          `json:"omId"`
	BaseSheetURL    *string          `json:"baseSheetUrl"`
	Status          *string          `json:"status"`
}

func parseDate(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("Data inválida em %s: '%s'.", field, raw)
}

func parseOptionalDate(raw, field string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func (s *ContractService) Create(ctx context.Context, actor Actor, in ContractInput) (*models.Contract, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.ContractNumber) == "" || in.StartDate == "" || in.Value == nil {
		return nil, apperr.Validation("Campos obrigatórios faltando: name, contractNumber, startDate, value.")
	}
	start, err := parseDate(in.StartDate, "startDate")
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(in.EndDate, "endDate")
	if err != nil {
		return nil, err
	}
	fiscalID, err := parseOptionalID(in.FiscalID, "do fiscal")
	if err != nil {
		return nil, err
	}
	facilityID, err := parseOptionalID(in.FacilityID, "da OM")
	if err != nil {
		return nil, err
	}
	status := models.ContractActive
	if in.Status != "" {
		status = models.ContractStatus(in.Status)
		if !status.Valid() {
			return nil, apperr.Validation("Status de contrato inválido: '%s'.", in.Status)
		}
	}

	contract := &models.Contract{
		Name:            strings.TrimSpace(in.Name),
		ContractNumber:  strings.TrimSpace(in.ContractNumber),
		ReferenceNumber: in.ReferenceNumber,
		Description:     in.Description,
		StartDate:       start,
		EndDate:         end,
		Value:           *in.Value,
		CurrentValue:    orZero(in.CurrentValue),
		PaidValue:       orZero(in.PaidValue),
		AvailableValue:  orZero(in.AvailableValue),
		FiscalID:        fiscalID,
		FacilityID:      facilityID,
		BaseSheetURL:    strings.TrimSpace(in.BaseSheetURL),
		Status:          status,
	}
	if in.CurrentValue == nil {
		contract.CurrentValue = contract.Value
	}
	if actor.Authenticated() {
		contract.CreatedBy = actor.UserID
	}

	if err := s.db.WithContext(ctx).Create(contract).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict(err, "Já existe um contrato com o número '%s'.", contract.ContractNumber)
		}
		return nil, apperr.Backend(err, "Erro ao criar contrato.")
	}
	s.log.Info("contract created", zap.String("contractID", contract.ID.String()), zap.String("number", contract.ContractNumber))

	s.events.record(ctx, actor, models.ActionCreate, ref(contract.ID), fmt.Sprintf("Contrato '%s' criado", contract.ContractNumber), nil)

	if contract.BaseSheetURL != "" {
		if n, err := s.importItems(ctx, contract); err != nil {
			s.log.Warn("failed to import base sheet", zap.String("contractID", contract.ID.String()), zap.String("url", contract.BaseSheetURL), zap.Error(err))
		} else {
			s.log.Info("base sheet imported", zap.String("contractID", contract.ID.String()), zap.Int("items", n))
		}
	}
	return contract, nil
}

// importItems appends the sheet rows as items of contract and stamps the
// import time.
func (s *ContractService) importItems(ctx context.Context, contract *models.Contract) (int, error) {
	if s.items == nil {
		return 0, fmt.Errorf("no item source configured")
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.importTimeout)
	defer cancel()

	items, err := s.items.FetchItems(fetchCtx, contract.BaseSheetURL)
	if err != nil {
		return 0, err
	}
	for i := range items {
		items[i].ContractID = contract.ID
		items[i].Prepare(true)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(items) > 0 {
			if err := tx.CreateInBatches(&items, 100).Error; err != nil {
				return err
			}
		}
		return tx.Model(contract).UpdateColumn("base_imported_at", now).Error
	})
	if err != nil {
		return 0, err
	}
	contract.BaseImportedAt = &now
	return len(items), nil
}

func (s *ContractService) List(ctx context.Context) ([]models.Contract, error) {
	contracts := []models.Contract{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&contracts).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar contratos.")
	}
	return contracts, nil
}

func (s *ContractService) Get(ctx context.Context, rawID string) (*models.Contract, error) {
	id, err := ParseID(rawID, "do contrato")
	if err != nil {
		return nil, err
	}
	var contract models.Contract
	err = s.db.WithContext(ctx).Preload("Fiscal").Preload("Facility").First(&contract, "id = ?", id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Contrato não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro ao buscar contrato.")
	}
	return &contract, nil
}

func (s *ContractService) apply(c *models.Contract, p ContractPatch) error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return apperr.Validation("O nome do contrato não pode ficar vazio.")
		}
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.ContractNumber != nil {
		if strings.TrimSpace(*p.ContractNumber) == "" {
			return apperr.Validation("O número do contrato não pode ficar vazio.")
		}
		c.ContractNumber = strings.TrimSpace(*p.ContractNumber)
	}
	if p.ReferenceNumber != nil {
		c.ReferenceNumber = *p.ReferenceNumber
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.StartDate != nil {
		start, err := parseDate(*p.StartDate, "startDate")
		if err != nil {
			return err
		}
		c.StartDate = start
	}
	if p.EndDate != nil {
		end, err := parseOptionalDate(*p.EndDate, "endDate")
		if err != nil {
			return err
		}
		c.EndDate = end
	}
	for _, f := range []struct {
		src *decimal.Decimal
		dst *decimal.Decimal
	}{
		{p.Value, &c.Value},
		{p.CurrentValue, &c.CurrentValue},
		{p.PaidValue, &c.PaidValue},
		{p.AvailableValue, &c.AvailableValue},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if p.FiscalID != nil {
		id, err := parseOptionalID(*p.FiscalID, "do fiscal")
		if err != nil {
			return err
		}
		c.FiscalID, c.Fiscal = id, nil
	}
	if p.FacilityID != nil {
		id, err := parseOptionalID(*p.FacilityID, "da OM")
		if err != nil {
			return err
		}
		c.FacilityID, c.Facility = id, nil
	}
	if p.BaseSheetURL != nil {
		c.BaseSheetURL = strings.TrimSpace(*p.BaseSheetURL)
	}
	if p.Status != nil {
		status := models.ContractStatus(*p.Status)
		if !status.Valid() {
			return apperr.Validation("Status de contrato inválido: '%s'.", *p.Status)
		}
		c.Status = status
	}
	return nil
}

// Update applies patch and stores the previous state as a revision in the
// same transaction.
func (s *ContractService) Update(ctx context.Context, actor Actor, rawID string, patch ContractPatch) (*models.Contract, error) {
	contract, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(contract)
	if err != nil {
		return nil, apperr.Backend(err, "Erro ao atualizar contrato.")
	}
	if err := s.apply(contract, patch); err != nil {
		return nil, err
	}

	revision := &models.ContractRevision{ContractID: contract.ID, Snapshot: datatypes.JSON(snapshot)}
	if actor.Authenticated() {
		revision.ChangedBy = actor.UserID
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(revision).Error; err != nil {
			return err
		}
		return tx.Omit("Fiscal", "Facility").Save(contract).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict(err, "Já existe um contrato com o número '%s'.", contract.ContractNumber)
		}
		return nil, apperr.Backend(err, "Erro ao atualizar contrato.")
	}

	s.events.record(ctx, actor, models.ActionUpdate, ref(contract.ID), fmt.Sprintf("Contrato '%s' atualizado", contract.ContractNumber), map[string]any{
		"revisionId": revision.ID.String(),
	})
	return s.Get(ctx, contract.ID.String())
}

func (s *ContractService) Revisions(ctx context.Context, rawID string) ([]models.ContractRevision, error) {
	contract, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	revisions := []models.ContractRevision{}
	err = s.db.WithContext(ctx).Where("contract_id = ?", contract.ID).Order("created_at DESC").Find(&revisions).Error
	if err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar histórico do contrato.")
	}
	return revisions, nil
}

func (s *ContractService) Items(ctx context.Context, rawID string) ([]models.Item, error) {
	contract, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	items := []models.Item{}
	err = s.db.WithContext(ctx).Where("contract_id = ?", contract.ID).Order("order_number ASC").Find(&items).Error
	if err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar itens do contrato.")
	}
	return items, nil
}

// Measure deducts a measured quantity from an item's remaining balance.
func (s *ContractService) Measure(ctx context.Context, actor Actor, rawContractID, rawItemID string, qty decimal.Decimal) (*models.Item, error) {
	contractID, err := ParseID(rawContractID, "do contrato")
	if err != nil {
		return nil, err
	}
	itemID, err := ParseID(rawItemID, "do item")
	if err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, apperr.Validation("A quantidade medida deve ser maior que zero.")
	}

	var item models.Item
	err = s.db.WithContext(ctx).First(&item, "id = ? AND contract_id = ?", itemID, contractID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Item não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro ao buscar item.")
	}
	before := item.CurrentQty
	item.ApplyMeasurement(qty)
	if err := s.db.WithContext(ctx).Model(&item).UpdateColumn("current_qty", item.CurrentQty).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao registrar medição.")
	}

	s.itemEvents.record(ctx, actor, models.ActionUpdate, ref(item.ID), fmt.Sprintf("Medição de %s %s no item %s", qty.String(), item.Unit, item.ItemNumber), map[string]any{
		"contractId": contractID.String(),
		"measured":   qty.String(),
		"fromQty":    before.String(),
		"toQty":      item.CurrentQty.String(),
	})
	return &item, nil
}
