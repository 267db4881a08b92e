package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StagePolicy says which stages a lane accepts. Lanes without their own
// list use the defaults.
type StagePolicy struct {
	defaults []string
	lanes    map[string][]string
}

func NewStagePolicy(defaults []string, laneStages map[string][]string) StagePolicy {
	if len(defaults) == 0 {
		defaults = models.DefaultStages
	}
	lanes := make(map[string][]string, len(laneStages))
	for lane, stages := range laneStages {
		lanes[strings.ToLower(lane)] = stages
	}
	return StagePolicy{defaults: defaults, lanes: lanes}
}

func (p StagePolicy) Stages(lane string) []string {
	if stages, ok := p.lanes[strings.ToLower(lane)]; ok && len(stages) > 0 {
		return stages
	}
	if len(p.defaults) == 0 {
		return models.DefaultStages
	}
	return p.defaults
}

func (p StagePolicy) Allowed(lane, stage string) bool {
	return slices.Contains(p.Stages(lane), stage)
}

// CalendarSync mirrors card due dates into an external calendar.
type CalendarSync interface {
	// SyncCard creates or updates the event for card and returns its id.
	SyncCard(ctx context.Context, card *models.Card) (string, error)
	RemoveCard(ctx context.Context, card *models.Card) error
}

type CardOptions struct {
	Policy          StagePolicy
	AllowLaneChange bool
	Calendar        CalendarSync
	Now             func() time.Time
}

type CardService struct {
	db              *gorm.DB
	log             *zap.Logger
	events          recorder
	policy          StagePolicy
	allowLaneChange bool
	calendar        CalendarSync
	now             func() time.Time
}

func NewCardService(db *gorm.DB, log *zap.Logger, rec activity.Recorder, opts CardOptions) *CardService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy.defaults == nil {
		opts.Policy = NewStagePolicy(nil, opts.Policy.lanes)
	}
	return &CardService{
		db:              db,
		log:             log.With(zap.String("service", "cards")),
		events:          recorder{rec: rec, collection: "Cards"},
		policy:          opts.Policy,
		allowLaneChange: opts.AllowLaneChange,
		calendar:        opts.Calendar,
		now:             opts.Now,
	}
}

type CreateCardInput struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ContractID   string         `json:"contractId"`
	Lane         string         `json:"lane"`
	CurrentStage string         `json:"currentStage"`
	CreatedBy    string         `json:"createdBy"`
	CustomFields map[string]any `json:"customFields"`
}

// CardPatch lists the fields a client may change. Nil means unchanged.
type CardPatch struct {
	Title        *string        `json:"title"`
	Description  *string        `json:"description"`
	Lane         *string        `json:"lane"`
	CurrentStage *string        `json:"currentStage"`
	CustomFields map[string]any `json:"customFields"`
}

type CardQuery struct {
	ContractID string
	Lane       string
	Page
}

type CardList struct {
	Cards      []models.Card
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

func (s *CardService) laneError(lane string) error {
	return apperr.Validation("Tipo de raia (lane) inválido: '%s'. Tipos permitidos: %s.", lane, strings.Join(models.Lanes, ", "))
}

func (s *CardService) stageError(lane, stage string) error {
	return apperr.Validation("Estágio (currentStage) inválido: '%s'. Estágios permitidos: %s.", stage, strings.Join(s.policy.Stages(lane), ", "))
}

func (s *CardService) Create(ctx context.Context, actor Actor, in CreateCardInput) (*models.Card, error) {
	if in.CreatedBy == "" && actor.Authenticated() {
		in.CreatedBy = actor.UserID.String()
	}
	if strings.TrimSpace(in.Title) == "" || in.ContractID == "" || in.Lane == "" || in.CurrentStage == "" || in.CreatedBy == "" {
		return nil, apperr.Validation("Campos obrigatórios faltando: title, contractId, lane, currentStage, createdBy.")
	}
	contractID, err := ParseID(in.ContractID, "do contrato")
	if err != nil {
		return nil, err
	}
	createdBy, err := ParseID(in.CreatedBy, "do criador")
	if err != nil {
		return nil, err
	}
	if !models.IsLane(in.Lane) {
		return nil, s.laneError(in.Lane)
	}
	if !s.policy.Allowed(in.Lane, in.CurrentStage) {
		return nil, s.stageError(in.Lane, in.CurrentStage)
	}

	now := s.now()
	card := &models.Card{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ContractID:   contractID,
		Lane:         in.Lane,
		CurrentStage: in.CurrentStage,
		CustomFields: datatypes.JSONMap(in.CustomFields),
		CreatedBy:    createdBy,
	}
	if card.CustomFields == nil {
		card.CustomFields = datatypes.JSONMap{}
	}
	card.CreatedAt = now
	card.UpdatedAt = now
	card.StartHistory(now)

	if err := s.db.WithContext(ctx).Create(card).Error; err != nil {
		return nil, apperr.Backend(err, "Erro interno ao criar card.")
	}
	s.log.Debug("card created", zap.String("cardID", card.ID.String()), zap.String("lane", card.Lane))

	s.events.record(ctx, actor, models.ActionCreate, ref(card.ID), fmt.Sprintf("Card '%s' criado na raia %s", card.Title, card.Lane), map[string]any{
		"lane":  card.Lane,
		"stage": card.CurrentStage,
	})
	s.syncCalendar(ctx, card)
	return card, nil
}

func (s *CardService) Get(ctx context.Context, rawID string) (*models.Card, error) {
	id, err := ParseID(rawID, "do card")
	if err != nil {
		return nil, err
	}
	var card models.Card
	if err := s.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Card não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro interno ao buscar card.")
	}
	return &card, nil
}

func (s *CardService) List(ctx context.Context, q CardQuery) (*CardList, error) {
	page := q.Page.normalize(10)
	var conds []func(*gorm.DB) *gorm.DB
	if q.ContractID != "" {
		contractID, err := ParseID(q.ContractID, "do contrato")
		if err != nil {
			return nil, err
		}
		conds = append(conds, func(tx *gorm.DB) *gorm.DB { return tx.Where("contract_id = ?", contractID) })
	}
	if q.Lane != "" {
		if !models.IsLane(q.Lane) {
			return nil, s.laneError(q.Lane)
		}
		conds = append(conds, func(tx *gorm.DB) *gorm.DB { return tx.Where("lane = ?", q.Lane) })
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Scopes(conds...).Count(&total).Error; err != nil {
		return nil, apperr.Backend(err, "Erro interno ao buscar cards.")
	}
	cards := []models.Card{}
	err := s.db.WithContext(ctx).Scopes(conds...).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.offset()).
		Find(&cards).Error
	if err != nil {
		return nil, apperr.Backend(err, "Erro interno ao buscar cards.")
	}
	return &CardList{
		Cards:      cards,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: TotalPages(total, page.Limit),
	}, nil
}

// Update applies a stage move and the whitelisted field changes of patch.
func (s *CardService) Update(ctx context.Context, actor Actor, rawID string, patch CardPatch) (*models.Card, error) {
	card, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}

	lane := card.Lane
	if patch.Lane != nil && *patch.Lane != card.Lane {
		if !s.allowLaneChange {
			return nil, apperr.Validation("A raia (lane) de um card não pode ser alterada.")
		}
		if !models.IsLane(*patch.Lane) {
			return nil, s.laneError(*patch.Lane)
		}
		lane = *patch.Lane
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperr.Validation("O título do card não pode ficar vazio.")
	}

	fromStage := card.CurrentStage
	if patch.CurrentStage != nil && *patch.CurrentStage != "" && *patch.CurrentStage != card.CurrentStage {
		if !s.policy.Allowed(lane, *patch.CurrentStage) {
			return nil, s.stageError(lane, *patch.CurrentStage)
		}
		card.MoveToStage(*patch.CurrentStage, s.now())
	}

	card.Lane = lane
	if patch.Title != nil {
		card.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	if patch.CustomFields != nil {
		card.CustomFields = datatypes.JSONMap(patch.CustomFields)
	}

	if err := s.db.WithContext(ctx).Save(card).Error; err != nil {
		return nil, apperr.Backend(err, "Erro interno ao atualizar card.")
	}

	meta := map[string]any{}
	if fromStage != card.CurrentStage {
		meta["fromStage"] = fromStage
		meta["toStage"] = card.CurrentStage
	}
	s.events.record(ctx, actor, models.ActionUpdate, ref(card.ID), fmt.Sprintf("Card '%s' atualizado", card.Title), meta)
	s.syncCalendar(ctx, card)
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, actor Actor, rawID string) error {
	card, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Card{}, "id = ?", card.ID)
	if res.Error != nil {
		return apperr.Backend(res.Error, "Erro interno ao deletar card.")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Card não encontrado.")
	}

	s.events.record(ctx, actor, models.ActionDelete, ref(card.ID), fmt.Sprintf("Card '%s' deletado", card.Title), nil)
	if s.calendar != nil && card.CalendarEventID != "" {
		if err := s.calendar.RemoveCard(ctx, card); err != nil {
			s.log.Warn("failed to remove calendar event", zap.String("cardID", card.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// syncCalendar never fails the caller; errors are logged.
func (s *CardService) syncCalendar(ctx context.Context, card *models.Card) {
	if s.calendar == nil {
		return
	}
	if card.DueDate() == nil {
		if card.CalendarEventID == "" {
			return
		}
		if err := s.calendar.RemoveCard(ctx, card); err != nil {
			s.log.Warn("failed to remove calendar event", zap.String("cardID", card.ID.String()), zap.Error(err))
			return
		}
		s.setEventID(ctx, card, "")
		return
	}

	eventID, err := s.calendar.SyncCard(ctx, card)
	if err != nil {
		s.log.Warn("failed to sync card with calendar", zap.String("cardID", card.ID.String()), zap.Error(err))
		return
	}
	if eventID != card.CalendarEventID {
		s.setEventID(ctx, card, eventID)
	}
}

func (s *CardService) setEventID(ctx context.Context, card *models.Card, eventID string) {
	if err := s.db.WithContext(ctx).Model(card).UpdateColumn("calendar_event_id", eventID).Error; err != nil {
		s.log.Warn("failed to store calendar event id", zap.String("cardID", card.ID.String()), zap.Error(err))
		return
	}
	card.CalendarEventID = eventID
}
