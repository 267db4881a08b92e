package services

import (
	"context"

	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"gorm.io/gorm"
)

// AllDocuments lists the whole audit trail instead of one document's.
const AllDocuments = "all"

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

type ActivityList struct {
	Activities []models.Activity
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// List returns the newest activities first, 50 per page by default.
func (s *ActivityService) List(ctx context.Context, docID string, page Page) (*ActivityList, error) {
	page = page.normalize(50)
	scope := func(tx *gorm.DB) *gorm.DB { return tx }
	if docID != AllDocuments {
		id, err := ParseID(docID, "do documento")
		if err != nil {
			return nil, apperr.Validation("documentId inválido")
		}
		scope = func(tx *gorm.DB) *gorm.DB { return tx.Where("document_id = ?", id) }
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Activity{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar atividades.")
	}
	activities := []models.Activity{}
	err := s.db.WithContext(ctx).Scopes(scope).
		Order("timestamp DESC").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.offset()).
		Find(&activities).Error
	if err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar atividades.")
	}
	return &ActivityList{
		Activities: activities,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: TotalPages(total, page.Limit),
	}, nil
}
