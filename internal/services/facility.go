package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FacilityService struct {
	db     *gorm.DB
	log    *zap.Logger
	events recorder
}

func NewFacilityService(db *gorm.DB, log *zap.Logger, rec activity.Recorder) *FacilityService {
	return &FacilityService{
		db:     db,
		log:    log.With(zap.String("service", "facilities")),
		events: recorder{rec: rec, collection: "Facilities"},
	}
}

type FacilityInput struct {
	Name       string          `json:"name"`
	Codom      string          `json:"codom"`
	Codug      string          `json:"codug"`
	CNPJ       string          `json:"cnpj"`
	Nickname   string          `json:"nickname"`
	Location   models.Location `json:"location"`
	GeoAddress string          `json:"geoAdress"`
}

type FacilityPatch struct {
	Name       *string          `json:"name"`
	Codom      *string          `json:"codom"`
	Codug      *string          `json:"codug"`
	CNPJ       *string          `json:"cnpj"`
	Nickname   *string          `json:"nickname"`
	Location   *models.Location `json:"location"`
	GeoAddress *string          `json:"geoAdress"`
}

func checkFacility(f *models.Facility) error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"name", f.Name},
		{"codom", f.Codom},
		{"codug", f.Codug},
		{"nickname", f.Nickname},
		{"geoAdress", f.GeoAddress},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Campos obrigatórios faltando: %s.", strings.Join(missing, ", "))
	}
	return nil
}

func (s *FacilityService) Create(ctx context.Context, actor Actor, in FacilityInput) (*models.Facility, error) {
	facility := &models.Facility{
		Name:       strings.TrimSpace(in.Name),
		Codom:      strings.TrimSpace(in.Codom),
		Codug:      strings.TrimSpace(in.Codug),
		CNPJ:       strings.TrimSpace(in.CNPJ),
		Nickname:   strings.TrimSpace(in.Nickname),
		Location:   in.Location,
		GeoAddress: strings.TrimSpace(in.GeoAddress),
	}
	if err := checkFacility(facility); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(facility).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao criar Facility.")
	}
	s.events.record(ctx, actor, models.ActionCreate, ref(facility.ID), fmt.Sprintf("Criada nova Facility: %s", facility.Name), nil)
	return facility, nil
}

func (s *FacilityService) List(ctx context.Context) ([]models.Facility, error) {
	facilities := []models.Facility{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&facilities).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao buscar Facilities.")
	}
	return facilities, nil
}

func (s *FacilityService) Get(ctx context.Context, rawID string) (*models.Facility, error) {
	id, err := ParseID(rawID, "da Facility")
	if err != nil {
		return nil, err
	}
	var facility models.Facility
	if err := s.db.WithContext(ctx).First(&facility, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Facility não encontrada.")
		}
		return nil, apperr.Backend(err, "Erro ao buscar Facility.")
	}
	return &facility, nil
}

func (s *FacilityService) Update(ctx context.Context, actor Actor, rawID string, patch FacilityPatch) (*models.Facility, error) {
	facility, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&facility.Name, patch.Name)
	set(&facility.Codom, patch.Codom)
	set(&facility.Codug, patch.Codug)
	set(&facility.CNPJ, patch.CNPJ)
	set(&facility.Nickname, patch.Nickname)
	set(&facility.GeoAddress, patch.GeoAddress)
	if patch.Location != nil {
		facility.Location = *patch.Location
	}
	if err := checkFacility(facility); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(facility).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao atualizar Facility.")
	}
	s.events.record(ctx, actor, models.ActionUpdate, ref(facility.ID), fmt.Sprintf("Atualizada Facility: %s", facility.Name), nil)
	return facility, nil
}

func (s *FacilityService) Delete(ctx context.Context, actor Actor, rawID string) error {
	facility, err := s.Get(ctx, rawID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Facility{}, "id = ?", facility.ID)
	if res.Error != nil {
		return apperr.Backend(res.Error, "Erro ao deletar Facility.")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Facility não encontrada.")
	}
	s.log.Info("facility deleted", zap.String("facilityID", facility.ID.String()))
	s.events.record(ctx, actor, models.ActionDelete, ref(facility.ID), fmt.Sprintf("Deletada Facility: %s", facility.Name), nil)
	return nil
}
