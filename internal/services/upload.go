package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/chxlky/contract-kanban/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	uploadsCollection = "Uploads"
	trashCollection   = "TrashUploads"
)

type UploadOptions struct {
	MaxSize      int64
	AllowedTypes []string
	Now          func() time.Time
}

// UploadService moves uploads through active, trashed and purged. The
// metadata rows and the blobs are kept in step with compensating actions
// since the two stores share no transaction.
type UploadService struct {
	db      *gorm.DB
	store   storage.Backend
	log     *zap.Logger
	events  recorder
	maxSize int64
	allowed []string
	now     func() time.Time
}

func NewUploadService(db *gorm.DB, store storage.Backend, log *zap.Logger, rec activity.Recorder, opts UploadOptions) *UploadService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &UploadService{
		db:      db,
		store:   store,
		log:     log.With(zap.String("service", "uploads")),
		events:  recorder{rec: rec, collection: uploadsCollection},
		maxSize: opts.MaxSize,
		allowed: opts.AllowedTypes,
		now:     opts.Now,
	}
}

type FileInput struct {
	Name string
	Data []byte
}

type UploadMeta struct {
	ContractID  string
	CardID      string
	ItemID      string
	Description string
}

func (s *UploadService) checkFile(f FileInput) error {
	if len(f.Data) == 0 {
		return apperr.Validation("Arquivo vazio ou ausente.")
	}
	if s.maxSize > 0 && int64(len(f.Data)) > s.maxSize {
		return apperr.TooLarge("Arquivo excede o tamanho máximo de %d bytes.", s.maxSize)
	}
	if len(s.allowed) == 0 {
		return nil
	}
	detected := mimetype.Detect(f.Data)
	for _, t := range s.allowed {
		if detected.Is(t) {
			return nil
		}
	}
	return apperr.Unsupported("Tipo de arquivo inválido: %s.", detected.String())
}

// Create stores the blob and then its Upload row. Input is validated before
// anything is written, and the blob is removed again if the row can't be saved.
func (s *UploadService) Create(ctx context.Context, actor Actor, f FileInput, meta UploadMeta) (*models.Upload, error) {
	if meta.ContractID == "" || !actor.Authenticated() {
		return nil, apperr.Validation("ID do contrato e usuário autenticado são obrigatórios.")
	}
	contractID, err := ParseID(meta.ContractID, "do contrato")
	if err != nil {
		return nil, err
	}
	cardID, err := parseOptionalID(meta.CardID, "do card")
	if err != nil {
		return nil, err
	}
	itemID, err := parseOptionalID(meta.ItemID, "do item")
	if err != nil {
		return nil, err
	}
	if err := s.checkFile(f); err != nil {
		return nil, err
	}

	obj, err := s.store.Put(ctx, f.Data, f.Name)
	if err != nil {
		s.log.Error("failed to store upload blob", zap.String("name", f.Name), zap.Error(err))
		s.events.record(ctx, actor, models.ActionError, nil, "Erro ao fazer upload de arquivo", map[string]any{"error": err.Error()})
		return nil, apperr.Backend(err, "Erro ao fazer upload do arquivo.")
	}

	up := &models.Upload{
		Name:        storage.Sanitize(f.Name),
		Size:        int64(len(f.Data)),
		Key:         obj.Key,
		URL:         obj.URL,
		Description: meta.Description,
		ContractID:  contractID,
		CardID:      cardID,
		ItemID:      itemID,
		UploadedBy:  *actor.UserID,
	}
	if err := s.db.WithContext(ctx).Create(up).Error; err != nil {
		if derr := s.store.Delete(ctx, storage.Active, obj.Key); derr != nil {
			s.log.Error("orphaned upload blob", zap.String("key", obj.Key), zap.Error(derr))
		}
		s.events.record(ctx, actor, models.ActionError, nil, "Erro ao fazer upload de arquivo", map[string]any{"error": err.Error()})
		return nil, apperr.Backend(err, "Erro ao fazer upload do arquivo.")
	}

	s.events.record(ctx, actor, models.ActionCreate, ref(up.ID), fmt.Sprintf("Upload de arquivo \"%s\" para card %s do contrato %s", f.Name, meta.CardID, meta.ContractID), map[string]any{
		"size":       up.Size,
		"key":        up.Key,
		"contractId": meta.ContractID,
		"cardId":     meta.CardID,
		"itemId":     meta.ItemID,
	})
	return up, nil
}

func (s *UploadService) Get(ctx context.Context, rawID string) (*models.Upload, error) {
	id, err := ParseID(rawID, "do upload")
	if err != nil {
		return nil, err
	}
	var up models.Upload
	if err := s.db.WithContext(ctx).First(&up, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Upload não encontrado.")
		}
		return nil, apperr.Backend(err, "Erro ao buscar upload.")
	}
	return &up, nil
}

func (s *UploadService) UpdateDescription(ctx context.Context, actor Actor, rawID, description string) (*models.Upload, error) {
	up, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(up).Update("description", description).Error; err != nil {
		return nil, apperr.Backend(err, "Erro ao atualizar upload.")
	}
	s.events.record(ctx, actor, models.ActionUpdate, ref(up.ID), fmt.Sprintf("Descrição do arquivo \"%s\" atualizada", up.Name), map[string]any{
		"newDescription": description,
	})
	return up, nil
}

// cardScope filters by card; "null" selects uploads attached to no card.
func cardScope(contractID uuid.UUID, rawCard string) (func(*gorm.DB) *gorm.DB, error) {
	if rawCard == "null" || rawCard == "" {
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("contract_id = ? AND card_id IS NULL", contractID)
		}, nil
	}
	cardID, err := ParseID(rawCard, "do card")
	if err != nil {
		return nil, err
	}
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("contract_id = ? AND card_id = ?", contractID, cardID)
	}, nil
}

func (s *UploadService) List(ctx context.Context, actor Actor, rawContract, rawCard string) ([]models.Upload, error) {
	contractID, err := ParseID(rawContract, "do contrato")
	if err != nil {
		return nil, err
	}
	scope, err := cardScope(contractID, rawCard)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"contractId": rawContract, "cardId": rawCard}
	docID, _ := parseOptionalID(rawCard, "do card")

	uploads := []models.Upload{}
	if err := s.db.WithContext(ctx).Scopes(scope).Order("created_at ASC").Find(&uploads).Error; err != nil {
		meta["error"] = err.Error()
		s.events.record(ctx, actor, models.ActionError, docID, fmt.Sprintf("Erro ao listar uploads do card %s no contrato %s", rawCard, rawContract), meta)
		return nil, apperr.Backend(err, "Erro ao listar uploads.")
	}
	s.events.record(ctx, actor, models.ActionAccess, docID, fmt.Sprintf("Listou arquivos do card %s no contrato %s", rawCard, rawContract), meta)
	return uploads, nil
}

func (s *UploadService) ListTrash(ctx context.Context, actor Actor, rawContract, rawCard string) ([]models.TrashUpload, error) {
	contractID, err := ParseID(rawContract, "do contrato")
	if err != nil {
		return nil, err
	}
	scope, err := cardScope(contractID, rawCard)
	if err != nil {
		return nil, err
	}
	events := recorder{rec: s.events.rec, collection: trashCollection}
	meta := map[string]any{"contractId": rawContract, "cardId": rawCard}
	docID, _ := parseOptionalID(rawCard, "do card")

	trashed := []models.TrashUpload{}
	if err := s.db.WithContext(ctx).Scopes(scope).Order("deleted_at ASC").Find(&trashed).Error; err != nil {
		meta["error"] = err.Error()
		events.record(ctx, actor, models.ActionError, docID, fmt.Sprintf("Erro ao listar uploads do trash %s no contrato %s", rawCard, rawContract), meta)
		return nil, apperr.Backend(err, "Erro ao listar uploads.")
	}
	events.record(ctx, actor, models.ActionAccess, docID, fmt.Sprintf("Listou arquivos do trash %s no contrato %s", rawCard, rawContract), meta)
	return trashed, nil
}

// SoftDelete moves an upload to the trash:
//  1. copy the blob from the active to the trash bucket
//  2. in one transaction insert the TrashUpload, delete the Upload row and
//     delete the active blob
//
// If step 2 fails the active blob is restored when needed and the trash copy
// is dropped unless a committed TrashUpload still points at it.
func (s *UploadService) SoftDelete(ctx context.Context, actor Actor, rawID string) (*models.TrashUpload, error) {
	up, err := s.Get(ctx, rawID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Arquivo não encontrado.")
		}
		return nil, err
	}

	fail := func(err error) {
		s.events.record(ctx, actor, models.ActionError, ref(up.ID), "Erro ao mover arquivo para a lixeira", map[string]any{
			"error": err.Error(),
			"id":    up.ID.String(),
		})
	}

	if err := s.store.Copy(ctx, up.Key, storage.Active, storage.Trash); err != nil {
		s.log.Error("failed to copy blob to trash", zap.String("key", up.Key), zap.Error(err))
		fail(err)
		return nil, apperr.Backend(err, "Erro ao mover arquivo para a lixeira.")
	}

	trash := up.Trash(actor.UserID, s.store.URL(storage.Trash, up.Key), s.now())
	activeBlobGone := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trash).Error; err != nil {
			if isDuplicate(err) {
				return apperr.Conflict(err, "Arquivo já está na lixeira.")
			}
			return err
		}
		res := tx.Delete(&models.Upload{}, "id = ?", up.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Arquivo não encontrado.")
		}
		if err := s.store.Delete(ctx, storage.Active, up.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		activeBlobGone = true
		return nil
	})
	if err != nil {
		s.compensateSoftDelete(ctx, up.Key, activeBlobGone)
		s.log.Error("failed to move upload to trash", zap.String("uploadID", up.ID.String()), zap.Error(err))
		fail(err)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperr.Backend(err, "Erro ao mover arquivo para a lixeira.")
	}

	s.log.Info("upload moved to trash", zap.String("uploadID", up.ID.String()), zap.String("key", up.Key))
	s.events.record(ctx, actor, models.ActionDelete, ref(up.ID), fmt.Sprintf("Arquivo \"%s\" movido para a lixeira", up.Name), map[string]any{
		"contractId": up.ContractID.String(),
		"cardId":     uuidString(up.CardID),
		"itemId":     uuidString(up.ItemID),
	})
	return trash, nil
}

func (s *UploadService) compensateSoftDelete(ctx context.Context, key string, activeBlobGone bool) {
	// the transaction rolled back after the active blob was removed
	if activeBlobGone {
		if err := s.store.Copy(ctx, key, storage.Trash, storage.Active); err != nil {
			s.log.Error("failed to restore active blob", zap.String("key", key), zap.Error(err))
		}
	}

	var owners int64
	if err := s.db.WithContext(ctx).Model(&models.TrashUpload{}).Where("key = ?", key).Count(&owners).Error; err != nil {
		s.log.Error("failed to check trash ownership, keeping trash blob", zap.String("key", key), zap.Error(err))
		return
	}
	if owners > 0 {
		return
	}
	if err := s.store.Delete(ctx, storage.Trash, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("orphaned trash blob", zap.String("key", key), zap.Error(err))
	}
}

// Purge deletes a trashed upload for good. A trash blob that is already
// gone is tolerated.
func (s *UploadService) Purge(ctx context.Context, actor Actor, rawID string) error {
	events := recorder{rec: s.events.rec, collection: trashCollection}
	id, err := ParseID(rawID, "do registro de lixeira")
	if err != nil {
		return err
	}
	var trash models.TrashUpload
	if err := s.db.WithContext(ctx).First(&trash, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return apperr.NotFound("Registro de lixeira não encontrado.")
		}
		return apperr.Backend(err, "Erro ao deletar permanentemente da lixeira.")
	}

	if err := s.store.Delete(ctx, storage.Trash, trash.Key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			events.record(ctx, actor, models.ActionError, ref(trash.ID), "Erro ao deletar permanentemente da lixeira", map[string]any{"error": err.Error()})
			return apperr.Backend(err, "Erro ao deletar permanentemente da lixeira.")
		}
		s.log.Warn("trash blob already gone", zap.String("key", trash.Key))
	}

	res := s.db.WithContext(ctx).Delete(&models.TrashUpload{}, "id = ?", trash.ID)
	if res.Error != nil {
		return apperr.Backend(res.Error, "Erro ao deletar permanentemente da lixeira.")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Registro de lixeira não encontrado.")
	}

	events.record(ctx, actor, models.ActionPermanentDelete, ref(trash.ID), fmt.Sprintf("Arquivo \"%s\" deletado permanentemente da lixeira", trash.Name), map[string]any{
		"originalUploadId": trash.OriginalUploadID.String(),
	})
	return nil
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
