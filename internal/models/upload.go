package models

import (
	"time"

	"github.com/google/uuid"
)

// Upload is a file whose blob sits in the active bucket.
type Upload struct {
	Model
	Name        string     `gorm:"not null" json:"name"`
	Size        int64      `json:"size"`
	Key         string     `gorm:"uniqueIndex;not null" json:"key"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	ContractID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"contractId"`
	CardID      *uuid.UUID `gorm:"type:uuid;index" json:"cardId"`
	ItemID      *uuid.UUID `gorm:"type:uuid" json:"itemId"`
	UploadedBy  uuid.UUID  `gorm:"type:uuid;not null" json:"uploadedBy"`
}

// TrashUpload is an upload moved to the trash bucket. OriginalUploadID is
// unique so an upload can only be trashed once.
type TrashUpload struct {
	Model
	OriginalUploadID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"originalUploadId"`
	Name             string     `gorm:"not null" json:"name"`
	Size             int64      `json:"size"`
	Key              string     `gorm:"index;not null" json:"key"`
	URL              string     `json:"url"`
	Description      string     `json:"description"`
	ContractID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"contractId"`
	CardID           *uuid.UUID `gorm:"type:uuid;index" json:"cardId"`
	ItemID           *uuid.UUID `gorm:"type:uuid" json:"itemId"`
	UploadedBy       uuid.UUID  `gorm:"type:uuid;not null" json:"uploadedBy"`
	DeletedAt        time.Time  `json:"deletedAt"`
	DeletedBy        *uuid.UUID `gorm:"type:uuid" json:"deletedBy"`
}

// Trash builds the trash record for u. The URL is supplied by the caller
// since it depends on the storage backend.
func (u *Upload) Trash(by *uuid.UUID, url string, now time.Time) *TrashUpload {
	return &TrashUpload{
		OriginalUploadID: u.ID,
		Name:             u.Name,
		Size:             u.Size,
		Key:              u.Key,
		URL:              url,
		Description:      u.Description,
		ContractID:       u.ContractID,
		CardID:           u.CardID,
		ItemID:           u.ItemID,
		UploadedBy:       u.UploadedBy,
		DeletedAt:        now,
		DeletedBy:        by,
	}
}
