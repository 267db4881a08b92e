package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is embedded by every persisted entity.
type Model struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// All lists every model handled by the migrator.
func All() []any {
	return []any{
		&Facility{},
		&User{},
		&Contract{},
		&ContractRevision{},
		&Item{},
		&Card{},
		&Upload{},
		&TrashUpload{},
		&Activity{},
		&Session{},
	}
}
