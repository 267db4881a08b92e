package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DBStore keeps sessions in the sessions table. Used when no redis address
// is configured.
type DBStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewDBStore(db *gorm.DB, ttl time.Duration) *DBStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DBStore{db: db, ttl: ttl, now: time.Now}
}

func (s *DBStore) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	row := models.Session{Token: token, UserID: userID, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (s *DBStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	var row models.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load session: %w", err)
	}
	if !s.now().Before(row.ExpiresAt) {
		_ = s.db.WithContext(ctx).Delete(&models.Session{}, "token = ?", token).Error
		return uuid.Nil, ErrNotFound
	}
	return row.UserID, nil
}

func (s *DBStore) Delete(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Session{}, "token = ?", token).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
