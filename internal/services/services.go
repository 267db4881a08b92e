// Package services holds the business operations behind the HTTP handlers.
// Every mutation reports itself to the activity recorder after it commits.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/apperr"
	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor identifies who triggered an operation and from where.
type Actor struct {
	UserID *uuid.UUID
	IP     string
}

func (a Actor) Authenticated() bool {
	return a.UserID != nil && *a.UserID != uuid.Nil
}

// Page is a 1-indexed page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// ParseID validates a wire identifier.
func ParseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Validation("ID %s inválido.", what)
	}
	return id, nil
}

func parseOptionalID(raw, what string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseID(raw, what)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

type recorder struct {
	rec        activity.Recorder
	collection string
}

func (r recorder) record(ctx context.Context, actor Actor, action models.Action, doc *uuid.UUID, description string, metadata map[string]any) {
	if r.rec == nil {
		return
	}
	r.rec.Record(ctx, activity.Event{
		Action:      action,
		Collection:  r.collection,
		DocumentID:  doc,
		UserID:      actor.UserID,
		Description: description,
		IP:          actor.IP,
		Metadata:    metadata,
	})
}

func ref(id uuid.UUID) *uuid.UUID {
	return &id
}
