// Package activity records the audit trail. Recording never blocks and never
// fails the operation that triggered it.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/chxlky/contract-kanban/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Event struct {
	Action      models.Action
	Collection  string
	DocumentID  *uuid.UUID
	UserID      *uuid.UUID
	Description string
	IP          string
	Metadata    map[string]any
	At          time.Time
}

type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

const writeTimeout = 5 * time.Second

// AsyncRecorder queues events on a bounded channel drained by a single
// writer goroutine. A full queue drops the event with a warning.
type AsyncRecorder struct {
	db    *gorm.DB
	log   *zap.Logger
	queue chan models.Activity
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncRecorder(db *gorm.DB, log *zap.Logger, size int) *AsyncRecorder {
	if size <= 0 {
		size = 256
	}
	r := &AsyncRecorder{
		db:    db,
		log:   log.With(zap.String("service", "activity")),
		queue: make(chan models.Activity, size),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) Record(ctx context.Context, e Event) {
	row := toRow(e)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn("activity recorder closed, dropping event", zap.String("action", string(row.Action)), zap.String("collection", row.CollectionType))
		return
	}
	select {
	case r.queue <- row:
	default:
		r.log.Warn("activity queue full, dropping event", zap.String("action", string(row.Action)), zap.String("collection", row.CollectionType))
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for row := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			r.log.Error("failed to persist activity", zap.String("action", string(row.Action)), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toRow(e Event) models.Activity {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	row := models.Activity{
		Action:         e.Action,
		CollectionType: e.Collection,
		DocumentID:     e.DocumentID,
		UserID:         e.UserID,
		Description:    e.Description,
		IP:             e.IP,
		Timestamp:      at,
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}
	return row
}
