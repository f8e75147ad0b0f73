package callback

import (
	"context"

	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"
)

// Repository provides CRUD operations for callback delivery bookkeeping.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a new callback repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// RecordDelivery persists a delivery attempt.
func (r *Repository) RecordDelivery(ctx context.Context, da *DeliveryAttempt) error {
	return r.db(ctx, false).Create(da).Error
}

// ListDeliveries returns delivery attempts for a Member, newest first.
func (r *Repository) ListDeliveries(ctx context.Context, roomID, memberID string, limit int) ([]DeliveryAttempt, error) {
	var attempts []DeliveryAttempt
	q := r.db(ctx, true).
		Where("room_id = ? AND member_id = ?", roomID, memberID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

// CreateDeadLetter persists a dead-lettered callback.
func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	return r.db(ctx, false).Create(dl).Error
}

// ListDeadLetters returns replayable dead letters for a Room.
func (r *Repository) ListDeadLetters(ctx context.Context, roomID string) ([]DeadLetter, error) {
	var letters []DeadLetter
	err := r.db(ctx, true).
		Where("room_id = ? AND replayable = ?", roomID, true).
		Order("created_at DESC").
		Find(&letters).Error
	return letters, err
}

// MarkDeadLetterReplayed marks a dead letter as no longer replayable.
func (r *Repository) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	return r.db(ctx, false).
		Model(&DeadLetter{}).
		Where("id = ?", id).
		Update("replayable", false).Error
}
