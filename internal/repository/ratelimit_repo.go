package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"gorm.io/gorm"
)

type RateLimitRepository interface {
	GetConfigs(ctx context.Context, actionType string, reputation int) ([]model.RateLimitConfig, error)
	CountActionsSince(ctx context.Context, userID uuid.UUID, actionType string, since time.Time) (int64, error)
	OldestActionSince(ctx context.Context, userID uuid.UUID, actionType string, since time.Time) (*time.Time, error)
	CreateAction(ctx context.Context, action *model.RateLimitAction) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

type rateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

// GetConfigs returns the windows applicable to the user's reputation bracket,
// shortest window first so checks can short-circuit on the tightest limit.
func (r *rateLimitRepository) GetConfigs(ctx context.Context, actionType string, reputation int) ([]model.RateLimitConfig, error) {
	var configs []model.RateLimitConfig
	err := r.db.WithContext(ctx).
		Where("action_type = ? AND min_reputation <= ?", actionType, reputation).
		Where("max_reputation IS NULL OR max_reputation >= ?", reputation).
		Order("time_window_minutes asc").
		Find(&configs).Error
	return configs, err
}

func (r *rateLimitRepository) CountActionsSince(ctx context.Context, userID uuid.UUID, actionType string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RateLimitAction{}).
		Where("user_id = ? AND action_type = ? AND created_at >= ?", userID, actionType, since).
		Count(&count).Error
	return count, err
}

func (r *rateLimitRepository) OldestActionSince(ctx context.Context, userID uuid.UUID, actionType string, since time.Time) (*time.Time, error) {
	var actions []model.RateLimitAction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND action_type = ? AND created_at >= ?", userID, actionType, since).
		Order("created_at asc").
		Limit(1).
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}
	return &actions[0].CreatedAt, nil
}

func (r *rateLimitRepository) CreateAction(ctx context.Context, action *model.RateLimitAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *rateLimitRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.RateLimitAction{}).Error
}
