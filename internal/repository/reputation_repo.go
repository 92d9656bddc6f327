package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"gorm.io/gorm"
)

type ReputationRepository interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]model.ReputationEntry, error)
	SumByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type reputationRepository struct {
	db *gorm.DB
}

func NewReputationRepository(db *gorm.DB) ReputationRepository {
	return &reputationRepository{db: db}
}

func (r *reputationRepository) History(ctx context.Context, userID uuid.UUID, limit int) ([]model.ReputationEntry, error) {
	var entries []model.ReputationEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *reputationRepository) SumByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).
		Model(&model.ReputationEntry{}).
		Select("COALESCE(SUM(change_amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}
