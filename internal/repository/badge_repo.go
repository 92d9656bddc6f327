package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository interface {
	FindByName(ctx context.Context, name string) (*model.Badge, error)
	HasUserBadge(ctx context.Context, userID, badgeID uuid.UUID) (bool, error)
	CreateUserBadge(ctx context.Context, userBadge *model.UserBadge) error
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error)
	UpsertProgress(ctx context.Context, userID, badgeID uuid.UUID, delta, target int) error
}

type badgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) FindByName(ctx context.Context, name string) (*model.Badge, error) {
	var badge model.Badge
	err := r.db.WithContext(ctx).First(&badge, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &badge, nil
}

func (r *badgeRepository) HasUserBadge(ctx context.Context, userID, badgeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *badgeRepository) CreateUserBadge(ctx context.Context, userBadge *model.UserBadge) error {
	return r.db.WithContext(ctx).Create(userBadge).Error
}

func (r *badgeRepository) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	var badges []model.UserBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at desc").
		Preload("Badge").
		Find(&badges).Error
	return badges, err
}

// UpsertProgress increments the running counter via OnConflict so concurrent
// actions never lose updates.
func (r *badgeRepository) UpsertProgress(ctx context.Context, userID, badgeID uuid.UUID, delta, target int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"progress":   gorm.Expr("badge_progresses.progress + ?", delta),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&model.BadgeProgress{
		UserID:   userID,
		BadgeID:  badgeID,
		Progress: delta,
		Target:   target,
	}).Error
}
