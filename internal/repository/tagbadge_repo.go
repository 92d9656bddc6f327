package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagBadgeRepository interface {
	UpsertScore(ctx context.Context, userID, tagID uuid.UUID, points, acceptedDelta int) error
	GetScore(ctx context.Context, userID, tagID uuid.UUID) (*model.UserTagScore, error)
	GetTierConfigs(ctx context.Context) ([]model.TagBadgeTierConfig, error)
	HasTierBadge(ctx context.Context, userID, tagID uuid.UUID, tier string) (bool, error)
	CreateBadge(ctx context.Context, badge *model.UserTagBadge) error
	GetBadge(ctx context.Context, userID, tagID uuid.UUID, tier string) (*model.UserTagBadge, error)
	ListUserBadgesForTag(ctx context.Context, userID, tagID uuid.UUID) ([]model.UserTagBadge, error)
	HasActiveBadgeInTags(ctx context.Context, userID uuid.UUID, tagIDs []uuid.UUID, tiers []string) (bool, error)
	CreateActivity(ctx context.Context, activity *model.TagBadgeActivity) error
	IncrementFreshnessScore(ctx context.Context, userID, tagID uuid.UUID, points int) error
	ListGoldBadgesDueForCheck(ctx context.Context, checkBefore time.Time) ([]model.UserTagBadge, error)
	SumActivitySince(ctx context.Context, userID, tagID uuid.UUID, since time.Time) (int, error)
	ResetFreshnessWindow(ctx context.Context, badgeID uuid.UUID, checkedAt time.Time) error
	MarkBadgeInactive(ctx context.Context, badgeID uuid.UUID, at time.Time) error
	ReactivateBadge(ctx context.Context, badgeID uuid.UUID, checkedAt time.Time) error
}

type tagBadgeRepository struct {
	db *gorm.DB
}

func NewTagBadgeRepository(db *gorm.DB) TagBadgeRepository {
	return &tagBadgeRepository{db: db}
}

// UpsertScore only ever adds points; there is no subtraction path when a vote
// is later reversed. Scores accumulate by design of the expertise system.
func (r *tagBadgeRepository) UpsertScore(ctx context.Context, userID, tagID uuid.UUID, points, acceptedDelta int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "tag_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_score":            gorm.Expr("user_tag_scores.total_score + ?", points),
			"accepted_answers_count": gorm.Expr("user_tag_scores.accepted_answers_count + ?", acceptedDelta),
			"last_activity_at":       gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&model.UserTagScore{
		UserID:               userID,
		TagID:                tagID,
		TotalScore:           points,
		AcceptedAnswersCount: acceptedDelta,
	}).Error
}

func (r *tagBadgeRepository) GetScore(ctx context.Context, userID, tagID uuid.UUID) (*model.UserTagScore, error) {
	var score model.UserTagScore
	err := r.db.WithContext(ctx).
		First(&score, "user_id = ? AND tag_id = ?", userID, tagID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.UserTagScore{UserID: userID, TagID: tagID}, nil
		}
		return nil, err
	}
	return &score, nil
}

func (r *tagBadgeRepository) GetTierConfigs(ctx context.Context) ([]model.TagBadgeTierConfig, error) {
	var configs []model.TagBadgeTierConfig
	err := r.db.WithContext(ctx).Order("min_score asc").Find(&configs).Error
	return configs, err
}

func (r *tagBadgeRepository) HasTierBadge(ctx context.Context, userID, tagID uuid.UUID, tier string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("user_id = ? AND tag_id = ? AND tier = ?", userID, tagID, tier).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *tagBadgeRepository) CreateBadge(ctx context.Context, badge *model.UserTagBadge) error {
	return r.db.WithContext(ctx).Create(badge).Error
}

func (r *tagBadgeRepository) GetBadge(ctx context.Context, userID, tagID uuid.UUID, tier string) (*model.UserTagBadge, error) {
	var badge model.UserTagBadge
	err := r.db.WithContext(ctx).
		First(&badge, "user_id = ? AND tag_id = ? AND tier = ?", userID, tagID, tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &badge, nil
}

func (r *tagBadgeRepository) ListUserBadgesForTag(ctx context.Context, userID, tagID uuid.UUID) ([]model.UserTagBadge, error) {
	var badges []model.UserTagBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tag_id = ?", userID, tagID).
		Order("earned_at asc").
		Find(&badges).Error
	return badges, err
}

func (r *tagBadgeRepository) HasActiveBadgeInTags(ctx context.Context, userID uuid.UUID, tagIDs []uuid.UUID, tiers []string) (bool, error) {
	if len(tagIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("user_id = ? AND tag_id IN ? AND tier IN ? AND is_active = ?", userID, tagIDs, tiers, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *tagBadgeRepository) CreateActivity(ctx context.Context, activity *model.TagBadgeActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *tagBadgeRepository) IncrementFreshnessScore(ctx context.Context, userID, tagID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("user_id = ? AND tag_id = ? AND tier = ? AND is_active = ?", userID, tagID, model.TierGold, true).
		Update("freshness_score_since_check", gorm.Expr("freshness_score_since_check + ?", points)).Error
}

func (r *tagBadgeRepository) ListGoldBadgesDueForCheck(ctx context.Context, checkBefore time.Time) ([]model.UserTagBadge, error) {
	var badges []model.UserTagBadge
	err := r.db.WithContext(ctx).
		Where("tier = ? AND is_active = ?", model.TierGold, true).
		Where("last_freshness_check IS NULL OR last_freshness_check < ?", checkBefore).
		Find(&badges).Error
	return badges, err
}

func (r *tagBadgeRepository) SumActivitySince(ctx context.Context, userID, tagID uuid.UUID, since time.Time) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).
		Model(&model.TagBadgeActivity{}).
		Select("COALESCE(SUM(points_earned), 0)").
		Where("user_id = ? AND tag_id = ? AND created_at >= ?", userID, tagID, since).
		Scan(&sum).Error
	return sum, err
}

func (r *tagBadgeRepository) ResetFreshnessWindow(ctx context.Context, badgeID uuid.UUID, checkedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("id = ?", badgeID).
		Updates(map[string]interface{}{
			"last_freshness_check":        checkedAt,
			"freshness_score_since_check": 0,
		}).Error
}

func (r *tagBadgeRepository) MarkBadgeInactive(ctx context.Context, badgeID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("id = ?", badgeID).
		Updates(map[string]interface{}{
			"is_active":          false,
			"marked_inactive_at": at,
		}).Error
}

func (r *tagBadgeRepository) ReactivateBadge(ctx context.Context, badgeID uuid.UUID, checkedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.UserTagBadge{}).
		Where("id = ?", badgeID).
		Updates(map[string]interface{}{
			"is_active":                   true,
			"marked_inactive_at":          nil,
			"last_freshness_check":        checkedAt,
			"freshness_score_since_check": 0,
		}).Error
}
