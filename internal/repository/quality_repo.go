package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QualityRepository interface {
	GetConfig(ctx context.Context) (*model.QualityBanConfig, error)
	FindStrike(ctx context.Context, userID, questionID uuid.UUID, strikeType string) (*model.QualityStrike, error)
	CreateStrike(ctx context.Context, strike *model.QualityStrike) error
	UpdateStrike(ctx context.Context, strike *model.QualityStrike) error
	SumActiveStrikes(ctx context.Context, userID uuid.UUID) (float64, error)
	SumAllStrikes(ctx context.Context, userID uuid.UUID) (float64, error)
	DeactivateStrike(ctx context.Context, strikeID uuid.UUID, at time.Time) error
	DeactivateStrikeByType(ctx context.Context, userID, questionID uuid.UUID, strikeType string, at time.Time) error
	ListImprovableStrikes(ctx context.Context, minScore int) ([]model.QualityStrike, error)
	GetActiveBan(ctx context.Context, userID uuid.UUID, banType string) (*model.QualityBan, error)
	CreateBan(ctx context.Context, ban *model.QualityBan) error
	UpdateBan(ctx context.Context, ban *model.QualityBan) error
	AdjustMetrics(ctx context.Context, questionID uuid.UUID, upDelta, downDelta int) error
	GetMetrics(ctx context.Context, questionID uuid.UUID) (*model.QuestionQualityMetrics, error)
}

type qualityRepository struct {
	db *gorm.DB
}

func NewQualityRepository(db *gorm.DB) QualityRepository {
	return &qualityRepository{db: db}
}

func (r *qualityRepository) GetConfig(ctx context.Context) (*model.QualityBanConfig, error) {
	var config model.QualityBanConfig
	err := r.db.WithContext(ctx).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No config row seeded yet; fall back to defaults
			return &model.QualityBanConfig{
				DownvoteStrikeValue: 0.5,
				ClosedStrikeValue:   2,
				DeletedStrikeValue:  3,
				WarningThreshold:    3,
				WeekThreshold:       5,
				MonthThreshold:      8,
				PermanentThreshold:  12,
				ImprovementMinScore: 0,
			}, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *qualityRepository) FindStrike(ctx context.Context, userID, questionID uuid.UUID, strikeType string) (*model.QualityStrike, error) {
	var existing []model.QualityStrike
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND question_id = ? AND strike_type = ?", userID, questionID, strikeType).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &existing[0], nil
}

func (r *qualityRepository) CreateStrike(ctx context.Context, strike *model.QualityStrike) error {
	return r.db.WithContext(ctx).Create(strike).Error
}

func (r *qualityRepository) UpdateStrike(ctx context.Context, strike *model.QualityStrike) error {
	return r.db.WithContext(ctx).Save(strike).Error
}

func (r *qualityRepository) SumActiveStrikes(ctx context.Context, userID uuid.UUID) (float64, error) {
	var sum float64
	err := r.db.WithContext(ctx).
		Model(&model.QualityStrike{}).
		Select("COALESCE(SUM(strike_value), 0)").
		Where("user_id = ? AND is_active = ?", userID, true).
		Scan(&sum).Error
	return sum, err
}

func (r *qualityRepository) SumAllStrikes(ctx context.Context, userID uuid.UUID) (float64, error) {
	var sum float64
	err := r.db.WithContext(ctx).
		Model(&model.QualityStrike{}).
		Select("COALESCE(SUM(strike_value), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}

func (r *qualityRepository) DeactivateStrike(ctx context.Context, strikeID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.QualityStrike{}).
		Where("id = ?", strikeID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"removed_at": at,
		}).Error
}

func (r *qualityRepository) DeactivateStrikeByType(ctx context.Context, userID, questionID uuid.UUID, strikeType string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.QualityStrike{}).
		Where("user_id = ? AND question_id = ? AND strike_type = ? AND is_active = ?", userID, questionID, strikeType, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"removed_at": at,
		}).Error
}

// ListImprovableStrikes finds active strikes whose question has been edited
// after the strike was recorded and whose quality score now meets minScore.
func (r *qualityRepository) ListImprovableStrikes(ctx context.Context, minScore int) ([]model.QualityStrike, error) {
	var strikes []model.QualityStrike
	err := r.db.WithContext(ctx).
		Model(&model.QualityStrike{}).
		Joins("JOIN questions ON questions.id = quality_strikes.question_id").
		Joins("JOIN question_quality_metrics ON question_quality_metrics.question_id = quality_strikes.question_id").
		Where("quality_strikes.is_active = ?", true).
		Where("questions.last_edited_at IS NOT NULL AND questions.last_edited_at > quality_strikes.created_at").
		Where("question_quality_metrics.quality_score >= ?", minScore).
		Find(&strikes).Error
	return strikes, err
}

func (r *qualityRepository) GetActiveBan(ctx context.Context, userID uuid.UUID, banType string) (*model.QualityBan, error) {
	var bans []model.QualityBan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ban_type = ? AND is_active = ?", userID, banType, true).
		Limit(1).
		Find(&bans).Error
	if err != nil {
		return nil, err
	}
	if len(bans) == 0 {
		return nil, nil
	}
	return &bans[0], nil
}

func (r *qualityRepository) CreateBan(ctx context.Context, ban *model.QualityBan) error {
	return r.db.WithContext(ctx).Create(ban).Error
}

func (r *qualityRepository) UpdateBan(ctx context.Context, ban *model.QualityBan) error {
	return r.db.WithContext(ctx).Save(ban).Error
}

// AdjustMetrics keeps the per-question vote tally current via an atomic upsert.
func (r *qualityRepository) AdjustMetrics(ctx context.Context, questionID uuid.UUID, upDelta, downDelta int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "question_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"upvotes":       gorm.Expr("question_quality_metrics.upvotes + ?", upDelta),
			"downvotes":     gorm.Expr("question_quality_metrics.downvotes + ?", downDelta),
			"quality_score": gorm.Expr("question_quality_metrics.quality_score + ?", upDelta-downDelta),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&model.QuestionQualityMetrics{
		QuestionID:   questionID,
		Upvotes:      upDelta,
		Downvotes:    downDelta,
		QualityScore: upDelta - downDelta,
	}).Error
}

func (r *qualityRepository) GetMetrics(ctx context.Context, questionID uuid.UUID) (*model.QuestionQualityMetrics, error) {
	var metrics model.QuestionQualityMetrics
	err := r.db.WithContext(ctx).First(&metrics, "question_id = ?", questionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.QuestionQualityMetrics{QuestionID: questionID}, nil
		}
		return nil, err
	}
	return &metrics, nil
}
