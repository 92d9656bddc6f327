package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"gorm.io/gorm"
)

type ClosureRepository interface {
	GetConfig(ctx context.Context) (*model.ClosureConfig, error)
	FindCloseReason(ctx context.Context, key string) (*model.CloseReason, error)
	FindActiveCloseVote(ctx context.Context, questionID, userID uuid.UUID) (*model.QuestionCloseVote, error)
	CreateCloseVote(ctx context.Context, vote *model.QuestionCloseVote) error
	CountActiveCloseVotes(ctx context.Context, questionID uuid.UUID) (int64, error)
	DeactivateCloseVotes(ctx context.Context, questionID uuid.UUID) error
	FindActiveReopenVote(ctx context.Context, questionID, userID uuid.UUID) (*model.QuestionReopenVote, error)
	CreateReopenVote(ctx context.Context, vote *model.QuestionReopenVote) error
	CountActiveReopenVotes(ctx context.Context, questionID uuid.UUID) (int64, error)
	DeactivateReopenVotes(ctx context.Context, questionID uuid.UUID) error
	CreateAutoCloseLog(ctx context.Context, entry *model.AutoCloseLog) error
	ExpireCloseVotesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type closureRepository struct {
	db *gorm.DB
}

func NewClosureRepository(db *gorm.DB) ClosureRepository {
	return &closureRepository{db: db}
}

func (r *closureRepository) GetConfig(ctx context.Context) (*model.ClosureConfig, error) {
	var config model.ClosureConfig
	err := r.db.WithContext(ctx).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.ClosureConfig{
				CloseVotesRequired:      3,
				ReopenVotesRequired:     3,
				GoldBadgeHammerEnabled:  true,
				AutoCloseEnabled:        true,
				AutoCloseScoreThreshold: -5,
				CloseVoteAgingDays:      14,
			}, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *closureRepository) FindCloseReason(ctx context.Context, key string) (*model.CloseReason, error) {
	var reason model.CloseReason
	err := r.db.WithContext(ctx).First(&reason, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &reason, nil
}

func (r *closureRepository) FindActiveCloseVote(ctx context.Context, questionID, userID uuid.UUID) (*model.QuestionCloseVote, error) {
	var votes []model.QuestionCloseVote
	err := r.db.WithContext(ctx).
		Where("question_id = ? AND user_id = ? AND is_active = ?", questionID, userID, true).
		Limit(1).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}

func (r *closureRepository) CreateCloseVote(ctx context.Context, vote *model.QuestionCloseVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *closureRepository) CountActiveCloseVotes(ctx context.Context, questionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.QuestionCloseVote{}).
		Where("question_id = ? AND is_active = ?", questionID, true).
		Count(&count).Error
	return count, err
}

func (r *closureRepository) DeactivateCloseVotes(ctx context.Context, questionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.QuestionCloseVote{}).
		Where("question_id = ? AND is_active = ?", questionID, true).
		Update("is_active", false).Error
}

func (r *closureRepository) FindActiveReopenVote(ctx context.Context, questionID, userID uuid.UUID) (*model.QuestionReopenVote, error) {
	var votes []model.QuestionReopenVote
	err := r.db.WithContext(ctx).
		Where("question_id = ? AND user_id = ? AND is_active = ?", questionID, userID, true).
		Limit(1).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, nil
	}
	return &votes[0], nil
}

func (r *closureRepository) CreateReopenVote(ctx context.Context, vote *model.QuestionReopenVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *closureRepository) CountActiveReopenVotes(ctx context.Context, questionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.QuestionReopenVote{}).
		Where("question_id = ? AND is_active = ?", questionID, true).
		Count(&count).Error
	return count, err
}

func (r *closureRepository) DeactivateReopenVotes(ctx context.Context, questionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.QuestionReopenVote{}).
		Where("question_id = ? AND is_active = ?", questionID, true).
		Update("is_active", false).Error
}

func (r *closureRepository) CreateAutoCloseLog(ctx context.Context, entry *model.AutoCloseLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ExpireCloseVotesBefore deactivates aged close votes on questions that are
// still open. Closed questions had their votes deactivated at closure time.
func (r *closureRepository) ExpireCloseVotesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.QuestionCloseVote{}).
		Where("is_active = ? AND created_at < ?", true, cutoff).
		Where("question_id IN (?)", r.db.Model(&model.Question{}).Select("id").Where("is_closed = ?", false)).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
