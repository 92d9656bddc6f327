package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"gorm.io/gorm"
)

// Default reputation deltas applied by the voting and Q&A flows.
const (
	RepQuestionUpvote    = 5
	RepAnswerUpvote      = 10
	RepDownvote          = -2
	RepAcceptedAnswer    = 15
	RepEmailVerification = 10
)

type ReputationService interface {
	// Apply writes the ledger entry and the denormalized counter on the same
	// handle. Pass the enclosing transaction so both land or neither does;
	// with a nil tx Apply opens its own transaction around the pair.
	Apply(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason, referenceType string, referenceID *uuid.UUID) error
	History(ctx context.Context, userID uuid.UUID, limit int) ([]model.ReputationEntry, error)
	// Total is the ledger-derived reputation sum, independent of the counter.
	Total(ctx context.Context, userID uuid.UUID) (int, error)
}

type reputationService struct {
	db   *gorm.DB
	repo repository.ReputationRepository
}

func NewReputationService(db *gorm.DB, repo repository.ReputationRepository) ReputationService {
	return &reputationService{db: db, repo: repo}
}

func (s *reputationService) Apply(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason, referenceType string, referenceID *uuid.UUID) error {
	if delta == 0 {
		return nil
	}
	if tx != nil {
		return applyOn(ctx, tx, userID, delta, reason, referenceType, referenceID)
	}
	return s.db.Transaction(func(innerTx *gorm.DB) error {
		return applyOn(ctx, innerTx, userID, delta, reason, referenceType, referenceID)
	})
}

func applyOn(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int, reason, referenceType string, referenceID *uuid.UUID) error {
	entry := &model.ReputationEntry{
		UserID:        userID,
		ChangeAmount:  delta,
		Reason:        reason,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("reputation", gorm.Expr("reputation + ?", delta)).Error
}

func (s *reputationService) History(ctx context.Context, userID uuid.UUID, limit int) ([]model.ReputationEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.History(ctx, userID, limit)
}

func (s *reputationService) Total(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.SumByUser(ctx, userID)
}
