package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"gorm.io/gorm"
)

type VoteRepository interface {
	FindByUserAndVotable(ctx context.Context, userID uuid.UUID, votableType string, votableID uuid.UUID) (*model.Vote, error)
	Create(ctx context.Context, vote *model.Vote) error
	Delete(ctx context.Context, vote *model.Vote) error
	UpdateType(ctx context.Context, voteID uuid.UUID, voteType string) error
	CountUpvotesCast(ctx context.Context, userID uuid.UUID) (int64, error)
}

type voteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// FindByUserAndVotable returns nil without error when no vote exists.
func (r *voteRepository) FindByUserAndVotable(ctx context.Context, userID uuid.UUID, votableType string, votableID uuid.UUID) (*model.Vote, error) {
	// Find with slice avoids "record not found" log noise from First()
	var existing []model.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND votable_type = ? AND votable_id = ?", userID, votableType, votableID).
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

func (r *voteRepository) Create(ctx context.Context, vote *model.Vote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *voteRepository) Delete(ctx context.Context, vote *model.Vote) error {
	return r.db.WithContext(ctx).Delete(vote).Error
}

func (r *voteRepository) UpdateType(ctx context.Context, voteID uuid.UUID, voteType string) error {
	return r.db.WithContext(ctx).
		Model(&model.Vote{}).
		Where("id = ?", voteID).
		Update("vote_type", voteType).Error
}

// CountUpvotesCast counts upvotes the user has cast. Self-votes are rejected
// before insertion, so every stored upvote targets someone else's content.
func (r *voteRepository) CountUpvotesCast(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Vote{}).
		Where("user_id = ? AND vote_type = ?", userID, model.VoteTypeUp).
		Count(&count).Error
	return count, err
}
