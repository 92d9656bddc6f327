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

type QuestionRepository interface {
	CreateQuestion(ctx context.Context, question *model.Question) error
	FindQuestionByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	FirstQuestionID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	AdjustQuestionScore(ctx context.Context, id uuid.UUID, delta int) error
	UpdateQuestionBody(ctx context.Context, id uuid.UUID, body string, editedAt time.Time) error
	SetClosure(ctx context.Context, id uuid.UUID, reasonKey, details string, closedBy *uuid.UUID, closedAt time.Time) error
	ClearClosure(ctx context.Context, id uuid.UUID) error
	TagIDsForQuestion(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error)

	CreateAnswer(ctx context.Context, answer *model.Answer) error
	FindAnswerByID(ctx context.Context, id uuid.UUID) (*model.Answer, error)
	AdjustAnswerScore(ctx context.Context, id uuid.UUID, delta int) error
	MarkAnswerAccepted(ctx context.Context, id uuid.UUID, acceptedAt time.Time) error
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) CreateQuestion(ctx context.Context, question *model.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) FindQuestionByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	var question model.Question
	err := r.db.WithContext(ctx).Preload("Tags").First(&question, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// FirstQuestionID returns the ID of the numerically-first question the user
// ever asked, or uuid.Nil if the user has none.
func (r *questionRepository) FirstQuestionID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var questions []model.Question
	err := r.db.WithContext(ctx).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Limit(1).
		Find(&questions).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(questions) == 0 {
		return uuid.Nil, nil
	}
	return questions[0].ID, nil
}

func (r *questionRepository) AdjustQuestionScore(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.Question{}).
		Where("id = ?", id).
		Update("score", gorm.Expr("score + ?", delta)).Error
}

func (r *questionRepository) UpdateQuestionBody(ctx context.Context, id uuid.UUID, body string, editedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"body":           body,
			"last_edited_at": editedAt,
		}).Error
}

func (r *questionRepository) SetClosure(ctx context.Context, id uuid.UUID, reasonKey, details string, closedBy *uuid.UUID, closedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_closed":         true,
			"closed_at":         closedAt,
			"close_reason_key":  reasonKey,
			"close_details":     details,
			"closed_by_user_id": closedBy,
		}).Error
}

func (r *questionRepository) ClearClosure(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_closed":         false,
			"closed_at":         nil,
			"close_reason_key":  nil,
			"close_details":     nil,
			"closed_by_user_id": nil,
		}).Error
}

func (r *questionRepository) TagIDsForQuestion(ctx context.Context, questionID uuid.UUID) ([]uuid.UUID, error) {
	var tagIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("question_tags").
		Select("tag_id").
		Where("question_id = ?", questionID).
		Scan(&tagIDs).Error
	return tagIDs, err
}

func (r *questionRepository) CreateAnswer(ctx context.Context, answer *model.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *questionRepository) FindAnswerByID(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	var answer model.Answer
	err := r.db.WithContext(ctx).First(&answer, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &answer, nil
}

func (r *questionRepository) AdjustAnswerScore(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.Answer{}).
		Where("id = ?", id).
		Update("score", gorm.Expr("score + ?", delta)).Error
}

func (r *questionRepository) MarkAnswerAccepted(ctx context.Context, id uuid.UUID, acceptedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Answer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_accepted": true,
			"accepted_at": acceptedAt,
		}).Error
}
