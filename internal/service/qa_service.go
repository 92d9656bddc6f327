package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
)

type QAService interface {
	AskQuestion(ctx context.Context, userID uuid.UUID, title, body string, tagIDs []uuid.UUID) (*model.Question, error)
	AnswerQuestion(ctx context.Context, userID, questionID uuid.UUID, body string) (*model.Answer, error)
	EditQuestion(ctx context.Context, userID, questionID uuid.UUID, body string) error
	AcceptAnswer(ctx context.Context, userID, answerID uuid.UUID) error
}

type qaService struct {
	questionRepo        repository.QuestionRepository
	reputationService   ReputationService
	rateLimitService    RateLimitService
	qualityService      QualityService
	tagBadgeService     TagBadgeService
	notificationService NotificationService
	sanitizer           *bluemonday.Policy
}

func NewQAService(
	questionRepo repository.QuestionRepository,
	reputationService ReputationService,
	rateLimitService RateLimitService,
	qualityService QualityService,
	tagBadgeService TagBadgeService,
	notificationService NotificationService,
) QAService {
	return &qaService{
		questionRepo:        questionRepo,
		reputationService:   reputationService,
		rateLimitService:    rateLimitService,
		qualityService:      qualityService,
		tagBadgeService:     tagBadgeService,
		notificationService: notificationService,
		sanitizer:           bluemonday.UGCPolicy(),
	}
}

// AskQuestion gates question creation behind the quality ban and the rate
// limiter, then stores the sanitized question with its tag associations.
func (s *qaService) AskQuestion(ctx context.Context, userID uuid.UUID, title, body string, tagIDs []uuid.UUID) (*model.Question, error) {
	ban, err := s.qualityService.CheckQualityBan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ban.IsBanned {
		return nil, apperror.New(http.StatusForbidden, ban.Message, apperror.ErrQuestionBanned)
	}

	limit := s.rateLimitService.CheckRateLimit(ctx, userID, model.ActionQuestion)
	if !limit.Allowed {
		return nil, apperror.New(http.StatusTooManyRequests, limit.Message, apperror.ErrRateLimitExceeded)
	}

	tags := make([]model.Tag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		tags = append(tags, model.Tag{ID: tagID})
	}

	question := &model.Question{
		UserID: userID,
		Title:  strings.TrimSpace(title),
		Slug:   makeSlug(title),
		Body:   s.sanitizer.Sanitize(body),
		Tags:   tags,
	}
	if err := s.questionRepo.CreateQuestion(ctx, question); err != nil {
		return nil, err
	}

	s.rateLimitService.RecordAction(ctx, userID, model.ActionQuestion)

	// a warning-level ban does not block, but the asker should still see it
	if ban.BanLevel == model.BanLevelWarning {
		log.Printf("User %s asked a question while under a quality warning", userID)
	}

	return question, nil
}

// AnswerQuestion rejects answers on closed questions and applies the answer
// rate limit.
func (s *qaService) AnswerQuestion(ctx context.Context, userID, questionID uuid.UUID, body string) (*model.Answer, error) {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.IsClosed {
		return nil, apperror.ErrQuestionClosed
	}

	limit := s.rateLimitService.CheckRateLimit(ctx, userID, model.ActionAnswer)
	if !limit.Allowed {
		return nil, apperror.New(http.StatusTooManyRequests, limit.Message, apperror.ErrRateLimitExceeded)
	}

	answer := &model.Answer{
		QuestionID: questionID,
		UserID:     userID,
		Body:       s.sanitizer.Sanitize(body),
	}
	if err := s.questionRepo.CreateAnswer(ctx, answer); err != nil {
		return nil, err
	}

	s.rateLimitService.RecordAction(ctx, userID, model.ActionAnswer)

	return answer, nil
}

// EditQuestion stores the sanitized body and stamps last_edited_at, which is
// what makes the asker's strikes eligible for the improvement check.
func (s *qaService) EditQuestion(ctx context.Context, userID, questionID uuid.UUID, body string) error {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}
	if question.UserID != userID {
		return apperror.ErrForbidden
	}

	return s.questionRepo.UpdateQuestionBody(ctx, questionID, s.sanitizer.Sanitize(body), time.Now())
}

// AcceptAnswer is restricted to the question owner. The answerer earns the
// accepted-answer reputation bonus and tag expertise credit in every tag on
// the question; accepting your own answer earns nothing.
func (s *qaService) AcceptAnswer(ctx context.Context, userID, answerID uuid.UUID) error {
	answer, err := s.questionRepo.FindAnswerByID(ctx, answerID)
	if err != nil {
		return err
	}

	question, err := s.questionRepo.FindQuestionByID(ctx, answer.QuestionID)
	if err != nil {
		return err
	}
	if question.UserID != userID {
		return apperror.New(http.StatusForbidden, "only the question owner can accept an answer", apperror.ErrForbidden)
	}
	if answer.IsAccepted {
		return nil
	}

	if err := s.questionRepo.MarkAnswerAccepted(ctx, answerID, time.Now()); err != nil {
		return err
	}

	if answer.UserID == userID {
		return nil
	}

	if err := s.reputationService.Apply(ctx, nil, answer.UserID, RepAcceptedAnswer, "Answer accepted", model.RefTypeAcceptedAnswer, &answerID); err != nil {
		log.Printf("Failed to apply accepted-answer reputation for user %s: %v", answer.UserID, err)
	}

	tagIDs, err := s.questionRepo.TagIDsForQuestion(ctx, question.ID)
	if err != nil {
		log.Printf("Failed to resolve tags for question %s: %v", question.ID, err)
		tagIDs = nil
	}
	for _, tagID := range tagIDs {
		if err := s.tagBadgeService.UpdateUserTagScore(ctx, answer.UserID, tagID, RepAcceptedAnswer, true); err != nil {
			log.Printf("Failed to update tag score for user %s tag %s: %v", answer.UserID, tagID, err)
			continue
		}
		if err := s.tagBadgeService.RecordTagActivity(ctx, answer.UserID, tagID, model.TagActivityAcceptedAnswer, RepAcceptedAnswer, &question.ID, &answerID); err != nil {
			log.Printf("Failed to record tag activity for user %s tag %s: %v", answer.UserID, tagID, err)
		}
	}

	if s.notificationService != nil {
		notif := &model.Notification{
			UserID:     answer.UserID,
			ActorID:    userID,
			EntityID:   answerID,
			EntityType: "answer",
			Type:       "answer_accepted",
			Message:    fmt.Sprintf("Your answer to %q was accepted!", question.Title),
		}
		if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
			log.Printf("Failed to send accepted-answer notification to user %s: %v", answer.UserID, err)
		}
	}

	return nil
}

// makeSlug builds a URL slug from the title with a short random suffix to
// keep the unique index happy for duplicate titles.
func makeSlug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 200 {
		slug = slug[:200]
	}
	return slug + "-" + uuid.NewString()[:8]
}
