package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
)

// CloseVoteResult tells the caller whether their vote tipped the question over.
type CloseVoteResult struct {
	Closed      bool  `json:"closed"`
	VotesCast   int64 `json:"votes_cast"`
	VotesNeeded int   `json:"votes_needed"`
}

// ClosureStatus is the public closure state of a question: whether it is
// closed, and how far along the pending vote pool is.
type ClosureStatus struct {
	IsClosed      bool       `json:"is_closed"`
	ReasonKey     *string    `json:"reason_key,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CloseVotes    int64      `json:"close_votes"`
	ReopenVotes   int64      `json:"reopen_votes"`
	VotesRequired int        `json:"votes_required"`
}

type ClosureService interface {
	CastCloseVote(ctx context.Context, questionID, userID uuid.UUID, reasonKey, details string) (*CloseVoteResult, error)
	CastReopenVote(ctx context.Context, questionID, userID uuid.UUID) (*CloseVoteResult, error)
	Status(ctx context.Context, questionID uuid.UUID) (*ClosureStatus, error)
	CloseQuestion(ctx context.Context, questionID uuid.UUID, reasonKey, details string, closedBy *uuid.UUID, automatic bool) error
	ReopenQuestion(ctx context.Context, questionID uuid.UUID) error
	HasGoldBadgeHammer(ctx context.Context, userID, questionID uuid.UUID) (bool, error)
	CheckAutoClose(ctx context.Context, questionID uuid.UUID) error
	ExpireOldCloseVotes(ctx context.Context) (int64, error)
}

type closureService struct {
	questionRepo        repository.QuestionRepository
	repo                repository.ClosureRepository
	tagBadgeRepo        repository.TagBadgeRepository
	qualityService      QualityService
	rateLimitService    RateLimitService
	notificationService NotificationService
	sanitizer           *bluemonday.Policy
}

func NewClosureService(questionRepo repository.QuestionRepository, repo repository.ClosureRepository, tagBadgeRepo repository.TagBadgeRepository, qualityService QualityService, rateLimitService RateLimitService, notificationService NotificationService) ClosureService {
	return &closureService{
		questionRepo:        questionRepo,
		repo:                repo,
		tagBadgeRepo:        tagBadgeRepo,
		qualityService:      qualityService,
		rateLimitService:    rateLimitService,
		notificationService: notificationService,
		sanitizer:           bluemonday.StrictPolicy(),
	}
}

// CastCloseVote records one active close vote per user. The question closes
// immediately when the voter holds the gold-badge hammer for one of its tags,
// or when the vote count reaches the configured threshold.
func (s *closureService) CastCloseVote(ctx context.Context, questionID, userID uuid.UUID, reasonKey, details string) (*CloseVoteResult, error) {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.IsClosed {
		return nil, apperror.ErrQuestionClosed
	}

	if _, err := s.repo.FindCloseReason(ctx, reasonKey); err != nil {
		return nil, apperror.New(0, fmt.Sprintf("unknown close reason: %s", reasonKey), apperror.ErrInvalidInput)
	}

	existing, err := s.repo.FindActiveCloseVote(ctx, questionID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyVoted
	}

	limit := s.rateLimitService.CheckRateLimit(ctx, userID, model.ActionCloseVote)
	if !limit.Allowed {
		return nil, apperror.New(http.StatusTooManyRequests, limit.Message, apperror.ErrRateLimitExceeded)
	}

	details = s.sanitizer.Sanitize(details)

	vote := &model.QuestionCloseVote{
		QuestionID: questionID,
		UserID:     userID,
		ReasonKey:  reasonKey,
		Details:    details,
	}
	if err := s.repo.CreateCloseVote(ctx, vote); err != nil {
		return nil, err
	}
	s.rateLimitService.RecordAction(ctx, userID, model.ActionCloseVote)

	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	hammer, err := s.HasGoldBadgeHammer(ctx, userID, questionID)
	if err != nil {
		log.Printf("Gold hammer check failed for user %s on question %s: %v", userID, questionID, err)
		hammer = false
	}

	count, err := s.repo.CountActiveCloseVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}

	if hammer || count >= int64(config.CloseVotesRequired) {
		if err := s.CloseQuestion(ctx, questionID, reasonKey, details, &userID, false); err != nil {
			return nil, err
		}
		return &CloseVoteResult{Closed: true, VotesCast: count, VotesNeeded: config.CloseVotesRequired}, nil
	}

	return &CloseVoteResult{Closed: false, VotesCast: count, VotesNeeded: config.CloseVotesRequired}, nil
}

// CastReopenVote mirrors close voting for closed questions. A reopen resets
// both vote pools so the next closure episode starts from zero.
func (s *closureService) CastReopenVote(ctx context.Context, questionID, userID uuid.UUID) (*CloseVoteResult, error) {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !question.IsClosed {
		return nil, apperror.ErrQuestionNotClosed
	}

	existing, err := s.repo.FindActiveReopenVote(ctx, questionID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyVoted
	}

	vote := &model.QuestionReopenVote{
		QuestionID: questionID,
		UserID:     userID,
	}
	if err := s.repo.CreateReopenVote(ctx, vote); err != nil {
		return nil, err
	}

	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	hammer, err := s.HasGoldBadgeHammer(ctx, userID, questionID)
	if err != nil {
		log.Printf("Gold hammer check failed for user %s on question %s: %v", userID, questionID, err)
		hammer = false
	}

	count, err := s.repo.CountActiveReopenVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}

	if hammer || count >= int64(config.ReopenVotesRequired) {
		if err := s.ReopenQuestion(ctx, questionID); err != nil {
			return nil, err
		}
		return &CloseVoteResult{Closed: false, VotesCast: count, VotesNeeded: config.ReopenVotesRequired}, nil
	}

	return &CloseVoteResult{Closed: true, VotesCast: count, VotesNeeded: config.ReopenVotesRequired}, nil
}

// Status reports the closure state of a question together with the pending
// vote pool that applies to it (close votes while open, reopen votes once
// closed).
func (s *closureService) Status(ctx context.Context, questionID uuid.UUID) (*ClosureStatus, error) {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	closeVotes, err := s.repo.CountActiveCloseVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}
	reopenVotes, err := s.repo.CountActiveReopenVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}

	status := &ClosureStatus{
		IsClosed:      question.IsClosed,
		ReasonKey:     question.CloseReasonKey,
		ClosedAt:      question.ClosedAt,
		CloseVotes:    closeVotes,
		ReopenVotes:   reopenVotes,
		VotesRequired: config.CloseVotesRequired,
	}
	if question.IsClosed {
		status.VotesRequired = config.ReopenVotesRequired
	}
	return status, nil
}

// CloseQuestion flips the closure state, retires the accumulated close votes,
// records a "closed" quality strike against the asker and notifies them.
// Automatic closures additionally leave an audit row.
func (s *closureService) CloseQuestion(ctx context.Context, questionID uuid.UUID, reasonKey, details string, closedBy *uuid.UUID, automatic bool) error {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}
	if question.IsClosed {
		return apperror.ErrQuestionClosed
	}

	now := time.Now()
	if err := s.questionRepo.SetClosure(ctx, questionID, reasonKey, details, closedBy, now); err != nil {
		return err
	}

	if automatic {
		entry := &model.AutoCloseLog{
			QuestionID:     questionID,
			ScoreAtClosure: question.Score,
		}
		if err := s.repo.CreateAutoCloseLog(ctx, entry); err != nil {
			log.Printf("Failed to write auto-close log for question %s: %v", questionID, err)
		}
	}

	if err := s.repo.DeactivateCloseVotes(ctx, questionID); err != nil {
		log.Printf("Failed to deactivate close votes for question %s: %v", questionID, err)
	}

	strikeReason := fmt.Sprintf("Question closed: %s", reasonKey)
	if err := s.qualityService.RecordQualityStrike(ctx, question.UserID, questionID, model.StrikeTypeClosed, strikeReason); err != nil {
		log.Printf("Failed to record closed strike for user %s: %v", question.UserID, err)
	}

	s.notifyClosure(ctx, question, "question_closed",
		fmt.Sprintf("Your question %q was closed (%s).", question.Title, reasonKey))

	return nil
}

// ReopenQuestion clears the closure state, retires reopen votes and withdraws
// the "closed" strike the closure placed on the asker.
func (s *closureService) ReopenQuestion(ctx context.Context, questionID uuid.UUID) error {
	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}
	if !question.IsClosed {
		return apperror.ErrQuestionNotClosed
	}

	if err := s.questionRepo.ClearClosure(ctx, questionID); err != nil {
		return err
	}

	if err := s.repo.DeactivateReopenVotes(ctx, questionID); err != nil {
		log.Printf("Failed to deactivate reopen votes for question %s: %v", questionID, err)
	}

	if err := s.qualityService.DeactivateClosedStrike(ctx, question.UserID, questionID); err != nil {
		log.Printf("Failed to deactivate closed strike for user %s: %v", question.UserID, err)
	}

	s.notifyClosure(ctx, question, "question_reopened",
		fmt.Sprintf("Your question %q was reopened.", question.Title))

	return nil
}

// HasGoldBadgeHammer: the feature flag is on and the user holds an active gold
// badge in at least one of the question's tags.
func (s *closureService) HasGoldBadgeHammer(ctx context.Context, userID, questionID uuid.UUID) (bool, error) {
	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	if !config.GoldBadgeHammerEnabled {
		return false, nil
	}

	tagIDs, err := s.questionRepo.TagIDsForQuestion(ctx, questionID)
	if err != nil {
		return false, err
	}
	if len(tagIDs) == 0 {
		return false, nil
	}

	return s.tagBadgeRepo.HasActiveBadgeInTags(ctx, userID, tagIDs, []string{model.TierGold})
}

// CheckAutoClose closes an open question whose score has sunk to the
// configured threshold. Called after downvotes land.
func (s *closureService) CheckAutoClose(ctx context.Context, questionID uuid.UUID) error {
	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return err
	}
	if !config.AutoCloseEnabled {
		return nil
	}

	question, err := s.questionRepo.FindQuestionByID(ctx, questionID)
	if err != nil {
		return err
	}
	if question.IsClosed || question.Score > config.AutoCloseScoreThreshold {
		return nil
	}

	return s.CloseQuestion(ctx, questionID, model.CloseReasonLowQuality,
		fmt.Sprintf("Automatically closed at score %d", question.Score), nil, true)
}

// ExpireOldCloseVotes retires close votes older than the configured aging
// window on questions that never reached the threshold. Meant for a periodic
// trigger; returns how many votes were expired.
func (s *closureService) ExpireOldCloseVotes(ctx context.Context) (int64, error) {
	config, err := s.repo.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	if config.CloseVoteAgingDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -config.CloseVoteAgingDays)
	return s.repo.ExpireCloseVotesBefore(ctx, cutoff)
}

func (s *closureService) notifyClosure(ctx context.Context, question *model.Question, notifType, message string) {
	if s.notificationService == nil {
		return
	}
	notif := &model.Notification{
		UserID:     question.UserID,
		ActorID:    question.UserID,
		EntityID:   question.ID,
		EntityType: "question",
		Type:       notifType,
		Message:    message,
	}
	if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
		log.Printf("Failed to send closure notification to user %s: %v", question.UserID, err)
	}
}
