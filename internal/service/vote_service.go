package service

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"gorm.io/gorm"
)

// Minimum reputation required before a user may cast downvotes.
const DownvoteMinReputation = 125

// VoteResult describes the vote's state after the request was applied.
type VoteResult struct {
	VoteType   string `json:"vote_type,omitempty"` // empty when the vote was removed
	Score      int    `json:"score"`
	Registered bool   `json:"registered"` // false = toggle removed an existing vote
}

type VoteService interface {
	CastVote(ctx context.Context, voterID uuid.UUID, votableType string, votableID uuid.UUID, voteType string) (*VoteResult, error)
}

type voteService struct {
	db                  *gorm.DB
	voteRepo            repository.VoteRepository
	userRepo            repository.UserRepository
	questionRepo        repository.QuestionRepository
	reputationService   ReputationService
	rateLimitService    RateLimitService
	badgeService        BadgeService
	tagBadgeService     TagBadgeService
	qualityService      QualityService
	closureService      ClosureService
	notificationService NotificationService
}

func NewVoteService(
	db *gorm.DB,
	voteRepo repository.VoteRepository,
	userRepo repository.UserRepository,
	questionRepo repository.QuestionRepository,
	reputationService ReputationService,
	rateLimitService RateLimitService,
	badgeService BadgeService,
	tagBadgeService TagBadgeService,
	qualityService QualityService,
	closureService ClosureService,
	notificationService NotificationService,
) VoteService {
	return &voteService{
		db:                  db,
		voteRepo:            voteRepo,
		userRepo:            userRepo,
		questionRepo:        questionRepo,
		reputationService:   reputationService,
		rateLimitService:    rateLimitService,
		badgeService:        badgeService,
		tagBadgeService:     tagBadgeService,
		qualityService:      qualityService,
		closureService:      closureService,
		notificationService: notificationService,
	}
}

// votable carries the resolved target of a vote regardless of its type.
type votable struct {
	ownerID    uuid.UUID
	body       string
	score      int
	question   *model.Question // set for question votes
	questionID uuid.UUID       // parent question for answer votes
}

func (s *voteService) resolveVotable(ctx context.Context, votableType string, votableID uuid.UUID) (*votable, error) {
	switch votableType {
	case model.VotableQuestion:
		question, err := s.questionRepo.FindQuestionByID(ctx, votableID)
		if err != nil {
			return nil, err
		}
		return &votable{
			ownerID:    question.UserID,
			body:       question.Body,
			score:      question.Score,
			question:   question,
			questionID: question.ID,
		}, nil
	case model.VotableAnswer:
		answer, err := s.questionRepo.FindAnswerByID(ctx, votableID)
		if err != nil {
			return nil, err
		}
		return &votable{
			ownerID:    answer.UserID,
			body:       answer.Body,
			score:      answer.Score,
			questionID: answer.QuestionID,
		}, nil
	default:
		return nil, apperror.New(0, fmt.Sprintf("invalid votable type: %s", votableType), apperror.ErrInvalidInput)
	}
}

func repDeltaFor(votableType, voteType string) int {
	if voteType == model.VoteTypeDown {
		return RepDownvote
	}
	if votableType == model.VotableAnswer {
		return RepAnswerUpvote
	}
	return RepQuestionUpvote
}

// CastVote applies an up or down vote with toggle semantics: a repeat of the
// same vote removes it, the opposite type switches it. Score, reputation
// ledger and question quality metrics all move inside one transaction.
func (s *voteService) CastVote(ctx context.Context, voterID uuid.UUID, votableType string, votableID uuid.UUID, voteType string) (*VoteResult, error) {
	if voteType != model.VoteTypeUp && voteType != model.VoteTypeDown {
		return nil, apperror.New(0, fmt.Sprintf("invalid vote type: %s", voteType), apperror.ErrInvalidInput)
	}

	voter, err := s.userRepo.FindByID(ctx, voterID)
	if err != nil {
		return nil, err
	}

	limit := s.rateLimitService.CheckRateLimit(ctx, voterID, model.ActionVote)
	if !limit.Allowed {
		return nil, apperror.New(http.StatusTooManyRequests, limit.Message, apperror.ErrRateLimitExceeded)
	}

	target, err := s.resolveVotable(ctx, votableType, votableID)
	if err != nil {
		return nil, err
	}

	if target.ownerID == voterID {
		return nil, apperror.ErrSelfVote
	}

	if voteType == model.VoteTypeDown && voter.Reputation < DownvoteMinReputation {
		return nil, apperror.New(http.StatusForbidden,
			fmt.Sprintf("You need at least %d reputation to downvote", DownvoteMinReputation),
			apperror.ErrInsufficientReputation)
	}

	existing, err := s.voteRepo.FindByUserAndVotable(ctx, voterID, votableType, votableID)
	if err != nil {
		return nil, err
	}

	var (
		scoreDelta int
		result     VoteResult
	)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		txVotes := repository.NewVoteRepository(tx)
		txQuestions := repository.NewQuestionRepository(tx)

		var repDelta int
		var reason string

		switch {
		case existing == nil:
			vote := &model.Vote{
				UserID:      voterID,
				VotableType: votableType,
				VotableID:   votableID,
				VoteType:    voteType,
			}
			if err := txVotes.Create(ctx, vote); err != nil {
				return err
			}
			if voteType == model.VoteTypeUp {
				scoreDelta = 1
				reason = "Received upvote"
			} else {
				scoreDelta = -1
				reason = "Received downvote"
			}
			repDelta = repDeltaFor(votableType, voteType)
			result = VoteResult{VoteType: voteType, Registered: true}

		case existing.VoteType == voteType:
			// same button pressed again: remove the vote and undo its effects
			if err := txVotes.Delete(ctx, existing); err != nil {
				return err
			}
			if voteType == model.VoteTypeUp {
				scoreDelta = -1
				reason = "Upvote removed"
			} else {
				scoreDelta = 1
				reason = "Downvote removed"
			}
			repDelta = -repDeltaFor(votableType, voteType)
			result = VoteResult{Registered: false}

		default:
			if err := txVotes.UpdateType(ctx, existing.ID, voteType); err != nil {
				return err
			}
			if voteType == model.VoteTypeUp {
				scoreDelta = 2
				reason = "Vote changed from downvote to upvote"
			} else {
				scoreDelta = -2
				reason = "Vote changed from upvote to downvote"
			}
			repDelta = repDeltaFor(votableType, voteType) - repDeltaFor(votableType, existing.VoteType)
			result = VoteResult{VoteType: voteType, Registered: true}
		}

		if votableType == model.VotableQuestion {
			if err := txQuestions.AdjustQuestionScore(ctx, votableID, scoreDelta); err != nil {
				return err
			}
		} else {
			if err := txQuestions.AdjustAnswerScore(ctx, votableID, scoreDelta); err != nil {
				return err
			}
		}

		refType := model.RefTypeVote
		if voteType == model.VoteTypeDown {
			refType = model.RefTypeDownvote
		}
		if err := s.reputationService.Apply(ctx, tx, target.ownerID, repDelta, reason, refType, &votableID); err != nil {
			return err
		}

		if votableType == model.VotableQuestion {
			up, down := voteDeltas(existing, voteType, result.Registered)
			if err := repository.NewQualityRepository(tx).AdjustMetrics(ctx, votableID, up, down); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Score = target.score + scoreDelta
	s.afterVote(ctx, voter, target, votableType, votableID, voteType, &result, existing)

	return &result, nil
}

// voteDeltas translates a vote mutation into the up/down counter adjustments
// for question quality metrics.
func voteDeltas(existing *model.Vote, voteType string, registered bool) (up, down int) {
	switch {
	case !registered:
		// removal reverses the previous vote
		if voteType == model.VoteTypeUp {
			return -1, 0
		}
		return 0, -1
	case existing == nil:
		if voteType == model.VoteTypeUp {
			return 1, 0
		}
		return 0, 1
	default:
		// switch: one side up, the other down
		if voteType == model.VoteTypeUp {
			return 1, -1
		}
		return -1, 1
	}
}

// afterVote runs the best-effort side effects once the transaction committed:
// strike and auto-close checks, badge progress, tag expertise and notification.
// Failures here are logged, never surfaced to the voter.
func (s *voteService) afterVote(ctx context.Context, voter *model.User, target *votable, votableType string, votableID uuid.UUID, voteType string, result *VoteResult, previous *model.Vote) {
	s.rateLimitService.RecordAction(ctx, voter.ID, model.ActionVote)

	activeDownvote := result.Registered && voteType == model.VoteTypeDown
	newUpvote := result.Registered && voteType == model.VoteTypeUp

	if activeDownvote && votableType == model.VotableQuestion {
		if err := s.qualityService.RecordQualityStrike(ctx, target.ownerID, votableID, model.StrikeTypeDownvote, "Question received downvote"); err != nil {
			log.Printf("Failed to record downvote strike for user %s: %v", target.ownerID, err)
		}
		if err := s.closureService.CheckAutoClose(ctx, votableID); err != nil {
			log.Printf("Auto-close check failed for question %s: %v", votableID, err)
		}
	}

	if newUpvote {
		s.badgeService.TrackUpvoteCast(ctx, voter.ID)

		if votableType == model.VotableQuestion {
			// re-read so the badge check sees the post-vote score
			if question, err := s.questionRepo.FindQuestionByID(ctx, votableID); err == nil {
				s.badgeService.CheckFirstLanding(ctx, question)
			}
		}
		s.badgeService.CheckSnapshot(ctx, target.ownerID, target.body, result.Score)

		// answer upvotes feed tag expertise; question upvotes do not
		if votableType == model.VotableAnswer {
			s.creditTagExpertise(ctx, target, votableID)
		}

		s.badgeService.CheckPearlDiver(ctx, target.ownerID)
	}

	s.notifyOwner(ctx, voter, target, votableType, votableID, voteType, result, previous)
}

func (s *voteService) creditTagExpertise(ctx context.Context, target *votable, answerID uuid.UUID) {
	tagIDs, err := s.questionRepo.TagIDsForQuestion(ctx, target.questionID)
	if err != nil {
		log.Printf("Failed to resolve tags for question %s: %v", target.questionID, err)
		return
	}

	for _, tagID := range tagIDs {
		if err := s.tagBadgeService.UpdateUserTagScore(ctx, target.ownerID, tagID, RepAnswerUpvote, false); err != nil {
			log.Printf("Failed to update tag score for user %s tag %s: %v", target.ownerID, tagID, err)
			continue
		}
		if err := s.tagBadgeService.RecordTagActivity(ctx, target.ownerID, tagID, model.TagActivityUpvote, RepAnswerUpvote, &target.questionID, &answerID); err != nil {
			log.Printf("Failed to record tag activity for user %s tag %s: %v", target.ownerID, tagID, err)
		}
	}
}

func (s *voteService) notifyOwner(ctx context.Context, voter *model.User, target *votable, votableType string, votableID uuid.UUID, voteType string, result *VoteResult, previous *model.Vote) {
	if s.notificationService == nil || !result.Registered || previous != nil {
		return
	}

	verb := "upvoted"
	if voteType == model.VoteTypeDown {
		verb = "downvoted"
	}
	notif := &model.Notification{
		UserID:     target.ownerID,
		ActorID:    voter.ID,
		EntityID:   votableID,
		EntityType: votableType,
		Type:       "vote",
		Message:    fmt.Sprintf("%s %s your %s", voter.Username, verb, votableType),
	}
	if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
		log.Printf("Failed to send vote notification to user %s: %v", target.ownerID, err)
	}
}
