package service

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
)

const (
	riceAndCurryTarget = 10
	snapshotMinScore   = 5
	pearlDiverMinRep   = 1000

	firstLandingGraceHours = 24
)

// Markdown image syntax or an HTML img tag in the content body.
var embeddedImagePattern = regexp.MustCompile(`(?i)(!\[[^\]]*\]\([^)]+\)|<img[^>]+>)`)

type AwardResult struct {
	Awarded bool      `json:"awarded"`
	BadgeID uuid.UUID `json:"badge_id,omitempty"`
	Message string    `json:"message,omitempty"`
}

type BadgeService interface {
	Award(ctx context.Context, userID uuid.UUID, badgeName string) (*AwardResult, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error)

	CheckAyubowan(ctx context.Context, userID uuid.UUID)
	CheckFirstLanding(ctx context.Context, question *model.Question)
	TrackUpvoteCast(ctx context.Context, voterID uuid.UUID)
	CheckSnapshot(ctx context.Context, authorID uuid.UUID, body string, score int)
	CheckPearlDiver(ctx context.Context, userID uuid.UUID)
}

type badgeService struct {
	repo                repository.BadgeRepository
	userRepo            repository.UserRepository
	questionRepo        repository.QuestionRepository
	voteRepo            repository.VoteRepository
	notificationService NotificationService
}

func NewBadgeService(repo repository.BadgeRepository, userRepo repository.UserRepository, questionRepo repository.QuestionRepository, voteRepo repository.VoteRepository, notificationService NotificationService) BadgeService {
	return &badgeService{
		repo:                repo,
		userRepo:            userRepo,
		questionRepo:        questionRepo,
		voteRepo:            voteRepo,
		notificationService: notificationService,
	}
}

// Award is idempotent: a user who already holds the badge gets awarded=false,
// never an error. A badge name with no definition row is also a no-op.
func (s *badgeService) Award(ctx context.Context, userID uuid.UUID, badgeName string) (*AwardResult, error) {
	badge, err := s.repo.FindByName(ctx, badgeName)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &AwardResult{Awarded: false}, nil
		}
		return nil, err
	}

	has, err := s.repo.HasUserBadge(ctx, userID, badge.ID)
	if err != nil {
		return nil, err
	}
	if has {
		return &AwardResult{Awarded: false, BadgeID: badge.ID}, nil
	}

	userBadge := &model.UserBadge{
		UserID:  userID,
		BadgeID: badge.ID,
	}
	if err := s.repo.CreateUserBadge(ctx, userBadge); err != nil {
		return nil, err
	}

	message := "You earned the \"" + badge.Name + "\" badge!"
	if s.notificationService != nil {
		notif := &model.Notification{
			UserID:     userID,
			ActorID:    userID,
			EntityID:   badge.ID,
			EntityType: "badge",
			Type:       "badge",
			Message:    message,
		}
		if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
			log.Printf("Failed to send badge notification to user %s: %v", userID, err)
		}
	}

	return &AwardResult{Awarded: true, BadgeID: badge.ID, Message: message}, nil
}

func (s *badgeService) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]model.UserBadge, error) {
	return s.repo.ListUserBadges(ctx, userID)
}

// CheckAyubowan: email verified and a filled-in bio or home country.
// Evaluated after profile updates and email verification.
func (s *badgeService) CheckAyubowan(ctx context.Context, userID uuid.UUID) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return
	}
	if !user.EmailVerified {
		return
	}
	hasBio := user.Bio != nil && *user.Bio != ""
	hasCountry := user.HomeCountry != nil && *user.HomeCountry != ""
	if !hasBio && !hasCountry {
		return
	}

	if _, err := s.Award(ctx, userID, model.BadgeAyubowan); err != nil {
		log.Printf("Ayubowan badge check failed for user %s: %v", userID, err)
	}
}

// CheckFirstLanding runs when a question receives an upvote. The question must
// be the asker's first ever, and either already at score >= 1 or a day old —
// a first question earns the badge by getting upvoted or by surviving 24h.
func (s *badgeService) CheckFirstLanding(ctx context.Context, question *model.Question) {
	firstID, err := s.questionRepo.FirstQuestionID(ctx, question.UserID)
	if err != nil || firstID == uuid.Nil || firstID != question.ID {
		return
	}

	aged := time.Since(question.CreatedAt) >= firstLandingGraceHours*time.Hour
	if question.Score < 1 && !aged {
		return
	}

	if _, err := s.Award(ctx, question.UserID, model.BadgeFirstLanding); err != nil {
		log.Printf("First Landing badge check failed for user %s: %v", question.UserID, err)
	}
}

// TrackUpvoteCast advances Rice & Curry progress for the voter. The award
// decision uses a fresh count of stored upvotes, not the incremented counter.
func (s *badgeService) TrackUpvoteCast(ctx context.Context, voterID uuid.UUID) {
	badge, err := s.repo.FindByName(ctx, model.BadgeRiceAndCurry)
	if err != nil {
		return
	}

	if err := s.repo.UpsertProgress(ctx, voterID, badge.ID, 1, riceAndCurryTarget); err != nil {
		log.Printf("Failed to upsert badge progress for user %s: %v", voterID, err)
		return
	}

	count, err := s.voteRepo.CountUpvotesCast(ctx, voterID)
	if err != nil {
		log.Printf("Failed to count upvotes cast by user %s: %v", voterID, err)
		return
	}
	if count < riceAndCurryTarget {
		return
	}

	if _, err := s.Award(ctx, voterID, model.BadgeRiceAndCurry); err != nil {
		log.Printf("Rice & Curry badge check failed for user %s: %v", voterID, err)
	}
}

// CheckSnapshot runs after a vote moves a question or answer score to >= 5.
// The body belongs to the author being awarded, never the voter.
func (s *badgeService) CheckSnapshot(ctx context.Context, authorID uuid.UUID, body string, score int) {
	if score < snapshotMinScore {
		return
	}
	if !embeddedImagePattern.MatchString(body) {
		return
	}

	if _, err := s.Award(ctx, authorID, model.BadgeSnapshot); err != nil {
		log.Printf("Snapshot badge check failed for user %s: %v", authorID, err)
	}
}

// CheckPearlDiver: reaching 1000 reputation. Evaluated after reputation gains.
func (s *badgeService) CheckPearlDiver(ctx context.Context, userID uuid.UUID) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return
	}
	if user.Reputation < pearlDiverMinRep {
		return
	}

	if _, err := s.Award(ctx, userID, model.BadgePearlDiver); err != nil {
		log.Printf("Pearl Diver badge check failed for user %s: %v", userID, err)
	}
}
