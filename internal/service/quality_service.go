package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
)

// BanStatus reports whether a user may ask new questions. A warning-level ban
// is informational only and never blocks.
type BanStatus struct {
	IsBanned  bool       `json:"is_banned"`
	BanLevel  string     `json:"ban_level,omitempty"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type QualityService interface {
	RecordQualityStrike(ctx context.Context, userID, questionID uuid.UUID, strikeType, reason string) error
	CheckQualityBan(ctx context.Context, userID uuid.UUID) (*BanStatus, error)
	CheckForQualityImprovement(ctx context.Context) error
	DeactivateClosedStrike(ctx context.Context, userID, questionID uuid.UUID) error
}

type qualityService struct {
	repo                repository.QualityRepository
	notificationService NotificationService
}

func NewQualityService(repo repository.QualityRepository, notificationService NotificationService) QualityService {
	return &qualityService{
		repo:                repo,
		notificationService: notificationService,
	}
}

var banLevelOrder = map[string]int{
	model.BanLevelNone:      0,
	model.BanLevelWarning:   1,
	model.BanLevelWeek:      2,
	model.BanLevelMonth:     3,
	model.BanLevelPermanent: 4,
}

// escalate maps an active strike sum to the highest threshold met. It is the
// only transition used on the strike-recording path and never lowers a level.
func escalate(sum float64, cfg *model.QualityBanConfig) string {
	switch {
	case sum >= cfg.PermanentThreshold:
		return model.BanLevelPermanent
	case sum >= cfg.MonthThreshold:
		return model.BanLevelMonth
	case sum >= cfg.WeekThreshold:
		return model.BanLevelWeek
	case sum >= cfg.WarningThreshold:
		return model.BanLevelWarning
	default:
		return model.BanLevelNone
	}
}

// deescalate is the same threshold mapping, but it is only ever invoked from
// the improvement-detection path. Keeping the two transitions separate is what
// preserves the "only improves via demonstrated remediation" policy.
func deescalate(sum float64, cfg *model.QualityBanConfig) string {
	return escalate(sum, cfg)
}

func strikeWeight(strikeType string, cfg *model.QualityBanConfig) float64 {
	switch strikeType {
	case model.StrikeTypeDownvote:
		return cfg.DownvoteStrikeValue
	case model.StrikeTypeClosed:
		return cfg.ClosedStrikeValue
	case model.StrikeTypeDeleted:
		return cfg.DeletedStrikeValue
	default:
		return 0
	}
}

// RecordQualityStrike upserts the (user, question, type) strike — re-recording
// updates and reactivates the existing row instead of duplicating — then
// re-evaluates the user's ban.
func (s *qualityService) RecordQualityStrike(ctx context.Context, userID, questionID uuid.UUID, strikeType, reason string) error {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return err
	}

	weight := strikeWeight(strikeType, cfg)
	if weight == 0 {
		return fmt.Errorf("unknown strike type: %s", strikeType)
	}

	existing, err := s.repo.FindStrike(ctx, userID, questionID, strikeType)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.StrikeValue = weight
		existing.Reason = reason
		existing.IsActive = true
		existing.RemovedAt = nil
		if err := s.repo.UpdateStrike(ctx, existing); err != nil {
			return err
		}
	} else {
		strike := &model.QualityStrike{
			UserID:      userID,
			QuestionID:  questionID,
			StrikeType:  strikeType,
			StrikeValue: weight,
			Reason:      reason,
			IsActive:    true,
		}
		if err := s.repo.CreateStrike(ctx, strike); err != nil {
			return err
		}
	}

	return s.evaluateAndApplyBan(ctx, userID, cfg)
}

// evaluateAndApplyBan only escalates. If an active ban exists it is upgraded
// when the new level is strictly more severe; it is never downgraded here.
func (s *qualityService) evaluateAndApplyBan(ctx context.Context, userID uuid.UUID, cfg *model.QualityBanConfig) error {
	activeSum, err := s.repo.SumActiveStrikes(ctx, userID)
	if err != nil {
		return err
	}

	level := escalate(activeSum, cfg)
	if level == model.BanLevelNone {
		return nil
	}

	totalSum, err := s.repo.SumAllStrikes(ctx, userID)
	if err != nil {
		return err
	}

	ban, err := s.repo.GetActiveBan(ctx, userID, model.BanTypeQuestion)
	if err != nil {
		return err
	}

	if ban == nil {
		newBan := &model.QualityBan{
			UserID:        userID,
			BanType:       model.BanTypeQuestion,
			BanLevel:      level,
			TotalStrikes:  totalSum,
			ActiveStrikes: activeSum,
			IsActive:      true,
			ExpiresAt:     banExpiry(level, time.Now()),
			BanReason:     fmt.Sprintf("Accumulated %.1f quality strikes", activeSum),
		}
		if err := s.repo.CreateBan(ctx, newBan); err != nil {
			return err
		}
		s.notifyBan(ctx, userID, newBan)
		return nil
	}

	if banLevelOrder[level] <= banLevelOrder[ban.BanLevel] {
		return nil
	}

	ban.BanLevel = level
	ban.TotalStrikes = totalSum
	ban.ActiveStrikes = activeSum
	ban.ExpiresAt = banExpiry(level, time.Now())
	ban.BanReason = fmt.Sprintf("Accumulated %.1f quality strikes", activeSum)
	if err := s.repo.UpdateBan(ctx, ban); err != nil {
		return err
	}
	s.notifyBan(ctx, userID, ban)
	return nil
}

// banExpiry: week and month bans get a deadline; warning and permanent do not.
func banExpiry(level string, from time.Time) *time.Time {
	var expires time.Time
	switch level {
	case model.BanLevelWeek:
		expires = from.AddDate(0, 0, 7)
	case model.BanLevelMonth:
		expires = from.AddDate(0, 0, 30)
	default:
		return nil
	}
	return &expires
}

// CheckQualityBan returns whether the user is blocked from asking questions.
func (s *qualityService) CheckQualityBan(ctx context.Context, userID uuid.UUID) (*BanStatus, error) {
	ban, err := s.repo.GetActiveBan(ctx, userID, model.BanTypeQuestion)
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return &BanStatus{IsBanned: false}, nil
	}

	now := time.Now()
	if ban.ExpiresAt != nil && now.After(*ban.ExpiresAt) {
		ban.IsActive = false
		ban.LiftedAt = &now
		reason := "Ban expired"
		ban.LiftReason = &reason
		if err := s.repo.UpdateBan(ctx, ban); err != nil {
			log.Printf("Failed to lift expired ban for user %s: %v", userID, err)
		}
		return &BanStatus{IsBanned: false}, nil
	}

	switch ban.BanLevel {
	case model.BanLevelWarning:
		return &BanStatus{
			IsBanned: false,
			BanLevel: ban.BanLevel,
			Message:  "Your recent questions have been poorly received. Further quality issues will restrict your ability to ask.",
		}, nil
	case model.BanLevelWeek, model.BanLevelMonth:
		return &BanStatus{
			IsBanned:  true,
			BanLevel:  ban.BanLevel,
			ExpiresAt: ban.ExpiresAt,
			Message:   fmt.Sprintf("You are banned from asking questions until %s. Improve your existing questions to lift the ban sooner.", ban.ExpiresAt.Format(time.RFC1123)),
		}, nil
	case model.BanLevelPermanent:
		return &BanStatus{
			IsBanned: true,
			BanLevel: ban.BanLevel,
			Message:  "You are permanently banned from asking questions. Improve your existing questions to appeal.",
		}, nil
	default:
		return &BanStatus{IsBanned: false}, nil
	}
}

// CheckForQualityImprovement is the only de-escalation path. Strikes on
// questions that were edited after the strike and now meet the quality minimum
// are deactivated (rows kept for audit), then each affected user's ban is
// lifted or downgraded against the recomputed sum.
func (s *qualityService) CheckForQualityImprovement(ctx context.Context) error {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return err
	}

	strikes, err := s.repo.ListImprovableStrikes(ctx, cfg.ImprovementMinScore)
	if err != nil {
		return err
	}
	if len(strikes) == 0 {
		return nil
	}

	now := time.Now()
	affected := make(map[uuid.UUID]bool)
	for _, strike := range strikes {
		if err := s.repo.DeactivateStrike(ctx, strike.ID, now); err != nil {
			log.Printf("Improvement check: failed to deactivate strike %s: %v", strike.ID, err)
			continue
		}
		affected[strike.UserID] = true
	}

	for userID := range affected {
		if err := s.reevaluateAfterImprovement(ctx, userID, cfg); err != nil {
			log.Printf("Improvement check: failed to re-evaluate ban for user %s: %v", userID, err)
		}
	}

	return nil
}

func (s *qualityService) reevaluateAfterImprovement(ctx context.Context, userID uuid.UUID, cfg *model.QualityBanConfig) error {
	ban, err := s.repo.GetActiveBan(ctx, userID, model.BanTypeQuestion)
	if err != nil || ban == nil {
		return err
	}

	activeSum, err := s.repo.SumActiveStrikes(ctx, userID)
	if err != nil {
		return err
	}

	newLevel := deescalate(activeSum, cfg)
	now := time.Now()

	if newLevel == model.BanLevelNone {
		ban.IsActive = false
		ban.LiftedAt = &now
		reason := "Demonstrated quality improvement"
		ban.LiftReason = &reason
		ban.ActiveStrikes = activeSum
		if err := s.repo.UpdateBan(ctx, ban); err != nil {
			return err
		}
		s.notifyLift(ctx, userID, "Your question ban has been lifted. Thank you for improving your questions!")
		return nil
	}

	if banLevelOrder[newLevel] < banLevelOrder[ban.BanLevel] {
		ban.BanLevel = newLevel
		ban.ActiveStrikes = activeSum
		ban.ExpiresAt = banExpiry(newLevel, now)
		if err := s.repo.UpdateBan(ctx, ban); err != nil {
			return err
		}
		s.notifyLift(ctx, userID, "Your question ban has been reduced thanks to your improved questions.")
	}

	return nil
}

// DeactivateClosedStrike is the antidote to the strike recorded at closure
// time; the closure engine calls it when a question is reopened.
func (s *qualityService) DeactivateClosedStrike(ctx context.Context, userID, questionID uuid.UUID) error {
	return s.repo.DeactivateStrikeByType(ctx, userID, questionID, model.StrikeTypeClosed, time.Now())
}

func (s *qualityService) notifyBan(ctx context.Context, userID uuid.UUID, ban *model.QualityBan) {
	if s.notificationService == nil {
		return
	}
	message := "You received a quality warning on your questions."
	if ban.BanLevel != model.BanLevelWarning {
		message = fmt.Sprintf("You have been banned from asking questions (%s).", ban.BanLevel)
	}
	notif := &model.Notification{
		UserID:     userID,
		ActorID:    userID,
		EntityID:   ban.ID,
		EntityType: "quality_ban",
		Type:       "quality_ban",
		Message:    message,
	}
	if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
		log.Printf("Failed to send ban notification to user %s: %v", userID, err)
	}
}

func (s *qualityService) notifyLift(ctx context.Context, userID uuid.UUID, message string) {
	if s.notificationService == nil {
		return
	}
	notif := &model.Notification{
		UserID:     userID,
		ActorID:    userID,
		EntityID:   userID,
		EntityType: "quality_ban",
		Type:       "quality_ban",
		Message:    message,
	}
	if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
		log.Printf("Failed to send ban lift notification to user %s: %v", userID, err)
	}
}
