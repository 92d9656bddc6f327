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

type TagBadgeService interface {
	UpdateUserTagScore(ctx context.Context, userID, tagID uuid.UUID, pointsEarned int, isAcceptedAnswer bool) error
	RecordTagActivity(ctx context.Context, userID, tagID uuid.UUID, activityType string, pointsEarned int, questionID, answerID *uuid.UUID) error
	FreshnessSweep(ctx context.Context) error
	ReactivateInactiveBadge(ctx context.Context, userID, tagID uuid.UUID) (bool, error)
	CanRetag(ctx context.Context, userID, tagID uuid.UUID) (bool, error)
	CanHammer(ctx context.Context, userID, tagID uuid.UUID) (bool, error)
	ListUserBadgesForTag(ctx context.Context, userID, tagID uuid.UUID) ([]model.UserTagBadge, error)
}

type tagBadgeService struct {
	repo                repository.TagBadgeRepository
	notificationService NotificationService
}

func NewTagBadgeService(repo repository.TagBadgeRepository, notificationService NotificationService) TagBadgeService {
	return &tagBadgeService{
		repo:                repo,
		notificationService: notificationService,
	}
}

// UpdateUserTagScore adds points to the running (user,tag) totals and runs the
// tier check. Scores only accumulate; a reversed vote does not subtract here.
func (s *tagBadgeService) UpdateUserTagScore(ctx context.Context, userID, tagID uuid.UUID, pointsEarned int, isAcceptedAnswer bool) error {
	acceptedDelta := 0
	if isAcceptedAnswer {
		acceptedDelta = 1
	}

	if err := s.repo.UpsertScore(ctx, userID, tagID, pointsEarned, acceptedDelta); err != nil {
		return err
	}

	return s.checkAndAwardBadges(ctx, userID, tagID)
}

// checkAndAwardBadges awards the highest tier whose score and accepted-answer
// conditions are both met and which the user does not yet hold. One tier per
// update; awarding is idempotent per tier so later checks can fill gaps.
func (s *tagBadgeService) checkAndAwardBadges(ctx context.Context, userID, tagID uuid.UUID) error {
	score, err := s.repo.GetScore(ctx, userID, tagID)
	if err != nil {
		return err
	}

	configs, err := s.repo.GetTierConfigs(ctx)
	if err != nil {
		return err
	}

	// configs are ordered ascending by min_score; walk from the top
	for i := len(configs) - 1; i >= 0; i-- {
		cfg := configs[i]
		if score.TotalScore < cfg.MinScore || score.AcceptedAnswersCount < cfg.MinAcceptedAnswers {
			continue
		}

		has, err := s.repo.HasTierBadge(ctx, userID, tagID, cfg.Tier)
		if err != nil {
			return err
		}
		if has {
			return nil
		}

		return s.awardTierBadge(ctx, userID, tagID, cfg.Tier)
	}

	return nil
}

func (s *tagBadgeService) awardTierBadge(ctx context.Context, userID, tagID uuid.UUID, tier string) error {
	badge := &model.UserTagBadge{
		UserID:   userID,
		TagID:    tagID,
		Tier:     tier,
		IsActive: true,
	}
	if tier == model.TierGold {
		now := time.Now()
		badge.LastFreshnessCheck = &now
	}

	if err := s.repo.CreateBadge(ctx, badge); err != nil {
		return err
	}

	if s.notificationService != nil {
		notif := &model.Notification{
			UserID:     userID,
			ActorID:    userID,
			EntityID:   tagID,
			EntityType: "tag",
			Type:       "tag_badge",
			Message:    fmt.Sprintf("You earned a %s tag badge!", tier),
		}
		if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
			log.Printf("Failed to send tag badge notification to user %s: %v", userID, err)
		}
	}

	return nil
}

// RecordTagActivity appends to the activity log and bumps the freshness
// counter on the user's active gold badge for that tag, if any.
func (s *tagBadgeService) RecordTagActivity(ctx context.Context, userID, tagID uuid.UUID, activityType string, pointsEarned int, questionID, answerID *uuid.UUID) error {
	activity := &model.TagBadgeActivity{
		UserID:       userID,
		TagID:        tagID,
		ActivityType: activityType,
		PointsEarned: pointsEarned,
		QuestionID:   questionID,
		AnswerID:     answerID,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return err
	}

	return s.repo.IncrementFreshnessScore(ctx, userID, tagID, pointsEarned)
}

// FreshnessSweep deactivates active gold badges whose freshness window has
// lapsed without enough activity, and resets the window for the rest.
// Designed for a periodic trigger; runs to completion.
func (s *tagBadgeService) FreshnessSweep(ctx context.Context) error {
	goldCfg, err := s.goldConfig(ctx)
	if err != nil {
		return err
	}
	if goldCfg == nil || goldCfg.FreshnessDays <= 0 {
		return nil
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, -goldCfg.FreshnessDays)

	badges, err := s.repo.ListGoldBadgesDueForCheck(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, badge := range badges {
		windowStart := badge.EarnedAt
		if badge.LastFreshnessCheck != nil {
			windowStart = *badge.LastFreshnessCheck
		}

		sum, err := s.repo.SumActivitySince(ctx, badge.UserID, badge.TagID, windowStart)
		if err != nil {
			log.Printf("Freshness sweep: failed to sum activity for badge %s: %v", badge.ID, err)
			continue
		}

		if sum < goldCfg.FreshnessPoints {
			if err := s.repo.MarkBadgeInactive(ctx, badge.ID, now); err != nil {
				log.Printf("Freshness sweep: failed to deactivate badge %s: %v", badge.ID, err)
				continue
			}
			s.notifyFreshness(ctx, badge.UserID, badge.TagID,
				"Your gold tag badge went inactive. Keep contributing in the tag to reactivate it.")
			continue
		}

		if err := s.repo.ResetFreshnessWindow(ctx, badge.ID, now); err != nil {
			log.Printf("Freshness sweep: failed to reset window for badge %s: %v", badge.ID, err)
		}
	}

	return nil
}

// ReactivateInactiveBadge re-checks an inactive gold badge against activity
// accrued since it went inactive. Returns whether the badge was reactivated.
func (s *tagBadgeService) ReactivateInactiveBadge(ctx context.Context, userID, tagID uuid.UUID) (bool, error) {
	badge, err := s.repo.GetBadge(ctx, userID, tagID, model.TierGold)
	if err != nil {
		return false, nil
	}
	if badge.IsActive || badge.MarkedInactiveAt == nil {
		return false, nil
	}

	goldCfg, err := s.goldConfig(ctx)
	if err != nil {
		return false, err
	}
	if goldCfg == nil {
		return false, nil
	}

	sum, err := s.repo.SumActivitySince(ctx, userID, tagID, *badge.MarkedInactiveAt)
	if err != nil {
		return false, err
	}
	if sum < goldCfg.FreshnessPoints {
		return false, nil
	}

	if err := s.repo.ReactivateBadge(ctx, badge.ID, time.Now()); err != nil {
		return false, err
	}
	s.notifyFreshness(ctx, userID, tagID, "Your gold tag badge is active again. Welcome back!")
	return true, nil
}

// CanRetag: an active silver or gold badge in the tag.
func (s *tagBadgeService) CanRetag(ctx context.Context, userID, tagID uuid.UUID) (bool, error) {
	return s.repo.HasActiveBadgeInTags(ctx, userID, []uuid.UUID{tagID}, []string{model.TierSilver, model.TierGold})
}

// CanHammer: an active gold badge in the tag.
func (s *tagBadgeService) CanHammer(ctx context.Context, userID, tagID uuid.UUID) (bool, error) {
	return s.repo.HasActiveBadgeInTags(ctx, userID, []uuid.UUID{tagID}, []string{model.TierGold})
}

func (s *tagBadgeService) ListUserBadgesForTag(ctx context.Context, userID, tagID uuid.UUID) ([]model.UserTagBadge, error) {
	return s.repo.ListUserBadgesForTag(ctx, userID, tagID)
}

func (s *tagBadgeService) goldConfig(ctx context.Context) (*model.TagBadgeTierConfig, error) {
	configs, err := s.repo.GetTierConfigs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range configs {
		if configs[i].Tier == model.TierGold {
			return &configs[i], nil
		}
	}
	return nil, nil
}

func (s *tagBadgeService) notifyFreshness(ctx context.Context, userID, tagID uuid.UUID, message string) {
	if s.notificationService == nil {
		return
	}
	notif := &model.Notification{
		UserID:     userID,
		ActorID:    userID,
		EntityID:   tagID,
		EntityType: "tag",
		Type:       "tag_badge",
		Message:    message,
	}
	if err := s.notificationService.CreateNotification(ctx, notif); err != nil {
		log.Printf("Failed to send freshness notification to user %s: %v", userID, err)
	}
}
