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

const rateLimitRetention = 30 * 24 * time.Hour

// RateLimitResult carries everything the UI needs to show a countdown.
type RateLimitResult struct {
	Allowed   bool       `json:"allowed"`
	Limit     int        `json:"limit,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type RateLimitService interface {
	CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string) *RateLimitResult
	RecordAction(ctx context.Context, userID uuid.UUID, actionType string)
}

type rateLimitService struct {
	repo     repository.RateLimitRepository
	userRepo repository.UserRepository
}

func NewRateLimitService(repo repository.RateLimitRepository, userRepo repository.UserRepository) RateLimitService {
	return &rateLimitService{repo: repo, userRepo: userRepo}
}

// CheckRateLimit evaluates every window configured for the user's reputation
// bracket; all of them must have capacity. Store errors fail open — we prefer
// letting an action through over blocking users on infrastructure trouble.
func (s *rateLimitService) CheckRateLimit(ctx context.Context, userID uuid.UUID, actionType string) *RateLimitResult {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Printf("Rate limit check failed open (user lookup) for %s/%s: %v", userID, actionType, err)
		return &RateLimitResult{Allowed: true}
	}

	configs, err := s.repo.GetConfigs(ctx, actionType, user.Reputation)
	if err != nil {
		log.Printf("Rate limit check failed open (config lookup) for %s/%s: %v", userID, actionType, err)
		return &RateLimitResult{Allowed: true}
	}

	// No configuration for the action type means unrestricted.
	if len(configs) == 0 {
		return &RateLimitResult{Allowed: true}
	}

	now := time.Now()
	tightest := &RateLimitResult{Allowed: true}

	// configs arrive shortest window first; short-circuit on first violation
	for _, cfg := range configs {
		window := time.Duration(cfg.TimeWindowMinutes) * time.Minute
		since := now.Add(-window)

		count, err := s.repo.CountActionsSince(ctx, userID, actionType, since)
		if err != nil {
			log.Printf("Rate limit check failed open (count) for %s/%s: %v", userID, actionType, err)
			return &RateLimitResult{Allowed: true}
		}

		if count >= int64(cfg.MaxActions) {
			resetAt := now.Add(window)
			oldest, err := s.repo.OldestActionSince(ctx, userID, actionType, since)
			if err != nil {
				log.Printf("Rate limit check failed open (oldest) for %s/%s: %v", userID, actionType, err)
				return &RateLimitResult{Allowed: true}
			}
			if oldest != nil {
				resetAt = oldest.Add(window)
			}
			return &RateLimitResult{
				Allowed:   false,
				Limit:     cfg.MaxActions,
				Remaining: 0,
				ResetAt:   &resetAt,
				Message:   fmt.Sprintf("Rate limit exceeded: at most %d %s actions per %d minutes. Try again at %s.", cfg.MaxActions, actionType, cfg.TimeWindowMinutes, resetAt.Format(time.RFC1123)),
			}
		}

		remaining := cfg.MaxActions - int(count)
		if tightest.Limit == 0 || cfg.MaxActions < tightest.Limit {
			tightest.Limit = cfg.MaxActions
			tightest.Remaining = remaining
		}
	}

	return tightest
}

// RecordAction appends one row and opportunistically prunes the 30-day-old
// tail. Pruning is housekeeping; window checks filter by timestamp anyway.
func (s *rateLimitService) RecordAction(ctx context.Context, userID uuid.UUID, actionType string) {
	action := &model.RateLimitAction{
		UserID:     userID,
		ActionType: actionType,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateAction(ctx, action); err != nil {
		log.Printf("Failed to record rate limit action for %s/%s: %v", userID, actionType, err)
		return
	}

	if err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-rateLimitRetention)); err != nil {
		log.Printf("Failed to prune old rate limit actions: %v", err)
	}
}
