package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/redis/go-redis/v9"
)

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *model.Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// notificationService stores every notification as a row and additionally
// publishes it on the recipient's Redis channel for live websocket delivery.
// Redis is optional; without it notifications are poll-only.
type notificationService struct {
	repo        repository.NotificationRepository
	redisClient *redis.Client
}

func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
	}
}

// userChannel names the per-user pubsub channel the websocket handler
// subscribes to.
func userChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID)
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *model.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err != nil {
			log.Printf("Failed to marshal notification %s: %v", notification.ID, err)
			return nil
		}
		if err := s.redisClient.Publish(ctx, userChannel(notification.UserID), payload).Err(); err != nil {
			log.Printf("Failed to publish notification %s: %v", notification.ID, err)
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
