package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNotification_PersistsAndPublishes(t *testing.T) {
	ctx := context.Background()

	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, client)

	userRepo := repository.NewUserRepository(db)
	recipient := &model.User{Username: "recipient", Email: "recipient@example.com", PasswordHash: "x"}
	require.NoError(t, userRepo.Create(ctx, recipient))
	actor := &model.User{Username: "actor", Email: "actor@example.com", PasswordHash: "x"}
	require.NoError(t, userRepo.Create(ctx, actor))

	channel := fmt.Sprintf("user_notifications:%s", recipient.ID)
	sub := client.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notif := &model.Notification{
		UserID:     recipient.ID,
		ActorID:    actor.ID,
		EntityID:   recipient.ID,
		EntityType: "badge",
		Type:       "badge",
		Message:    "You earned a badge!",
	}
	require.NoError(t, svc.CreateNotification(ctx, notif))

	// stored
	stored, err := svc.GetNotifications(ctx, recipient.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "You earned a badge!", stored[0].Message)
	assert.False(t, stored[0].IsRead)

	// published
	select {
	case msg := <-sub.Channel():
		var published model.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &published))
		assert.Equal(t, notif.ID, published.ID)
		assert.Equal(t, "badge", published.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published on the user channel")
	}
}

func TestCreateNotification_WorksWithoutRedis(t *testing.T) {
	ctx := context.Background()

	db := newTestDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil)

	userRepo := repository.NewUserRepository(db)
	user := &model.User{Username: "offline", Email: "offline@example.com", PasswordHash: "x"}
	require.NoError(t, userRepo.Create(ctx, user))

	notif := &model.Notification{
		UserID:     user.ID,
		ActorID:    user.ID,
		EntityID:   user.ID,
		EntityType: "badge",
		Type:       "badge",
		Message:    "Delivered without a broker",
	}
	require.NoError(t, svc.CreateNotification(ctx, notif))

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()

	db := newTestDB(t)
	repo := repository.NewNotificationRepository(db)
	svc := NewNotificationService(repo, nil)

	userRepo := repository.NewUserRepository(db)
	user := &model.User{Username: "reader", Email: "reader@example.com", PasswordHash: "x"}
	require.NoError(t, userRepo.Create(ctx, user))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.CreateNotification(ctx, &model.Notification{
			UserID:     user.ID,
			ActorID:    user.ID,
			EntityID:   user.ID,
			EntityType: "badge",
			Type:       "badge",
			Message:    fmt.Sprintf("message %d", i),
		}))
	}

	require.NoError(t, svc.MarkAllAsRead(ctx, user.ID))

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
