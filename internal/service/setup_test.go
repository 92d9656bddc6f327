package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/oneceylon/oneceylon/internal/bootstrap"
	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testStack wires the full service graph over an in-memory database, the same
// way the server does over Postgres.
type testStack struct {
	db *gorm.DB

	userRepo     repository.UserRepository
	questionRepo repository.QuestionRepository
	voteRepo     repository.VoteRepository
	tagBadgeRepo repository.TagBadgeRepository
	qualityRepo  repository.QualityRepository
	closureRepo  repository.ClosureRepository

	reputation ReputationService
	badges     BadgeService
	tagBadges  TagBadgeService
	quality    QualityService
	rateLimit  RateLimitService
	closure    ClosureService
	votes      VoteService
	qa         QAService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, bootstrap.Migrate(db))

	return db
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	require.NoError(t, bootstrap.SeedAll(db))

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	reputationRepo := repository.NewReputationRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	tagBadgeRepo := repository.NewTagBadgeRepository(db)
	qualityRepo := repository.NewQualityRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)
	closureRepo := repository.NewClosureRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifications := NewNotificationService(notificationRepo, nil)
	reputation := NewReputationService(db, reputationRepo)
	badges := NewBadgeService(badgeRepo, userRepo, questionRepo, voteRepo, notifications)
	tagBadges := NewTagBadgeService(tagBadgeRepo, notifications)
	quality := NewQualityService(qualityRepo, notifications)
	rateLimit := NewRateLimitService(rateLimitRepo, userRepo)
	closure := NewClosureService(questionRepo, closureRepo, tagBadgeRepo, quality, rateLimit, notifications)
	votes := NewVoteService(db, voteRepo, userRepo, questionRepo,
		reputation, rateLimit, badges, tagBadges, quality, closure, notifications)
	qa := NewQAService(questionRepo,
		reputation, rateLimit, quality, tagBadges, notifications)

	return &testStack{
		db:           db,
		userRepo:     userRepo,
		questionRepo: questionRepo,
		voteRepo:     voteRepo,
		tagBadgeRepo: tagBadgeRepo,
		qualityRepo:  qualityRepo,
		closureRepo:  closureRepo,
		reputation:   reputation,
		badges:       badges,
		tagBadges:    tagBadges,
		quality:      quality,
		rateLimit:    rateLimit,
		closure:      closure,
		votes:        votes,
		qa:           qa,
	}
}

func (ts *testStack) createUser(t *testing.T, username string, reputation int) *model.User {
	t.Helper()

	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Reputation:   reputation,
	}
	require.NoError(t, ts.userRepo.Create(context.Background(), user))
	return user
}

func (ts *testStack) createTag(t *testing.T, name string) *model.Tag {
	t.Helper()

	tag := &model.Tag{Name: name}
	require.NoError(t, ts.db.Create(tag).Error)
	return tag
}

func (ts *testStack) createQuestion(t *testing.T, author *model.User, title string, tags ...model.Tag) *model.Question {
	t.Helper()

	question := &model.Question{
		UserID: author.ID,
		Title:  title,
		Slug:   makeSlug(title),
		Body:   "How do I configure this properly? I have tried the docs.",
		Tags:   tags,
	}
	require.NoError(t, ts.questionRepo.CreateQuestion(context.Background(), question))
	return question
}

func (ts *testStack) createAnswer(t *testing.T, author *model.User, questionID uuid.UUID) *model.Answer {
	t.Helper()

	answer := &model.Answer{
		QuestionID: questionID,
		UserID:     author.ID,
		Body:       "You need to set the flag in the config file.",
	}
	require.NoError(t, ts.questionRepo.CreateAnswer(context.Background(), answer))
	return answer
}

func (ts *testStack) reload(t *testing.T, userID uuid.UUID) *model.User {
	t.Helper()

	user, err := ts.userRepo.FindByID(context.Background(), userID)
	require.NoError(t, err)
	return user
}
