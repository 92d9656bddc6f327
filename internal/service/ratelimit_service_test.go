package service

import (
	"context"
	"testing"
	"time"

	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rateLimitStack avoids the seeded defaults so each test controls its configs.
func rateLimitStack(t *testing.T) (*testStack, repository.RateLimitRepository) {
	t.Helper()

	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)

	ts := &testStack{
		db:        db,
		userRepo:  userRepo,
		rateLimit: NewRateLimitService(rateLimitRepo, userRepo),
	}
	return ts, rateLimitRepo
}

func TestCheckRateLimit_DeniesSixthVoteInWindow(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        5,
		TimeWindowMinutes: 15,
	}).Error)

	user := ts.createUser(t, "eager", 50)

	for i := 0; i < 5; i++ {
		result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
		require.True(t, result.Allowed, "vote %d should pass", i+1)
		ts.rateLimit.RecordAction(ctx, user.ID, model.ActionVote)
	}

	result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
	assert.False(t, result.Allowed)
	assert.Equal(t, 5, result.Limit)
	assert.Zero(t, result.Remaining)
	require.NotNil(t, result.ResetAt)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *result.ResetAt, time.Minute)
	assert.NotEmpty(t, result.Message)
}

func TestCheckRateLimit_AllWindowsMustPass(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	// generous short window, tight daily cap
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        100,
		TimeWindowMinutes: 15,
	}).Error)
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        3,
		TimeWindowMinutes: 24 * 60,
	}).Error)

	user := ts.createUser(t, "daily", 50)

	for i := 0; i < 3; i++ {
		result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
		require.True(t, result.Allowed)
		ts.rateLimit.RecordAction(ctx, user.ID, model.ActionVote)
	}

	result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3, result.Limit, "the daily window is the one that trips")
}

func TestCheckRateLimit_ReputationBrackets(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	ceiling := 200
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionQuestion,
		MinReputation:     0,
		MaxReputation:     &ceiling,
		MaxActions:        1,
		TimeWindowMinutes: 60,
	}).Error)

	novice := ts.createUser(t, "novice", 50)
	veteran := ts.createUser(t, "veteran", 500)

	ts.rateLimit.RecordAction(ctx, novice.ID, model.ActionQuestion)
	result := ts.rateLimit.CheckRateLimit(ctx, novice.ID, model.ActionQuestion)
	assert.False(t, result.Allowed)

	// the veteran is outside the bracket, so no config applies
	ts.rateLimit.RecordAction(ctx, veteran.ID, model.ActionQuestion)
	result = ts.rateLimit.CheckRateLimit(ctx, veteran.ID, model.ActionQuestion)
	assert.True(t, result.Allowed)
}

func TestCheckRateLimit_UnconfiguredActionIsUnrestricted(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "free", 1)

	for i := 0; i < 50; i++ {
		ts.rateLimit.RecordAction(ctx, user.ID, "unconfigured_action")
	}

	result := ts.rateLimit.CheckRateLimit(ctx, user.ID, "unconfigured_action")
	assert.True(t, result.Allowed)
}

func TestCheckRateLimit_ReportsTightestRemaining(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        5,
		TimeWindowMinutes: 15,
	}).Error)
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        40,
		TimeWindowMinutes: 24 * 60,
	}).Error)

	user := ts.createUser(t, "counting", 50)

	ts.rateLimit.RecordAction(ctx, user.ID, model.ActionVote)
	ts.rateLimit.RecordAction(ctx, user.ID, model.ActionVote)

	result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
	require.True(t, result.Allowed)
	assert.Equal(t, 5, result.Limit)
	assert.Equal(t, 3, result.Remaining)
}

func TestCheckRateLimit_FailsOpenOnStoreError(t *testing.T) {
	ts, _ := rateLimitStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "lucky", 50)

	// drop the actions table out from under the limiter
	require.NoError(t, ts.db.Migrator().DropTable(&model.RateLimitAction{}))
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        1,
		TimeWindowMinutes: 15,
	}).Error)

	result := ts.rateLimit.CheckRateLimit(ctx, user.ID, model.ActionVote)
	assert.True(t, result.Allowed)
}

func TestVoteFlow_RateLimitSurfacesAs429(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// replace the seeded vote windows with a single-action window
	require.NoError(t, ts.db.Where("action_type = ?", model.ActionVote).Delete(&model.RateLimitConfig{}).Error)
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionVote,
		MaxActions:        1,
		TimeWindowMinutes: 15,
	}).Error)

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	q1 := ts.createQuestion(t, author, "A perfectly reasonable first question")
	q2 := ts.createQuestion(t, author, "A perfectly reasonable second question")

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, q1.ID, model.VoteTypeUp)
	require.NoError(t, err)

	_, err = ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, q2.ID, model.VoteTypeUp)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Equal(t, 429, apperror.MapErrorToStatus(err))
}
