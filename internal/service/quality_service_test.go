package service

import (
	"context"
	"testing"
	"time"

	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQualityStrike_EscalationLadder(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "struggling", 1)
	author := user

	// two closed strikes (2.0 each) put the sum at 4.0: warning territory
	q1 := ts.createQuestion(t, author, "First question that was badly received")
	q2 := ts.createQuestion(t, author, "Second question that was badly received")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, q1.ID, model.StrikeTypeClosed, "closed"))
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, q2.ID, model.StrikeTypeClosed, "closed"))

	status, err := ts.quality.CheckQualityBan(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBanned, "warning level is informational only")
	assert.Equal(t, model.BanLevelWarning, status.BanLevel)

	// a third closed strike pushes the sum to 6.0: week-long ban
	q3 := ts.createQuestion(t, author, "Third question that was badly received")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, q3.ID, model.StrikeTypeClosed, "closed"))

	status, err = ts.quality.CheckQualityBan(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.IsBanned)
	assert.Equal(t, model.BanLevelWeek, status.BanLevel)
	require.NotNil(t, status.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *status.ExpiresAt, time.Minute)
}

func TestRecordQualityStrike_Idempotent(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, user, "A question downvoted more than once")

	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, question.ID, model.StrikeTypeDownvote, "downvote"))
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, question.ID, model.StrikeTypeDownvote, "downvote"))

	sum, err := ts.qualityRepo.SumActiveStrikes(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, sum, "repeat downvotes on one question carry one strike")
}

func TestBanNeverDowngradesOnNewStrikes(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "author", 1)

	questions := make([]*model.Question, 3)
	for i := range questions {
		questions[i] = ts.createQuestion(t, user, "Another poorly received question "+string(rune('a'+i)))
		require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, questions[i].ID, model.StrikeTypeClosed, "closed"))
	}

	ban, err := ts.qualityRepo.GetActiveBan(ctx, user.ID, model.BanTypeQuestion)
	require.NoError(t, err)
	require.NotNil(t, ban)
	require.Equal(t, model.BanLevelWeek, ban.BanLevel)

	// a small additional strike keeps the sum in week territory; the ban must
	// not move down even though a fresh evaluation would land on the same level
	extra := ts.createQuestion(t, user, "Yet another question with issues")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, extra.ID, model.StrikeTypeDownvote, "downvote"))

	ban, err = ts.qualityRepo.GetActiveBan(ctx, user.ID, model.BanTypeQuestion)
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.Equal(t, model.BanLevelWeek, ban.BanLevel)
}

func TestCheckForQualityImprovement_LiftsBan(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "reformed", 1)

	q1 := ts.createQuestion(t, user, "First question that was closed for quality")
	q2 := ts.createQuestion(t, user, "Second question that was closed for quality")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, q1.ID, model.StrikeTypeClosed, "closed"))
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, q2.ID, model.StrikeTypeClosed, "closed"))

	ban, err := ts.qualityRepo.GetActiveBan(ctx, user.ID, model.BanTypeQuestion)
	require.NoError(t, err)
	require.NotNil(t, ban)

	// both questions were edited after the strikes and now score positively
	editedAt := time.Now().Add(time.Minute)
	require.NoError(t, ts.questionRepo.UpdateQuestionBody(ctx, q1.ID, "A much improved body with actual detail.", editedAt))
	require.NoError(t, ts.questionRepo.UpdateQuestionBody(ctx, q2.ID, "Also rewritten with reproduction steps.", editedAt))
	require.NoError(t, ts.qualityRepo.AdjustMetrics(ctx, q1.ID, 2, 0))
	require.NoError(t, ts.qualityRepo.AdjustMetrics(ctx, q2.ID, 2, 0))

	require.NoError(t, ts.quality.CheckForQualityImprovement(ctx))

	sum, err := ts.qualityRepo.SumActiveStrikes(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)

	ban, err = ts.qualityRepo.GetActiveBan(ctx, user.ID, model.BanTypeQuestion)
	require.NoError(t, err)
	assert.Nil(t, ban, "ban lifted after demonstrated improvement")

	status, err := ts.quality.CheckQualityBan(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBanned)
}

func TestCheckForQualityImprovement_IgnoresUneditedQuestions(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "idle", 1)
	question := ts.createQuestion(t, user, "A question the author never revisited")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, question.ID, model.StrikeTypeClosed, "closed"))

	// positive score alone is not enough without an edit after the strike
	require.NoError(t, ts.qualityRepo.AdjustMetrics(ctx, question.ID, 3, 0))

	require.NoError(t, ts.quality.CheckForQualityImprovement(ctx))

	sum, err := ts.qualityRepo.SumActiveStrikes(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sum)
}

func TestDeactivateClosedStrike(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, user, "A question closed and later reopened")
	require.NoError(t, ts.quality.RecordQualityStrike(ctx, user.ID, question.ID, model.StrikeTypeClosed, "closed"))

	require.NoError(t, ts.quality.DeactivateClosedStrike(ctx, user.ID, question.ID))

	sum, err := ts.qualityRepo.SumActiveStrikes(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)

	// the row is kept for audit, just inactive
	strike, err := ts.qualityRepo.FindStrike(ctx, user.ID, question.ID, model.StrikeTypeClosed)
	require.NoError(t, err)
	require.NotNil(t, strike)
	assert.False(t, strike.IsActive)
	assert.NotNil(t, strike.RemovedAt)
}

func TestCheckQualityBan_ExpiredBanIsLifted(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "served", 1)

	expired := time.Now().Add(-time.Hour)
	ban := &model.QualityBan{
		UserID:        user.ID,
		BanType:       model.BanTypeQuestion,
		BanLevel:      model.BanLevelWeek,
		TotalStrikes:  6,
		ActiveStrikes: 6,
		IsActive:      true,
		ExpiresAt:     &expired,
	}
	require.NoError(t, ts.qualityRepo.CreateBan(ctx, ban))

	status, err := ts.quality.CheckQualityBan(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBanned)

	lifted, err := ts.qualityRepo.GetActiveBan(ctx, user.ID, model.BanTypeQuestion)
	require.NoError(t, err)
	assert.Nil(t, lifted)
}
