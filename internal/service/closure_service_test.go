package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastCloseVote_ThresholdClosesQuestion(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, author, "A question the community wants closed")

	for i := 0; i < 2; i++ {
		voter := ts.createUser(t, fmt.Sprintf("closer%d", i), 300)
		result, err := ts.closure.CastCloseVote(ctx, question.ID, voter.ID, model.CloseReasonOffTopic, "")
		require.NoError(t, err)
		assert.False(t, result.Closed, "vote %d should not close yet", i+1)
	}

	finalVoter := ts.createUser(t, "closer2", 300)
	result, err := ts.closure.CastCloseVote(ctx, question.ID, finalVoter.ID, model.CloseReasonOffTopic, "")
	require.NoError(t, err)
	assert.True(t, result.Closed)

	closed, err := ts.questionRepo.FindQuestionByID(ctx, question.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.CloseReasonKey)
	assert.Equal(t, model.CloseReasonOffTopic, *closed.CloseReasonKey)

	// closure charges the asker a "closed" strike
	strike, err := ts.qualityRepo.FindStrike(ctx, author.ID, question.ID, model.StrikeTypeClosed)
	require.NoError(t, err)
	require.NotNil(t, strike)
	assert.True(t, strike.IsActive)

	// the close vote pool was retired with the closure
	count, err := ts.closureRepo.CountActiveCloseVotes(ctx, question.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCastCloseVote_DuplicateAndClosedRejected(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "A question with an overeager close voter")

	_, err := ts.closure.CastCloseVote(ctx, question.ID, voter.ID, model.CloseReasonSpam, "")
	require.NoError(t, err)

	_, err = ts.closure.CastCloseVote(ctx, question.ID, voter.ID, model.CloseReasonSpam, "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyVoted)

	require.NoError(t, ts.closure.CloseQuestion(ctx, question.ID, model.CloseReasonSpam, "", nil, false))

	other := ts.createUser(t, "other", 300)
	_, err = ts.closure.CastCloseVote(ctx, question.ID, other.ID, model.CloseReasonSpam, "")
	assert.ErrorIs(t, err, apperror.ErrQuestionClosed)
}

func TestCastCloseVote_UnknownReasonRejected(t *testing.T) {
	ts := newTestStack(t)

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "A question voted on with a bogus reason")

	_, err := ts.closure.CastCloseVote(context.Background(), question.ID, voter.ID, "not_a_reason", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestGoldBadgeHammer_ClosesWithSingleVote(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	hammer := ts.createUser(t, "hammer", 300)
	tag := ts.createTag(t, "golang")
	question := ts.createQuestion(t, author, "A duplicate question in a familiar tag", *tag)

	gold := &model.UserTagBadge{UserID: hammer.ID, TagID: tag.ID, Tier: model.TierGold, IsActive: true}
	require.NoError(t, ts.tagBadgeRepo.CreateBadge(ctx, gold))

	result, err := ts.closure.CastCloseVote(ctx, question.ID, hammer.ID, model.CloseReasonDuplicate, "seen this before")
	require.NoError(t, err)
	assert.True(t, result.Closed)

	closed, err := ts.questionRepo.FindQuestionByID(ctx, question.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
}

func TestGoldBadgeHammer_InactiveBadgeDoesNotCount(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	former := ts.createUser(t, "former", 300)
	tag := ts.createTag(t, "rust")
	question := ts.createQuestion(t, author, "A question in a tag with a lapsed expert", *tag)

	inactive := &model.UserTagBadge{UserID: former.ID, TagID: tag.ID, Tier: model.TierGold, IsActive: false}
	require.NoError(t, ts.tagBadgeRepo.CreateBadge(ctx, inactive))

	result, err := ts.closure.CastCloseVote(ctx, question.ID, former.ID, model.CloseReasonDuplicate, "")
	require.NoError(t, err)
	assert.False(t, result.Closed)
}

func TestReopen_RoundTripWithdrawsStrike(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, author, "A question closed in haste")

	require.NoError(t, ts.closure.CloseQuestion(ctx, question.ID, model.CloseReasonLowQuality, "", nil, false))

	sum, err := ts.qualityRepo.SumActiveStrikes(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, sum)

	for i := 0; i < 3; i++ {
		voter := ts.createUser(t, fmt.Sprintf("reopener%d", i), 300)
		_, err := ts.closure.CastReopenVote(ctx, question.ID, voter.ID)
		require.NoError(t, err)
	}

	reopened, err := ts.questionRepo.FindQuestionByID(ctx, question.ID)
	require.NoError(t, err)
	assert.False(t, reopened.IsClosed)
	assert.Nil(t, reopened.ClosedAt)

	// the closure strike goes away with the reopen
	sum, err = ts.qualityRepo.SumActiveStrikes(ctx, author.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestCastReopenVote_OpenQuestionRejected(t *testing.T) {
	ts := newTestStack(t)

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "A question that is still open")

	_, err := ts.closure.CastReopenVote(context.Background(), question.ID, voter.ID)
	assert.ErrorIs(t, err, apperror.ErrQuestionNotClosed)
}

func TestCheckAutoClose_AtScoreThreshold(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, author, "A question the community buried")

	require.NoError(t, ts.questionRepo.AdjustQuestionScore(ctx, question.ID, -4))
	require.NoError(t, ts.closure.CheckAutoClose(ctx, question.ID))

	open, err := ts.questionRepo.FindQuestionByID(ctx, question.ID)
	require.NoError(t, err)
	assert.False(t, open.IsClosed, "score -4 is above the threshold")

	require.NoError(t, ts.questionRepo.AdjustQuestionScore(ctx, question.ID, -1))
	require.NoError(t, ts.closure.CheckAutoClose(ctx, question.ID))

	closed, err := ts.questionRepo.FindQuestionByID(ctx, question.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.CloseReasonKey)
	assert.Equal(t, model.CloseReasonLowQuality, *closed.CloseReasonKey)
	assert.Nil(t, closed.ClosedByUserID, "automatic closures have no closing user")

	// auto closures leave an audit row with the score at closure time
	var logs []model.AutoCloseLog
	require.NoError(t, ts.db.Where("question_id = ?", question.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, -5, logs[0].ScoreAtClosure)
}

func TestCastCloseVote_RateLimited(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	// tighten the seeded close_vote window to one per day
	require.NoError(t, ts.db.Where("action_type = ?", model.ActionCloseVote).
		Delete(&model.RateLimitConfig{}).Error)
	require.NoError(t, ts.db.Create(&model.RateLimitConfig{
		ActionType:        model.ActionCloseVote,
		MaxActions:        1,
		TimeWindowMinutes: 24 * 60,
	}).Error)

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	first := ts.createQuestion(t, author, "The first question drawing a close vote")
	second := ts.createQuestion(t, author, "The second question drawing a close vote")

	_, err := ts.closure.CastCloseVote(ctx, first.ID, voter.ID, model.CloseReasonOffTopic, "")
	require.NoError(t, err)

	_, err = ts.closure.CastCloseVote(ctx, second.ID, voter.ID, model.CloseReasonOffTopic, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
	assert.Equal(t, 429, apperror.MapErrorToStatus(err))
}

func TestClosureStatus_TracksVotePools(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "A question with one pending close vote")

	_, err := ts.closure.CastCloseVote(ctx, question.ID, voter.ID, model.CloseReasonOffTopic, "")
	require.NoError(t, err)

	status, err := ts.closure.Status(ctx, question.ID)
	require.NoError(t, err)
	assert.False(t, status.IsClosed)
	assert.Equal(t, int64(1), status.CloseVotes)
	assert.Equal(t, 3, status.VotesRequired)

	require.NoError(t, ts.closure.CloseQuestion(ctx, question.ID, model.CloseReasonOffTopic, "", nil, false))

	status, err = ts.closure.Status(ctx, question.ID)
	require.NoError(t, err)
	assert.True(t, status.IsClosed)
	require.NotNil(t, status.ReasonKey)
	assert.Equal(t, model.CloseReasonOffTopic, *status.ReasonKey)
	assert.Zero(t, status.CloseVotes, "closing retires the pending pool")
}

func TestExpireOldCloseVotes(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "A question with a stale close vote")

	_, err := ts.closure.CastCloseVote(ctx, question.ID, voter.ID, model.CloseReasonOffTopic, "")
	require.NoError(t, err)

	// age the vote past the 14-day window
	aged := time.Now().AddDate(0, 0, -15)
	require.NoError(t, ts.db.Model(&model.QuestionCloseVote{}).
		Where("question_id = ?", question.ID).
		Update("created_at", aged).Error)

	expired, err := ts.closure.ExpireOldCloseVotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	count, err := ts.closureRepo.CountActiveCloseVotes(ctx, question.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
