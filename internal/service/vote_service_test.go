package service

import (
	"context"
	"testing"

	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/oneceylon/oneceylon/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote_QuestionUpvote(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 50)
	question := ts.createQuestion(t, author, "How to configure gorm connection pooling")

	result, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	require.NoError(t, err)

	assert.True(t, result.Registered)
	assert.Equal(t, model.VoteTypeUp, result.VoteType)
	assert.Equal(t, 1, result.Score)

	// author earned the question-upvote bonus, recorded in the ledger
	assert.Equal(t, 6, ts.reload(t, author.ID).Reputation)

	history, err := ts.reputation.History(ctx, author.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, RepQuestionUpvote, history[0].ChangeAmount)
	assert.Equal(t, "Received upvote", history[0].Reason)
}

func TestCastVote_ToggleRemovesVote(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "Why does my goroutine leak on shutdown")

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	require.NoError(t, err)

	result, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	require.NoError(t, err)

	assert.False(t, result.Registered)
	assert.Equal(t, 0, result.Score)

	// reputation fully reversed, both movements in the ledger
	assert.Equal(t, 1, ts.reload(t, author.ID).Reputation)

	history, err := ts.reputation.History(ctx, author.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	vote, err := ts.voteRepo.FindByUserAndVotable(ctx, voter.ID, model.VotableQuestion, question.ID)
	require.NoError(t, err)
	assert.Nil(t, vote)
}

func TestCastVote_SwitchAppliesCombinedDelta(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "What is the idiomatic way to wrap errors")

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	require.NoError(t, err)

	result, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeDown)
	require.NoError(t, err)

	assert.True(t, result.Registered)
	assert.Equal(t, model.VoteTypeDown, result.VoteType)
	assert.Equal(t, -1, result.Score)

	// +5 for the upvote, then -7 on the switch (down -2 minus the revoked +5)
	assert.Equal(t, 1+RepQuestionUpvote+(RepDownvote-RepQuestionUpvote), ts.reload(t, author.ID).Reputation)

	vote, err := ts.voteRepo.FindByUserAndVotable(ctx, voter.ID, model.VotableQuestion, question.ID)
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.Equal(t, model.VoteTypeDown, vote.VoteType)
}

func TestCastVote_SelfVoteRejected(t *testing.T) {
	ts := newTestStack(t)

	author := ts.createUser(t, "author", 300)
	question := ts.createQuestion(t, author, "Can I answer and accept my own question")

	_, err := ts.votes.CastVote(context.Background(), author.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	assert.ErrorIs(t, err, apperror.ErrSelfVote)
}

func TestCastVote_DownvoteReputationFloor(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, author, "Should I use channels or mutexes here")

	below := ts.createUser(t, "below", DownvoteMinReputation-1)
	_, err := ts.votes.CastVote(ctx, below.ID, model.VotableQuestion, question.ID, model.VoteTypeDown)
	assert.ErrorIs(t, err, apperror.ErrInsufficientReputation)

	at := ts.createUser(t, "at", DownvoteMinReputation)
	result, err := ts.votes.CastVote(ctx, at.ID, model.VotableQuestion, question.ID, model.VoteTypeDown)
	require.NoError(t, err)
	assert.Equal(t, -1, result.Score)
}

func TestCastVote_AnswerUpvoteFeedsTagExpertise(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	asker := ts.createUser(t, "asker", 1)
	answerer := ts.createUser(t, "answerer", 1)
	voter := ts.createUser(t, "voter", 300)

	tag := ts.createTag(t, "golang")
	question := ts.createQuestion(t, asker, "How do I parse RFC3339 timestamps", *tag)
	answer := ts.createAnswer(t, answerer, question.ID)

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableAnswer, answer.ID, model.VoteTypeUp)
	require.NoError(t, err)

	// answer upvote is worth 10 reputation and 10 tag expertise points
	assert.Equal(t, 1+RepAnswerUpvote, ts.reload(t, answerer.ID).Reputation)

	score, err := ts.tagBadgeRepo.GetScore(ctx, answerer.ID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, RepAnswerUpvote, score.TotalScore)
	assert.Equal(t, 0, score.AcceptedAnswersCount)
}

func TestCastVote_QuestionUpvoteDoesNotFeedTagExpertise(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	asker := ts.createUser(t, "asker", 1)
	voter := ts.createUser(t, "voter", 300)

	tag := ts.createTag(t, "postgres")
	question := ts.createQuestion(t, asker, "Why is my index not being used by the planner", *tag)

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
	require.NoError(t, err)

	score, err := ts.tagBadgeRepo.GetScore(ctx, asker.ID, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.TotalScore)
}

func TestCastVote_DownvoteRecordsStrikeAndMetrics(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)
	question := ts.createQuestion(t, author, "Please debug my entire application for me")

	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeDown)
	require.NoError(t, err)

	strike, err := ts.qualityRepo.FindStrike(ctx, author.ID, question.ID, model.StrikeTypeDownvote)
	require.NoError(t, err)
	require.NotNil(t, strike)
	assert.True(t, strike.IsActive)
	assert.Equal(t, 0.5, strike.StrikeValue)

	metrics, err := ts.qualityRepo.GetMetrics(ctx, question.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Downvotes)
	assert.Equal(t, -1, metrics.QualityScore)
}

func TestCastVote_InvalidVotableType(t *testing.T) {
	ts := newTestStack(t)

	voter := ts.createUser(t, "voter", 300)
	author := ts.createUser(t, "author", 1)
	question := ts.createQuestion(t, author, "Does this compile on your machine too")

	_, err := ts.votes.CastVote(context.Background(), voter.ID, "comment", question.ID, model.VoteTypeUp)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}
