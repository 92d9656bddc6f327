package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/oneceylon/oneceylon/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAward_Idempotent(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "collector", 1)

	first, err := ts.badges.Award(ctx, user.ID, model.BadgePearlDiver)
	require.NoError(t, err)
	assert.True(t, first.Awarded)

	second, err := ts.badges.Award(ctx, user.ID, model.BadgePearlDiver)
	require.NoError(t, err)
	assert.False(t, second.Awarded)

	badges, err := ts.badges.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestAward_UnknownBadgeIsNoOp(t *testing.T) {
	ts := newTestStack(t)

	user := ts.createUser(t, "collector", 1)

	result, err := ts.badges.Award(context.Background(), user.ID, "No Such Badge")
	require.NoError(t, err)
	assert.False(t, result.Awarded)
}

func TestCheckAyubowan(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	bio := "Gopher from Colombo"

	user := ts.createUser(t, "newcomer", 1)
	user.Bio = &bio
	require.NoError(t, ts.userRepo.Update(ctx, user))

	// bio alone is not enough without a verified email
	ts.badges.CheckAyubowan(ctx, user.ID)
	badges, err := ts.badges.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	require.NoError(t, ts.userRepo.SetEmailVerified(ctx, user.ID))
	ts.badges.CheckAyubowan(ctx, user.ID)

	badges, err = ts.badges.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, model.BadgeAyubowan, badges[0].Badge.Name)
}

func TestCheckSnapshot(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "photographer", 1)
	withImage := "Here is the stack trace: ![screenshot](https://img.example.com/trace.png)"

	// below the score threshold, nothing happens
	ts.badges.CheckSnapshot(ctx, author.ID, withImage, 4)
	badges, err := ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	// no embedded image, nothing happens either
	ts.badges.CheckSnapshot(ctx, author.ID, "plain text body", 9)
	badges, err = ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	ts.badges.CheckSnapshot(ctx, author.ID, withImage, 5)
	badges, err = ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, model.BadgeSnapshot, badges[0].Badge.Name)
}

func TestCheckSnapshot_HTMLImageTag(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "photographer", 1)
	ts.badges.CheckSnapshot(ctx, author.ID, `see <img src="diagram.svg"> above`, 7)

	badges, err := ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
}

func TestRiceAndCurry_AwardedAfterTenUpvotes(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	voter := ts.createUser(t, "voter", 300)
	author := ts.createUser(t, "author", 1)

	for i := 0; i < 10; i++ {
		question := ts.createQuestion(t, author, fmt.Sprintf("Well researched question number %d", i))
		_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, question.ID, model.VoteTypeUp)
		require.NoError(t, err)
	}

	badges, err := ts.badges.ListUserBadges(ctx, voter.ID)
	require.NoError(t, err)

	var names []string
	for _, b := range badges {
		names = append(names, b.Badge.Name)
	}
	assert.Contains(t, names, model.BadgeRiceAndCurry)
}

func TestFirstLanding_OnlyForFirstQuestion(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	author := ts.createUser(t, "author", 1)
	voter := ts.createUser(t, "voter", 300)

	first := ts.createQuestion(t, author, "My very first question about slices")
	second := ts.createQuestion(t, author, "A follow up question about maps")

	// upvoting the second question does not award First Landing
	_, err := ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, second.ID, model.VoteTypeUp)
	require.NoError(t, err)

	badges, err := ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)
	for _, b := range badges {
		assert.NotEqual(t, model.BadgeFirstLanding, b.Badge.Name)
	}

	_, err = ts.votes.CastVote(ctx, voter.ID, model.VotableQuestion, first.ID, model.VoteTypeUp)
	require.NoError(t, err)

	badges, err = ts.badges.ListUserBadges(ctx, author.ID)
	require.NoError(t, err)

	var names []string
	for _, b := range badges {
		names = append(names, b.Badge.Name)
	}
	assert.Contains(t, names, model.BadgeFirstLanding)
}

func TestPearlDiver_AtThousandReputation(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	user := ts.createUser(t, "veteran", 999)
	ts.badges.CheckPearlDiver(ctx, user.ID)

	badges, err := ts.badges.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	require.NoError(t, ts.reputation.Apply(ctx, nil, user.ID, 1, "Received upvote", model.RefTypeVote, nil))
	ts.badges.CheckPearlDiver(ctx, user.ID)

	badges, err = ts.badges.ListUserBadges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, model.BadgePearlDiver, badges[0].Badge.Name)
}
