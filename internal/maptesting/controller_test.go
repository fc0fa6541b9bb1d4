package maptesting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kobraHeader = `"Kobra 7" by Pipou [Brutal]`

func TestSubmitInitial_CreatesTestingChannel(t *testing.T) {
	env := newTestEnv()

	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	assert.Equal(t, StateTesting, ch.State)
	assert.Equal(t, "1001", ch.MapperID)
	assert.Equal(t, BucketActive, env.platform.buckets[ch.ID])
	assert.Equal(t, "💪Kobra_7", env.platform.titles[ch.ID])
	assert.Contains(t, env.artifacts.uploads, "map/Kobra_7.map")

	entries := ch.Changelog.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, CategorySubmitted, entries[0].Category)

	// Registry lookup works both by id and by filename.
	got, ok := env.ctrl.Get(ch.ID)
	assert.True(t, ok)
	assert.Same(t, ch, got)
}

func TestSubmitInitial_FlaggedMapStartsWaiting(t *testing.T) {
	env := newTestEnv()
	env.checker.diag = "tile 13,37: hookthrough misplaced"

	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	assert.Equal(t, StateWaiting, ch.State)
	assert.Equal(t, BucketWaiting, env.platform.buckets[ch.ID])
	_, ok, _ := env.store.WaitingSince(context.Background(), ch.ID)
	assert.True(t, ok)

	entries := ch.Changelog.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, CategoryWaiting, entries[1].Category)
	assert.Equal(t, "testbot", entries[1].Actor)
}

func TestSubmitInitial_Validation(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name     string
		header   string
		filename string
	}{
		{"bad header", "Kobra 7 by Pipou", "Kobra_7.map"},
		{"filename mismatch", kobraHeader, "Other_Map.map"},
		{"name sanitizes to nothing", `"?!" by Pipou [Brutal]`, "x.map"},
	}
	for _, tc := range cases {
		_, err := env.submit(tc.header, tc.filename)
		require.Error(t, err, tc.name)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), tc.name)
	}
}

func TestSubmitInitial_RejectsDuplicateName(t *testing.T) {
	env := newTestEnv()
	_, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	_, err = env.submit(kobraHeader, "Kobra_7.map")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "already in testing")
}

func TestSubmitInitial_RejectsReleasedName(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.store.AddReleased(context.Background(), "Kobra 7"))

	_, err := env.submit(kobraHeader, "Kobra_7.map")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "released")
}

func TestAdvanceReady_TwoStepPromotion(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	assert.Equal(t, StateRC, ch.State)
	assert.Equal(t, []string{"2002"}, ch.Votes)
	assert.Equal(t, "☑💪Kobra_7", env.platform.titles[ch.ID])

	env.advanceClock()
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "3003"))
	assert.Equal(t, StateReady, ch.State)
	assert.Equal(t, []string{"2002", "3003"}, ch.Votes)
	assert.Equal(t, BucketEvaluated, env.platform.buckets[ch.ID])
}

func TestAdvanceReady_SameTesterCannotConfirm(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	env.advanceClock()

	err = env.ctrl.AdvanceReady(ctx, ch, "2002")
	var rule *RuleViolation
	require.True(t, errors.As(err, &rule))
	assert.Equal(t, StateRC, ch.State)
}

func TestAdvanceReady_OnReadyIsNoOp(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	env.advanceClock()
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "3003"))
	before := ch.Changelog.Len()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "4004"))
	assert.Equal(t, StateReady, ch.State)
	assert.Equal(t, before, ch.Changelog.Len())
}

func TestAdvanceReady_RefusedStates(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	for _, state := range []MapState{StateWaiting, StateDeclined, StateReleased} {
		ch.State = state
		err := env.ctrl.AdvanceReady(ctx, ch, "2002")
		var rule *RuleViolation
		assert.True(t, errors.As(err, &rule), state.String())
	}
}

func TestAdvanceReady_StructuralFailureBlocksReady(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	env.advanceClock()

	env.checker.diag = "tile 1,1: unhookable border breach"
	err = env.ctrl.AdvanceReady(ctx, ch, "3003")
	var scf *StructuralCheckFailure
	require.True(t, errors.As(err, &scf))
	assert.Contains(t, scf.Diagnostics, "border breach")
	assert.Equal(t, StateRC, ch.State)
}

func TestDecline_AnonymousAttribution(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	require.NoError(t, env.ctrl.Decline(context.Background(), ch, "2002", ""))
	assert.Equal(t, StateDeclined, ch.State)

	entries := ch.Changelog.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, "testbot", last.Actor)
	assert.Equal(t, "declined", last.Text)
}

func TestDecline_WithReasonKeepsActor(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	require.NoError(t, env.ctrl.Decline(context.Background(), ch, "2002", "unbalanced midgame"))
	entries := ch.Changelog.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, "2002", last.Actor)
	assert.Equal(t, "unbalanced midgame", last.Text)
}

func TestDecline_FromWaitingAllowed(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	env.advanceClock()
	require.NoError(t, env.ctrl.Decline(ctx, ch, "2002", "abandoned"))
	assert.Equal(t, StateDeclined, ch.State)

	// The waiting timer is gone so the sweep treats it as evaluated.
	_, ok, _ := env.store.WaitingSince(ctx, ch.ID)
	assert.False(t, ok)
}

func TestDecline_RefusedStates(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	for _, state := range []MapState{StateDeclined, StateReleased} {
		ch.State = state
		err := env.ctrl.Decline(ctx, ch, "2002", "nope")
		var rule *RuleViolation
		assert.True(t, errors.As(err, &rule), state.String())
	}
}

func TestSendToWaiting(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	assert.Equal(t, StateWaiting, ch.State)
	assert.Equal(t, BucketWaiting, env.platform.buckets[ch.ID])
	_, ok, _ := env.store.WaitingSince(ctx, ch.ID)
	assert.True(t, ok)

	// Already waiting: no-op, no changelog growth.
	before := ch.Changelog.Len()
	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	assert.Equal(t, before, ch.Changelog.Len())

	ch.State = StateReleased
	err = env.ctrl.SendToWaiting(ctx, ch, "2002")
	var rule *RuleViolation
	assert.True(t, errors.As(err, &rule))
}

func TestReset_ClearsVotesAndTimer(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	env.advanceClock()
	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	env.advanceClock()

	require.NoError(t, env.ctrl.Reset(ctx, ch, "3003"))
	assert.Equal(t, StateTesting, ch.State)
	assert.Empty(t, ch.Votes)
	assert.Equal(t, BucketActive, env.platform.buckets[ch.ID])
	_, ok, _ := env.store.WaitingSince(ctx, ch.ID)
	assert.False(t, ok)
}

func TestRelease_RecordsNameAndIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.Release(ctx, ch, "9009"))
	assert.Equal(t, StateReleased, ch.State)
	released, _ := env.store.IsReleased(ctx, "Kobra 7")
	assert.True(t, released)

	before := ch.Changelog.Len()
	require.NoError(t, env.ctrl.Release(ctx, ch, "9009"))
	assert.Equal(t, before, ch.Changelog.Len())
}

func TestCooldown_ThirdMutationBlocked(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "3003"))

	err = env.ctrl.Reset(ctx, ch, "4004")
	var rl *RateLimited
	require.True(t, errors.As(err, &rl))
	assert.True(t, rl.RetryAfter > 0)
	assert.Equal(t, StateReady, ch.State)

	// Budget is per channel; a second map is unaffected.
	other, err := env.submit(`"Sunny Side Up" by Ravie [Novice]`, "Sunny_Side_Up.map")
	require.NoError(t, err)
	require.NoError(t, env.ctrl.AdvanceReady(ctx, other, "2002"))
}

func TestCooldown_ClearsAfterWindow(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	env.advanceClock()

	require.NoError(t, env.ctrl.Reset(ctx, ch, "2002"))
	assert.Equal(t, StateTesting, ch.State)
}

func TestHandleResubmission_MapperOnWaitingResumesTesting(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.SendToWaiting(ctx, ch, "2002"))
	env.advanceClock()

	sub := NewSubmission("Kobra_7.map", "1001", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "1001", sub))

	assert.Equal(t, StateTesting, ch.State)
	assert.Same(t, sub, ch.LastSubmission)
	_, ok, _ := env.store.WaitingSince(ctx, ch.ID)
	assert.False(t, ok)

	entries := ch.Changelog.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, CategoryAutoReset, last.Category)
	assert.Equal(t, "testbot", last.Actor)
}

func TestHandleResubmission_MapperOnReadyDemotesToRC(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	env.advanceClock()
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "3003"))
	env.advanceClock()

	sub := NewSubmission("Kobra_7.map", "1001", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "1001", sub))
	assert.Equal(t, StateRC, ch.State)
	assert.True(t, ch.HasVote("testbot"))

	// The system vote lets a single returning tester re-confirm alone.
	env.advanceClock()
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	assert.Equal(t, StateReady, ch.State)
}

func TestHandleResubmission_MapperOnTestingJustUpdates(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	sub := NewSubmission("Kobra_7.map", "1001", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "1001", sub))

	assert.Equal(t, StateTesting, ch.State)
	entries := ch.Changelog.Entries()
	assert.Equal(t, CategoryUpdate, entries[len(entries)-1].Category)
}

func TestHandleResubmission_OnReleasedOnlyNotifies(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.Release(ctx, ch, "9009"))
	before := ch.Changelog.Len()

	sub := NewSubmission("Kobra_7.map", "1001", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "1001", sub))

	assert.Equal(t, StateReleased, ch.State)
	assert.Equal(t, before, ch.Changelog.Len())
	assert.NotSame(t, sub, ch.LastSubmission)
	assert.NotEmpty(t, env.notifier.byCategory(CategoryUpdate))
}

func TestHandleResubmission_NonMapperIsHeld(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	sub := NewSubmission("Kobra_7.map", "5005", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "5005", sub))

	assert.Same(t, sub, ch.PendingSubmission)
	assert.Equal(t, "5005", ch.PendingAuthor)
	assert.NotSame(t, sub, ch.LastSubmission)
	// The held artifact must not overwrite the accepted one.
	assert.Equal(t, []byte("DATA"), env.artifacts.uploads["map/Kobra_7.map"])
}

func TestApproveSubmission(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	sub := NewSubmission("Kobra_7.map", "5005", staticBytes([]byte("V2")))
	require.NoError(t, env.ctrl.HandleResubmission(ctx, ch, "5005", sub))

	// Uploaders cannot verify their own upload.
	err = env.ctrl.ApproveSubmission(ctx, ch, "5005")
	var rule *RuleViolation
	require.True(t, errors.As(err, &rule))

	require.NoError(t, env.ctrl.ApproveSubmission(ctx, ch, "2002"))
	assert.Nil(t, ch.PendingSubmission)
	assert.Empty(t, ch.PendingAuthor)
	assert.Same(t, sub, ch.LastSubmission)
	assert.Equal(t, []byte("V2"), env.artifacts.uploads["map/Kobra_7.map"])

	// Nothing left to approve.
	err = env.ctrl.ApproveSubmission(ctx, ch, "2002")
	assert.True(t, errors.As(err, &rule))
}

func TestRename_UpdatesTitleTopicAndPreview(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.Rename(ctx, ch, "2002", "Kobra 8"))
	assert.Equal(t, "Kobra 8", ch.Name)
	assert.Equal(t, "💪Kobra_8", env.platform.titles[ch.ID])
	assert.Contains(t, ch.PreviewURL, "Kobra_8")
	assert.Contains(t, env.platform.topics[ch.ID], "Kobra 8")
}

func TestRename_RejectsCollisions(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	_, err = env.submit(`"Sunny Side Up" by Ravie [Novice]`, "Sunny_Side_Up.map")
	require.NoError(t, err)
	require.NoError(t, env.store.AddReleased(context.Background(), "Old Classic"))
	ctx := context.Background()

	var verr *ValidationError
	assert.True(t, errors.As(env.ctrl.Rename(ctx, ch, "2002", "Sunny Side Up"), &verr))
	assert.True(t, errors.As(env.ctrl.Rename(ctx, ch, "2002", "Old Classic"), &verr))
	assert.True(t, errors.As(env.ctrl.Rename(ctx, ch, "2002", "?!"), &verr))

	// Renaming to itself is not a collision.
	require.NoError(t, env.ctrl.Rename(ctx, ch, "2002", "Kobra 7"))
}

func TestChangeServer_RetitlesChannel(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	require.NoError(t, env.ctrl.ChangeServer(context.Background(), ch, "2002", ServerInsane))
	assert.Equal(t, "💀Kobra_7", env.platform.titles[ch.ID])
}

func TestChangeMappers_RequiresOne(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)

	var verr *ValidationError
	assert.True(t, errors.As(env.ctrl.ChangeMappers(context.Background(), ch, "2002", nil), &verr))
}

func TestChangeOwner(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.ChangeOwner(ctx, ch, "2002", "7007"))
	assert.Equal(t, "7007", ch.MapperID)
	assert.Contains(t, env.platform.topics[ch.ID], "7007")

	var verr *ValidationError
	assert.True(t, errors.As(env.ctrl.ChangeOwner(ctx, ch, "2002", ""), &verr))
}

func TestMutations_PersistChangelogRows(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	rows, err := env.store.ChangelogFor(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.Changelog.Len(), len(rows))
}

func TestRelocate_OnlyOnBucketChange(t *testing.T) {
	env := newTestEnv()
	ch, err := env.submit(kobraHeader, "Kobra_7.map")
	require.NoError(t, err)
	ctx := context.Background()

	// TESTING -> RC stays in the active bucket.
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "2002"))
	assert.Equal(t, 0, env.platform.relocates)

	// RC -> READY crosses into evaluated.
	require.NoError(t, env.ctrl.AdvanceReady(ctx, ch, "3003"))
	assert.Equal(t, 1, env.platform.relocates)
}
