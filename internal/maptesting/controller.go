package maptesting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

type Config struct {
	CooldownWindow time.Duration
	CooldownBudget int
	// SystemActor is the identity used for anonymous or automatic
	// changelog attribution.
	SystemActor  string
	ReleaseGrace time.Duration
}

func (c *Config) applyDefaults() {
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = 700 * time.Second
	}
	if c.CooldownBudget <= 0 {
		c.CooldownBudget = 2
	}
	if c.SystemActor == "" {
		c.SystemActor = "testbot"
	}
	if c.ReleaseGrace <= 0 {
		c.ReleaseGrace = 14 * 24 * time.Hour
	}
}

// Controller owns the registry of live map channels and mediates every
// state transition. All mutating operations follow the same envelope:
// rule guards, cooldown check, mutation, cooldown consume, changelog
// append, retitle/retopic/relocate.
type Controller struct {
	cfg       Config
	gate      *CooldownGate
	store     Store
	platform  Platform
	artifacts ArtifactStore
	checker   Checker
	notifier  Notifier

	mu       sync.RWMutex
	channels map[string]*MapChannel
}

func NewController(cfg Config, store Store, platform Platform, artifacts ArtifactStore, checker Checker, notifier Notifier) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:       cfg,
		gate:      NewCooldownGate(cfg.CooldownWindow, cfg.CooldownBudget),
		store:     store,
		platform:  platform,
		artifacts: artifacts,
		checker:   checker,
		notifier:  notifier,
		channels:  make(map[string]*MapChannel),
	}
}

// --- registry ---

func (c *Controller) Get(channelID string) (*MapChannel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[channelID]
	return ch, ok
}

func (c *Controller) Register(ch *MapChannel) {
	c.mu.Lock()
	c.channels[ch.ID] = ch
	c.mu.Unlock()
}

func (c *Controller) Remove(channelID string) {
	c.mu.Lock()
	delete(c.channels, channelID)
	c.mu.Unlock()
}

func (c *Controller) Channels() []*MapChannel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*MapChannel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *Controller) byFilename(filename string) *MapChannel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.channels {
		if strings.EqualFold(ch.Filename(), filename) {
			return ch
		}
	}
	return nil
}

// --- submission ---

// SubmitInitial validates a fresh upload and, on success, creates its
// map channel. Flagged artifacts start in WAITING instead of TESTING.
func (c *Controller) SubmitInitial(ctx context.Context, header string, sub *Submission) (*MapChannel, error) {
	name, mappers, server, err := ParseDetails(header)
	if err != nil {
		sub.SetState(SubmissionErrored)
		return nil, err
	}
	filename := SanitizeName(name)
	if filename == "" {
		sub.SetState(SubmissionErrored)
		return nil, &ValidationError{Reason: "map name sanitizes to nothing"}
	}
	if got := strings.TrimSuffix(sub.Filename, ".map"); got != filename {
		sub.SetState(SubmissionErrored)
		return nil, &ValidationError{Reason: fmt.Sprintf("uploaded file %q does not match map name (want %s.map)", sub.Filename, filename)}
	}
	if dup := c.byFilename(filename); dup != nil {
		sub.SetState(SubmissionErrored)
		return nil, &ValidationError{Reason: fmt.Sprintf("a map named %s is already in testing", filename)}
	}
	released, err := c.store.IsReleased(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("released lookup: %w", err)
	}
	if released {
		sub.SetState(SubmissionErrored)
		return nil, &ValidationError{Reason: fmt.Sprintf("a released map already owns the name %q", name)}
	}
	sub.SetState(SubmissionValidated)

	data, err := sub.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	diag, err := c.checker.Check(ctx, data)
	if err != nil {
		sub.SetState(SubmissionErrored)
		return nil, fmt.Errorf("structural check: %w", err)
	}

	ch := NewMapChannel(name, mappers, server, sub.AuthorID)
	if diag != "" {
		ch.State = StateWaiting
	}
	ch.LastSubmission = sub

	if err := c.artifacts.Upload(ctx, "map", sub.Filename, data); err != nil {
		sub.SetState(SubmissionErrored)
		return nil, fmt.Errorf("artifact upload: %w", err)
	}
	sub.SetState(SubmissionUploaded)

	id, err := c.platform.CreateChannel(ctx, ch.DisplayTitle(), ch.Topic(), BucketFor(ch.State))
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	ch.ID = id
	c.Register(ch)

	if err := c.record(ctx, ch, sub.AuthorID, CategorySubmitted, ch.Details()); err != nil {
		logging.L().Error("submit: changelog append failed", "channel", id, "error", err)
	}
	if ch.State == StateWaiting {
		if err := c.store.SetWaitingSince(ctx, id, time.Now().UTC()); err != nil {
			logging.L().Error("submit: waiting-since write failed", "channel", id, "error", err)
		}
		if err := c.record(ctx, ch, c.cfg.SystemActor, CategoryWaiting, "structural problems found:\n"+diag); err != nil {
			logging.L().Error("submit: changelog append failed", "channel", id, "error", err)
		}
	}
	sub.SetState(SubmissionProcessed)

	logging.L().Info("map submitted",
		"map", filename,
		"channel", id,
		"mapper", sub.AuthorID,
		"state", ch.State.String(),
	)
	return ch, nil
}

// --- transitions ---

// setState is the mechanical primitive behind every transition. It
// updates the state, optionally records or clears votes, and keeps
// title, topic and bucket in sync. Business rules live in the callers.
func (c *Controller) setState(ctx context.Context, ch *MapChannel, state MapState, setBy string, resetVotes bool) error {
	prev := ch.State
	ch.State = state
	if resetVotes {
		ch.Votes = nil
	}
	ch.AddVote(setBy)

	if err := c.platform.UpdateTitle(ctx, ch.ID, ch.DisplayTitle()); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if err := c.platform.UpdateTopic(ctx, ch.ID, ch.Topic()); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if BucketFor(prev) != BucketFor(state) {
		if err := c.platform.Relocate(ctx, ch.ID, BucketFor(state), 0); err != nil {
			return fmt.Errorf("relocate: %w", err)
		}
	}
	return nil
}

func (c *Controller) guardCooldown(ch *MapChannel) error {
	if blocked, retry := c.gate.Check(ch.ID); blocked {
		return &RateLimited{RetryAfter: retry}
	}
	return nil
}

// record appends to the in-memory changelog, persists the entry, and
// notifies delivery surfaces.
func (c *Controller) record(ctx context.Context, ch *MapChannel, actor, category, text string) error {
	e := ch.Changelog.Add(actor, category, text)
	c.notifier.Notify(Notification{
		ChannelID: ch.ID,
		Map:       ch.Filename(),
		Category:  category,
		Actor:     actor,
		Text:      text,
	})
	if err := c.store.AppendChangelog(ctx, ch.ID, e); err != nil {
		return fmt.Errorf("persist changelog: %w", err)
	}
	return nil
}

// AdvanceReady implements the two-step ready promotion: TESTING -> RC
// on the first vote, RC -> READY on a second vote from a different
// tester, gated by a structural check. Calling it on a READY channel
// is a no-op.
func (c *Controller) AdvanceReady(ctx context.Context, ch *MapChannel, actor string) error {
	switch ch.State {
	case StateWaiting:
		return &RuleViolation{Reason: "waiting maps must be reset before they can be readied"}
	case StateReady:
		return nil
	case StateDeclined, StateReleased:
		return &RuleViolation{Reason: fmt.Sprintf("cannot ready a %s map", strings.ToLower(ch.State.String()))}
	}
	if ch.HasVote(actor) && !ch.HasVote(c.cfg.SystemActor) {
		return &RuleViolation{Reason: "the map must be tested by a different tester"}
	}
	if err := c.guardCooldown(ch); err != nil {
		return err
	}

	switch ch.State {
	case StateTesting:
		if err := c.setState(ctx, ch, StateRC, actor, false); err != nil {
			return err
		}
		c.gate.Consume(ch.ID)
		return c.record(ctx, ch, actor, CategoryRC, "promoted to release candidate")

	case StateRC:
		if sub := ch.LastSubmission; sub != nil {
			data, err := sub.Bytes(ctx)
			if err != nil {
				return err
			}
			diag, err := c.checker.Check(ctx, data)
			if err != nil {
				return fmt.Errorf("structural check: %w", err)
			}
			if diag != "" {
				return &StructuralCheckFailure{Diagnostics: diag}
			}
			if opt, err := c.checker.Optimize(ctx, data); err != nil {
				logging.L().Warn("optimize failed, keeping original artifact", "map", ch.Filename(), "error", err)
			} else if err := c.artifacts.Upload(ctx, "map", sub.Filename, opt); err != nil {
				logging.L().Error("optimized artifact upload failed", "map", ch.Filename(), "error", err)
			}
		} else {
			logging.L().Warn("no cached submission, skipping pre-ready check", "map", ch.Filename())
		}
		if err := c.setState(ctx, ch, StateReady, actor, false); err != nil {
			return err
		}
		c.gate.Consume(ch.ID)
		return c.record(ctx, ch, actor, CategoryReady, "ready for release")
	}
	return nil
}

// Decline rejects a map. With an empty reason the changelog entry is
// attributed to the system identity so testers can decline without
// attaching their name.
func (c *Controller) Decline(ctx context.Context, ch *MapChannel, actor, reason string) error {
	switch ch.State {
	case StateDeclined:
		return &RuleViolation{Reason: "map is already declined"}
	case StateReleased:
		return &RuleViolation{Reason: "released maps cannot be declined"}
	}
	if err := c.guardCooldown(ch); err != nil {
		return err
	}
	attribution := actor
	text := reason
	if strings.TrimSpace(reason) == "" {
		attribution = c.cfg.SystemActor
		text = "declined"
	}
	if err := c.setState(ctx, ch, StateDeclined, "", false); err != nil {
		return err
	}
	c.gate.Consume(ch.ID)
	if err := c.store.ClearWaitingSince(ctx, ch.ID); err != nil {
		logging.L().Error("decline: waiting-since clear failed", "channel", ch.ID, "error", err)
	}
	return c.record(ctx, ch, attribution, CategoryDeclined, text)
}

// SendToWaiting returns a map to its author. The waiting-since
// timestamp feeds the archival sweep's long-idle rule.
func (c *Controller) SendToWaiting(ctx context.Context, ch *MapChannel, actor string) error {
	if ch.State == StateWaiting {
		return nil
	}
	if ch.State.Terminal() {
		return &RuleViolation{Reason: fmt.Sprintf("cannot send a %s map to waiting", strings.ToLower(ch.State.String()))}
	}
	if err := c.guardCooldown(ch); err != nil {
		return err
	}
	if err := c.setState(ctx, ch, StateWaiting, "", false); err != nil {
		return err
	}
	c.gate.Consume(ch.ID)
	if err := c.store.SetWaitingSince(ctx, ch.ID, time.Now().UTC()); err != nil {
		logging.L().Error("waiting-since write failed", "channel", ch.ID, "error", err)
	}
	return c.record(ctx, ch, actor, CategoryWaiting, "returned to mapper")
}

// Reset puts a map back into TESTING and clears its votes.
func (c *Controller) Reset(ctx context.Context, ch *MapChannel, actor string) error {
	if err := c.guardCooldown(ch); err != nil {
		return err
	}
	if err := c.setState(ctx, ch, StateTesting, "", true); err != nil {
		return err
	}
	c.gate.Consume(ch.ID)
	if err := c.store.ClearWaitingSince(ctx, ch.ID); err != nil {
		logging.L().Error("reset: waiting-since clear failed", "channel", ch.ID, "error", err)
	}
	return c.record(ctx, ch, actor, CategoryReset, "testing restarted, votes cleared")
}

// Release marks a map as released and records its name so the title
// can never be reused. The channel then rides out the grace window
// before the sweep may archive it.
func (c *Controller) Release(ctx context.Context, ch *MapChannel, actor string) error {
	if ch.State == StateReleased {
		return nil
	}
	if err := c.guardCooldown(ch); err != nil {
		return err
	}
	if actor == "" {
		actor = c.cfg.SystemActor
	}
	if err := c.setState(ctx, ch, StateReleased, "", false); err != nil {
		return err
	}
	c.gate.Consume(ch.ID)
	if err := c.store.AddReleased(ctx, ch.Name); err != nil {
		logging.L().Error("release: name record failed", "map", ch.Filename(), "error", err)
	}
	if err := c.store.ClearWaitingSince(ctx, ch.ID); err != nil {
		logging.L().Error("release: waiting-since clear failed", "channel", ch.ID, "error", err)
	}
	grace := time.Now().UTC().Add(c.cfg.ReleaseGrace).Format("2006-01-02")
	return c.record(ctx, ch, actor, CategoryReleased,
		fmt.Sprintf("released; channel stays open for post-release feedback until %s", grace))
}

// HandleResubmission processes a new artifact arriving in an existing
// map channel. An upload by the designated mapper kicks the map back
// into active review: WAITING -> TESTING, READY -> RC. Uploads by
// anyone else are held until a verification reaction.
func (c *Controller) HandleResubmission(ctx context.Context, ch *MapChannel, actor string, sub *Submission) error {
	if actor != ch.MapperID {
		sub.SetState(SubmissionPending)
		ch.PendingSubmission = sub
		ch.PendingAuthor = actor
		c.notifier.Notify(Notification{
			ChannelID: ch.ID,
			Map:       ch.Filename(),
			Category:  CategoryUpdate,
			Actor:     actor,
			Text:      "upload by a non-mapper needs verification before it is accepted",
		})
		return nil
	}

	switch ch.State {
	case StateReleased:
		c.notifier.Notify(Notification{
			ChannelID: ch.ID,
			Map:       ch.Filename(),
			Category:  CategoryUpdate,
			Actor:     actor,
			Text:      "this map is released; post-release fixes go through an administrator",
		})
		return nil

	case StateWaiting:
		if err := c.guardCooldown(ch); err != nil {
			return err
		}
		if err := c.acceptUpload(ctx, ch, sub); err != nil {
			return err
		}
		if err := c.setState(ctx, ch, StateTesting, "", false); err != nil {
			return err
		}
		c.gate.Consume(ch.ID)
		if err := c.store.ClearWaitingSince(ctx, ch.ID); err != nil {
			logging.L().Error("resubmission: waiting-since clear failed", "channel", ch.ID, "error", err)
		}
		return c.record(ctx, ch, c.cfg.SystemActor, CategoryAutoReset, "mapper uploaded a new version, testing resumed")

	case StateReady:
		if err := c.guardCooldown(ch); err != nil {
			return err
		}
		if err := c.acceptUpload(ctx, ch, sub); err != nil {
			return err
		}
		// The system identity joins the vote list so the original
		// tester may confirm the new version alone.
		if err := c.setState(ctx, ch, StateRC, c.cfg.SystemActor, false); err != nil {
			return err
		}
		c.gate.Consume(ch.ID)
		return c.record(ctx, ch, c.cfg.SystemActor, CategoryAutoReset, "mapper uploaded a new version, back to release candidate")

	default:
		// TESTING, RC, DECLINED: accept the new version in place.
		if err := c.acceptUpload(ctx, ch, sub); err != nil {
			return err
		}
		return c.record(ctx, ch, actor, CategoryUpdate, "new map version uploaded")
	}
}

// ApproveSubmission accepts a held non-mapper upload after an explicit
// verification by someone other than the uploader.
func (c *Controller) ApproveSubmission(ctx context.Context, ch *MapChannel, approver string) error {
	sub := ch.PendingSubmission
	if sub == nil {
		return &RuleViolation{Reason: "no upload awaiting verification"}
	}
	if approver == ch.PendingAuthor {
		return &RuleViolation{Reason: "uploads must be verified by someone else"}
	}
	if err := c.acceptUpload(ctx, ch, sub); err != nil {
		return err
	}
	uploader := ch.PendingAuthor
	ch.PendingSubmission = nil
	ch.PendingAuthor = ""
	return c.record(ctx, ch, approver, CategoryUpdate,
		fmt.Sprintf("version uploaded by %s accepted", uploader))
}

func (c *Controller) acceptUpload(ctx context.Context, ch *MapChannel, sub *Submission) error {
	data, err := sub.Bytes(ctx)
	if err != nil {
		return err
	}
	if err := c.artifacts.Upload(ctx, "map", sub.Filename, data); err != nil {
		sub.SetState(SubmissionErrored)
		return fmt.Errorf("artifact upload: %w", err)
	}
	sub.SetState(SubmissionUploaded)
	ch.LastSubmission = sub
	sub.SetState(SubmissionProcessed)
	return nil
}

// --- field mutations ---

// mutate is the shared envelope for structural field edits: cooldown
// check, apply, retitle/retopic, consume, changelog.
func (c *Controller) mutate(ctx context.Context, ch *MapChannel, actor, category, text string, apply func()) error {
	if err := c.guardCooldown(ch); err != nil {
		return err
	}
	apply()
	if err := c.platform.UpdateTitle(ctx, ch.ID, ch.DisplayTitle()); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if err := c.platform.UpdateTopic(ctx, ch.ID, ch.Topic()); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	c.gate.Consume(ch.ID)
	return c.record(ctx, ch, actor, category, text)
}

func (c *Controller) Rename(ctx context.Context, ch *MapChannel, actor, newName string) error {
	filename := SanitizeName(newName)
	if filename == "" {
		return &ValidationError{Reason: "map name sanitizes to nothing"}
	}
	if dup := c.byFilename(filename); dup != nil && dup != ch {
		return &ValidationError{Reason: fmt.Sprintf("a map named %s is already in testing", filename)}
	}
	released, err := c.store.IsReleased(ctx, newName)
	if err != nil {
		return fmt.Errorf("released lookup: %w", err)
	}
	if released {
		return &ValidationError{Reason: fmt.Sprintf("a released map already owns the name %q", newName)}
	}
	old := ch.Name
	return c.mutate(ctx, ch, actor, CategoryRename, fmt.Sprintf("renamed %q to %q", old, newName), func() {
		ch.Name = newName
		ch.PreviewURL = previewBase + ch.Filename()
	})
}

func (c *Controller) ChangeMappers(ctx context.Context, ch *MapChannel, actor string, mappers []string) error {
	if len(mappers) == 0 {
		return &ValidationError{Reason: "at least one mapper is required"}
	}
	return c.mutate(ctx, ch, actor, CategoryMappers, "mappers set to "+JoinMappers(mappers), func() {
		ch.Mappers = mappers
	})
}

func (c *Controller) ChangeServer(ctx context.Context, ch *MapChannel, actor string, server Server) error {
	return c.mutate(ctx, ch, actor, CategoryServer, "server set to "+string(server), func() {
		ch.Server = server
	})
}

func (c *Controller) ChangeOwner(ctx context.Context, ch *MapChannel, actor, owner string) error {
	if owner == "" {
		return &ValidationError{Reason: "owner identity is required"}
	}
	return c.mutate(ctx, ch, actor, CategoryOwner, "ownership transferred to "+owner, func() {
		ch.MapperID = owner
	})
}
