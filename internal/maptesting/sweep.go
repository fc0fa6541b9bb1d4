package maptesting

import (
	"context"
	"strings"
	"time"

	"github.com/roylee0704/gron"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

type SweepConfig struct {
	Interval            time.Duration
	RecentReleaseWindow time.Duration
	IdleWindow          time.Duration
	WaitingWindow       time.Duration
}

func (c *SweepConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.RecentReleaseWindow <= 0 {
		c.RecentReleaseWindow = 3 * 24 * time.Hour
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = 14 * 24 * time.Hour
	}
	if c.WaitingWindow <= 0 {
		c.WaitingWindow = 60 * 24 * time.Hour
	}
}

// Sweeper is the periodic archival job. It exports and removes map
// channels nobody is working on anymore. Deletion is gated on a
// successful export: a failed export keeps the channel alive and it is
// simply reconsidered on the next run.
type Sweeper struct {
	cfg      SweepConfig
	ctrl     *Controller
	store    Store
	platform Platform
	exporter Exporter
	feed     ReleaseFeed

	cron *gron.Cron
	now  func() time.Time
}

func NewSweeper(cfg SweepConfig, ctrl *Controller, store Store, platform Platform, exporter Exporter, feed ReleaseFeed) *Sweeper {
	cfg.applyDefaults()
	return &Sweeper{
		cfg:      cfg,
		ctrl:     ctrl,
		store:    store,
		platform: platform,
		exporter: exporter,
		feed:     feed,
		now:      time.Now,
	}
}

// Start schedules periodic runs until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	s.cron = gron.New()
	s.cron.AddFunc(gron.Every(s.cfg.Interval), func() {
		archived, err := s.RunOnce(ctx)
		if err != nil {
			logging.L().Error("archival sweep failed", "error", err)
			return
		}
		logging.L().Info("archival sweep finished", "archived", archived)
	})
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce evaluates every live channel against the idle/age criteria
// and archives the qualifying ones. Per-channel failures are logged
// and skipped so one bad channel never stalls the rest.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()

	// Without the feed we cannot tell which maps were just announced,
	// so do nothing rather than archive one prematurely.
	recent, err := s.feed.RecentReleases(ctx, now.Add(-s.cfg.RecentReleaseWindow))
	if err != nil {
		return 0, err
	}
	protected := make(map[string]struct{}, len(recent))
	for _, name := range recent {
		protected[strings.ToLower(SanitizeName(name))] = struct{}{}
	}

	archived := 0
	for _, ch := range s.ctrl.Channels() {
		select {
		case <-ctx.Done():
			return archived, ctx.Err()
		default:
		}

		switch ch.State {
		case StateTesting, StateRC, StateReady:
			continue
		}
		if _, ok := protected[strings.ToLower(ch.Filename())]; ok {
			continue
		}
		if ch.State == StateWaiting {
			since, ok, err := s.store.WaitingSince(ctx, ch.ID)
			if err != nil {
				logging.L().Error("sweep: waiting-since lookup failed", "channel", ch.ID, "error", err)
				continue
			}
			if !ok || now.Sub(since) < s.cfg.WaitingWindow {
				continue
			}
		}
		last, err := s.platform.LastActivity(ctx, ch.ID)
		if err != nil {
			logging.L().Error("sweep: activity lookup failed", "channel", ch.ID, "error", err)
			continue
		}
		if now.Sub(last) < s.cfg.IdleWindow {
			continue
		}

		if err := s.exporter.Export(ctx, ch); err != nil {
			logging.L().Error("sweep: export failed, keeping channel", "channel", ch.ID, "map", ch.Filename(), "error", err)
			continue
		}
		if err := s.platform.Delete(ctx, ch.ID); err != nil {
			logging.L().Error("sweep: channel delete failed", "channel", ch.ID, "error", err)
			continue
		}
		if err := s.store.DeleteChannel(ctx, ch.ID); err != nil {
			logging.L().Error("sweep: row cleanup failed", "channel", ch.ID, "error", err)
		}
		s.ctrl.Remove(ch.ID)
		archived++
		logging.L().Info("archived map channel", "channel", ch.ID, "map", ch.Filename(), "state", ch.State.String())
	}
	return archived, nil
}
