package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Resync rebuilds the in-memory registry from the guild's channel
// topics. Channels outside the three testing categories are ignored,
// malformed topics are logged and skipped so one broken channel never
// blocks the rest.
func (a *App) Resync(ctx context.Context) (int, error) {
	channels, err := a.Session.GuildChannels(a.Cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}

	var n int
	for _, dc := range channels {
		if dc.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		bucket, ok := a.Host.BucketForCategory(dc.ParentID)
		if !ok {
			continue
		}

		ch, err := maptesting.ParseTopic(dc.ID, dc.Topic)
		if err != nil {
			if errors.Is(err, maptesting.ErrMalformedTopic) {
				logging.L().Warn("skipping channel with malformed topic", "channel", dc.ID, "name", dc.Name, "error", err)
				continue
			}
			return n, err
		}

		state, err := maptesting.StateFromTitle(dc.Name, bucket)
		if err != nil {
			logging.L().Warn("skipping channel with unrecognized title", "channel", dc.ID, "name", dc.Name, "error", err)
			continue
		}
		ch.State = state

		entries, err := a.Store.ChangelogFor(ctx, dc.ID)
		if err != nil {
			logging.L().Error("changelog restore failed", "channel", dc.ID, "error", err)
		}
		for _, e := range entries {
			ch.Changelog.Append(e)
		}

		a.Ctrl.Register(ch)
		n++
	}

	logging.L().Info("registry resynced", "channels", n)
	return n, nil
}
