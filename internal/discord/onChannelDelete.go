package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// onChannelDelete evicts channels removed out-of-band (manual staff
// deletion) so the registry never holds a dead entry.
func (a *App) onChannelDelete(s *discordgo.Session, ev *discordgo.ChannelDelete) {
	if _, ok := a.Ctrl.Get(ev.ID); !ok {
		return
	}
	a.Ctrl.Remove(ev.ID)
	if err := a.Store.DeleteChannel(context.Background(), ev.ID); err != nil {
		logging.L().Error("channel delete cleanup failed", "channel", ev.ID, "error", err)
	}
	logging.L().Info("map channel removed externally", "channel", ev.ID)
}
