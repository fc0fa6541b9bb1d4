package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

func (a *App) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logging.L().Info("ready", "user", r.User.Username)

	go func() {
		n, err := a.Resync(context.Background())
		if err != nil {
			logging.L().Error("startup resync failed", "error", err)
			return
		}
		logging.L().Info("startup resync done", "channels", n)
	}()
}
