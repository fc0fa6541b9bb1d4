package discord

import (
	"github.com/bwmarrin/discordgo"
)

func (a *App) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "ready":
		a.handleReady(i)
	case "decline":
		a.handleDecline(i)
	case "waiting":
		a.handleWaiting(i)
	case "reset":
		a.handleReset(i)
	case "release":
		a.handleRelease(i)
	case "rename":
		a.handleRename(i)
	case "mappers":
		a.handleMappers(i)
	case "server":
		a.handleServer(i)
	case "owner":
		a.handleOwner(i)
	case "changelog":
		a.handleChangelog(i)
	case "resync":
		a.handleResync(i)
	}
}
