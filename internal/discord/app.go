package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/discord/bans"
	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/config"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
	"github.com/murpii/ddnet-discordbot/internal/store"
)

type App struct {
	Session *discordgo.Session
	Cfg     config.Config
	Ctrl    *maptesting.Controller
	Store   *store.Store
	Host    *ChannelHost
	Bans    *bans.List

	// message id of the upload awaiting verification, per channel
	pendMu   sync.Mutex
	pendMsgs map[string]string
}

func NewApp(sess *discordgo.Session, cfg config.Config, ctrl *maptesting.Controller, st *store.Store, host *ChannelHost, bl *bans.List) *App {
	return &App{
		Session:  sess,
		Cfg:      cfg,
		Ctrl:     ctrl,
		Store:    st,
		Host:     host,
		Bans:     bl,
		pendMsgs: make(map[string]string),
	}
}

func (a *App) Register() error {
	a.Session.AddHandler(a.onReady)
	a.Session.AddHandler(a.onMessageCreate)
	a.Session.AddHandler(a.onReactionAdd)
	a.Session.AddHandler(a.onChannelDelete)
	a.Session.AddHandler(a.onInteraction)

	for _, c := range commandDefs() {
		if _, err := a.Session.ApplicationCommandCreate(a.Session.State.User.ID, a.Cfg.GuildID, c); err != nil {
			logging.L().Error("create command failed", "command", c.Name, "err", err)
			return err
		}
	}
	return nil
}

func (a *App) setPending(channelID, messageID string) {
	a.pendMu.Lock()
	a.pendMsgs[channelID] = messageID
	a.pendMu.Unlock()
}

func (a *App) takePending(channelID, messageID string) bool {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	if a.pendMsgs[channelID] != messageID {
		return false
	}
	delete(a.pendMsgs, channelID)
	return true
}

func (a *App) reply(i *discordgo.InteractionCreate, msg string, eph bool) {
	flags := discordgo.MessageFlags(0)
	if eph {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = a.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg, Flags: flags},
	})
}
