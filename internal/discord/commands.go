package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

func commandDefs() []*discordgo.ApplicationCommand {
	var staffPerm int64 = discordgo.PermissionManageChannels
	var adminPerm int64 = discordgo.PermissionAdministrator

	serverChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(maptesting.Servers()))
	for _, srv := range maptesting.Servers() {
		serverChoices = append(serverChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  string(srv),
			Value: string(srv),
		})
	}

	return []*discordgo.ApplicationCommand{
		{Name: "ready", Description: "Vote the map towards release", DefaultMemberPermissions: &staffPerm},
		{Name: "decline", Description: "Decline the map", DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason (omit to stay anonymous)"},
			}},
		{Name: "waiting", Description: "Return the map to its mapper", DefaultMemberPermissions: &staffPerm},
		{Name: "reset", Description: "Restart testing and clear votes", DefaultMemberPermissions: &staffPerm},
		{Name: "release", Description: "Mark the map as released", DefaultMemberPermissions: &adminPerm},
		{Name: "rename", Description: "Rename the map", DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "New map name", Required: true},
			}},
		{Name: "mappers", Description: "Set the mapper list", DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "mappers", Description: "Comma-separated mapper names", Required: true},
			}},
		{Name: "server", Description: "Set the server category", DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "server", Description: "Server category", Required: true, Choices: serverChoices},
			}},
		{Name: "owner", Description: "Transfer map ownership", DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "New owner", Required: true},
			}},
		{Name: "changelog", Description: "Show the map's changelog",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number (latest if omitted)"},
			}},
		{Name: "resync", Description: "Rebuild the registry from channel topics", DefaultMemberPermissions: &adminPerm},
	}
}

// channelOp looks up the map channel of the interaction and runs op,
// translating the typed domain errors into replies.
func (a *App) channelOp(i *discordgo.InteractionCreate, op func(ctx context.Context, ch *maptesting.MapChannel, actor string) error, done string) {
	ch, ok := a.Ctrl.Get(i.ChannelID)
	if !ok {
		a.reply(i, "This is not a map testing channel.", true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err := op(ctx, ch, i.Member.User.ID)
	if err == nil {
		a.reply(i, done, false)
		return
	}

	var (
		rule *maptesting.RuleViolation
		rl   *maptesting.RateLimited
		scf  *maptesting.StructuralCheckFailure
		verr *maptesting.ValidationError
	)
	switch {
	case errors.As(err, &rule):
		a.reply(i, rule.Reason, true)
	case errors.As(err, &rl):
		a.reply(i, fmt.Sprintf("Too many channel edits, try again %s.", humanize.Time(time.Now().Add(rl.RetryAfter))), true)
	case errors.As(err, &scf):
		a.reply(i, "The map checker found problems:\n```\n"+scf.Diagnostics+"\n```", false)
	case errors.As(err, &verr):
		a.reply(i, verr.Reason, true)
	default:
		logging.L().Error("command failed", "command", i.ApplicationCommandData().Name, "channel", i.ChannelID, "error", err)
		a.reply(i, "Internal error, please try again later.", true)
	}
}

func (a *App) handleReady(i *discordgo.InteractionCreate) {
	a.channelOp(i, a.Ctrl.AdvanceReady, "Vote recorded.")
}

func (a *App) handleDecline(i *discordgo.InteractionCreate) {
	reason := stringOption(i, "reason")
	a.channelOp(i, func(ctx context.Context, ch *maptesting.MapChannel, actor string) error {
		return a.Ctrl.Decline(ctx, ch, actor, reason)
	}, "Map declined.")
}

func (a *App) handleWaiting(i *discordgo.InteractionCreate) {
	a.channelOp(i, a.Ctrl.SendToWaiting, "Map returned to its mapper.")
}

func (a *App) handleReset(i *discordgo.InteractionCreate) {
	a.channelOp(i, a.Ctrl.Reset, "Testing restarted.")
}

func (a *App) handleRelease(i *discordgo.InteractionCreate) {
	a.channelOp(i, a.Ctrl.Release, "Map released. 🆙")
}

func (a *App) handleRename(i *discordgo.InteractionCreate) {
	name := stringOption(i, "name")
	a.channelOp(i, func(ctx context.Context, ch *maptesting.MapChannel, actor string) error {
		return a.Ctrl.Rename(ctx, ch, actor, name)
	}, fmt.Sprintf("Renamed to %q.", name))
}

func (a *App) handleMappers(i *discordgo.InteractionCreate) {
	var mappers []string
	for _, p := range strings.Split(stringOption(i, "mappers"), ",") {
		if m := strings.TrimSpace(p); m != "" {
			mappers = append(mappers, m)
		}
	}
	a.channelOp(i, func(ctx context.Context, ch *maptesting.MapChannel, actor string) error {
		return a.Ctrl.ChangeMappers(ctx, ch, actor, mappers)
	}, "Mappers updated to "+maptesting.JoinMappers(mappers)+".")
}

func (a *App) handleServer(i *discordgo.InteractionCreate) {
	srv, err := maptesting.ParseServer(stringOption(i, "server"))
	if err != nil {
		a.reply(i, err.Error(), true)
		return
	}
	a.channelOp(i, func(ctx context.Context, ch *maptesting.MapChannel, actor string) error {
		return a.Ctrl.ChangeServer(ctx, ch, actor, srv)
	}, "Server set to "+string(srv)+".")
}

func (a *App) handleOwner(i *discordgo.InteractionCreate) {
	user := userOption(i, "user", a.Session)
	if user == nil {
		a.reply(i, "Provide a user.", true)
		return
	}
	a.channelOp(i, func(ctx context.Context, ch *maptesting.MapChannel, actor string) error {
		return a.Ctrl.ChangeOwner(ctx, ch, actor, user.ID)
	}, fmt.Sprintf("Ownership transferred to <@%s>.", user.ID))
}

func (a *App) handleChangelog(i *discordgo.InteractionCreate) {
	ch, ok := a.Ctrl.Get(i.ChannelID)
	if !ok {
		a.reply(i, "This is not a map testing channel.", true)
		return
	}
	pages := ch.Changelog.PageCount()
	if pages == 0 {
		a.reply(i, "No changelog entries yet.", true)
		return
	}
	page := pages - 1
	if n, ok := intOption(i, "page"); ok {
		page = int(n) - 1
	}
	entries := ch.Changelog.Page(page)
	if len(entries) == 0 {
		a.reply(i, fmt.Sprintf("No such page, the changelog has %d page(s).", pages), true)
		return
	}
	a.reply(i, fmt.Sprintf("Changelog page %d/%d:\n```\n%s\n```", page+1, pages, maptesting.RenderPage(entries)), false)
}

func (a *App) handleResync(i *discordgo.InteractionCreate) {
	if err := a.Session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		var out string
		n, err := a.Resync(ctx)
		if err != nil {
			out = "Resync failed: " + err.Error()
		} else {
			out = fmt.Sprintf("Resynced %d map channel(s).", n)
		}
		_, _ = a.Session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &out})
	}()
}

// --- option helpers ---

func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == name {
			return strings.TrimSpace(o.StringValue())
		}
	}
	return ""
}

func intOption(i *discordgo.InteractionCreate, name string) (int64, bool) {
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == name {
			return o.IntValue(), true
		}
	}
	return 0, false
}

func userOption(i *discordgo.InteractionCreate, name string, s *discordgo.Session) *discordgo.User {
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == name {
			return o.UserValue(s)
		}
	}
	return nil
}
