package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// onReactionAdd accepts a held non-mapper upload once someone other
// than the uploader reacts with the verification mark.
func (a *App) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == s.State.User.ID || r.Emoji.Name != "✅" {
		return
	}
	ch, ok := a.Ctrl.Get(r.ChannelID)
	if !ok || ch.PendingSubmission == nil {
		return
	}
	if !a.takePending(r.ChannelID, r.MessageID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := a.Ctrl.ApproveSubmission(ctx, ch, r.UserID); err != nil {
		logging.L().Warn("upload verification failed", "channel", r.ChannelID, "error", err)
		// Let the next reaction retry.
		a.setPending(r.ChannelID, r.MessageID)
		return
	}
	_ = s.MessageReactionAdd(r.ChannelID, r.MessageID, "☑")
}
