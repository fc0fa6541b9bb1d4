package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

func (a *App) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot {
		return
	}

	att := mapAttachment(m.Message)
	if att == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if m.ChannelID == a.Cfg.SubmitChannelID {
		a.handleInitialSubmission(ctx, s, m, att)
		return
	}
	if ch, ok := a.Ctrl.Get(m.ChannelID); ok {
		a.handleResubmission(ctx, s, m, ch, att)
	}
}

func (a *App) handleInitialSubmission(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, att *discordgo.MessageAttachment) {
	if a.Bans.Contains(m.Author.ID) {
		logging.L().Info("submission refused, author banned", "author", m.Author.ID)
		_ = s.MessageReactionAdd(m.ChannelID, m.ID, "❌")
		return
	}

	header, _, _ := strings.Cut(m.Content, "\n")
	sub := maptesting.NewSubmission(att.Filename, m.Author.ID, fetchURL(att.URL))

	ch, err := a.Ctrl.SubmitInitial(ctx, header, sub)
	if err != nil {
		_ = s.MessageReactionAdd(m.ChannelID, m.ID, "❌")
		var verr *maptesting.ValidationError
		if errors.As(err, &verr) {
			_, _ = s.ChannelMessageSendReply(m.ChannelID, verr.Reason, m.Reference())
			return
		}
		logging.L().Error("submission failed", "file", att.Filename, "error", err)
		_, _ = s.ChannelMessageSendReply(m.ChannelID,
			"Something went wrong while processing the submission, please try again later.", m.Reference())
		return
	}

	_ = s.MessageReactionAdd(m.ChannelID, m.ID, "✅")
	_, _ = s.ChannelMessageSendReply(m.ChannelID,
		fmt.Sprintf("Testing channel created: <#%s>", ch.ID), m.Reference())
}

func (a *App) handleResubmission(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, ch *maptesting.MapChannel, att *discordgo.MessageAttachment) {
	sub := maptesting.NewSubmission(att.Filename, m.Author.ID, fetchURL(att.URL))

	if err := a.Ctrl.HandleResubmission(ctx, ch, m.Author.ID, sub); err != nil {
		_ = s.MessageReactionAdd(m.ChannelID, m.ID, "❌")
		var rl *maptesting.RateLimited
		if errors.As(err, &rl) {
			_, _ = s.ChannelMessageSendReply(m.ChannelID, rl.Error(), m.Reference())
			return
		}
		logging.L().Error("resubmission failed", "channel", m.ChannelID, "error", err)
		return
	}

	if ch.PendingSubmission == sub {
		// Held for verification: remember which message to watch.
		a.setPending(m.ChannelID, m.ID)
		_ = s.MessageReactionAdd(m.ChannelID, m.ID, "🔍")
		return
	}
	_ = s.MessageReactionAdd(m.ChannelID, m.ID, "✅")
}

func mapAttachment(m *discordgo.Message) *discordgo.MessageAttachment {
	for _, att := range m.Attachments {
		if strings.HasSuffix(att.Filename, ".map") {
			return att
		}
	}
	return nil
}

var attachmentHTTP = &http.Client{Timeout: 60 * time.Second}

func fetchURL(url string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		r, err := attachmentHTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer r.Body.Close()
		if r.StatusCode >= 400 {
			return nil, fmt.Errorf("GET %s: %s", url, r.Status)
		}
		return io.ReadAll(r.Body)
	}
}
