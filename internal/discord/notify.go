package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rotaria-smp/discordwebhook"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

var categoryColors = map[string]int{
	maptesting.CategorySubmitted: 0x3B82F6,
	maptesting.CategoryRC:        0xF59E0B,
	maptesting.CategoryReady:     0x22C55E,
	maptesting.CategoryDeclined:  0xEF4444,
	maptesting.CategoryWaiting:   0x64748B,
	maptesting.CategoryReleased:  0xA855F7,
}

// Notifier posts lifecycle notifications into the map channel and
// announces releases through the configured webhook.
type Notifier struct {
	s          *discordgo.Session
	webhookURL string
}

func NewNotifier(s *discordgo.Session, webhookURL string) *Notifier {
	return &Notifier{s: s, webhookURL: webhookURL}
}

func (n *Notifier) Notify(note maptesting.Notification) {
	color, ok := categoryColors[note.Category]
	if !ok {
		color = 0x94A3B8
	}
	embed := &discordgo.MessageEmbed{
		Title:       note.Map + " — " + note.Category,
		Description: note.Text,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if note.Actor != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "by " + note.Actor}
	}
	if _, err := n.s.ChannelMessageSendEmbed(note.ChannelID, embed); err != nil {
		logging.L().Error("notify: embed send failed", "channel", note.ChannelID, "error", err)
	}

	if note.Category == maptesting.CategoryReleased {
		n.announceRelease(note)
	}
}

func (n *Notifier) announceRelease(note maptesting.Notification) {
	if n.webhookURL == "" {
		logging.L().Debug("notify: webhook URL empty, skipping release announce")
		return
	}
	content := "🆙 **" + note.Map + "** has been released! " + note.Text
	username := "Map Testing"
	flag := discordwebhook.MessageFlagSuppressNotifications
	msg := discordwebhook.Message{
		Content:  &content,
		Username: &username,
		Flags:    &flag,
	}
	if err := discordwebhook.SendMessage(n.webhookURL, msg); err != nil {
		logging.L().Error("notify: release webhook failed", "map", note.Map, "error", err)
	}
}
