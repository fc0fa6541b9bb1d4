package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/config"
)

// ChannelHost adapts Discord guild channels to the controller's
// platform boundary. Buckets map to the three configured categories.
type ChannelHost struct {
	s   *discordgo.Session
	cfg config.Config
}

func NewChannelHost(s *discordgo.Session, cfg config.Config) *ChannelHost {
	return &ChannelHost{s: s, cfg: cfg}
}

func (h *ChannelHost) categoryID(b maptesting.Bucket) string {
	switch b {
	case maptesting.BucketActive:
		return h.cfg.ActiveCategoryID
	case maptesting.BucketWaiting:
		return h.cfg.WaitingCategoryID
	default:
		return h.cfg.EvaluatedCategoryID
	}
}

// BucketForCategory is the inverse mapping, used when reconstructing
// the registry from existing guild channels.
func (h *ChannelHost) BucketForCategory(categoryID string) (maptesting.Bucket, bool) {
	switch categoryID {
	case h.cfg.ActiveCategoryID:
		return maptesting.BucketActive, true
	case h.cfg.WaitingCategoryID:
		return maptesting.BucketWaiting, true
	case h.cfg.EvaluatedCategoryID:
		return maptesting.BucketEvaluated, true
	}
	return 0, false
}

func (h *ChannelHost) CreateChannel(ctx context.Context, title, topic string, bucket maptesting.Bucket) (string, error) {
	ch, err := h.s.GuildChannelCreateComplex(h.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:     title,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    topic,
		ParentID: h.categoryID(bucket),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (h *ChannelHost) UpdateTitle(ctx context.Context, channelID, title string) error {
	_, err := h.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: title}, discordgo.WithContext(ctx))
	return err
}

func (h *ChannelHost) UpdateTopic(ctx context.Context, channelID, topic string) error {
	_, err := h.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: topic}, discordgo.WithContext(ctx))
	return err
}

func (h *ChannelHost) Relocate(ctx context.Context, channelID string, bucket maptesting.Bucket, position int) error {
	_, err := h.s.ChannelEdit(channelID, &discordgo.ChannelEdit{
		ParentID: h.categoryID(bucket),
		Position: &position,
	}, discordgo.WithContext(ctx))
	return err
}

func (h *ChannelHost) LastActivity(ctx context.Context, channelID string) (time.Time, error) {
	msgs, err := h.s.ChannelMessages(channelID, 1, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return time.Time{}, fmt.Errorf("channel history: %w", err)
	}
	if len(msgs) == 0 {
		// Empty channel: fall back to its creation time.
		return discordgo.SnowflakeTimestamp(channelID)
	}
	return msgs[0].Timestamp, nil
}

func (h *ChannelHost) Delete(ctx context.Context, channelID string) error {
	_, err := h.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}
