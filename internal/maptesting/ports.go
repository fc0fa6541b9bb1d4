package maptesting

import (
	"context"
	"time"
)

// Store is the persistence boundary: waiting-since timestamps,
// released map names and changelog rows. Single-statement calls only.
type Store interface {
	SetWaitingSince(ctx context.Context, channelID string, since time.Time) error
	WaitingSince(ctx context.Context, channelID string) (time.Time, bool, error)
	ClearWaitingSince(ctx context.Context, channelID string) error

	AddReleased(ctx context.Context, name string) error
	IsReleased(ctx context.Context, name string) (bool, error)

	AppendChangelog(ctx context.Context, channelID string, e Entry) error
	ChangelogFor(ctx context.Context, channelID string) ([]Entry, error)

	// DeleteChannel removes every row belonging to an archived channel.
	DeleteChannel(ctx context.Context, channelID string) error
}

// ArtifactStore persists map and archive artifacts on the asset host.
type ArtifactStore interface {
	Upload(ctx context.Context, kind, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// Checker inspects a map artifact for structural problems. Check
// returns a diagnostics blob; empty means clean.
type Checker interface {
	Check(ctx context.Context, data []byte) (string, error)
	Optimize(ctx context.Context, data []byte) ([]byte, error)
}

// Notification is the plain structured fact handed to delivery
// mechanisms. No platform formatting here.
type Notification struct {
	ChannelID string `json:"channel_id"`
	Map       string `json:"map"`
	Category  string `json:"category"`
	Actor     string `json:"actor,omitempty"`
	Text      string `json:"text"`
}

type Notifier interface {
	Notify(n Notification)
}

// MultiNotifier fans a notification out to several delivery surfaces.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n Notification) {
	for _, nt := range m {
		nt.Notify(n)
	}
}

// Platform is the external channel resource. Only the operations the
// controller actually needs, as named methods.
type Platform interface {
	CreateChannel(ctx context.Context, title, topic string, bucket Bucket) (string, error)
	UpdateTitle(ctx context.Context, channelID, title string) error
	UpdateTopic(ctx context.Context, channelID, topic string) error
	Relocate(ctx context.Context, channelID string, bucket Bucket, position int) error
	LastActivity(ctx context.Context, channelID string) (time.Time, error)
	Delete(ctx context.Context, channelID string) error
}

// Exporter builds the archive bundle for a channel. Archival deletes
// only after Export returns nil.
type Exporter interface {
	Export(ctx context.Context, ch *MapChannel) error
}

// ReleaseFeed lists map names announced as released since a cutoff.
type ReleaseFeed interface {
	RecentReleases(ctx context.Context, since time.Time) ([]string, error)
}
