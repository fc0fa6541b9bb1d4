package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Exporter writes an archive bundle for a channel to the asset host.
// The sweep calls this before deleting anything; a failed upload keeps
// the channel alive.
type Exporter struct {
	artifacts maptesting.ArtifactStore
}

func New(artifacts maptesting.ArtifactStore) *Exporter {
	return &Exporter{artifacts: artifacts}
}

type bundle struct {
	ID         string        `json:"id"`
	ChannelID  string        `json:"channel_id"`
	Name       string        `json:"name"`
	Filename   string        `json:"filename"`
	Mappers    []string      `json:"mappers"`
	Server     string        `json:"server"`
	State      string        `json:"state"`
	Votes      []string      `json:"votes,omitempty"`
	Topic      string        `json:"topic"`
	ExportedAt time.Time     `json:"exported_at"`
	Changelog  []bundleEntry `json:"changelog"`
}

type bundleEntry struct {
	Time     time.Time `json:"time"`
	Actor    string    `json:"actor"`
	Category string    `json:"category"`
	Text     string    `json:"text"`
}

func (e *Exporter) Export(ctx context.Context, ch *maptesting.MapChannel) error {
	b := bundle{
		ID:         uuid.NewString(),
		ChannelID:  ch.ID,
		Name:       ch.Name,
		Filename:   ch.Filename(),
		Mappers:    ch.Mappers,
		Server:     string(ch.Server),
		State:      ch.State.String(),
		Votes:      ch.Votes,
		Topic:      ch.Topic(),
		ExportedAt: time.Now().UTC(),
	}
	for _, entry := range ch.Changelog.Entries() {
		b.Changelog = append(b.Changelog, bundleEntry(entry))
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", ch.Filename(), b.ID)
	if err := e.artifacts.Upload(ctx, "archive", name, data); err != nil {
		return fmt.Errorf("upload bundle: %w", err)
	}
	logging.L().Info("exported archive bundle", "map", ch.Filename(), "bundle", name, "entries", len(b.Changelog))
	return nil
}
