package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/murpii/ddnet-discordbot/internal/archive"
	"github.com/murpii/ddnet-discordbot/internal/assets"
	"github.com/murpii/ddnet-discordbot/internal/discord"
	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/releases"
	"github.com/murpii/ddnet-discordbot/internal/shared/config"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
	"github.com/murpii/ddnet-discordbot/internal/store"
)

// Runs a single archival sweep over the guild's map channels and
// exits. Meant for cron or manual cleanup; the bot runs the same sweep
// on its own schedule.
func main() {
	dryRun := flag.Bool("dry-run", false, "report what would be archived without touching anything")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	_ = godotenv.Load()
	logging.BootstrapFromEnv()

	cfg := config.Load()
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN not set")
	}

	// REST only, no gateway connection needed for a sweep.
	sess, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord init: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	host := discord.NewChannelHost(sess, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ctrl := maptesting.NewController(maptesting.Config{
		SystemActor: cfg.SystemActor,
	}, st, host, nil, nil, nil)

	n, err := loadChannels(ctx, sess, host, ctrl, cfg.GuildID)
	if err != nil {
		log.Fatalf("load channels: %v", err)
	}
	log.Printf("Loaded %d map channel(s)", n)

	var (
		sweepStore    maptesting.Store    = st
		sweepPlatform maptesting.Platform = host
		exporter      maptesting.Exporter = archive.New(assets.New(cfg.AssetBaseURL))
	)
	if *dryRun {
		log.Println("Dry run: nothing will be exported or deleted")
		sweepStore = dryStore{st}
		sweepPlatform = dryPlatform{host}
		exporter = dryExporter{}
	}

	sweeper := maptesting.NewSweeper(maptesting.SweepConfig{
		RecentReleaseWindow: cfg.RecentReleaseWindow,
		IdleWindow:          cfg.IdleWindow,
		WaitingWindow:       cfg.WaitingWindow,
	}, ctrl, sweepStore, sweepPlatform, exporter, releases.New(cfg.ReleasesFeedURL))

	archived, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Fatalf("sweep: %v", err)
	}
	log.Printf("Done. Archived %d channel(s).", archived)
}

func loadChannels(ctx context.Context, sess *discordgo.Session, host *discord.ChannelHost, ctrl *maptesting.Controller, guildID string) (int, error) {
	channels, err := sess.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, dc := range channels {
		if dc.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		bucket, ok := host.BucketForCategory(dc.ParentID)
		if !ok {
			continue
		}
		ch, err := maptesting.ParseTopic(dc.ID, dc.Topic)
		if err != nil {
			if errors.Is(err, maptesting.ErrMalformedTopic) {
				log.Printf("SKIP: malformed topic in #%s (%s)", dc.Name, dc.ID)
				continue
			}
			return n, err
		}
		state, err := maptesting.StateFromTitle(dc.Name, bucket)
		if err != nil {
			log.Printf("SKIP: unrecognized title %q (%s)", dc.Name, dc.ID)
			continue
		}
		ch.State = state
		ctrl.Register(ch)
		n++
	}
	return n, nil
}

// Dry-run stand-ins. Reads pass through, writes are dropped.

type dryStore struct{ *store.Store }

func (dryStore) DeleteChannel(ctx context.Context, channelID string) error { return nil }

type dryPlatform struct{ *discord.ChannelHost }

func (dryPlatform) Delete(ctx context.Context, channelID string) error {
	log.Printf("DRY: would delete channel %s", channelID)
	return nil
}

type dryExporter struct{}

func (dryExporter) Export(ctx context.Context, ch *maptesting.MapChannel) error {
	log.Printf("DRY: would export %s (%s)", ch.Filename(), ch.State)
	return nil
}
