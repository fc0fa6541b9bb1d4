package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/murpii/ddnet-discordbot/internal/archive"
	"github.com/murpii/ddnet-discordbot/internal/assets"
	"github.com/murpii/ddnet-discordbot/internal/checker"
	"github.com/murpii/ddnet-discordbot/internal/discord"
	"github.com/murpii/ddnet-discordbot/internal/discord/bans"
	"github.com/murpii/ddnet-discordbot/internal/maptesting"
	"github.com/murpii/ddnet-discordbot/internal/releases"
	"github.com/murpii/ddnet-discordbot/internal/shared/config"
	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
	"github.com/murpii/ddnet-discordbot/internal/store"
	"github.com/murpii/ddnet-discordbot/internal/websocket"
)

func main() {
	_ = godotenv.Load()
	logging.BootstrapFromEnv()

	cfg := config.Load()
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN not set")
	}

	// Discord session
	sess, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("discord init: %v", err)
	}
	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	if err := sess.Open(); err != nil {
		log.Fatalf("discord open: %v", err)
	}

	bl, err := bans.Load(cfg.BansPath)
	if err != nil {
		log.Printf("ban list load failed: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	artifacts := assets.New(cfg.AssetBaseURL)
	tool := checker.New(cfg.CheckerPath, cfg.CheckerTimeout)
	host := discord.NewChannelHost(sess, cfg)

	hub := websocket.NewHub()
	notifier := maptesting.MultiNotifier{
		discord.NewNotifier(sess, cfg.WebhookURL),
		websocket.NewNotifier(hub),
	}

	ctrl := maptesting.NewController(maptesting.Config{
		CooldownWindow: cfg.CooldownWindow,
		CooldownBudget: cfg.CooldownBudget,
		SystemActor:    cfg.SystemActor,
		ReleaseGrace:   cfg.ReleaseGrace,
	}, st, host, artifacts, tool, notifier)

	sweeper := maptesting.NewSweeper(maptesting.SweepConfig{
		Interval:            cfg.SweepInterval,
		RecentReleaseWindow: cfg.RecentReleaseWindow,
		IdleWindow:          cfg.IdleWindow,
		WaitingWindow:       cfg.WaitingWindow,
	}, ctrl, st, host, archive.New(artifacts), releases.New(cfg.ReleasesFeedURL))

	app := discord.NewApp(sess, cfg, ctrl, st, host, bl)
	if err := app.Register(); err != nil {
		log.Fatalf("register: %v", err)
	}

	wsServer := websocket.NewServer(cfg.WSAddr, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Fatalf("websocket server error: %v", err)
		}
	}()

	log.Println("Bot running. Ctrl+C to exit.")
	<-ctx.Done()

	sweeper.Stop()
	_ = sess.Close()
	_ = st.Close()
	log.Println("Shutdown.")
}
