package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DiscordToken string
	GuildID      string

	// Map submissions arrive here; live map channels are filed under
	// the three bucket categories below.
	SubmitChannelID     string
	ActiveCategoryID    string
	WaitingCategoryID   string
	EvaluatedCategoryID string

	DBPath     string
	WSAddr     string
	WebhookURL string
	BansPath   string

	CheckerPath    string
	CheckerTimeout time.Duration

	AssetBaseURL    string
	ReleasesFeedURL string

	SystemActor    string
	CooldownWindow time.Duration
	CooldownBudget int

	SweepInterval       time.Duration
	RecentReleaseWindow time.Duration
	IdleWindow          time.Duration
	WaitingWindow       time.Duration
	ReleaseGrace        time.Duration
}

func Load() Config {
	return Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		GuildID:      os.Getenv("GUILD_ID"),

		SubmitChannelID:     os.Getenv("SUBMIT_CHANNEL_ID"),
		ActiveCategoryID:    os.Getenv("ACTIVE_CATEGORY_ID"),
		WaitingCategoryID:   os.Getenv("WAITING_CATEGORY_ID"),
		EvaluatedCategoryID: os.Getenv("EVALUATED_CATEGORY_ID"),

		DBPath:     envDefault("DB_PATH", "testing.db"),
		WSAddr:     envDefault("WS_ADDR", ":8080"),
		WebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		BansPath:   envDefault("BANS_PATH", "testing_bans.txt"),

		CheckerPath:    envDefault("CHECKER_PATH", "map_checker"),
		CheckerTimeout: envDuration("CHECKER_TIMEOUT", 90*time.Second),

		AssetBaseURL:    envDefault("ASSET_BASE_URL", "https://assets.ddnet.org"),
		ReleasesFeedURL: envDefault("RELEASES_FEED_URL", "https://ddnet.org/releases/feed.json"),

		SystemActor:    envDefault("SYSTEM_ACTOR", "testbot"),
		CooldownWindow: envDuration("COOLDOWN_WINDOW", 700*time.Second),
		CooldownBudget: envInt("COOLDOWN_BUDGET", 2),

		SweepInterval:       envDuration("SWEEP_INTERVAL", time.Hour),
		RecentReleaseWindow: envDuration("RECENT_RELEASE_WINDOW", 3*24*time.Hour),
		IdleWindow:          envDuration("IDLE_WINDOW", 14*24*time.Hour),
		WaitingWindow:       envDuration("WAITING_WINDOW", 60*24*time.Hour),
		ReleaseGrace:        envDuration("RELEASE_GRACE", 14*24*time.Hour),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
