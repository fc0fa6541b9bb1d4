package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Client reads the public release announcement feed. The archival
// sweep uses it to protect freshly announced maps from being archived.
type Client struct {
	http    *http.Client
	feedURL string
}

func New(feedURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		feedURL: feedURL,
	}
}

type feedItem struct {
	Name       string `json:"name"`
	ReleasedAt int64  `json:"released_at"`
}

func (c *Client) RecentReleases(ctx context.Context, since time.Time) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}

	logging.L().Debug("releases: GET", "url", c.feedURL)
	r, err := c.http.Do(req)
	if err != nil {
		logging.L().Error("releases: GET failed", "url", c.feedURL, "error", err)
		return nil, err
	}
	defer r.Body.Close()

	if r.StatusCode >= 400 {
		b, _ := io.ReadAll(r.Body)
		return nil, fmt.Errorf("GET %s: %s: %s", c.feedURL, r.Status, strings.TrimSpace(string(b)))
	}

	var items []feedItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	var names []string
	for _, it := range items {
		if time.Unix(it.ReleasedAt, 0).After(since) {
			names = append(names, it.Name)
		}
	}
	return names, nil
}
