package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Client talks to the external asset host that persists map files and
// archive bundles.
type Client struct {
	http    *http.Client
	baseURL string
}

func New(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Upload(ctx context.Context, kind, name string, data []byte) error {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(kind), url.PathEscape(name))
	logging.L().Debug("assets: upload", "url", u, "bytes", len(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	r, err := c.http.Do(req)
	if err != nil {
		logging.L().Error("assets: upload failed", "url", u, "error", err)
		return err
	}
	defer r.Body.Close()

	if r.StatusCode >= 400 {
		b, _ := io.ReadAll(r.Body)
		return fmt.Errorf("PUT %s: %s: %s", u, r.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	u := fmt.Sprintf("%s/map/%s", c.baseURL, url.PathEscape(name))
	logging.L().Debug("assets: delete", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	r, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	if r.StatusCode >= 400 && r.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(r.Body)
		return fmt.Errorf("DELETE %s: %s: %s", u, r.Status, strings.TrimSpace(string(b)))
	}
	return nil
}
