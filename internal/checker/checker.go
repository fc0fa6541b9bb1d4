package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Tool runs the external map checker binary. The artifact is piped to
// stdin; diagnostics come back on stdout. An empty stdout means the
// map is clean.
type Tool struct {
	path    string
	timeout time.Duration
}

func New(path string, timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Tool{path: path, timeout: timeout}
}

func (t *Tool) Check(ctx context.Context, data []byte) (string, error) {
	out, err := t.run(ctx, data, "check")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (t *Tool) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	return t.run(ctx, data, "optimize")
}

func (t *Tool) run(ctx context.Context, data []byte, mode string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.path, mode)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s %s timed out after %s", t.path, mode, t.timeout)
	}
	if err != nil {
		// The checker exits non-zero when it finds problems; that is a
		// diagnostic, not a process failure, as long as it wrote output.
		if mode == "check" && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		logging.L().Error("checker run failed",
			"mode", mode,
			"stderr", strings.TrimSpace(stderr.String()),
			"error", err,
		)
		return nil, fmt.Errorf("%s %s: %w", t.path, mode, err)
	}
	return stdout.Bytes(), nil
}
