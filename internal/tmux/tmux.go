// Package tmux wraps the tmux command-line interface. Every invocation is
// bounded by a timeout so a wedged tmux server cannot stall the event
// loop.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout marks a command killed by its deadline.
var ErrTimeout = errors.New("tmux command timed out")

// Runner executes one tmux command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CLI shells out to the tmux binary.
type CLI struct {
	timeout time.Duration
}

func New(timeout time.Duration) CLI {
	return CLI{timeout: timeout}
}

func (c CLI) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("tmux command must not be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %s after %s", ErrTimeout, args[0], c.timeout)
	}
	if err != nil {
		trimmed := strings.TrimSpace(stderr.String())
		if trimmed == "" {
			return "", fmt.Errorf("tmux %v failed: %w", args, err)
		}
		return "", fmt.Errorf("tmux %v failed: %w (%s)", args, err, trimmed)
	}
	return stdout.String(), nil
}

// SendKeys sends key names (Enter, Escape, C-c) to a pane. An empty
// target means the active pane.
func SendKeys(ctx context.Context, r Runner, target, keys string) error {
	args := []string{"send-keys"}
	if target != "" {
		args = append(args, "-t", target)
	}
	args = append(args, keys)
	_, err := r.Run(ctx, args...)
	return err
}

// SendLiteral types text into a pane verbatim, without key-name lookup.
// Used for transcript injection so spoken words never trigger bindings.
func SendLiteral(ctx context.Context, r Runner, target, text string) error {
	if text == "" {
		return nil
	}
	args := []string{"send-keys"}
	if target != "" {
		args = append(args, "-t", target)
	}
	args = append(args, "-l", text)
	_, err := r.Run(ctx, args...)
	return err
}

// CurrentPane returns the active pane ID, e.g. "%0".
func CurrentPane(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "display-message", "-p", "#{pane_id}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentSession returns the attached session name.
func CurrentSession(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
