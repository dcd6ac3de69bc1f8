// Package status surfaces daemon state in the tmux window title, e.g.
// "[padmux] listening...". Failures are logged and ignored: status is
// cosmetic and must never affect dispatch.
package status

import (
	"context"
	"log/slog"
	"sync"

	"padmux/internal/tmux"
)

const prefix = "[padmux]"

// Manager renames the tmux window to reflect the current state and
// restores automatic renaming when cleared.
type Manager struct {
	tmux   tmux.Runner
	logger *slog.Logger
	target string

	mu      sync.Mutex
	current string
}

// NewManager scopes status updates to a window target ("session:window",
// empty for the current window).
func NewManager(runner tmux.Runner, logger *slog.Logger, target string) *Manager {
	return &Manager{tmux: runner, logger: logger, target: target}
}

// Set displays a status message. Repeats of the current message are
// skipped to avoid churning tmux.
func (m *Manager) Set(ctx context.Context, message string) {
	full := prefix + " " + message
	m.mu.Lock()
	if m.current == full {
		m.mu.Unlock()
		return
	}
	m.current = full
	m.mu.Unlock()

	m.update(ctx, full)
}

// Clear removes the status message and hands the window name back to tmux.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()

	m.update(ctx, "")
}

func (m *Manager) update(ctx context.Context, text string) {
	renameMode := "on"
	if text != "" {
		renameMode = "off"
	}

	args := []string{"set-window-option"}
	if m.target != "" {
		args = append(args, "-t", m.target)
	}
	args = append(args, "automatic-rename", renameMode)
	if _, err := m.tmux.Run(ctx, args...); err != nil {
		m.logger.Debug("status update failed", "error", err)
		return
	}

	if text == "" {
		return
	}
	args = []string{"rename-window"}
	if m.target != "" {
		args = append(args, "-t", m.target)
	}
	args = append(args, text)
	if _, err := m.tmux.Run(ctx, args...); err != nil {
		m.logger.Debug("status update failed", "error", err)
	}
}
