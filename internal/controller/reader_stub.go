//go:build !linux

package controller

import (
	"fmt"
	"log/slog"

	"padmux/internal/config"
)

// Open is Linux-only; the evdev interface does not exist elsewhere.
func Open(cfg config.ControllerConfig, logger *slog.Logger) (*Reader, error) {
	return nil, fmt.Errorf("controller input requires Linux evdev: %w", ErrControllerNotFound)
}

// Find is Linux-only; see Open.
func Find(devicePath string) (string, error) {
	return "", fmt.Errorf("controller input requires Linux evdev: %w", ErrControllerNotFound)
}
