package actions

import (
	"context"
	"log/slog"
)

// Registry maps action names to handlers. Handler errors are logged and
// swallowed so one failing tmux call never takes the loop down.
type Registry struct {
	handlers map[Name]Handler
	logger   *slog.Logger
}

// NewRegistry returns a registry pre-loaded with the built-in handlers.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: builtinHandlers(),
		logger:   logger,
	}
}

// Register installs or replaces a handler.
func (r *Registry) Register(name Name, h Handler) {
	r.handlers[name] = h
}

// Has reports whether name has a handler.
func (r *Registry) Has(name Name) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs the named action. Returns false when no handler exists or
// the handler failed.
func (r *Registry) Dispatch(ctx context.Context, name Name, actx *Context) bool {
	handler, ok := r.handlers[name]
	if !ok {
		r.logger.Warn("no handler registered for action", "action", name)
		return false
	}
	if err := handler(ctx, actx); err != nil {
		r.logger.Error("action handler failed", "action", name, "error", err)
		return false
	}
	return true
}
