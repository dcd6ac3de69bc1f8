package actions

import (
	"context"

	"padmux/internal/tmux"
)

// Context is the runtime state handed to every action handler: the tmux
// runner plus the pane and session that were active when the chord fired.
type Context struct {
	Tmux    tmux.Runner
	Pane    string
	Session string
}

// RunTmux executes a tmux command through the bound runner.
func (c *Context) RunTmux(ctx context.Context, args ...string) error {
	_, err := c.Tmux.Run(ctx, args...)
	return err
}

// SendKeys sends key names to the pane captured in this context.
func (c *Context) SendKeys(ctx context.Context, keys string) error {
	return tmux.SendKeys(ctx, c.Tmux, c.Pane, keys)
}
