package actions

import "context"

// Handler executes one action against a captured tmux context.
type Handler func(ctx context.Context, actx *Context) error

func switchPane(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "select-pane", "-t", ":.+")
}

func switchPaneDir(flag string) Handler {
	return func(ctx context.Context, actx *Context) error {
		return actx.RunTmux(ctx, "select-pane", flag)
	}
}

func switchWindowNext(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "next-window")
}

func switchWindowPrev(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "previous-window")
}

func sendKeys(keys string) Handler {
	return func(ctx context.Context, actx *Context) error {
		return actx.SendKeys(ctx, keys)
	}
}

func scrollUp(ctx context.Context, actx *Context) error {
	if err := actx.RunTmux(ctx, "copy-mode"); err != nil {
		return err
	}
	return actx.RunTmux(ctx, "send-keys", "-X", "scroll-up")
}

func scrollDown(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "send-keys", "-X", "scroll-down")
}

func copyMode(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "copy-mode")
}

func paste(ctx context.Context, actx *Context) error {
	return actx.RunTmux(ctx, "paste-buffer")
}

// noop backs ptt_start/ptt_stop, which the dispatch loop intercepts
// before the registry ever sees them.
func noop(context.Context, *Context) error { return nil }

func builtinHandlers() map[Name]Handler {
	return map[Name]Handler{
		SwitchPane:       switchPane,
		SwitchPaneUp:     switchPaneDir("-U"),
		SwitchPaneDown:   switchPaneDir("-D"),
		SwitchPaneLeft:   switchPaneDir("-L"),
		SwitchPaneRight:  switchPaneDir("-R"),
		SwitchWindowNext: switchWindowNext,
		SwitchWindowPrev: switchWindowPrev,
		SendEnter:        sendKeys("Enter"),
		SendEscape:       sendKeys("Escape"),
		SendCtrlC:        sendKeys("C-c"),
		Confirm:          sendKeys("Enter"),
		Cancel:           sendKeys("Escape"),
		ScrollUp:         scrollUp,
		ScrollDown:       scrollDown,
		CopyMode:         copyMode,
		Paste:            paste,
		PTTStart:         noop,
		PTTStop:          noop,
	}
}
