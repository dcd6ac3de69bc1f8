// Package actions maps controller chords to tmux operations through a
// fixed registry of named handlers.
package actions

import "fmt"

// Name identifies one built-in action.
type Name string

const (
	// tmux navigation
	SwitchPane       Name = "switch_pane"
	SwitchPaneUp     Name = "switch_pane_up"
	SwitchPaneDown   Name = "switch_pane_down"
	SwitchPaneLeft   Name = "switch_pane_left"
	SwitchPaneRight  Name = "switch_pane_right"
	SwitchWindowNext Name = "switch_window_next"
	SwitchWindowPrev Name = "switch_window_prev"

	// key sending
	SendEnter  Name = "send_enter"
	SendEscape Name = "send_escape"
	SendCtrlC  Name = "send_ctrl_c"

	// voice (handled by the dispatch loop, registered as no-ops)
	PTTStart Name = "ptt_start"
	PTTStop  Name = "ptt_stop"

	// system
	Confirm    Name = "confirm"
	Cancel     Name = "cancel"
	ScrollUp   Name = "scroll_up"
	ScrollDown Name = "scroll_down"
	CopyMode   Name = "copy_mode"
	Paste      Name = "paste"
)

// All lists every built-in action, for binding validation.
var All = []Name{
	SwitchPane, SwitchPaneUp, SwitchPaneDown, SwitchPaneLeft, SwitchPaneRight,
	SwitchWindowNext, SwitchWindowPrev,
	SendEnter, SendEscape, SendCtrlC,
	PTTStart, PTTStop,
	Confirm, Cancel, ScrollUp, ScrollDown, CopyMode, Paste,
}

// ParseName resolves a config-provided action string.
func ParseName(s string) (Name, error) {
	for _, n := range All {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown action name %q", s)
}
