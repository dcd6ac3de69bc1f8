package actions

import (
	"fmt"
	"strings"

	"padmux/internal/controller"
)

// Chord is one bindable input: a button, optionally with the push-to-talk
// modifier held.
type Chord struct {
	Modifier bool
	Button   controller.Button
}

// Bindings is the compiled chord table. At most one action per chord;
// chords absent from the table are no-ops.
type Bindings map[Chord]Name

// CompileBindings validates the raw config map against the button and
// action enumerations. Keys are either a bare button name ("A") or the
// modifier button joined with one ("ZL_A").
func CompileBindings(raw map[string]string, modifier controller.Button) (Bindings, error) {
	compiled := make(Bindings, len(raw))
	for key, actionStr := range raw {
		chord, err := parseChordKey(key, modifier)
		if err != nil {
			return nil, err
		}
		name, err := ParseName(strings.TrimSpace(actionStr))
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", key, err)
		}
		if existing, ok := compiled[chord]; ok {
			return nil, fmt.Errorf("binding %q duplicates chord already mapped to %q", key, existing)
		}
		compiled[chord] = name
	}
	return compiled, nil
}

func parseChordKey(key string, modifier controller.Button) (Chord, error) {
	prefix := string(modifier) + "_"
	if strings.HasPrefix(key, prefix) {
		button, err := controller.Parse(strings.TrimPrefix(key, prefix))
		if err != nil {
			return Chord{}, fmt.Errorf("binding %q: %w", key, err)
		}
		if button == modifier {
			return Chord{}, fmt.Errorf("binding %q: modifier cannot chord with itself", key)
		}
		return Chord{Modifier: true, Button: button}, nil
	}

	button, err := controller.Parse(key)
	if err != nil {
		return Chord{}, fmt.Errorf("binding %q: %w", key, err)
	}
	if button == modifier {
		return Chord{}, fmt.Errorf("binding %q: the push-to-talk button cannot be rebound", key)
	}
	return Chord{Button: button}, nil
}
