package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
// Binding chords and action names are resolved against their enumerations
// separately at startup; here only structural invariants are enforced.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Controller.StickDeadzone < 0 || cfg.Controller.StickDeadzone >= 1 {
		return nil, fmt.Errorf("controller.stick_deadzone must be in [0, 1)")
	}
	if cfg.Controller.DebounceMS < 0 {
		return nil, fmt.Errorf("controller.debounce_ms must be >= 0")
	}
	if strings.TrimSpace(cfg.Controller.PTTButton) == "" {
		return nil, fmt.Errorf("controller.ptt_button must not be empty")
	}

	if strings.TrimSpace(cfg.Voice.Endpoint) == "" {
		return nil, fmt.Errorf("voice.endpoint must not be empty")
	}
	if cfg.Voice.VADThreshold < 0 || cfg.Voice.VADThreshold > 1 {
		return nil, fmt.Errorf("voice.vad_threshold must be in [0, 1]")
	}
	if cfg.Voice.SilenceDurationMS < 100 || cfg.Voice.SilenceDurationMS > 5000 {
		return nil, fmt.Errorf("voice.silence_duration_ms must be in [100, 5000]")
	}
	if cfg.Voice.MinSpeechMS < 0 {
		return nil, fmt.Errorf("voice.min_speech_ms must be >= 0")
	}
	switch cfg.Voice.Detector {
	case "energy", "webrtc":
	default:
		return nil, fmt.Errorf("voice.detector must be one of: energy, webrtc")
	}

	if cfg.Tmux.CommandTimeoutMS <= 0 {
		return nil, fmt.Errorf("tmux.command_timeout_ms must be > 0")
	}

	if cfg.Bridge.Port < 0 || cfg.Bridge.Port > 65535 {
		return nil, fmt.Errorf("bridge.port must be in [0, 65535]")
	}
	if cfg.Bridge.PingIntervalMS <= 0 {
		return nil, fmt.Errorf("bridge.ping_interval_ms must be > 0")
	}
	if cfg.Bridge.Host != "" && cfg.Bridge.Port == 0 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("bridge.port not set; defaulting to %d", DefaultBridgePort)})
	}

	for chord, action := range cfg.Bindings {
		if strings.TrimSpace(action) == "" {
			return nil, fmt.Errorf("binding %q has an empty action name", chord)
		}
	}

	return warnings, nil
}
