package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsPass(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "deadzone out of range",
			mutate:  func(c *Config) { c.Controller.StickDeadzone = 1.5 },
			wantErr: "stick_deadzone",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Controller.DebounceMS = -1 },
			wantErr: "debounce_ms",
		},
		{
			name:    "empty ptt button",
			mutate:  func(c *Config) { c.Controller.PTTButton = " " },
			wantErr: "ptt_button",
		},
		{
			name:    "empty endpoint",
			mutate:  func(c *Config) { c.Voice.Endpoint = "" },
			wantErr: "voice.endpoint",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Voice.VADThreshold = -0.1 },
			wantErr: "vad_threshold",
		},
		{
			name:    "silence duration too short",
			mutate:  func(c *Config) { c.Voice.SilenceDurationMS = 50 },
			wantErr: "silence_duration_ms",
		},
		{
			name:    "unknown detector",
			mutate:  func(c *Config) { c.Voice.Detector = "psychic" },
			wantErr: "voice.detector",
		},
		{
			name:    "zero tmux timeout",
			mutate:  func(c *Config) { c.Tmux.CommandTimeoutMS = 0 },
			wantErr: "command_timeout_ms",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Bridge.Port = 70000 },
			wantErr: "bridge.port",
		},
		{
			name:    "empty binding action",
			mutate:  func(c *Config) { c.Bindings = map[string]string{"A": "  "} },
			wantErr: "empty action name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnHostWithoutPort(t *testing.T) {
	cfg := Default()
	cfg.Bridge.Host = "192.168.1.2"

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "bridge.port")
}
