// Package config resolves, parses, validates, and defaults padmux configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by padmux.
// It is constructed once at startup and never mutated afterwards.
type Config struct {
	Controller ControllerConfig  `toml:"controller"`
	Voice      VoiceConfig       `toml:"voice"`
	Tmux       TmuxConfig        `toml:"tmux"`
	Bridge     BridgeConfig      `toml:"bridge"`
	Bindings   map[string]string `toml:"bindings"`
}

// ControllerConfig controls evdev device selection and event filtering.
type ControllerConfig struct {
	DevicePath    string  `toml:"device_path"` // empty = auto-detect
	Grab          bool    `toml:"grab"`
	StickDeadzone float64 `toml:"stick_deadzone"`
	StickNeutralX int     `toml:"stick_neutral_x"`
	StickNeutralY int     `toml:"stick_neutral_y"`
	DebounceMS    int     `toml:"debounce_ms"`
	PTTButton     string  `toml:"ptt_button"`
}

// VoiceConfig controls the activity gate and the transcription backend.
type VoiceConfig struct {
	Endpoint          string  `toml:"endpoint"`
	APIKey            string  `toml:"api_key"` // optional, for hosted endpoints
	Model             string  `toml:"model"`
	Language          string  `toml:"language"`
	Detector          string  `toml:"detector"` // "energy" or "webrtc"
	VADThreshold      float64 `toml:"vad_threshold"`
	SilenceDurationMS int     `toml:"silence_duration_ms"`
	MinSpeechMS       int     `toml:"min_speech_ms"`
	Device            string  `toml:"device"` // audio input device, empty = default
}

// TmuxConfig bounds external tmux command execution.
type TmuxConfig struct {
	CommandTimeoutMS int `toml:"command_timeout_ms"`
}

// BridgeConfig locates the host-side microphone bridge.
type BridgeConfig struct {
	Host           string `toml:"host"` // empty = auto-detect via default gateway
	Port           int    `toml:"port"`
	PingIntervalMS int    `toml:"ping_interval_ms"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}

// CommandTimeout returns the tmux timeout as a duration.
func (c TmuxConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

// PingInterval returns the bridge liveness ping interval as a duration.
func (c BridgeConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

// SilenceDuration returns the end-of-speech silence window as a duration.
func (c VoiceConfig) SilenceDuration() time.Duration {
	return time.Duration(c.SilenceDurationMS) * time.Millisecond
}

// MinSpeech returns the minimum speech length as a duration.
func (c VoiceConfig) MinSpeech() time.Duration {
	return time.Duration(c.MinSpeechMS) * time.Millisecond
}

// Debounce returns the button debounce window as a duration.
func (c ControllerConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Enabled reports whether the bridged audio path is configured.
func (c BridgeConfig) Enabled() bool {
	return c.Host != "" || c.Port != 0
}
