package config

// DefaultBridgePort is used when the bridge is enabled without an explicit port.
const DefaultBridgePort = 8765

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Controller: ControllerConfig{
			DevicePath:    "",
			Grab:          false,
			StickDeadzone: 0.1,
			StickNeutralX: 0,
			StickNeutralY: 0,
			DebounceMS:    30,
			PTTButton:     "ZL",
		},
		Voice: VoiceConfig{
			Endpoint:          "http://127.0.0.1:8000/v1/audio/transcriptions",
			Model:             "small",
			Language:          "",
			Detector:          "energy",
			VADThreshold:      0.5,
			SilenceDurationMS: 800,
			MinSpeechMS:       100,
			Device:            "",
		},
		Tmux: TmuxConfig{
			CommandTimeoutMS: 5000,
		},
		Bridge: BridgeConfig{
			Host:           "",
			Port:           0,
			PingIntervalMS: 5000,
		},
		Bindings: map[string]string{},
	}
}
