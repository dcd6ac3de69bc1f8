// Package doctor runs runtime readiness diagnostics for config, the
// controller device, tmux, audio capture, and the transcription backend.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"padmux/internal/actions"
	"padmux/internal/audio"
	"padmux/internal/bridge"
	"padmux/internal/config"
	"padmux/internal/controller"
	"padmux/internal/vad"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkController(cfg.Config.Controller))
	checks = append(checks, checkBindings(cfg.Config))
	checks = append(checks, checkBinary("tmux", "required for key injection"))
	checks = append(checks, checkDetector(cfg.Config.Voice))

	if cfg.Config.Bridge.Enabled() {
		checks = append(checks, checkBridge(ctx, cfg.Config.Bridge))
	} else {
		checks = append(checks, checkAudioSelection(ctx, cfg.Config.Voice))
	}

	checks = append(checks, checkTranscriptionEndpoint(cfg.Config.Voice))

	return Report{Checks: checks}
}

// checkController resolves the gamepad device node without attaching.
func checkController(cfg config.ControllerConfig) Check {
	path, err := controller.Find(cfg.DevicePath)
	if err != nil {
		return Check{Name: "controller", Pass: false, Message: err.Error()}
	}
	return Check{Name: "controller", Pass: true, Message: fmt.Sprintf("gamepad at %s", path)}
}

// checkBindings compiles the binding table against the configured modifier.
func checkBindings(cfg config.Config) Check {
	modifier, err := controller.Parse(cfg.Controller.PTTButton)
	if err != nil {
		return Check{Name: "bindings", Pass: false, Message: fmt.Sprintf("ptt_button: %v", err)}
	}
	bindings, err := actions.CompileBindings(cfg.Bindings, modifier)
	if err != nil {
		return Check{Name: "bindings", Pass: false, Message: err.Error()}
	}
	return Check{
		Name:    "bindings",
		Pass:    true,
		Message: fmt.Sprintf("%d bindings, push-to-talk on %s", len(bindings), modifier),
	}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkDetector constructs the configured speech detector.
func checkDetector(cfg config.VoiceConfig) Check {
	if _, err := vad.New(cfg.Detector, cfg.VADThreshold); err != nil {
		return Check{Name: "voice.detector", Pass: false, Message: err.Error()}
	}
	return Check{
		Name:    "voice.detector",
		Pass:    true,
		Message: fmt.Sprintf("%s detector, threshold %.2f", cfg.Detector, cfg.VADThreshold),
	}
}

// checkAudioSelection runs live device selection to surface selection issues.
func checkAudioSelection(ctx context.Context, cfg config.VoiceConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Device)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkBridge probes the audio bridge daemon with a plain TCP dial. The
// websocket handshake itself is left to the runtime path.
func checkBridge(ctx context.Context, cfg config.BridgeConfig) Check {
	host := cfg.Host
	if host == "" {
		detected, err := bridge.DetectGatewayHost(ctx)
		if err != nil {
			return Check{Name: "bridge", Pass: false, Message: fmt.Sprintf("gateway detection failed: %v", err)}
		}
		host = detected
	}
	port := cfg.Port
	if port == 0 {
		port = bridge.DefaultPort
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return Check{Name: "bridge", Pass: false, Message: fmt.Sprintf("cannot reach %s: %v", addr, err)}
	}
	conn.Close()
	return Check{Name: "bridge", Pass: true, Message: fmt.Sprintf("reachable at %s", addr)}
}

// checkTranscriptionEndpoint probes the whisper HTTP endpoint. Any HTTP
// response counts as reachable; transcription paths commonly reject GET.
func checkTranscriptionEndpoint(cfg config.VoiceConfig) Check {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return Check{Name: "voice.endpoint", Pass: false, Message: "voice endpoint is empty"}
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	client := http.Client{Timeout: probeTimeout}
	resp, err := client.Get(endpoint)
	if err != nil {
		return Check{Name: "voice.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	resp.Body.Close()

	return Check{
		Name:    "voice.endpoint",
		Pass:    true,
		Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, endpoint),
	}
}
