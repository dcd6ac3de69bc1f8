package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus fallback context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default and
// availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("padmux"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves the voice.device preference against live devices.
// An empty or "default" preference picks the default source; a non-default
// preference that is muted or unavailable falls back to the default with a
// warning rather than failing outright.
func SelectDevice(ctx context.Context, preferred string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, preferred)
}

func selectDeviceFromList(devices []Device, preferred string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	preferred = strings.TrimSpace(strings.ToLower(preferred))

	var defaultDevice, matched *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if matched == nil && preferred != "" && preferred != "default" && deviceMatches(*dev, preferred) {
			matched = dev
		}
	}

	usable := func(d *Device) bool { return d != nil && d.Available && !d.Muted }

	if preferred == "" || preferred == "default" {
		if defaultDevice == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
		if !usable(defaultDevice) {
			return Selection{}, fmt.Errorf("default audio source %q is %s", defaultDevice.ID, unusableReason(*defaultDevice))
		}
		return Selection{Device: *defaultDevice}, nil
	}

	if matched == nil {
		return Selection{}, fmt.Errorf("voice.device %q did not match any device", preferred)
	}
	if usable(matched) {
		return Selection{Device: *matched}, nil
	}
	if !usable(defaultDevice) {
		return Selection{}, fmt.Errorf("voice.device %q is %s and no usable default source", matched.ID, unusableReason(*matched))
	}
	return Selection{
		Device:   *defaultDevice,
		Warning:  fmt.Sprintf("voice.device %q is %s; falling back to %q", matched.ID, unusableReason(*matched), defaultDevice.ID),
		Fallback: true,
	}, nil
}

func unusableReason(d Device) string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
