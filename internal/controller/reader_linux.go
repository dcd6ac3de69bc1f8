//go:build linux

package controller

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"padmux/internal/config"
)

const (
	evKey = 0x01
	evAbs = 0x03

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2

	absHat0X = 0x10
	absHat0Y = 0x11

	// BTN_SOUTH marks a device as a gamepad.
	btnSouth = 304

	// input_event is 24 bytes on 64-bit Linux:
	// timeval (16 bytes) + type (2) + code (2) + value (4)
	inputEventSize = 24

	eviocGrab = 0x40044590
	eviocGAbs = 0x80184540 // + axis code
)

// Open attaches to a gamepad device and starts the event pipeline. With an
// empty device path it scans /dev/input for the first device advertising
// gamepad buttons.
func Open(cfg config.ControllerConfig, logger *slog.Logger) (*Reader, error) {
	path := cfg.DevicePath
	if path == "" {
		found, err := findGamepad()
		if err != nil {
			return nil, err
		}
		path = found
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrControllerNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w (is user in 'input' group?)", path, err)
	}

	if cfg.Grab {
		if err := grab(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("grabbing %s: %w", path, err)
		}
	}

	r := &Reader{
		cfg:    cfg,
		logger: logger,
		file:   f,
		path:   path,
		axes:   make(map[Axis]axisRange),
		events: make(chan Event, 64),
		raw:    make(chan Event, 64),
	}

	for code, axis := range axisCodes {
		info, err := absInfo(f, code)
		if err != nil {
			// Device without that axis; leave it unmapped.
			continue
		}
		r.axes[axis] = info
	}
	if cfg.StickNeutralX != 0 {
		overrideNeutral(r.axes, AxisLeftX, int32(cfg.StickNeutralX))
		overrideNeutral(r.axes, AxisRightX, int32(cfg.StickNeutralX))
	}
	if cfg.StickNeutralY != 0 {
		overrideNeutral(r.axes, AxisLeftY, int32(cfg.StickNeutralY))
		overrideNeutral(r.axes, AxisRightY, int32(cfg.StickNeutralY))
	}

	logger.Info("controller attached", "path", path, "grab", cfg.Grab)

	go r.readLoop()
	go r.debounceLoop()
	return r, nil
}

// Find resolves the controller device node without attaching to it.
// Doctor-style checks use this to report presence.
func Find(devicePath string) (string, error) {
	if devicePath != "" {
		if _, err := os.Stat(devicePath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrControllerNotFound, devicePath)
		}
		return devicePath, nil
	}
	return findGamepad()
}

func overrideNeutral(axes map[Axis]axisRange, axis Axis, neutral int32) {
	if info, ok := axes[axis]; ok {
		info.neutral = neutral
		axes[axis] = info
	}
}

// readLoop parses raw input_event records into Events on the raw channel.
// It exits (closing raw) when the device read fails.
func (r *Reader) readLoop() {
	defer close(r.raw)

	buf := make([]byte, inputEventSize*16)
	var hatX, hatY Button // currently held synthetic d-pad buttons
	last := make(map[Axis]float64) // last emitted normalized value

	for {
		n, err := r.file.Read(buf)
		if err != nil {
			if err != io.EOF && !errorIsClosed(err) {
				r.setErr(fmt.Errorf("%w: %v", ErrControllerLost, err))
				r.logger.Warn("controller read failed", "path", r.path, "error", err)
			}
			return
		}

		now := time.Now()
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			switch evType {
			case evKey:
				if evValue == keyRepeat {
					continue
				}
				btn, ok := buttonCodes[evCode]
				if !ok {
					continue
				}
				kind := ButtonUp
				if evValue == keyPress {
					kind = ButtonDown
				}
				r.raw <- Event{Kind: kind, Button: btn, At: now}

			case evAbs:
				switch evCode {
				case absHat0X:
					hatX = r.hatTransition(hatX, dpadX[evValue], now)
				case absHat0Y:
					hatY = r.hatTransition(hatY, dpadY[evValue], now)
				default:
					axis, ok := axisCodes[evCode]
					if !ok {
						continue
					}
					info, ok := r.axes[axis]
					if !ok {
						continue
					}
					v := normalize(evValue, info, r.cfg.StickDeadzone)
					if v == last[axis] {
						continue
					}
					last[axis] = v
					r.raw <- Event{Kind: AxisMove, Axis: axis, Value: v, At: now}
				}
			}
		}
	}
}

// hatTransition converts a hat axis value change into synthetic d-pad
// press/release events and returns the new held button ("" when centered).
func (r *Reader) hatTransition(held, next Button, now time.Time) Button {
	if held == next {
		return held
	}
	if held != "" {
		r.raw <- Event{Kind: ButtonUp, Button: held, At: now}
	}
	if next != "" {
		r.raw <- Event{Kind: ButtonDown, Button: next, At: now}
	}
	return next
}

func errorIsClosed(err error) bool {
	return strings.Contains(err.Error(), "file already closed")
}

// findGamepad scans /dev/input for the first event device whose key
// capability bitmap includes BTN_SOUTH.
func findGamepad() (string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return "", fmt.Errorf("scanning input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		capsPath := filepath.Join("/sys/class/input", e.Name(), "device", "capabilities", "key")
		data, err := os.ReadFile(capsPath)
		if err != nil {
			continue
		}
		if hasKeyBit(strings.TrimSpace(string(data)), btnSouth) {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", ErrControllerNotFound
}

// hasKeyBit checks a sysfs capability bitmap (space-separated hex words,
// most significant word first, 64 bits per word) for one bit.
func hasKeyBit(caps string, bit uint) bool {
	words := strings.Fields(caps)
	idx := int(bit / 64)
	if idx >= len(words) {
		return false
	}
	word, err := strconv.ParseUint(words[len(words)-1-idx], 16, 64)
	if err != nil {
		return false
	}
	return word&(1<<(bit%64)) != 0
}

func grab(f *os.File) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), eviocGrab, 1)
	if errno != 0 {
		return errno
	}
	return nil
}

// absInfo queries the kernel's range metadata for one absolute axis.
func absInfo(f *os.File, code uint16) (axisRange, error) {
	// struct input_absinfo: value, minimum, maximum, fuzz, flat, resolution
	var raw [6]int32
	_, _, errno := syscall.Syscall(
		syscall.SYS_IOCTL,
		f.Fd(),
		uintptr(eviocGAbs+uint32(code)),
		uintptr(unsafe.Pointer(&raw[0])),
	)
	if errno != 0 {
		return axisRange{}, errno
	}
	info := axisRange{min: raw[1], max: raw[2], neutral: (raw[1] + raw[2]) / 2}
	if info.min == info.max {
		return axisRange{}, fmt.Errorf("axis %d reports empty range", code)
	}
	return info, nil
}
