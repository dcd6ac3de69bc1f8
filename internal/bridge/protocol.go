// Package bridge moves microphone audio from a host machine into the
// session over a websocket, for setups (WSL2, remote boxes) where the
// guest has no direct device access. One binary message carries one frame:
// a big-endian seq and sample rate header followed by s16le PCM. Control
// messages are small JSON texts.
package bridge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"padmux/internal/audio"
)

// DefaultPort is the bridge daemon's listen port when none is configured.
const DefaultPort = 8765

// AudioPath is the websocket endpoint the daemon serves.
const AudioPath = "/audio"

// frameHeaderSize is seq (8 bytes) + sample rate (4 bytes).
const frameHeaderSize = 12

// Control message types.
const (
	ControlStartCapture = "start-capture"
	ControlStopCapture  = "stop-capture"
)

// Control is the JSON text message toggling capture on the daemon.
type Control struct {
	Type string `json:"type"`
}

// EncodeControl renders a control message.
func EncodeControl(typ string) ([]byte, error) {
	return json.Marshal(Control{Type: typ})
}

// DecodeControl parses a control message and checks the type is known.
func DecodeControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("malformed control message: %w", err)
	}
	switch c.Type {
	case ControlStartCapture, ControlStopCapture:
		return c, nil
	default:
		return Control{}, fmt.Errorf("unknown control type %q", c.Type)
	}
}

// EncodeFrame renders one audio frame as a binary websocket payload.
func EncodeFrame(f audio.Frame) []byte {
	buf := make([]byte, frameHeaderSize+len(f.PCM)*2)
	binary.BigEndian.PutUint64(buf[0:8], f.Seq)
	binary.BigEndian.PutUint32(buf[8:12], uint32(f.SampleRate))
	for i, s := range f.PCM {
		binary.LittleEndian.PutUint16(buf[frameHeaderSize+2*i:], uint16(s))
	}
	return buf
}

// DecodeFrame parses a binary websocket payload back into a frame.
func DecodeFrame(data []byte) (audio.Frame, error) {
	if len(data) < frameHeaderSize {
		return audio.Frame{}, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	if (len(data)-frameHeaderSize)%2 != 0 {
		return audio.Frame{}, fmt.Errorf("frame payload has odd length %d", len(data)-frameHeaderSize)
	}
	f := audio.Frame{
		Seq:        binary.BigEndian.Uint64(data[0:8]),
		SampleRate: int(binary.BigEndian.Uint32(data[8:12])),
		PCM:        make([]int16, (len(data)-frameHeaderSize)/2),
	}
	if f.SampleRate <= 0 {
		return audio.Frame{}, fmt.Errorf("frame has invalid sample rate %d", f.SampleRate)
	}
	for i := range f.PCM {
		f.PCM[i] = int16(binary.LittleEndian.Uint16(data[frameHeaderSize+2*i:]))
	}
	return f, nil
}
