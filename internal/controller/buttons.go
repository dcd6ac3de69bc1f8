// Package controller reads button and analog-stick events from a game
// controller via the Linux input event interface.
package controller

import "fmt"

// Button identifies one controller button.
type Button string

const (
	ButtonA         Button = "A"
	ButtonB         Button = "B"
	ButtonX         Button = "X"
	ButtonY         Button = "Y"
	ButtonL         Button = "L"
	ButtonR         Button = "R"
	ButtonZL        Button = "ZL"
	ButtonZR        Button = "ZR"
	ButtonPlus      Button = "plus"
	ButtonMinus     Button = "minus"
	ButtonHome      Button = "home"
	ButtonCapture   Button = "capture"
	ButtonL3        Button = "L3"
	ButtonR3        Button = "R3"
	ButtonDpadUp    Button = "dpad_up"
	ButtonDpadDown  Button = "dpad_down"
	ButtonDpadLeft  Button = "dpad_left"
	ButtonDpadRight Button = "dpad_right"
)

// Buttons lists every known button, for exhaustive binding validation.
var Buttons = []Button{
	ButtonA, ButtonB, ButtonX, ButtonY,
	ButtonL, ButtonR, ButtonZL, ButtonZR,
	ButtonPlus, ButtonMinus, ButtonHome, ButtonCapture,
	ButtonL3, ButtonR3,
	ButtonDpadUp, ButtonDpadDown, ButtonDpadLeft, ButtonDpadRight,
}

// Parse resolves a config-provided button name against the enumeration.
func Parse(name string) (Button, error) {
	for _, b := range Buttons {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown button name %q", name)
}

// Axis identifies one analog stick axis.
type Axis string

const (
	AxisLeftX  Axis = "left_x"
	AxisLeftY  Axis = "left_y"
	AxisRightX Axis = "right_x"
	AxisRightY Axis = "right_y"
)

// Standard Linux input event codes for a Pro Controller class gamepad.
var buttonCodes = map[uint16]Button{
	304: ButtonB,
	305: ButtonA,
	306: ButtonY,
	307: ButtonX,
	308: ButtonL,
	309: ButtonR,
	310: ButtonZL,
	311: ButtonZR,
	312: ButtonMinus,
	313: ButtonPlus,
	314: ButtonL3,
	315: ButtonR3,
	316: ButtonHome,
	317: ButtonCapture,
}

var axisCodes = map[uint16]Axis{
	0: AxisLeftX,
	1: AxisLeftY,
	2: AxisRightX,
	5: AxisRightY,
}

// D-pad arrives as HAT axis values; center (0) maps to no button.
var dpadX = map[int32]Button{
	-1: ButtonDpadLeft,
	1:  ButtonDpadRight,
}

var dpadY = map[int32]Button{
	-1: ButtonDpadUp,
	1:  ButtonDpadDown,
}
