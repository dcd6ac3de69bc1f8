package controller

// axisRange describes the raw value range and resting point of one axis,
// as reported by the device at open time.
type axisRange struct {
	min     int32
	max     int32
	neutral int32
}

// normalize maps a raw axis value to [-1, 1] with a deadzone around the
// neutral point. Values inside the deadzone collapse to exactly 0 and the
// remaining range is rescaled so output still spans the full [-1, 1].
func normalize(raw int32, r axisRange, deadzone float64) float64 {
	span := float64(r.max-r.min) / 2
	if span <= 0 {
		return 0
	}
	v := float64(raw-r.neutral) / span
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}

	mag := v
	if mag < 0 {
		mag = -mag
	}
	if mag <= deadzone {
		return 0
	}
	scaled := (mag - deadzone) / (1 - deadzone)
	if v < 0 {
		return -scaled
	}
	return scaled
}
