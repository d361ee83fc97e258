package audio

import "math"

// volumeToPower maps a linear 0..1 gain to the exponent used by
// effects.Volume with Base 2.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10 // Silent
	}
	return math.Log2(vol)
}

func clampLevel(level int) int {
	return max(0, min(100, level))
}
