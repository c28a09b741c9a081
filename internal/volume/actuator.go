// Package volume reads and writes the OS master output volume.
//
// The OS owns the volume: any process or the user may change it between any
// two reads, so callers must treat every read as possibly stale. Values are
// normalized scalars in [0,1]; the OS mixer itself works in integer percent,
// which bounds the useful resolution to one percentage point.
package volume

// Epsilon is the smallest volume difference treated as a real change.
// The OS rounds scalar volumes to integer percent, so differences below one
// percentage point are rounding noise, not user intent.
const Epsilon = 0.01

// Clamp bounds v to the valid [0,1] volume range.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ManualChange reports whether current differs from lastKnown by more than
// Epsilon, i.e. by more than mixer rounding can explain.
func ManualChange(lastKnown, current float64) bool {
	diff := current - lastKnown
	return diff > Epsilon || diff < -Epsilon
}
