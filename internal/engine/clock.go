package engine

import "time"

// Clock supplies the timestamps recorded on registry records. Tests
// substitute a fixed clock so created/modified times are deterministic.
type Clock func() time.Time

// SystemClock returns the current wall-clock time in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
