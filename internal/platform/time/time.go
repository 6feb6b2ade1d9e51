// Package time contains wall-clock helpers shared by the flush scheduler and sinks
package time

import "time"

// LocalLayout renders a wall-clock time as "YYYY-MM-DD HH:MM:SS"
const LocalLayout = "2006-01-02 15:04:05"

// Floor truncates t to the most recent multiple of d since the Unix epoch.
// d <= 0 returns t unchanged
func Floor(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	n := t.UnixNano()
	step := int64(d)
	r := n % step
	if r < 0 {
		r += step
	}
	return time.Unix(0, n-r).In(t.Location())
}

// Next returns the first multiple of d strictly after t
func Next(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	return Floor(t, d).Add(d)
}

// Local formats t in the process's local zone using LocalLayout
func Local(t time.Time) string { return t.Local().Format(LocalLayout) }

