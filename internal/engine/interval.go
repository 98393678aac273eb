package engine

import "time"

// interval is one closed time range on the work stack. depth counts how many
// bisections produced it.
type interval struct {
	start time.Time
	end   time.Time
	depth int
}

// bisect splits the interval at its wall-clock midpoint into two halves
// covering the same span. The split is purely temporal; record density plays
// no part.
func (iv interval) bisect() (interval, interval) {
	mid := iv.start.Add(iv.end.Sub(iv.start) / 2)
	left := interval{start: iv.start, end: mid, depth: iv.depth + 1}
	right := interval{start: mid, end: iv.end, depth: iv.depth + 1}
	return left, right
}

func (iv interval) span() time.Duration {
	return iv.end.Sub(iv.start)
}
