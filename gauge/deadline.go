package gauge

import "time"

// Deadline is a timer armed in either or both time domains. A zero field
// is unarmed. Deadlines only ever extend.
type Deadline struct {
	Sim  float64 // simulation hours
	Real float64 // real seconds
}

// Armed reports whether either domain holds an expiry.
func (d Deadline) Armed() bool { return d.Sim > 0 || d.Real > 0 }

// Locked reports whether now is before the expiry in any armed domain.
func (d Deadline) Locked(now Instant) bool {
	return (d.Sim > 0 && now.Sim < d.Sim) || (d.Real > 0 && now.Real < d.Real)
}

// Extend arms the deadline dur from now in the chosen domain, keeping
// the later of the existing and new expiry.
func (d *Deadline) Extend(now Instant, dur time.Duration, realTime bool) {
	if dur <= 0 {
		return
	}
	if realTime {
		d.Real = max(d.Real, now.Real+dur.Seconds())
		return
	}
	if h := now.simHours(dur); h > 0 {
		d.Sim = max(d.Sim, now.Sim+h)
	}
}

// within reports whether an armed domain expires no later than margin
// from now.
func (d Deadline) within(now Instant, margin time.Duration) bool {
	if d.Real > 0 && d.Real-now.Real <= margin.Seconds() {
		return true
	}
	if d.Sim > 0 && d.Sim-now.Sim <= now.simHours(margin) {
		return true
	}
	return false
}

// expire clears domains that have passed.
func (d *Deadline) expire(now Instant) {
	if d.Sim > 0 && now.Sim >= d.Sim {
		d.Sim = 0
	}
	if d.Real > 0 && now.Real >= d.Real {
		d.Real = 0
	}
}
