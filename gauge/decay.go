package gauge

import (
	"math"

	"github.com/pthm-cable/elemental/catalog"
)

// decayParams are the decay rate and grace window expressed in
// simulation hours for one instant's timescale.
type decayParams struct {
	rate  float64 // points per sim hour
	grace float64 // sim hours
}

func (s *Store) decayParams(now Instant) decayParams {
	if now.Timescale <= 0 || s.opts.RealSecondsPerPoint <= 0 {
		return decayParams{}
	}
	return decayParams{
		rate:  3600 / (s.opts.RealSecondsPerPoint * now.Timescale),
		grace: s.opts.GraceRealSeconds * now.Timescale / 3600,
	}
}

// decayChannel brings channel h up to date with now. The fractional part
// of the decay amount is kept by rewinding lastEval, so the result does
// not depend on how often the channel is read.
func decayChannel(e *entry, h catalog.ElementHandle, now Instant, p decayParams) bool {
	v := int(e.values[h])
	if v == 0 {
		e.lastEval[h] = now.Sim
		return false
	}
	if p.rate <= 0 {
		return false
	}
	graceEnd := e.lastHit[h] + p.grace
	if now.Sim <= graceEnd {
		return false
	}

	start := max(e.lastEval[h], graceEnd)
	elapsed := now.Sim - start
	if elapsed <= 0 {
		return false
	}
	amount := elapsed * p.rate
	whole := math.Floor(amount)
	if whole < 1 {
		return false
	}
	if whole >= float64(v) {
		e.set(h, 0)
		e.lastEval[h] = now.Sim
		return true
	}
	e.set(h, v-int(whole))
	e.lastEval[h] = now.Sim - (amount-whole)/p.rate
	return true
}

// decayAll runs decayChannel over every allocated channel and drops
// in-reaction markers whose lockout has lapsed.
func decayAll(e *entry, now Instant, p decayParams) {
	for i := 1; i < len(e.values); i++ {
		h := catalog.ElementHandle(i)
		decayChannel(e, h, now, p)
		if e.inReaction[i] && !e.lockout[i].Locked(now) {
			e.inReaction[i] = false
		}
	}
}
