package game

import (
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/elemental/intake"
)

// parallelThreshold is the minimum emitter count to fan out across
// workers. Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// emitterSnapshot captures the read-only emitter state a worker needs.
type emitterSnapshot struct {
	Key    intake.EffectKey
	Rate   float32
	Chance float32
}

// snapshotEmitters copies every emitter into the reusable scratch slice.
func (g *Game) snapshotEmitters() []emitterSnapshot {
	g.emitScratch = g.emitScratch[:0]
	query := g.emitterFilter.Query()
	for query.Next() {
		em := query.Get()
		g.emitScratch = append(g.emitScratch, emitterSnapshot{
			Key:    intake.EffectKey(em.Key),
			Rate:   em.Rate,
			Chance: em.Chance,
		})
	}
	return g.emitScratch
}

// fireEmitters rolls every emitter and forwards the magnitudes of those
// that fire through the intake tracker. The store is safe for concurrent
// stimuli, so chunks run on separate goroutines. Callbacks land in the
// dispatch queue and run after the pass.
func (g *Game) fireEmitters(dt float32) error {
	snaps := g.snapshotEmitters()
	if len(snaps) == 0 {
		return nil
	}

	if g.workers <= 1 || len(snaps) < parallelThreshold {
		return g.fireChunk(snaps, g.chunkRand(0), dt)
	}

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	chunkSize := (len(snaps) + g.workers - 1) / g.workers
	for w := 0; w*chunkSize < len(snaps); w++ {
		start := w * chunkSize
		end := min(start+chunkSize, len(snaps))
		rng := g.chunkRand(uint64(w))
		eg.Go(func() error {
			return g.fireChunk(snaps[start:end], rng, dt)
		})
	}
	return eg.Wait()
}

// chunkRand derives a per-worker generator so a run is reproducible for a
// fixed seed and worker count.
func (g *Game) chunkRand(worker uint64) *rand.Rand {
	return rand.New(rand.NewPCG(g.seed^uint64(g.tick)<<20, worker+1))
}

func (g *Game) fireChunk(snaps []emitterSnapshot, rng *rand.Rand, dt float32) error {
	for _, s := range snaps {
		if rng.Float32() >= s.Chance {
			continue
		}
		// Jitter the magnitude in [0.5, 1.5) of the mean rate.
		magnitude := float64(s.Rate*dt) * (0.5 + rng.Float64())
		if !g.tracker.Update(s.Key, magnitude) {
			return fmt.Errorf("emitter %d has no intake binding", s.Key)
		}
	}
	return nil
}
