package game

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/gauge"
	"github.com/pthm-cable/elemental/savegame"
)

const (
	harnessRecordName    = "HARN"
	harnessRecordVersion = 1
)

// maxSavedEntities bounds the entity count read from a save.
const maxSavedEntities = 1 << 20

var errHarnessVersion = errors.New("game: harness record version mismatch")

// harnessRecord persists the tick, the clock and the tracked entities.
// It is registered ahead of the gauge record so entities exist, and the
// clock is restored, before gauges are remapped onto them.
type harnessRecord struct {
	g *Game
}

type harnessHeader struct {
	Tick      int32
	NextID    uint32
	NextKey   uint64
	Sim       float64
	Real      float64
	Timescale float64
	Count     uint32
}

type savedEntity struct {
	ID        uint32
	Player    uint8
	Health    float32
	MaxHealth float32
	X, Y      float32
}

var _ savegame.Record = harnessRecord{}

func (harnessRecord) RecordName() string    { return harnessRecordName }
func (harnessRecord) RecordVersion() uint32 { return harnessRecordVersion }

func (r harnessRecord) Save(w io.Writer) error {
	g := r.g
	now := g.clock.Now()
	var ents []savedEntity
	query := g.trackedFilter.Query()
	for query.Next() {
		pos, _, _, tracked, health, _ := query.Get()
		var player uint8
		if tracked.Player {
			player = 1
		}
		ents = append(ents, savedEntity{
			ID:        uint32(tracked.ID),
			Player:    player,
			Health:    health.Value,
			MaxHealth: health.Max,
			X:         pos.X,
			Y:         pos.Y,
		})
	}
	h := harnessHeader{
		Tick:      g.tick,
		NextID:    uint32(g.nextID),
		NextKey:   g.nextKey,
		Sim:       now.Sim,
		Real:      now.Real,
		Timescale: now.Timescale,
		Count:     uint32(len(ents)),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, ents)
}

func (r harnessRecord) Load(rd io.Reader, version uint32, _ savegame.Resolver) error {
	if version != harnessRecordVersion {
		return fmt.Errorf("%w: got %d, want %d", errHarnessVersion, version, harnessRecordVersion)
	}
	var h harnessHeader
	if err := binary.Read(rd, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("read harness header: %w", err)
	}
	if h.Count > maxSavedEntities {
		return fmt.Errorf("harness record holds %d entities", h.Count)
	}
	ents := make([]savedEntity, h.Count)
	if err := binary.Read(rd, binary.LittleEndian, ents); err != nil {
		return fmt.Errorf("read harness entities: %w", err)
	}

	g := r.g
	g.tick = h.Tick
	g.nextID = catalog.EntityID(h.NextID)
	g.nextKey = h.NextKey
	g.clock.Set(gauge.Instant{Sim: h.Sim, Real: h.Real, Timescale: h.Timescale})
	for _, e := range ents {
		id := catalog.EntityID(e.ID)
		g.placeTracked(id, e.Player != 0, e.Health, e.MaxHealth, e.X, e.Y)
		g.spawnEmitters(id)
	}
	return nil
}

func (r harnessRecord) Revert() {
	r.g.removeAll()
}

// resolveSaved keeps stored identifiers that exist in the running session.
func (g *Game) resolveSaved(stored uint32) (uint32, bool) {
	_, ok := g.entities[catalog.EntityID(stored)]
	return stored, ok
}

// Save writes the harness and gauge records to w.
func (g *Game) Save(w io.Writer) error {
	// Deliver pending callbacks so afflictions match the saved gauges.
	g.queue.Drain()
	return g.saves.Save(w)
}

// Load replaces the running session with the one stored in r.
func (g *Game) Load(r io.Reader) error {
	g.queue.Drain()
	err := g.saves.Load(r, g.resolveSaved)
	g.afterLoad()
	return err
}

// SaveFile writes a save container to path.
func (g *Game) SaveFile(path string) error {
	g.queue.Drain()
	if err := g.saves.SaveFile(path); err != nil {
		return err
	}
	g.log.Info("saved", "path", path, "tick", g.tick, "entities", len(g.entities))
	return nil
}

// LoadFile replaces the running session with the one stored at path.
func (g *Game) LoadFile(path string) error {
	g.queue.Drain()
	err := g.saves.LoadFile(path, g.resolveSaved)
	g.afterLoad()
	if err != nil {
		return err
	}
	g.log.Info("loaded", "path", path, "tick", g.tick, "entities", len(g.entities))
	return nil
}

// afterLoad runs callbacks raised by the revert and rebuilds afflictions
// from the restored pre-effects.
func (g *Game) afterLoad() {
	g.queue.Drain()
	g.syncAfflictions()
	g.frame.Store(nil)
}
