package gauge

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/pthm-cable/elemental/catalog"
	"github.com/pthm-cable/elemental/savegame"
)

// RecordVersion is the layout version of the gauge record. Loads of any
// other version are rejected; there is no migration.
const RecordVersion = 1

// RecordName tags the gauge record in a save container.
const RecordName = "GAUG"

// maxArray bounds any length prefix; handles are uint16.
const maxArray = math.MaxUint16 + 1

var (
	ErrVersionMismatch = errors.New("gauge: record version mismatch")
	ErrMalformedRecord = errors.New("gauge: malformed record")
)

// EntityState is the persisted form of one entity. Real-time deadlines
// are stored as seconds remaining at save time.
type EntityState struct {
	Entity EntityID

	Values     []uint8
	LastHit    []float64
	LastEval   []float64
	LockoutSim []float64
	// LockoutReal holds remaining seconds.
	LockoutReal []float64
	InReaction  []bool

	CooldownSim  []float64
	CooldownReal []float64

	PreActive       []bool
	PreIntensity    []float64
	PreExpirySim    []float64
	PreExpiryReal   []float64
	PreCooldownSim  []float64
	PreCooldownReal []float64

	States []catalog.StateHandle
}

func splitDeadlines(ds []Deadline, nowReal float64) (sim, remaining []float64) {
	sim = make([]float64, len(ds))
	remaining = make([]float64, len(ds))
	for i, d := range ds {
		sim[i] = d.Sim
		if d.Real > nowReal {
			remaining[i] = d.Real - nowReal
		}
	}
	return sim, remaining
}

func joinDeadlines(sim, remaining []float64, n int, nowReal float64) []Deadline {
	ds := make([]Deadline, n)
	for i := range min(n, len(sim)) {
		ds[i].Sim = sim[i]
		if remaining[i] > 0 {
			ds[i].Real = nowReal + remaining[i]
		}
	}
	return ds
}

func (e *entry) state(id EntityID, now Instant) EntityState {
	st := EntityState{
		Entity:       id,
		Values:       slices.Clone(e.values),
		LastHit:      slices.Clone(e.lastHit),
		LastEval:     slices.Clone(e.lastEval),
		InReaction:   slices.Clone(e.inReaction),
		PreActive:    slices.Clone(e.preActive),
		PreIntensity: slices.Clone(e.preIntensity),
	}
	st.LockoutSim, st.LockoutReal = splitDeadlines(e.lockout, now.Real)
	st.CooldownSim, st.CooldownReal = splitDeadlines(e.cooldown, now.Real)
	st.PreExpirySim, st.PreExpiryReal = splitDeadlines(e.preExpiry, now.Real)
	st.PreCooldownSim, st.PreCooldownReal = splitDeadlines(e.preCooldown, now.Real)
	for i := 1; i < len(e.states); i++ {
		if e.states[i] {
			st.States = append(st.States, catalog.StateHandle(i))
		}
	}
	return st
}

// restore builds an entry from a persisted state, padding or truncating
// every array to the live catalog dimensions and rebuilding presence.
func restore(st EntityState, d catalog.Dims, now Instant) *entry {
	e := newEntry(d)
	copy(e.values, st.Values)
	for i := range e.values {
		e.values[i] = min(e.values[i], Max)
	}
	e.values[0] = 0
	copy(e.lastHit, st.LastHit)
	copy(e.lastEval, st.LastEval)
	copy(e.inReaction, st.InReaction)
	e.lockout = joinDeadlines(st.LockoutSim, st.LockoutReal, d.Elements, now.Real)
	e.cooldown = joinDeadlines(st.CooldownSim, st.CooldownReal, d.Reactions, now.Real)
	copy(e.preActive, st.PreActive)
	copy(e.preIntensity, st.PreIntensity)
	e.preExpiry = joinDeadlines(st.PreExpirySim, st.PreExpiryReal, d.PreEffects, now.Real)
	e.preCooldown = joinDeadlines(st.PreCooldownSim, st.PreCooldownReal, d.PreEffects, now.Real)
	for _, s := range st.States {
		if s.Valid() && int(s) < d.States && !e.states[s] {
			e.states[s] = true
			e.nStates++
		}
	}
	e.multDirty = true
	e.presence.rebuild(e.values)
	return e
}

// States returns the persisted form of every entity, ordered by id.
func (s *Store) States() []EntityState {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntityState, 0, len(s.entries))
	for id, e := range s.entries {
		s.expireLocked(e, now)
		out = append(out, e.state(id, now))
	}
	slices.SortFunc(out, func(a, b EntityState) int { return cmp.Compare(a.Entity, b.Entity) })
	return out
}

// Save writes every entity in the current record layout.
func (s *Store) Save(w io.Writer) error {
	states := s.States()
	if err := WriteEntities(w, states); err != nil {
		return err
	}
	s.logger.Info("saved gauges", "entities", len(states))
	return nil
}

// Load replaces the store's contents with a persisted record. Stored ids
// pass through remap; unresolved entities are skipped. On any error the
// store is left untouched.
func (s *Store) Load(r io.Reader, version uint32, remap func(EntityID) (EntityID, bool)) error {
	states, err := ReadEntities(r, version)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	loaded := make(map[EntityID]*entry, len(states))
	dropped := 0
	for _, st := range states {
		id := st.Entity
		if remap != nil {
			var ok bool
			id, ok = remap(st.Entity)
			if !ok || id == 0 {
				dropped++
				continue
			}
		}
		loaded[id] = restore(st, s.dims, now)
	}

	s.mu.Lock()
	s.entries = loaded
	s.mu.Unlock()

	s.logger.Info("loaded gauges", "entities", len(loaded), "dropped", dropped)
	return nil
}

// WriteEntities encodes states in the record layout: a count, then per
// entity its id followed by length-prefixed arrays.
func WriteEntities(w io.Writer, states []EntityState) error {
	bw := bufio.NewWriter(w)
	enc := encoder{w: bw}
	enc.u32(uint32(len(states)))
	for _, st := range states {
		enc.u32(uint32(st.Entity))
		enc.bytes(st.Values)
		enc.f64s(st.LastHit)
		enc.f64s(st.LastEval)
		enc.f64s(st.LockoutSim)
		enc.f64s(st.LockoutReal)
		enc.f64s(st.CooldownSim)
		enc.f64s(st.CooldownReal)
		enc.bools(st.InReaction)
		enc.bools(st.PreActive)
		enc.f64s(st.PreIntensity)
		enc.f64s(st.PreExpirySim)
		enc.f64s(st.PreExpiryReal)
		enc.f64s(st.PreCooldownSim)
		enc.f64s(st.PreCooldownReal)
		states := make([]uint16, len(st.States))
		for i, h := range st.States {
			states[i] = uint16(h)
		}
		enc.u16s(states)
	}
	if enc.err != nil {
		return fmt.Errorf("gauge: write record: %w", enc.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("gauge: write record: %w", err)
	}
	return nil
}

// ReadEntities decodes a record written by WriteEntities. Any truncation
// or array length disagreement fails the whole record.
func ReadEntities(r io.Reader, version uint32) ([]EntityState, error) {
	if version != RecordVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, RecordVersion)
	}
	dec := decoder{r: bufio.NewReader(r)}
	n := dec.u32()
	if dec.err == nil && n > math.MaxInt32 {
		dec.fail("entity count %d", n)
	}

	var states []EntityState
	for i := uint32(0); i < n && dec.err == nil; i++ {
		st := EntityState{Entity: EntityID(dec.u32())}
		st.Values = dec.bytes()
		ne := len(st.Values)
		st.LastHit = dec.f64sN(ne, "last hit")
		st.LastEval = dec.f64sN(ne, "last eval")
		st.LockoutSim = dec.f64sN(ne, "lockout sim")
		st.LockoutReal = dec.f64sN(ne, "lockout real")
		st.CooldownSim = dec.f64s()
		st.CooldownReal = dec.f64sN(len(st.CooldownSim), "cooldown real")
		st.InReaction = dec.boolsN(ne, "in reaction")
		st.PreActive = dec.bools()
		np := len(st.PreActive)
		st.PreIntensity = dec.f64sN(np, "pre-effect intensity")
		st.PreExpirySim = dec.f64sN(np, "pre-effect expiry sim")
		st.PreExpiryReal = dec.f64sN(np, "pre-effect expiry real")
		st.PreCooldownSim = dec.f64sN(np, "pre-effect cooldown sim")
		st.PreCooldownReal = dec.f64sN(np, "pre-effect cooldown real")
		for _, h := range dec.u16s() {
			st.States = append(st.States, catalog.StateHandle(h))
		}
		if dec.err == nil {
			states = append(states, st)
		}
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return states, nil
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) u32(v uint32) { e.write(v) }
func (e *encoder) bytes(v []uint8) { e.u32(uint32(len(v))); e.write(v) }
func (e *encoder) f64s(v []float64) { e.u32(uint32(len(v))); e.write(v) }
func (e *encoder) u16s(v []uint16) { e.u32(uint32(len(v))); e.write(v) }
func (e *encoder) bools(v []bool) { e.u32(uint32(len(v))); e.write(v) }

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		d.fail("%v", err)
	}
}

func (d *decoder) u32() uint32 {
	var v uint32
	d.read(&v)
	return v
}

func (d *decoder) length() int {
	n := d.u32()
	if d.err == nil && n > maxArray {
		d.fail("array length %d", n)
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) bytes() []uint8 {
	v := make([]uint8, d.length())
	d.read(v)
	return v
}

func (d *decoder) f64s() []float64 {
	v := make([]float64, d.length())
	d.read(v)
	return v
}

func (d *decoder) f64sN(want int, name string) []float64 {
	v := d.f64s()
	if d.err == nil && len(v) != want {
		d.fail("%s length %d, want %d", name, len(v), want)
	}
	return v
}

func (d *decoder) bools() []bool {
	v := make([]bool, d.length())
	d.read(v)
	return v
}

func (d *decoder) boolsN(want int, name string) []bool {
	v := d.bools()
	if d.err == nil && len(v) != want {
		d.fail("%s length %d, want %d", name, len(v), want)
	}
	return v
}

func (d *decoder) u16s() []uint16 {
	v := make([]uint16, d.length())
	d.read(v)
	return v
}

// Record adapts a Store to the save container.
type Record struct {
	Store *Store
}

var _ savegame.Record = Record{}

func (Record) RecordName() string { return RecordName }
func (Record) RecordVersion() uint32 { return RecordVersion }
func (r Record) Save(w io.Writer) error { return r.Store.Save(w) }
func (r Record) Revert() { r.Store.ClearAll() }

func (r Record) Load(rd io.Reader, version uint32, resolve savegame.Resolver) error {
	return r.Store.Load(rd, version, func(id EntityID) (EntityID, bool) {
		cur, ok := resolve(uint32(id))
		return EntityID(cur), ok
	})
}
