package catalog

import (
	"log/slog"
	"math"
	"sync"
)

// Phase is a registry's lifecycle state.
type Phase uint8

const (
	PhaseOpen Phase = iota
	PhaseFrozen
)

func (p Phase) String() string {
	if p == PhaseFrozen {
		return "frozen"
	}
	return "open"
}

type descriptor interface {
	Element | State | Reaction | PreEffect
	key() string
	classifier() string
}

type handle interface {
	~uint16
}

// Registry is an append-only descriptor table with a one-way Open→Frozen
// transition. Handles map to dense indices in registration order.
type Registry[H handle, D descriptor] struct {
	kind   string
	logger *slog.Logger

	mu      sync.RWMutex
	phase   Phase
	entries []D // slot 0 reserved
	byName  map[string]H
	byClass map[string]H

	validate func(*D) error
}

func newRegistry[H handle, D descriptor](kind string, logger *slog.Logger) *Registry[H, D] {
	return &Registry[H, D]{
		kind:    kind,
		logger:  logger,
		entries: make([]D, 1),
	}
}

// Register appends d and returns its handle. After Freeze it returns the
// zero handle and a *ProtocolError wrapping ErrFrozen.
func (r *Registry[H, D]) Register(d D) (H, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFrozen {
		r.logger.Warn("registration after freeze rejected", "kind", r.kind, "name", d.key())
		return 0, &ProtocolError{Kind: r.kind, Name: d.key(), Err: ErrFrozen}
	}
	if d.key() == "" {
		return 0, &ProtocolError{Kind: r.kind, Err: ErrInvalid}
	}
	if len(r.entries) > math.MaxUint16 {
		return 0, &ProtocolError{Kind: r.kind, Name: d.key(), Err: ErrFull}
	}
	if r.validate != nil {
		if err := r.validate(&d); err != nil {
			return 0, &ProtocolError{Kind: r.kind, Name: d.key(), Err: err}
		}
	}

	r.entries = append(r.entries, d)
	h := H(len(r.entries) - 1)
	r.logger.Debug("registered", "kind", r.kind, "name", d.key(), "handle", int(h))
	return h, nil
}

// Freeze builds the lookup indices and rejects further registration.
// Calling it again is a no-op.
func (r *Registry[H, D]) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezeLocked(nil)
}

func (r *Registry[H, D]) freezeLocked(finalize func(entries []D)) {
	if r.phase == PhaseFrozen {
		return
	}
	if finalize != nil {
		finalize(r.entries)
	}

	r.byName = make(map[string]H, len(r.entries))
	r.byClass = make(map[string]H)
	for i := 1; i < len(r.entries); i++ {
		d := r.entries[i]
		if _, dup := r.byName[d.key()]; dup {
			// First registration keeps the name.
			r.logger.Warn("duplicate name", "kind", r.kind, "name", d.key(), "handle", i)
		} else {
			r.byName[d.key()] = H(i)
		}
		if c := d.classifier(); c != "" {
			if _, dup := r.byClass[c]; !dup {
				r.byClass[c] = H(i)
			}
		}
	}
	r.phase = PhaseFrozen
	r.logger.Info("frozen", "kind", r.kind, "count", len(r.entries)-1)
}

// Phase returns the current lifecycle state.
func (r *Registry[H, D]) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Frozen reports whether Freeze has run.
func (r *Registry[H, D]) Frozen() bool { return r.Phase() == PhaseFrozen }

// Len returns the number of registered descriptors, excluding slot 0.
func (r *Registry[H, D]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) - 1
}

// Get returns the descriptor for h. ok is false for the zero handle and
// out-of-range handles. Slices inside the returned value are shared and
// must be treated as read-only.
func (r *Registry[H, D]) Get(h H) (d D, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h == 0 || int(h) >= len(r.entries) {
		return d, false
	}
	return r.entries[h], true
}

// ByName resolves a registered name.
func (r *Registry[H, D]) ByName(name string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.phase == PhaseFrozen {
		h, ok := r.byName[name]
		return h, ok
	}
	for i := 1; i < len(r.entries); i++ {
		if r.entries[i].key() == name {
			return H(i), true
		}
	}
	return 0, false
}

// ByClassifier resolves an external classifier.
func (r *Registry[H, D]) ByClassifier(c string) (H, bool) {
	if c == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.phase == PhaseFrozen {
		h, ok := r.byClass[c]
		return h, ok
	}
	for i := 1; i < len(r.entries); i++ {
		if r.entries[i].classifier() == c {
			return H(i), true
		}
	}
	return 0, false
}

// Handles returns every registered handle in registration order.
func (r *Registry[H, D]) Handles() []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := make([]H, 0, len(r.entries)-1)
	for i := 1; i < len(r.entries); i++ {
		hs = append(hs, H(i))
	}
	return hs
}
