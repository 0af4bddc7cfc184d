// Package intake correlates a host's low-level effect updates with the
// element each effect was classified as, and forwards their magnitudes to
// a gauge store.
package intake

import (
	"log/slog"
	"sync"

	"github.com/pthm-cable/elemental/catalog"
)

// EffectKey identifies one live effect instance. Its meaning belongs to the
// host; the tracker only compares keys.
type EffectKey uint64

// Stimulator receives forwarded stimuli. *gauge.Store implements it.
type Stimulator interface {
	Add(id catalog.EntityID, elem catalog.ElementHandle, delta float64)
}

// ElementResolver maps an effect classifier to an element.
type ElementResolver interface {
	ByClassifier(c string) (catalog.ElementHandle, bool)
}

type binding struct {
	target catalog.EntityID
	elem   catalog.ElementHandle
}

// Tracker holds the bindings. Updates take a read lock only.
type Tracker struct {
	resolve ElementResolver
	sink    Stimulator
	log     *slog.Logger

	mu       sync.RWMutex
	bindings map[EffectKey]binding
}

// NewTracker creates a tracker resolving classifiers through resolve and
// forwarding to sink.
func NewTracker(resolve ElementResolver, sink Stimulator, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		resolve:  resolve,
		sink:     sink,
		log:      logger.With(slog.String("component", "intake")),
		bindings: make(map[EffectKey]binding),
	}
}

// Begin binds key to target under the element its classifier resolves
// to. It returns false, binding nothing, for unclassified effects.
func (t *Tracker) Begin(key EffectKey, target catalog.EntityID, classifier string) bool {
	elem, ok := t.resolve.ByClassifier(classifier)
	if !ok || !elem.Valid() || target == 0 {
		return false
	}
	t.mu.Lock()
	t.bindings[key] = binding{target: target, elem: elem}
	t.mu.Unlock()
	t.log.Debug("effect bound", "key", key, "target", target, "element", elem)
	return true
}

// Update forwards magnitude for a bound effect and reports whether key
// was bound.
func (t *Tracker) Update(key EffectKey, magnitude float64) bool {
	t.mu.RLock()
	b, ok := t.bindings[key]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	t.sink.Add(b.target, b.elem, magnitude)
	return true
}

// Lookup returns the binding of key.
func (t *Tracker) Lookup(key EffectKey) (catalog.EntityID, catalog.ElementHandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bindings[key]
	return b.target, b.elem, ok
}

// End drops the binding of key.
func (t *Tracker) End(key EffectKey) {
	t.mu.Lock()
	delete(t.bindings, key)
	t.mu.Unlock()
}

// Forget drops every binding that targets id, as when the entity is
// removed.
func (t *Tracker) Forget(id catalog.EntityID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, b := range t.bindings {
		if b.target == id {
			delete(t.bindings, k)
			n++
		}
	}
	return n
}

// Len returns the number of bound effects.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings)
}
