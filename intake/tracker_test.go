package intake

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/elemental/catalog"
)

type stim struct {
	id    catalog.EntityID
	elem  catalog.ElementHandle
	delta float64
}

type sink struct {
	mu   sync.Mutex
	adds []stim
}

func (s *sink) Add(id catalog.EntityID, elem catalog.ElementHandle, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds = append(s.adds, stim{id, elem, delta})
}

func newTracker(t *testing.T) (*Tracker, *sink, catalog.ElementHandle) {
	t.Helper()
	cat := catalog.New()
	fire, err := cat.RegisterElement(catalog.Element{Name: "Fire", Classifier: "fire"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cat.Freeze()
	s := &sink{}
	return NewTracker(cat.Elements, s, nil), s, fire
}

func TestTrackerForwardsBoundEffects(t *testing.T) {
	tr, s, fire := newTracker(t)

	if tr.Begin(1, 7, "poison") {
		t.Error("unclassified effect bound")
	}
	if !tr.Begin(2, 7, "fire") {
		t.Fatal("fire effect not bound")
	}
	if tr.Update(1, 5) {
		t.Error("update of unbound key forwarded")
	}
	tr.Update(2, 5)
	tr.Update(2, 2.5)
	tr.End(2)
	tr.Update(2, 9)

	want := []stim{{7, fire, 5}, {7, fire, 2.5}}
	if diff := cmp.Diff(want, s.adds, cmp.AllowUnexported(stim{})); diff != "" {
		t.Errorf("forwarded (-want +got):\n%s", diff)
	}
	if tr.Len() != 0 {
		t.Errorf("Len = %d, want 0", tr.Len())
	}
}

func TestTrackerForget(t *testing.T) {
	tr, _, fire := newTracker(t)
	tr.Begin(1, 7, "fire")
	tr.Begin(2, 7, "fire")
	tr.Begin(3, 8, "fire")

	if n := tr.Forget(7); n != 2 {
		t.Errorf("Forget removed %d, want 2", n)
	}
	target, elem, ok := tr.Lookup(3)
	if !ok || target != 8 || elem != fire {
		t.Errorf("Lookup(3) = (%d, %d, %v)", target, elem, ok)
	}
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr, s, _ := newTracker(t)
	for k := range EffectKey(8) {
		tr.Begin(k, catalog.EntityID(k+1), "fire")
	}

	var wg sync.WaitGroup
	for k := range EffectKey(8) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.Update(k, 1)
			}
		}()
	}
	wg.Wait()

	if len(s.adds) != 800 {
		t.Errorf("forwarded %d updates, want 800", len(s.adds))
	}
}
