package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestCatalog(t *testing.T) (*Catalog, ElementHandle, ElementHandle, ElementHandle) {
	t.Helper()
	c := New()
	fire, err := c.RegisterElement(Element{Name: "Fire", Color: 0xff4000, Classifier: "fire"})
	if err != nil {
		t.Fatalf("register fire: %v", err)
	}
	frost, _ := c.RegisterElement(Element{Name: "Frost", Color: 0x40c0ff, Classifier: "frost"})
	shock, _ := c.RegisterElement(Element{Name: "Shock", Color: 0xc080ff, Classifier: "shock"})
	return c, fire, frost, shock
}

func TestHandlesFollowRegistrationOrder(t *testing.T) {
	_, fire, frost, shock := newTestCatalog(t)
	got := []ElementHandle{fire, frost, shock}
	want := []ElementHandle{1, 2, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterAfterFreeze(t *testing.T) {
	c, fire, _, _ := newTestCatalog(t)
	c.Freeze()

	tests := []struct {
		name     string
		register func() (uint16, error)
		size     func() int
	}{
		{"element", func() (uint16, error) {
			h, err := c.RegisterElement(Element{Name: "Poison"})
			return uint16(h), err
		}, c.Elements.Len},
		{"state", func() (uint16, error) {
			h, err := c.RegisterState(State{Name: "Wet"})
			return uint16(h), err
		}, c.States.Len},
		{"reaction", func() (uint16, error) {
			h, err := c.RegisterReaction(Reaction{Name: "Late", Elements: []ElementHandle{fire}})
			return uint16(h), err
		}, c.Reactions.Len},
		{"pre-effect", func() (uint16, error) {
			h, err := c.RegisterPreEffect(PreEffect{Name: "Late", Element: fire})
			return uint16(h), err
		}, c.PreEffects.Len},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.size()
			h, err := tt.register()
			if h != 0 {
				t.Errorf("handle = %d, want 0", h)
			}
			if !errors.Is(err, ErrFrozen) {
				t.Errorf("err = %v, want ErrFrozen", err)
			}
			var perr *ProtocolError
			if !errors.As(err, &perr) || perr.Kind != tt.name {
				t.Errorf("err = %#v, want *ProtocolError kind %q", err, tt.name)
			}
			if after := tt.size(); after != before {
				t.Errorf("size changed from %d to %d", before, after)
			}
		})
	}
}

func TestFreezeIdempotent(t *testing.T) {
	c, _, _, _ := newTestCatalog(t)
	c.Freeze()
	c.Freeze()
	if !c.Frozen() || !c.Elements.Frozen() || c.Reactions.Phase() != PhaseFrozen {
		t.Fatal("expected every registry frozen")
	}
	if n := c.Elements.Len(); n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}

func TestGetOutOfRange(t *testing.T) {
	c, fire, _, _ := newTestCatalog(t)
	c.Freeze()

	if _, ok := c.Elements.Get(NoElement); ok {
		t.Error("Get(0) should fail")
	}
	if _, ok := c.Elements.Get(99); ok {
		t.Error("Get(99) should fail")
	}
	e, ok := c.Elements.Get(fire)
	if !ok || e.Name != "Fire" {
		t.Errorf("Get(fire) = %+v, %v", e, ok)
	}
}

func TestLookupIndices(t *testing.T) {
	c, _, frost, _ := newTestCatalog(t)
	c.Freeze()

	if h, ok := c.Elements.ByName("Frost"); !ok || h != frost {
		t.Errorf("ByName(Frost) = %d, %v", h, ok)
	}
	if h, ok := c.Elements.ByClassifier("frost"); !ok || h != frost {
		t.Errorf("ByClassifier(frost) = %d, %v", h, ok)
	}
	if _, ok := c.Elements.ByClassifier(""); ok {
		t.Error("empty classifier should not resolve")
	}
	if _, ok := c.Elements.ByName("Water"); ok {
		t.Error("unknown name should not resolve")
	}
}

func TestStateMultipliersSizedAtFreeze(t *testing.T) {
	c, fire, frost, _ := newTestCatalog(t)
	wet, _ := c.RegisterState(State{Name: "Wet", Classifier: "wet"})
	oiled, _ := c.RegisterState(State{Name: "Oiled"})

	if err := c.SetStateMultiplier(fire, wet, 0.5, 0.75); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStateMultiplier(frost, wet, 2, 1); err != nil {
		t.Fatal(err)
	}
	c.Freeze()

	e, _ := c.Elements.Get(fire)
	if got := e.GaugeMultiplier(wet); got != 0.5 {
		t.Errorf("fire/wet gauge = %v, want 0.5", got)
	}
	if got := e.HealthMultiplier(wet); got != 0.75 {
		t.Errorf("fire/wet health = %v, want 0.75", got)
	}
	if got := e.GaugeMultiplier(oiled); got != 1 {
		t.Errorf("fire/oiled gauge = %v, want default 1", got)
	}
	if got := len(e.gaugeMult); got != c.States.Len()+1 {
		t.Errorf("table size = %d, want %d", got, c.States.Len()+1)
	}

	if err := c.SetStateMultiplier(fire, oiled, 3, 3); !errors.Is(err, ErrFrozen) {
		t.Errorf("SetStateMultiplier after freeze err = %v", err)
	}
}

func TestReactionValidation(t *testing.T) {
	c, fire, frost, _ := newTestCatalog(t)

	tests := []struct {
		name string
		r    Reaction
	}{
		{"no elements", Reaction{Name: "Empty"}},
		{"unknown element", Reaction{Name: "Ghost", Elements: []ElementHandle{fire, 42}}},
		{"duplicate element", Reaction{Name: "Twice", Elements: []ElementHandle{frost, frost}}},
		{"bad fraction", Reaction{Name: "Frac", Elements: []ElementHandle{fire}, MinPctEach: 1.5}},
		{"no name", Reaction{Elements: []ElementHandle{fire}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := c.RegisterReaction(tt.r)
			if h.Valid() || !errors.Is(err, ErrInvalid) {
				t.Errorf("got %d, %v; want invalid", h, err)
			}
		})
	}
	if n := c.Reactions.Len(); n != 0 {
		t.Errorf("Len = %d after rejected registrations", n)
	}
}

func TestPreEffectWatchersAndUnboundedIntensity(t *testing.T) {
	c, fire, _, shock := newTestCatalog(t)
	a, _ := c.RegisterPreEffect(PreEffect{Name: "Static", Element: shock, MinGauge: 50, Base: 0.1, Scale: 0.01, MaxIntensity: 0.6})
	b, _ := c.RegisterPreEffect(PreEffect{Name: "Crackle", Element: shock, MinGauge: 20, Base: 1, Scale: 1})
	c.Freeze()

	if diff := cmp.Diff([]PreEffectHandle{a, b}, c.PreEffectsFor(shock)); diff != "" {
		t.Errorf("watchers (-want +got):\n%s", diff)
	}
	if got := c.PreEffectsFor(fire); len(got) != 0 {
		t.Errorf("fire watchers = %v", got)
	}

	p, _ := c.PreEffects.Get(b)
	if !math.IsInf(p.MaxIntensity, 1) {
		t.Errorf("MaxIntensity = %v, want +Inf", p.MaxIntensity)
	}
	if got := p.Intensity(100); got != 81 {
		t.Errorf("Intensity(100) = %v, want 81", got)
	}
}

func TestOnFreezeHooks(t *testing.T) {
	c := New()
	var calls int
	c.OnFreeze(func(*Catalog) { calls++ })
	c.Freeze()
	c.Freeze()
	c.OnFreeze(func(*Catalog) { calls++ })
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
