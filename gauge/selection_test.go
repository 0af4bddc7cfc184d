package gauge

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/elemental/catalog"
)

// reactionList is a ReactionSource over a plain slice; handle i+1 is
// entry i.
type reactionList []catalog.Reaction

func (l reactionList) Handles() []catalog.ReactionHandle {
	hs := make([]catalog.ReactionHandle, len(l))
	for i := range l {
		hs[i] = catalog.ReactionHandle(i + 1)
	}
	return hs
}

func (l reactionList) Get(h catalog.ReactionHandle) (catalog.Reaction, bool) {
	if !h.Valid() || int(h) > len(l) {
		return catalog.Reaction{}, false
	}
	return l[h-1], true
}

func snapshotOf(values ...uint8) Snapshot {
	snap := Snapshot{Values: append([]uint8{0}, values...)}
	for i, v := range snap.Values {
		if v > 0 {
			snap.Present = append(snap.Present, catalog.ElementHandle(i))
			snap.Sum += int(v)
		}
	}
	return snap
}

const (
	fire  catalog.ElementHandle = 1
	frost catalog.ElementHandle = 2
	shock catalog.ElementHandle = 3
)

func els(hs ...catalog.ElementHandle) []catalog.ElementHandle { return hs }

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		reactions reactionList
		snap      Snapshot
		maxPicks  int
		want      []catalog.ReactionHandle
	}{
		{
			name: "solo fire at 90 percent",
			reactions: reactionList{
				{Name: "Solo_Fire_85", Elements: els(fire), MinPctEach: 0.85},
			},
			snap:     snapshotOf(90, 5, 5),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{1},
		},
		{
			name: "share below threshold",
			reactions: reactionList{
				{Name: "Solo_Fire_85", Elements: els(fire), MinPctEach: 0.85},
			},
			snap:     snapshotOf(80, 10, 10),
			maxPicks: 1,
		},
		{
			name: "missing element",
			reactions: reactionList{
				{Name: "Melt", Elements: els(fire, frost)},
			},
			snap:     snapshotOf(100, 0, 0),
			maxPicks: 1,
		},
		{
			name: "min total gauge",
			reactions: reactionList{
				{Name: "Big", Elements: els(fire), MinTotalGauge: 60},
			},
			snap:     snapshotOf(50, 0, 0),
			maxPicks: 1,
		},
		{
			name: "min sum selected",
			reactions: reactionList{
				{Name: "Melt", Elements: els(fire, frost), MinSumSelected: 0.9},
				{Name: "Steam", Elements: els(fire, frost), MinSumSelected: 0.5},
			},
			snap:     snapshotOf(40, 40, 20),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{2},
		},
		{
			name: "highest score wins",
			reactions: reactionList{
				{Name: "Solo_Frost", Elements: els(frost)},
				{Name: "Solo_Fire", Elements: els(fire)},
			},
			snap:     snapshotOf(60, 40, 0),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{2},
		},
		{
			name: "more elements break score ties",
			reactions: reactionList{
				{Name: "Solo_Fire", Elements: els(fire)},
				{Name: "Storm", Elements: els(frost, shock)},
			},
			snap:     snapshotOf(50, 25, 25),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{2},
		},
		{
			name: "priority before handle",
			reactions: reactionList{
				{Name: "First", Elements: els(fire)},
				{Name: "Preferred", Elements: els(fire), Priority: 5},
			},
			snap:     snapshotOf(70, 30, 0),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{2},
		},
		{
			name: "lowest handle last",
			reactions: reactionList{
				{Name: "A", Elements: els(fire)},
				{Name: "B", Elements: els(fire)},
			},
			snap:     snapshotOf(70, 30, 0),
			maxPicks: 1,
			want:     []catalog.ReactionHandle{1},
		},
		{
			name: "multi pick from one snapshot",
			reactions: reactionList{
				{Name: "Solo_Frost", Elements: els(frost)},
				{Name: "Melt", Elements: els(fire, frost)},
				{Name: "Solo_Fire", Elements: els(fire)},
			},
			snap:     snapshotOf(60, 40, 0),
			maxPicks: 5,
			want:     []catalog.ReactionHandle{2, 3, 1},
		},
		{
			name: "empty snapshot",
			reactions: reactionList{
				{Name: "Solo_Fire", Elements: els(fire)},
			},
			snap:     snapshotOf(0, 0, 0),
			maxPicks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.reactions, tt.snap, nil, tt.maxPicks)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Select mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectExclude(t *testing.T) {
	reactions := reactionList{
		{Name: "Solo_Fire", Elements: els(fire)},
		{Name: "Also_Fire", Elements: els(fire)},
	}
	got := Select(reactions, snapshotOf(100), func(h catalog.ReactionHandle) bool { return h == 1 }, 1)
	if diff := cmp.Diff([]catalog.ReactionHandle{2}, got); diff != "" {
		t.Errorf("Select mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectRequiresPresentElements(t *testing.T) {
	reactions := reactionList{
		{Name: "Melt", Elements: els(fire, frost)},
		{Name: "Solo_Fire", Elements: els(fire)},
	}
	// Frost holds a value but is not listed as present.
	snap := Snapshot{Values: []uint8{0, 50, 50}, Present: els(fire), Sum: 100}

	got := Select(reactions, snap, nil, 2)
	if diff := cmp.Diff([]catalog.ReactionHandle{2}, got); diff != "" {
		t.Errorf("Select mismatch (-want +got):\n%s", diff)
	}

	snap.Present = nil
	if got := Select(reactions, snap, nil, 2); got != nil {
		t.Errorf("Select with nothing present = %v, want nil", got)
	}
}

func TestSoloFireClearsAll(t *testing.T) {
	var fired []catalog.ReactionEvent
	f := newFixture(t, func(f *fixture) {
		f.cat.RegisterReaction(catalog.Reaction{
			Name:              "Solo_Fire_85",
			Elements:          els(f.fire),
			MinPctEach:        0.85,
			ClearAllOnTrigger: true,
			Callback:          func(ev catalog.ReactionEvent) { fired = append(fired, ev) },
		})
		f.cat.RegisterReaction(catalog.Reaction{Name: "Frost_Shock", Elements: els(f.frost, f.shock), MinPctEach: 0.3})
	})
	s := f.store(t, noDecay())

	s.Set(1, f.fire, 85)
	s.Set(1, f.frost, 5)
	s.Set(1, f.shock, 5)
	if len(fired) != 0 {
		t.Fatalf("Set triggered %d reactions", len(fired))
	}

	s.Add(1, f.fire, 5)
	if len(fired) != 1 {
		t.Fatalf("fired %d reactions, want 1", len(fired))
	}
	ev := fired[0]
	if ev.Name != "Solo_Fire_85" || ev.Entity != 1 {
		t.Errorf("event = %s on %d, want Solo_Fire_85 on 1", ev.Name, ev.Entity)
	}
	if diff := cmp.Diff([]uint8{0, 90, 5, 5}, ev.Values); diff != "" {
		t.Errorf("pre-trigger values (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 0, 0}, f.values(s, 1)); diff != "" {
		t.Errorf("gauges after clear-all (-want +got):\n%s", diff)
	}
}

func TestSingleTriggerFiresOnce(t *testing.T) {
	var fired int
	f := newFixture(t, func(f *fixture) {
		f.cat.RegisterReaction(catalog.Reaction{
			Name:     "Ignite",
			Elements: els(f.fire),
			Callback: func(catalog.ReactionEvent) { fired++ },
		})
	})
	rec := &recorder{}
	opts := noDecay()
	opts.SingleTrigger = true
	opts.AggregateTrigger = false
	opts.Observer = rec
	s := f.store(t, opts)

	s.Add(1, f.fire, 50)
	if got := s.Get(1, f.fire); got != 50 {
		t.Fatalf("after first add = %d, want 50", got)
	}
	if fired != 0 {
		t.Fatalf("fired below max")
	}

	s.Add(1, f.fire, 60)
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
	if diff := cmp.Diff([]int{50, Max}, rec.applied); diff != "" {
		t.Errorf("applied values (-want +got):\n%s", diff)
	}
	if got := rec.reactions[0].Values[f.fire]; got != Max {
		t.Errorf("event fire value = %d, want %d", got, Max)
	}

	// The element is cleared and locked out, so the next stimulus is refused.
	s.Add(1, f.fire, 60)
	if fired != 1 || rec.blocked != 1 {
		t.Errorf("during lockout: fired=%d blocked=%d, want 1 and 1", fired, rec.blocked)
	}
}

func TestSingleTriggerOnlyClearsElement(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.cat.RegisterReaction(catalog.Reaction{Name: "Melt", Elements: els(f.fire, f.frost), ClearAllOnTrigger: true})
		f.cat.RegisterReaction(catalog.Reaction{Name: "Ignite", Elements: els(f.fire)})
	})
	opts := noDecay()
	opts.SingleTrigger = true
	opts.AggregateTrigger = false
	s := f.store(t, opts)

	s.Set(1, f.frost, 40)
	s.Add(1, f.fire, 100)
	// Only fire is in the snapshot, so Melt cannot match.
	if diff := cmp.Diff([]int{0, 40, 0}, f.values(s, 1)); diff != "" {
		t.Errorf("gauges (-want +got):\n%s", diff)
	}
}

func TestLockoutFallback(t *testing.T) {
	tests := []struct {
		name       string
		reaction   catalog.Reaction
		lockedFor  time.Duration
		realDomain bool
	}{
		{"explicit", catalog.Reaction{ElementLockout: 3 * time.Second}, 3 * time.Second, false},
		{"minimum", catalog.Reaction{}, 500 * time.Millisecond, false},
		{"cooldown", catalog.Reaction{Cooldown: 2 * time.Second}, 2 * time.Second, false},
		{"real time cooldown", catalog.Reaction{Cooldown: 2 * time.Second, CooldownRealTime: true}, 2 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(f *fixture) {
				r := tt.reaction
				r.Name = "Burn"
				r.Elements = els(f.fire, f.frost)
				f.cat.RegisterReaction(r)
			})
			rec := &recorder{}
			opts := noDecay()
			opts.Observer = rec
			s := f.store(t, opts)

			s.Set(1, f.frost, 50)
			s.Add(1, f.fire, 50)
			if len(rec.reactions) != 1 {
				t.Fatalf("fired %d reactions, want 1", len(rec.reactions))
			}
			if got := rec.reactions[0].Lockout; got != tt.lockedFor {
				t.Errorf("event lockout = %v, want %v", got, tt.lockedFor)
			}
			for _, h := range []catalog.ElementHandle{f.fire, f.frost} {
				if !s.Locked(1, h) {
					t.Errorf("element %d not locked", h)
				}
			}
			if s.Locked(1, f.shock) {
				t.Error("uninvolved element locked")
			}

			if tt.realDomain {
				// Simulation time alone does not release a real-time lockout.
				f.clock.AdvanceSim(1000)
				if !s.Locked(1, f.fire) {
					t.Error("real-time lockout released by sim time")
				}
			}
			f.clock.Advance(tt.lockedFor)
			if s.Locked(1, f.fire) {
				t.Error("still locked after lockout elapsed")
			}
		})
	}
}

func TestReactionCooldown(t *testing.T) {
	var fired int
	f := newFixture(t, func(f *fixture) {
		f.cat.RegisterReaction(catalog.Reaction{
			Name:           "Ignite",
			Elements:       els(f.fire),
			Cooldown:       10 * time.Second,
			ElementLockout: time.Second,
			Callback:       func(catalog.ReactionEvent) { fired++ },
		})
	})
	s := f.store(t, noDecay())
	ignite, _ := f.cat.Reactions.ByName("Ignite")

	s.Add(1, f.fire, 100)
	if fired != 1 || !s.OnCooldown(1, ignite) {
		t.Fatalf("fired=%d cooldown=%v after first crossing", fired, s.OnCooldown(1, ignite))
	}

	f.clock.Advance(2 * time.Second)
	s.Add(1, f.fire, 100)
	if fired != 1 {
		t.Errorf("fired during cooldown")
	}
	if got := s.Get(1, f.fire); got != Max {
		t.Errorf("gauge kept while cooling down: got %d, want %d", got, Max)
	}

	f.clock.Advance(10 * time.Second)
	s.Set(1, f.fire, 0)
	s.Add(1, f.fire, 100)
	if fired != 2 {
		t.Errorf("fired %d times after cooldown, want 2", fired)
	}
}

type queueDispatcher struct {
	accept bool
	cmds   []func()
}

func (d *queueDispatcher) Post(cmd func()) bool {
	if !d.accept {
		return false
	}
	d.cmds = append(d.cmds, cmd)
	return true
}

func TestCallbacksGoThroughDispatcher(t *testing.T) {
	for _, accept := range []bool{true, false} {
		var fired int
		f := newFixture(t, func(f *fixture) {
			f.cat.RegisterReaction(catalog.Reaction{
				Name:     "Ignite",
				Elements: els(f.fire),
				Callback: func(catalog.ReactionEvent) { fired++ },
			})
		})
		d := &queueDispatcher{accept: accept}
		opts := noDecay()
		opts.Dispatcher = d
		s := f.store(t, opts)

		s.Add(1, f.fire, 100)
		if accept {
			if fired != 0 || len(d.cmds) != 1 {
				t.Fatalf("queued: fired=%d queued=%d, want 0 and 1", fired, len(d.cmds))
			}
			d.cmds[0]()
		}
		if fired != 1 {
			t.Errorf("accept=%v: fired %d, want 1", accept, fired)
		}
	}
}

func TestMultiPickAppliesEach(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.cat.RegisterReaction(catalog.Reaction{Name: "Melt", Elements: els(f.fire, f.frost)})
		f.cat.RegisterReaction(catalog.Reaction{Name: "Ignite", Elements: els(f.fire)})
		f.cat.RegisterReaction(catalog.Reaction{Name: "Arc", Elements: els(f.shock)})
	})
	rec := &recorder{}
	opts := noDecay()
	opts.MaxPicks = 2
	opts.Observer = rec
	s := f.store(t, opts)

	s.Set(1, f.frost, 30)
	s.Set(1, f.shock, 10)
	s.Add(1, f.fire, 60)

	var names []string
	for _, ev := range rec.reactions {
		names = append(names, ev.Name)
		if diff := cmp.Diff([]uint8{0, 60, 30, 10}, ev.Values); diff != "" {
			t.Errorf("%s saw values (-want +got):\n%s", ev.Name, diff)
		}
	}
	if diff := cmp.Diff([]string{"Melt", "Ignite"}, names); diff != "" {
		t.Errorf("picks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 0, 10}, f.values(s, 1)); diff != "" {
		t.Errorf("gauges (-want +got):\n%s", diff)
	}
}
