package gauge

import "github.com/pthm-cable/elemental/catalog"

// outbox collects notifications produced under the store lock so they can
// be delivered after it is released, in the order they happened.
type outbox struct {
	notes []note
}

type note struct {
	reaction  *catalog.ReactionEvent
	preEffect *catalog.PreEffectEvent
	rcb       func(catalog.ReactionEvent)
	pcb       func(catalog.PreEffectEvent)
}

func (o *outbox) reaction(ev catalog.ReactionEvent, cb func(catalog.ReactionEvent)) {
	o.notes = append(o.notes, note{reaction: &ev, rcb: cb})
}

func (o *outbox) preEffect(ev catalog.PreEffectEvent, cb func(catalog.PreEffectEvent)) {
	o.notes = append(o.notes, note{preEffect: &ev, pcb: cb})
}

// deliver notifies the observer inline and hands callbacks to the
// dispatcher, falling back to running them on the caller.
func (s *Store) deliver(o *outbox) {
	for _, n := range o.notes {
		var cmd func()
		switch {
		case n.reaction != nil:
			ev := *n.reaction
			s.opts.Observer.ReactionFired(ev)
			if n.rcb != nil {
				cb := n.rcb
				cmd = func() { cb(ev) }
			}
		case n.preEffect != nil:
			ev := *n.preEffect
			s.opts.Observer.PreEffectChanged(ev)
			if n.pcb != nil {
				cb := n.pcb
				cmd = func() { cb(ev) }
			}
		}
		if cmd == nil {
			continue
		}
		if s.opts.Dispatcher != nil && s.opts.Dispatcher.Post(cmd) {
			continue
		}
		cmd()
	}
}
