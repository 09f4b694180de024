package engine

import "log/slog"

const subscriberBuffer = 64

// emit records an event and fans it out to subscribers. Slow subscribers
// miss events rather than stall the tick.
func (w *World) emit(e Event) {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()

	w.events = append(w.events, e)
	if len(w.events) > maxEvents {
		w.events = w.events[len(w.events)-maxEvents:]
	}
	w.pending = append(w.pending, e)
	if len(w.pending) > maxEvents {
		w.pending = w.pending[len(w.pending)-maxEvents:]
	}

	for id, ch := range w.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("subscriber lagging, event dropped", "sub_id", id)
		}
	}
}

// EmitEvent records an event from outside the world, e.g. an operator note.
func (w *World) EmitEvent(e Event) {
	w.emit(e)
}

// Events returns up to limit of the most recent events, oldest first.
func (w *World) Events(limit int) []Event {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()

	start := 0
	if limit > 0 && len(w.events) > limit {
		start = len(w.events) - limit
	}
	return append([]Event(nil), w.events[start:]...)
}

// DrainPending returns the events recorded since the last drain.
func (w *World) DrainPending() []Event {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

// Subscribe registers a channel that receives every new event.
func (w *World) Subscribe() (int, <-chan Event) {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()
	id := w.nextSub
	w.nextSub++
	ch := make(chan Event, subscriberBuffer)
	w.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (w *World) Unsubscribe(id int) {
	w.eventsMu.Lock()
	defer w.eventsMu.Unlock()
	if ch, ok := w.subs[id]; ok {
		close(ch)
		delete(w.subs, id)
	}
}
