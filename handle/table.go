package handle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wlb/errors"
)

// Table maps handles to objects and notifies observers of lifecycle
// changes. It is safe for concurrent use.
type Table struct {
	store     *store
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{store: newStore()}
}

// Insert stores object under kind and returns its handle, or 0 when the
// table is closed.
func (t *Table) Insert(kind Kind, object any) Handle {
	h, err := t.store.add(kind, object)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Object: object})
	return h
}

// Lookup returns the object and kind behind h.
func (t *Table) Lookup(h Handle) (any, Kind, bool) {
	return t.store.get(h)
}

// Get returns the object behind h if it has the given kind and Go type.
func Get[T any](t *Table, h Handle, kind Kind) (T, error) {
	var zero T
	object, k, ok := t.store.get(h)
	if !ok || k != kind {
		return zero, errors.InvalidHandle(uint32(h), kind.String())
	}
	v, ok := object.(T)
	if !ok {
		return zero, errors.InvalidHandle(uint32(h), kind.String())
	}
	return v, nil
}

// Remove frees h, drops its object, and returns it.
func (t *Table) Remove(h Handle) (any, error) {
	object, kind, err := t.store.take(h)
	if err != nil {
		return nil, err
	}
	if d, ok := object.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Kind: kind, Object: object})
	return object, nil
}

// Borrow pins h against removal until Return is called.
func (t *Table) Borrow(h Handle) bool { return t.store.borrow(h) }

// Return gives back a borrow taken with Borrow.
func (t *Table) Return(h Handle) bool { return t.store.giveBack(h) }

// Len returns the number of live handles.
func (t *Table) Len() int { return t.store.len() }

// Each calls fn for every live handle until fn returns false.
func (t *Table) Each(fn func(Handle, Kind, any) bool) { t.store.each(fn) }

// Clear removes every unborrowed handle.
func (t *Table) Clear() {
	var hs []Handle
	t.store.each(func(h Handle, _ Kind, _ any) bool {
		hs = append(hs, h)
		return true
	})
	for _, h := range hs {
		_, _ = t.Remove(h)
	}
}

// Close drops every object and stops accepting inserts.
func (t *Table) Close() error {
	t.store.close()
	return nil
}

// Subscribe adds an observer.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}

// LogObserver logs lifecycle events at debug level.
type LogObserver struct {
	Log *zap.Logger
}

func (o LogObserver) OnHandleEvent(e Event) {
	o.Log.Debug("handle "+e.Type.String(),
		zap.Uint32("handle", uint32(e.Handle)),
		zap.Stringer("kind", e.Kind))
}
