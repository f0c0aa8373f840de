package handle

import (
	"sync"

	"github.com/wippyai/wlb/errors"
)

var ErrClosed = errors.New(errors.PhaseHost, errors.KindInvalidHandle).Detail("handle table closed").Build()

// store is the slot array behind a Table. Freed slots are kept on a free
// list and reused last-in first-out.
type store struct {
	slots []slot
	free  []Handle
	mu    sync.RWMutex
	shut  bool
}

type slot struct {
	object  any
	borrows uint32
	kind    Kind
	live    bool
}

func newStore() *store {
	return &store{
		slots: make([]slot, 0, 64),
		free:  make([]Handle, 0, 16),
	}
}

func (s *store) add(kind Kind, object any) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shut {
		return 0, ErrClosed
	}

	e := slot{kind: kind, object: object, live: true}
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[h-1] = e
		return h, nil
	}
	s.slots = append(s.slots, e)
	return Handle(len(s.slots)), nil
}

// at returns the live slot for h. Callers hold the lock.
func (s *store) at(h Handle) *slot {
	if h == 0 || int(h) > len(s.slots) {
		return nil
	}
	e := &s.slots[h-1]
	if !e.live {
		return nil
	}
	return e
}

func (s *store) get(h Handle) (any, Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.at(h)
	if e == nil {
		return nil, 0, false
	}
	return e.object, e.kind, true
}

// take frees the slot of h and returns its object. Borrowed handles are
// not freed.
func (s *store) take(h Handle) (any, Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.at(h)
	if e == nil {
		return nil, 0, errors.InvalidHandle(uint32(h), "object")
	}
	if e.borrows > 0 {
		return nil, 0, errors.New(errors.PhaseHost, errors.KindInvalidHandle).
			Value(uint32(h)).
			Detail("handle %d has %d outstanding borrows", h, e.borrows).
			Build()
	}
	object, kind := e.object, e.kind
	*e = slot{}
	s.free = append(s.free, h)
	return object, kind, nil
}

func (s *store) borrow(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.at(h)
	if e == nil {
		return false
	}
	e.borrows++
	return true
}

func (s *store) giveBack(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.at(h)
	if e == nil || e.borrows == 0 {
		return false
	}
	e.borrows--
	return true
}

func (s *store) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.slots {
		if e.live {
			n++
		}
	}
	return n
}

func (s *store) each(fn func(Handle, Kind, any) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range s.slots {
		if e.live && !fn(Handle(i+1), e.kind, e.object) {
			return
		}
	}
}

// close drops every live object and refuses further inserts.
func (s *store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shut {
		return
	}
	s.shut = true
	for i := range s.slots {
		if s.slots[i].live {
			if d, ok := s.slots[i].object.(Dropper); ok {
				d.Drop()
			}
		}
	}
	s.slots = nil
	s.free = nil
}
