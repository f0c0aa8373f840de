package process

import (
	"sync"

	"github.com/wippyai/wlb/errors"
)

// FakeModule is an in-memory module served by Fake.
type FakeModule struct {
	Symbols map[string]uint64
	Name    string
}

// Fake is an in-memory Backend. Module refs are assigned in order starting
// at 1. Calls are counted so tests can assert that a denied operation never
// reached the backend.
type Fake struct {
	err   error
	mods  []FakeModule
	calls int
	mu    sync.Mutex
	pid   uint32
}

var _ Backend = (*Fake)(nil)

// NewFake creates a backend for process pid with the given modules.
func NewFake(pid uint32, mods ...FakeModule) *Fake {
	return &Fake{pid: pid, mods: mods}
}

// FailWith makes Modules return err.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Calls returns the number of backend calls made so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) ID() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pid, nil
}

func (f *Fake) Modules() ([]ModuleRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	refs := make([]ModuleRef, len(f.mods))
	for i := range f.mods {
		refs[i] = ModuleRef(i + 1)
	}
	return refs, nil
}

func (f *Fake) module(ref ModuleRef) (FakeModule, error) {
	i := int(ref) - 1
	if i < 0 || i >= len(f.mods) {
		return FakeModule{}, errors.AddressResolution("unknown module", 126, nil)
	}
	return f.mods[i], nil
}

func (f *Fake) BaseName(ref ModuleRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, err := f.module(ref)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func (f *Fake) Symbol(ref ModuleRef, name string) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, err := f.module(ref)
	if err != nil {
		return 0, false, err
	}
	addr, ok := m.Symbols[name]
	return addr, ok, nil
}
