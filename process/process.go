// Package process resolves loaded modules and exported symbols of a
// process.
//
// Platform access sits behind the Backend capability interface so that the
// resolution rules (access checks, name matching, symbol search) stay
// platform independent. Current returns the backend for the running
// process; Fake serves tests.
package process

import (
	stderrors "errors"
	"io"
	"regexp"
	"strings"

	"github.com/wippyai/wlb/errors"
)

// Access is a bitmask of rights held on a process.
type Access uint32

const (
	AccessQueryLimited Access = 1 << iota
	AccessQuery
	AccessVMRead
	AccessVMWrite

	AccessAll = AccessQueryLimited | AccessQuery | AccessVMRead | AccessVMWrite
)

// Rights required by each operation.
const (
	needID      = AccessQueryLimited
	needModules = AccessQuery | AccessVMRead
	needSymbol  = AccessQuery
)

func (a Access) Has(want Access) bool { return a&want == want }

func (a Access) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	names := []struct {
		bit  Access
		name string
	}{
		{AccessQueryLimited, "query_limited"},
		{AccessQuery, "query"},
		{AccessVMRead, "vm_read"},
		{AccessVMWrite, "vm_write"},
	}
	for _, n := range names {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ModuleRef identifies a loaded module within a backend. Backends use the
// module's load address.
type ModuleRef uint64

// Backend is the platform capability consumed by Process.
type Backend interface {
	// ID returns the process identifier.
	ID() (uint32, error)
	// Modules enumerates loaded modules.
	Modules() ([]ModuleRef, error)
	// BaseName returns the file name of a module.
	BaseName(ref ModuleRef) (string, error)
	// Symbol returns the address of an exported symbol. A missing symbol
	// is reported as false with a nil error.
	Symbol(ref ModuleRef, name string) (uint64, bool, error)
}

// Process is a backend together with the access rights held on it.
// Every operation checks the rights first and fails without touching the
// backend when they are insufficient.
type Process struct {
	backend Backend
	access  Access
	remote  bool
}

// New wraps a backend describing the running process with a cached access
// mask.
func New(b Backend, access Access) *Process {
	return &Process{backend: b, access: access}
}

// NewRemote wraps a backend describing another process. Addresses resolved
// in it are only meaningful in that process's address space.
func NewRemote(b Backend, access Access) *Process {
	return &Process{backend: b, access: access, remote: true}
}

// Local reports whether the process is the running one, so that resolved
// addresses can be called and dereferenced directly.
func (p *Process) Local() bool { return !p.remote }

// Access returns the cached rights.
func (p *Process) Access() Access { return p.access }

// Backend returns the underlying capability.
func (p *Process) Backend() Backend { return p.backend }

// Close releases platform resources held by the backend, if any.
func (p *Process) Close() error {
	if c, ok := p.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Process) require(op string, want Access) error {
	if !p.access.Has(want) {
		return errors.InsufficientAccess(op, uint32(want), uint32(p.access))
	}
	return nil
}

// ID returns the process identifier.
func (p *Process) ID() (uint32, error) {
	if err := p.require("process id", needID); err != nil {
		return 0, err
	}
	return p.backend.ID()
}

// Modules returns every loaded module.
func (p *Process) Modules() ([]*Module, error) {
	if err := p.require("enumerate modules", needModules); err != nil {
		return nil, err
	}
	refs, err := p.backend.Modules()
	if err != nil {
		return nil, err
	}
	mods := make([]*Module, 0, len(refs))
	for _, ref := range refs {
		name, err := p.backend.BaseName(ref)
		if err != nil {
			return nil, err
		}
		mods = append(mods, &Module{process: p, ref: ref, name: name})
	}
	return mods, nil
}

// Module finds a loaded module by base name. Matching ignores case and a
// conventional library suffix, so "user32", "USER32.dll" and "user32.DLL"
// name the same module, as do "libc" and "libc.so.6".
func (p *Process) Module(name string) (*Module, error) {
	mods, err := p.Modules()
	if err != nil {
		return nil, err
	}
	want := NormalizeName(name)
	for _, m := range mods {
		if NormalizeName(m.name) == want {
			return m, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseResolve, "module", name)
}

// FindSymbolModules lists the base names of modules exporting symbol. A
// module whose symbols cannot be read is left out of the search.
func (p *Process) FindSymbolModules(symbol string) ([]string, error) {
	mods, err := p.Modules()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range mods {
		_, ok, err := m.Symbol(symbol)
		if stderrors.Is(err, errors.ErrAddressResolution) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, m.name)
		}
	}
	return names, nil
}

// Module is a loaded module of a Process.
type Module struct {
	process *Process
	name    string
	ref     ModuleRef
}

// BaseName returns the module file name as reported by the platform.
func (m *Module) BaseName() string { return m.name }

// Ref returns the backend module reference.
func (m *Module) Ref() ModuleRef { return m.ref }

// Process returns the owning process.
func (m *Module) Process() *Process { return m.process }

// Symbol resolves an exported symbol. A symbol that is not exported is
// reported as false with a nil error.
func (m *Module) Symbol(name string) (uint64, bool, error) {
	if err := m.process.require("resolve symbol", needSymbol); err != nil {
		return 0, false, err
	}
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return 0, false, errors.InvalidInput(errors.PhaseResolve, "invalid symbol name")
	}
	return m.process.backend.Symbol(m.ref, name)
}

var suffix = regexp.MustCompile(`(?i)(\.dll|\.dylib|\.so(\.[0-9]+)*)$`)

// NormalizeName lowercases a module name and strips its library suffix.
func NormalizeName(name string) string {
	return strings.ToLower(suffix.ReplaceAllString(strings.TrimSpace(name), ""))
}
