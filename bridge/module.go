package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/value"
)

// Module is a resolved module whose exports can be looked up as functions.
type Module struct {
	ctx *Context
	mod *process.Module
}

// BaseName returns the module file name.
func (m *Module) BaseName() string { return m.mod.BaseName() }

// Base returns the module's load address.
func (m *Module) Base() uint64 { return uint64(m.mod.Ref()) }

// Index returns the named export, or nil when it cannot be resolved.
func (m *Module) Index(name string) *Function {
	f, err := m.F(name)
	if err != nil {
		return nil
	}
	return f
}

// F returns the named export. An export that does not exist is an error.
func (m *Module) F(name string) (*Function, error) {
	addr, ok, err := m.mod.Symbol(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "function", name)
	}
	m.ctx.log.Debug("function resolved",
		zap.String("module", m.mod.BaseName()),
		zap.String("function", name),
		zap.Uint64("address", addr))
	return &Function{ctx: m.ctx, name: name, addr: addr}, nil
}

func (m *Module) String() string { return m.mod.BaseName() }

// Function is a callable native address.
type Function struct {
	ctx  *Context
	name string
	addr uint64
}

// Address returns the function address.
func (f *Function) Address() uint64 { return f.addr }

// Name returns the export name, or "" for raw addresses.
func (f *Function) Name() string { return f.name }

// Call invokes the function. The signature is not checked: the caller is
// responsible for passing the number and widths of arguments the function
// expects.
func (f *Function) Call(args ...*value.Value) (int64, error) {
	return f.ctx.Invoke(f.addr, args...)
}
