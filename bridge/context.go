// Package bridge is the entry point a host drives: it resolves modules and
// functions, builds typed values and layouts, invokes native functions,
// and reads and writes raw memory.
//
// All state lives in an explicit Context; nothing is global.
//
//	ctx, err := bridge.New()
//	user32, err := ctx.Module("user32")
//	fn, err := user32.F("MessageBoxA")
//	text, _ := value.NewCString("hello")
//	ret, err := fn.Call(value.NewU64(0), value.NewPointer(text), value.NewPointer(text.Clone()), value.NewU32(0))
//
// Hosts that dispatch by name use Call:
//
//	mod, err := ctx.Call("m", "user32")
package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/memory"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/types"
	"github.com/wippyai/wlb/value"
)

// Context carries everything a host needs to reach native code.
type Context struct {
	proc    *process.Process
	log     *zap.Logger
	layouts *types.Layouts
	types   *Types
	thunks  invoke.Table
	raw     memory.Raw
}

// New creates a Context. Without WithProcess it resolves modules in the
// running process; without WithThunks it uses the platform thunk table.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		log:    zap.NewNop(),
		thunks: invoke.Native(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.layouts == nil {
		c.layouts = types.NewLayouts()
	}
	if c.proc == nil {
		p, err := process.Current()
		if err != nil {
			return nil, err
		}
		c.proc = p
	}
	c.types = &Types{layouts: c.layouts}
	return c, nil
}

// Process returns the process modules are resolved in.
func (c *Context) Process() *process.Process { return c.proc }

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger { return c.log }

// Layouts returns the named layout registry.
func (c *Context) Layouts() *types.Layouts { return c.layouts }

// Types returns the type registry.
func (c *Context) Types() *Types { return c.types }

// Module resolves a loaded module by name. A missing module is an error.
func (c *Context) Module(name string) (*Module, error) {
	m, err := c.proc.Module(name)
	if err != nil {
		c.log.Debug("module lookup failed", zap.String("module", name), zap.Error(err))
		return nil, err
	}
	c.log.Debug("module resolved",
		zap.String("module", name),
		zap.String("base_name", m.BaseName()),
		zap.Uint64("base", uint64(m.Ref())))
	return &Module{ctx: c, mod: m}, nil
}

// FindFunctionModules lists the modules exporting function name.
func (c *Context) FindFunctionModules(name string) ([]string, error) {
	return c.proc.FindSymbolModules(name)
}

// FunctionAt wraps a raw address received from elsewhere as a callable
// function.
func (c *Context) FunctionAt(addr uint64) *Function {
	return &Function{ctx: c, addr: addr, name: ""}
}

// Index resolves "types" to the type registry and any other name to a
// module.
func (c *Context) Index(name string) (any, error) {
	if name == "types" {
		return c.types, nil
	}
	return c.Module(name)
}

// NewStructBuf binds a layout to a new buffer.
func (c *Context) NewStructBuf(s *types.Struct) (*value.StructBuf, error) {
	return value.NewStructBuf(s)
}

// Invoke calls the function at addr. Functions resolved in another process
// cannot be called.
func (c *Context) Invoke(addr uint64, args ...*value.Value) (int64, error) {
	if err := c.local("call a function"); err != nil {
		return 0, err
	}
	if uint64(uintptr(addr)) != addr {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "address exceeds native pointer width")
	}
	r, err := c.thunks.Call(uintptr(addr), args...)
	if err != nil {
		return 0, err
	}
	c.log.Debug("native call returned",
		zap.Uint64("address", addr),
		zap.Int("argc", len(args)),
		zap.Int64("result", r))
	return r, nil
}

func (c *Context) local(op string) error {
	if c.proc.Local() {
		return nil
	}
	return errors.Unsupported(errors.PhaseInvoke, op+" in another process")
}

// RawAccess reports whether addresses can be read and written directly. It
// fails when modules are resolved in another process. The Peek and Poke
// methods always act on the running process and do not check it.
func (c *Context) RawAccess() error {
	return c.local("access memory")
}

func (c *Context) Peek8(addr uint64) uint8   { return c.raw.Peek8(addr) }
func (c *Context) Peek16(addr uint64) uint16 { return c.raw.Peek16(addr) }
func (c *Context) Peek32(addr uint64) uint32 { return c.raw.Peek32(addr) }
func (c *Context) Peek64(addr uint64) uint64 { return c.raw.Peek64(addr) }

func (c *Context) Poke8(addr uint64, v uint8)   { c.raw.Poke8(addr, v) }
func (c *Context) Poke16(addr uint64, v uint16) { c.raw.Poke16(addr, v) }
func (c *Context) Poke32(addr uint64, v uint32) { c.raw.Poke32(addr, v) }
func (c *Context) Poke64(addr uint64, v uint64) { c.raw.Poke64(addr, v) }

// PeekString reads a NUL-terminated string of at most limit bytes.
func (c *Context) PeekString(addr uint64, limit int) string {
	return c.raw.CString(addr, limit)
}
