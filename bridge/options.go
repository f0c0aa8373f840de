package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/types"
)

// Option configures a Context.
type Option func(*Context)

// WithProcess resolves modules in p instead of the running process.
func WithProcess(p *process.Process) Option {
	return func(c *Context) {
		c.proc = p
	}
}

// WithThunks replaces the native thunk table.
func WithThunks(t invoke.Table) Option {
	return func(c *Context) {
		c.thunks = t
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.log = l
	}
}

// WithLayouts makes named struct layouts available through Types.
func WithLayouts(l *types.Layouts) Option {
	return func(c *Context) {
		c.layouts = l
	}
}
