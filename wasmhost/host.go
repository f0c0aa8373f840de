// Package wasmhost exposes a bridge Context to WASM guests as the wazero
// host module "wlb".
//
// Guests never see Go pointers. Values, layouts, struct buffers, modules,
// and functions cross the boundary as uint32 handles from a handle.Table,
// and strings are passed as (pointer, length) pairs in guest memory.
//
// Functions returning a handle return 0 on failure; functions returning a
// status return 0 on success and -1 on failure. Every call clears the
// error message first, and a failure records it for last_error:
//
//	(import "wlb" "module" (func $module (param i32 i32) (result i32)))
//	(import "wlb" "last_error" (func $last_error (param i32 i32) (result i32)))
package wasmhost

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/handle"
)

// ModuleName is the import module name guests use.
const ModuleName = "wlb"

// Host serves the wlb host functions for one bridge Context.
type Host struct {
	bridge  *bridge.Context
	table   *handle.Table
	log     *zap.Logger
	lastErr string
	mu      sync.Mutex
}

// New creates a host over ctx with an empty handle table.
func New(ctx *bridge.Context) *Host {
	h := &Host{
		bridge: ctx,
		table:  handle.NewTable(),
		log:    ctx.Logger().Named("wasmhost"),
	}
	h.table.Subscribe(handle.LogObserver{Log: h.log})
	return h
}

// Table returns the handle table shared with the guest.
func (h *Host) Table() *handle.Table { return h.table }

// LastError returns the message of the most recent failure, or "".
func (h *Host) LastError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Instantiate registers the host module in r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)
	for _, exp := range h.exports() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(exp.fn, exp.params, exp.results).
			Export(exp.name)
	}
	return builder.Instantiate(ctx)
}

// Close drops every object still held by the guest.
func (h *Host) Close() error {
	return h.table.Close()
}

func (h *Host) clearError() {
	h.mu.Lock()
	h.lastErr = ""
	h.mu.Unlock()
}

func (h *Host) fail(fn string, err error) {
	h.log.Debug("host call failed", zap.String("function", fn), zap.Error(err))
	h.mu.Lock()
	h.lastErr = err.Error()
	h.mu.Unlock()
}

func readString(mod api.Module, ptr, length uint32) (string, error) {
	if length == 0 {
		return "", nil
	}
	b, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return "", errors.OutOfBounds(errors.PhaseHost, nil, int(ptr), int(length), int(mod.Memory().Size()))
	}
	return string(b), nil
}

// writeString copies s into guest memory, truncated to capacity, and
// returns the full length of s.
func writeString(mod api.Module, ptr, capacity uint32, s string) (int32, error) {
	n := uint32(len(s))
	if n > capacity {
		n = capacity
	}
	if n > 0 && !mod.Memory().Write(ptr, []byte(s[:n])) {
		return 0, errors.OutOfBounds(errors.PhaseHost, nil, int(ptr), int(n), int(mod.Memory().Size()))
	}
	return int32(len(s)), nil
}
