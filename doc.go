// Package wlb is a dynamic native-call bridge for Go hosts.
//
// A host describes native data layouts at runtime, builds typed values,
// lays them out in address-stable memory, and calls native functions by raw
// address without compile-time knowledge of their signatures.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wlb/                 Root package with the Memory interface
//	├── types/           Primitive and struct layout descriptors, layout documents
//	├── memory/          Tiered address-stable buffers and raw peek/poke
//	├── value/           Pinned reference-counted values and struct instances
//	├── invoke/          Arity-selected native call thunks
//	├── process/         Module enumeration and symbol resolution
//	├── handle/          Opaque handle table for host boundaries
//	├── bridge/          Context object: the host-facing entry point
//	├── wasmhost/        wazero host module exposing the bridge to WASM guests
//	├── errors/          Structured error types
//	└── cmd/wlb/         Script runner and interactive shell
//
// # Quick Start
//
// Resolve a function and call it with a struct argument:
//
//	ctx, err := bridge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	point := types.NewStruct("POINT")
//	_ = point.Push(types.NewField("x", 0, types.U32()))
//	_ = point.Push(types.NewField("y", 4, types.U32()))
//
//	buf, _ := value.NewStructBuf(point)
//	_ = buf.SetField("x", value.NewU32(10))
//
//	mod, err := ctx.Module("user32")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fn, err := mod.F("GetCursorPos")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ok, err := fn.Call(value.NewRawPointer(uint64(buf.Addr())))
//
// # Safety
//
// Nothing verifies that a resolved address implements the signature implied
// by the supplied arguments. Calling with the wrong arity or widths, or handing
// out an address that outlives its buffer or value, is undefined behavior and
// may crash the process. Strings are passed by pointer, never as inline words.
//
// # Thread Safety
//
// Values are immutable after construction and their reference counts are
// atomic. StructBuf serializes field access per operation; no multi-field
// transaction is provided. A bridge.Context is meant for one host execution
// context at a time.
package wlb
