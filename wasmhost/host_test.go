package wasmhost

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/handle"
	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/memory"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/value"
)

// memoryOnly is a module exporting one page of linear memory as "memory".
var memoryOnly = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

type nativeCall struct {
	fn   uintptr
	args []uint64
}

type fixture struct {
	host  *Host
	guest api.Module
	calls []nativeCall
	fns   map[string]export
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{}
	var thunks invoke.Table
	for i := range thunks {
		thunks[i] = func(fn uintptr, args []uint64) int64 {
			f.calls = append(f.calls, nativeCall{fn: fn, args: append([]uint64(nil), args...)})
			return int64(len(args))
		}
	}

	proc := process.New(process.NewFake(11,
		process.FakeModule{Name: "user32.dll", Symbols: map[string]uint64{"MessageBoxA": 0x2000}},
	), process.AccessAll)
	bc, err := bridge.New(bridge.WithProcess(proc), bridge.WithThunks(thunks))
	if err != nil {
		t.Fatal(err)
	}
	f.host = New(bc)
	t.Cleanup(func() { _ = f.host.Close() })

	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })
	f.guest, err = r.Instantiate(ctx, memoryOnly)
	if err != nil {
		t.Fatal(err)
	}

	f.fns = make(map[string]export)
	for _, exp := range f.host.exports() {
		f.fns[exp.name] = exp
	}
	return f
}

// call runs a host function with the guest as caller and returns the first
// result word.
func (f *fixture) call(t *testing.T, name string, args ...uint64) uint64 {
	t.Helper()
	exp, ok := f.fns[name]
	if !ok {
		t.Fatalf("no host function %q", name)
	}
	if len(args) != len(exp.params) {
		t.Fatalf("%s takes %d params, got %d", name, len(exp.params), len(args))
	}
	stack := make([]uint64, max(len(exp.params), len(exp.results), 1))
	copy(stack, args)
	exp.fn(context.Background(), f.guest, stack)
	return stack[0]
}

// str places s in guest memory at ptr and returns the (ptr, len) pair.
func (f *fixture) str(t *testing.T, ptr uint32, s string) (uint64, uint64) {
	t.Helper()
	if !f.guest.Memory().Write(ptr, []byte(s)) {
		t.Fatalf("write %q at %d", s, ptr)
	}
	return uint64(ptr), uint64(len(s))
}

// scalarGuest imports wlb.u32, wlb.value_int and wlb.drop and exports a
// wrapper for each under the same name:
//
//	(func (export "u32") (param i64) (result i32) local.get 0 call $u32)
var scalarGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// types: (i64)->i32, (i32)->i64, (i32)->i32
	0x01, 0x10, 0x03,
	0x60, 0x01, 0x7e, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x01, 0x7e,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	// imports
	0x02, 0x26, 0x03,
	0x03, 'w', 'l', 'b', 0x03, 'u', '3', '2', 0x00, 0x00,
	0x03, 'w', 'l', 'b', 0x09, 'v', 'a', 'l', 'u', 'e', '_', 'i', 'n', 't', 0x00, 0x01,
	0x03, 'w', 'l', 'b', 0x04, 'd', 'r', 'o', 'p', 0x00, 0x02,
	// functions
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,
	// memory
	0x05, 0x03, 0x01, 0x00, 0x01,
	// exports
	0x07, 0x23, 0x04,
	0x03, 'u', '3', '2', 0x00, 0x03,
	0x09, 'v', 'a', 'l', 'u', 'e', '_', 'i', 'n', 't', 0x00, 0x04,
	0x04, 'd', 'r', 'o', 'p', 0x00, 0x05,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	// code
	0x0a, 0x16, 0x03,
	0x06, 0x00, 0x20, 0x00, 0x10, 0x00, 0x0b,
	0x06, 0x00, 0x20, 0x00, 0x10, 0x01, 0x0b,
	0x06, 0x00, 0x20, 0x00, 0x10, 0x02, 0x0b,
}

func TestHost_Instantiate(t *testing.T) {
	ctx := context.Background()
	bc, err := bridge.New(bridge.WithProcess(process.New(process.NewFake(1), process.AccessAll)))
	if err != nil {
		t.Fatal(err)
	}
	h := New(bc)
	defer h.Close()

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := h.Instantiate(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	defs := mod.ExportedFunctionDefinitions()
	for _, exp := range h.exports() {
		def, ok := defs[exp.name]
		if !ok {
			t.Errorf("%s not exported", exp.name)
			continue
		}
		if !sameTypes(def.ParamTypes(), exp.params) || !sameTypes(def.ResultTypes(), exp.results) {
			t.Errorf("%s: signature %v -> %v", exp.name, def.ParamTypes(), def.ResultTypes())
		}
	}

	guest, err := r.Instantiate(ctx, scalarGuest)
	if err != nil {
		t.Fatal(err)
	}
	res, err := guest.ExportedFunction("u32").Call(ctx, 0xbeef)
	if err != nil {
		t.Fatal(err)
	}
	hd := res[0]
	if hd == 0 {
		t.Fatalf("u32 failed: %s", h.LastError())
	}
	res, err = guest.ExportedFunction("value_int").Call(ctx, hd)
	if err != nil {
		t.Fatal(err)
	}
	if int64(res[0]) != 0xbeef {
		t.Fatalf("value_int = %#x", res[0])
	}
	res, err = guest.ExportedFunction("drop").Call(ctx, hd)
	if err != nil || api.DecodeI32(res[0]) != 0 {
		t.Fatalf("drop = %v, %v", res, err)
	}
	if h.Table().Len() != 0 {
		t.Fatalf("table holds %d objects", h.Table().Len())
	}

	res, err = guest.ExportedFunction("drop").Call(ctx, hd)
	if err != nil || api.DecodeI32(res[0]) != -1 {
		t.Fatalf("second drop = %v, %v", res, err)
	}
	if h.LastError() == "" {
		t.Fatal("stale handle left no error")
	}
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHost_ScalarRange(t *testing.T) {
	f := newFixture(t)

	if hd := f.call(t, "u8", 300); hd != 0 {
		t.Fatalf("u8(300) = %d", hd)
	}
	if f.host.LastError() == "" {
		t.Fatal("no error recorded")
	}

	hd := f.call(t, "u8", 255)
	if hd == 0 {
		t.Fatal(f.host.LastError())
	}
	if f.host.LastError() != "" {
		t.Fatalf("error not cleared: %s", f.host.LastError())
	}

	neg := f.call(t, "u64", api.EncodeI64(-1))
	if got := f.call(t, "value_int", neg); got != ^uint64(0) {
		t.Fatalf("u64(-1) = %#x", got)
	}
}

func TestHost_CStringAndText(t *testing.T) {
	f := newFixture(t)

	ptr, n := f.str(t, 16, "hello")
	hd := f.call(t, "cstring", ptr, n)
	if hd == 0 {
		t.Fatal(f.host.LastError())
	}

	got := api.DecodeI32(f.call(t, "value_text", hd, 64, 3))
	if got != 5 {
		t.Fatalf("value_text = %d, want full length 5", got)
	}
	b, _ := f.guest.Memory().Read(64, 3)
	if string(b) != "hel" {
		t.Fatalf("copied %q", b)
	}

	if v := f.call(t, "value_int", hd); v != 0 || !strings.Contains(f.host.LastError(), "not_representable") {
		t.Fatalf("value_int on cstring = %d, %q", v, f.host.LastError())
	}

	ptr, n = f.str(t, 32, "a\x00b")
	if hd := f.call(t, "cstring", ptr, n); hd != 0 {
		t.Fatal("cstring accepted an embedded NUL")
	}
}

func TestHost_OutOfBoundsString(t *testing.T) {
	f := newFixture(t)
	if hd := f.call(t, "module", 65530, 100); hd != 0 {
		t.Fatal("module accepted an out-of-range name")
	}
	if !strings.Contains(f.host.LastError(), "out_of_bounds") {
		t.Fatalf("error %q", f.host.LastError())
	}
}

func TestHost_PointerOwnsReference(t *testing.T) {
	f := newFixture(t)

	inner := f.call(t, "u32", 9)
	ptr := f.call(t, "pointer", inner)
	if ptr == 0 {
		t.Fatal(f.host.LastError())
	}
	iv, err := handle.Get[*value.Value](f.host.Table(), handle.Handle(inner), handle.KindValue)
	if err != nil {
		t.Fatal(err)
	}
	if api.DecodeI32(f.call(t, "drop", inner)) != 0 {
		t.Fatal(f.host.LastError())
	}
	if !iv.Alive() {
		t.Fatal("pointer target released with the guest handle")
	}
	if got := f.call(t, "value_int", ptr); got != uint64(iv.Address()) {
		t.Fatalf("pointer payload %#x, want %#x", got, iv.Address())
	}
}

func TestHost_TypeAndNew(t *testing.T) {
	f := newFixture(t)

	ptr, n := f.str(t, 0, "u16")
	ty := f.call(t, "type", ptr, n)
	if ty == 0 {
		t.Fatal(f.host.LastError())
	}
	v := f.call(t, "new", ty, 0x1234)
	if f.call(t, "value_int", v) != 0x1234 {
		t.Fatal("new u16 lost its value")
	}
	if f.call(t, "new", ty, 0x10000) != 0 {
		t.Fatal("u16 accepted 0x10000")
	}

	ptr, n = f.str(t, 0, "ptr")
	raw := f.call(t, "new", f.call(t, "type", ptr, n), 0x4000)
	if f.call(t, "value_int", raw) != 0x4000 {
		t.Fatal("raw pointer lost its address")
	}

	ptr, n = f.str(t, 0, "*u16")
	p := f.call(t, "new", f.call(t, "type", ptr, n), v)
	if p == 0 {
		t.Fatal(f.host.LastError())
	}

	ptr, n = f.str(t, 0, "empty")
	if f.call(t, "new", f.call(t, "type", ptr, n), 0) != 0 {
		t.Fatal("empty constructed a value")
	}

	// A value handle is not a type handle.
	if f.call(t, "new", v, 1) != 0 || !strings.Contains(f.host.LastError(), "invalid_handle") {
		t.Fatalf("new on a value handle: %q", f.host.LastError())
	}
}

func TestHost_ModuleFunctionCall(t *testing.T) {
	f := newFixture(t)

	ptr, n := f.str(t, 0, "USER32")
	m := f.call(t, "module", ptr, n)
	if m == 0 {
		t.Fatal(f.host.LastError())
	}
	ptr, n = f.str(t, 16, "MessageBoxA")
	fn := f.call(t, "function", m, ptr, n)
	if fn == 0 {
		t.Fatal(f.host.LastError())
	}
	if addr := f.call(t, "address", fn); addr != 0x2000 {
		t.Fatalf("address = %#x", addr)
	}

	a := f.call(t, "u32", 7)
	b := f.call(t, "raw_pointer", 0x99)
	f.guest.Memory().WriteUint32Le(128, uint32(a))
	f.guest.Memory().WriteUint32Le(132, uint32(b))

	r := int64(f.call(t, "call", fn, 128, 2))
	if r != 2 {
		t.Fatalf("call = %d: %s", r, f.host.LastError())
	}
	if len(f.calls) != 1 || f.calls[0].fn != 0x2000 {
		t.Fatalf("calls %+v", f.calls)
	}
	if f.calls[0].args[0] != 7 || f.calls[0].args[1] != 0x99 {
		t.Fatalf("args %v", f.calls[0].args)
	}

	// Arguments are returned to the table after the call.
	if api.DecodeI32(f.call(t, "drop", a)) != 0 {
		t.Fatal(f.host.LastError())
	}

	ptr, n = f.str(t, 16, "Missing")
	if f.call(t, "function", m, ptr, n) != 0 {
		t.Fatal("function resolved a missing symbol")
	}
	if !strings.Contains(f.host.LastError(), "not_found") {
		t.Fatalf("error %q", f.host.LastError())
	}

	at := f.call(t, "function_at", 0x3000)
	if f.call(t, "address", at) != 0x3000 {
		t.Fatal("function_at lost its address")
	}
}

func TestHost_CallErrors(t *testing.T) {
	f := newFixture(t)

	if int64(f.call(t, "call", 12345, 0, 0)) != -1 {
		t.Fatal("call on an unknown handle succeeded")
	}
	if !strings.Contains(f.host.LastError(), "invalid_handle") {
		t.Fatalf("error %q", f.host.LastError())
	}

	fn := f.call(t, "function_at", 0x3000)
	if int64(f.call(t, "call", fn, 0, invoke.MaxArgs+1)) != -1 {
		t.Fatal("call accepted too many arguments")
	}
	if !strings.Contains(f.host.LastError(), "too_many_arguments") {
		t.Fatalf("error %q", f.host.LastError())
	}

	// A function handle is not a value.
	f.guest.Memory().WriteUint32Le(0, uint32(fn))
	if int64(f.call(t, "call", fn, 0, 1)) != -1 {
		t.Fatal("call accepted a function as an argument")
	}
	if len(f.calls) != 0 {
		t.Fatalf("native calls made: %+v", f.calls)
	}
}

func TestHost_StructBuffer(t *testing.T) {
	f := newFixture(t)

	s := f.call(t, "struct_new")
	push := func(name string, offset int32, expr string) int32 {
		np, nl := f.str(t, 0, name)
		tp, tl := f.str(t, 32, expr)
		return api.DecodeI32(f.call(t, "struct_push", s, np, nl, api.EncodeI32(offset), tp, tl))
	}
	if push("count", 0, "u32") != 0 || push("name", 4, "cstring(8)") != 0 || push("gap", 12, "empty") != 0 {
		t.Fatal(f.host.LastError())
	}
	if push("dup", 2, "u16") != -1 {
		t.Fatal("overlapping field accepted")
	}
	if got := api.DecodeI32(f.call(t, "struct_size", s)); got != 12 {
		t.Fatalf("struct_size = %d", got)
	}

	buf := f.call(t, "struct_buf", s)
	if buf == 0 {
		t.Fatal(f.host.LastError())
	}
	if push("late", 16, "u8") != -1 || !strings.Contains(f.host.LastError(), "frozen") {
		t.Fatalf("push after binding: %q", f.host.LastError())
	}

	set := func(field string, v uint64) int32 {
		np, nl := f.str(t, 0, field)
		return api.DecodeI32(f.call(t, "set_field", buf, np, nl, v))
	}
	get := func(field string) uint64 {
		np, nl := f.str(t, 0, field)
		return f.call(t, "get_field", buf, np, nl)
	}

	if set("count", f.call(t, "u16", 0x1234)) != 0 {
		t.Fatal(f.host.LastError())
	}
	if f.call(t, "value_int", get("count")) != 0x1234 {
		t.Fatal("count round trip failed")
	}
	if set("count", f.call(t, "u64", 1)) != -1 || !strings.Contains(f.host.LastError(), "type_mismatch") {
		t.Fatalf("u64 into u32: %q", f.host.LastError())
	}

	sp, sl := f.str(t, 64, "abc")
	if set("name", f.call(t, "cstring", sp, sl)) != 0 {
		t.Fatal(f.host.LastError())
	}
	text := get("name")
	if api.DecodeI32(f.call(t, "value_text", text, 96, 16)) != 3 {
		t.Fatal("value_text length")
	}
	b, _ := f.guest.Memory().Read(96, 3)
	if string(b) != "abc" {
		t.Fatalf("name = %q", b)
	}

	if get("gap") != 0 || f.host.LastError() != "" {
		t.Fatalf("empty field: %q", f.host.LastError())
	}
	if set("gap", 0) != 0 {
		t.Fatal(f.host.LastError())
	}
	if set("count", 0) != -1 {
		t.Fatal("no value accepted for a u32 field")
	}

	addr := f.call(t, "buf_addr", buf)
	if addr == 0 {
		t.Fatal(f.host.LastError())
	}
	if got := api.DecodeU32(f.call(t, "peek32", addr)); got != 0x1234 {
		t.Fatalf("peek32 = %#x", got)
	}
	f.call(t, "poke16", addr, 0xbeef)
	if f.call(t, "value_int", get("count")) != 0xbeef {
		t.Fatal("poke16 not visible through the buffer")
	}
	f.call(t, "poke64", addr+4, 0x6867)
	if f.call(t, "peek8", addr+5) != 0x68 || f.call(t, "peek16", addr+4) != 0x6867 {
		t.Fatal("peek after poke64")
	}
	if f.call(t, "peek64", addr+4) != 0x6867 {
		t.Fatal("peek64")
	}
}

func TestHost_PeekPokeNullAddress(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"peek8", "peek16", "peek32", "peek64"} {
		if got := f.call(t, name, 0); got != 0 {
			t.Errorf("%s(0) = %#x", name, got)
		}
		if !strings.Contains(f.host.LastError(), "invalid_input") {
			t.Errorf("%s(0): last error %q", name, f.host.LastError())
		}
	}
	for _, name := range []string{"poke8", "poke16", "poke32", "poke64"} {
		f.host.clearError()
		f.call(t, name, 0, 1)
		if !strings.Contains(f.host.LastError(), "null address") {
			t.Errorf("%s(0): last error %q", name, f.host.LastError())
		}
	}

	buf, err := memory.NewBuf(8)
	if err != nil {
		t.Fatal(err)
	}
	f.call(t, "peek8", uint64(buf.Addr()))
	if f.host.LastError() != "" {
		t.Fatalf("valid peek kept a stale error: %q", f.host.LastError())
	}
}

func TestHost_RemoteProcessRefusesMemory(t *testing.T) {
	proc := process.NewRemote(process.NewFake(12), process.AccessAll)
	bc, err := bridge.New(bridge.WithProcess(proc))
	if err != nil {
		t.Fatal(err)
	}
	h := New(bc)
	defer h.Close()

	var peek8 export
	for _, exp := range h.exports() {
		if exp.name == "peek8" {
			peek8 = exp
		}
	}
	stack := []uint64{0x1000}
	peek8.fn(context.Background(), nil, stack)
	if stack[0] != 0 || !strings.Contains(h.LastError(), "unsupported") {
		t.Fatalf("peek8 = %#x, last error %q", stack[0], h.LastError())
	}
}

func TestHost_StructNamed(t *testing.T) {
	f := newFixture(t)
	ptr, n := f.str(t, 0, "NOPE")
	if f.call(t, "struct_named", ptr, n) != 0 || !strings.Contains(f.host.LastError(), "not_found") {
		t.Fatalf("struct_named: %q", f.host.LastError())
	}
}

func TestHost_LastError(t *testing.T) {
	f := newFixture(t)

	if api.DecodeI32(f.call(t, "last_error", 0, 64)) != 0 {
		t.Fatal("error reported before any failure")
	}
	if api.DecodeI32(f.call(t, "drop", 999)) != -1 {
		t.Fatal("drop of an unknown handle succeeded")
	}
	msg := f.host.LastError()
	n := api.DecodeI32(f.call(t, "last_error", 0, 8))
	if int(n) != len(msg) {
		t.Fatalf("last_error = %d, want %d", n, len(msg))
	}
	b, _ := f.guest.Memory().Read(0, 8)
	if string(b) != msg[:8] {
		t.Fatalf("copied %q of %q", b, msg)
	}
}

func TestHost_CloseDropsHandles(t *testing.T) {
	f := newFixture(t)
	v := f.call(t, "u8", 1)
	obj, err := handle.Get[*value.Value](f.host.Table(), handle.Handle(v), handle.KindValue)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.host.Close(); err != nil {
		t.Fatal(err)
	}
	if obj.Alive() {
		t.Fatal("value survived Close")
	}
}
