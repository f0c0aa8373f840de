package wasmhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/handle"
	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/types"
	"github.com/wippyai/wlb/value"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type export struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// exports lists every host function. Handlers keep the guest's calling
// convention: parameters and results are raw stack words.
func (h *Host) exports() []export {
	return []export{
		{name: "u8", fn: h.scalar("u8", types.U8()), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "u16", fn: h.scalar("u16", types.U16()), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "u32", fn: h.scalar("u32", types.U32()), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "u64", fn: h.scalar("u64", types.U64()), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "raw_pointer", fn: h.rawPointer, params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "cstring", fn: h.cstring, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "pointer", fn: h.pointer, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "value_int", fn: h.valueInt, params: []api.ValueType{i32}, results: []api.ValueType{i64}},
		{name: "value_text", fn: h.valueText, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "type", fn: h.typeOf, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "new", fn: h.construct, params: []api.ValueType{i32, i64}, results: []api.ValueType{i32}},
		{name: "module", fn: h.module, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "function", fn: h.function, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "function_at", fn: h.functionAt, params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "address", fn: h.address, params: []api.ValueType{i32}, results: []api.ValueType{i64}},
		{name: "call", fn: h.call, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i64}},
		{name: "struct_new", fn: h.structNew, params: nil, results: []api.ValueType{i32}},
		{name: "struct_named", fn: h.structNamed, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
		{name: "struct_push", fn: h.structPush, params: []api.ValueType{i32, i32, i32, i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "struct_size", fn: h.structSize, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "struct_buf", fn: h.structBuf, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "get_field", fn: h.getField, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "set_field", fn: h.setField, params: []api.ValueType{i32, i32, i32, i32}, results: []api.ValueType{i32}},
		{name: "buf_addr", fn: h.bufAddr, params: []api.ValueType{i32}, results: []api.ValueType{i64}},
		{name: "peek8", fn: h.peek(8), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "peek16", fn: h.peek(16), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "peek32", fn: h.peek(32), params: []api.ValueType{i64}, results: []api.ValueType{i32}},
		{name: "peek64", fn: h.peek(64), params: []api.ValueType{i64}, results: []api.ValueType{i64}},
		{name: "poke8", fn: h.poke(8), params: []api.ValueType{i64, i32}, results: nil},
		{name: "poke16", fn: h.poke(16), params: []api.ValueType{i64, i32}, results: nil},
		{name: "poke32", fn: h.poke(32), params: []api.ValueType{i64, i32}, results: nil},
		{name: "poke64", fn: h.poke(64), params: []api.ValueType{i64, i64}, results: nil},
		{name: "drop", fn: h.drop, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: "last_error", fn: h.lastError, params: []api.ValueType{i32, i32}, results: []api.ValueType{i32}},
	}
}

func status(err error) uint64 {
	if err != nil {
		return api.EncodeI32(-1)
	}
	return 0
}

// put stores an object and returns its handle as a stack word, recording
// err instead when it is non-nil.
func (h *Host) put(fn string, kind handle.Kind, obj any, err error) uint64 {
	if err != nil {
		h.fail(fn, err)
		return 0
	}
	hd := h.table.Insert(kind, obj)
	if hd == 0 {
		h.fail(fn, handle.ErrClosed)
	}
	return uint64(hd)
}

func (h *Host) valueAt(word uint64) (*value.Value, error) {
	return handle.Get[*value.Value](h.table, handle.Handle(uint32(word)), handle.KindValue)
}

func (h *Host) scalar(name string, t types.Primitive) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		h.clearError()
		v, err := h.bridge.Types().Construct(t, int64(stack[0]))
		stack[0] = h.put(name, handle.KindValue, v, err)
	}
}

func (h *Host) rawPointer(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	stack[0] = h.put("raw_pointer", handle.KindValue, value.NewRawPointer(stack[0]), nil)
}

func (h *Host) cstring(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	s, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		stack[0] = h.put("cstring", handle.KindValue, nil, err)
		return
	}
	v, err := value.NewCString(s)
	stack[0] = h.put("cstring", handle.KindValue, v, err)
}

// pointer wraps a new reference to the value, so the guest may drop its
// own handle without invalidating the pointer.
func (h *Host) pointer(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	inner, err := h.valueAt(stack[0])
	if err != nil {
		stack[0] = h.put("pointer", handle.KindValue, nil, err)
		return
	}
	stack[0] = h.put("pointer", handle.KindValue, value.NewPointer(inner.Clone()), nil)
}

func (h *Host) valueInt(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	v, err := h.valueAt(stack[0])
	if err != nil {
		h.fail("value_int", err)
		stack[0] = 0
		return
	}
	n, err := v.U64()
	if err != nil {
		h.fail("value_int", err)
		stack[0] = 0
		return
	}
	stack[0] = n
}

func (h *Host) valueText(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	v, err := h.valueAt(stack[0])
	if err != nil {
		h.fail("value_text", err)
		stack[0] = api.EncodeI32(-1)
		return
	}
	n, err := writeString(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]), v.String())
	if err != nil {
		h.fail("value_text", err)
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(n)
}

func (h *Host) typeOf(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	expr, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		stack[0] = h.put("type", handle.KindType, nil, err)
		return
	}
	t, err := h.bridge.Types().Type(expr)
	stack[0] = h.put("type", handle.KindType, t, err)
}

// construct builds a value of a type handle from an integer argument. For
// pointer types the argument is a value handle, for raw pointers an address.
func (h *Host) construct(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	t, err := handle.Get[bridge.Type](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindType)
	if err != nil {
		stack[0] = h.put("new", handle.KindValue, nil, err)
		return
	}

	var arg any = int64(stack[1])
	if p, ok := t.Descriptor().(types.Primitive); ok {
		switch p.Kind() {
		case types.KindPointer:
			inner, err := h.valueAt(stack[1])
			if err != nil {
				stack[0] = h.put("new", handle.KindValue, nil, err)
				return
			}
			arg = inner
		case types.KindRawPointer:
			stack[0] = h.put("new", handle.KindValue, value.NewRawPointer(stack[1]), nil)
			return
		}
	}

	v, err := t.New(arg)
	if err == nil && v == nil {
		err = errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Detail("type %s constructs no value", t).
			Build()
	}
	stack[0] = h.put("new", handle.KindValue, v, err)
}

func (h *Host) module(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	name, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		stack[0] = h.put("module", handle.KindModule, nil, err)
		return
	}
	m, err := h.bridge.Module(name)
	stack[0] = h.put("module", handle.KindModule, m, err)
}

func (h *Host) function(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	m, err := handle.Get[*bridge.Module](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindModule)
	if err != nil {
		stack[0] = h.put("function", handle.KindFunction, nil, err)
		return
	}
	name, err := readString(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if err != nil {
		stack[0] = h.put("function", handle.KindFunction, nil, err)
		return
	}
	fn, err := m.F(name)
	stack[0] = h.put("function", handle.KindFunction, fn, err)
}

func (h *Host) functionAt(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	stack[0] = h.put("function_at", handle.KindFunction, h.bridge.FunctionAt(stack[0]), nil)
}

func (h *Host) address(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	fn, err := handle.Get[*bridge.Function](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindFunction)
	if err != nil {
		h.fail("address", err)
		stack[0] = 0
		return
	}
	stack[0] = fn.Address()
}

// call reads argc value handles from argv and invokes the function. The
// handles are borrowed for the duration of the native call. On failure it
// returns -1 and records the error; a native function may return -1 as
// well, so guests check last_error.
func (h *Host) call(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	fail := func(err error) {
		h.fail("call", err)
		stack[0] = api.EncodeI64(-1)
	}

	fn, err := handle.Get[*bridge.Function](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindFunction)
	if err != nil {
		fail(err)
		return
	}
	argv, argc := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	if argc > invoke.MaxArgs {
		fail(errors.TooManyArguments(int(argc), invoke.MaxArgs))
		return
	}

	args := make([]*value.Value, 0, argc)
	for i := uint32(0); i < argc; i++ {
		word, ok := mod.Memory().ReadUint32Le(argv + 4*i)
		if !ok {
			fail(errors.OutOfBounds(errors.PhaseHost, nil, int(argv+4*i), 4, int(mod.Memory().Size())))
			return
		}
		hd := handle.Handle(word)
		v, err := h.valueAt(uint64(word))
		if err != nil {
			fail(err)
			return
		}
		if h.table.Borrow(hd) {
			defer h.table.Return(hd)
		}
		args = append(args, v)
	}

	r, err := fn.Call(args...)
	if err != nil {
		fail(err)
		return
	}
	stack[0] = api.EncodeI64(r)
}

func (h *Host) structNew(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	stack[0] = h.put("struct_new", handle.KindStruct, types.NewStruct(""), nil)
}

func (h *Host) structNamed(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	name, err := readString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
	if err != nil {
		stack[0] = h.put("struct_named", handle.KindStruct, nil, err)
		return
	}
	s, ok := h.bridge.Layouts().Lookup(name)
	if !ok {
		stack[0] = h.put("struct_named", handle.KindStruct, nil, errors.NotFound(errors.PhaseHost, "layout", name))
		return
	}
	stack[0] = h.put("struct_named", handle.KindStruct, s, nil)
}

// structPush appends a field given its name, offset, and type expression.
func (h *Host) structPush(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	err := func() error {
		s, err := handle.Get[*types.Struct](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindStruct)
		if err != nil {
			return err
		}
		name, err := readString(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
		if err != nil {
			return err
		}
		offset := api.DecodeI32(stack[3])
		expr, err := readString(mod, api.DecodeU32(stack[4]), api.DecodeU32(stack[5]))
		if err != nil {
			return err
		}
		t, err := h.bridge.Types().Type(expr)
		if err != nil {
			return err
		}
		return s.Push(types.NewField(name, int(offset), t.Descriptor()))
	}()
	if err != nil {
		h.fail("struct_push", err)
	}
	stack[0] = status(err)
}

func (h *Host) structSize(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	s, err := handle.Get[*types.Struct](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindStruct)
	if err != nil {
		h.fail("struct_size", err)
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(int32(s.Size()))
}

func (h *Host) structBuf(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	s, err := handle.Get[*types.Struct](h.table, handle.Handle(api.DecodeU32(stack[0])), handle.KindStruct)
	if err != nil {
		stack[0] = h.put("struct_buf", handle.KindStructBuf, nil, err)
		return
	}
	sb, err := h.bridge.NewStructBuf(s)
	stack[0] = h.put("struct_buf", handle.KindStructBuf, sb, err)
}

func (h *Host) structBufAt(word uint64) (*value.StructBuf, error) {
	return handle.Get[*value.StructBuf](h.table, handle.Handle(uint32(word)), handle.KindStructBuf)
}

// getField returns a value handle, or 0 for Empty fields and failures.
func (h *Host) getField(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	sb, err := h.structBufAt(stack[0])
	if err != nil {
		stack[0] = h.put("get_field", handle.KindValue, nil, err)
		return
	}
	name, err := readString(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
	if err != nil {
		stack[0] = h.put("get_field", handle.KindValue, nil, err)
		return
	}
	v, err := sb.Field(name)
	if err == nil && v == nil {
		stack[0] = 0
		return
	}
	stack[0] = h.put("get_field", handle.KindValue, v, err)
}

// setField writes a value handle into a field. Value handle 0 stands for
// no value and is accepted for Empty fields only.
func (h *Host) setField(_ context.Context, mod api.Module, stack []uint64) {
	h.clearError()
	err := func() error {
		sb, err := h.structBufAt(stack[0])
		if err != nil {
			return err
		}
		name, err := readString(mod, api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
		if err != nil {
			return err
		}
		var v *value.Value
		if api.DecodeU32(stack[3]) != 0 {
			if v, err = h.valueAt(stack[3]); err != nil {
				return err
			}
		}
		return sb.SetField(name, v)
	}()
	if err != nil {
		h.fail("set_field", err)
	}
	stack[0] = status(err)
}

func (h *Host) bufAddr(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	sb, err := h.structBufAt(stack[0])
	if err != nil {
		h.fail("buf_addr", err)
		stack[0] = 0
		return
	}
	stack[0] = uint64(sb.Addr())
}

// rawAddr checks an address passed to peek or poke.
func (h *Host) rawAddr(fn string, addr uint64) error {
	if err := h.bridge.RawAccess(); err != nil {
		return err
	}
	if addr == 0 {
		return errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Path(fn).
			Detail("null address").
			Build()
	}
	return nil
}

func (h *Host) peek(bits int) api.GoModuleFunc {
	name := fmt.Sprintf("peek%d", bits)
	return func(_ context.Context, _ api.Module, stack []uint64) {
		h.clearError()
		addr := stack[0]
		if err := h.rawAddr(name, addr); err != nil {
			h.fail(name, err)
			stack[0] = 0
			return
		}
		switch bits {
		case 8:
			stack[0] = uint64(h.bridge.Peek8(addr))
		case 16:
			stack[0] = uint64(h.bridge.Peek16(addr))
		case 32:
			stack[0] = uint64(h.bridge.Peek32(addr))
		default:
			stack[0] = h.bridge.Peek64(addr)
		}
	}
}

// poke has no results; a rejected address is reported through last_error.
func (h *Host) poke(bits int) api.GoModuleFunc {
	name := fmt.Sprintf("poke%d", bits)
	return func(_ context.Context, _ api.Module, stack []uint64) {
		h.clearError()
		addr, v := stack[0], stack[1]
		if err := h.rawAddr(name, addr); err != nil {
			h.fail(name, err)
			return
		}
		switch bits {
		case 8:
			h.bridge.Poke8(addr, uint8(v))
		case 16:
			h.bridge.Poke16(addr, uint16(v))
		case 32:
			h.bridge.Poke32(addr, uint32(v))
		default:
			h.bridge.Poke64(addr, v)
		}
	}
}

func (h *Host) drop(_ context.Context, _ api.Module, stack []uint64) {
	h.clearError()
	_, err := h.table.Remove(handle.Handle(api.DecodeU32(stack[0])))
	if err != nil {
		h.fail("drop", err)
	}
	stack[0] = status(err)
}

// lastError copies the recorded message into guest memory and returns its
// full length, 0 when the previous call succeeded.
func (h *Host) lastError(_ context.Context, mod api.Module, stack []uint64) {
	n, err := writeString(mod, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), h.LastError())
	if err != nil {
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(n)
}
