package bridge

import (
	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/types"
	"github.com/wippyai/wlb/value"
)

// Type is a descriptor exposed to hosts. Calling New with a host scalar
// constructs a Value of the type.
type Type struct {
	t     types.Type
	types *Types
}

// Descriptor returns the underlying type descriptor.
func (t Type) Descriptor() types.Type { return t.t }

// New constructs a Value from arg. See Types.Construct.
func (t Type) New(arg any) (*value.Value, error) {
	return t.types.Construct(t.t, arg)
}

func (t Type) String() string { return t.t.String() }

// StructFunc creates an empty anonymous struct layout.
type StructFunc func() *types.Struct

// StructFieldFunc creates a field descriptor.
type StructFieldFunc func(name string, offset int, t Type) types.StructField

// Types is the type registry reachable from a Context.
type Types struct {
	layouts *types.Layouts
}

// Get resolves a registry name: the primitives u8, u16, u32, u64, cstring,
// pointer, ptr and empty yield a Type; struct and struct_field yield
// builder functions; any registered layout name yields its struct Type.
func (ts *Types) Get(name string) (any, bool) {
	switch name {
	case "u8":
		return ts.typ(types.U8()), true
	case "u16":
		return ts.typ(types.U16()), true
	case "u32":
		return ts.typ(types.U32()), true
	case "u64":
		return ts.typ(types.U64()), true
	case "cstring":
		return ts.typ(types.CString(0)), true
	case "pointer":
		return ts.typ(types.Pointer(nil)), true
	case "ptr":
		return ts.typ(types.RawPointer()), true
	case "empty":
		return ts.typ(types.Empty()), true
	case "struct":
		return StructFunc(func() *types.Struct { return types.NewStruct("") }), true
	case "struct_field":
		return StructFieldFunc(func(name string, offset int, t Type) types.StructField {
			return types.NewField(name, offset, t.t)
		}), true
	}
	if s, ok := ts.layouts.Lookup(name); ok {
		return ts.typ(s), true
	}
	return nil, false
}

// Type resolves a type expression such as "u32", "*POINT" or "cstring(16)".
func (ts *Types) Type(expr string) (Type, error) {
	t, err := types.ParseType(expr, ts.layouts.Lookup)
	if err != nil {
		return Type{}, err
	}
	return ts.typ(t), nil
}

func (ts *Types) typ(t types.Type) Type {
	return Type{t: t, types: ts}
}

// Construct converts a host scalar into a Value of type t.
//
// Integers accept any Go integer within range; U64 also accepts negative
// integers, reinterpreted as two's complement. CString accepts a string.
// Pointer accepts a *value.Value and wraps a new reference to it. Empty and
// RawPointer construct nothing and return nil. Structs cannot be
// constructed as values.
func (ts *Types) Construct(t types.Type, arg any) (*value.Value, error) {
	p, ok := t.(types.Primitive)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseValue, "constructing a struct value")
	}

	switch p.Kind() {
	case types.KindEmpty, types.KindRawPointer:
		return nil, nil
	case types.KindU8:
		n, err := toUnsigned(arg, 8)
		if err != nil {
			return nil, err
		}
		return value.NewU8(uint8(n)), nil
	case types.KindU16:
		n, err := toUnsigned(arg, 16)
		if err != nil {
			return nil, err
		}
		return value.NewU16(uint16(n)), nil
	case types.KindU32:
		n, err := toUnsigned(arg, 32)
		if err != nil {
			return nil, err
		}
		return value.NewU32(uint32(n)), nil
	case types.KindU64:
		n, err := toWord(arg)
		if err != nil {
			return nil, err
		}
		return value.NewU64(n), nil
	case types.KindCString:
		s, ok := arg.(string)
		if !ok {
			return nil, conversionError(arg, "string")
		}
		return value.NewCString(s)
	case types.KindPointer:
		inner, ok := arg.(*value.Value)
		if !ok || inner == nil {
			return nil, conversionError(arg, "value")
		}
		return value.NewPointer(inner.Clone()), nil
	}
	return nil, errors.Unsupported(errors.PhaseValue, "constructing "+p.String())
}
