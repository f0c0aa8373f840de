package types

import (
	"fmt"
	"unsafe"
)

// PointerSize is the native pointer width in bytes.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

// Kind identifies a primitive variant.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindCString
	KindPointer
	KindRawPointer
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindCString:
		return "cstring"
	case KindPointer:
		return "pointer"
	case KindRawPointer:
		return "ptr"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Type is a layout descriptor: a Primitive or a *Struct.
type Type interface {
	// Size returns the number of bytes the type occupies in a layout.
	Size() int
	// FitsWithin reports whether a value of this type may be stored in a
	// slot declared with other. The relation is asymmetric.
	FitsWithin(other Type) bool
	String() string

	isType()
}

// Primitive is an indivisible scalar descriptor.
type Primitive struct {
	elem     Type
	kind     Kind
	capacity int
}

func Empty() Primitive { return Primitive{kind: KindEmpty} }
func U8() Primitive    { return Primitive{kind: KindU8} }
func U16() Primitive   { return Primitive{kind: KindU16} }
func U32() Primitive   { return Primitive{kind: KindU32} }
func U64() Primitive   { return Primitive{kind: KindU64} }

// CString describes a NUL-terminated string slot of capacity bytes,
// terminator included.
func CString(capacity int) Primitive {
	if capacity < 0 {
		capacity = 0
	}
	return Primitive{kind: KindCString, capacity: capacity}
}

// Pointer describes a pointer to elem. A nil elem points to Empty.
func Pointer(elem Type) Primitive {
	if elem == nil {
		elem = Empty()
	}
	return Primitive{kind: KindPointer, elem: elem}
}

// RawPointer describes an untyped pointer.
func RawPointer() Primitive { return Primitive{kind: KindRawPointer} }

func (Primitive) isType() {}

func (p Primitive) Kind() Kind { return p.kind }

// Capacity returns the declared capacity of a CString, 0 otherwise.
func (p Primitive) Capacity() int { return p.capacity }

// Elem returns the pointee of a Pointer, nil otherwise.
func (p Primitive) Elem() Type { return p.elem }

// IsInteger reports whether p is one of U8, U16, U32, U64.
func (p Primitive) IsInteger() bool {
	switch p.kind {
	case KindU8, KindU16, KindU32, KindU64:
		return true
	}
	return false
}

// IsPointer reports whether p is a Pointer or RawPointer.
func (p Primitive) IsPointer() bool {
	return p.kind == KindPointer || p.kind == KindRawPointer
}

func (p Primitive) Size() int {
	switch p.kind {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindCString:
		return p.capacity
	case KindPointer, KindRawPointer:
		return PointerSize
	default:
		return 0
	}
}

func (p Primitive) FitsWithin(other Type) bool {
	o, ok := other.(Primitive)
	if !ok {
		return false
	}

	switch {
	case p.kind == KindEmpty:
		return o.kind == KindEmpty
	case p.IsInteger():
		return o.IsInteger() && p.Size() <= o.Size()
	case p.kind == KindCString:
		return o.kind == KindCString && p.capacity <= o.capacity
	case p.IsPointer():
		switch o.kind {
		case KindPointer, KindRawPointer, KindU64:
			return true
		case KindU32:
			return PointerSize == 4
		}
	}
	return false
}

// String renders the type expression accepted by ParseType.
func (p Primitive) String() string {
	switch p.kind {
	case KindCString:
		return fmt.Sprintf("cstring(%d)", p.capacity)
	case KindPointer:
		return "*" + typeRef(p.elem)
	default:
		return p.kind.String()
	}
}

// typeRef names a pointee without expanding anonymous structs, which may
// refer back to themselves through pointers.
func typeRef(t Type) string {
	if s, ok := t.(*Struct); ok {
		if s.Name() == "" {
			return "struct"
		}
		return s.Name()
	}
	return t.String()
}
