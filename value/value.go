// Package value provides typed scalar cells with stable native addresses
// and struct instances bound to address-stable buffers.
package value

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/types"
)

// cell is the shared backing storage of a Value. It is allocated once on the
// heap and never moved, so its address may be handed to native code for as
// long as a reference is held. Contents are immutable after construction.
type cell struct {
	child *Value
	text  []byte // NUL-terminated, CString only
	typ   types.Primitive
	word  uint64
	refs  atomic.Int32
}

func (c *cell) addr() uintptr {
	if c.typ.Kind() == types.KindCString {
		return uintptr(unsafe.Pointer(&c.text[0]))
	}
	return uintptr(unsafe.Pointer(&c.word))
}

// Value is a reference to a typed scalar cell. Clone shares the cell;
// Release gives the reference back. A Pointer value owns exactly one child,
// released together with the last reference to the pointer's cell.
type Value struct {
	c        *cell
	released atomic.Bool
}

func newValue(c *cell) *Value {
	c.refs.Store(1)
	return &Value{c: c}
}

func NewU8(v uint8) *Value   { return newValue(&cell{typ: types.U8(), word: uint64(v)}) }
func NewU16(v uint16) *Value { return newValue(&cell{typ: types.U16(), word: uint64(v)}) }
func NewU32(v uint32) *Value { return newValue(&cell{typ: types.U32(), word: uint64(v)}) }
func NewU64(v uint64) *Value { return newValue(&cell{typ: types.U64(), word: v}) }

// NewCString copies text into a NUL-terminated cell typed CString(len+1).
// Text containing a NUL byte is rejected.
func NewCString(text string) (*Value, error) {
	if i := strings.IndexByte(text, 0); i >= 0 {
		return nil, errors.InvalidText(text, i)
	}
	buf := make([]byte, len(text)+1)
	copy(buf, text)
	return newValue(&cell{typ: types.CString(len(buf)), text: buf}), nil
}

// NewPointer wraps inner, taking ownership of the caller's reference. The
// payload is the address of inner's backing cell.
func NewPointer(inner *Value) *Value {
	return newValue(&cell{
		typ:   types.Pointer(inner.c.typ),
		word:  uint64(inner.c.addr()),
		child: inner,
	})
}

// NewRawPointer represents a foreign address with no known pointee.
func NewRawPointer(addr uint64) *Value {
	return newValue(&cell{typ: types.RawPointer(), word: addr})
}

// Type returns the declared primitive type.
func (v *Value) Type() types.Primitive { return v.c.typ }

// Kind is shorthand for Type().Kind().
func (v *Value) Kind() types.Kind { return v.c.typ.Kind() }

// Child returns the pointee owned by a Pointer value, nil otherwise.
func (v *Value) Child() *Value { return v.c.child }

// Address returns the native address of the backing cell.
func (v *Value) Address() uintptr { return v.c.addr() }

// U64 reduces the value to a machine word. CString values have no word form.
func (v *Value) U64() (uint64, error) {
	if v.Kind() == types.KindCString {
		return 0, errors.NotRepresentable(errors.PhaseValue, v.c.typ.String())
	}
	return v.c.word, nil
}

// Int returns the word as a signed integer, false for CString values.
func (v *Value) Int() (int64, bool) {
	if v.Kind() == types.KindCString {
		return 0, false
	}
	return int64(v.c.word), true
}

// CStr returns the text of a CString value without its terminator.
func (v *Value) CStr() (string, error) {
	if v.Kind() != types.KindCString {
		return "", errors.NotAString(v.c.typ.String())
	}
	return string(v.c.text[:len(v.c.text)-1]), nil
}

func (v *Value) String() string {
	switch v.Kind() {
	case types.KindU8:
		return fmt.Sprintf("0x%02x", v.c.word)
	case types.KindU16:
		return fmt.Sprintf("0x%04x", v.c.word)
	case types.KindU32:
		return fmt.Sprintf("0x%08x", v.c.word)
	case types.KindU64:
		return fmt.Sprintf("0x%016x", v.c.word)
	case types.KindCString:
		s, _ := v.CStr()
		return s
	default:
		return fmt.Sprintf("*0x%x", v.c.word)
	}
}

// Clone returns a new reference to the same cell.
func (v *Value) Clone() *Value {
	v.c.refs.Add(1)
	return &Value{c: v.c}
}

// Release gives back this reference. Releasing twice is a no-op. When the
// last reference goes, the owned child is released as well.
func (v *Value) Release() {
	if !v.released.CompareAndSwap(false, true) {
		return
	}
	if v.c.refs.Add(-1) == 0 {
		if child := v.c.child; child != nil {
			child.Release()
		}
	}
}

// Drop releases the value when it is removed from a handle table.
func (v *Value) Drop() { v.Release() }

// Refs returns the number of live references to the cell.
func (v *Value) Refs() int32 { return v.c.refs.Load() }

// Alive reports whether the cell still has references.
func (v *Value) Alive() bool { return v.c.refs.Load() > 0 }
