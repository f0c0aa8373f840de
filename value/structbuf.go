package value

import (
	"bytes"
	"strings"
	"sync"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/memory"
	"github.com/wippyai/wlb/types"
)

// StructBuf is a struct layout bound to a buffer. The layout is frozen on
// binding. Each field operation holds the buffer lock for its own duration
// only; there are no multi-field transactions.
type StructBuf struct {
	layout *types.Struct
	buf    *memory.Buf
	mu     sync.Mutex
}

// NewStructBuf allocates a zeroed buffer sized to s and freezes s.
func NewStructBuf(s *types.Struct) (*StructBuf, error) {
	buf, err := memory.NewBuf(s.Size())
	if err != nil {
		return nil, err
	}
	s.Freeze()
	return &StructBuf{layout: s, buf: buf}, nil
}

// Struct returns the bound layout.
func (sb *StructBuf) Struct() *types.Struct { return sb.layout }

// Buf returns the backing buffer.
func (sb *StructBuf) Buf() *memory.Buf { return sb.buf }

// Addr returns the address of the first byte of the struct. This is the
// value passed to native code expecting a pointer to the structure.
func (sb *StructBuf) Addr() uintptr {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Addr()
}

func (sb *StructBuf) lookup(phase errors.Phase, name string) (types.StructField, types.Primitive, error) {
	f, ok := sb.layout.Field(name)
	if !ok {
		return f, types.Primitive{}, errors.FieldNotFound(phase, sb.layout.Name(), name)
	}
	p, ok := f.Type.(types.Primitive)
	if !ok {
		return f, p, errors.StructAsValue(phase, sb.path(name))
	}
	return f, p, nil
}

func (sb *StructBuf) path(field string) []string {
	if sb.layout.Name() == "" {
		return []string{field}
	}
	return []string{sb.layout.Name(), field}
}

// Field decodes the named field. Empty fields yield a nil Value. Pointer
// fields decode at native width into raw pointers since the pointee is not
// owned by the buffer.
func (sb *StructBuf) Field(name string) (*Value, error) {
	f, p, err := sb.lookup(errors.PhaseDecode, name)
	if err != nil {
		return nil, err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	off := uint32(f.Offset)
	switch p.Kind() {
	case types.KindEmpty:
		return nil, nil
	case types.KindU8:
		v, err := sb.buf.ReadU8(off)
		if err != nil {
			return nil, err
		}
		return NewU8(v), nil
	case types.KindU16:
		v, err := sb.buf.ReadU16(off)
		if err != nil {
			return nil, err
		}
		return NewU16(v), nil
	case types.KindU32:
		v, err := sb.buf.ReadU32(off)
		if err != nil {
			return nil, err
		}
		return NewU32(v), nil
	case types.KindU64:
		v, err := sb.buf.ReadU64(off)
		if err != nil {
			return nil, err
		}
		return NewU64(v), nil
	case types.KindCString:
		raw, err := sb.buf.Read(off, uint32(p.Capacity()))
		if err != nil {
			return nil, err
		}
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		return NewCString(strings.ToValidUTF8(string(raw), "\uFFFD"))
	case types.KindPointer, types.KindRawPointer:
		addr, err := sb.readWord(off, types.PointerSize)
		if err != nil {
			return nil, err
		}
		return NewRawPointer(addr), nil
	}
	return nil, errors.Unsupported(errors.PhaseDecode, "field type "+p.String())
}

// SetField encodes v into the named field. The write is rejected when v's
// type does not fit within the field's declared type; a rejected write
// leaves the buffer unchanged. A nil v is accepted only for Empty fields.
func (sb *StructBuf) SetField(name string, v *Value) error {
	f, p, err := sb.lookup(errors.PhaseEncode, name)
	if err != nil {
		return err
	}

	if v == nil {
		if p.Kind() == types.KindEmpty {
			return nil
		}
		return errors.InvalidInput(errors.PhaseEncode, "nil value for field "+name)
	}
	if !v.Type().FitsWithin(p) {
		return errors.TypeMismatch(errors.PhaseEncode, sb.path(name), v.Type().String(), p.String())
	}

	data, err := encode(v, p)
	if err != nil {
		return err
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(uint32(f.Offset), data)
}

// encode renders v at the width of the field type. Integers are
// zero-extended; CString text is terminated and the rest of the field zeroed.
func encode(v *Value, field types.Primitive) ([]byte, error) {
	out := make([]byte, field.Size())
	if v.Kind() == types.KindCString {
		copy(out, v.c.text)
		return out, nil
	}
	word, err := v.U64()
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = byte(word >> (8 * i))
	}
	return out, nil
}

func (sb *StructBuf) readWord(off uint32, size int) (uint64, error) {
	if size == 4 {
		v, err := sb.buf.ReadU32(off)
		return uint64(v), err
	}
	return sb.buf.ReadU64(off)
}
