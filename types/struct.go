package types

import (
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/wlb/errors"
)

// StructField is a named slot at a byte offset within a Struct.
type StructField struct {
	Type   Type
	Name   string
	Offset int
}

// NewField creates a field descriptor.
func NewField(name string, offset int, t Type) StructField {
	return StructField{Name: name, Offset: offset, Type: t}
}

// Size returns the byte size of the field's type.
func (f StructField) Size() int {
	if f.Type == nil {
		return 0
	}
	return f.Type.Size()
}

// End returns the offset one past the field's last byte.
func (f StructField) End() int {
	return f.Offset + f.Size()
}

// InField reports whether offset falls inside [Offset, Offset+Size).
func (f StructField) InField(offset int) bool {
	return offset >= f.Offset && offset < f.End()
}

// Overlaps reports whether any byte of other lies inside f.
func (f StructField) Overlaps(other StructField) bool {
	for i := 0; i < other.Size(); i++ {
		if f.InField(other.Offset + i) {
			return true
		}
	}
	return false
}

// Struct is an insertion-ordered, append-only set of non-overlapping fields.
// Once bound to a live buffer it is frozen and Push fails.
type Struct struct {
	name   string
	fields []StructField
	mu     sync.RWMutex
	frozen bool
}

// NewStruct creates an empty struct layout. name may be empty.
func NewStruct(name string) *Struct {
	return &Struct{name: name}
}

func (*Struct) isType() {}

// Name returns the layout name, or "" for anonymous structs.
func (s *Struct) Name() string { return s.name }

// Fields returns a copy of the fields in insertion order.
func (s *Struct) Fields() []StructField {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StructField, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *Struct) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fields)
}

func (s *Struct) IsEmpty() bool { return s.Len() == 0 }

// Size is the largest field end, or 0 for an empty struct.
func (s *Struct) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	size := 0
	for _, f := range s.fields {
		if end := f.End(); end > size {
			size = end
		}
	}
	return size
}

// FitsWithin reports whether s is no larger than the struct other.
func (s *Struct) FitsWithin(other Type) bool {
	o, ok := other.(*Struct)
	if !ok {
		return false
	}
	return s.Size() <= o.Size()
}

func (s *Struct) String() string {
	if s.name != "" {
		return s.name
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	b.WriteString("struct{")
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte('@')
		b.WriteString(strconv.Itoa(f.Offset))
		b.WriteByte(':')
		b.WriteString(typeRef(f.Type))
	}
	b.WriteByte('}')
	return b.String()
}

// Push appends a field. It fails without modifying s when the name is
// already taken, when the field's byte range intersects an existing field,
// or when s is frozen.
func (s *Struct) Push(field StructField) error {
	if field.Type == nil {
		return errors.InvalidInput(errors.PhaseLayout, "field "+field.Name+" has no type")
	}
	if field.Offset < 0 {
		return errors.New(errors.PhaseLayout, errors.KindInvalidInput).
			Path(s.name, field.Name).
			Detail("negative offset %d", field.Offset).
			Build()
	}
	if containsStruct(field.Type, s) {
		return errors.New(errors.PhaseLayout, errors.KindInvalidInput).
			Path(s.name, field.Name).
			Detail("struct cannot contain itself by value").
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return errors.Frozen(s.name)
	}

	for _, existing := range s.fields {
		if existing.Name == field.Name {
			return errors.DuplicateName(s.name, field.Name)
		}
		if field.Overlaps(existing) {
			return errors.OverlappingFields(s.name, field.Name, existing.Name)
		}
	}

	s.fields = append(s.fields, field)
	return nil
}

// Field looks up a field by name.
func (s *Struct) Field(name string) (StructField, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// Freeze marks s as bound to a buffer. Freezing is permanent.
func (s *Struct) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Frozen reports whether s has been bound to a buffer.
func (s *Struct) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// containsStruct reports whether t embeds target by value. Pointers end the
// search since they do not contribute the pointee's size.
func containsStruct(t Type, target *Struct) bool {
	st, ok := t.(*Struct)
	if !ok {
		return false
	}
	if st == target {
		return true
	}
	for _, f := range st.Fields() {
		if containsStruct(f.Type, target) {
			return true
		}
	}
	return false
}
