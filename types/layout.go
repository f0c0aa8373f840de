package types

import (
	stderrors "errors"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wlb/errors"
)

// Layouts is an ordered registry of named struct layouts.
type Layouts struct {
	structs map[string]*Struct
	order   []string
}

// NewLayouts creates an empty registry.
func NewLayouts() *Layouts {
	return &Layouts{structs: make(map[string]*Struct)}
}

// Add registers a named struct. Names must be unique, and struct fields,
// directly or behind pointers, must refer to named structs.
func (l *Layouts) Add(s *Struct) error {
	if s.Name() == "" {
		return errors.InvalidInput(errors.PhaseLayout, "layout struct must be named")
	}
	if err := checkRefs(s, nil); err != nil {
		return err
	}
	if _, exists := l.structs[s.Name()]; exists {
		return errors.New(errors.PhaseLayout, errors.KindDuplicateName).
			Path(s.Name()).
			Detail("layout %s already defined", s.Name()).
			Build()
	}
	l.structs[s.Name()] = s
	l.order = append(l.order, s.Name())
	return nil
}

// Lookup returns the struct registered under name.
func (l *Layouts) Lookup(name string) (*Struct, bool) {
	s, ok := l.structs[name]
	return s, ok
}

// Names returns layout names in registration order.
func (l *Layouts) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// SortedNames returns layout names alphabetically.
func (l *Layouts) SortedNames() []string {
	out := l.Names()
	sort.Strings(out)
	return out
}

func (l *Layouts) Len() int { return len(l.order) }

type layoutDoc struct {
	Structs []structDoc `yaml:"structs"`
}

type structDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Offset int    `yaml:"offset"`
}

// LoadLayouts reads a YAML layout document. Structs are built in document
// order through Push, so every layout invariant is enforced; a struct may
// point to itself or to any struct declared before it.
func LoadLayouts(r io.Reader) (*Layouts, error) {
	l := NewLayouts()
	if err := l.Load(r); err != nil {
		return nil, err
	}
	return l, nil
}

// Load adds the structs of a YAML layout document to l.
func (l *Layouts) Load(r io.Reader) error {
	var doc layoutDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.ParseFailed("layout document", err)
	}

	for _, sd := range doc.Structs {
		s := NewStruct(sd.Name)
		lookup := func(name string) (*Struct, bool) {
			if name == s.Name() {
				return s, true
			}
			return l.Lookup(name)
		}
		for _, fd := range sd.Fields {
			t, err := ParseType(fd.Type, lookup)
			if err != nil {
				return errors.New(errors.PhaseParse, errors.KindInvalidInput).
					Path(sd.Name, fd.Name).
					Detail("field type %q", fd.Type).
					Cause(err).
					Build()
			}
			if err := s.Push(NewField(fd.Name, fd.Offset, t)); err != nil {
				return err
			}
		}
		if err := l.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// Marshal writes l as a YAML layout document readable by LoadLayouts.
func (l *Layouts) Marshal(w io.Writer) error {
	doc := layoutDoc{Structs: make([]structDoc, 0, len(l.order))}
	declared := make(map[string]bool, len(l.order))
	for _, name := range l.order {
		s := l.structs[name]
		declared[name] = true
		if err := checkRefs(s, declared); err != nil {
			return err
		}
		sd := structDoc{Name: name}
		for _, f := range s.Fields() {
			sd.Fields = append(sd.Fields, fieldDoc{
				Name:   f.Name,
				Offset: f.Offset,
				Type:   typeRef(f.Type),
			})
		}
		doc.Structs = append(doc.Structs, sd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(errors.PhaseLayout, errors.KindInvalidInput, err, "encode layout document")
	}
	return enc.Close()
}

// checkRefs rejects fields of s whose type is, or points to, an anonymous
// struct, since a layout document can only name structs. With declared
// set, named structs must also be declared already.
func checkRefs(s *Struct, declared map[string]bool) error {
	for _, f := range s.Fields() {
		t := f.Type
		for {
			p, ok := t.(Primitive)
			if !ok || p.Kind() != KindPointer {
				break
			}
			t = p.Elem()
		}
		ref, ok := t.(*Struct)
		if !ok {
			continue
		}
		switch {
		case ref.Name() == "":
			return errors.New(errors.PhaseLayout, errors.KindInvalidInput).
				Path(s.Name(), f.Name).
				Detail("field refers to an anonymous struct").
				Build()
		case declared != nil && !declared[ref.Name()]:
			return errors.New(errors.PhaseLayout, errors.KindInvalidInput).
				Path(s.Name(), f.Name).
				Detail("field refers to undeclared struct %s", ref.Name()).
				Build()
		}
	}
	return nil
}
