package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLayout  Phase = "layout"  // descriptor construction
	PhaseAlloc   Phase = "alloc"   // buffer allocation
	PhaseEncode  Phase = "encode"  // value into struct field
	PhaseDecode  Phase = "decode"  // struct field into value
	PhaseValue   Phase = "value"   // value construction and access
	PhaseInvoke  Phase = "invoke"  // native call
	PhaseResolve Phase = "resolve" // process/module/symbol resolution
	PhaseHost    Phase = "host"    // host boundary (bridge, wasm host)
	PhaseParse   Phase = "parse"   // type expressions and layout documents
)

// Kind categorizes the error
type Kind string

const (
	KindBufTooLarge        Kind = "buf_too_large"
	KindDuplicateName      Kind = "duplicate_name"
	KindOverlappingFields  Kind = "overlapping_fields"
	KindFieldNotFound      Kind = "field_not_found"
	KindTypeMismatch       Kind = "type_mismatch"
	KindStructAsValue      Kind = "struct_as_value"
	KindInsufficientAccess Kind = "insufficient_access"
	KindAddressResolution  Kind = "address_resolution"
	KindInvalidText        Kind = "invalid_text"
	KindTooManyArguments   Kind = "too_many_arguments"
	KindNotRepresentable   Kind = "not_representable"
	KindNotAString         Kind = "not_a_string"
	KindNotFound           Kind = "not_found"
	KindFrozen             Kind = "frozen"
	KindUnsupported        Kind = "unsupported"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindInvalidInput       Kind = "invalid_input"
	KindInvalidHandle      Kind = "invalid_handle"
)

// Sentinels for errors.Is. They carry no phase, so they match any phase.
var (
	ErrBufTooLarge        = &Error{Kind: KindBufTooLarge}
	ErrDuplicateName      = &Error{Kind: KindDuplicateName}
	ErrOverlappingFields  = &Error{Kind: KindOverlappingFields}
	ErrFieldNotFound      = &Error{Kind: KindFieldNotFound}
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrStructAsValue      = &Error{Kind: KindStructAsValue}
	ErrInsufficientAccess = &Error{Kind: KindInsufficientAccess}
	ErrAddressResolution  = &Error{Kind: KindAddressResolution}
	ErrInvalidText        = &Error{Kind: KindInvalidText}
	ErrTooManyArguments   = &Error{Kind: KindTooManyArguments}
	ErrNotRepresentable   = &Error{Kind: KindNotRepresentable}
	ErrNotAString         = &Error{Kind: KindNotAString}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrFrozen             = &Error{Kind: KindFrozen}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
	ErrOutOfBounds        = &Error{Kind: KindOutOfBounds}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrInvalidHandle      = &Error{Kind: KindInvalidHandle}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	ValueType string
	FieldType string
	Detail    string
	Path      []string
	Code      uint32 // platform error code, KindAddressResolution only
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.ValueType != "" || e.FieldType != "" {
		b.WriteString(": ")
		if e.ValueType != "" && e.FieldType != "" {
			b.WriteString("value type ")
			b.WriteString(e.ValueType)
			b.WriteString(", field type ")
			b.WriteString(e.FieldType)
		} else if e.ValueType != "" {
			b.WriteString("value type ")
			b.WriteString(e.ValueType)
		} else {
			b.WriteString("field type ")
			b.WriteString(e.FieldType)
		}
	}

	if e.Detail != "" {
		if e.ValueType != "" || e.FieldType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Kind == KindAddressResolution {
		fmt.Fprintf(&b, " (code 0x%08x)", e.Code)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// ValueType sets the type name of the offending value
func (b *Builder) ValueType(t string) *Builder {
	b.err.ValueType = t
	return b
}

// FieldType sets the declared type name of the target field
func (b *Builder) FieldType(t string) *Builder {
	b.err.FieldType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Code sets the platform error code
func (b *Builder) Code(code uint32) *Builder {
	b.err.Code = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BufTooLarge creates an allocation error carrying the requested size
func BufTooLarge(requested int) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindBufTooLarge,
		Detail: fmt.Sprintf("buf too large (%d requested)", requested),
		Value:  requested,
	}
}

// DuplicateName creates a duplicate struct field name error
func DuplicateName(structName, field string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindDuplicateName,
		Path:   pathOf(structName, field),
		Detail: fmt.Sprintf("struct already has field with name %s", field),
		Value:  field,
	}
}

// OverlappingFields creates a field overlap error
func OverlappingFields(structName, field, existing string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindOverlappingFields,
		Path:   pathOf(structName, field),
		Detail: fmt.Sprintf("field overlaps field %s", existing),
	}
}

// FieldNotFound creates a missing struct field error
func FieldNotFound(phase Phase, structName, field string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldNotFound,
		Path:   pathOf(structName, field),
		Detail: fmt.Sprintf("struct field %q not found", field),
	}
}

// TypeMismatch creates an assignment compatibility error
func TypeMismatch(phase Phase, path []string, valueType, fieldType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		ValueType: valueType,
		FieldType: fieldType,
		Detail:    "that struct field cannot be set to that type",
	}
}

// StructAsValue creates an error for struct-typed fields used as scalars
func StructAsValue(phase Phase, path []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStructAsValue,
		Path:   path,
		Detail: "tried to use struct as value",
	}
}

// InsufficientAccess creates an access rights error
func InsufficientAccess(operation string, want, have uint32) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindInsufficientAccess,
		Detail: fmt.Sprintf("insufficient access to %s (want 0x%x, have 0x%x)", operation, want, have),
	}
}

// AddressResolution wraps a platform failure and its error code
func AddressResolution(operation string, code uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindAddressResolution,
		Detail: operation,
		Code:   code,
		Cause:  cause,
	}
}

// InvalidText creates an embedded-terminator error
func InvalidText(text string, at int) *Error {
	return &Error{
		Phase:  PhaseValue,
		Kind:   KindInvalidText,
		Detail: fmt.Sprintf("nul byte found at position %d", at),
		Value:  text,
	}
}

// TooManyArguments creates an invocation arity error
func TooManyArguments(got, max int) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindTooManyArguments,
		Detail: fmt.Sprintf("too many arguments (%d, max %d)", got, max),
		Value:  got,
	}
}

// NotRepresentable creates an error for values without a machine-word form
func NotRepresentable(phase Phase, valueType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindNotRepresentable,
		ValueType: valueType,
		Detail:    "not representable as an integer",
	}
}

// NotAString creates an error for text access on non-string values
func NotAString(valueType string) *Error {
	return &Error{
		Phase:     PhaseValue,
		Kind:      KindNotAString,
		ValueType: valueType,
		Detail:    "not a string",
	}
}

// Frozen creates an error for mutation of a layout that is in use
func Frozen(structName string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindFrozen,
		Path:   pathOf(structName),
		Detail: "struct layout is bound to a live buffer",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, size, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds (length %d)", offset, offset+size, length),
		Value:  offset,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidHandle creates an unknown or mistyped handle error
func InvalidHandle(handle uint32, want string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d is not a live %s", handle, want),
		Value:  handle,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

func pathOf(parts ...string) []string {
	var path []string
	for _, p := range parts {
		if p != "" {
			path = append(path, p)
		}
	}
	return path
}
