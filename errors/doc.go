// Package errors provides structured error types for the wlb bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending field path, the value and layout type
// names involved, an optional platform error code, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("RECT", "left").
//		ValueType("u64").
//		FieldType("u32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BufTooLarge(70000)
//	err := errors.FieldNotFound(errors.PhaseDecode, "RECT", "width")
//
// All errors implement the standard error interface and support errors.Is/As.
// The exported sentinels match on Kind alone:
//
//	if errors.Is(err, wlberrors.ErrTooManyArguments) { ... }
package errors
