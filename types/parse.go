package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wlb/errors"
)

// Lookup resolves a struct name inside a type expression.
type Lookup func(name string) (*Struct, bool)

// ParseType parses a type expression:
//
//	empty | u8 | u16 | u32 | u64 | ptr | cstring(N) | *T | <struct name>
//
// Struct names are resolved through lookup, which may be nil.
func ParseType(expr string, lookup Lookup) (Type, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, errors.InvalidInput(errors.PhaseParse, "empty type expression")
	}

	if rest, ok := strings.CutPrefix(s, "*"); ok {
		elem, err := ParseType(rest, lookup)
		if err != nil {
			return nil, err
		}
		return Pointer(elem), nil
	}

	switch s {
	case "empty":
		return Empty(), nil
	case "u8":
		return U8(), nil
	case "u16":
		return U16(), nil
	case "u32":
		return U32(), nil
	case "u64":
		return U64(), nil
	case "ptr":
		return RawPointer(), nil
	}

	if args, ok := strings.CutPrefix(s, "cstring("); ok {
		num, ok := strings.CutSuffix(args, ")")
		if !ok {
			return nil, errors.ParseFailed("type "+strconv.Quote(s), fmt.Errorf("missing closing parenthesis"))
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 0 {
			return nil, errors.ParseFailed("type "+strconv.Quote(s), fmt.Errorf("invalid cstring capacity %q", num))
		}
		return CString(n), nil
	}

	if lookup != nil {
		if st, ok := lookup(s); ok {
			return st, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseParse, "type", s)
}
