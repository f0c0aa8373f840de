package bridge

import (
	"fmt"
	"math"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/value"
)

func conversionError(arg any, want string) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidInput).
		ValueType(fmt.Sprintf("%T", arg)).
		Detail("expected %s", want).
		Value(arg).
		Build()
}

// toSigned widens any Go integer, or an integral float as produced by
// script engines without an integer type.
func toSigned(arg any) (int64, bool, error) {
	switch v := arg.(type) {
	case int:
		return int64(v), true, nil
	case int8:
		return int64(v), true, nil
	case int16:
		return int64(v), true, nil
	case int32:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint:
		return int64(v), v <= math.MaxInt64, nil
	case uint8:
		return int64(v), true, nil
	case uint16:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	case uint64:
		return int64(v), v <= math.MaxInt64, nil
	case uintptr:
		return int64(v), uint64(v) <= math.MaxInt64, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxUint64 {
			return 0, false, conversionError(arg, "integer")
		}
		if v > math.MaxInt64 {
			return int64(uint64(v)), false, nil
		}
		return int64(v), true, nil
	case *value.Value:
		w, err := v.U64()
		if err != nil {
			return 0, false, err
		}
		return int64(w), w <= math.MaxInt64, nil
	}
	return 0, false, conversionError(arg, "integer")
}

// toWord reinterprets any integer as a 64-bit machine word.
func toWord(arg any) (uint64, error) {
	n, _, err := toSigned(arg)
	return uint64(n), err
}

// toUnsigned converts arg to an unsigned integer of the given bit width,
// rejecting negative and out-of-range values.
func toUnsigned(arg any, bits uint) (uint64, error) {
	n, fitsSigned, err := toSigned(arg)
	if err != nil {
		return 0, err
	}
	if fitsSigned && n < 0 {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(arg).
			Detail("%d is negative", n).
			Build()
	}
	w := uint64(n)
	if bits < 64 && w >= 1<<bits {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(arg).
			Detail("%d does not fit in %d bits", w, bits).
			Build()
	}
	return w, nil
}

func toString(arg any) (string, error) {
	switch v := arg.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", conversionError(arg, "string")
}
