// Package invoke calls native functions at raw addresses.
//
// A call reduces every argument to a 64-bit machine word and dispatches on
// argument count to a thunk declared with exactly that many integer
// parameters. Nothing verifies that the target's real signature matches:
// a wrong arity, a wrong width, or a stale address is undefined behavior at
// the call boundary and is never reported as an error.
package invoke

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/wlb/errors"
	"github.com/wippyai/wlb/value"
)

// MaxArgs is the largest supported argument count.
const MaxArgs = 7

// Thunk calls fn with len(args) integer arguments. Implementations must not
// be called with a different argument count than their table slot.
type Thunk func(fn uintptr, args []uint64) int64

// Table holds one thunk per arity, indexed by argument count.
type Table [MaxArgs + 1]Thunk

// Native returns the thunk table for this platform. Slots are nil when
// native calls are not available in this build.
func Native() Table {
	return native()
}

// Available reports whether every arity has a thunk.
func (t Table) Available() bool {
	for _, th := range t {
		if th == nil {
			return false
		}
	}
	return true
}

// Reduce converts arguments to machine words. It fails on the first
// argument without an integer form, such as a CString not wrapped in a
// pointer.
func Reduce(args []*value.Value) ([]uint64, error) {
	words := make([]uint64, len(args))
	for i, a := range args {
		if a == nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Detail("argument %d is nil", i).
				Build()
		}
		w, err := a.U64()
		if err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindNotRepresentable).
				ValueType(a.Type().String()).
				Detail("argument %d cannot be passed as a machine word", i).
				Cause(err).
				Build()
		}
		words[i] = w
	}
	return words, nil
}

// Call invokes the function at addr. The argument values, and through
// pointer ownership everything they point to, stay reachable until the
// native call returns.
func (t Table) Call(addr uintptr, args ...*value.Value) (int64, error) {
	if len(args) > MaxArgs {
		return 0, errors.TooManyArguments(len(args), MaxArgs)
	}
	words, err := Reduce(args)
	if err != nil {
		return 0, err
	}
	r, err := t.CallWords(addr, words)
	runtime.KeepAlive(args)
	return r, err
}

// CallWords invokes the function at addr with already reduced arguments.
// Callers passing addresses of Go memory must keep that memory alive.
func (t Table) CallWords(addr uintptr, words []uint64) (int64, error) {
	if len(words) > MaxArgs {
		return 0, errors.TooManyArguments(len(words), MaxArgs)
	}
	if addr == 0 {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "call to nil address")
	}

	var th Thunk
	switch len(words) {
	case 0:
		th = t[0]
	case 1:
		th = t[1]
	case 2:
		th = t[2]
	case 3:
		th = t[3]
	case 4:
		th = t[4]
	case 5:
		th = t[5]
	case 6:
		th = t[6]
	case 7:
		th = t[7]
	}
	if th == nil {
		return 0, errors.Unsupported(errors.PhaseInvoke, "native calls are not available in this build")
	}

	Logger().Debug("native call",
		zap.Uint64("address", uint64(addr)),
		zap.Int("argc", len(words)))

	return th(addr, words), nil
}
