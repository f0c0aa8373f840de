// Package invoketest provides native functions of every supported arity for
// exercising the invoke package.
//
// Stub n takes n integer arguments and returns Sentinel(n) plus the sum of
// its arguments, so a test can tell both which thunk ran and that every
// argument arrived. Stubs are only present in cgo builds; Available reports
// whether they can be called.
package invoketest

// Sentinel returns the base value returned by the stub of arity n.
func Sentinel(n int) int64 {
	return int64(0x5a5a0000 + n*0x100)
}
