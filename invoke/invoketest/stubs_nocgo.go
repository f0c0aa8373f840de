//go:build !cgo

package invoketest

const Available = false

func Stub(int) uintptr { return 0 }
func Strlen() uintptr  { return 0 }
func Store32() uintptr { return 0 }
func Deref32() uintptr { return 0 }
