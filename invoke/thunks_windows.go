//go:build windows

package invoke

import "syscall"

func native() Table {
	var t Table
	for i := range t {
		t[i] = syscallN
	}
	return t
}

// syscallN passes each word in one register or stack slot, which is the
// integer calling convention on windows/amd64 and windows/arm64.
func syscallN(fn uintptr, args []uint64) int64 {
	var a [MaxArgs]uintptr
	for i, w := range args {
		a[i] = uintptr(w)
	}
	r, _, _ := syscall.SyscallN(fn, a[:len(args)]...)
	return int64(r)
}
