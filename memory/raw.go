package memory

import "unsafe"

// Raw reads and writes native memory at arbitrary addresses.
//
// Nothing is validated: an unmapped or misaligned address faults the
// process. Raw exists for hosts that receive addresses from native code.
type Raw struct{}

func ptr(addr uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

func (Raw) Peek8(addr uint64) uint8   { return *(*uint8)(ptr(addr)) }
func (Raw) Peek16(addr uint64) uint16 { return *(*uint16)(ptr(addr)) }
func (Raw) Peek32(addr uint64) uint32 { return *(*uint32)(ptr(addr)) }
func (Raw) Peek64(addr uint64) uint64 { return *(*uint64)(ptr(addr)) }

func (Raw) Poke8(addr uint64, v uint8)   { *(*uint8)(ptr(addr)) = v }
func (Raw) Poke16(addr uint64, v uint16) { *(*uint16)(ptr(addr)) = v }
func (Raw) Poke32(addr uint64, v uint32) { *(*uint32)(ptr(addr)) = v }
func (Raw) Poke64(addr uint64, v uint64) { *(*uint64)(ptr(addr)) = v }

// CString reads a NUL-terminated string at addr, scanning at most limit bytes.
// The terminator is not included.
func (Raw) CString(addr uint64, limit int) string {
	if addr == 0 || limit <= 0 {
		return ""
	}
	b := unsafe.Slice((*byte)(ptr(addr)), limit)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
