package wlb

// Memory is byte-addressed storage with little-endian fixed-width access.
// Offsets are relative to the start of the storage; implementations bound
// every access to their logical size.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the logical size of a Memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Addresser is implemented by storage whose first byte has a stable native
// address that may be handed to foreign code.
type Addresser interface {
	Addr() uintptr
}
