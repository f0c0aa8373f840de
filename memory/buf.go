// Package memory provides address-stable byte storage and raw native memory access.
package memory

import (
	"encoding/binary"
	"unsafe"

	"github.com/wippyai/wlb"
	"github.com/wippyai/wlb/errors"
)

// Buffer capacity tiers.
const (
	TierSmall  = 32
	TierMedium = 128
	TierLarge  = 1024
	TierMega   = 64 * 1024
)

var (
	_ wlb.Memory      = (*Buf)(nil)
	_ wlb.MemorySizer = (*Buf)(nil)
	_ wlb.Addresser   = (*Buf)(nil)
)

// Buf is a fixed-capacity byte buffer whose address never changes.
//
// The backing array is allocated once at the selected tier capacity and is
// never grown, sliced away, or copied, so a pointer to it stays valid for as
// long as the Buf is reachable. Callers that hand Addr to foreign code must
// keep the Buf alive for as long as that code may use the address.
type Buf struct {
	data []byte
	size int
}

// TierFor returns the capacity tier for a requested logical size.
// The two upper tiers are half-open: 1024 bytes selects the mega tier and
// 65536 bytes does not fit at all.
func TierFor(size int) (int, bool) {
	switch {
	case size < 0:
		return 0, false
	case size <= TierSmall:
		return TierSmall, true
	case size <= TierMedium:
		return TierMedium, true
	case size < TierLarge:
		return TierLarge, true
	case size < TierMega:
		return TierMega, true
	default:
		return 0, false
	}
}

// NewBuf allocates a zeroed buffer from the smallest tier holding size bytes.
func NewBuf(size int) (*Buf, error) {
	tier, ok := TierFor(size)
	if !ok {
		return nil, errors.BufTooLarge(size)
	}
	return &Buf{
		data: make([]byte, tier),
		size: size,
	}, nil
}

// Data returns the logical window of the buffer. The slice aliases the
// buffer; its capacity is clipped so appends cannot reach tier slack.
func (b *Buf) Data() []byte {
	return b.data[:b.size:b.size]
}

// Len returns the requested logical size.
func (b *Buf) Len() int { return b.size }

// Size returns the logical size as a MemorySizer.
func (b *Buf) Size() uint32 { return uint32(b.size) }

// Capacity returns the tier capacity.
func (b *Buf) Capacity() int { return len(b.data) }

// Addr returns the native address of the first byte.
func (b *Buf) Addr() uintptr {
	return uintptr(unsafe.Pointer(&b.data[0]))
}

func (b *Buf) check(phase errors.Phase, offset uint32, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(b.size) {
		return errors.OutOfBounds(phase, nil, int(offset), int(n), b.size)
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (b *Buf) Read(offset uint32, length uint32) ([]byte, error) {
	if err := b.check(errors.PhaseDecode, offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b.data[offset:offset+length])
	return out, nil
}

// Write copies data into the buffer at offset.
func (b *Buf) Write(offset uint32, data []byte) error {
	if err := b.check(errors.PhaseEncode, offset, uint32(len(data))); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buf) ReadU8(offset uint32) (uint8, error) {
	if err := b.check(errors.PhaseDecode, offset, 1); err != nil {
		return 0, err
	}
	return b.data[offset], nil
}

func (b *Buf) ReadU16(offset uint32) (uint16, error) {
	if err := b.check(errors.PhaseDecode, offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[offset:]), nil
}

func (b *Buf) ReadU32(offset uint32) (uint32, error) {
	if err := b.check(errors.PhaseDecode, offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[offset:]), nil
}

func (b *Buf) ReadU64(offset uint32) (uint64, error) {
	if err := b.check(errors.PhaseDecode, offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[offset:]), nil
}

func (b *Buf) WriteU8(offset uint32, value uint8) error {
	if err := b.check(errors.PhaseEncode, offset, 1); err != nil {
		return err
	}
	b.data[offset] = value
	return nil
}

func (b *Buf) WriteU16(offset uint32, value uint16) error {
	if err := b.check(errors.PhaseEncode, offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.data[offset:], value)
	return nil
}

func (b *Buf) WriteU32(offset uint32, value uint32) error {
	if err := b.check(errors.PhaseEncode, offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.data[offset:], value)
	return nil
}

func (b *Buf) WriteU64(offset uint32, value uint64) error {
	if err := b.check(errors.PhaseEncode, offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.data[offset:], value)
	return nil
}
