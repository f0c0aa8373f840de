package memory

import (
	"bytes"
	"errors"
	"testing"

	wlberrors "github.com/wippyai/wlb/errors"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		size int
		want int
		ok   bool
	}{
		{0, TierSmall, true},
		{1, TierSmall, true},
		{32, TierSmall, true},
		{33, TierMedium, true},
		{128, TierMedium, true},
		{129, TierLarge, true},
		{1023, TierLarge, true},
		{1024, TierMega, true},
		{65535, TierMega, true},
		{65536, 0, false},
		{1 << 20, 0, false},
		{-1, 0, false},
	}

	for _, tt := range tests {
		got, ok := TierFor(tt.size)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TierFor(%d) = %d, %v; want %d, %v", tt.size, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewBuf(t *testing.T) {
	b, err := NewBuf(33)
	if err != nil {
		t.Fatalf("NewBuf(33): %v", err)
	}
	if b.Capacity() != 128 {
		t.Errorf("capacity = %d, want 128", b.Capacity())
	}
	if b.Len() != 33 || len(b.Data()) != 33 || b.Size() != 33 {
		t.Errorf("logical size = %d/%d/%d, want 33", b.Len(), len(b.Data()), b.Size())
	}
	if !bytes.Equal(b.Data(), make([]byte, 33)) {
		t.Error("buffer not zeroed")
	}

	b, err = NewBuf(1024)
	if err != nil {
		t.Fatalf("NewBuf(1024): %v", err)
	}
	if b.Capacity() != TierMega {
		t.Errorf("capacity = %d, want %d", b.Capacity(), TierMega)
	}
}

func TestNewBuf_TooLarge(t *testing.T) {
	b, err := NewBuf(65536)
	if b != nil {
		t.Fatal("expected nil buffer")
	}
	if !errors.Is(err, wlberrors.ErrBufTooLarge) {
		t.Fatalf("expected buf_too_large, got %v", err)
	}
	var e *wlberrors.Error
	if !errors.As(err, &e) || e.Value != 65536 {
		t.Errorf("error should carry requested size, got %+v", e)
	}
}

func TestBuf_DataClipped(t *testing.T) {
	b, _ := NewBuf(4)
	d := b.Data()
	if cap(d) != 4 {
		t.Fatalf("cap(Data()) = %d, want 4", cap(d))
	}
	d = append(d, 0xff)
	if b.data[4] != 0 {
		t.Error("append reached tier slack")
	}
	_ = d
}

func TestBuf_ReadWrite(t *testing.T) {
	b, _ := NewBuf(16)

	if err := b.WriteU8(0, 0xab); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteU16(2, 0x1234); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteU32(4, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteU64(8, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}

	if v, _ := b.ReadU8(0); v != 0xab {
		t.Errorf("ReadU8 = %#x", v)
	}
	if v, _ := b.ReadU16(2); v != 0x1234 {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := b.ReadU32(4); v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x", v)
	}
	if v, _ := b.ReadU64(8); v != 0x0102030405060708 {
		t.Errorf("ReadU64 = %#x", v)
	}

	// Little-endian layout.
	if got := b.Data()[2:4]; !bytes.Equal(got, []byte{0x34, 0x12}) {
		t.Errorf("u16 bytes = % x", got)
	}

	raw, err := b.Read(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] = 0
	if v, _ := b.ReadU32(4); v != 0xdeadbeef {
		t.Error("Read should return a copy")
	}

	if err := b.Write(12, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.ReadU32(12); v != 0x04030201 {
		t.Errorf("after Write, ReadU32 = %#x", v)
	}
}

func TestBuf_Bounds(t *testing.T) {
	b, _ := NewBuf(8)

	checks := []struct {
		name string
		err  error
	}{
		{"ReadU64 past end", func() error { _, err := b.ReadU64(1); return err }()},
		{"ReadU8 at len", func() error { _, err := b.ReadU8(8); return err }()},
		{"WriteU32 straddling", b.WriteU32(6, 1)},
		{"Write too long", b.Write(0, make([]byte, 9))},
		{"Read huge offset", func() error { _, err := b.Read(0xffffffff, 2); return err }()},
	}
	for _, c := range checks {
		if !errors.Is(c.err, wlberrors.ErrOutOfBounds) {
			t.Errorf("%s: expected out_of_bounds, got %v", c.name, c.err)
		}
	}

	// The logical size bounds access even though the tier is larger.
	if b.Capacity() <= 8 {
		t.Fatal("test assumes tier slack")
	}
	if err := b.WriteU8(8, 1); err == nil {
		t.Error("write into tier slack should fail")
	}
}

func TestBuf_AddrStable(t *testing.T) {
	b, _ := NewBuf(64)
	addr := b.Addr()
	for i := 0; i < 64; i++ {
		_ = b.WriteU8(uint32(i), byte(i))
	}
	_ = b.Data()
	if b.Addr() != addr {
		t.Fatal("buffer address changed")
	}
}

func TestRaw_PeekPoke(t *testing.T) {
	b, _ := NewBuf(32)
	base := uint64(b.Addr())
	var r Raw

	r.Poke8(base, 0x11)
	r.Poke16(base+2, 0x2233)
	r.Poke32(base+4, 0x44556677)
	r.Poke64(base+8, 0x8899aabbccddeeff)

	if v := r.Peek8(base); v != 0x11 {
		t.Errorf("Peek8 = %#x", v)
	}
	if v := r.Peek16(base + 2); v != 0x2233 {
		t.Errorf("Peek16 = %#x", v)
	}
	if v := r.Peek32(base + 4); v != 0x44556677 {
		t.Errorf("Peek32 = %#x", v)
	}
	if v := r.Peek64(base + 8); v != 0x8899aabbccddeeff {
		t.Errorf("Peek64 = %#x", v)
	}

	// Raw and Buf see the same bytes.
	if v, _ := b.ReadU32(4); v != 0x44556677 {
		t.Errorf("buf view = %#x", v)
	}
}

func TestRaw_CString(t *testing.T) {
	b, _ := NewBuf(16)
	_ = b.Write(0, []byte("hello\x00world"))
	var r Raw

	if got := r.CString(uint64(b.Addr()), 16); got != "hello" {
		t.Errorf("CString = %q", got)
	}
	if got := r.CString(uint64(b.Addr()), 3); got != "hel" {
		t.Errorf("bounded CString = %q", got)
	}
	if got := r.CString(0, 16); got != "" {
		t.Errorf("nil address = %q", got)
	}
}
