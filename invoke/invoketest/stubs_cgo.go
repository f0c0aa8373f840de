//go:build cgo

package invoketest

/*
#include <stdint.h>
#include <string.h>

typedef uint64_t w;

#define SENTINEL(n) ((int64_t)(0x5a5a0000 + (n) * 0x100))

static int64_t stub0(void) { return SENTINEL(0); }
static int64_t stub1(w a) { return SENTINEL(1) + a; }
static int64_t stub2(w a, w b) { return SENTINEL(2) + a + b; }
static int64_t stub3(w a, w b, w c) { return SENTINEL(3) + a + b + c; }
static int64_t stub4(w a, w b, w c, w d) { return SENTINEL(4) + a + b + c + d; }
static int64_t stub5(w a, w b, w c, w d, w e) { return SENTINEL(5) + a + b + c + d + e; }
static int64_t stub6(w a, w b, w c, w d, w e, w f) { return SENTINEL(6) + a + b + c + d + e + f; }
static int64_t stub7(w a, w b, w c, w d, w e, w f, w g) { return SENTINEL(7) + a + b + c + d + e + f + g; }

static int64_t stub_strlen(const char *s) { return (int64_t)strlen(s); }

static int64_t stub_store32(uint32_t *dst, w v) {
	*dst = (uint32_t)v;
	return 1;
}

static int64_t stub_deref32(uint32_t *p) { return (int64_t)*p; }

static uintptr_t addr_stub(int n) {
	switch (n) {
	case 0: return (uintptr_t)stub0;
	case 1: return (uintptr_t)stub1;
	case 2: return (uintptr_t)stub2;
	case 3: return (uintptr_t)stub3;
	case 4: return (uintptr_t)stub4;
	case 5: return (uintptr_t)stub5;
	case 6: return (uintptr_t)stub6;
	case 7: return (uintptr_t)stub7;
	}
	return 0;
}

static uintptr_t addr_strlen(void) { return (uintptr_t)stub_strlen; }
static uintptr_t addr_store32(void) { return (uintptr_t)stub_store32; }
static uintptr_t addr_deref32(void) { return (uintptr_t)stub_deref32; }
*/
import "C"

// Available reports whether the native stubs are linked into this build.
const Available = true

// Stub returns the address of the stub taking n arguments, or 0 when n is
// out of range.
func Stub(n int) uintptr {
	return uintptr(C.addr_stub(C.int(n)))
}

// Strlen returns the address of a function returning strlen of its
// pointer argument.
func Strlen() uintptr { return uintptr(C.addr_strlen()) }

// Store32 returns the address of a function storing its second argument
// as a uint32 through its first and returning 1.
func Store32() uintptr { return uintptr(C.addr_store32()) }

// Deref32 returns the address of a function returning the uint32 its
// argument points to.
func Deref32() uintptr { return uintptr(C.addr_deref32()) }
