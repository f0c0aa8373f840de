//go:build cgo && !windows

package invoke

/*
#include <stdint.h>

typedef uint64_t w;

static int64_t wlb_call0(uintptr_t fn) {
	return ((int64_t (*)(void))fn)();
}
static int64_t wlb_call1(uintptr_t fn, w a0) {
	return ((int64_t (*)(w))fn)(a0);
}
static int64_t wlb_call2(uintptr_t fn, w a0, w a1) {
	return ((int64_t (*)(w, w))fn)(a0, a1);
}
static int64_t wlb_call3(uintptr_t fn, w a0, w a1, w a2) {
	return ((int64_t (*)(w, w, w))fn)(a0, a1, a2);
}
static int64_t wlb_call4(uintptr_t fn, w a0, w a1, w a2, w a3) {
	return ((int64_t (*)(w, w, w, w))fn)(a0, a1, a2, a3);
}
static int64_t wlb_call5(uintptr_t fn, w a0, w a1, w a2, w a3, w a4) {
	return ((int64_t (*)(w, w, w, w, w))fn)(a0, a1, a2, a3, a4);
}
static int64_t wlb_call6(uintptr_t fn, w a0, w a1, w a2, w a3, w a4, w a5) {
	return ((int64_t (*)(w, w, w, w, w, w))fn)(a0, a1, a2, a3, a4, a5);
}
static int64_t wlb_call7(uintptr_t fn, w a0, w a1, w a2, w a3, w a4, w a5, w a6) {
	return ((int64_t (*)(w, w, w, w, w, w, w))fn)(a0, a1, a2, a3, a4, a5, a6);
}
*/
import "C"

func native() Table {
	return Table{call0, call1, call2, call3, call4, call5, call6, call7}
}

func fp(fn uintptr) C.uintptr_t { return C.uintptr_t(fn) }

func call0(fn uintptr, _ []uint64) int64 {
	return int64(C.wlb_call0(fp(fn)))
}

func call1(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call1(fp(fn), C.w(a[0])))
}

func call2(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call2(fp(fn), C.w(a[0]), C.w(a[1])))
}

func call3(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call3(fp(fn), C.w(a[0]), C.w(a[1]), C.w(a[2])))
}

func call4(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call4(fp(fn), C.w(a[0]), C.w(a[1]), C.w(a[2]), C.w(a[3])))
}

func call5(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call5(fp(fn), C.w(a[0]), C.w(a[1]), C.w(a[2]), C.w(a[3]), C.w(a[4])))
}

func call6(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call6(fp(fn), C.w(a[0]), C.w(a[1]), C.w(a[2]), C.w(a[3]), C.w(a[4]), C.w(a[5])))
}

func call7(fn uintptr, a []uint64) int64 {
	return int64(C.wlb_call7(fp(fn), C.w(a[0]), C.w(a[1]), C.w(a[2]), C.w(a[3]), C.w(a[4]), C.w(a[5]), C.w(a[6])))
}
