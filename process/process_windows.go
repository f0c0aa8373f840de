//go:build windows

package process

import (
	stderrors "errors"
	"strconv"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/wippyai/wlb/errors"
)

const maxModules = 4096

// Current returns the running process with full access.
func Current() (*Process, error) {
	return New(&winProcess{h: windows.CurrentProcess(), local: true}, AccessAll), nil
}

// Open returns process pid. Full query and read rights are requested first;
// when refused the process is opened with limited query rights only.
func Open(pid int) (*Process, error) {
	wrap := NewRemote
	if uint32(pid) == windows.GetCurrentProcessId() {
		wrap = New
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(pid))
	if err == nil {
		return wrap(&winProcess{h: h}, AccessQueryLimited|AccessQuery|AccessVMRead), nil
	}
	h, err = windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, gle("OpenProcess "+strconv.Itoa(pid), err)
	}
	return wrap(&winProcess{h: h}, AccessQueryLimited), nil
}

// gle converts a failed Win32 call into an address resolution error
// carrying the GetLastError code.
func gle(op string, err error) error {
	var code uint32
	var errno windows.Errno
	if stderrors.As(err, &errno) {
		code = uint32(errno)
	}
	return errors.AddressResolution(op, code, err)
}

type winProcess struct {
	h     windows.Handle
	local bool
}

// Close releases a handle obtained from OpenProcess.
func (p *winProcess) Close() error {
	if p.local {
		return nil
	}
	return windows.CloseHandle(p.h)
}

func (p *winProcess) ID() (uint32, error) {
	id, err := windows.GetProcessId(p.h)
	if err != nil {
		return 0, gle("GetProcessId", err)
	}
	return id, nil
}

func (p *winProcess) Modules() ([]ModuleRef, error) {
	var mods [maxModules]windows.Handle
	var needed uint32
	size := uint32(len(mods)) * uint32(unsafe.Sizeof(mods[0]))
	if err := windows.EnumProcessModules(p.h, &mods[0], size, &needed); err != nil {
		return nil, gle("EnumProcessModules", err)
	}
	n := int(needed / uint32(unsafe.Sizeof(mods[0])))
	if n > len(mods) {
		n = len(mods)
	}
	refs := make([]ModuleRef, n)
	for i := 0; i < n; i++ {
		refs[i] = ModuleRef(mods[i])
	}
	return refs, nil
}

func (p *winProcess) BaseName(ref ModuleRef) (string, error) {
	var buf [1024]uint16
	if err := windows.GetModuleBaseName(p.h, windows.Handle(ref), &buf[0], uint32(len(buf))); err != nil {
		return "", gle("GetModuleBaseName", err)
	}
	return windows.UTF16ToString(buf[:]), nil
}

// Symbol uses GetProcAddress, which only sees modules of the calling
// process.
func (p *winProcess) Symbol(ref ModuleRef, name string) (uint64, bool, error) {
	if !p.local {
		return 0, false, errors.Unsupported(errors.PhaseResolve, "symbol lookup in another process")
	}
	addr, err := windows.GetProcAddress(windows.Handle(ref), name)
	if err != nil {
		if stderrors.Is(err, windows.ERROR_PROC_NOT_FOUND) {
			return 0, false, nil
		}
		return 0, false, gle("GetProcAddress", err)
	}
	return uint64(addr), true, nil
}
