//go:build linux

package process

import (
	"bufio"
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wippyai/wlb/errors"
)

// Current returns the running process with full access.
func Current() (*Process, error) {
	return New(newProcfs(unix.Getpid()), AccessAll), nil
}

// Open returns process pid with the rights the caller actually holds on
// its /proc entries.
func Open(pid int) (*Process, error) {
	access, err := probeAccess(pid)
	if err != nil {
		return nil, err
	}
	if pid == unix.Getpid() {
		return New(newProcfs(pid), access), nil
	}
	return NewRemote(newProcfs(pid), access), nil
}

func probeAccess(pid int) (Access, error) {
	dir := "/proc/" + strconv.Itoa(pid)
	var st unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return 0, errors.AddressResolution("open process "+strconv.Itoa(pid), uint32(errnoOf(err)), err)
	}
	access := AccessQueryLimited
	if unix.Access(dir+"/maps", unix.R_OK) == nil {
		access |= AccessQuery
	}
	if unix.Access(dir+"/mem", unix.R_OK) == nil {
		access |= AccessVMRead
	}
	if unix.Access(dir+"/mem", unix.W_OK) == nil {
		access |= AccessVMWrite
	}
	return access, nil
}

func errnoOf(err error) unix.Errno {
	if e, ok := err.(unix.Errno); ok {
		return e
	}
	return 0
}

// procfs reads module mappings from /proc/<pid>/maps and resolves symbols
// from the mapped ELF files.
type procfs struct {
	paths   map[ModuleRef]string
	symtabs map[string]*symtab
	objects map[string]bool
	mu      sync.Mutex
	pid     int
}

func newProcfs(pid int) *procfs {
	return &procfs{
		pid:     pid,
		paths:   make(map[ModuleRef]string),
		symtabs: make(map[string]*symtab),
		objects: make(map[string]bool),
	}
}

func (p *procfs) ID() (uint32, error) {
	return uint32(p.pid), nil
}

// Modules lists mapped ELF objects in address order. A module's ref is the
// start of its lowest mapping. Mapped data files are skipped.
func (p *procfs) Modules() ([]ModuleRef, error) {
	path := fmt.Sprintf("/proc/%d/maps", p.pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddressResolution("read "+path, uint32(errnoOf(unwrapPath(err))), err)
	}
	defer f.Close()

	maps, err := parseMaps(f)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	refs := make([]ModuleRef, 0, len(maps))
	for _, m := range maps {
		if !p.isObject(m) {
			continue
		}
		ref := ModuleRef(m.start)
		p.paths[ref] = m.path
		refs = append(refs, ref)
	}
	return refs, nil
}

func unwrapPath(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}

func (p *procfs) path(ref ModuleRef) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.paths[ref]
	if !ok {
		return "", errors.NotFound(errors.PhaseResolve, "module", fmt.Sprintf("0x%x", uint64(ref)))
	}
	return path, nil
}

func (p *procfs) BaseName(ref ModuleRef) (string, error) {
	path, err := p.path(ref)
	if err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

func (p *procfs) Symbol(ref ModuleRef, name string) (uint64, bool, error) {
	path, err := p.path(ref)
	if err != nil {
		return 0, false, err
	}
	tab, err := p.symtab(path)
	if err != nil {
		return 0, false, err
	}
	value, ok := tab.syms[name]
	if !ok {
		return 0, false, nil
	}
	return uint64(ref) - tab.loadBase + value, true, nil
}

// isObject reports whether a mapped file is an ELF object. A file that
// cannot be read counts when any of its mappings is executable. Must be
// called with p.mu held.
func (p *procfs) isObject(m mapping) bool {
	if ok, seen := p.objects[m.path]; seen {
		return ok
	}
	ok, err := isELF(p.rooted(m.path))
	if err != nil {
		ok, err = isELF(m.path)
	}
	if err != nil {
		ok = m.exec
	}
	p.objects[m.path] = ok
	return ok
}

// rooted names path through the process root so that paths stay valid
// across mount namespaces.
func (p *procfs) rooted(path string) string {
	return fmt.Sprintf("/proc/%d/root%s", p.pid, path)
}

func (p *procfs) symtab(path string) (*symtab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tab, ok := p.symtabs[path]; ok {
		return tab, nil
	}
	tab, err := readSymtab(p.rooted(path))
	if err != nil {
		tab, err = readSymtab(path)
	}
	if err != nil {
		return nil, err
	}
	p.symtabs[path] = tab
	return tab, nil
}

type mapping struct {
	path  string
	start uint64
	exec  bool
}

// parseMaps returns one entry per mapped file, at its lowest address. exec
// is set when any mapping of the file is executable.
func parseMaps(r io.Reader) ([]mapping, error) {
	var out []mapping
	seen := make(map[string]int)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		path := strings.Join(fields[5:], " ")
		path = strings.TrimSuffix(path, " (deleted)")
		if !strings.HasPrefix(path, "/") {
			continue
		}
		exec := strings.Contains(fields[1], "x")
		if i, dup := seen[path]; dup {
			out[i].exec = out[i].exec || exec
			continue
		}
		lo, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, errors.ParseFailed("maps entry "+strconv.Quote(fields[0]), err)
		}
		seen[path] = len(out)
		out = append(out, mapping{path: path, start: start, exec: exec})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindAddressResolution, err, "scan maps")
	}
	return out, nil
}

// symtab holds defined symbols of an ELF file and the page-aligned virtual
// address of its first loadable segment.
type symtab struct {
	syms     map[string]uint64
	loadBase uint64
}

// isELF reports whether the file at path starts with the ELF magic.
func isELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var magic [len(elf.ELFMAG)]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(magic[:], []byte(elf.ELFMAG)), nil
}

// readSymtab loads the symbols of an ELF file. A file that is not ELF has
// an empty table.
func readSymtab(path string) (*symtab, error) {
	obj, err := isELF(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindAddressResolution, err, "open "+path)
	}
	if !obj {
		return &symtab{syms: map[string]uint64{}}, nil
	}
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindAddressResolution, err, "open "+path)
	}
	defer f.Close()

	tab := &symtab{syms: make(map[string]uint64)}
	page := uint64(unix.Getpagesize())
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD {
			tab.loadBase = (prog.Vaddr - prog.Off) &^ (page - 1)
			break
		}
	}

	syms, err := f.DynamicSymbols()
	if err != nil || len(syms) == 0 {
		// Static executables carry no dynamic table.
		syms, _ = f.Symbols()
	}
	for _, s := range syms {
		if s.Section == elf.SHN_UNDEF || s.Value == 0 {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_LOOS: // STT_LOOS is STT_GNU_IFUNC
		default:
			continue
		}
		name := s.Name
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}
		if _, dup := tab.syms[name]; !dup {
			tab.syms[name] = s.Value
		}
	}
	return tab, nil
}
