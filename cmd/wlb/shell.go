package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/value"
)

// shell executes one-line bridge commands for the interactive mode.
type shell struct {
	bc       *bridge.Context
	commands map[string]command
}

type command struct {
	run   func(args []string) (string, error)
	usage string
	help  string
	argc  int
}

func newShell(bc *bridge.Context) *shell {
	s := &shell{bc: bc}
	s.commands = map[string]command{
		"help":    {run: s.help, usage: "help", help: "list commands"},
		"modules": {run: s.modules, usage: "modules", help: "list loaded modules"},
		"m":       {run: s.module, usage: "m <name>", help: "resolve a module", argc: 1},
		"find":    {run: s.find, usage: "find <symbol>", help: "list modules exporting a symbol", argc: 1},
		"sym":     {run: s.symbol, usage: "sym <module> <symbol>", help: "resolve a function address", argc: 2},
		"call": {run: s.call, usage: `call <module> <symbol> [args]`, argc: 2,
			help: `call a function; args are integers or "quoted strings"`},
		"layouts": {run: s.layouts, usage: "layouts", help: "list struct layouts"},
		"layout":  {run: s.layout, usage: "layout <name>", help: "show a struct layout", argc: 1},
		"host":    {run: s.host, usage: "host", help: "show computer and user name"},
	}
	for _, bits := range []int{8, 16, 32, 64} {
		s.commands[fmt.Sprintf("peek%d", bits)] = command{
			run:   s.peek(bits),
			usage: fmt.Sprintf("peek%d <addr>", bits),
			help:  fmt.Sprintf("read %d bits at an address", bits),
			argc:  1,
		}
		s.commands[fmt.Sprintf("poke%d", bits)] = command{
			run:   s.poke(bits),
			usage: fmt.Sprintf("poke%d <addr> <value>", bits),
			help:  fmt.Sprintf("write %d bits at an address", bits),
			argc:  2,
		}
	}
	return s
}

// exec runs one command line and returns its output.
func (s *shell) exec(line string) (string, error) {
	words, err := splitArgs(line)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", nil
	}
	cmd, ok := s.commands[words[0]]
	if !ok {
		return "", fmt.Errorf("unknown command %q (try help)", words[0])
	}
	args := words[1:]
	if len(args) < cmd.argc {
		return "", fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(args)
}

func (s *shell) names() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *shell) help([]string) (string, error) {
	var b strings.Builder
	for _, name := range s.names() {
		c := s.commands[name]
		fmt.Fprintf(&b, "%-28s %s\n", c.usage, c.help)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *shell) modules([]string) (string, error) {
	mods, err := s.bc.Process().Modules()
	if err != nil {
		return "", err
	}
	lines := make([]string, len(mods))
	for i, m := range mods {
		lines[i] = fmt.Sprintf("0x%016x  %s", uint64(m.Ref()), m.BaseName())
	}
	return strings.Join(lines, "\n"), nil
}

func (s *shell) module(args []string) (string, error) {
	m, err := s.bc.Module(args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s @ 0x%x", m.BaseName(), m.Base()), nil
}

func (s *shell) find(args []string) (string, error) {
	names, err := s.bc.FindFunctionModules(args[0])
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "no module exports " + args[0], nil
	}
	return strings.Join(names, "\n"), nil
}

func (s *shell) function(module, symbol string) (*bridge.Function, error) {
	m, err := s.bc.Module(module)
	if err != nil {
		return nil, err
	}
	return m.F(symbol)
}

func (s *shell) symbol(args []string) (string, error) {
	fn, err := s.function(args[0], args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = 0x%x", fn.Name(), fn.Address()), nil
}

func (s *shell) call(args []string) (string, error) {
	fn, err := s.function(args[0], args[1])
	if err != nil {
		return "", err
	}

	vals := make([]*value.Value, 0, len(args)-2)
	defer func() {
		for _, v := range vals {
			v.Release()
		}
	}()
	for _, a := range args[2:] {
		v, err := parseValue(a)
		if err != nil {
			return "", err
		}
		vals = append(vals, v)
	}

	r, err := fn.Call(vals...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d (0x%x)", r, uint64(r)), nil
}

func (s *shell) layouts([]string) (string, error) {
	names := s.bc.Layouts().SortedNames()
	if len(names) == 0 {
		return "no layouts loaded", nil
	}
	return strings.Join(names, "\n"), nil
}

func (s *shell) layout(args []string) (string, error) {
	st, ok := s.bc.Layouts().Lookup(args[0])
	if !ok {
		return "", fmt.Errorf("no layout %q", args[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d bytes)", st, st.Size())
	for _, f := range st.Fields() {
		fmt.Fprintf(&b, "\n  %4d  %-16s %s", f.Offset, f.Name, f.Type)
	}
	return b.String(), nil
}

func (s *shell) host([]string) (string, error) {
	computer, err := process.ComputerName()
	if err != nil {
		return "", err
	}
	user, err := process.UserName()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("computer %s\nuser     %s", computer, user), nil
}

func (s *shell) peek(bits int) func([]string) (string, error) {
	return func(args []string) (string, error) {
		if err := s.bc.RawAccess(); err != nil {
			return "", err
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return "", err
		}
		var v uint64
		switch bits {
		case 8:
			v = uint64(s.bc.Peek8(addr))
		case 16:
			v = uint64(s.bc.Peek16(addr))
		case 32:
			v = uint64(s.bc.Peek32(addr))
		default:
			v = s.bc.Peek64(addr)
		}
		return fmt.Sprintf("0x%0*x", bits/4, v), nil
	}
}

func (s *shell) poke(bits int) func([]string) (string, error) {
	return func(args []string) (string, error) {
		if err := s.bc.RawAccess(); err != nil {
			return "", err
		}
		addr, err := parseAddr(args[0])
		if err != nil {
			return "", err
		}
		v, err := strconv.ParseUint(args[1], 0, bits)
		if err != nil {
			return "", fmt.Errorf("value: %w", err)
		}
		switch bits {
		case 8:
			s.bc.Poke8(addr, uint8(v))
		case 16:
			s.bc.Poke16(addr, uint16(v))
		case 32:
			s.bc.Poke32(addr, uint32(v))
		default:
			s.bc.Poke64(addr, v)
		}
		return "ok", nil
	}
}

func parseAddr(s string) (uint64, error) {
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("address: %w", err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("address: null")
	}
	return addr, nil
}

// parseValue turns a shell word into a call argument: a quoted string
// becomes a pointer to a CString, anything else a u64.
func parseValue(word string) (*value.Value, error) {
	if strings.HasPrefix(word, `"`) {
		text, err := strconv.Unquote(word)
		if err != nil {
			return nil, fmt.Errorf("string %s: %w", word, err)
		}
		cs, err := value.NewCString(text)
		if err != nil {
			return nil, err
		}
		return value.NewPointer(cs), nil
	}
	if strings.HasPrefix(word, "-") {
		n, err := strconv.ParseInt(word, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", word, err)
		}
		return value.NewU64(uint64(n)), nil
	}
	n, err := strconv.ParseUint(word, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("argument %s: %w", word, err)
	}
	return value.NewU64(n), nil
}

// splitArgs splits a line on spaces, keeping double-quoted strings (with Go
// escapes) together and quoted.
func splitArgs(line string) ([]string, error) {
	var words []string
	rest := strings.TrimSpace(line)
	for rest != "" {
		if rest[0] == '"' {
			q, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unterminated string")
			}
			words = append(words, q)
			rest = strings.TrimLeft(rest[len(q):], " \t")
			continue
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		words = append(words, rest[:end])
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	return words, nil
}
