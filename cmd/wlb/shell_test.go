package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/memory"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/types"
)

const testLayouts = `structs:
  - name: POINT
    fields:
      - {name: x, offset: 0, type: u32}
      - {name: y, offset: 4, type: u32}
`

func newTestShell(t *testing.T, args *[][]uint64) *shell {
	t.Helper()
	var thunks invoke.Table
	for i := range thunks {
		thunks[i] = func(_ uintptr, a []uint64) int64 {
			*args = append(*args, append([]uint64(nil), a...))
			return 42
		}
	}
	layouts, err := types.LoadLayouts(strings.NewReader(testLayouts))
	if err != nil {
		t.Fatal(err)
	}
	proc := process.New(process.NewFake(5,
		process.FakeModule{Name: "user32.dll", Symbols: map[string]uint64{"MessageBoxA": 0x2000}},
		process.FakeModule{Name: "libc.so.6", Symbols: map[string]uint64{"puts": 0x3000}},
	), process.AccessAll)
	bc, err := bridge.New(bridge.WithProcess(proc), bridge.WithThunks(thunks), bridge.WithLayouts(layouts))
	if err != nil {
		t.Fatal(err)
	}
	return newShell(bc)
}

func TestShell_Commands(t *testing.T) {
	var args [][]uint64
	sh := newTestShell(t, &args)

	tests := []struct {
		line string
		want string
	}{
		{"modules", "user32.dll"},
		{"m USER32", "user32.dll @ 0x1"},
		{"m libc", "libc.so.6 @ 0x2"},
		{"find puts", "libc.so.6"},
		{"find nothing", "no module exports nothing"},
		{"sym libc puts", "puts = 0x3000"},
		{"layouts", "POINT"},
		{"layout POINT", "POINT (8 bytes)"},
		{"help", "peek64 <addr>"},
	}
	for _, tt := range tests {
		out, err := sh.exec(tt.line)
		if err != nil {
			t.Errorf("%s: %v", tt.line, err)
			continue
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("%s: output %q, want %q", tt.line, out, tt.want)
		}
	}
}

func TestShell_Call(t *testing.T) {
	var args [][]uint64
	sh := newTestShell(t, &args)

	out, err := sh.exec(`call user32 MessageBoxA 0 "hello world" 0x10 -1`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "42 (0x2a)" {
		t.Fatalf("output %q", out)
	}
	if len(args) != 1 || len(args[0]) != 4 {
		t.Fatalf("calls %v", args)
	}
	got := args[0]
	if got[0] != 0 || got[2] != 0x10 || got[3] != ^uint64(0) {
		t.Errorf("args %v", got)
	}
	if got[1] == 0 {
		t.Error("string argument passed as null")
	}
}

func TestShell_Errors(t *testing.T) {
	var args [][]uint64
	sh := newTestShell(t, &args)

	for _, line := range []string{
		"bogus",
		"m",
		"m kernel32",
		"sym libc missing",
		`call libc puts "unterminated`,
		"call libc puts notanumber",
		`call libc puts "a\x00b"`,
		"call libc puts 1 2 3 4 5 6 7 8",
		"peek8 0",
		"poke8 0x10 0x100",
		"layout NOPE",
	} {
		if _, err := sh.exec(line); err == nil {
			t.Errorf("%s: expected an error", line)
		}
	}
	if len(args) != 0 {
		t.Fatalf("native calls made: %v", args)
	}
}

func TestShell_RemoteProcess(t *testing.T) {
	var args [][]uint64
	var thunks invoke.Table
	for i := range thunks {
		thunks[i] = func(_ uintptr, a []uint64) int64 {
			args = append(args, a)
			return 0
		}
	}
	proc := process.NewRemote(process.NewFake(4242,
		process.FakeModule{Name: "libc.so.6", Symbols: map[string]uint64{"puts": 0x3000}},
	), process.AccessAll)
	bc, err := bridge.New(bridge.WithProcess(proc), bridge.WithThunks(thunks))
	if err != nil {
		t.Fatal(err)
	}
	sh := newShell(bc)

	out, err := sh.exec("sym libc puts")
	if err != nil || out != "puts = 0x3000" {
		t.Fatalf("sym: %q, %v", out, err)
	}
	for _, line := range []string{"call libc puts 1", "peek8 0x3000", "poke8 0x3000 1"} {
		if _, err := sh.exec(line); err == nil {
			t.Errorf("%s: expected an error", line)
		}
	}
	if len(args) != 0 {
		t.Fatalf("native calls made: %v", args)
	}
}

func TestShell_PeekPoke(t *testing.T) {
	var args [][]uint64
	sh := newTestShell(t, &args)

	buf, err := memory.NewBuf(8)
	if err != nil {
		t.Fatal(err)
	}
	addr := fmt.Sprintf("%#x", buf.Addr())

	if _, err := sh.exec("poke32 " + addr + " 0xcafebabe"); err != nil {
		t.Fatal(err)
	}
	out, err := sh.exec("peek32 " + addr)
	if err != nil {
		t.Fatal(err)
	}
	if out != "0xcafebabe" {
		t.Fatalf("peek32 = %s", out)
	}
	out, _ = sh.exec("peek8 " + addr)
	if out != "0xbe" {
		t.Fatalf("peek8 = %s", out)
	}
	out, _ = sh.exec("peek64 " + addr)
	if out != "0x00000000cafebabe" {
		t.Fatalf("peek64 = %s", out)
	}
}

func TestSplitArgs(t *testing.T) {
	words, err := splitArgs(`  call  libc puts "a \"quoted\" word"	7 `)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"call", "libc", "puts", `"a \"quoted\" word"`, "7"}
	if strings.Join(words, "|") != strings.Join(want, "|") {
		t.Fatalf("words %q", words)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlb.toml")
	doc := `script = "guest.wasm"
layouts = "layouts.yaml"
log_level = "debug"
args = ["-v"]

[env]
HOME = "/tmp"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Script != "guest.wasm" || cfg.Layouts != "layouts.yaml" || cfg.LogLevel != "debug" {
		t.Fatalf("config %+v", cfg)
	}
	if len(cfg.Args) != 1 || cfg.Env["HOME"] != "/tmp" {
		t.Fatalf("config %+v", cfg)
	}
	if _, err := cfg.Logger(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("scrpt = \"x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty config validated")
	}
	cfg.Interactive = true
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.Script = filepath.Join(t.TempDir(), "missing.wasm")
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing script validated")
	}
	bad := DefaultConfig()
	bad.LogLevel = "loud"
	if _, err := bad.Logger(); err == nil {
		t.Fatal("bad log level accepted")
	}
}
