// Command wlb runs WASM guests against the native-call bridge, or opens an
// interactive shell over it.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wlb/bridge"
	"github.com/wippyai/wlb/invoke"
	"github.com/wippyai/wlb/process"
	"github.com/wippyai/wlb/types"
	"github.com/wippyai/wlb/wasmhost"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to TOML config file")
		script      = flag.String("script", "", "Path to WASM script")
		layoutsFile = flag.String("layouts", "", "Path to YAML struct layouts")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		pid         = flag.Int("pid", 0, "Resolve modules in this process instead of wlb itself (calls and memory access are refused)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "script":
			cfg.Script = *script
		case "layouts":
			cfg.Layouts = *layoutsFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "pid":
			cfg.PID = *pid
		case "i":
			cfg.Interactive = *interactive
		}
	})
	if cfg.Script == "" && flag.NArg() > 0 {
		cfg.Script = flag.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: wlb -script <file.wasm> [-layouts file.yaml] [-config wlb.toml]")
		fmt.Fprintln(os.Stderr, "       wlb -i  (interactive mode)")
		os.Exit(1)
	}

	code, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(cfg Config) (int, error) {
	log, err := cfg.Logger()
	if err != nil {
		return 1, err
	}
	defer func() { _ = log.Sync() }()
	invoke.SetLogger(log.Named("invoke"))

	bc, err := newBridge(cfg, log)
	if err != nil {
		return 1, err
	}
	defer bc.Process().Close()

	if cfg.Interactive {
		return 0, runInteractive(newShell(bc))
	}
	return runScript(context.Background(), cfg, bc)
}

func newBridge(cfg Config, log *zap.Logger) (*bridge.Context, error) {
	opts := []bridge.Option{bridge.WithLogger(log)}

	if cfg.Layouts != "" {
		f, err := os.Open(cfg.Layouts)
		if err != nil {
			return nil, fmt.Errorf("layouts: %w", err)
		}
		layouts, err := types.LoadLayouts(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("layouts %s: %w", cfg.Layouts, err)
		}
		log.Debug("layouts loaded", zap.Strings("names", layouts.SortedNames()))
		opts = append(opts, bridge.WithLayouts(layouts))
	}

	if cfg.PID != 0 {
		p, err := process.Open(cfg.PID)
		if err != nil {
			return nil, fmt.Errorf("open process %d: %w", cfg.PID, err)
		}
		log.Info("attached",
			zap.Int("pid", cfg.PID),
			zap.Stringer("access", p.Access()),
			zap.Bool("local", p.Local()))
		opts = append(opts, bridge.WithProcess(p))
	}

	bc, err := bridge.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}
	return bc, nil
}

// runScript instantiates the script with WASI and the wlb host module, which
// runs its _start. The guest's exit code is returned.
func runScript(ctx context.Context, cfg Config, bc *bridge.Context) (int, error) {
	data, err := os.ReadFile(cfg.Script)
	if err != nil {
		return 1, fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return 1, fmt.Errorf("register WASI: %w", err)
	}

	host := wasmhost.New(bc)
	defer host.Close()
	if _, err := host.Instantiate(ctx, r); err != nil {
		return 1, fmt.Errorf("register host module: %w", err)
	}

	compiled, err := r.CompileModule(ctx, data)
	if err != nil {
		return 1, fmt.Errorf("compile: %w", err)
	}

	mc := wazero.NewModuleConfig().
		WithName(cfg.Script).
		WithArgs(append([]string{cfg.Script}, cfg.Args...)...).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithSysWalltime().
		WithSysNanotime()
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		mc = mc.WithEnv(k, cfg.Env[k])
	}

	mod, err := r.InstantiateModule(ctx, compiled, mc)
	if err != nil {
		var exit *sys.ExitError
		if stderrors.As(err, &exit) {
			return int(exit.ExitCode()), nil
		}
		return 1, fmt.Errorf("run %s: %w", cfg.Script, err)
	}
	defer mod.Close(ctx)
	return 0, nil
}
