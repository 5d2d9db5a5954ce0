// Command x64cc drives the backend (SSA construction through x86-64
// encoding) over an in-process demo program, since this repo stops at the
// type-checked AST boundary and implements no lexer, parser, or type
// checker of its own.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/x64cc/x64cc/internal/compile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "x64cc: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cc := flag.String("cc", "sysv", "Calling convention: sysv or mswin")
	optimize := flag.Bool("optimize", true, "Allow minimal or no stack frames instead of forcing full ones")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	quiet := flag.Bool("quiet", false, "Suppress the per-function progress bar")
	targetConfig := flag.String("target-config", "", "Optional YAML file overriding -cc/-optimize")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compiles a built-in demo program to a Generic Object File and prints its contents.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	tcfg, err := loadTargetConfig(*targetConfig)
	if err != nil {
		return err
	}
	ccName := *cc
	if tcfg.CallConvention != "" {
		ccName = tcfg.CallConvention
	}
	optimizeVal := *optimize
	if tcfg.Optimize != nil {
		optimizeVal = *tcfg.Optimize
	}

	conv, err := parseCallConvention(ccName)
	if err != nil {
		return err
	}

	prog := demoProgram()

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(int64(len(prog.Functions)))
		defer bar.Close()
	}

	cfg := compile.Config{
		CallConvention: conv,
		Optimize:       optimizeVal,
		Verbose:        *verbose,
	}
	if bar != nil {
		cfg.Progress = func(done, total int, name string) {
			bar.Set(done)
		}
	}

	o, err := compile.Compile(prog, cfg)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	fmt.Fprint(os.Stdout, o.String())
	return nil
}

func parseCallConvention(s string) (compile.CallConvention, error) {
	switch s {
	case "sysv":
		return compile.SystemV, nil
	case "mswin":
		return compile.MicrosoftX64, nil
	default:
		return 0, fmt.Errorf("unknown calling convention %q (want sysv or mswin)", s)
	}
}
