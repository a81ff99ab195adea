// rite runs scripts and precompiled bytecode, compiles scripts to bytecode,
// and provides an interactive REPL.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/rite/cache"
	"github.com/chazu/rite/compiler"
	"github.com/chazu/rite/manifest"
	"github.com/chazu/rite/require"
	"github.com/chazu/rite/vm"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	eval      string
	compile   bool
	output    string
	strip     bool
	compress  bool
	disasm    bool
	verbose   int
	config    string
	noCache   bool
	repl      bool
	paths     []string
	stdinTerm bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("rite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.eval, "e", "", "Run the given source text")
	fs.BoolVar(&o.compile, "c", false, "Compile sources to bytecode instead of running them")
	fs.StringVar(&o.output, "o", "", "Output file for -c (default: source name with .mrb)")
	fs.BoolVar(&o.strip, "strip", false, "Omit debug info from compiled bytecode")
	fs.BoolVar(&o.compress, "z", false, "Compress compiled bytecode")
	fs.BoolVar(&o.disasm, "d", false, "Print disassembly instead of running")
	fs.IntVar(&o.verbose, "v", 0, "Log verbosity (0 = notices, 1 = info, 2 = debug)")
	fs.StringVar(&o.config, "config", "", "Directory to search for rite.toml (default: current directory)")
	fs.BoolVar(&o.noCache, "no-cache", false, "Disable the compiled-unit cache")
	fs.BoolVar(&o.repl, "i", false, "Start interactive REPL")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rite [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Runs source files (.rb) or precompiled bytecode (.mrb).\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  rite app.rb              # Run a script\n")
		fmt.Fprintf(stderr, "  rite -c -o app.mrb app.rb  # Compile to bytecode\n")
		fmt.Fprintf(stderr, "  rite app.mrb             # Run bytecode\n")
		fmt.Fprintf(stderr, "  rite -d app.rb           # Show disassembly\n")
		fmt.Fprintf(stderr, "  rite -e 'puts 1 + 1'     # Run source text\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.paths = fs.Args()
	if o.output != "" && (!o.compile || len(o.paths) != 1) {
		return nil, errors.New("-o requires -c and exactly one source file")
	}
	return o, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if f, ok := stdin.(*os.File); ok {
		o.stdinTerm = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	m, err := loadManifest(o.config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	commonlog.Configure(max(o.verbose, m.Log.Verbosity), m.LogFile())

	cfg := m.Require
	if o.strip {
		cfg.DebugInfo = false
	}
	if o.compress {
		cfg.Compress = true
	}
	loaderOpts := []require.Option{require.WithConfig(cfg)}
	if m.Cache.Enabled && !o.noCache && !o.compile {
		c, err := cache.Open(m.CachePath())
		if err != nil {
			fmt.Fprintf(stderr, "Warning: cache disabled: %v\n", err)
		} else {
			defer c.Close()
			loaderOpts = append(loaderOpts, require.WithCache(c))
		}
	}
	loader := require.NewLoader(loaderOpts...)

	switch {
	case o.compile:
		return compileFiles(loader, o, stdout, stderr)
	case o.disasm:
		return disassembleFiles(loader, o, stdout, stderr)
	}

	s, err := vm.Open(compiler.Prelude(), require.Gem(loader))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer s.Close()
	s.Stdout = stdout

	if o.eval != "" {
		if _, err := loader.LoadSource(s, o.eval, "-e"); err != nil {
			reportError(stderr, err)
			return 1
		}
	}
	for _, path := range o.paths {
		if err := runPath(loader, s, path); err != nil {
			reportError(stderr, err)
			return 1
		}
	}

	if o.repl || (o.eval == "" && len(o.paths) == 0) {
		if o.repl || o.stdinTerm {
			runREPL(loader, s, stdin, stdout)
			return 0
		}
		src, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error: reading stdin: %v\n", err)
			return 1
		}
		if _, err := loader.LoadSource(s, string(src), "-"); err != nil {
			reportError(stderr, err)
			return 1
		}
	}
	return 0
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// isBytecode reports whether path holds a dump rather than source text.
func isBytecode(path string) bool {
	if strings.HasSuffix(path, ".mrb") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(vm.RiteIdent))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, vm.RiteIdent[:])
}

func runPath(loader *require.Loader, s *vm.State, path string) error {
	if isBytecode(path) {
		_, err := loader.LoadFile(s, path)
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return s.RaiseWithCause(s.LoadErrorClass, "can't open file -- "+path, err)
	}
	_, err = loader.LoadSource(s, string(src), path)
	return err
}

func compileFiles(loader *require.Loader, o *options, stdout, stderr io.Writer) int {
	if len(o.paths) == 0 {
		fmt.Fprintln(stderr, "Error: -c needs at least one source file")
		return 2
	}
	for _, path := range o.paths {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		var buf bytes.Buffer
		if err := loader.Compile(string(src), path, &buf); err != nil {
			reportError(stderr, err)
			return 1
		}
		out := o.output
		if out == "" {
			out = strings.TrimSuffix(path, filepath.Ext(path)) + ".mrb"
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if o.verbose > 0 {
			fmt.Fprintf(stdout, "%s -> %s (%d bytes)\n", path, out, buf.Len())
		}
	}
	return 0
}

func disassembleFiles(loader *require.Loader, o *options, stdout, stderr io.Writer) int {
	s, err := vm.Open()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer s.Close()

	sources := o.paths
	if o.eval != "" {
		sources = append([]string{""}, sources...)
	}
	for _, path := range sources {
		var data []byte
		switch {
		case path == "":
			var buf bytes.Buffer
			if err := loader.Compile(o.eval, "-e", &buf); err != nil {
				reportError(stderr, err)
				return 1
			}
			data = buf.Bytes()
		case isBytecode(path):
			if data, err = os.ReadFile(path); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		default:
			src, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			var buf bytes.Buffer
			if err := loader.Compile(string(src), path, &buf); err != nil {
				reportError(stderr, err)
				return 1
			}
			data = buf.Bytes()
		}

		first, err := vm.ReadIrepBytes(s, data)
		if err != nil {
			reportError(stderr, err)
			return 1
		}
		for i := first; i < s.Codes.Len(); i++ {
			fmt.Fprintln(stdout, vm.Disassemble(s.Codes.At(i)))
		}
	}
	return 0
}

func reportError(w io.Writer, err error) {
	if exc, ok := vm.AsException(err); ok {
		fmt.Fprintln(w, exc.FullMessage())
		if exc.Cause != nil {
			if inner, ok := vm.AsException(exc.Cause); ok {
				fmt.Fprintf(w, "caused by: %s\n", inner.FullMessage())
			}
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
