// Package require loads code into a running interpreter, either from
// source text or from a precompiled bytecode file.
//
// Source is compiled in a separate, disposable interpreter so that neither
// a failed compilation nor the compiler's own bookkeeping is visible to the
// caller. The compiled unit travels to the caller's interpreter through a
// transient file, is rewritten so that it returns instead of halting, and
// is then executed at top level.
package require

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chazu/rite/cache"
	"github.com/chazu/rite/compiler"
	"github.com/chazu/rite/manifest"
	"github.com/chazu/rite/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// Loader compiles and loads code. A Loader holds no interpreter state of its
// own and may be shared; each interpreter passed to it must still be used
// from one goroutine at a time (see Worker).
type Loader struct {
	config      manifest.RequireConfig
	cache       *cache.Cache
	newCompiler func() (*vm.State, error)
	log         commonlog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithConfig sets the [require] configuration.
func WithConfig(c manifest.RequireConfig) Option {
	return func(l *Loader) { l.config = c }
}

// WithCache enables the compiled-unit cache for LoadSource.
func WithCache(c *cache.Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithCompilerFactory replaces the constructor of the disposable compiler
// instance. The Loader closes every instance it obtains.
func WithCompilerFactory(f func() (*vm.State, error)) Option {
	return func(l *Loader) { l.newCompiler = f }
}

// NewLoader creates a Loader with the default configuration, modified by opts.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		config:      manifest.Default().Require,
		newCompiler: defaultCompiler,
		log:         commonlog.GetLogger("rite.require"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func defaultCompiler() (*vm.State, error) {
	return vm.Open(compiler.Prelude())
}

// DumpFlags returns the serializer flags used for compiled source.
func (l *Loader) DumpFlags() uint16 {
	var flags uint16
	if l.config.DebugInfo {
		flags |= vm.DumpFlagDebugInfo
	}
	if l.config.Compress {
		flags |= vm.DumpFlagCompressed
	}
	return flags
}

// ---------------------------------------------------------------------------
// Compiling
// ---------------------------------------------------------------------------

// Compile compiles source in a fresh interpreter and writes the resulting
// unit tree to w. The interpreter is closed before Compile returns, whether
// or not compilation succeeded. path is used only for diagnostics and debug
// info.
func (l *Loader) Compile(source, path string, w io.Writer) error {
	if path == "" {
		path = compiler.DefaultFilename
	}

	mrb, err := l.newCompiler()
	if err != nil {
		return fmt.Errorf("opening compiler instance: %w", err)
	}
	defer mrb.Close()

	ctx := &compiler.Context{
		Filename: path,
		NoExec:   true,
		NoDebug:  !l.config.DebugInfo,
	}

	before := mrb.Codes.Len()
	n, err := compiler.Load(mrb, source, ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("compiler produced no code")
	}

	// Hide the prelude and anything else compiled earlier so the dump holds
	// only the new tree.
	restore := mrb.Codes.Narrow(before, n)
	defer restore()

	return vm.DumpIrep(mrb, 0, l.DumpFlags(), w)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadSource compiles source and runs it in s at top level. It returns true
// on success; every failure is returned as an error, usually a raised
// *vm.RException. An empty path is reported as "-".
func (l *Loader) LoadSource(s *vm.State, source, path string) (bool, error) {
	if s.Closed() {
		return false, errors.New("require: state is closed")
	}
	if path == "" {
		path = compiler.DefaultFilename
	}
	op := uuid.NewString()
	l.log.Debugf("[%s] load source %s (%d bytes)", op, path, len(source))

	var key cache.Key
	if l.cache != nil {
		key = cache.KeyFor(string(vm.RiteVersion[:]), l.DumpFlags(), path, source)
		if idx, ok := l.loadCached(s, op, key); ok {
			return l.finishLoad(s, op, path, idx, nil)
		}
	}

	f, err := newTransient(l.config.TmpDir)
	if err != nil {
		return false, s.RaiseWithCause(s.SystemCallErrorClass,
			fmt.Sprintf("cannot create temporary file: %v", err), err)
	}
	l.log.Debugf("[%s] transient %s", op, f.Name())
	release := sync.OnceFunc(func() {
		if err := f.Release(); err != nil {
			l.log.Warningf("[%s] releasing %s: %s", op, f.Name(), err)
		}
	})
	defer release()

	var w io.Writer = f
	var blob bytes.Buffer
	if l.cache != nil {
		w = io.MultiWriter(f, &blob)
	}
	if err := l.Compile(source, path, w); err != nil {
		l.log.Debugf("[%s] compile failed: %s", op, err)
		return false, s.RaiseWithCause(s.LoadErrorClass, "can't load file -- "+path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, s.RaiseWithCause(s.SystemCallErrorClass,
			fmt.Sprintf("cannot rewind %s: %v", f.Name(), err), err)
	}
	idx, err := vm.ReadIrep(s, f)
	// the unit may load others while it runs; it no longer needs the file
	release()
	if err == nil && l.cache != nil {
		if err := l.cache.Put(key, path, blob.Bytes()); err != nil {
			l.log.Warningf("[%s] cache store: %s", op, err)
		}
	}
	return l.finishLoad(s, op, path, idx, err)
}

// loadCached reads a cached unit into s. A stale or corrupt entry is
// dropped and leaves s as it was.
func (l *Loader) loadCached(s *vm.State, op string, key cache.Key) (int, bool) {
	blob, ok, err := l.cache.Get(key)
	if err != nil {
		l.log.Warningf("[%s] cache lookup: %s", op, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}

	pending := s.Exc
	idx, err := vm.ReadIrepBytes(s, blob)
	if err != nil {
		s.Exc = pending
		l.log.Warningf("[%s] dropping unreadable cache entry %s: %s", op, key, err)
		if err := l.cache.Delete(key); err != nil {
			l.log.Warningf("[%s] cache delete: %s", op, err)
		}
		return 0, false
	}
	l.log.Debugf("[%s] loaded from cache %s", op, key)
	return idx, true
}

// LoadFile reads a precompiled bytecode file and runs it in s at top level.
func (l *Loader) LoadFile(s *vm.State, path string) (bool, error) {
	if s.Closed() {
		return false, errors.New("require: state is closed")
	}
	op := uuid.NewString()
	l.log.Debugf("[%s] load file %s", op, path)

	f, err := os.Open(path)
	if err != nil {
		return false, s.RaiseWithCause(s.LoadErrorClass, "can't open file -- "+path, err)
	}
	defer f.Close()

	idx, err := vm.ReadIrep(s, f)
	return l.finishLoad(s, op, path, idx, err)
}

// finishLoad turns the outcome of reading a dump into the result of a load.
// An exception already recorded by the reader is raised as is; any other
// read failure becomes a LoadError naming path.
func (l *Loader) finishLoad(s *vm.State, op, path string, idx int, err error) (bool, error) {
	if err != nil {
		l.log.Debugf("[%s] read failed (%s): %s", op, vm.StatusOf(err), err)
		if exc, ok := vm.AsException(err); ok {
			return false, s.RaiseException(exc)
		}
		return false, s.RaiseWithCause(s.LoadErrorClass, "can't load file -- "+path, err)
	}

	l.log.Debugf("[%s] executing unit %d", op, idx)
	if _, err := EvalIrep(s, idx); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Executing
// ---------------------------------------------------------------------------

// EvalIrep runs unit idx of s as a top-level definition block: self is the
// top-level object and methods it defines go to Object. A trailing STOP is
// rewritten first so the unit returns to its caller.
func EvalIrep(s *vm.State, idx int) (vm.Value, error) {
	irep := s.Codes.At(idx)
	if irep == nil {
		return vm.Nil, fmt.Errorf("require: no unit at index %d", idx)
	}
	ReplaceStopWithReturn(irep)
	p := s.NewProc(irep, s.ObjectClass)

	ai := s.ArenaSave()
	defer s.ArenaRestore(ai)
	return s.Yield(p, nil, s.TopSelf, s.ObjectClass)
}
