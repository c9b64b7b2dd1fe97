// Package symtab resolves crash addresses against symbol tables loaded
// from text symbol files: given a module name and an instruction address,
// it recovers the enclosing function, source file and line, and the
// stack-unwind record covering the address.
//
// A Resolver owns one Module per loaded binary. The intended use is a load
// phase followed by a lookup phase, one frame at a time; nothing here
// locks, so callers sharing a Resolver across goroutines must serialize.
package symtab

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-kit/log"
)

// Resolver maps module names to their symbol tables and answers frame
// lookups for a crash-processing pipeline.
type Resolver struct {
	logger  log.Logger
	options ResolverOptions
	modules map[string]*Module
}

type ResolverOptions struct {
	Metrics *Metrics       // may be nil for tests
	Symbols *SymbolOptions // may be nil to keep names verbatim
}

func NewResolver(logger log.Logger, options ResolverOptions) *Resolver {
	return &Resolver{
		logger:  logger,
		options: options,
		modules: make(map[string]*Module),
	}
}

// LoadModule parses the symbol file at path and registers it under name.
// A name can only be loaded once; there is no unload. When loading fails
// nothing is registered: the module either becomes fully queryable or
// stays entirely absent.
func (r *Resolver) LoadModule(name, path string) error {
	return r.loadModule(name, func(m *Module) error { return m.LoadFile(path) })
}

// LoadModuleData is LoadModule for symbol data already in memory.
func (r *Resolver) LoadModuleData(name string, data []byte) error {
	return r.loadModule(name, func(m *Module) error { return m.LoadData(data) })
}

func (r *Resolver) loadModule(name string, load func(*Module) error) error {
	if _, ok := r.modules[name]; ok {
		return r.loadError(name, errModuleExists)
	}
	m := NewModule(r.logger, name, ModuleOptions{
		Metrics: r.options.Metrics,
		Symbols: r.options.Symbols,
	})
	if err := load(m); err != nil {
		return r.loadError(name, err)
	}
	r.modules[name] = m
	return nil
}

var errModuleExists = errors.New("module already loaded")

func (r *Resolver) loadError(name string, err error) error {
	if r.options.Metrics != nil {
		r.options.Metrics.LoadErrors.WithLabelValues(errorType(err)).Inc()
	}
	return fmt.Errorf("load module %q: %w", name, err)
}

// HasModule reports whether a module was successfully loaded under name.
func (r *Resolver) HasModule(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// FillSourceLineInfo symbolizes one frame in place. Frames referencing a
// module that was never loaded are left untouched; many frames point into
// binaries the caller chose not to symbolize, so that is not an error.
// When frameInfo is non-nil it receives the unwind record covering the
// address, if any, with Valid set.
func (r *Resolver) FillSourceLineInfo(frame *StackFrame, frameInfo *StackFrameInfo) {
	m, ok := r.modules[frame.ModuleName]
	if !ok {
		r.countFrame("unknown_module")
		return
	}
	m.LookupAddress(frame.ModuleAddress(), frame, frameInfo)
	if frame.FunctionName != "" {
		r.countFrame("function")
	} else {
		r.countFrame("unresolved")
	}
}

func (r *Resolver) countFrame(outcome string) {
	if r.options.Metrics != nil {
		r.options.Metrics.ResolvedFrames.WithLabelValues(outcome).Inc()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "ErrNotExist"
	case errors.Is(err, os.ErrPermission):
		return "ErrPermission"
	case errors.Is(err, errModuleExists):
		return "AlreadyLoaded"
	case errors.Is(err, errNoCurrentFunction),
		errors.Is(err, errBadLineNumber),
		errors.Is(err, errBadStackPlatform),
		errors.Is(err, errBadStackInfoType),
		errors.Is(err, errMissingTokens):
		return "Format"
	default:
		return "Other"
	}
}
