// Command symres symbolizes crash traces offline. A trace is line-oriented:
//
//	MODULE <name> <base-hex> [<debug-id>]
//	FRAME <module-name> <address-hex>
//
// MODULE lines declare a loaded binary and its load base; symres looks the
// binary's symbol file up in the symbol store and loads it. FRAME lines are
// rewritten with function name and source location; every other line passes
// through untouched.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/crashkit/symres/symtab"
	"github.com/crashkit/symres/symtab/supplier"
)

func main() {
	var (
		symbolsDir    = flag.String("symbols", "symbols", "root directory of the symbol store")
		demangleNames = flag.Bool("demangle", false, "demangle C++ function names")
		verbose       = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	var symbols *symtab.SymbolOptions
	if *demangleNames {
		symbols = &symtab.SymbolOptions{DemangleOptions: symtab.DemangleFull}
	}
	resolver := symtab.NewResolver(logger, symtab.ResolverOptions{Symbols: symbols})
	store, err := supplier.New(logger, *symbolsDir, supplier.Options{})
	if err != nil {
		level.Error(logger).Log("msg", "create symbol supplier", "err", err)
		os.Exit(1)
	}

	s := &symbolizer{
		logger:   logger,
		resolver: resolver,
		store:    store,
		bases:    make(map[string]uint64),
	}

	if flag.NArg() == 0 {
		if err := s.transform(os.Stdin, os.Stdout); err != nil {
			level.Error(logger).Log("msg", "symbolize stdin", "err", err)
			os.Exit(1)
		}
		return
	}
	for _, path := range flag.Args() {
		if err := s.transformFile(path); err != nil {
			level.Error(logger).Log("msg", "symbolize trace", "f", path, "err", err)
			os.Exit(1)
		}
	}
}

type symbolizer struct {
	logger   log.Logger
	resolver *symtab.Resolver
	store    *supplier.Supplier
	bases    map[string]uint64
}

func (s *symbolizer) transformFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.transform(f, os.Stdout)
}

func (s *symbolizer) transform(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		switch {
		case len(fields) >= 3 && fields[0] == "MODULE":
			s.loadModule(fields[1:])
			fmt.Fprintln(w, line)
		case len(fields) == 3 && fields[0] == "FRAME":
			fmt.Fprintln(w, s.formatFrame(fields[1], fields[2]))
		default:
			fmt.Fprintln(w, line)
		}
	}
	return scanner.Err()
}

func (s *symbolizer) loadModule(fields []string) {
	name := fields[0]
	base, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
	if err != nil {
		level.Warn(s.logger).Log("msg", "bad module base", "module", name, "base", fields[1])
		return
	}
	s.bases[name] = base

	if s.resolver.HasModule(name) {
		return
	}
	var debugID string
	if len(fields) > 2 {
		debugID = fields[2]
	}
	path, err := s.store.FindSymbolFile(name, debugID)
	if err != nil {
		level.Debug(s.logger).Log("msg", "module stays unsymbolized", "module", name, "err", err)
		return
	}
	if err := s.resolver.LoadModule(name, path); err != nil {
		level.Warn(s.logger).Log("msg", "failed to load symbols", "module", name, "f", path, "err", err)
	}
}

func (s *symbolizer) formatFrame(module, addr string) string {
	address, err := strconv.ParseUint(strings.TrimPrefix(addr, "0x"), 16, 64)
	if err != nil {
		return fmt.Sprintf("FRAME %s %s", module, addr)
	}
	frame := symtab.StackFrame{
		ModuleName:  module,
		ModuleBase:  s.bases[module],
		Instruction: address,
	}
	s.resolver.FillSourceLineInfo(&frame, nil)
	switch {
	case frame.FunctionName == "":
		return fmt.Sprintf("0x%016x %s + 0x%x", address, module, frame.ModuleAddress())
	case frame.SourceFileName == "":
		return fmt.Sprintf("0x%016x %s!%s", address, module, frame.FunctionName)
	default:
		return fmt.Sprintf("0x%016x %s!%s [%s:%d]",
			address, module, frame.FunctionName, frame.SourceFileName, frame.SourceLine)
	}
}
