package symtab

import (
	"github.com/go-kit/log"

	"github.com/crashkit/symres/symtab/rangemap"
)

// Function is one FUNC record together with the line records attached to it.
// A Module exclusively owns its Functions; a Function exclusively owns its
// lines.
type Function struct {
	Name    string
	Address uint64
	Size    uint64

	lines rangemap.RangeMap[lineRecord]
}

// lineRecord is one source line record within a function. The caller of the
// dumping tool expects line ranges to fall inside their function's range,
// but that is not enforced here.
type lineRecord struct {
	address uint64
	size    uint64
	file    int
	line    int
}

// ModuleOptions configures symbol loading for one module.
type ModuleOptions struct {
	Metrics *Metrics       // may be nil for tests
	Symbols *SymbolOptions // may be nil to keep names verbatim
}

// Module is the symbol table of one loaded binary: the source file table,
// the function ranges, and one contained range map of unwind records per
// stack info type.
type Module struct {
	name      string
	files     map[int]string
	functions rangemap.RangeMap[*Function]
	stackInfo [stackInfoLast]rangemap.ContainedRangeMap[StackFrameInfo]

	logger  log.Logger
	options ModuleOptions
}

// NewModule returns an empty symbol table for the named binary. Populate it
// with LoadFile or Load before looking anything up.
func NewModule(logger log.Logger, name string, options ModuleOptions) *Module {
	return &Module{
		name:    name,
		files:   make(map[int]string),
		logger:  logger,
		options: options,
	}
}

// Name returns the module name the table was created with.
func (m *Module) Name() string {
	return m.name
}

// LookupAddress resolves a module-relative address, writing the function
// name and source line into frame and, when frameInfo is non-nil, the best
// matching unwind record into frameInfo. Fields whose lookup misses are
// left untouched; frameInfo.Valid reports whether it was filled.
func (m *Module) LookupAddress(address uint64, frame *StackFrame, frameInfo *StackFrameInfo) {
	if frameInfo != nil {
		// Probe unwind records before any early return. Frame-data records
		// carry the most detail, then FPO, then standard.
		if info, ok := m.stackInfo[stackInfoFrameData].Retrieve(address); ok {
			*frameInfo = info
		} else if info, ok := m.stackInfo[stackInfoFPO].Retrieve(address); ok {
			*frameInfo = info
		} else if info, ok := m.stackInfo[stackInfoStandard].Retrieve(address); ok {
			*frameInfo = info
		}
	}

	fn, ok := m.functions.Retrieve(address)
	if !ok {
		return
	}
	frame.FunctionName = fn.Name

	ln, ok := fn.lines.Retrieve(address)
	if !ok {
		return
	}
	if name, ok := m.files[ln.file]; ok {
		frame.SourceFileName = name
	}
	// A line record may name a file id the symbol file never declared. The
	// line number is still trustworthy, so it is set either way.
	frame.SourceLine = ln.line
}
