package symtab

// StackFrame carries one frame of a crash record through symbolication.
// The caller fills the module and instruction fields; FillSourceLineInfo
// fills the function and source fields, leaving them untouched when the
// address does not resolve.
type StackFrame struct {
	ModuleName  string
	ModuleBase  uint64
	Instruction uint64

	FunctionName   string
	SourceFileName string
	SourceLine     int
}

// ModuleAddress returns the instruction address relative to the module base.
func (f *StackFrame) ModuleAddress() uint64 {
	return f.Instruction - f.ModuleBase
}

// StackFrameInfo holds the stack-unwind metadata of one STACK WIN record.
// Valid reports whether a lookup actually filled the struct.
type StackFrameInfo struct {
	PrologSize        uint32
	EpilogSize        uint32
	ParameterSize     uint32
	SavedRegisterSize uint32
	LocalSize         uint32
	MaxStackSize      uint32
	Program           string
	Valid             bool
}

// Stack info record types, matching MS DIA's StackFrameTypeEnum. All are
// encoded the same way in the symbol file; they are kept in separate maps
// because ranges of different types may overlap.
const (
	stackInfoFPO = iota
	stackInfoTrap
	stackInfoTSS
	stackInfoStandard
	stackInfoFrameData
	stackInfoLast
)
