package symtab

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/ianlancetaylor/demangle"
	"github.com/klauspost/compress/gzip"
)

// Structural errors abort the whole load; the caller discards the module.
var (
	errNoCurrentFunction = errors.New("line record before any FUNC record")
	errBadLineNumber     = errors.New("non-positive line number")
	errBadStackPlatform  = errors.New("unsupported STACK platform")
	errBadStackInfoType  = errors.New("stack info type out of range")
	errMissingTokens     = errors.New("record is missing tokens")
)

// Symbol files are dumped one record per line; templated C++ names and
// unwind programs can make single records long.
const maxRecordLen = 1024 * 1024

// LoadFile reads the symbol file at path into the module. Gzip-compressed
// files are decompressed transparently. Returns a non-nil error on I/O
// failure or on the first structural format error; the module must then be
// discarded, not queried.
func (m *Module) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Load(f)
}

// LoadData parses symbol records from an in-memory buffer, with the same
// contract as LoadFile.
func (m *Module) LoadData(data []byte) error {
	return m.Load(bytes.NewReader(data))
}

// Load parses symbol records from r, with the same contract as LoadFile.
func (m *Module) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		return m.parse(gz)
	}
	return m.parse(br)
}

func (m *Module) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLen)

	// The only parser state is the most recently seen FUNC record; bare
	// line records attach to it.
	var cur *Function
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()
		switch {
		case strings.HasPrefix(text, "FILE "):
			m.parseFile(text)
		case strings.HasPrefix(text, "STACK "):
			if err := m.parseStackInfo(text); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		case strings.HasPrefix(text, "FUNC "):
			fn, err := m.parseFunction(text)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
			cur = fn
		default:
			if cur == nil {
				return fmt.Errorf("line %d: %w", lineNum, errNoCurrentFunction)
			}
			if err := m.parseLineRecord(text, cur); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read symbol file: %w", err)
	}
	return nil
}

// parseFile handles FILE <id> <name>. Malformed or negative-id records are
// skipped without failing the load; duplicate ids keep the first name.
func (m *Module) parseFile(text string) {
	tokens, ok := tokenize(text, 3)
	if !ok {
		return
	}
	id := parseInt(tokens[1])
	if id < 0 {
		return
	}
	if _, exists := m.files[id]; !exists {
		m.files[id] = tokens[2]
	}
}

// parseFunction handles FUNC <address> <size> <name>. The function becomes
// the attachment point for following line records even if its range
// conflicts with an already stored function; the conflicting store is
// dropped and the stored function keeps the address range.
func (m *Module) parseFunction(text string) (*Function, error) {
	tokens, ok := tokenize(text, 4)
	if !ok {
		return nil, fmt.Errorf("FUNC: %w", errMissingTokens)
	}
	name := tokens[3]
	if m.options.Symbols != nil && len(m.options.Symbols.DemangleOptions) > 0 {
		name = demangle.Filter(name, m.options.Symbols.DemangleOptions...)
	}
	fn := &Function{
		Name:    name,
		Address: parseHex(tokens[1]),
		Size:    parseHex(tokens[2]),
	}
	if !m.functions.Store(fn.Address, fn.Size, fn) {
		level.Debug(m.logger).Log("msg", "dropped overlapping FUNC record",
			"module", m.name, "name", fn.Name, "address", fn.Address, "size", fn.Size)
		if m.options.Metrics != nil {
			m.options.Metrics.DroppedRecords.WithLabelValues("func").Inc()
		}
	}
	return fn, nil
}

// parseLineRecord handles <address> <size> <line> <file_id> records.
func (m *Module) parseLineRecord(text string, cur *Function) error {
	tokens, ok := tokenize(text, 4)
	if !ok {
		return fmt.Errorf("line record: %w", errMissingTokens)
	}
	ln := lineRecord{
		address: parseHex(tokens[0]),
		size:    parseHex(tokens[1]),
		line:    parseInt(tokens[2]),
		file:    parseInt(tokens[3]),
	}
	if ln.line <= 0 {
		return errBadLineNumber
	}
	cur.lines.Store(ln.address, ln.size, ln)
	return nil
}

// parseStackInfo handles STACK WIN records. Only the WIN encoding is
// understood; anything else fails the load rather than being guessed at.
// A store rejected by the contained range map is dropped and loading
// continues: MSVC occasionally emits ranges that conflict only because
// prologue bytes are not excluded from them.
func (m *Module) parseStackInfo(text string) error {
	tokens, ok := tokenize(text, 12)
	if !ok {
		return fmt.Errorf("STACK: %w", errMissingTokens)
	}
	if tokens[1] != "WIN" {
		return fmt.Errorf("%w %q", errBadStackPlatform, tokens[1])
	}
	infoType := int(parseHex(tokens[2]))
	if infoType < 0 || infoType >= stackInfoLast {
		return fmt.Errorf("%w: %d", errBadStackInfoType, infoType)
	}
	rva := parseHex(tokens[3])
	codeSize := parseHex(tokens[4])
	info := StackFrameInfo{
		PrologSize:        uint32(parseHex(tokens[5])),
		EpilogSize:        uint32(parseHex(tokens[6])),
		ParameterSize:     uint32(parseHex(tokens[7])),
		SavedRegisterSize: uint32(parseHex(tokens[8])),
		LocalSize:         uint32(parseHex(tokens[9])),
		MaxStackSize:      uint32(parseHex(tokens[10])),
		Program:           tokens[11],
		Valid:             true,
	}
	if !m.stackInfo[infoType].Store(rva, codeSize, info) {
		level.Debug(m.logger).Log("msg", "dropped conflicting STACK record",
			"module", m.name, "type", infoType, "rva", rva, "size", codeSize)
		if m.options.Metrics != nil {
			m.options.Metrics.DroppedRecords.WithLabelValues("stack_win").Inc()
		}
	}
	return nil
}

// tokenize splits a record into at most maxTokens tokens on runs of space,
// CR and LF. Once maxTokens-1 tokens are consumed, whatever is left of the
// line becomes the final token verbatim, so names and unwind programs keep
// their embedded spaces. The second result reports whether exactly
// maxTokens tokens were found.
func tokenize(line string, maxTokens int) ([]string, bool) {
	rest := strings.TrimRight(line, "\r\n")
	tokens := make([]string, 0, maxTokens)
	for len(tokens) < maxTokens-1 {
		rest = strings.TrimLeft(rest, " \r\n")
		if rest == "" {
			break
		}
		if i := strings.IndexAny(rest, " \r\n"); i >= 0 {
			tokens = append(tokens, rest[:i])
			rest = rest[i+1:]
		} else {
			tokens = append(tokens, rest)
			rest = ""
		}
	}
	if len(tokens) == maxTokens-1 {
		if rest = strings.TrimLeft(rest, "\r\n"); rest != "" {
			tokens = append(tokens, rest)
		}
	}
	return tokens, len(tokens) == maxTokens
}

// parseInt reads an optional sign and leading decimal digits, ignoring
// trailing junk, the way the dumping tool's consumers have always parsed
// these fields (atoi semantics).
func parseInt(s string) int {
	i, neg := 0, false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

// parseHex reads leading hexadecimal digits with an optional 0x prefix,
// ignoring trailing junk (strtoull semantics). Unparsable input yields 0.
func parseHex(s string) uint64 {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		var d uint64
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return n
		}
		n = n<<4 | d
	}
	return n
}
