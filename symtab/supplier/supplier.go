// Package supplier locates symbol files on local disk for the resolver.
// It understands the conventional symbol-store layout
// <root>/<module>/<debug-id>/<module>.sym plus a flat <root>/<module>.sym
// fallback for hand-placed files. Fetching symbols over the network is a
// different system's job.
package supplier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound means no symbol file exists for the requested module.
var ErrNotFound = errors.New("symbol file not found")

const defaultNegativeCacheSize = 4096

// Supplier finds symbol files under a single store root. Lookups that find
// nothing are remembered in an LRU so the many frames of a crash that
// reference the same unsymbolized module don't re-stat the disk.
type Supplier struct {
	root     string
	logger   log.Logger
	notFound *lru.Cache[string, struct{}]
}

type Options struct {
	// NegativeCacheSize bounds the not-found LRU; 0 means a default.
	NegativeCacheSize int
}

func New(logger log.Logger, root string, options Options) (*Supplier, error) {
	size := options.NegativeCacheSize
	if size <= 0 {
		size = defaultNegativeCacheSize
	}
	notFound, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create not-found cache: %w", err)
	}
	return &Supplier{
		root:     root,
		logger:   logger,
		notFound: notFound,
	}, nil
}

// FindSymbolFile returns the path of the symbol file for the named module.
// debugID may be empty, in which case only the flat layout is tried.
// Returns ErrNotFound when no candidate exists.
func (s *Supplier) FindSymbolFile(module, debugID string) (string, error) {
	key := module + "/" + debugID
	if _, ok := s.notFound.Get(key); ok {
		return "", ErrNotFound
	}

	for _, candidate := range s.candidates(module, debugID) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	level.Debug(s.logger).Log("msg", "no symbol file", "module", module, "id", debugID)
	s.notFound.Add(key, struct{}{})
	return "", ErrNotFound
}

func (s *Supplier) candidates(module, debugID string) []string {
	// Store layouts key by the module's file name with the extension
	// replaced, e.g. app.exe -> app.sym.
	stem := strings.TrimSuffix(module, filepath.Ext(module))
	var paths []string
	if debugID != "" {
		paths = append(paths,
			filepath.Join(s.root, module, debugID, stem+".sym"),
			filepath.Join(s.root, module, debugID, stem+".sym.gz"),
		)
	}
	return append(paths,
		filepath.Join(s.root, stem+".sym"),
		filepath.Join(s.root, stem+".sym.gz"),
	)
}
