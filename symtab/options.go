package symtab

import "github.com/ianlancetaylor/demangle"

// SymbolOptions controls how symbol names are post-processed at load time.
type SymbolOptions struct {
	// DemangleOptions, when non-empty, are applied to every FUNC name.
	// Symbol dumpers usually demangle already; leave this empty to keep
	// names exactly as the file spells them.
	DemangleOptions []demangle.Option
}

// DemangleSimplified demangles C++ names without parameter or template
// lists, which keeps crash signatures stable across instantiations.
var DemangleSimplified = []demangle.Option{
	demangle.NoParams,
	demangle.NoEnclosingParams,
	demangle.NoTemplateParams,
}

// DemangleFull demangles C++ names with full parameter lists.
var DemangleFull = []demangle.Option{demangle.NoClones}
