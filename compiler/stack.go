// Package compiler implements the compilation pipeline driver: it owns the
// named source units, orchestrates parsing, import resolution, the semantic
// passes and per-contract code generation, and answers all read-only queries
// on the results. The driver is a state machine moving from idle through
// parsed to compiled; mutating calls reset it, and most queries require a
// successful parse first.
package compiler

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver"
	"github.com/crytic/medusa-geth/common"
	"github.com/ethforge/solstack/analysis"
	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/codegen"
	"github.com/ethforge/solstack/events"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/logging"
	"github.com/ethforge/solstack/natspec"
	"github.com/ethforge/solstack/parser"
	"github.com/ethforge/solstack/scanner"
	"github.com/ethforge/solstack/solerr"
	"github.com/ethforge/solstack/utils"
	"github.com/ethforge/solstack/version"
)

// Source is one registered source unit: its scanner (holding the raw text),
// its parsed AST, and the library flag controlling topological rooting.
type Source struct {
	// Name is the unique source name.
	Name string

	// Scanner holds the character stream and performs position translation.
	Scanner *scanner.Scanner

	// AST is the parsed source unit, nil until parsing.
	AST *ast.SourceUnit

	// IsLibrary marks sources that never serve as topological roots.
	IsLibrary bool
}

// reset discards the source's derived state while keeping its text.
func (s *Source) reset() {
	s.AST = nil
	if s.Scanner != nil {
		s.Scanner.Reset()
	}
}

// Contract is the per-contract compilation record: the resolver's contract
// definition, the code generator instance and its outputs, and the lazily
// computed documentation strings.
type Contract struct {
	// Definition is the contract's resolved AST node.
	Definition *ast.ContractDefinition

	// Compiler is the per-contract emitter, nil until compilation (and for
	// contracts that are not fully implemented).
	Compiler *codegen.Compiler

	// Object, RuntimeObject and CloneObject are the emitted bytecode
	// objects.
	Object        evmasm.LinkerObject
	RuntimeObject evmasm.LinkerObject
	CloneObject   evmasm.LinkerObject

	// InterfaceHandler computes the documentation artifacts below.
	InterfaceHandler *natspec.InterfaceHandler

	// Cached documentation strings, one slot per documentation type,
	// computed on first access and discarded on driver reset.
	userDocumentation       *string
	devDocumentation        *string
	interfaceString         *string
	solidityInterfaceString *string
}

// CompilerStack is the full-stack compiler driver converting source strings
// to bytecode. It is not safe for concurrent mutation; read-only queries on
// a fully-compiled stack may run concurrently.
type CompilerStack struct {
	sources       map[string]*Source
	sourceOrder   []*Source
	contracts     map[string]*Contract
	globalContext *analysis.GlobalContext

	parseSuccessful bool

	// Events publishes pipeline progress; subscribe before Parse/Compile.
	Events events.CompilerStackEvents

	logger *logging.Logger
}

// New creates a driver, optionally pre-populating the built-in standard
// library sources.
func New(addStandardSources bool) *CompilerStack {
	s := &CompilerStack{
		sources:   make(map[string]*Source),
		contracts: make(map[string]*Contract),
		logger:    logging.GlobalLogger.NewSubLogger("module", "compiler"),
	}
	if addStandardSources {
		s.addStandardSources()
	}
	return s
}

func (s *CompilerStack) addStandardSources() {
	for _, name := range utils.SortedKeys(StandardSources) {
		s.sources[name] = &Source{
			Name:      name,
			Scanner:   scanner.New(StandardSources[name], name),
			IsLibrary: true,
		}
	}
}

// AddSource stores a new source or replaces an existing one, returning
// whether the name previously existed. Derived state of every source is
// discarded; other sources' text is kept.
func (s *CompilerStack) AddSource(name string, content string, isLibrary bool) bool {
	_, existed := s.sources[name]
	s.Reset(true, false)
	s.sources[name] = &Source{
		Name:      name,
		Scanner:   scanner.New(content, name),
		IsLibrary: isLibrary,
	}
	return existed
}

// SetSource clears all sources and registers the given text as the single
// anonymous source.
func (s *CompilerStack) SetSource(content string) {
	s.Reset(false, false)
	s.AddSource("", content, false)
}

// Reset clears derived state unconditionally. When keepSources is false the
// source map is cleared too, and the standard bundle is re-added when
// requested.
func (s *CompilerStack) Reset(keepSources bool, addStandardSources bool) {
	s.parseSuccessful = false
	if keepSources {
		for _, source := range s.sources {
			source.reset()
		}
	} else {
		s.sources = make(map[string]*Source)
		if addStandardSources {
			s.addStandardSources()
		}
	}
	if s.globalContext != nil {
		s.globalContext.Reset()
	}
	s.globalContext = nil
	s.sourceOrder = nil
	s.contracts = make(map[string]*Contract)
}

// Parse runs the front half of the pipeline on every registered source:
// scanning, parsing, pragma checking, import resolution and the three
// semantic passes, then attaches the NatSpec documents. On success the
// driver moves to the parsed state.
func (s *CompilerStack) Parse() error {
	if len(s.sources) == 0 {
		return solerr.NewCompilerError("no sources to parse")
	}
	s.parseSuccessful = false

	for _, name := range utils.SortedKeys(s.sources) {
		source := s.sources[name]
		source.Scanner.Reset()
		unit, err := parser.New().Parse(source.Scanner)
		if err != nil {
			return err
		}
		source.AST = unit
		if err := s.checkPragmas(unit); err != nil {
			return err
		}
	}
	if err := s.resolveImports(); err != nil {
		return err
	}

	s.globalContext = analysis.NewGlobalContext()
	resolver := analysis.NewNameAndTypeResolver(s.globalContext.Declarations())
	for _, source := range s.sourceOrder {
		if err := resolver.RegisterDeclarations(source.AST); err != nil {
			return err
		}
	}
	for _, source := range s.sourceOrder {
		for _, node := range source.AST.Nodes {
			contract, ok := node.(*ast.ContractDefinition)
			if !ok {
				continue
			}
			s.globalContext.SetCurrentContract(contract)
			resolver.UpdateDeclaration(s.globalContext.CurrentThis())
			resolver.UpdateDeclaration(s.globalContext.CurrentSuper())
			if err := resolver.ResolveNamesAndTypes(contract); err != nil {
				return err
			}
			s.contracts[contract.Name()] = &Contract{
				Definition:       contract,
				InterfaceHandler: natspec.NewInterfaceHandler(),
			}
		}
	}
	interfaceHandler := natspec.NewInterfaceHandler()
	for _, source := range s.sourceOrder {
		for _, node := range source.AST.Nodes {
			contract, ok := node.(*ast.ContractDefinition)
			if !ok {
				continue
			}
			s.globalContext.SetCurrentContract(contract)
			resolver.UpdateDeclaration(s.globalContext.CurrentThis())
			if err := resolver.CheckTypeRequirements(contract); err != nil {
				return err
			}
			if doc, err := interfaceHandler.DevDocumentation(contract); err == nil {
				contract.DevDocumentation = doc
			}
			if doc, err := interfaceHandler.UserDocumentation(contract); err == nil {
				contract.UserDocumentation = doc
			}
		}
	}

	s.parseSuccessful = true
	s.logger.Debug("parse finished", logging.StructuredLogInfo{"sources": len(s.sourceOrder)})
	s.Events.ParseCompleted.Publish(events.ParseCompletedEvent{
		SourceCount:   len(s.sourceOrder),
		ContractCount: len(s.contracts),
	})
	return nil
}

// ParseSource registers the given text as the single source and parses it.
func (s *CompilerStack) ParseSource(sourceCode string) error {
	s.SetSource(sourceCode)
	return s.Parse()
}

// checkPragmas validates every `pragma solidity` constraint in a source unit
// against the compiler's own version.
func (s *CompilerStack) checkPragmas(unit *ast.SourceUnit) error {
	for _, node := range unit.Nodes {
		pragma, ok := node.(*ast.PragmaDirective)
		if !ok || pragma.Tool != "solidity" {
			continue
		}
		constraint, err := semver.NewConstraint(pragma.Constraint)
		if err != nil {
			return solerr.NewParserError(
				fmt.Sprintf("invalid version constraint \"%s\"", pragma.Constraint), pragma.Location())
		}
		compilerVersion, err := semver.NewVersion(version.Version)
		if err != nil {
			return solerr.NewInternalCompilerError("invalid compiler version %q", version.Version)
		}
		satisfied := constraint.Check(compilerVersion)
		// A caret range on a 0.x version also pins the minor version (^0.4.0
		// admits 0.4.x only); the semver library pins only the major version.
		if len(pragma.Constraint) > 1 && pragma.Constraint[0] == '^' {
			if base, err := semver.NewVersion(pragma.Constraint[1:]); err == nil && base.Major() == 0 {
				satisfied = satisfied && compilerVersion.Minor() == base.Minor()
			}
		}
		if !satisfied {
			return solerr.NewParserError(
				fmt.Sprintf("source requires compiler version %s, this is %s",
					pragma.Constraint, version.Version), pragma.Location())
		}
	}
	return nil
}

// resolveImports performs the topological sort (depth-first search) of the
// import graph, cutting potential cycles. Roots are the non-library sources
// in sorted name order, which makes the output deterministic; for every
// import edge the imported source precedes its importer.
func (s *CompilerStack) resolveImports() error {
	var sourceOrder []*Source
	sourcesSeen := make(map[*Source]bool)

	var toposort func(source *Source) error
	toposort = func(source *Source) error {
		if sourcesSeen[source] {
			return nil
		}
		sourcesSeen[source] = true
		for _, node := range source.AST.Nodes {
			directive, ok := node.(*ast.ImportDirective)
			if !ok {
				continue
			}
			imported, known := s.sources[directive.Identifier]
			if !known {
				return solerr.NewParserError("source not found", directive.Location())
			}
			if err := toposort(imported); err != nil {
				return err
			}
		}
		sourceOrder = append(sourceOrder, source)
		return nil
	}

	for _, name := range utils.SortedKeys(s.sources) {
		if source := s.sources[name]; !source.IsLibrary {
			if err := toposort(source); err != nil {
				return err
			}
		}
	}
	s.sourceOrder = sourceOrder
	return nil
}

// Compile lowers every fully-implemented contract in topological order. Each
// contract is compiled twice: the primary compilation produces the
// deployment and runtime objects, the clone compilation a small deployment
// object delegating to an existing runtime copy.
func (s *CompilerStack) Compile(optimize bool, runs int) error {
	if !s.parseSuccessful {
		if err := s.Parse(); err != nil {
			return err
		}
	}

	compiledContracts := make(map[*ast.ContractDefinition]*evmasm.Assembly)
	for _, source := range s.sourceOrder {
		for _, node := range source.AST.Nodes {
			contract, ok := node.(*ast.ContractDefinition)
			if !ok || !contract.IsFullyImplemented() {
				continue
			}
			contractCompiler := codegen.NewCompiler(optimize, runs)
			if err := contractCompiler.CompileContract(contract, compiledContracts); err != nil {
				return err
			}
			record := s.contracts[contract.Name()]
			record.Compiler = contractCompiler
			record.Object = contractCompiler.AssembledObject()
			record.RuntimeObject = contractCompiler.RuntimeObject()
			compiledContracts[contract] = contractCompiler.Assembly()

			cloneCompiler := codegen.NewCompiler(optimize, runs)
			if err := cloneCompiler.CompileClone(contract, compiledContracts); err != nil {
				return err
			}
			record.CloneObject = cloneCompiler.AssembledObject()

			s.logger.Debug("compiled contract ", contract.Name())
			s.Events.ContractCompiled.Publish(events.ContractCompiledEvent{
				ContractName:    contract.Name(),
				RuntimeCodeSize: len(record.RuntimeObject.Bytecode),
			})
		}
	}
	return nil
}

// ParseAndCompile runs the whole pipeline on a single source text and
// returns the deployment object of the default contract.
func (s *CompilerStack) ParseAndCompile(sourceCode string, optimize bool) (evmasm.LinkerObject, error) {
	if err := s.ParseSource(sourceCode); err != nil {
		return evmasm.LinkerObject{}, err
	}
	if err := s.Compile(optimize, 200); err != nil {
		return evmasm.LinkerObject{}, err
	}
	return s.Object("")
}

// StaticCompile compiles a single source text with a throwaway driver.
func StaticCompile(sourceCode string, optimize bool) (evmasm.LinkerObject, error) {
	stack := New(false)
	return stack.ParseAndCompile(sourceCode, optimize)
}

// ContractNames returns the names of all registered contracts in
// alphabetical order. Requires a successful parse.
func (s *CompilerStack) ContractNames() ([]string, error) {
	if !s.parseSuccessful {
		return nil, solerr.NewCompilerError("parsing was not successful")
	}
	return utils.SortedKeys(s.contracts), nil
}

// DefaultContractName returns the name resolved by the empty-name fallback.
func (s *CompilerStack) DefaultContractName() (string, error) {
	record, err := s.contract("")
	if err != nil {
		return "", err
	}
	return record.Definition.Name(), nil
}

// contract resolves a contract record by name. The empty name falls back to
// the last user-supplied (non-standard-library) contract in sorted source
// order, preserving historical command-line ergonomics; with multiple
// user contracts the pick can surprise, so callers should prefer explicit
// names.
func (s *CompilerStack) contract(name string) (*Contract, error) {
	if len(s.contracts) == 0 {
		return nil, solerr.NewCompilerError("no compiled contracts found")
	}
	if name == "" {
		for _, sourceName := range utils.SortedKeys(s.sources) {
			if IsStandardSource(sourceName) {
				continue
			}
			source := s.sources[sourceName]
			if source.AST == nil {
				continue
			}
			for _, node := range source.AST.Nodes {
				if contract, ok := node.(*ast.ContractDefinition); ok {
					name = contract.Name()
				}
			}
		}
	}
	record, ok := s.contracts[name]
	if !ok {
		return nil, solerr.NewCompilerError(fmt.Sprintf("contract %s not found", name))
	}
	return record, nil
}

// source resolves a source record by name.
func (s *CompilerStack) source(name string) (*Source, error) {
	src, ok := s.sources[name]
	if !ok {
		return nil, solerr.NewCompilerError("given source file not found")
	}
	return src, nil
}

// Object returns a contract's deployment bytecode object.
func (s *CompilerStack) Object(name string) (evmasm.LinkerObject, error) {
	record, err := s.contract(name)
	if err != nil {
		return evmasm.LinkerObject{}, err
	}
	return record.Object, nil
}

// RuntimeObject returns a contract's runtime bytecode object.
func (s *CompilerStack) RuntimeObject(name string) (evmasm.LinkerObject, error) {
	record, err := s.contract(name)
	if err != nil {
		return evmasm.LinkerObject{}, err
	}
	return record.RuntimeObject, nil
}

// CloneObject returns a contract's clone deployment object.
func (s *CompilerStack) CloneObject(name string) (evmasm.LinkerObject, error) {
	record, err := s.contract(name)
	if err != nil {
		return evmasm.LinkerObject{}, err
	}
	return record.CloneObject, nil
}

// ContractCodeHash returns the Keccak-256 hash of a contract's runtime
// bytecode. Hashing is defined only for sealed non-empty objects; otherwise
// the zero hash is returned.
func (s *CompilerStack) ContractCodeHash(name string) (common.Hash, error) {
	object, err := s.RuntimeObject(name)
	if err != nil {
		return common.Hash{}, err
	}
	if object.IsEmpty() || !object.Sealed() {
		return common.Hash{}, nil
	}
	return utils.Keccak256Hash(object.Bytecode), nil
}

// AssemblyItems returns a contract's creation assembly item stream, or nil
// for contracts that were not compiled.
func (s *CompilerStack) AssemblyItems(name string) ([]evmasm.AssemblyItem, error) {
	record, err := s.contract(name)
	if err != nil {
		return nil, err
	}
	if record.Compiler == nil {
		return nil, nil
	}
	return record.Compiler.AssemblyItems(), nil
}

// RuntimeAssemblyItems returns a contract's runtime assembly item stream, or
// nil for contracts that were not compiled.
func (s *CompilerStack) RuntimeAssemblyItems(name string) ([]evmasm.AssemblyItem, error) {
	record, err := s.contract(name)
	if err != nil {
		return nil, err
	}
	if record.Compiler == nil {
		return nil, nil
	}
	return record.Compiler.RuntimeAssemblyItems(), nil
}

// StreamAssembly writes a contract's assembly listing to the given writer.
func (s *CompilerStack) StreamAssembly(w io.Writer, name string, sourceCodes map[string]string, jsonFormat bool) error {
	record, err := s.contract(name)
	if err != nil {
		return err
	}
	if record.Compiler == nil {
		_, err := fmt.Fprintln(w, "Contract not fully implemented")
		return err
	}
	return record.Compiler.StreamAssembly(w, sourceCodes, jsonFormat)
}

// Interface returns a contract's ABI JSON descriptor.
func (s *CompilerStack) Interface(name string) (string, error) {
	return s.Metadata(name, natspec.ABIInterface)
}

// SolidityInterface returns a contract's source-language-shaped interface.
func (s *CompilerStack) SolidityInterface(name string) (string, error) {
	return s.Metadata(name, natspec.ABISolidityInterface)
}

// Metadata returns a contract's documentation artifact of the given type,
// computing it on first access and caching it until the next driver reset.
func (s *CompilerStack) Metadata(name string, docType natspec.DocumentationType) (string, error) {
	if !s.parseSuccessful {
		return "", solerr.NewCompilerError("parsing was not successful")
	}
	record, err := s.contract(name)
	if err != nil {
		return "", err
	}

	var cache **string
	switch docType {
	case natspec.NatspecUser:
		cache = &record.userDocumentation
	case natspec.NatspecDev:
		cache = &record.devDocumentation
	case natspec.ABIInterface:
		cache = &record.interfaceString
	case natspec.ABISolidityInterface:
		cache = &record.solidityInterfaceString
	default:
		return "", solerr.NewInternalCompilerError("illegal documentation type %d", docType)
	}

	if *cache == nil {
		doc, err := record.InterfaceHandler.Documentation(record.Definition, docType)
		if err != nil {
			return "", err
		}
		*cache = &doc
	}
	return **cache, nil
}

// ContractDefinition returns a contract's resolved AST node.
func (s *CompilerStack) ContractDefinition(name string) (*ast.ContractDefinition, error) {
	record, err := s.contract(name)
	if err != nil {
		return nil, err
	}
	return record.Definition, nil
}

// FunctionEntryPoint returns the index of a function's entry tag within the
// contract's runtime assembly items, or zero when the function or contract
// was not compiled.
func (s *CompilerStack) FunctionEntryPoint(contractName string, fn *ast.FunctionDefinition) (int, error) {
	record, err := s.contract(contractName)
	if err != nil {
		return 0, err
	}
	if record.Compiler == nil {
		return 0, nil
	}
	tag := record.Compiler.FunctionEntryLabel(fn)
	if tag.Type == evmasm.UndefinedItem {
		return 0, nil
	}
	items := record.Compiler.RuntimeAssemblyItems()
	for i, item := range items {
		if item.Type == evmasm.Tag && item.Data().Eq(tag.Data()) {
			return i, nil
		}
	}
	return 0, nil
}

// Scanner returns the scanner of a registered source.
func (s *CompilerStack) Scanner(sourceName string) (*scanner.Scanner, error) {
	source, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	return source.Scanner, nil
}

// AST returns the parsed source unit of a registered source.
func (s *CompilerStack) AST(sourceName string) (*ast.SourceUnit, error) {
	source, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	if source.AST == nil {
		return nil, solerr.NewCompilerError("parsing was not successful")
	}
	return source.AST, nil
}

// PositionFromSourceLocation translates a source location into 1-based
// start/end line and column numbers.
func (s *CompilerStack) PositionFromSourceLocation(location ast.SourceLocation) (startLine, startColumn, endLine, endColumn int, err error) {
	sourceScanner, err := s.Scanner(location.SourceName)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	startLine, startColumn = sourceScanner.TranslatePositionToLineColumn(location.Start)
	endLine, endColumn = sourceScanner.TranslatePositionToLineColumn(location.End)
	return startLine + 1, startColumn + 1, endLine + 1, endColumn + 1, nil
}

// ParseSuccessful returns a boolean indicating whether the last parse
// completed successfully.
func (s *CompilerStack) ParseSuccessful() bool {
	return s.parseSuccessful
}

// SourceOrder returns the topological source order computed by the last
// parse.
func (s *CompilerStack) SourceOrder() []*Source {
	return s.sourceOrder
}
