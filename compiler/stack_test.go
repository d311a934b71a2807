package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/ethforge/solstack/events"
	"github.com/ethforge/solstack/natspec"
	"github.com/ethforge/solstack/solerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompileSingleAnonymousSource covers the smallest end-to-end scenario:
// one contract, one function, unoptimized compilation.
func TestCompileSingleAnonymousSource(t *testing.T) {
	stack := New(false)
	stack.SetSource("contract A { function f() {} }")
	require.NoError(t, stack.Compile(false, 200))

	names, err := stack.ContractNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names)

	runtime, err := stack.RuntimeObject("A")
	require.NoError(t, err)
	assert.NotEmpty(t, runtime.Bytecode)

	object, err := stack.Object("A")
	require.NoError(t, err)
	assert.NotEmpty(t, object.Bytecode)

	hash, err := stack.ContractCodeHash("A")
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	clone, err := stack.CloneObject("A")
	require.NoError(t, err)
	assert.NotEmpty(t, clone.Bytecode)
}

// TestImportedInheritance covers the two-source scenario: topological order
// places the imported source first and inherited members resolve.
func TestImportedInheritance(t *testing.T) {
	stack := New(false)
	stack.AddSource("Lib", "contract L { function g() returns (uint) { return 1; } }", false)
	stack.AddSource("User", `import "Lib"; contract U is L {}`, false)
	require.NoError(t, stack.Parse())

	var orderedNames []string
	for _, source := range stack.SourceOrder() {
		orderedNames = append(orderedNames, source.Name)
	}
	assert.Equal(t, []string{"Lib", "User"}, orderedNames)

	definition, err := stack.ContractDefinition("U")
	require.NoError(t, err)
	functions := definition.AllFunctions()
	require.Len(t, functions, 1)
	assert.Equal(t, "g", functions[0].Name())

	require.NoError(t, stack.Compile(false, 200))
	runtime, err := stack.RuntimeObject("U")
	require.NoError(t, err)
	assert.NotEmpty(t, runtime.Bytecode)
}

// TestCyclicImports ensures cycles are cut silently with every source
// appearing exactly once in the order.
func TestCyclicImports(t *testing.T) {
	stack := New(false)
	stack.AddSource("A", `import "B"; contract CA {}`, false)
	stack.AddSource("B", `import "A"; contract CB {}`, false)
	require.NoError(t, stack.Parse())

	order := stack.SourceOrder()
	require.Len(t, order, 2)
	seen := map[string]int{}
	for _, source := range order {
		seen[source.Name]++
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, seen)
}

// TestMissingImport ensures a missing import target surfaces as a parser
// error located inside the importing source.
func TestMissingImport(t *testing.T) {
	stack := New(false)
	stack.AddSource("A", `import "Nope";`, false)
	err := stack.Parse()
	require.Error(t, err)

	var compilerErr *solerr.Error
	require.ErrorAs(t, err, &compilerErr)
	assert.Equal(t, solerr.KindParserError, compilerErr.Kind)
	assert.Equal(t, "A", compilerErr.Location.SourceName)
	assert.False(t, stack.ParseSuccessful())
}

// TestAbstractContract ensures unimplemented contracts pass compilation but
// yield no bytecode and a zero code hash.
func TestAbstractContract(t *testing.T) {
	stack := New(false)
	stack.SetSource("contract I { function f(); }")
	require.NoError(t, stack.Compile(false, 200))

	runtime, err := stack.RuntimeObject("I")
	require.NoError(t, err)
	assert.Empty(t, runtime.Bytecode)

	hash, err := stack.ContractCodeHash("I")
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, hash)

	// The assembly stream accessors degrade gracefully.
	items, err := stack.RuntimeAssemblyItems("I")
	require.NoError(t, err)
	assert.Nil(t, items)

	var listing bytes.Buffer
	require.NoError(t, stack.StreamAssembly(&listing, "I", nil, false))
	assert.Contains(t, listing.String(), "not fully implemented")
}

// TestFunctionEntryPoints ensures compiled functions resolve to distinct
// non-zero tag indices within the runtime assembly items.
func TestFunctionEntryPoints(t *testing.T) {
	stack := New(false)
	stack.SetSource("contract C { function f() {} function g() {} }")
	require.NoError(t, stack.Compile(false, 200))

	definition, err := stack.ContractDefinition("C")
	require.NoError(t, err)
	functions := definition.DefinedFunctions()
	require.Len(t, functions, 2)

	first, err := stack.FunctionEntryPoint("C", functions[0])
	require.NoError(t, err)
	second, err := stack.FunctionEntryPoint("C", functions[1])
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.NotZero(t, second)
	assert.NotEqual(t, first, second)

	items, err := stack.RuntimeAssemblyItems("C")
	require.NoError(t, err)
	record, err := stack.contract("C")
	require.NoError(t, err)
	firstTag := record.Compiler.FunctionEntryLabel(functions[0])
	assert.True(t, items[first].Data().Eq(firstTag.Data()))
}

// TestDeterministicEmission ensures two independent runs over the same
// sources produce byte-identical bytecode.
func TestDeterministicEmission(t *testing.T) {
	source := `
contract Counter {
	uint256 total;
	function add(uint256 amount) returns (uint256 r) { total = total + amount; return total; }
	function reset() { total = 0; }
}`
	compileOnce := func() []byte {
		stack := New(false)
		stack.SetSource(source)
		require.NoError(t, stack.Compile(false, 200))
		object, err := stack.RuntimeObject("Counter")
		require.NoError(t, err)
		return object.Bytecode
	}
	assert.Equal(t, compileOnce(), compileOnce())
}

// TestAddSourceReplaces ensures adding under an existing name replaces the
// content and reports prior existence.
func TestAddSourceReplaces(t *testing.T) {
	stack := New(false)
	assert.False(t, stack.AddSource("main", "contract First {}", false))
	assert.True(t, stack.AddSource("main", "contract Second {}", false))
	require.NoError(t, stack.Parse())

	names, err := stack.ContractNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Second"}, names)
}

// TestResetKeepSourcesReparses ensures a soft reset discards derived state
// but a subsequent parse restores the same topological order.
func TestResetKeepSourcesReparses(t *testing.T) {
	stack := New(false)
	stack.AddSource("Lib", "contract L {}", false)
	stack.AddSource("User", `import "Lib"; contract U {}`, false)
	require.NoError(t, stack.Parse())

	var before []string
	for _, source := range stack.SourceOrder() {
		before = append(before, source.Name)
	}

	stack.Reset(true, false)
	assert.False(t, stack.ParseSuccessful())
	_, err := stack.ContractNames()
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindCompilerError))

	require.NoError(t, stack.Parse())
	var after []string
	for _, source := range stack.SourceOrder() {
		after = append(after, source.Name)
	}
	assert.Equal(t, before, after)
}

// TestQueriesBeforeParse ensures dependent queries fail with a compiler
// error until a successful parse.
func TestQueriesBeforeParse(t *testing.T) {
	stack := New(false)
	stack.AddSource("main", "contract A {}", false)

	_, err := stack.ContractNames()
	assert.True(t, solerr.IsKind(err, solerr.KindCompilerError))
	_, err = stack.Interface("A")
	assert.True(t, solerr.IsKind(err, solerr.KindCompilerError))
	_, err = stack.AST("main")
	assert.True(t, solerr.IsKind(err, solerr.KindCompilerError))
}

// TestMetadataCaching ensures documentation strings are computed once and
// cached until a reset.
func TestMetadataCaching(t *testing.T) {
	stack := New(false)
	stack.SetSource("contract A { function f() {} }")
	require.NoError(t, stack.Parse())

	first, err := stack.Interface("A")
	require.NoError(t, err)
	record, err := stack.contract("A")
	require.NoError(t, err)
	require.NotNil(t, record.interfaceString)

	second, err := stack.Interface("A")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Unknown documentation types are internal errors.
	_, err = stack.Metadata("A", natspec.DocumentationType(99))
	assert.True(t, solerr.IsKind(err, solerr.KindInternalCompilerError))
}

// TestDefaultContractFallback ensures the empty name picks the last
// user-supplied contract in sorted source order.
func TestDefaultContractFallback(t *testing.T) {
	stack := New(false)
	stack.AddSource("a", "contract First {}", false)
	stack.AddSource("b", "contract Middle {} contract Last {}", false)
	require.NoError(t, stack.Parse())

	name, err := stack.DefaultContractName()
	require.NoError(t, err)
	assert.Equal(t, "Last", name)
}

// TestStandardSources ensures the built-in bundle registers as libraries,
// parses, and participates in inheritance when imported.
func TestStandardSources(t *testing.T) {
	stack := New(true)
	stack.AddSource("main", `import "mortal"; contract inheritor is mortal {}`, false)
	require.NoError(t, stack.Parse())

	var orderedNames []string
	for _, source := range stack.SourceOrder() {
		orderedNames = append(orderedNames, source.Name)
	}
	// Only imported libraries enter the order, dependencies first.
	assert.Equal(t, []string{"owned", "mortal", "main"}, orderedNames)

	require.NoError(t, stack.Compile(false, 200))
	hash, err := stack.ContractCodeHash("inheritor")
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	// The default contract fallback skips standard sources.
	name, err := stack.DefaultContractName()
	require.NoError(t, err)
	assert.Equal(t, "inheritor", name)
}

// TestParseAndCompileReturnsObject covers the single-call convenience API
// and the static helper.
func TestParseAndCompileReturnsObject(t *testing.T) {
	stack := New(false)
	object, err := stack.ParseAndCompile("contract A { function f() {} }", false)
	require.NoError(t, err)
	assert.NotEmpty(t, object.Bytecode)

	static, err := StaticCompile("contract A { function f() {} }", false)
	require.NoError(t, err)
	assert.Equal(t, object.Bytecode, static.Bytecode)
}

// TestPositionTranslation ensures source locations convert to 1-based line
// and column pairs.
func TestPositionTranslation(t *testing.T) {
	stack := New(false)
	stack.AddSource("main", "contract A {\n  function f() {}\n}", false)
	require.NoError(t, stack.Parse())

	definition, err := stack.ContractDefinition("A")
	require.NoError(t, err)
	fn := definition.DefinedFunctions()[0]

	startLine, startColumn, endLine, endColumn, err := stack.PositionFromSourceLocation(fn.Location())
	require.NoError(t, err)
	assert.Equal(t, 2, startLine)
	assert.Equal(t, 3, startColumn)
	assert.Equal(t, 2, endLine)
	assert.Equal(t, 18, endColumn)
}

// TestCompilationEvents ensures pipeline progress is published.
func TestCompilationEvents(t *testing.T) {
	stack := New(false)
	var parsed []events.ParseCompletedEvent
	var compiled []string
	stack.Events.ParseCompleted.Subscribe(func(event events.ParseCompletedEvent) {
		parsed = append(parsed, event)
	})
	stack.Events.ContractCompiled.Subscribe(func(event events.ContractCompiledEvent) {
		compiled = append(compiled, event.ContractName)
	})

	stack.SetSource("contract A { function f() {} } contract B {}")
	require.NoError(t, stack.Compile(false, 200))

	require.Len(t, parsed, 1)
	assert.Equal(t, 1, parsed[0].SourceCount)
	assert.Equal(t, 2, parsed[0].ContractCount)
	assert.Equal(t, []string{"A", "B"}, compiled)
}

// TestPragmaVersionCheck ensures semver constraints gate compilation.
func TestPragmaVersionCheck(t *testing.T) {
	stack := New(false)
	stack.SetSource("pragma solidity ^0.9.0; contract A {}")
	assert.NoError(t, stack.Parse())

	stack.SetSource("pragma solidity ^0.4.0; contract A {}")
	err := stack.Parse()
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindParserError))
}

// TestInterfaceOutput sanity-checks the cached ABI against the contract
// shape.
func TestInterfaceOutput(t *testing.T) {
	stack := New(false)
	stack.SetSource("contract A { function f(uint256 x) returns (uint256 y) { return x; } }")
	require.NoError(t, stack.Parse())

	abi, err := stack.Interface("A")
	require.NoError(t, err)
	assert.Contains(t, abi, `"name":"f"`)
	assert.Contains(t, abi, `"uint256"`)

	iface, err := stack.SolidityInterface("A")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(iface, "contract A{"))
}
