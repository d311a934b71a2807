package codegen_test

import (
	"testing"

	"github.com/ethforge/solstack/analysis"
	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/codegen"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/parser"
	"github.com/ethforge/solstack/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analyzeForCodegen runs the semantic passes over a single source and
// returns its contracts, ready for lowering.
func analyzeForCodegen(t *testing.T, source string) []*ast.ContractDefinition {
	unit, err := parser.New().Parse(scanner.New(source, "test"))
	require.NoError(t, err)

	globalContext := analysis.NewGlobalContext()
	resolver := analysis.NewNameAndTypeResolver(globalContext.Declarations())
	require.NoError(t, resolver.RegisterDeclarations(unit))

	var contracts []*ast.ContractDefinition
	for _, node := range unit.Nodes {
		if contract, ok := node.(*ast.ContractDefinition); ok {
			contracts = append(contracts, contract)
		}
	}
	for _, contract := range contracts {
		globalContext.SetCurrentContract(contract)
		resolver.UpdateDeclaration(globalContext.CurrentThis())
		resolver.UpdateDeclaration(globalContext.CurrentSuper())
		require.NoError(t, resolver.ResolveNamesAndTypes(contract))
	}
	for _, contract := range contracts {
		globalContext.SetCurrentContract(contract)
		resolver.UpdateDeclaration(globalContext.CurrentThis())
		require.NoError(t, resolver.CheckTypeRequirements(contract))
	}
	return contracts
}

// TestCompileContractProducesObjects checks the emitted objects and the
// metadata trailer on the runtime code.
func TestCompileContractProducesObjects(t *testing.T) {
	contracts := analyzeForCodegen(t, `
contract Vault {
	uint256 balance;
	function deposit(uint256 amount) { balance = balance + amount; }
	function stored() constant returns (uint256 r) { return balance; }
}`)
	compiler := codegen.NewCompiler(false, 200)
	require.NoError(t, compiler.CompileContract(contracts[0], map[*ast.ContractDefinition]*evmasm.Assembly{}))

	runtime := compiler.RuntimeObject()
	assert.NotEmpty(t, runtime.Bytecode)
	assert.True(t, runtime.Sealed())
	assert.NotNil(t, evmasm.ExtractMetadataHash(runtime.Bytecode))

	object := compiler.AssembledObject()
	assert.Greater(t, len(object.Bytecode), len(runtime.Bytecode))
	assert.NotEmpty(t, compiler.AssemblyItems())
	assert.NotEmpty(t, compiler.RuntimeAssemblyItems())
}

// TestCompileClone ensures clone objects delegate through an unresolved
// master-address link reference.
func TestCompileClone(t *testing.T) {
	contracts := analyzeForCodegen(t, `contract Reg { function ping() {} }`)
	compiler := codegen.NewCompiler(false, 200)
	require.NoError(t, compiler.CompileClone(contracts[0], nil))

	clone := compiler.AssembledObject()
	assert.NotEmpty(t, clone.Bytecode)
	assert.False(t, clone.Sealed())
	found := false
	for _, name := range clone.LinkReferences {
		if name == "Reg_master" {
			found = true
		}
	}
	assert.True(t, found)
}

// TestFunctionPointerDispatch compiles a contract calling through a
// function-typed variable and checks a dispatch routine was emitted.
func TestFunctionPointerDispatch(t *testing.T) {
	contracts := analyzeForCodegen(t, `
contract Router {
	function (uint256) returns (uint256) internal handler;
	function double(uint256 x) returns (uint256 r) { return x * 2; }
	function route(uint256 x) returns (uint256 r) {
		handler = double;
		return handler(x);
	}
}`)
	compiler := codegen.NewCompiler(false, 200)
	require.NoError(t, compiler.CompileContract(contracts[0], map[*ast.ContractDefinition]*evmasm.Assembly{}))
	assert.NotEmpty(t, compiler.RuntimeObject().Bytecode)

	// The dispatch routine traps on unmatched pointers.
	sawInvalid := false
	for _, item := range compiler.RuntimeAssemblyItems() {
		if item.Type == evmasm.Operation && item.Instruction == evmasm.INVALID {
			sawInvalid = true
		}
	}
	assert.True(t, sawInvalid)
}

// TestImmutableVariables compiles a contract with immutable state assigned
// in the constructor.
func TestImmutableVariables(t *testing.T) {
	contracts := analyzeForCodegen(t, `
contract Fixed {
	uint256 immutable rate = 3;
	uint256 immutable cap;
	function Fixed(uint256 c) { cap = c; }
	function limit() constant returns (uint256 r) { return cap + rate; }
}`)
	compiler := codegen.NewCompiler(false, 200)
	require.NoError(t, compiler.CompileContract(contracts[0], map[*ast.ContractDefinition]*evmasm.Assembly{}))
	assert.NotEmpty(t, compiler.AssembledObject().Bytecode)
	assert.NotEmpty(t, compiler.RuntimeObject().Bytecode)
}

// TestCreationExpressions ensures `new` embeds the created contract's
// object and requires it to be compiled first.
func TestCreationExpressions(t *testing.T) {
	contracts := analyzeForCodegen(t, `
contract Child { function ping() {} }
contract Factory {
	function make() returns (address a) { return new Child(); }
}`)
	compiledContracts := make(map[*ast.ContractDefinition]*evmasm.Assembly)

	childCompiler := codegen.NewCompiler(false, 200)
	require.NoError(t, childCompiler.CompileContract(contracts[0], compiledContracts))
	compiledContracts[contracts[0]] = childCompiler.Assembly()

	factoryCompiler := codegen.NewCompiler(false, 200)
	require.NoError(t, factoryCompiler.CompileContract(contracts[1], compiledContracts))

	// The factory's runtime object embeds the child's creation object, so it
	// must be substantially larger than the child's runtime alone.
	assert.Greater(t, len(factoryCompiler.RuntimeObject().Bytecode), len(childCompiler.RuntimeObject().Bytecode))

	// Compiling the factory without the child available is a driver misuse
	// error.
	fresh := analyzeForCodegen(t, `
contract Child { function ping() {} }
contract Factory {
	function make() returns (address a) { return new Child(); }
}`)
	badCompiler := codegen.NewCompiler(false, 200)
	err := badCompiler.CompileContract(fresh[1], map[*ast.ContractDefinition]*evmasm.Assembly{})
	assert.Error(t, err)
}

// TestModifierInlining compiles a guarded function whose modifier wraps the
// body at its placeholder.
func TestModifierInlining(t *testing.T) {
	contracts := analyzeForCodegen(t, `
contract Guarded {
	address owner;
	modifier onlyowner(){if(msg.sender==owner)_}
	function touch() onlyowner { owner = msg.sender; }
}`)
	compiler := codegen.NewCompiler(false, 200)
	require.NoError(t, compiler.CompileContract(contracts[0], map[*ast.ContractDefinition]*evmasm.Assembly{}))
	assert.NotEmpty(t, compiler.RuntimeObject().Bytecode)
}
