package parser

import (
	"testing"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/scanner"
	"github.com/ethforge/solstack/solerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseSource is a test helper running the parser over a source string.
func parseSource(t *testing.T, source string) *ast.SourceUnit {
	unit, err := New().Parse(scanner.New(source, "test"))
	require.NoError(t, err)
	return unit
}

// TestParseImportsAndPragma covers the top-level directives.
func TestParseImportsAndPragma(t *testing.T) {
	unit := parseSource(t, `pragma solidity ^0.9.0; import "lib"; contract A {}`)
	require.Len(t, unit.Nodes, 3)

	pragma, ok := unit.Nodes[0].(*ast.PragmaDirective)
	require.True(t, ok)
	assert.Equal(t, "solidity", pragma.Tool)
	assert.Equal(t, "^0.9.0", pragma.Constraint)

	directive, ok := unit.Nodes[1].(*ast.ImportDirective)
	require.True(t, ok)
	assert.Equal(t, "lib", directive.Identifier)

	_, ok = unit.Nodes[2].(*ast.ContractDefinition)
	assert.True(t, ok)
}

// TestParseContractMembers covers state variables, functions and modifiers.
func TestParseContractMembers(t *testing.T) {
	unit := parseSource(t, `
contract Token {
	address owner;
	uint256 constant limit = 100;
	modifier onlyowner(){if(msg.sender==owner)_}
	function transfer(address to, uint256 value) onlyowner returns (bool ok) { return true; }
	function balance() constant returns (uint256) {}
	function abstractOne();
}`)
	contract := unit.Nodes[0].(*ast.ContractDefinition)
	assert.Equal(t, "Token", contract.Name())

	variables := contract.StateVariables()
	require.Len(t, variables, 2)
	assert.Equal(t, "owner", variables[0].Name())
	assert.Equal(t, ast.MutabilityConstant, variables[1].Mutability)
	assert.NotNil(t, variables[1].Value)

	modifiers := contract.Modifiers()
	require.Len(t, modifiers, 1)
	assert.Equal(t, "onlyowner", modifiers[0].Name())

	functions := contract.DefinedFunctions()
	require.Len(t, functions, 3)
	transfer := functions[0]
	assert.Len(t, transfer.Parameters.Parameters, 2)
	require.Len(t, transfer.Modifiers, 1)
	assert.Equal(t, "onlyowner", transfer.Modifiers[0].ModifierName.Name())
	assert.Len(t, transfer.ReturnParameters.Parameters, 1)

	assert.True(t, functions[1].Constant)
	assert.Nil(t, functions[2].Body)
	assert.NotNil(t, functions[0].Body)
}

// TestParseInheritance covers base lists.
func TestParseInheritance(t *testing.T) {
	unit := parseSource(t, `contract C is A, B {}`)
	contract := unit.Nodes[0].(*ast.ContractDefinition)
	require.Len(t, contract.BaseContracts, 2)
	assert.Equal(t, "A", contract.BaseContracts[0].BaseName.Name())
	assert.Equal(t, "B", contract.BaseContracts[1].BaseName.Name())
}

// TestParseExpressions exercises precedence, casts, member access and
// creation expressions.
func TestParseExpressions(t *testing.T) {
	unit := parseSource(t, `
contract C {
	function f() {
		uint256 x = 1 + 2 * 3;
		x = Config(configAddr()).lookup(3);
		address a = new Reg();
		if (x <= 5 && a == a) { x += 1; }
		while (x > 0) { x -= 1; }
	}
}`)
	fn := unit.Nodes[0].(*ast.ContractDefinition).DefinedFunctions()[0]
	statements := fn.Body.Statements
	require.Len(t, statements, 5)

	// 1 + 2 * 3 parses as 1 + (2 * 3).
	declStmt := statements[0].(*ast.VariableDeclarationStatement)
	sum := declStmt.Declaration.Value.(*ast.BinaryOperation)
	assert.Equal(t, "+", sum.Operator)
	product := sum.RightExpression.(*ast.BinaryOperation)
	assert.Equal(t, "*", product.Operator)

	// The cast-and-call chain nests function calls and member accesses.
	assignment := statements[1].(*ast.ExpressionStatement).Expression.(*ast.Assignment)
	call := assignment.RightHandSide.(*ast.FunctionCall)
	member := call.Expression.(*ast.MemberAccess)
	assert.Equal(t, "lookup", member.MemberName)
	cast := member.Expression.(*ast.FunctionCall)
	assert.Equal(t, "Config", cast.Expression.(*ast.Identifier).Name())

	// Creation expressions parse into a call on a NewExpression.
	creation := statements[2].(*ast.VariableDeclarationStatement).Declaration.Value.(*ast.FunctionCall)
	newExpr := creation.Expression.(*ast.NewExpression)
	assert.Equal(t, "Reg", newExpr.ContractName.Name())
}

// TestParseFunctionTypeVariable covers function-typed state variables.
func TestParseFunctionTypeVariable(t *testing.T) {
	unit := parseSource(t, `
contract C {
	function (uint256) returns (uint256) internal handler;
	function f(uint256 x) returns (uint256) { handler = f; return handler(x); }
}`)
	contract := unit.Nodes[0].(*ast.ContractDefinition)
	variables := contract.StateVariables()
	require.Len(t, variables, 1)
	require.True(t, variables[0].TypeName.IsFunctionType())
	assert.Len(t, variables[0].TypeName.FunctionTypeParameters.Parameters, 1)
	assert.Len(t, variables[0].TypeName.FunctionTypeReturns.Parameters, 1)
}

// TestParseInlineAssembly ensures assembly blocks are captured opaquely.
func TestParseInlineAssembly(t *testing.T) {
	unit := parseSource(t, `contract C { function f() { assembly { let x := 1 } } }`)
	fn := unit.Nodes[0].(*ast.ContractDefinition).DefinedFunctions()[0]
	_, ok := fn.Body.Statements[0].(*ast.InlineAssemblyStatement)
	assert.True(t, ok)
}

// TestParseDocComments ensures `///` text attaches to the following
// declaration.
func TestParseDocComments(t *testing.T) {
	unit := parseSource(t, `
/// @title Registry
contract C {
	/// @notice registers a name
	function register() {}
}`)
	contract := unit.Nodes[0].(*ast.ContractDefinition)
	assert.Equal(t, "@title Registry", contract.DocString)
	assert.Equal(t, "@notice registers a name", contract.DefinedFunctions()[0].DocString)
}

// TestParseErrorCarriesLocation ensures parse failures report the offending
// range in the right source.
func TestParseErrorCarriesLocation(t *testing.T) {
	_, err := New().Parse(scanner.New("contract {}", "broken"))
	require.Error(t, err)
	var compilerErr *solerr.Error
	require.ErrorAs(t, err, &compilerErr)
	assert.Equal(t, solerr.KindParserError, compilerErr.Kind)
	assert.Equal(t, "broken", compilerErr.Location.SourceName)
}

// TestParseStandardSources ensures the historical standard library bundle
// parses in full.
func TestParseStandardSources(t *testing.T) {
	bundle := []string{
		`contract owned{function owned(){owner = msg.sender;}modifier onlyowner(){if(msg.sender==owner)_}address owner;}`,
		`import "owned";contract mortal is owned {function kill() { if (msg.sender == owner) suicide(owner); }}`,
		`contract Config{function lookup(uint256 service)constant returns(address a){}function kill(){}function unregister(uint256 id){}function register(uint256 id,address service){}}`,
		`import "CoinReg";import "Config";import "configUser";contract coin is configUser{function coin(bytes3 name, uint denom) {CoinReg(Config(configAddr()).lookup(3)).register(name, denom);}}`,
		`contract configUser{function configAddr()constant returns(address a){ return 0xc6d9d2cd449a754c494264e1809c50e34d64562b;}}`,
	}
	for _, source := range bundle {
		_, err := New().Parse(scanner.New(source, "std"))
		assert.NoError(t, err)
	}
}
