package analysis

import (
	"testing"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/parser"
	"github.com/ethforge/solstack/scanner"
	"github.com/ethforge/solstack/solerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analyzeSource parses a single source and runs all three semantic passes
// over its contracts in declaration order, mirroring the driver.
func analyzeSource(source string) ([]*ast.ContractDefinition, error) {
	unit, err := parser.New().Parse(scanner.New(source, "test"))
	if err != nil {
		return nil, err
	}
	globalContext := NewGlobalContext()
	resolver := NewNameAndTypeResolver(globalContext.Declarations())
	if err := resolver.RegisterDeclarations(unit); err != nil {
		return nil, err
	}
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
		if err := resolver.ResolveNamesAndTypes(contract); err != nil {
			return nil, err
		}
	}
	for _, contract := range contracts {
		globalContext.SetCurrentContract(contract)
		resolver.UpdateDeclaration(globalContext.CurrentThis())
		if err := resolver.CheckTypeRequirements(contract); err != nil {
			return nil, err
		}
	}
	return contracts, nil
}

// TestResolveSimpleContract ensures declarations and references resolve and
// expression types are recorded.
func TestResolveSimpleContract(t *testing.T) {
	contracts, err := analyzeSource(`
contract Token {
	address owner;
	function init() { owner = msg.sender; }
	function getOwner() constant returns (address o) { return owner; }
}`)
	require.NoError(t, err)
	require.Len(t, contracts, 1)

	contract := contracts[0]
	owner := contract.StateVariables()[0]
	assert.True(t, owner.IsStateVariable())
	require.NotNil(t, owner.Type())
	assert.Equal(t, "address", owner.Type().String())

	init := contract.DefinedFunctions()[0]
	assignment := init.Body.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.Assignment)
	target := assignment.LeftHandSide.(*ast.Identifier)
	assert.Same(t, owner, target.Declaration)
	assert.Equal(t, "address", assignment.ExpressionType().String())
}

// TestDuplicateDeclarationRejected covers registration-phase shadowing
// checks.
func TestDuplicateDeclarationRejected(t *testing.T) {
	_, err := analyzeSource(`contract C { uint256 x; address x; }`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindDeclarationError))

	_, err = analyzeSource(`contract C {} contract C {}`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindDeclarationError))
}

// TestFunctionOverloadingAllowed ensures same-name functions with different
// argument lists coexist.
func TestFunctionOverloadingAllowed(t *testing.T) {
	_, err := analyzeSource(`
contract C {
	function f(uint256 x) {}
	function f(address a) {}
}`)
	assert.NoError(t, err)
}

// TestInheritanceLinearization checks the derived-to-base ordering of the
// linearized chain.
func TestInheritanceLinearization(t *testing.T) {
	contracts, err := analyzeSource(`
contract A {}
contract B is A {}
contract C is A {}
contract D is B, C {}
`)
	require.NoError(t, err)
	d := contracts[3]
	var names []string
	for _, base := range d.LinearizedBases {
		names = append(names, base.Name())
	}
	assert.Equal(t, []string{"D", "C", "B", "A"}, names)
}

// TestInheritedMembersResolve ensures identifiers bind to base-contract
// declarations through the linearization.
func TestInheritedMembersResolve(t *testing.T) {
	contracts, err := analyzeSource(`
contract owned { address owner; function owned() { owner = msg.sender; } }
contract child is owned { function f() constant returns (address o) { return owner; } }
`)
	require.NoError(t, err)
	child := contracts[1]
	assert.True(t, child.IsFullyImplemented())

	ret := child.DefinedFunctions()[0].Body.Statements[0].(*ast.ReturnStatement)
	ident := ret.Expression.(*ast.Identifier)
	assert.Same(t, contracts[0].StateVariables()[0], ident.Declaration)
}

// TestOverrideConsistency rejects overrides changing return types.
func TestOverrideConsistency(t *testing.T) {
	_, err := analyzeSource(`
contract A { function f() returns (uint256 r) {} }
contract B is A { function f() returns (address r) {} }
`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindTypeError))
}

// TestTypeErrors covers operator and assignment compatibility checks.
func TestTypeErrors(t *testing.T) {
	cases := []string{
		`contract C { function f() { uint256 x = true; } }`,
		`contract C { address a; function f() { a = a + a; } }`,
		`contract C { function f() { if (42) {} } }`,
		`contract C { uint256 constant x = 1; function f() { x = 2; } }`,
		`contract C { function f() returns (bool b) { return unknownName; } }`,
	}
	for _, source := range cases {
		_, err := analyzeSource(source)
		assert.Error(t, err, source)
	}
}

// TestNumberLiteralBounds ensures value-level bounds checking of literals.
func TestNumberLiteralBounds(t *testing.T) {
	_, err := analyzeSource(`contract C { function f() { uint8 x = 255; } }`)
	assert.NoError(t, err)

	_, err = analyzeSource(`contract C { function f() { uint8 x = 256; } }`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindTypeError))

	// Address literals fit in 160 bits.
	_, err = analyzeSource(`contract C { function f() returns (address a) { return 0xc6d9d2cd449a754c494264e1809c50e34d64562b; } }`)
	assert.NoError(t, err)
}

// TestPlaceholderOutsideModifier rejects `_` in a plain function body.
func TestPlaceholderOutsideModifier(t *testing.T) {
	_, err := analyzeSource(`contract C { function f() { _ } }`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindTypeError))
}

// TestMagicGlobals ensures msg members and built-in functions type-check.
func TestMagicGlobals(t *testing.T) {
	_, err := analyzeSource(`
contract C {
	address owner;
	function C() { owner = msg.sender; }
	function kill() { if (msg.sender == owner) suicide(owner); }
}`)
	assert.NoError(t, err)
}

// TestExternalMemberCalls ensures calls on contract-typed expressions check
// against the target contract's interface.
func TestExternalMemberCalls(t *testing.T) {
	_, err := analyzeSource(`
contract Config { function lookup(uint256 service) constant returns (address a) {} }
contract User {
	function f(address configAddress) constant returns (address a) {
		return Config(configAddress).lookup(3);
	}
}`)
	assert.NoError(t, err)

	// Unknown members are rejected.
	_, err = analyzeSource(`
contract Config {}
contract User { function f(address a) { Config(a).missing(); } }
`)
	require.Error(t, err)
	assert.True(t, solerr.IsKind(err, solerr.KindTypeError))
}

// TestFunctionTypeVariables ensures assignment to and calls through
// function-typed variables type-check.
func TestFunctionTypeVariables(t *testing.T) {
	_, err := analyzeSource(`
contract C {
	function (uint256) returns (uint256) internal handler;
	function double(uint256 x) returns (uint256 r) { return x * 2; }
	function apply(uint256 x) returns (uint256 r) {
		handler = double;
		return handler(x);
	}
}`)
	assert.NoError(t, err)
}
