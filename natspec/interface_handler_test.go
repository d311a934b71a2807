package natspec_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/ethforge/solstack/compiler"
	"github.com/ethforge/solstack/natspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveContract parses a source through the driver and returns a handler
// together with the parsed stack; the name argument is not used.
func resolveContract(t *testing.T, source string, name string) (*natspec.InterfaceHandler, *compiler.CompilerStack) {
	stack := compiler.New(false)
	stack.SetSource(source)
	require.NoError(t, stack.Parse())
	return natspec.NewInterfaceHandler(), stack
}

const documentedSource = `
/// @title A token registry
/// @author ethforge
contract Registry {
	address owner;
	/// @notice registers the caller
	/// @dev writes the owner slot
	/// @param name the registered name
	/// @return success whether registration happened
	function register(bytes32 name) returns (bool success) { return true; }
	function count() constant returns (uint256 n) { return 1; }
}`

// TestABIInterfaceParsesWithGethABI ensures the generated ABI JSON is
// consumable by the standard ABI parser.
func TestABIInterfaceParsesWithGethABI(t *testing.T) {
	handler, stack := resolveContract(t, documentedSource, "Registry")
	definition, err := stack.ContractDefinition("Registry")
	require.NoError(t, err)

	abiJSON, err := handler.ABIInterface(definition)
	require.NoError(t, err)

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	register, ok := parsed.Methods["register"]
	require.True(t, ok)
	assert.Equal(t, "register(bytes32)", register.Sig)
	require.Len(t, register.Outputs, 1)
	assert.Equal(t, "bool", register.Outputs[0].Type.String())

	count, ok := parsed.Methods["count"]
	require.True(t, ok)
	assert.True(t, count.IsConstant())
}

// TestSolidityInterface checks the source-shaped interface rendering.
func TestSolidityInterface(t *testing.T) {
	handler, stack := resolveContract(t, documentedSource, "Registry")
	definition, err := stack.ContractDefinition("Registry")
	require.NoError(t, err)

	iface, err := handler.SolidityInterface(definition)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(iface, "contract Registry{"))
	assert.Contains(t, iface, "function register(bytes32 name)returns(bool success);")
	assert.Contains(t, iface, "function count()constant returns(uint256 n);")
}

// TestUserDocumentation ensures `@notice` tags land keyed by signature.
func TestUserDocumentation(t *testing.T) {
	handler, stack := resolveContract(t, documentedSource, "Registry")
	definition, err := stack.ContractDefinition("Registry")
	require.NoError(t, err)

	doc, err := handler.UserDocumentation(definition)
	require.NoError(t, err)

	var parsed struct {
		Methods map[string]map[string]string `json:"methods"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "registers the caller", parsed.Methods["register(bytes32)"]["notice"])
	_, hasCount := parsed.Methods["count()"]
	assert.False(t, hasCount)
}

// TestDevDocumentation ensures contract and method level tags are captured.
func TestDevDocumentation(t *testing.T) {
	handler, stack := resolveContract(t, documentedSource, "Registry")
	definition, err := stack.ContractDefinition("Registry")
	require.NoError(t, err)

	doc, err := handler.DevDocumentation(definition)
	require.NoError(t, err)

	var parsed struct {
		Author  string `json:"author"`
		Title   string `json:"title"`
		Methods map[string]struct {
			Details string            `json:"details"`
			Params  map[string]string `json:"params"`
			Return  string            `json:"return"`
		} `json:"methods"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "ethforge", parsed.Author)
	assert.Equal(t, "A token registry", parsed.Title)
	method := parsed.Methods["register(bytes32)"]
	assert.Equal(t, "writes the owner slot", method.Details)
	assert.Equal(t, "the registered name", method.Params["name"])
	assert.Equal(t, "success whether registration happened", method.Return)
}

// TestUnknownDocumentationType ensures the enumeration is closed.
func TestUnknownDocumentationType(t *testing.T) {
	handler, stack := resolveContract(t, documentedSource, "Registry")
	definition, err := stack.ContractDefinition("Registry")
	require.NoError(t, err)

	_, err = handler.Documentation(definition, natspec.DocumentationType(42))
	assert.Error(t, err)
}
