package evmasm

import (
	"testing"

	"github.com/crytic/medusa-geth/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSampleAssembly creates a small stream exercising tags, pushes and the
// data segment.
func buildSampleAssembly() *Assembly {
	asm := NewAssembly()
	tag := asm.NewTag()
	asm.AppendPushUint(1)
	asm.Append(PushTagFor(tag))
	asm.AppendOperation(JUMPI)
	asm.AppendOperation(STOP)
	asm.Append(tag)
	asm.AppendPush(uint256.NewInt(0xdead))
	asm.AppendOperation(POP)
	asm.AppendOperation(JUMP)
	return asm
}

// TestAssembleResolvesTags ensures tag definitions become jump destinations
// and tag pushes carry the correct offsets.
func TestAssembleResolvesTags(t *testing.T) {
	asm := buildSampleAssembly()
	object, err := asm.Assemble()
	require.NoError(t, err)
	require.NotEmpty(t, object.Bytecode)

	// Locate the JUMPDEST: PUSH1 1 (2) + PUSH2 tag (3) + JUMPI (1) + STOP (1).
	assert.Equal(t, byte(JUMPDEST), object.Bytecode[7])
	// The PUSH2 immediately before JUMPI must target offset 7.
	assert.Equal(t, byte(PUSH2), object.Bytecode[2])
	assert.Equal(t, byte(0), object.Bytecode[3])
	assert.Equal(t, byte(7), object.Bytecode[4])
}

// TestAssembleDeterminism ensures assembling the same stream twice yields
// byte-identical output.
func TestAssembleDeterminism(t *testing.T) {
	first, err := buildSampleAssembly().Assemble()
	require.NoError(t, err)
	second, err := buildSampleAssembly().Assemble()
	require.NoError(t, err)
	assert.Equal(t, first.Bytecode, second.Bytecode)
}

// TestAssembleUndefinedTag ensures pushing a tag that is never defined is
// rejected as an internal error.
func TestAssembleUndefinedTag(t *testing.T) {
	asm := NewAssembly()
	tag := asm.NewTag()
	asm.Append(PushTagFor(tag))
	_, err := asm.Assemble()
	assert.Error(t, err)
}

// TestLinkReferencesAndSealing checks that library placeholders surface as
// link references and can be resolved by linking.
func TestLinkReferencesAndSealing(t *testing.T) {
	asm := NewAssembly()
	asm.AppendLibraryAddress("MathLib")
	asm.AppendOperation(STOP)
	object, err := asm.Assemble()
	require.NoError(t, err)

	require.Len(t, object.LinkReferences, 1)
	assert.False(t, object.Sealed())
	assert.Equal(t, "MathLib", object.LinkReferences[1])

	// Linking against an unknown library leaves the reference in place.
	object.Link(map[string]common.Address{"Other": {}})
	assert.False(t, object.Sealed())

	// Linking against the right library seals the object and patches the
	// placeholder bytes.
	address := common.BytesToAddress([]byte{0x11, 0x22})
	object.Link(map[string]common.Address{"MathLib": address})
	assert.True(t, object.Sealed())
	assert.Equal(t, address.Bytes(), object.Bytecode[1:21])
}

// TestDataSegment ensures appended data lands after the code and its link
// references shift accordingly.
func TestDataSegment(t *testing.T) {
	asm := NewAssembly()
	asm.Append(AssemblyItem{Type: PushDataSize})
	asm.Append(AssemblyItem{Type: PushData})
	asm.AppendOperation(STOP)
	offset := asm.AppendData([]byte{0xaa, 0xbb, 0xcc}, map[int]string{1: "Lib"})
	assert.Equal(t, 0, offset)

	object, err := asm.Assemble()
	require.NoError(t, err)

	// Code is PUSH2 size (3) + PUSH2 offset (3) + STOP (1) = 7 bytes.
	require.Len(t, object.Bytecode, 10)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, object.Bytecode[7:])
	// PushDataSize carries 3, PushData carries 7.
	assert.Equal(t, byte(3), object.Bytecode[2])
	assert.Equal(t, byte(7), object.Bytecode[5])
	// The data link reference moved to code size + 1.
	assert.Equal(t, "Lib", object.LinkReferences[8])
}

// TestMetadataTrailerRoundTrip ensures the CBOR trailer can be appended,
// located and stripped again.
func TestMetadataTrailerRoundTrip(t *testing.T) {
	code := []byte{byte(PUSH1), 0x00, byte(STOP)}
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}

	withTrailer := AppendMetadataTrailer(code, hash)
	assert.Greater(t, len(withTrailer), len(code))
	assert.Equal(t, hash, ExtractMetadataHash(withTrailer))
	assert.Equal(t, code, StripMetadataTrailer(withTrailer))

	// Bytecode without a trailer yields no hash and passes through.
	assert.Nil(t, ExtractMetadataHash(code))
	assert.Equal(t, code, StripMetadataTrailer(code))
}

// TestPushedBytes ensures push widths shrink to the minimal encoding.
func TestPushedBytes(t *testing.T) {
	assert.Equal(t, 1, NewPushUint(0).PushedBytes())
	assert.Equal(t, 1, NewPushUint(255).PushedBytes())
	assert.Equal(t, 2, NewPushUint(256).PushedBytes())
	assert.Equal(t, 32, NewPush(new(uint256.Int).Not(uint256.NewInt(0))).PushedBytes())
}
