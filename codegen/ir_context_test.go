package codegen

import (
	"testing"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/evmasm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFunction creates a minimal resolved function definition.
func newTestFunction(name string, inputs int, outputs int) *ast.FunctionDefinition {
	fn := &ast.FunctionDefinition{
		NodeBase:         ast.NewNodeBase(ast.SourceLocation{}),
		FunctionName:     name,
		Parameters:       &ast.ParameterList{NodeBase: ast.NewNodeBase(ast.SourceLocation{})},
		ReturnParameters: &ast.ParameterList{NodeBase: ast.NewNodeBase(ast.SourceLocation{})},
	}
	fnType := &ast.FunctionType{Declaration: fn}
	for i := 0; i < inputs; i++ {
		param := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{})}
		param.SetType(ast.UInt256)
		fn.Parameters.Parameters = append(fn.Parameters.Parameters, param)
		fnType.ParameterTypes = append(fnType.ParameterTypes, ast.UInt256)
	}
	for i := 0; i < outputs; i++ {
		param := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{})}
		param.SetType(ast.UInt256)
		fn.ReturnParameters.Parameters = append(fn.ReturnParameters.Parameters, param)
		fnType.ReturnTypes = append(fnType.ReturnTypes, ast.UInt256)
	}
	fn.SetType(fnType)
	return fn
}

func newTestContext() *IRGenerationContext {
	ctx := NewIRGenerationContext(RevertStringsDefault)
	ctx.AttachAssembly(evmasm.NewAssembly())
	return ctx
}

// TestFunctionGenerationQueueOrdering ensures functions dequeue in ascending
// ID order regardless of enqueue order, and that enqueueing is idempotent.
func TestFunctionGenerationQueueOrdering(t *testing.T) {
	ctx := newTestContext()
	first := newTestFunction("a", 0, 0)
	second := newTestFunction("b", 0, 0)
	third := newTestFunction("c", 0, 0)

	ctx.EnqueueFunctionForCodeGeneration(third)
	ctx.EnqueueFunctionForCodeGeneration(first)
	ctx.EnqueueFunctionForCodeGeneration(second)
	// Re-enqueueing an already queued function is a no-op.
	ctx.EnqueueFunctionForCodeGeneration(third)

	assert.Same(t, first, ctx.DequeueFunctionForCodeGeneration())
	assert.Same(t, second, ctx.DequeueFunctionForCodeGeneration())
	assert.Same(t, third, ctx.DequeueFunctionForCodeGeneration())
	assert.True(t, ctx.FunctionGenerationQueueEmpty())
}

// TestDequeueEmptyQueuePanics ensures dequeueing from an empty queue is an
// internal error.
func TestDequeueEmptyQueuePanics(t *testing.T) {
	ctx := newTestContext()
	assert.Panics(t, func() {
		ctx.DequeueFunctionForCodeGeneration()
	})
}

// TestFunctionSetNilSortsFirst preserves the tie-break that nil sorts before
// every function.
func TestFunctionSetNilSortsFirst(t *testing.T) {
	set := &FunctionSet{}
	fn := newTestFunction("a", 0, 0)
	set.Insert(fn)
	set.Insert(nil)
	set.Insert(nil)
	set.Insert(fn)

	require.Equal(t, 2, set.Len())
	members := set.Members()
	assert.Nil(t, members[0])
	assert.Same(t, fn, members[1])
}

// TestReservedMemoryIsOneShot ensures the reserved-memory footprint can be
// consumed exactly once.
func TestReservedMemoryIsOneShot(t *testing.T) {
	ctx := newTestContext()
	decl := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "x", Mutability: ast.MutabilityImmutable}
	ctx.RegisterImmutableVariable(decl)

	assert.Equal(t, 32, ctx.ReservedMemory())
	assert.Panics(t, func() {
		ctx.ReservedMemory()
	})
	// Registration after consumption is an invariant violation as well.
	other := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "y", Mutability: ast.MutabilityImmutable}
	assert.Panics(t, func() {
		ctx.RegisterImmutableVariable(other)
	})
}

// TestImmutableOffsets ensures immutables receive distinct, stable offsets
// within the reserved region.
func TestImmutableOffsets(t *testing.T) {
	ctx := newTestContext()
	first := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "a", Mutability: ast.MutabilityImmutable}
	second := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "b", Mutability: ast.MutabilityImmutable}
	ctx.RegisterImmutableVariable(first)
	ctx.RegisterImmutableVariable(second)

	assert.Equal(t, 128, ctx.ImmutableMemoryOffset(first))
	assert.Equal(t, 160, ctx.ImmutableMemoryOffset(second))
	assert.Equal(t, 64, ctx.ReservedMemory())
}

// TestLocalVariablesAreOneShot ensures frame slots are handed out once per
// declaration and lookups after insertion succeed.
func TestLocalVariablesAreOneShot(t *testing.T) {
	ctx := newTestContext()
	decl := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "x"}

	assert.False(t, ctx.IsLocalVariable(decl))
	variable := ctx.AddLocalVariable(decl)
	assert.True(t, ctx.IsLocalVariable(decl))
	assert.Equal(t, variable, ctx.LocalVariable(decl))

	assert.Panics(t, func() {
		ctx.AddLocalVariable(decl)
	})
}

// TestStateVariableLookup ensures storage locations round-trip and lookups
// for unknown declarations are internal errors.
func TestStateVariableLookup(t *testing.T) {
	ctx := newTestContext()
	decl := &ast.VariableDeclaration{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), VariableName: "x"}

	assert.False(t, ctx.IsStateVariable(decl))
	assert.Panics(t, func() {
		ctx.StorageLocationOfStateVariable(decl)
	})

	ctx.AddStateVariable(decl, uint256.NewInt(3), 12)
	assert.True(t, ctx.IsStateVariable(decl))
	location := ctx.StorageLocationOfStateVariable(decl)
	assert.Equal(t, uint64(3), location.Slot.Uint64())
	assert.Equal(t, 12, location.ByteOffset)
}

// TestNewIRVariableIsMonotonic ensures temporary names never repeat.
func TestNewIRVariableIsMonotonic(t *testing.T) {
	ctx := newTestContext()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := ctx.NewIRVariable()
		assert.False(t, seen[name])
		seen[name] = true
	}
}

// TestInternalDispatchConsumeSemantics ensures the dispatch map is one-shot:
// consuming returns the populated map, a second consume returns an empty one
// and the context reports clean.
func TestInternalDispatchConsumeSemantics(t *testing.T) {
	ctx := newTestContext()
	fn := newTestFunction("target", 2, 1)
	ctx.AddToInternalDispatch(fn)
	// A call site with no candidates still creates its arity entry.
	ctx.InternalFunctionCalledThroughDispatch(Arity{Inputs: 0, Outputs: 0})

	assert.False(t, ctx.InternalDispatchClean())
	dispatch := ctx.ConsumeInternalDispatchMap()
	require.Len(t, dispatch, 2)
	assert.Equal(t, 1, dispatch[Arity{Inputs: 2, Outputs: 1}].Len())
	assert.Equal(t, 0, dispatch[Arity{Inputs: 0, Outputs: 0}].Len())

	assert.True(t, ctx.InternalDispatchClean())
	assert.Empty(t, ctx.ConsumeInternalDispatchMap())

	// Adding a target also queues it for code generation.
	assert.False(t, ctx.FunctionGenerationQueueEmpty())
}

// TestInitializeInternalDispatchRequiresClean ensures the one-shot set
// semantics of installing a dispatch map.
func TestInitializeInternalDispatchRequiresClean(t *testing.T) {
	ctx := newTestContext()
	fn := newTestFunction("target", 1, 0)

	dispatch := make(InternalDispatchMap)
	set := &FunctionSet{}
	set.Insert(fn)
	dispatch[Arity{Inputs: 1, Outputs: 0}] = set

	ctx.InitializeInternalDispatch(dispatch)
	assert.False(t, ctx.InternalDispatchClean())
	assert.Panics(t, func() {
		ctx.InitializeInternalDispatch(make(InternalDispatchMap))
	})
}

// TestUtilsShareCollector ensures helper generators derived from the same
// context deduplicate their routines through one collector.
func TestUtilsShareCollector(t *testing.T) {
	ctx := newTestContext()
	first := ctx.Utils().PanicFunction()
	second := ctx.Utils().PanicFunction()
	assert.Equal(t, first.Data(), second.Data())

	ctx.ABIFunctions().EncodeWordFunction()
	ctx.ABIFunctions().EncodeWordFunction()

	// One panic routine and one encode routine were collected.
	items := ctx.FunctionCollector().Emit()
	tags := 0
	for _, item := range items {
		if item.Type == evmasm.Tag {
			tags++
		}
	}
	assert.Equal(t, 2, tags)
}

// TestRevertReasonIfDebug ensures reason payloads are emitted only in debug
// mode.
func TestRevertReasonIfDebug(t *testing.T) {
	plain := NewIRGenerationContext(RevertStringsDefault)
	assert.Empty(t, plain.RevertReasonIfDebug("boom"))

	debug := NewIRGenerationContext(RevertStringsDebug)
	items := debug.RevertReasonIfDebug("boom")
	assert.NotEmpty(t, items)
	assert.Empty(t, debug.RevertReasonIfDebug(""))
}

// TestInlineAssemblyLatch ensures the flag latches on and stays on.
func TestInlineAssemblyLatch(t *testing.T) {
	ctx := newTestContext()
	assert.False(t, ctx.InlineAssemblySeen())
	ctx.SetInlineAssemblySeen()
	ctx.SetInlineAssemblySeen()
	assert.True(t, ctx.InlineAssemblySeen())
}

// TestSubObjectsDeduplicated ensures the creation-target set is ordered and
// deduplicated.
func TestSubObjectsDeduplicated(t *testing.T) {
	ctx := newTestContext()
	first := &ast.ContractDefinition{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), ContractName: "A"}
	second := &ast.ContractDefinition{NodeBase: ast.NewNodeBase(ast.SourceLocation{}), ContractName: "B"}

	ctx.SubObjectsCreated(second)
	ctx.SubObjectsCreated(first)
	ctx.SubObjectsCreated(second)

	require.Len(t, ctx.SubObjects(), 2)
	assert.Same(t, first, ctx.SubObjects()[0])
	assert.Same(t, second, ctx.SubObjects()[1])
}
