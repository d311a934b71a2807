// Package codegen lowers resolved contracts to assembly for the stack VM.
// The per-contract Compiler drives a work-queue of function definitions
// through an IRGenerationContext, which carries all mutable state of one
// compilation unit: variable tables, the internal dispatch map, the shared
// utility-routine collector and the creation-time immutable layout.
package codegen

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/solerr"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"
)

// RevertStrings selects how much revert-reason data generated code carries.
type RevertStrings int

const (
	// RevertStringsDefault emits reverts without reason payloads.
	RevertStringsDefault RevertStrings = iota
	// RevertStringsDebug stores a reason message in memory before reverting.
	RevertStringsDebug
)

// IRVariable is the handle of a lowered variable: its generated name and the
// memory slot backing it within the function frame area.
type IRVariable struct {
	// Name is the generated variable name.
	Name string

	// MemoryOffset is the byte offset of the variable's 32-byte slot.
	MemoryOffset int
}

// StorageLocation is a state variable's storage position: the 256-bit slot
// and the byte offset of the value within it.
type StorageLocation struct {
	Slot       *uint256.Int
	ByteOffset int
}

// immutableMemoryStart is the base of the memory region reserved for
// immutable values during contract creation.
const immutableMemoryStart = 128

// localFrameStart is the base of the memory region used for function frames
// (parameters, returns and locals).
const localFrameStart = 1024

// IRGenerationContext carries the per-compilation-unit state consumed by the
// per-contract lowering. A fresh context is used for the runtime code and
// another for the creation code.
type IRGenerationContext struct {
	revertStrings       RevertStrings
	mostDerivedContract *ast.ContractDefinition

	localVariables     map[*ast.VariableDeclaration]IRVariable
	immutableVariables map[*ast.VariableDeclaration]int
	stateVariables     map[*ast.VariableDeclaration]StorageLocation

	// reservedMemory is the total number of bytes reserved for immutables.
	// It is moved out by ReservedMemory; a nil value marks it consumed.
	reservedMemory *int

	functions  *FunctionCollector
	varCounter int

	// localMemoryOffset is the bump allocator for function frame slots.
	localMemoryOffset int

	inlineAssemblySeen bool

	functionGenerationQueue FunctionSet

	internalDispatchMap InternalDispatchMap

	subObjects []*ast.ContractDefinition

	// asm supplies tag allocation for collected routines. Attached by the
	// compiler that owns the context.
	asm *evmasm.Assembly
}

// NewIRGenerationContext creates a fresh context.
func NewIRGenerationContext(revertStrings RevertStrings) *IRGenerationContext {
	reserved := 0
	return &IRGenerationContext{
		revertStrings:       revertStrings,
		localVariables:      make(map[*ast.VariableDeclaration]IRVariable),
		immutableVariables:  make(map[*ast.VariableDeclaration]int),
		stateVariables:      make(map[*ast.VariableDeclaration]StorageLocation),
		reservedMemory:      &reserved,
		functions:           NewFunctionCollector(),
		localMemoryOffset:   localFrameStart,
		internalDispatchMap: make(InternalDispatchMap),
	}
}

// AttachAssembly wires the assembly whose tag space collected routines live
// in. Must be called before any routine is created.
func (c *IRGenerationContext) AttachAssembly(asm *evmasm.Assembly) {
	c.asm = asm
}

// FunctionCollector returns the shared utility-routine collector.
func (c *IRGenerationContext) FunctionCollector() *FunctionCollector {
	return c.functions
}

// CreateFunction requests the named routine from the shared collector,
// building it with the creator on first request.
func (c *IRGenerationContext) CreateFunction(name string, creator func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem) evmasm.AssemblyItem {
	return c.functions.CreateFunction(name, c.asm.NewTag, creator)
}

// SetMostDerivedContract records the contract being compiled.
func (c *IRGenerationContext) SetMostDerivedContract(contract *ast.ContractDefinition) {
	c.mostDerivedContract = contract
}

// MostDerivedContract returns the contract being compiled.
func (c *IRGenerationContext) MostDerivedContract() *ast.ContractDefinition {
	if c.mostDerivedContract == nil {
		panic(solerr.NewInternalCompilerError("most derived contract requested but not set"))
	}
	return c.mostDerivedContract
}

// RevertStringsMode returns the configured revert-string mode.
func (c *IRGenerationContext) RevertStringsMode() RevertStrings {
	return c.revertStrings
}

// IRFunctionName returns the stable generated name of a function definition,
// derived from its declared name and globally-unique ID.
func IRFunctionName(fn *ast.FunctionDefinition) string {
	return fmt.Sprintf("fun_%s_%d", fn.Name(), fn.ID())
}

// EnqueueFunctionForCodeGeneration adds a function to the generation queue
// and returns its generated name. Enqueueing an already-queued or
// already-lowered function is harmless: the queue deduplicates and the
// collector ignores repeated definitions of the same name.
func (c *IRGenerationContext) EnqueueFunctionForCodeGeneration(fn *ast.FunctionDefinition) string {
	c.functionGenerationQueue.Insert(fn)
	return IRFunctionName(fn)
}

// DequeueFunctionForCodeGeneration removes and returns the queued function
// with the smallest ID. Must not be called on an empty queue.
func (c *IRGenerationContext) DequeueFunctionForCodeGeneration() *ast.FunctionDefinition {
	if c.functionGenerationQueue.Empty() {
		panic(solerr.NewInternalCompilerError("dequeue from empty function generation queue"))
	}
	return c.functionGenerationQueue.PopFront()
}

// FunctionGenerationQueueEmpty returns a boolean indicating whether the
// generation queue has drained, terminating the lowering loop.
func (c *IRGenerationContext) FunctionGenerationQueueEmpty() bool {
	return c.functionGenerationQueue.Empty()
}

// AddLocalVariable assigns a frame slot to a local declaration. Adding the
// same declaration twice is an internal error; use IsLocalVariable to probe.
func (c *IRGenerationContext) AddLocalVariable(decl *ast.VariableDeclaration) IRVariable {
	if _, exists := c.localVariables[decl]; exists {
		panic(solerr.NewInternalCompilerError("local variable \"%s\" added twice", decl.Name()))
	}
	variable := IRVariable{
		Name:         c.NewIRVariable(),
		MemoryOffset: c.localMemoryOffset,
	}
	c.localMemoryOffset += 32
	c.localVariables[decl] = variable
	return variable
}

// IsLocalVariable returns a boolean indicating whether the declaration has a
// frame slot.
func (c *IRGenerationContext) IsLocalVariable(decl *ast.VariableDeclaration) bool {
	_, ok := c.localVariables[decl]
	return ok
}

// LocalVariable returns the frame handle of a declaration previously added
// with AddLocalVariable.
func (c *IRGenerationContext) LocalVariable(decl *ast.VariableDeclaration) IRVariable {
	variable, ok := c.localVariables[decl]
	if !ok {
		panic(solerr.NewInternalCompilerError("unknown local variable \"%s\"", decl.Name()))
	}
	return variable
}

// RegisterImmutableVariable reserves creation-time memory for an immutable
// variable. May only be called before ReservedMemory is consumed.
func (c *IRGenerationContext) RegisterImmutableVariable(decl *ast.VariableDeclaration) {
	if c.reservedMemory == nil {
		panic(solerr.NewInternalCompilerError("immutable variable registered after reserved memory was consumed"))
	}
	if _, exists := c.immutableVariables[decl]; exists {
		panic(solerr.NewInternalCompilerError("immutable variable \"%s\" registered twice", decl.Name()))
	}
	offset := immutableMemoryStart + *c.reservedMemory
	c.immutableVariables[decl] = offset
	*c.reservedMemory += 32
}

// IsImmutableRegistered returns a boolean indicating whether the immutable
// variable has a reserved memory offset in this context. Only the creation
// context registers immutables.
func (c *IRGenerationContext) IsImmutableRegistered(decl *ast.VariableDeclaration) bool {
	_, ok := c.immutableVariables[decl]
	return ok
}

// ImmutableMemoryOffset returns the reserved memory offset of an immutable
// variable.
func (c *IRGenerationContext) ImmutableMemoryOffset(decl *ast.VariableDeclaration) int {
	offset, ok := c.immutableVariables[decl]
	if !ok {
		panic(solerr.NewInternalCompilerError("unknown immutable variable \"%s\"", decl.Name()))
	}
	return offset
}

// ReservedMemory returns the total reserved-memory footprint and consumes
// it; a second call is an internal error. The value is used exactly once to
// initialize the free-memory pointer past the immutables area.
func (c *IRGenerationContext) ReservedMemory() int {
	if c.reservedMemory == nil {
		panic(solerr.NewInternalCompilerError("reserved memory was already consumed"))
	}
	reserved := *c.reservedMemory
	c.reservedMemory = nil
	return reserved
}

// AddStateVariable records the storage layout of a state variable.
func (c *IRGenerationContext) AddStateVariable(decl *ast.VariableDeclaration, slot *uint256.Int, byteOffset int) {
	c.stateVariables[decl] = StorageLocation{Slot: slot.Clone(), ByteOffset: byteOffset}
}

// IsStateVariable returns a boolean indicating whether a storage location is
// recorded for the declaration.
func (c *IRGenerationContext) IsStateVariable(decl *ast.VariableDeclaration) bool {
	_, ok := c.stateVariables[decl]
	return ok
}

// StorageLocationOfStateVariable returns the recorded storage location.
// Looking up a declaration without one is an internal error.
func (c *IRGenerationContext) StorageLocationOfStateVariable(decl *ast.VariableDeclaration) StorageLocation {
	location, ok := c.stateVariables[decl]
	if !ok {
		panic(solerr.NewInternalCompilerError("storage location requested for non-state variable \"%s\"", decl.Name()))
	}
	return location
}

// NewIRVariable returns a fresh, monotonic temporary name.
func (c *IRGenerationContext) NewIRVariable() string {
	c.varCounter++
	return fmt.Sprintf("_%d", c.varCounter)
}

// InitializeInternalDispatch installs a dispatch map, typically one consumed
// from another context. The context's map must be clean.
func (c *IRGenerationContext) InitializeInternalDispatch(dispatch InternalDispatchMap) {
	if !c.InternalDispatchClean() {
		panic(solerr.NewInternalCompilerError("internal dispatch initialized twice"))
	}
	if dispatch == nil {
		dispatch = make(InternalDispatchMap)
	}
	c.internalDispatchMap = dispatch
	for _, arity := range dispatch.SortedArities() {
		for _, fn := range dispatch[arity].Members() {
			if fn != nil {
				c.EnqueueFunctionForCodeGeneration(fn)
			}
		}
	}
}

// ConsumeInternalDispatchMap moves the dispatch map out of the context,
// leaving it clean.
func (c *IRGenerationContext) ConsumeInternalDispatchMap() InternalDispatchMap {
	dispatch := c.internalDispatchMap
	c.internalDispatchMap = make(InternalDispatchMap)
	return dispatch
}

// InternalDispatchClean returns a boolean indicating whether the dispatch
// map holds no entries.
func (c *IRGenerationContext) InternalDispatchClean() bool {
	return len(c.internalDispatchMap) == 0
}

// InternalFunctionCalledThroughDispatch records that a call through an
// internal function pointer of the given arity exists. The entry is created
// even when no candidate function was ever assigned: such a call fails at
// runtime but must compile.
func (c *IRGenerationContext) InternalFunctionCalledThroughDispatch(arity Arity) {
	if _, ok := c.internalDispatchMap[arity]; !ok {
		c.internalDispatchMap[arity] = &FunctionSet{}
	}
}

// AddToInternalDispatch registers a function as a potential target of calls
// through internal function pointers of its arity, and queues it for code
// generation.
func (c *IRGenerationContext) AddToInternalDispatch(fn *ast.FunctionDefinition) {
	fnType, ok := fn.Type().(*ast.FunctionType)
	if !ok {
		panic(solerr.NewInternalCompilerError("function \"%s\" added to dispatch before resolution", fn.Name()))
	}
	arity := ArityFromFunctionType(fnType)
	c.InternalFunctionCalledThroughDispatch(arity)
	c.internalDispatchMap[arity].Insert(fn)
	c.EnqueueFunctionForCodeGeneration(fn)
}

// Utils returns a utility-routine generator backed by the context's shared
// collector, so routines created through any generator instance are
// deduplicated against all others.
func (c *IRGenerationContext) Utils() UtilFunctions {
	return UtilFunctions{ctx: c}
}

// ABIFunctions returns an ABI-helper generator backed by the same shared
// collector as Utils.
func (c *IRGenerationContext) ABIFunctions() ABIFunctions {
	return ABIFunctions{ctx: c}
}

// RevertReasonIfDebug returns items that store the given reason message in
// scratch memory before a revert when the revert-string mode is debug, and
// no items otherwise.
func (c *IRGenerationContext) RevertReasonIfDebug(message string) []evmasm.AssemblyItem {
	if c.revertStrings != RevertStringsDebug || message == "" {
		return nil
	}
	word := make([]byte, 32)
	copy(word, message)
	value := new(uint256.Int).SetBytes(word)
	return []evmasm.AssemblyItem{
		evmasm.NewPush(value),
		evmasm.NewPushUint(0),
		evmasm.NewOperation(evmasm.MSTORE),
	}
}

// SubObjectsCreated records a contract referenced by a creation expression,
// driving nested sub-object emission. The set is ordered by node ID and
// deduplicated.
func (c *IRGenerationContext) SubObjectsCreated(contract *ast.ContractDefinition) {
	index, found := slices.BinarySearchFunc(c.subObjects, contract, func(a, b *ast.ContractDefinition) int {
		return int(a.ID() - b.ID())
	})
	if found {
		return
	}
	c.subObjects = slices.Insert(c.subObjects, index, contract)
}

// SubObjects returns the recorded sub-object contracts in ID order.
func (c *IRGenerationContext) SubObjects() []*ast.ContractDefinition {
	return c.subObjects
}

// SetInlineAssemblySeen latches the flag recording that an inline assembly
// block was encountered; it disables assembly-level rewrites.
func (c *IRGenerationContext) SetInlineAssemblySeen() {
	c.inlineAssemblySeen = true
}

// InlineAssemblySeen returns the latch's state.
func (c *IRGenerationContext) InlineAssemblySeen() bool {
	return c.inlineAssemblySeen
}
