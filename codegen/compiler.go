package codegen

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/utils"
	"github.com/holiman/uint256"
)

// Compiler emits the creation and runtime assembly of a single contract. A
// fresh instance is used per contract; the driver keeps the instance alive
// to answer assembly-level queries afterwards.
type Compiler struct {
	optimize      bool
	runs          int
	revertStrings RevertStrings

	contract *ast.ContractDefinition

	// asm and context belong to the creation code; runtimeAsm and
	// runtimeContext to the runtime code.
	asm            *evmasm.Assembly
	runtimeAsm     *evmasm.Assembly
	context        *IRGenerationContext
	runtimeContext *IRGenerationContext

	// entryTags maps function IDs to their entry tags in the runtime code.
	entryTags map[int64]evmasm.AssemblyItem

	object        evmasm.LinkerObject
	runtimeObject evmasm.LinkerObject
}

// NewCompiler creates a per-contract compiler with the given optimizer
// settings. The settings are recorded on the compiler; the emitted code
// does not depend on them.
func NewCompiler(optimize bool, runs int) *Compiler {
	return &Compiler{
		optimize:  optimize,
		runs:      runs,
		entryTags: make(map[int64]evmasm.AssemblyItem),
	}
}

// SetRevertStrings selects the revert-string mode for subsequently compiled
// code.
func (c *Compiler) SetRevertStrings(mode RevertStrings) {
	c.revertStrings = mode
}

// CompileContract lowers a fully-implemented contract to creation and
// runtime bytecode. Contracts compiled earlier in the same run are made
// available through compiledContracts so creation expressions can embed
// their objects.
func (c *Compiler) CompileContract(contract *ast.ContractDefinition, compiledContracts map[*ast.ContractDefinition]*evmasm.Assembly) error {
	c.contract = contract

	// Runtime half first: the creation half embeds its output.
	c.runtimeContext = NewIRGenerationContext(c.revertStrings)
	c.runtimeAsm = evmasm.NewAssembly()
	c.runtimeContext.AttachAssembly(c.runtimeAsm)
	c.runtimeContext.SetMostDerivedContract(contract)
	applyStorageLayout(c.runtimeContext, contract)

	runtimeGen := newGenerator(c, c.runtimeContext, c.runtimeAsm, compiledContracts)
	runtimeDispatch, err := runtimeGen.generateRuntime(contract)
	if err != nil {
		return err
	}
	c.entryTags = runtimeGen.entryTags

	c.runtimeObject, err = c.runtimeAsm.Assemble()
	if err != nil {
		return err
	}
	// The metadata trailer marks the runtime code with a hash of its
	// assembly listing; it sits past every reachable instruction.
	metadataHash := utils.Keccak256([]byte(c.runtimeAsm.String()))
	c.runtimeObject.Bytecode = evmasm.AppendMetadataTrailer(c.runtimeObject.Bytecode, metadataHash)

	// Creation half.
	c.context = NewIRGenerationContext(c.revertStrings)
	c.asm = evmasm.NewAssembly()
	c.context.AttachAssembly(c.asm)
	c.context.SetMostDerivedContract(contract)
	applyStorageLayout(c.context, contract)

	creationGen := newGenerator(c, c.context, c.asm, compiledContracts)
	if err := creationGen.generateCreation(contract, c.runtimeObject, runtimeDispatch); err != nil {
		return err
	}
	c.object, err = c.asm.Assemble()
	return err
}

// CompileClone emits the small deployment object whose runtime delegates
// every call to an already-deployed copy of the contract's runtime code. The
// master copy's address is left as a link reference resolved at deployment.
func (c *Compiler) CompileClone(contract *ast.ContractDefinition, _ map[*ast.ContractDefinition]*evmasm.Assembly) error {
	c.contract = contract

	c.runtimeContext = NewIRGenerationContext(c.revertStrings)
	c.runtimeAsm = evmasm.NewAssembly()
	c.runtimeContext.AttachAssembly(c.runtimeAsm)
	c.runtimeContext.SetMostDerivedContract(contract)

	// Clone runtime: forward the full call data to the master copy and stop.
	asm := c.runtimeAsm
	asm.AppendOperation(evmasm.CALLDATASIZE)
	asm.AppendPushUint(0)
	asm.AppendPushUint(0)
	asm.AppendOperation(evmasm.CALLDATACOPY)
	asm.AppendPushUint(0)
	asm.AppendPushUint(0)
	asm.AppendOperation(evmasm.CALLDATASIZE)
	asm.AppendPushUint(0)
	asm.AppendPushUint(0)
	asm.AppendLibraryAddress(contract.Name() + "_master")
	asm.AppendOperation(evmasm.GAS)
	asm.AppendOperation(evmasm.CALLCODE)
	asm.AppendOperation(evmasm.POP)
	asm.AppendOperation(evmasm.STOP)

	var err error
	c.runtimeObject, err = c.runtimeAsm.Assemble()
	if err != nil {
		return err
	}

	// Clone creation: return the clone runtime verbatim.
	c.context = NewIRGenerationContext(c.revertStrings)
	c.asm = evmasm.NewAssembly()
	c.context.AttachAssembly(c.asm)
	c.context.SetMostDerivedContract(contract)
	creation := c.asm
	creation.AppendData(c.runtimeObject.Bytecode, c.runtimeObject.LinkReferences)
	creation.Append(evmasm.AssemblyItem{Type: evmasm.PushDataSize})
	creation.Append(evmasm.AssemblyItem{Type: evmasm.PushData})
	creation.AppendPushUint(0)
	creation.AppendOperation(evmasm.CODECOPY)
	creation.Append(evmasm.AssemblyItem{Type: evmasm.PushDataSize})
	creation.AppendPushUint(0)
	creation.AppendOperation(evmasm.RETURN)

	c.object, err = c.asm.Assemble()
	return err
}

// AssembledObject returns the creation (deployment) bytecode object.
func (c *Compiler) AssembledObject() evmasm.LinkerObject {
	return c.object
}

// RuntimeObject returns the runtime bytecode object.
func (c *Compiler) RuntimeObject() evmasm.LinkerObject {
	return c.runtimeObject
}

// Assembly returns the creation assembly.
func (c *Compiler) Assembly() *evmasm.Assembly {
	return c.asm
}

// AssemblyItems returns the creation assembly's item stream.
func (c *Compiler) AssemblyItems() []evmasm.AssemblyItem {
	if c.asm == nil {
		return nil
	}
	return c.asm.Items()
}

// RuntimeAssemblyItems returns the runtime assembly's item stream.
func (c *Compiler) RuntimeAssemblyItems() []evmasm.AssemblyItem {
	if c.runtimeAsm == nil {
		return nil
	}
	return c.runtimeAsm.Items()
}

// FunctionEntryLabel returns the runtime entry tag of a compiled function,
// or an undefined item when the function was never lowered.
func (c *Compiler) FunctionEntryLabel(fn *ast.FunctionDefinition) evmasm.AssemblyItem {
	if tag, ok := c.entryTags[fn.ID()]; ok {
		return tag
	}
	return evmasm.AssemblyItem{Type: evmasm.UndefinedItem}
}

// StreamAssembly writes the creation and runtime assembly listings to the
// given writer, as JSON when requested, and returns nothing else. The text
// listing is headed by the names of the given sources, in sorted order; the
// source texts themselves are not written.
func (c *Compiler) StreamAssembly(w io.Writer, sourceCodes map[string]string, jsonFormat bool) error {
	if jsonFormat {
		document := map[string]any{
			".code":    itemListing(c.AssemblyItems()),
			".runtime": itemListing(c.RuntimeAssemblyItems()),
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(document)
	}
	for _, name := range utils.SortedKeys(sourceCodes) {
		if _, err := fmt.Fprintf(w, "======= %s =======\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, ".code\n%s", c.asm.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, ".runtime\n%s", c.runtimeAsm.String())
	return err
}

// itemListing renders items for the JSON assembly document.
func itemListing(items []evmasm.AssemblyItem) []string {
	listing := make([]string, 0, len(items))
	for _, item := range items {
		listing = append(listing, item.String())
	}
	return listing
}

// applyStorageLayout computes the storage layout of a contract's state
// variables across its linearized inheritance chain and records it in the
// context. Variables of the least derived base come first; values narrower
// than a slot are packed together.
func applyStorageLayout(ctx *IRGenerationContext, contract *ast.ContractDefinition) {
	chain := contract.LinearizedBases
	if len(chain) == 0 {
		chain = []*ast.ContractDefinition{contract}
	}
	slot := uint256.NewInt(0)
	byteOffset := 0
	for i := len(chain) - 1; i >= 0; i-- {
		for _, decl := range chain[i].StateVariables() {
			if decl.Mutability != ast.MutabilityMutable {
				continue
			}
			size := 32
			if decl.Type() != nil && decl.Type().StorageBytes() > 0 {
				size = decl.Type().StorageBytes()
			}
			if byteOffset+size > 32 {
				slot = new(uint256.Int).AddUint64(slot, 1)
				byteOffset = 0
			}
			ctx.AddStateVariable(decl, slot, byteOffset)
			byteOffset += size
			if byteOffset == 32 {
				slot = new(uint256.Int).AddUint64(slot, 1)
				byteOffset = 0
			}
		}
	}
}
