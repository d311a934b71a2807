package codegen

import (
	"bytes"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/solerr"
	"github.com/ethforge/solstack/utils"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"
)

// generator lowers one compilation half (runtime or creation) of a contract.
// Expressions evaluate onto the VM stack; named variables live in 32-byte
// memory frame slots handed out by the context, which keeps the stack
// discipline trivial: every expression leaves exactly one value (or none for
// void calls), every statement leaves none.
type generator struct {
	compiler          *Compiler
	ctx               *IRGenerationContext
	asm               *evmasm.Assembly
	compiledContracts map[*ast.ContractDefinition]*evmasm.Assembly

	// entryTags maps function IDs to their entry tags in this half.
	entryTags map[int64]evmasm.AssemblyItem

	// dispatchTags maps arities to the entry tags of their internal dispatch
	// routines.
	dispatchTags map[Arity]evmasm.AssemblyItem

	// subObjectData tracks creation objects already embedded in the data
	// segment: their offset and length.
	subObjectData map[*ast.ContractDefinition]embeddedObject

	// buf receives items while a fragment is being built.
	buf []evmasm.AssemblyItem

	// placeholderBody lowers the wrapped function body when a modifier's `_`
	// statement is reached.
	placeholderBody func() error
}

type embeddedObject struct {
	offset int
	length int
}

func newGenerator(c *Compiler, ctx *IRGenerationContext, asm *evmasm.Assembly, compiledContracts map[*ast.ContractDefinition]*evmasm.Assembly) *generator {
	return &generator{
		compiler:          c,
		ctx:               ctx,
		asm:               asm,
		compiledContracts: compiledContracts,
		entryTags:         make(map[int64]evmasm.AssemblyItem),
		dispatchTags:      make(map[Arity]evmasm.AssemblyItem),
		subObjectData:     make(map[*ast.ContractDefinition]embeddedObject),
	}
}

func (g *generator) emit(item evmasm.AssemblyItem)       { g.buf = append(g.buf, item) }
func (g *generator) emitOp(op evmasm.Instruction)        { g.emit(evmasm.NewOperation(op)) }
func (g *generator) emitPush(value *uint256.Int)         { g.emit(evmasm.NewPush(value)) }
func (g *generator) emitPushUint(value uint64)           { g.emit(evmasm.NewPushUint(value)) }
func (g *generator) emitPushTag(tag evmasm.AssemblyItem) { g.emit(evmasm.PushTagFor(tag)) }
func (g *generator) emitItems(items []evmasm.AssemblyItem) {
	g.buf = append(g.buf, items...)
}

// flush appends the buffered items to the assembly and clears the buffer.
func (g *generator) flush() {
	g.asm.AppendItems(g.buf)
	g.buf = nil
}

// entryTag returns (allocating on demand) the entry tag of a function in
// this half's assembly.
func (g *generator) entryTag(fn *ast.FunctionDefinition) evmasm.AssemblyItem {
	if tag, ok := g.entryTags[fn.ID()]; ok {
		return tag
	}
	tag := g.asm.NewTag()
	g.entryTags[fn.ID()] = tag
	return tag
}

// dispatchTag returns (allocating on demand) the entry tag of the internal
// dispatch routine for an arity.
func (g *generator) dispatchTag(arity Arity) evmasm.AssemblyItem {
	if tag, ok := g.dispatchTags[arity]; ok {
		return tag
	}
	tag := g.asm.NewTag()
	g.dispatchTags[arity] = tag
	return tag
}

// ensureFunctionFrame allocates frame slots for a function's parameters and
// return values if they do not have any yet. Parameters are allocated first
// and contiguously, which the constructor's argument copy relies on.
func (g *generator) ensureFunctionFrame(fn *ast.FunctionDefinition) {
	for _, param := range fn.Parameters.Parameters {
		if !g.ctx.IsLocalVariable(param) {
			g.ctx.AddLocalVariable(param)
		}
	}
	for _, param := range fn.ReturnParameters.Parameters {
		if !g.ctx.IsLocalVariable(param) {
			g.ctx.AddLocalVariable(param)
		}
	}
}

// generateRuntime emits the external dispatcher, lowers every reachable
// function through the generation queue and appends the collected routines.
// It returns the internal dispatch map consumed during generation so the
// creation half can seed its own context with it.
func (g *generator) generateRuntime(contract *ast.ContractDefinition) (InternalDispatchMap, error) {
	// Free memory pointer, placed past the (empty at runtime) immutables
	// area.
	reserved := g.ctx.ReservedMemory()
	g.emitPushUint(uint64(immutableMemoryStart + reserved))
	g.emitPushUint(64)
	g.emitOp(evmasm.MSTORE)

	interfaceFunctions := append([]*ast.FunctionDefinition{}, contract.InterfaceFunctions()...)
	slices.SortFunc(interfaceFunctions, func(a, b *ast.FunctionDefinition) int {
		selA := utils.Selector(a.Signature())
		selB := utils.Selector(b.Signature())
		return bytes.Compare(selA[:], selB[:])
	})

	// Selector dispatch: calldataload(0) / 2^224, compared against each
	// interface function's selector.
	wrapperTags := make(map[int64]evmasm.AssemblyItem)
	if len(interfaceFunctions) > 0 {
		g.emitPushUint(0)
		g.emitOp(evmasm.CALLDATALOAD)
		shift := new(uint256.Int).Lsh(uint256.NewInt(1), 224)
		g.emitPush(shift)
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.DIV)
		for _, fn := range interfaceFunctions {
			selector := utils.Selector(fn.Signature())
			tag := g.asm.NewTag()
			wrapperTags[fn.ID()] = tag
			g.emitOp(evmasm.DUP1)
			g.emitPush(new(uint256.Int).SetBytes(selector[:]))
			g.emitOp(evmasm.EQ)
			g.emitPushTag(tag)
			g.emitOp(evmasm.JUMPI)
		}
		g.emitOp(evmasm.POP)
	}
	g.emitOp(evmasm.STOP)

	for _, fn := range interfaceFunctions {
		if err := g.generateExternalWrapper(fn, wrapperTags[fn.ID()]); err != nil {
			return nil, err
		}
	}

	dispatch, err := g.runGenerationLoop()
	if err != nil {
		return nil, err
	}
	g.flush()
	g.asm.AppendItems(g.ctx.FunctionCollector().Emit())
	return dispatch, nil
}

// generateExternalWrapper emits the calldata decoding, internal call and
// return encoding for one externally callable function.
func (g *generator) generateExternalWrapper(fn *ast.FunctionDefinition, tag evmasm.AssemblyItem) error {
	g.emit(tag)
	g.ensureFunctionFrame(fn)

	abi := g.ctx.ABIFunctions()
	for i, param := range fn.Parameters.Parameters {
		continueTag := g.asm.NewTag()
		g.emitPushTag(continueTag)
		g.emitPushUint(uint64(4 + 32*i))
		g.emitPushTag(abi.DecodeWordFunction())
		g.emitOp(evmasm.JUMP)
		g.emit(continueTag)
		g.appendConversion(param.Type())
		g.emitPushUint(uint64(g.ctx.LocalVariable(param).MemoryOffset))
		g.emitOp(evmasm.MSTORE)
	}

	returnTag := g.asm.NewTag()
	g.emitPushTag(returnTag)
	g.ctx.EnqueueFunctionForCodeGeneration(fn)
	g.emitPushTag(g.entryTag(fn))
	g.emitOp(evmasm.JUMP)
	g.emit(returnTag)

	if len(fn.ReturnParameters.Parameters) > 0 {
		result := fn.ReturnParameters.Parameters[0]
		g.emitPushUint(uint64(g.ctx.LocalVariable(result).MemoryOffset))
		g.emitOp(evmasm.MLOAD)
		continueTag := g.asm.NewTag()
		g.emitPushTag(continueTag)
		g.emitOp(evmasm.SWAP1)
		g.emitPushTag(abi.EncodeWordFunction())
		g.emitOp(evmasm.JUMP)
		g.emit(continueTag)
		g.emitPushUint(32)
		g.emitPushUint(0)
		g.emitOp(evmasm.RETURN)
	} else {
		g.emitOp(evmasm.STOP)
	}
	return nil
}

// generateCreation emits constructor code: argument copy, state variable and
// immutable initialization, base constructors, the constructor body, and the
// copy of the runtime object.
func (g *generator) generateCreation(contract *ast.ContractDefinition, runtimeObject evmasm.LinkerObject, runtimeDispatch InternalDispatchMap) error {
	g.ctx.InitializeInternalDispatch(runtimeDispatch)

	chain := contract.LinearizedBases
	if len(chain) == 0 {
		chain = []*ast.ContractDefinition{contract}
	}
	// Immutables of the whole hierarchy live in the reserved region during
	// construction.
	for i := len(chain) - 1; i >= 0; i-- {
		for _, decl := range chain[i].StateVariables() {
			if decl.IsImmutable() {
				g.ctx.RegisterImmutableVariable(decl)
			}
		}
	}
	reserved := g.ctx.ReservedMemory()
	g.emitPushUint(uint64(immutableMemoryStart + reserved))
	g.emitPushUint(64)
	g.emitOp(evmasm.MSTORE)

	// Copy constructor arguments, appended after the code, into the
	// constructor's parameter slots.
	constructor := contract.Constructor()
	if constructor != nil && len(constructor.Parameters.Parameters) > 0 {
		g.ensureFunctionFrame(constructor)
		argBytes := 32 * len(constructor.Parameters.Parameters)
		firstSlot := g.ctx.LocalVariable(constructor.Parameters.Parameters[0]).MemoryOffset
		g.emitPushUint(uint64(argBytes))
		g.emitOp(evmasm.DUP1)
		g.emitOp(evmasm.CODESIZE)
		g.emitOp(evmasm.SUB)
		g.emitPushUint(uint64(firstSlot))
		g.emitOp(evmasm.CODECOPY)
	}

	// State variable initializers, least derived first.
	for i := len(chain) - 1; i >= 0; i-- {
		for _, decl := range chain[i].StateVariables() {
			if decl.Value == nil || decl.Mutability == ast.MutabilityConstant {
				continue
			}
			if err := g.lowerExpression(decl.Value); err != nil {
				return err
			}
			g.appendConversion(decl.Type())
			if decl.IsImmutable() {
				g.emitPushUint(uint64(g.ctx.ImmutableMemoryOffset(decl)))
				g.emitOp(evmasm.MSTORE)
			} else {
				g.storeStateVariable(decl)
			}
		}
	}

	// Base constructors run least derived first; the contract's own
	// constructor runs last.
	for i := len(chain) - 1; i >= 0; i-- {
		ctor := chain[i].Constructor()
		if ctor == nil || ctor.Body == nil {
			continue
		}
		g.ensureFunctionFrame(ctor)
		returnTag := g.asm.NewTag()
		g.emitPushTag(returnTag)
		g.ctx.EnqueueFunctionForCodeGeneration(ctor)
		g.emitPushTag(g.entryTag(ctor))
		g.emitOp(evmasm.JUMP)
		g.emit(returnTag)
	}

	// Copy the runtime object out of the data segment and return it.
	dataOffset := g.asm.AppendData(runtimeObject.Bytecode, runtimeObject.LinkReferences)
	g.emitPushUint(uint64(len(runtimeObject.Bytecode)))
	g.emit(evmasm.AssemblyItem{Type: evmasm.PushData})
	if dataOffset > 0 {
		g.emitPushUint(uint64(dataOffset))
		g.emitOp(evmasm.ADD)
	}
	g.emitPushUint(0)
	g.emitOp(evmasm.CODECOPY)
	g.emitPushUint(uint64(len(runtimeObject.Bytecode)))
	g.emitPushUint(0)
	g.emitOp(evmasm.RETURN)

	if _, err := g.runGenerationLoop(); err != nil {
		return err
	}
	g.flush()
	g.asm.AppendItems(g.ctx.FunctionCollector().Emit())
	return nil
}

// runGenerationLoop drains the function generation queue, lowering each
// function into the collector, and generates dispatch routines for every
// arity recorded in the internal dispatch map. Lowering can discover new
// call targets and dispatch arities, so the loop runs until both the queue
// and the dispatch map are exhausted. Returns the union of every consumed
// dispatch map.
func (g *generator) runGenerationLoop() (InternalDispatchMap, error) {
	consumed := make(InternalDispatchMap)
	var loweringErr error
	for {
		for !g.ctx.FunctionGenerationQueueEmpty() {
			fn := g.ctx.DequeueFunctionForCodeGeneration()
			if fn == nil {
				continue
			}
			name := IRFunctionName(fn)
			entry := g.entryTag(fn)
			g.ctx.FunctionCollector().CreateFunction(name,
				func() evmasm.AssemblyItem { return entry },
				func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
					items, err := g.lowerFunction(fn, entry)
					if err != nil && loweringErr == nil {
						loweringErr = err
					}
					return items
				})
			if loweringErr != nil {
				return nil, loweringErr
			}
		}
		if g.ctx.InternalDispatchClean() {
			break
		}
		dispatch := g.ctx.ConsumeInternalDispatchMap()
		for arity, set := range dispatch {
			if existing, ok := consumed[arity]; ok {
				for _, fn := range set.Members() {
					existing.Insert(fn)
				}
			} else {
				consumed[arity] = set
			}
		}
		if err := g.generateDispatchRoutines(dispatch); err != nil {
			return nil, err
		}
	}
	return consumed, nil
}

// generateDispatchRoutines emits one routine per arity that routes a call
// through an internal function pointer to the matching candidate. Stack on
// entry: [return address, arguments..., function ID].
func (g *generator) generateDispatchRoutines(dispatch InternalDispatchMap) error {
	for _, arity := range dispatch.SortedArities() {
		arity := arity
		set := dispatch[arity]
		name := "dispatch_internal_" + arity.String()
		entry := g.dispatchTag(arity)
		g.ctx.FunctionCollector().CreateFunction(name,
			func() evmasm.AssemblyItem { return entry },
			func(entry evmasm.AssemblyItem) []evmasm.AssemblyItem {
				return g.buildDispatchRoutine(entry, arity, set)
			})
	}
	return nil
}

func (g *generator) buildDispatchRoutine(entry evmasm.AssemblyItem, arity Arity, set *FunctionSet) []evmasm.AssemblyItem {
	saved := g.buf
	g.buf = nil
	g.emit(entry)

	type dispatchCase struct {
		fn  *ast.FunctionDefinition
		tag evmasm.AssemblyItem
	}
	var cases []dispatchCase
	for _, fn := range set.Members() {
		if fn == nil {
			continue
		}
		cases = append(cases, dispatchCase{fn: fn, tag: g.asm.NewTag()})
		g.emitOp(evmasm.DUP1)
		g.emitPushUint(internalFunctionID(fn))
		g.emitOp(evmasm.EQ)
		g.emitPushTag(cases[len(cases)-1].tag)
		g.emitOp(evmasm.JUMPI)
	}
	// No candidate matched (or none was ever assigned): trap. The entry
	// exists even with an empty candidate set so that such code compiles.
	g.emitItems(g.ctx.RevertReasonIfDebug("invalid internal function pointer"))
	g.emitPushTag(g.ctx.Utils().PanicFunction())
	g.emitOp(evmasm.JUMP)

	for _, target := range cases {
		fn := target.fn
		g.emit(target.tag)
		g.emitOp(evmasm.POP)
		g.ensureFunctionFrame(fn)
		params := fn.Parameters.Parameters
		for i := len(params) - 1; i >= 0; i-- {
			g.emitPushUint(uint64(g.ctx.LocalVariable(params[i]).MemoryOffset))
			g.emitOp(evmasm.MSTORE)
		}
		if arity.Outputs > 0 {
			continueTag := g.asm.NewTag()
			g.emitPushTag(continueTag)
			g.emitPushTag(g.entryTag(fn))
			g.emitOp(evmasm.JUMP)
			g.emit(continueTag)
			result := fn.ReturnParameters.Parameters[0]
			g.emitPushUint(uint64(g.ctx.LocalVariable(result).MemoryOffset))
			g.emitOp(evmasm.MLOAD)
			g.emitOp(evmasm.SWAP1)
			g.emitOp(evmasm.JUMP)
		} else {
			g.emitPushTag(g.entryTag(fn))
			g.emitOp(evmasm.JUMP)
		}
	}

	items := g.buf
	g.buf = saved
	return items
}

// lowerFunction builds the item fragment of one function: the entry tag,
// modifier wrapping, the body, and the return jump. Calling convention: the
// caller stores arguments into the callee's parameter slots and pushes the
// return address; the callee jumps back to it, leaving results in its return
// slots.
func (g *generator) lowerFunction(fn *ast.FunctionDefinition, entry evmasm.AssemblyItem) ([]evmasm.AssemblyItem, error) {
	saved := g.buf
	g.buf = nil
	g.emit(entry)
	g.ensureFunctionFrame(fn)

	if err := g.lowerModifiedBody(fn, 0); err != nil {
		g.buf = saved
		return nil, err
	}

	g.emitOp(evmasm.JUMP)
	items := g.buf
	g.buf = saved
	return items, nil
}

// lowerModifiedBody lowers the function body wrapped in its modifiers, from
// the outermost in. Base-constructor invocations in the modifier list are
// handled by the creation code and skipped here.
func (g *generator) lowerModifiedBody(fn *ast.FunctionDefinition, index int) error {
	for index < len(fn.Modifiers) {
		if _, isBaseCtor := fn.Modifiers[index].ModifierName.Declaration.(*ast.ContractDefinition); !isBaseCtor {
			break
		}
		index++
	}
	if index >= len(fn.Modifiers) {
		if fn.Body == nil {
			return solerr.NewInternalCompilerError("lowering of unimplemented function \"%s\"", fn.Name())
		}
		return g.lowerStatement(fn.Body)
	}

	invocation := fn.Modifiers[index]
	modifier := invocation.ModifierName.Declaration.(*ast.ModifierDefinition)
	if modifier.Parameters != nil {
		for i, param := range modifier.Parameters.Parameters {
			if !g.ctx.IsLocalVariable(param) {
				g.ctx.AddLocalVariable(param)
			}
			if err := g.lowerExpression(invocation.Arguments[i]); err != nil {
				return err
			}
			g.appendConversion(param.Type())
			g.emitPushUint(uint64(g.ctx.LocalVariable(param).MemoryOffset))
			g.emitOp(evmasm.MSTORE)
		}
	}

	outerPlaceholder := g.placeholderBody
	g.placeholderBody = func() error {
		return g.lowerModifiedBody(fn, index+1)
	}
	err := g.lowerStatement(modifier.Body)
	g.placeholderBody = outerPlaceholder
	return err
}

// lowerStatement lowers one statement; it leaves the stack as it found it.
func (g *generator) lowerStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Block:
		for _, inner := range s.Statements {
			if err := g.lowerStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfStatement:
		if err := g.lowerExpression(s.Condition); err != nil {
			return err
		}
		elseTag := g.asm.NewTag()
		endTag := g.asm.NewTag()
		g.emitOp(evmasm.ISZERO)
		g.emitPushTag(elseTag)
		g.emitOp(evmasm.JUMPI)
		if err := g.lowerStatement(s.TrueBody); err != nil {
			return err
		}
		g.emitPushTag(endTag)
		g.emitOp(evmasm.JUMP)
		g.emit(elseTag)
		if s.FalseBody != nil {
			if err := g.lowerStatement(s.FalseBody); err != nil {
				return err
			}
		}
		g.emit(endTag)
		return nil

	case *ast.WhileStatement:
		loopTag := g.asm.NewTag()
		endTag := g.asm.NewTag()
		g.emit(loopTag)
		if err := g.lowerExpression(s.Condition); err != nil {
			return err
		}
		g.emitOp(evmasm.ISZERO)
		g.emitPushTag(endTag)
		g.emitOp(evmasm.JUMPI)
		if err := g.lowerStatement(s.Body); err != nil {
			return err
		}
		g.emitPushTag(loopTag)
		g.emitOp(evmasm.JUMP)
		g.emit(endTag)
		return nil

	case *ast.ReturnStatement:
		if s.Expression != nil {
			if err := g.lowerExpression(s.Expression); err != nil {
				return err
			}
			result := s.FunctionReturnParameters.Parameters[0]
			g.appendConversion(result.Type())
			if !g.ctx.IsLocalVariable(result) {
				g.ctx.AddLocalVariable(result)
			}
			g.emitPushUint(uint64(g.ctx.LocalVariable(result).MemoryOffset))
			g.emitOp(evmasm.MSTORE)
		}
		// The return address is the only frame value on the stack.
		g.emitOp(evmasm.JUMP)
		return nil

	case *ast.ExpressionStatement:
		if err := g.lowerExpression(s.Expression); err != nil {
			return err
		}
		if !isVoid(s.Expression.ExpressionType()) {
			g.emitOp(evmasm.POP)
		}
		return nil

	case *ast.VariableDeclarationStatement:
		if !g.ctx.IsLocalVariable(s.Declaration) {
			g.ctx.AddLocalVariable(s.Declaration)
		}
		if s.Declaration.Value != nil {
			if err := g.lowerExpression(s.Declaration.Value); err != nil {
				return err
			}
			g.appendConversion(s.Declaration.Type())
			g.emitPushUint(uint64(g.ctx.LocalVariable(s.Declaration).MemoryOffset))
			g.emitOp(evmasm.MSTORE)
		}
		return nil

	case *ast.PlaceholderStatement:
		if g.placeholderBody == nil {
			return solerr.NewInternalCompilerError("placeholder statement outside modifier lowering")
		}
		return g.placeholderBody()

	case *ast.InlineAssemblyStatement:
		g.ctx.SetInlineAssemblySeen()
		return nil

	default:
		return solerr.NewInternalCompilerError("unknown statement node during lowering")
	}
}

func isVoid(t ast.Type) bool {
	_, ok := t.(*ast.VoidType)
	return ok
}

// internalFunctionID derives the runtime identifier of a function used as an
// internal function-pointer target. It hashes the canonical signature rather
// than using AST node IDs so that repeated compilations of the same sources
// emit byte-identical code.
func internalFunctionID(fn *ast.FunctionDefinition) uint64 {
	digest := utils.Keccak256([]byte(fn.Signature()))
	return uint64(digest[0])<<24 | uint64(digest[1])<<16 | uint64(digest[2])<<8 | uint64(digest[3])
}
