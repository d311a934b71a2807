package codegen

import (
	"math/big"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/evmasm"
	"github.com/ethforge/solstack/solerr"
	"github.com/ethforge/solstack/utils"
	"github.com/holiman/uint256"
)

// lowerExpression evaluates an expression onto the stack. Every expression
// leaves exactly one word, except calls to functions without return values,
// which leave none.
func (g *generator) lowerExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Literal:
		return g.lowerLiteral(e)

	case *ast.Identifier:
		return g.lowerIdentifier(e)

	case *ast.MemberAccess:
		return g.lowerMemberAccess(e)

	case *ast.Assignment:
		return g.lowerAssignment(e)

	case *ast.BinaryOperation:
		return g.lowerBinaryOperation(e)

	case *ast.UnaryOperation:
		if err := g.lowerExpression(e.SubExpression); err != nil {
			return err
		}
		switch e.Operator {
		case "!":
			g.emitOp(evmasm.ISZERO)
		case "~":
			g.emitOp(evmasm.NOT)
		case "-":
			g.emitPushUint(0)
			g.emitOp(evmasm.SUB)
		}
		return nil

	case *ast.FunctionCall:
		return g.lowerFunctionCall(e)

	default:
		return solerr.NewInternalCompilerError("unknown expression node during lowering")
	}
}

func (g *generator) lowerLiteral(e *ast.Literal) error {
	switch e.Kind {
	case ast.LiteralNumber:
		value, err := uint256FromDecimal(e.Value.BigInt())
		if err != nil {
			return solerr.NewInternalCompilerError("number literal \"%s\" out of range during lowering", e.Text)
		}
		g.emitPush(value)
	case ast.LiteralString:
		// String literals are left-aligned within a 32-byte word, matching
		// fixed-byte-array layout.
		word := make([]byte, 32)
		copy(word, e.Text)
		g.emitPush(new(uint256.Int).SetBytes(word))
	default:
		if e.BoolValue {
			g.emitPushUint(1)
		} else {
			g.emitPushUint(0)
		}
	}
	return nil
}

// uint256FromDecimal converts an exact integer to a VM word, two's
// complement for negative values.
func uint256FromDecimal(value *big.Int) (*uint256.Int, error) {
	if value.Sign() < 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), 256)
		value = new(big.Int).Add(modulus, value)
	}
	word, overflow := uint256.FromBig(value)
	if overflow {
		return nil, solerr.NewInternalCompilerError("value does not fit a 256-bit word")
	}
	return word, nil
}

func (g *generator) lowerIdentifier(e *ast.Identifier) error {
	switch decl := e.Declaration.(type) {
	case *ast.VariableDeclaration:
		return g.lowerVariableLoad(decl)

	case *ast.FunctionDefinition:
		// A function used as a value becomes its dispatch identifier; any
		// such function is a potential target of calls through pointers of
		// its arity.
		g.ctx.AddToInternalDispatch(decl)
		g.emitPushUint(internalFunctionID(decl))
		return nil

	case *ast.MagicVariableDeclaration:
		if decl.Name() == "this" {
			g.emitOp(evmasm.ADDRESS)
			return nil
		}
		return solerr.NewInternalCompilerError("magic variable \"%s\" used as a value", decl.Name())

	default:
		return solerr.NewInternalCompilerError("identifier \"%s\" bound to unexpected declaration", e.Name())
	}
}

// lowerVariableLoad pushes the current value of a variable.
func (g *generator) lowerVariableLoad(decl *ast.VariableDeclaration) error {
	switch {
	case g.ctx.IsLocalVariable(decl):
		g.emitPushUint(uint64(g.ctx.LocalVariable(decl).MemoryOffset))
		g.emitOp(evmasm.MLOAD)

	case decl.IsImmutable():
		// During construction the value lives in reserved memory; at runtime
		// the area is zero-initialized scratch, matching the unset value.
		if g.ctx.IsImmutableRegistered(decl) {
			g.emitPushUint(uint64(g.ctx.ImmutableMemoryOffset(decl)))
		} else {
			g.emitPushUint(uint64(immutableMemoryStart))
		}
		g.emitOp(evmasm.MLOAD)

	case decl.Mutability == ast.MutabilityConstant:
		if decl.Value == nil {
			return solerr.NewInternalCompilerError("constant \"%s\" has no value", decl.Name())
		}
		return g.lowerExpression(decl.Value)

	case g.ctx.IsStateVariable(decl):
		location := g.ctx.StorageLocationOfStateVariable(decl)
		g.emitPush(location.Slot)
		g.emitOp(evmasm.SLOAD)
		size := storageSize(decl)
		if location.ByteOffset > 0 {
			g.emitPush(shiftFactor(location.ByteOffset))
			g.emitOp(evmasm.SWAP1)
			g.emitOp(evmasm.DIV)
		}
		if size < 32 {
			g.emitPush(byteMask(size))
			g.emitOp(evmasm.AND)
		}

	default:
		return solerr.NewInternalCompilerError("variable \"%s\" has no storage assigned", decl.Name())
	}
	return nil
}

// lowerVariableStore stores the top of stack into a variable, consuming it.
func (g *generator) lowerVariableStore(decl *ast.VariableDeclaration) error {
	switch {
	case g.ctx.IsLocalVariable(decl):
		g.emitPushUint(uint64(g.ctx.LocalVariable(decl).MemoryOffset))
		g.emitOp(evmasm.MSTORE)
		return nil

	case decl.IsImmutable():
		g.emitPushUint(uint64(g.ctx.ImmutableMemoryOffset(decl)))
		g.emitOp(evmasm.MSTORE)
		return nil

	case g.ctx.IsStateVariable(decl):
		g.storeStateVariable(decl)
		return nil

	default:
		return solerr.NewInternalCompilerError("store to variable \"%s\" without storage", decl.Name())
	}
}

// storeStateVariable stores the top of stack into a state variable's slot,
// preserving neighbouring packed values.
func (g *generator) storeStateVariable(decl *ast.VariableDeclaration) {
	location := g.ctx.StorageLocationOfStateVariable(decl)
	size := storageSize(decl)
	if location.ByteOffset == 0 && size == 32 {
		g.emitPush(location.Slot)
		g.emitOp(evmasm.SSTORE)
		return
	}
	// Read-modify-write: clear the value's byte range, shift the new value
	// into position and combine.
	clearMask := new(uint256.Int).Not(
		new(uint256.Int).Mul(byteMask(size), shiftFactor(location.ByteOffset)))
	g.emitPush(location.Slot)
	g.emitOp(evmasm.SLOAD)
	g.emitPush(clearMask)
	g.emitOp(evmasm.AND)
	g.emitOp(evmasm.SWAP1)
	if location.ByteOffset > 0 {
		g.emitPush(shiftFactor(location.ByteOffset))
		g.emitOp(evmasm.MUL)
	}
	g.emitOp(evmasm.OR)
	g.emitPush(location.Slot)
	g.emitOp(evmasm.SSTORE)
}

func storageSize(decl *ast.VariableDeclaration) int {
	if decl.Type() != nil && decl.Type().StorageBytes() > 0 {
		return decl.Type().StorageBytes()
	}
	return 32
}

func byteMask(size int) *uint256.Int {
	if size >= 32 {
		return new(uint256.Int).Not(uint256.NewInt(0))
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(size*8))
	return mask.SubUint64(mask, 1)
}

func shiftFactor(byteOffset int) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(byteOffset*8))
}

func (g *generator) lowerMemberAccess(e *ast.MemberAccess) error {
	baseType := e.Expression.ExpressionType()
	if magic, isMagic := baseType.(*ast.MagicType); isMagic {
		op, err := magicMemberInstruction(magic.Kind, e.MemberName)
		if err != nil {
			return err
		}
		g.emitOp(op)
		return nil
	}
	// Contract members only appear as call targets; their lowering happens
	// at the call site.
	return solerr.NewInternalCompilerError("member \"%s\" used outside a call", e.MemberName)
}

// magicMemberInstruction maps a magic global's member to its instruction.
func magicMemberInstruction(kind, member string) (evmasm.Instruction, error) {
	switch kind + "." + member {
	case "msg.sender":
		return evmasm.CALLER, nil
	case "msg.value":
		return evmasm.CALLVALUE, nil
	case "msg.data":
		return evmasm.CALLDATASIZE, nil
	case "tx.origin":
		return evmasm.ORIGIN, nil
	case "tx.gasprice":
		return evmasm.GASPRICE, nil
	case "block.coinbase":
		return evmasm.COINBASE, nil
	case "block.timestamp":
		return evmasm.TIMESTAMP, nil
	case "block.number":
		return evmasm.NUMBER, nil
	}
	return evmasm.INVALID, solerr.NewInternalCompilerError("unknown magic member %s.%s", kind, member)
}

func (g *generator) lowerAssignment(e *ast.Assignment) error {
	target, ok := e.LeftHandSide.(*ast.Identifier)
	if !ok {
		return solerr.NewInternalCompilerError("assignment target is not an identifier")
	}
	decl, ok := target.Declaration.(*ast.VariableDeclaration)
	if !ok {
		return solerr.NewInternalCompilerError("assignment target is not a variable")
	}

	if e.Operator != "=" {
		// Compound assignment: current value, operand, operator.
		if err := g.lowerVariableLoad(decl); err != nil {
			return err
		}
		if err := g.lowerExpression(e.RightHandSide); err != nil {
			return err
		}
		switch e.Operator {
		case "+=":
			g.emitOp(evmasm.ADD)
		case "-=":
			g.emitOp(evmasm.SWAP1)
			g.emitOp(evmasm.SUB)
		case "*=":
			g.emitOp(evmasm.MUL)
		case "/=":
			g.emitOp(evmasm.SWAP1)
			g.emitOp(evmasm.DIV)
		}
	} else {
		if err := g.lowerExpression(e.RightHandSide); err != nil {
			return err
		}
	}
	g.appendConversion(decl.Type())

	// The assignment's value doubles as the expression result.
	g.emitOp(evmasm.DUP1)
	return g.lowerVariableStore(decl)
}

func (g *generator) lowerBinaryOperation(e *ast.BinaryOperation) error {
	// Short-circuit evaluation for the boolean connectives.
	if e.Operator == "&&" || e.Operator == "||" {
		if err := g.lowerExpression(e.LeftExpression); err != nil {
			return err
		}
		endTag := g.asm.NewTag()
		g.emitOp(evmasm.DUP1)
		if e.Operator == "&&" {
			g.emitOp(evmasm.ISZERO)
		}
		g.emitPushTag(endTag)
		g.emitOp(evmasm.JUMPI)
		g.emitOp(evmasm.POP)
		if err := g.lowerExpression(e.RightExpression); err != nil {
			return err
		}
		g.emit(endTag)
		return nil
	}

	if err := g.lowerExpression(e.LeftExpression); err != nil {
		return err
	}
	if err := g.lowerExpression(e.RightExpression); err != nil {
		return err
	}
	// The stack holds [left, right]; non-commutative instructions consume
	// the top operand first, so the pair is swapped for them.
	switch e.Operator {
	case "+":
		g.emitOp(evmasm.ADD)
	case "*":
		g.emitOp(evmasm.MUL)
	case "-":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.SUB)
	case "/":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.DIV)
	case "%":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.MOD)
	case "**":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.EXP)
	case "&":
		g.emitOp(evmasm.AND)
	case "|":
		g.emitOp(evmasm.OR)
	case "^":
		g.emitOp(evmasm.XOR)
	case "==":
		g.emitOp(evmasm.EQ)
	case "!=":
		g.emitOp(evmasm.EQ)
		g.emitOp(evmasm.ISZERO)
	case "<":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.LT)
	case ">":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.GT)
	case "<=":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.GT)
		g.emitOp(evmasm.ISZERO)
	case ">=":
		g.emitOp(evmasm.SWAP1)
		g.emitOp(evmasm.LT)
		g.emitOp(evmasm.ISZERO)
	default:
		return solerr.NewInternalCompilerError("unknown binary operator \"%s\"", e.Operator)
	}
	return nil
}

// appendConversion masks the top of stack down to the target type's value
// range where necessary. Word-sized values pass through unchanged.
func (g *generator) appendConversion(target ast.Type) {
	switch t := target.(type) {
	case *ast.IntegerType:
		if t.Bits < 256 && !t.Signed {
			g.emitPush(byteMask(t.Bits / 8))
			g.emitOp(evmasm.AND)
		}
	case *ast.AddressType, *ast.ContractType:
		g.emitPush(byteMask(20))
		g.emitOp(evmasm.AND)
	}
}

func (g *generator) lowerFunctionCall(e *ast.FunctionCall) error {
	// Explicit conversions evaluate the operand and mask it.
	if e.Kind == ast.CallTypeConversion {
		if err := g.lowerExpression(e.Arguments[0]); err != nil {
			return err
		}
		g.appendConversion(e.ExpressionType())
		return nil
	}

	// Contract creation.
	if newExpr, isNew := e.Expression.(*ast.NewExpression); isNew {
		return g.lowerContractCreation(e, newExpr)
	}

	// Direct calls to a known definition: plain identifiers and `super`
	// member accesses jump, contract-instance member accesses message-call.
	switch callee := e.Expression.(type) {
	case *ast.Identifier:
		switch decl := callee.Declaration.(type) {
		case *ast.FunctionDefinition:
			return g.lowerInternalCall(decl, e.Arguments)
		case *ast.MagicVariableDeclaration:
			return g.lowerBuiltinCall(decl, e.Arguments)
		case *ast.VariableDeclaration:
			return g.lowerDispatchCall(e, decl)
		}
	case *ast.MemberAccess:
		if fn, isFunction := callee.Declaration.(*ast.FunctionDefinition); isFunction {
			fnType := callee.ExpressionType().(*ast.FunctionType)
			if fnType.Location == ast.LocationExternal {
				return g.lowerExternalCall(fn, callee, e.Arguments)
			}
			return g.lowerInternalCall(fn, e.Arguments)
		}
	}
	return solerr.NewInternalCompilerError("unsupported call target during lowering")
}

// lowerInternalCall stores the arguments into the callee's parameter slots
// and jumps to its entry, pushing the continuation first.
func (g *generator) lowerInternalCall(fn *ast.FunctionDefinition, args []ast.Expression) error {
	g.ensureFunctionFrame(fn)
	for i, arg := range args {
		if err := g.lowerExpression(arg); err != nil {
			return err
		}
		param := fn.Parameters.Parameters[i]
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
	}
	return nil
}

// lowerBuiltinCall lowers calls to the built-in free functions.
func (g *generator) lowerBuiltinCall(decl *ast.MagicVariableDeclaration, args []ast.Expression) error {
	switch decl.Name() {
	case "suicide":
		if err := g.lowerExpression(args[0]); err != nil {
			return err
		}
		g.emitOp(evmasm.SELFDESTRUCT)
		return nil
	case "sha3":
		if err := g.lowerExpression(args[0]); err != nil {
			return err
		}
		// Hash one word from scratch memory.
		g.emitPushUint(0)
		g.emitOp(evmasm.MSTORE)
		g.emitPushUint(32)
		g.emitPushUint(0)
		g.emitOp(evmasm.KECCAK256)
		return nil
	}
	return solerr.NewInternalCompilerError("unknown built-in function \"%s\"", decl.Name())
}

// lowerExternalCall performs a message call: selector and arguments are
// written to scratch memory, the call is made, failure reverts, and the
// first return word (if any) is loaded.
func (g *generator) lowerExternalCall(fn *ast.FunctionDefinition, callee *ast.MemberAccess, args []ast.Expression) error {
	if err := g.lowerExpression(callee.Expression); err != nil {
		return err
	}

	selector := utils.Selector(fn.Signature())
	selectorWord := new(uint256.Int).Lsh(new(uint256.Int).SetBytes(selector[:]), 224)
	g.emitPush(selectorWord)
	g.emitPushUint(64)
	g.emitOp(evmasm.MLOAD)
	g.emitOp(evmasm.MSTORE)
	for i, arg := range args {
		if err := g.lowerExpression(arg); err != nil {
			return err
		}
		g.appendConversion(fn.Parameters.Parameters[i].Type())
		g.emitPushUint(64)
		g.emitOp(evmasm.MLOAD)
		g.emitPushUint(uint64(4 + 32*i))
		g.emitOp(evmasm.ADD)
		g.emitOp(evmasm.MSTORE)
	}

	outSize := 0
	if len(fn.ReturnParameters.Parameters) > 0 {
		outSize = 32
	}
	inSize := 4 + 32*len(args)
	// CALL(gas, address, value, in, insize, out, outsize); the target
	// address was pushed first and sits below the frame being built.
	g.emitPushUint(uint64(outSize))
	g.emitPushUint(64)
	g.emitOp(evmasm.MLOAD)
	g.emitPushUint(uint64(inSize))
	g.emitPushUint(64)
	g.emitOp(evmasm.MLOAD)
	g.emitPushUint(0)
	g.emit(evmasm.NewOperation(evmasm.DupInstruction(6)))
	g.emitOp(evmasm.GAS)
	g.emitOp(evmasm.CALL)

	// Failure of the callee propagates as a revert.
	g.emitOp(evmasm.ISZERO)
	g.emitPushTag(g.ctx.Utils().RevertFunction("external call failed"))
	g.emitOp(evmasm.JUMPI)
	g.emitOp(evmasm.POP)

	if outSize > 0 {
		g.emitPushUint(64)
		g.emitOp(evmasm.MLOAD)
		g.emitOp(evmasm.MLOAD)
	}
	return nil
}

// lowerDispatchCall routes a call through an internal function pointer: the
// arguments and the pointer value go on the stack and the arity's dispatch
// routine jumps to the matching candidate.
func (g *generator) lowerDispatchCall(e *ast.FunctionCall, pointer *ast.VariableDeclaration) error {
	fnType, ok := pointer.Type().(*ast.FunctionType)
	if !ok {
		return solerr.NewInternalCompilerError("call through non-function variable \"%s\"", pointer.Name())
	}
	arity := ArityFromFunctionType(fnType)
	g.ctx.InternalFunctionCalledThroughDispatch(arity)

	returnTag := g.asm.NewTag()
	g.emitPushTag(returnTag)
	for _, arg := range e.Arguments {
		if err := g.lowerExpression(arg); err != nil {
			return err
		}
	}
	if err := g.lowerVariableLoad(pointer); err != nil {
		return err
	}
	g.emitPushTag(g.dispatchTag(arity))
	g.emitOp(evmasm.JUMP)
	g.emit(returnTag)
	return nil
}

// lowerContractCreation embeds the created contract's deployment object in
// the data segment, copies it to fresh memory together with the constructor
// arguments, and issues a CREATE.
func (g *generator) lowerContractCreation(e *ast.FunctionCall, newExpr *ast.NewExpression) error {
	contract, ok := newExpr.ContractName.Declaration.(*ast.ContractDefinition)
	if !ok {
		return solerr.NewInternalCompilerError("creation of unresolved contract \"%s\"", newExpr.ContractName.Name())
	}
	g.ctx.SubObjectsCreated(contract)

	embedded, already := g.subObjectData[contract]
	if !already {
		asm, compiled := g.compiledContracts[contract]
		if !compiled {
			return solerr.NewCompilerError(
				"contract " + contract.Name() + " is created here but was not compiled yet")
		}
		object, err := asm.Assemble()
		if err != nil {
			return err
		}
		offset := g.asm.AppendData(object.Bytecode, object.LinkReferences)
		embedded = embeddedObject{offset: offset, length: len(object.Bytecode)}
		g.subObjectData[contract] = embedded
	}

	// Copy the creation object to free memory.
	g.emitPushUint(uint64(embedded.length))
	g.emit(evmasm.AssemblyItem{Type: evmasm.PushData})
	if embedded.offset > 0 {
		g.emitPushUint(uint64(embedded.offset))
		g.emitOp(evmasm.ADD)
	}
	g.emitPushUint(64)
	g.emitOp(evmasm.MLOAD)
	g.emitOp(evmasm.CODECOPY)

	// Append constructor arguments after the copied code.
	for i, arg := range e.Arguments {
		if err := g.lowerExpression(arg); err != nil {
			return err
		}
		g.emitPushUint(64)
		g.emitOp(evmasm.MLOAD)
		g.emitPushUint(uint64(embedded.length + 32*i))
		g.emitOp(evmasm.ADD)
		g.emitOp(evmasm.MSTORE)
	}

	// CREATE(value, offset, size) leaves the new contract's address.
	g.emitPushUint(uint64(embedded.length + 32*len(e.Arguments)))
	g.emitPushUint(64)
	g.emitOp(evmasm.MLOAD)
	g.emitPushUint(0)
	g.emitOp(evmasm.CREATE)
	return nil
}
