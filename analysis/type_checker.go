package analysis

import (
	"fmt"
	"math/big"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/solerr"
)

// CheckTypeRequirements re-walks a resolved contract and verifies operator
// applicability, assignment compatibility, function-override consistency,
// call-site argument conversion and visibility rules. Expression types are
// computed bottom-up and recorded on the AST for the code generator.
func (r *NameAndTypeResolver) CheckTypeRequirements(contract *ast.ContractDefinition) error {
	checker := &typeChecker{resolver: r, contract: contract}
	return checker.checkContract()
}

// typeChecker carries the state of a single contract's checking pass.
type typeChecker struct {
	resolver *NameAndTypeResolver
	contract *ast.ContractDefinition

	// insideModifier permits the `_` placeholder statement.
	insideModifier bool

	// currentFunction is the function whose body is being checked.
	currentFunction *ast.FunctionDefinition
}

func (c *typeChecker) checkContract() error {
	if err := c.checkOverrides(); err != nil {
		return err
	}
	if err := c.checkDuplicateSignatures(); err != nil {
		return err
	}

	for _, decl := range c.contract.StateVariables() {
		if decl.Value != nil {
			valueType, err := c.checkExpression(decl.Value)
			if err != nil {
				return err
			}
			if !c.convertible(decl.Value, valueType, decl.Type()) {
				return solerr.NewTypeError(
					fmt.Sprintf("cannot initialize variable of type %s with value of type %s",
						decl.Type(), valueType), decl.Location())
			}
		}
	}

	for _, mod := range c.contract.Modifiers() {
		c.insideModifier = true
		err := c.checkStatement(mod.Body)
		c.insideModifier = false
		if err != nil {
			return err
		}
	}

	for _, fn := range c.contract.DefinedFunctions() {
		if err := c.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

// checkOverrides verifies that functions redefined in a derived contract
// keep the argument and return types of the base definition.
func (c *typeChecker) checkOverrides() error {
	for _, fn := range c.contract.DefinedFunctions() {
		if fn.IsConstructor() {
			continue
		}
		fnType := fn.Type().(*ast.FunctionType)
		for _, base := range c.contract.LinearizedBases[1:] {
			for _, baseFn := range base.DefinedFunctions() {
				if baseFn.FunctionName != fn.FunctionName || baseFn.IsConstructor() {
					continue
				}
				baseType, ok := baseFn.Type().(*ast.FunctionType)
				if !ok {
					continue
				}
				if !fnType.HasEqualArgumentTypes(baseType) {
					// Distinct argument lists are an overload, not an
					// override.
					continue
				}
				if len(fnType.ReturnTypes) != len(baseType.ReturnTypes) {
					return solerr.NewTypeError(
						fmt.Sprintf("override of function \"%s\" changes return types", fn.Name()),
						fn.Location())
				}
				for i, ret := range fnType.ReturnTypes {
					if !ret.Equal(baseType.ReturnTypes[i]) {
						return solerr.NewTypeError(
							fmt.Sprintf("override of function \"%s\" changes return types", fn.Name()),
							fn.Location())
					}
				}
				if fn.Constant != baseFn.Constant {
					return solerr.NewTypeError(
						fmt.Sprintf("override of function \"%s\" changes mutability", fn.Name()),
						fn.Location())
				}
			}
		}
	}
	return nil
}

// checkDuplicateSignatures rejects two functions with identical canonical
// signatures in the same contract.
func (c *typeChecker) checkDuplicateSignatures() error {
	seen := make(map[string]*ast.FunctionDefinition)
	for _, fn := range c.contract.DefinedFunctions() {
		sig := fn.Signature()
		if _, dup := seen[sig]; dup {
			return solerr.NewDeclarationError(
				fmt.Sprintf("function with signature \"%s\" declared twice", sig), fn.Location())
		}
		seen[sig] = fn
	}
	return nil
}

func (c *typeChecker) checkFunction(fn *ast.FunctionDefinition) error {
	if fn.IsConstructor() && len(fn.ReturnParameters.Parameters) > 0 {
		return solerr.NewTypeError("constructor cannot have return values", fn.Location())
	}
	for _, inv := range fn.Modifiers {
		if err := c.checkModifierInvocation(inv); err != nil {
			return err
		}
	}
	if fn.Body == nil {
		return nil
	}
	c.currentFunction = fn
	err := c.checkStatement(fn.Body)
	c.currentFunction = nil
	return err
}

// checkModifierInvocation verifies the target is a modifier or a base
// contract and that the arguments convert.
func (c *typeChecker) checkModifierInvocation(inv *ast.ModifierInvocation) error {
	var paramTypes []ast.Type
	switch decl := inv.ModifierName.Declaration.(type) {
	case *ast.ModifierDefinition:
		paramTypes = decl.Type().(*ast.ModifierType).ParameterTypes
	case *ast.ContractDefinition:
		// Base constructor invocation.
		if ctor := decl.Constructor(); ctor != nil {
			paramTypes = ctor.Type().(*ast.FunctionType).ParameterTypes
		}
	default:
		return solerr.NewTypeError(
			fmt.Sprintf("\"%s\" is neither a modifier nor a base contract", inv.ModifierName.Name()),
			inv.Location())
	}
	if len(inv.Arguments) != len(paramTypes) {
		return solerr.NewTypeError(
			fmt.Sprintf("wrong argument count for modifier invocation \"%s\"", inv.ModifierName.Name()),
			inv.Location())
	}
	for i, arg := range inv.Arguments {
		argType, err := c.checkExpression(arg)
		if err != nil {
			return err
		}
		if !c.convertible(arg, argType, paramTypes[i]) {
			return solerr.NewTypeError(
				fmt.Sprintf("invalid type %s for modifier argument %d", argType, i+1), arg.Location())
		}
	}
	return nil
}

func (c *typeChecker) checkStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Block:
		for _, inner := range s.Statements {
			if err := c.checkStatement(inner); err != nil {
				return err
			}
		}
	case *ast.IfStatement:
		if err := c.checkCondition(s.Condition); err != nil {
			return err
		}
		if err := c.checkStatement(s.TrueBody); err != nil {
			return err
		}
		if s.FalseBody != nil {
			return c.checkStatement(s.FalseBody)
		}
	case *ast.WhileStatement:
		if err := c.checkCondition(s.Condition); err != nil {
			return err
		}
		return c.checkStatement(s.Body)
	case *ast.ReturnStatement:
		return c.checkReturn(s)
	case *ast.ExpressionStatement:
		_, err := c.checkExpression(s.Expression)
		return err
	case *ast.VariableDeclarationStatement:
		return c.checkLocalDeclaration(s)
	case *ast.PlaceholderStatement:
		if !c.insideModifier {
			return solerr.NewTypeError("placeholder statement outside modifier body", s.Location())
		}
	case *ast.InlineAssemblyStatement:
		// The body is opaque; the code generator records its presence.
	}
	return nil
}

func (c *typeChecker) checkCondition(condition ast.Expression) error {
	condType, err := c.checkExpression(condition)
	if err != nil {
		return err
	}
	if !condType.IsImplicitlyConvertibleTo(&ast.BoolType{}) {
		return solerr.NewTypeError(
			fmt.Sprintf("condition of type %s is not convertible to bool", condType), condition.Location())
	}
	return nil
}

func (c *typeChecker) checkReturn(ret *ast.ReturnStatement) error {
	if ret.Expression == nil {
		return nil
	}
	if ret.FunctionReturnParameters == nil || len(ret.FunctionReturnParameters.Parameters) == 0 {
		return solerr.NewTypeError("return with value in function without return parameters", ret.Location())
	}
	valueType, err := c.checkExpression(ret.Expression)
	if err != nil {
		return err
	}
	target := ret.FunctionReturnParameters.Parameters[0].Type()
	if !c.convertible(ret.Expression, valueType, target) {
		return solerr.NewTypeError(
			fmt.Sprintf("return value of type %s is not convertible to %s", valueType, target),
			ret.Location())
	}
	return nil
}

func (c *typeChecker) checkLocalDeclaration(s *ast.VariableDeclarationStatement) error {
	decl := s.Declaration
	if decl.Type() == nil {
		// `var` declaration: infer from the initializer, defaulting untyped
		// number literals to uint256.
		if decl.Value == nil {
			return solerr.NewTypeError(
				fmt.Sprintf("type of variable \"%s\" cannot be inferred without initializer", decl.Name()),
				decl.Location())
		}
		valueType, err := c.checkExpression(decl.Value)
		if err != nil {
			return err
		}
		if _, isRational := valueType.(*ast.RationalNumberType); isRational {
			valueType = ast.UInt256
		}
		decl.SetType(valueType)
		return nil
	}
	if decl.Value != nil {
		valueType, err := c.checkExpression(decl.Value)
		if err != nil {
			return err
		}
		if !c.convertible(decl.Value, valueType, decl.Type()) {
			return solerr.NewTypeError(
				fmt.Sprintf("cannot initialize variable of type %s with value of type %s",
					decl.Type(), valueType), decl.Location())
		}
	}
	return nil
}

// checkExpression computes and records the type of an expression bottom-up.
func (c *typeChecker) checkExpression(expr ast.Expression) (ast.Type, error) {
	typ, err := c.computeExpressionType(expr)
	if err != nil {
		return nil, err
	}
	expr.SetExpressionType(typ)
	return typ, nil
}

func (c *typeChecker) computeExpressionType(expr ast.Expression) (ast.Type, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		switch e.Kind {
		case ast.LiteralNumber:
			return &ast.RationalNumberType{}, nil
		case ast.LiteralString:
			return &ast.StringType{}, nil
		default:
			return &ast.BoolType{}, nil
		}

	case *ast.Identifier:
		if e.Declaration == nil {
			return nil, solerr.NewInternalCompilerError("unresolved identifier \"%s\" reached type checking", e.Name())
		}
		if contract, isContract := e.Declaration.(*ast.ContractDefinition); isContract {
			// A bare contract name is only valid as a conversion callee; the
			// call checking below consumes it.
			return &ast.ContractType{Contract: contract}, nil
		}
		if e.Declaration.Type() == nil {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("identifier \"%s\" used before its type is known", e.Name()), e.Location())
		}
		return e.Declaration.Type(), nil

	case *ast.ElementaryTypeNameExpression:
		typ := ast.ElementaryTypeByName(e.TypeName)
		if typ == nil {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("unknown elementary type \"%s\"", e.TypeName), e.Location())
		}
		return typ, nil

	case *ast.MemberAccess:
		return c.checkMemberAccess(e)

	case *ast.FunctionCall:
		return c.checkFunctionCall(e)

	case *ast.NewExpression:
		contract, ok := e.ContractName.Declaration.(*ast.ContractDefinition)
		if !ok {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("\"%s\" is not a contract", e.ContractName.Name()), e.Location())
		}
		ctorType := &ast.FunctionType{
			ReturnTypes: []ast.Type{&ast.ContractType{Contract: contract}},
			Location:    ast.LocationCreation,
		}
		if ctor := contract.Constructor(); ctor != nil {
			ctorType.ParameterTypes = ctor.Type().(*ast.FunctionType).ParameterTypes
		}
		return ctorType, nil

	case *ast.Assignment:
		return c.checkAssignment(e)

	case *ast.BinaryOperation:
		return c.checkBinaryOperation(e)

	case *ast.UnaryOperation:
		subType, err := c.checkExpression(e.SubExpression)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case "!":
			if !subType.IsImplicitlyConvertibleTo(&ast.BoolType{}) {
				return nil, solerr.NewTypeError("operator ! requires a bool operand", e.Location())
			}
			return &ast.BoolType{}, nil
		default: // "-" and "~"
			switch subType.(type) {
			case *ast.IntegerType, *ast.RationalNumberType:
				return subType, nil
			}
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s not applicable to type %s", e.Operator, subType), e.Location())
		}

	case *ast.IndexAccess:
		return nil, solerr.NewTypeError("index access is not supported for this type", e.Location())

	default:
		return nil, solerr.NewInternalCompilerError("unknown expression node during type checking")
	}
}

func (c *typeChecker) checkMemberAccess(e *ast.MemberAccess) (ast.Type, error) {
	baseType, err := c.checkExpression(e.Expression)
	if err != nil {
		return nil, err
	}
	switch base := baseType.(type) {
	case *ast.MagicType:
		member, ok := base.Members[e.MemberName]
		if !ok {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("member \"%s\" not found in %s", e.MemberName, base.Kind), e.Location())
		}
		return member, nil

	case *ast.ContractType:
		// Super lookup starts past the current contract in its own
		// linearization; plain contract members come from the target's chain.
		searchChain := base.Contract.LinearizedBases
		if len(searchChain) == 0 {
			searchChain = []*ast.ContractDefinition{base.Contract}
		}
		if base.Super {
			searchChain = c.contract.LinearizedBases[1:]
		}
		for _, contract := range searchChain {
			for _, fn := range contract.DefinedFunctions() {
				if fn.FunctionName != e.MemberName || fn.IsConstructor() {
					continue
				}
				e.Declaration = fn
				fnType := *fn.Type().(*ast.FunctionType)
				if !base.Super {
					// Calls on a contract instance go through a message call.
					fnType.Location = ast.LocationExternal
				}
				return &fnType, nil
			}
		}
		return nil, solerr.NewTypeError(
			fmt.Sprintf("member \"%s\" not found in contract %s", e.MemberName, base.Contract.Name()),
			e.Location())

	default:
		return nil, solerr.NewTypeError(
			fmt.Sprintf("member access not supported for type %s", baseType), e.Location())
	}
}

func (c *typeChecker) checkFunctionCall(e *ast.FunctionCall) (ast.Type, error) {
	// Explicit conversion with an elementary type callee.
	if typeExpr, isTypeExpr := e.Expression.(*ast.ElementaryTypeNameExpression); isTypeExpr {
		e.Kind = ast.CallTypeConversion
		target := ast.ElementaryTypeByName(typeExpr.TypeName)
		typeExpr.SetExpressionType(target)
		if len(e.Arguments) != 1 {
			return nil, solerr.NewTypeError("explicit conversion takes exactly one argument", e.Location())
		}
		argType, err := c.checkExpression(e.Arguments[0])
		if err != nil {
			return nil, err
		}
		if !c.explicitlyConvertible(e.Arguments[0], argType, target) {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("explicit conversion from %s to %s is not allowed", argType, target),
				e.Location())
		}
		return target, nil
	}

	// Explicit conversion with a contract-name callee, e.g. `Config(addr)`.
	if ident, isIdent := e.Expression.(*ast.Identifier); isIdent {
		if contract, isContract := ident.Declaration.(*ast.ContractDefinition); isContract {
			e.Kind = ast.CallTypeConversion
			target := &ast.ContractType{Contract: contract}
			ident.SetExpressionType(target)
			if len(e.Arguments) != 1 {
				return nil, solerr.NewTypeError("explicit conversion takes exactly one argument", e.Location())
			}
			argType, err := c.checkExpression(e.Arguments[0])
			if err != nil {
				return nil, err
			}
			if !c.explicitlyConvertible(e.Arguments[0], argType, target) {
				return nil, solerr.NewTypeError(
					fmt.Sprintf("explicit conversion from %s to %s is not allowed", argType, target),
					e.Location())
			}
			return target, nil
		}
	}

	// Ordinary calls, creations and calls through function-typed variables.
	e.Kind = ast.CallFunction
	calleeType, err := c.checkExpression(e.Expression)
	if err != nil {
		return nil, err
	}
	fnType, isFunction := calleeType.(*ast.FunctionType)
	if !isFunction {
		return nil, solerr.NewTypeError(
			fmt.Sprintf("type %s is not callable", calleeType), e.Location())
	}
	if len(e.Arguments) != len(fnType.ParameterTypes) {
		return nil, solerr.NewTypeError(
			fmt.Sprintf("wrong argument count for function call: %d given, %d expected",
				len(e.Arguments), len(fnType.ParameterTypes)), e.Location())
	}
	for i, arg := range e.Arguments {
		argType, err := c.checkExpression(arg)
		if err != nil {
			return nil, err
		}
		if !c.convertible(arg, argType, fnType.ParameterTypes[i]) {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("invalid type %s for argument %d in function call", argType, i+1),
				arg.Location())
		}
	}
	switch len(fnType.ReturnTypes) {
	case 0:
		return &ast.VoidType{}, nil
	default:
		return fnType.ReturnTypes[0], nil
	}
}

func (c *typeChecker) checkAssignment(e *ast.Assignment) (ast.Type, error) {
	if err := c.checkLValue(e.LeftHandSide); err != nil {
		return nil, err
	}
	lhsType, err := c.checkExpression(e.LeftHandSide)
	if err != nil {
		return nil, err
	}
	rhsType, err := c.checkExpression(e.RightHandSide)
	if err != nil {
		return nil, err
	}
	if !c.convertible(e.RightHandSide, rhsType, lhsType) {
		return nil, solerr.NewTypeError(
			fmt.Sprintf("cannot assign value of type %s to variable of type %s", rhsType, lhsType),
			e.Location())
	}
	if e.Operator != "=" {
		if _, isInteger := lhsType.(*ast.IntegerType); !isInteger {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s not applicable to type %s", e.Operator, lhsType), e.Location())
		}
	}
	return lhsType, nil
}

// checkLValue verifies the target of an assignment is a writable variable.
func (c *typeChecker) checkLValue(expr ast.Expression) error {
	ident, ok := expr.(*ast.Identifier)
	if !ok {
		return solerr.NewTypeError("expression is not assignable", expr.Location())
	}
	decl, isVariable := ident.Declaration.(*ast.VariableDeclaration)
	if !isVariable {
		return solerr.NewTypeError(
			fmt.Sprintf("cannot assign to \"%s\"", ident.Name()), expr.Location())
	}
	if decl.Mutability == ast.MutabilityConstant {
		return solerr.NewTypeError(
			fmt.Sprintf("cannot assign to constant variable \"%s\"", decl.Name()), expr.Location())
	}
	if decl.IsImmutable() && (c.currentFunction == nil || !c.currentFunction.IsConstructor()) {
		return solerr.NewTypeError(
			fmt.Sprintf("immutable variable \"%s\" can only be assigned in the constructor", decl.Name()),
			expr.Location())
	}
	return nil
}

func (c *typeChecker) checkBinaryOperation(e *ast.BinaryOperation) (ast.Type, error) {
	leftType, err := c.checkExpression(e.LeftExpression)
	if err != nil {
		return nil, err
	}
	rightType, err := c.checkExpression(e.RightExpression)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case "&&", "||":
		boolType := &ast.BoolType{}
		if !leftType.IsImplicitlyConvertibleTo(boolType) || !rightType.IsImplicitlyConvertibleTo(boolType) {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s requires bool operands", e.Operator), e.Location())
		}
		e.CommonType = boolType
		return boolType, nil

	case "==", "!=", "<", ">", "<=", ">=":
		common := commonType(leftType, rightType)
		if common == nil {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s not applicable to types %s and %s",
					e.Operator, leftType, rightType), e.Location())
		}
		e.CommonType = common
		return &ast.BoolType{}, nil

	default:
		common := commonType(leftType, rightType)
		if common == nil {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s not applicable to types %s and %s",
					e.Operator, leftType, rightType), e.Location())
		}
		if _, isInteger := common.(*ast.IntegerType); !isInteger {
			return nil, solerr.NewTypeError(
				fmt.Sprintf("operator %s requires numeric operands", e.Operator), e.Location())
		}
		e.CommonType = common
		return common, nil
	}
}

// commonType returns the type both operands convert to, defaulting pairs of
// untyped number literals to uint256 for arithmetic.
func commonType(a, b ast.Type) ast.Type {
	_, aRational := a.(*ast.RationalNumberType)
	_, bRational := b.(*ast.RationalNumberType)
	if aRational && bRational {
		return ast.UInt256
	}
	if aRational {
		return b
	}
	if bRational {
		return a
	}
	if a.IsImplicitlyConvertibleTo(b) {
		return b
	}
	if b.IsImplicitlyConvertibleTo(a) {
		return a
	}
	return nil
}

// convertible applies the implicit conversion rules, adding value-level
// bounds checking when the source expression is a number literal.
func (c *typeChecker) convertible(expr ast.Expression, from, to ast.Type) bool {
	if literal, isLiteral := expr.(*ast.Literal); isLiteral && literal.Kind == ast.LiteralNumber {
		return literalFits(literal, to)
	}
	if literal, isLiteral := expr.(*ast.Literal); isLiteral && literal.Kind == ast.LiteralString {
		if target, isBytes := to.(*ast.FixedBytesType); isBytes {
			return len(literal.Text) <= target.Bytes
		}
	}
	return from.IsImplicitlyConvertibleTo(to)
}

// explicitlyConvertible applies the explicit conversion rules: anything
// implicitly convertible, plus conversions between the word-sized value
// types (integers, address, fixed bytes, contracts).
func (c *typeChecker) explicitlyConvertible(expr ast.Expression, from, to ast.Type) bool {
	if c.convertible(expr, from, to) {
		return true
	}
	isWordType := func(t ast.Type) bool {
		switch t.(type) {
		case *ast.IntegerType, *ast.AddressType, *ast.FixedBytesType, *ast.ContractType:
			return true
		}
		return false
	}
	return isWordType(from) && isWordType(to)
}

// literalFits verifies a number literal's exact value is representable in
// the target type.
func literalFits(literal *ast.Literal, to ast.Type) bool {
	if !literal.Value.IsInteger() {
		return false
	}
	value := literal.Value.BigInt()
	switch target := to.(type) {
	case *ast.IntegerType:
		return fitsBits(value, target.Bits, target.Signed)
	case *ast.AddressType:
		return value.Sign() >= 0 && value.BitLen() <= 160
	case *ast.FixedBytesType:
		return value.Sign() >= 0 && value.BitLen() <= target.Bytes*8
	case *ast.RationalNumberType:
		return true
	}
	return false
}

func fitsBits(value *big.Int, bits int, signed bool) bool {
	if !signed {
		return value.Sign() >= 0 && value.BitLen() <= bits
	}
	if value.Sign() >= 0 {
		return value.BitLen() <= bits-1
	}
	// The most negative value -2^(bits-1) is representable.
	bound := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	return new(big.Int).Neg(value).Cmp(bound) <= 0
}
