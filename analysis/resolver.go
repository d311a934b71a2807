package analysis

import (
	"fmt"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/solerr"
)

// NameAndTypeResolver drives the per-contract semantic passes. It owns the
// global declaration scope (seeded with the built-ins) and one scope per
// contract and per function. The table holds weak references only: AST
// ownership stays with the parsed source units.
type NameAndTypeResolver struct {
	globalScope *DeclarationContainer

	// contractScopes and functionScopes hold the per-declaration scopes
	// created during registration.
	contractScopes map[*ast.ContractDefinition]*DeclarationContainer
	functionScopes map[ast.Node]*DeclarationContainer
}

// NewNameAndTypeResolver creates a resolver whose global scope is seeded
// with the given built-in declarations.
func NewNameAndTypeResolver(globals []ast.Declaration) *NameAndTypeResolver {
	r := &NameAndTypeResolver{
		globalScope:    NewDeclarationContainer(nil),
		contractScopes: make(map[*ast.ContractDefinition]*DeclarationContainer),
		functionScopes: make(map[ast.Node]*DeclarationContainer),
	}
	for _, decl := range globals {
		r.globalScope.RegisterDeclaration(decl, "", false)
	}
	return r
}

// RegisterDeclarations walks a source unit and registers every declared name
// into the declaration table: contracts into the global scope, members into
// their contract's scope, parameters and locals into their function's scope.
// Shadowing between functions and non-functions is rejected here.
func (r *NameAndTypeResolver) RegisterDeclarations(unit *ast.SourceUnit) error {
	for _, node := range unit.Nodes {
		contract, ok := node.(*ast.ContractDefinition)
		if !ok {
			continue
		}
		if !r.globalScope.RegisterDeclaration(contract, "", false) {
			return solerr.NewDeclarationError(
				fmt.Sprintf("identifier \"%s\" already declared", contract.Name()), contract.Location())
		}
		scope := NewDeclarationContainer(r.globalScope)
		r.contractScopes[contract] = scope

		for _, member := range contract.Members {
			switch decl := member.(type) {
			case *ast.FunctionDefinition:
				decl.Scope = contract
				if !scope.RegisterDeclaration(decl, "", false) {
					return solerr.NewDeclarationError(
						fmt.Sprintf("identifier \"%s\" already declared", decl.Name()), decl.Location())
				}
				r.registerFunctionScope(decl, scope)
			case *ast.VariableDeclaration:
				decl.Scope = contract
				decl.SetStateVariable()
				if !scope.RegisterDeclaration(decl, "", false) {
					return solerr.NewDeclarationError(
						fmt.Sprintf("identifier \"%s\" already declared", decl.Name()), decl.Location())
				}
			case *ast.ModifierDefinition:
				if !scope.RegisterDeclaration(decl, "", false) {
					return solerr.NewDeclarationError(
						fmt.Sprintf("identifier \"%s\" already declared", decl.Name()), decl.Location())
				}
				r.registerModifierScope(decl, scope)
			}
		}
	}
	return nil
}

// registerFunctionScope creates the function's scope and registers its
// parameters, return parameters and local declarations. The language uses
// function-level scoping, so locals from nested blocks land in one table.
func (r *NameAndTypeResolver) registerFunctionScope(fn *ast.FunctionDefinition, enclosing *DeclarationContainer) {
	scope := NewDeclarationContainer(enclosing)
	r.functionScopes[fn] = scope
	for _, param := range fn.Parameters.Parameters {
		scope.RegisterDeclaration(param, "", false)
	}
	if fn.ReturnParameters != nil {
		for _, param := range fn.ReturnParameters.Parameters {
			scope.RegisterDeclaration(param, "", false)
		}
	}
	if fn.Body != nil {
		registerLocals(fn.Body, scope)
	}
}

// registerModifierScope creates the modifier's scope with its parameters.
func (r *NameAndTypeResolver) registerModifierScope(mod *ast.ModifierDefinition, enclosing *DeclarationContainer) {
	scope := NewDeclarationContainer(enclosing)
	r.functionScopes[mod] = scope
	if mod.Parameters != nil {
		for _, param := range mod.Parameters.Parameters {
			scope.RegisterDeclaration(param, "", false)
		}
	}
	if mod.Body != nil {
		registerLocals(mod.Body, scope)
	}
}

// registerLocals collects local variable declarations from a statement tree
// into the given function scope.
func registerLocals(stmt ast.Statement, scope *DeclarationContainer) {
	switch s := stmt.(type) {
	case *ast.Block:
		for _, inner := range s.Statements {
			registerLocals(inner, scope)
		}
	case *ast.IfStatement:
		registerLocals(s.TrueBody, scope)
		if s.FalseBody != nil {
			registerLocals(s.FalseBody, scope)
		}
	case *ast.WhileStatement:
		registerLocals(s.Body, scope)
	case *ast.VariableDeclarationStatement:
		scope.RegisterDeclaration(s.Declaration, "", false)
	}
}

// UpdateDeclaration registers a declaration into the global scope, replacing
// any previous declaration of the same name. Used to rebind `this` and
// `super` as resolution moves between contracts.
func (r *NameAndTypeResolver) UpdateDeclaration(decl ast.Declaration) {
	r.globalScope.RegisterDeclaration(decl, "", true)
}

// ResolveNamesAndTypes resolves base-contract references, computes the
// inheritance linearization, resolves every type annotation and binds every
// identifier in the contract to its declaration. After this pass the
// contract's AST is fully typed.
func (r *NameAndTypeResolver) ResolveNamesAndTypes(contract *ast.ContractDefinition) error {
	// Resolve base contract names first; linearization depends on them.
	var bases []*ast.ContractDefinition
	for _, spec := range contract.BaseContracts {
		decls := r.globalScope.ResolveName(spec.BaseName.Name(), false)
		if len(decls) == 0 {
			return solerr.NewDeclarationError(
				fmt.Sprintf("identifier \"%s\" not found", spec.BaseName.Name()), spec.Location())
		}
		base, ok := decls[0].(*ast.ContractDefinition)
		if !ok {
			return solerr.NewTypeError(
				fmt.Sprintf("\"%s\" is not a contract", spec.BaseName.Name()), spec.Location())
		}
		spec.BaseName.Declaration = base
		bases = append(bases, base)
	}

	linearized, err := linearizeInheritance(contract, bases)
	if err != nil {
		return err
	}
	contract.LinearizedBases = linearized
	contract.SetType(&ast.ContractType{Contract: contract})

	// Resolve member types, then bodies.
	for _, member := range contract.Members {
		switch decl := member.(type) {
		case *ast.VariableDeclaration:
			if err := r.resolveVariableType(contract, decl); err != nil {
				return err
			}
			if decl.Value != nil {
				if err := r.resolveExpression(contract, nil, decl.Value); err != nil {
					return err
				}
			}
		case *ast.FunctionDefinition:
			if err := r.resolveFunctionSignature(contract, decl); err != nil {
				return err
			}
		case *ast.ModifierDefinition:
			if decl.Parameters != nil {
				for _, param := range decl.Parameters.Parameters {
					if err := r.resolveVariableType(contract, param); err != nil {
						return err
					}
				}
			}
			var paramTypes []ast.Type
			for _, param := range decl.Parameters.Parameters {
				paramTypes = append(paramTypes, param.Type())
			}
			decl.SetType(&ast.ModifierType{ParameterTypes: paramTypes})
		}
	}

	// Signatures across the whole contract are known now; resolve bodies.
	for _, member := range contract.Members {
		switch decl := member.(type) {
		case *ast.FunctionDefinition:
			decl.SetType(ast.NewFunctionTypeFromDefinition(decl))
			if err := r.resolveFunctionBody(contract, decl); err != nil {
				return err
			}
		case *ast.ModifierDefinition:
			if decl.Body != nil {
				if err := r.resolveStatement(contract, decl, decl.Body); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolveVariableType resolves a declaration's type annotation and records
// the resulting semantic type on the declaration.
func (r *NameAndTypeResolver) resolveVariableType(contract *ast.ContractDefinition, decl *ast.VariableDeclaration) error {
	if decl.TypeName == nil {
		// `var` locals take the type of their initializer during checking.
		return nil
	}
	typ, err := r.resolveTypeName(contract, decl.TypeName)
	if err != nil {
		return err
	}
	decl.SetType(typ)
	return nil
}

// resolveTypeName turns a syntactic type annotation into a semantic type.
func (r *NameAndTypeResolver) resolveTypeName(contract *ast.ContractDefinition, typeName *ast.TypeName) (ast.Type, error) {
	if typeName.ResolvedType != nil {
		return typeName.ResolvedType, nil
	}
	if typeName.IsFunctionType() {
		ft := &ast.FunctionType{}
		for _, param := range typeName.FunctionTypeParameters.Parameters {
			t, err := r.resolveTypeName(contract, param.TypeName)
			if err != nil {
				return nil, err
			}
			param.SetType(t)
			ft.ParameterTypes = append(ft.ParameterTypes, t)
		}
		for _, param := range typeName.FunctionTypeReturns.Parameters {
			t, err := r.resolveTypeName(contract, param.TypeName)
			if err != nil {
				return nil, err
			}
			param.SetType(t)
			ft.ReturnTypes = append(ft.ReturnTypes, t)
		}
		typeName.ResolvedType = ft
		return ft, nil
	}
	if typeName.Elementary {
		typ := ast.ElementaryTypeByName(typeName.Name)
		if typ == nil {
			return nil, solerr.NewDeclarationError(
				fmt.Sprintf("unknown elementary type \"%s\"", typeName.Name), typeName.Location())
		}
		typeName.ResolvedType = typ
		return typ, nil
	}
	decls := r.globalScope.ResolveName(typeName.Name, false)
	if len(decls) == 0 {
		return nil, solerr.NewDeclarationError(
			fmt.Sprintf("identifier \"%s\" not found", typeName.Name), typeName.Location())
	}
	target, ok := decls[0].(*ast.ContractDefinition)
	if !ok {
		return nil, solerr.NewTypeError(
			fmt.Sprintf("\"%s\" does not name a type", typeName.Name), typeName.Location())
	}
	typeName.Declaration = target
	typ := &ast.ContractType{Contract: target}
	typeName.ResolvedType = typ
	return typ, nil
}

// resolveFunctionSignature resolves the parameter and return types of a
// function definition.
func (r *NameAndTypeResolver) resolveFunctionSignature(contract *ast.ContractDefinition, fn *ast.FunctionDefinition) error {
	for _, param := range fn.Parameters.Parameters {
		if err := r.resolveVariableType(contract, param); err != nil {
			return err
		}
	}
	for _, param := range fn.ReturnParameters.Parameters {
		if err := r.resolveVariableType(contract, param); err != nil {
			return err
		}
	}
	return nil
}

// resolveFunctionBody binds names in the function's modifier invocations and
// body.
func (r *NameAndTypeResolver) resolveFunctionBody(contract *ast.ContractDefinition, fn *ast.FunctionDefinition) error {
	for _, inv := range fn.Modifiers {
		decls := r.lookupInHierarchy(contract, inv.ModifierName.Name())
		if len(decls) == 0 {
			return solerr.NewDeclarationError(
				fmt.Sprintf("modifier \"%s\" not found", inv.ModifierName.Name()), inv.Location())
		}
		inv.ModifierName.Declaration = decls[0]
		for _, arg := range inv.Arguments {
			if err := r.resolveExpressionIn(contract, fn, arg); err != nil {
				return err
			}
		}
	}
	if fn.Body == nil {
		return nil
	}
	return r.resolveStatement(contract, fn, fn.Body)
}

// lookupInHierarchy resolves a name against a contract scope and the scopes
// of its linearized bases, then the global scope.
func (r *NameAndTypeResolver) lookupInHierarchy(contract *ast.ContractDefinition, name string) []ast.Declaration {
	chain := contract.LinearizedBases
	if len(chain) == 0 {
		chain = []*ast.ContractDefinition{contract}
	}
	for _, c := range chain {
		if scope, ok := r.contractScopes[c]; ok {
			if decls := scope.ResolveName(name, false); len(decls) > 0 {
				return decls
			}
		}
	}
	return r.globalScope.ResolveName(name, false)
}

// resolveStatement binds names within a statement tree.
func (r *NameAndTypeResolver) resolveStatement(contract *ast.ContractDefinition, scopeOwner ast.Node, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Block:
		for _, inner := range s.Statements {
			if err := r.resolveStatement(contract, scopeOwner, inner); err != nil {
				return err
			}
		}
	case *ast.IfStatement:
		if err := r.resolveExpressionIn(contract, scopeOwner, s.Condition); err != nil {
			return err
		}
		if err := r.resolveStatement(contract, scopeOwner, s.TrueBody); err != nil {
			return err
		}
		if s.FalseBody != nil {
			return r.resolveStatement(contract, scopeOwner, s.FalseBody)
		}
	case *ast.WhileStatement:
		if err := r.resolveExpressionIn(contract, scopeOwner, s.Condition); err != nil {
			return err
		}
		return r.resolveStatement(contract, scopeOwner, s.Body)
	case *ast.ReturnStatement:
		if fn, ok := scopeOwner.(*ast.FunctionDefinition); ok {
			s.FunctionReturnParameters = fn.ReturnParameters
		}
		if s.Expression != nil {
			return r.resolveExpressionIn(contract, scopeOwner, s.Expression)
		}
	case *ast.ExpressionStatement:
		return r.resolveExpressionIn(contract, scopeOwner, s.Expression)
	case *ast.VariableDeclarationStatement:
		if err := r.resolveVariableType(contract, s.Declaration); err != nil {
			return err
		}
		if s.Declaration.Value != nil {
			return r.resolveExpressionIn(contract, scopeOwner, s.Declaration.Value)
		}
	case *ast.PlaceholderStatement, *ast.InlineAssemblyStatement:
		// Nothing to bind.
	}
	return nil
}

// resolveExpressionIn binds names within an expression, searching the
// owner's function scope first.
func (r *NameAndTypeResolver) resolveExpressionIn(contract *ast.ContractDefinition, scopeOwner ast.Node, expr ast.Expression) error {
	return r.resolveExpressionScoped(contract, r.functionScopes[scopeOwner], expr)
}

// resolveExpression binds names within an expression outside any function,
// e.g. a state variable initializer.
func (r *NameAndTypeResolver) resolveExpression(contract *ast.ContractDefinition, _ ast.Node, expr ast.Expression) error {
	return r.resolveExpressionScoped(contract, nil, expr)
}

// resolveExpressionScoped walks an expression binding identifiers. Member
// names are left to the type checker, which knows the base expression types.
func (r *NameAndTypeResolver) resolveExpressionScoped(contract *ast.ContractDefinition, scope *DeclarationContainer, expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Identifier:
		var decls []ast.Declaration
		if scope != nil {
			decls = scope.ResolveName(e.Name(), false)
		}
		if len(decls) == 0 {
			decls = r.lookupInHierarchy(contract, e.Name())
		}
		if len(decls) == 0 {
			return solerr.NewDeclarationError(
				fmt.Sprintf("undeclared identifier \"%s\"", e.Name()), e.Location())
		}
		e.Declaration = decls[0]
	case *ast.Assignment:
		if err := r.resolveExpressionScoped(contract, scope, e.LeftHandSide); err != nil {
			return err
		}
		return r.resolveExpressionScoped(contract, scope, e.RightHandSide)
	case *ast.BinaryOperation:
		if err := r.resolveExpressionScoped(contract, scope, e.LeftExpression); err != nil {
			return err
		}
		return r.resolveExpressionScoped(contract, scope, e.RightExpression)
	case *ast.UnaryOperation:
		return r.resolveExpressionScoped(contract, scope, e.SubExpression)
	case *ast.FunctionCall:
		if err := r.resolveExpressionScoped(contract, scope, e.Expression); err != nil {
			return err
		}
		for _, arg := range e.Arguments {
			if err := r.resolveExpressionScoped(contract, scope, arg); err != nil {
				return err
			}
		}
	case *ast.NewExpression:
		decls := r.globalScope.ResolveName(e.ContractName.Name(), false)
		if len(decls) == 0 {
			return solerr.NewDeclarationError(
				fmt.Sprintf("identifier \"%s\" not found", e.ContractName.Name()), e.Location())
		}
		e.ContractName.Declaration = decls[0]
	case *ast.MemberAccess:
		return r.resolveExpressionScoped(contract, scope, e.Expression)
	case *ast.IndexAccess:
		if err := r.resolveExpressionScoped(contract, scope, e.BaseExpression); err != nil {
			return err
		}
		return r.resolveExpressionScoped(contract, scope, e.IndexExpression)
	}
	return nil
}
