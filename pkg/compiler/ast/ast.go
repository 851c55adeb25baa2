// Package ast defines the tagged-union abstract syntax tree produced by the
// parser. Every concrete node implements Pos, returning the token it was
// built from; dispatch throughout the compiler is a type switch on the
// concrete node type, never reflection.
package ast

import "github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"

// Node is any AST node.
type Node interface {
	Pos() lexer.Token
}

// Decl is a top-level (or struct/union field) declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression that yields a value.
type Expr interface {
	Node
	exprNode()
}

// TypeExpr is a type reference: primitive, pointer, array, named, or message-of.
type TypeExpr interface {
	Node
	typeNode()
}

// Program is the parse tree's root: every top-level declaration in order.
type Program struct {
	Decls []Decl
}
