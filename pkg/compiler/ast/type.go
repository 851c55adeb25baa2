package ast

import "github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"

// PrimitiveType is int/float/char/bool/void.
type PrimitiveType struct {
	Token lexer.Token
	Kind  lexer.Kind // one of KindInt, KindFloat, KindChar, KindBool, KindVoid
}

func (p *PrimitiveType) Pos() lexer.Token { return p.Token }
func (p *PrimitiveType) typeNode()        {}

// NamedType references a declared struct or union by name.
type NamedType struct {
	Token lexer.Token
	Name  string
}

func (n *NamedType) Pos() lexer.Token { return n.Token }
func (n *NamedType) typeNode()        {}

// PointerType is any nesting of '*' over an element type.
type PointerType struct {
	Token lexer.Token
	Elem  TypeExpr
}

func (p *PointerType) Pos() lexer.Token { return p.Token }
func (p *PointerType) typeNode()        {}

// ArrayType appears only in declarations: element type plus a constant size.
type ArrayType struct {
	Token lexer.Token
	Elem  TypeExpr
	Size  Expr
}

func (a *ArrayType) Pos() lexer.Token { return a.Token }
func (a *ArrayType) typeNode()        {}

// MessageType is message<T>, the element type of a channel.
type MessageType struct {
	Token lexer.Token
	Elem  TypeExpr
}

func (m *MessageType) Pos() lexer.Token { return m.Token }
func (m *MessageType) typeNode()        {}
