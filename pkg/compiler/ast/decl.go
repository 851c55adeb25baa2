package ast

import "github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"

// Param is one function parameter.
type Param struct {
	Type TypeExpr
	Name lexer.Token
}

// FuncDecl: type IDENT '(' param-list? ')' block
type FuncDecl struct {
	Token      lexer.Token
	ReturnType TypeExpr
	Name       lexer.Token
	Params     []*Param
	Body       *BlockStmt
}

func (f *FuncDecl) Pos() lexer.Token { return f.Token }
func (f *FuncDecl) declNode()        {}

// GlobalVarDecl: ['const'] type IDENT ('[' INT ']')? ('=' expr)? ';'
type GlobalVarDecl struct {
	Token    lexer.Token
	IsConst  bool
	Type     TypeExpr
	Name     lexer.Token
	ArrayLen Expr // non-nil when this is an array declaration
	Init     Expr // may be nil
}

func (g *GlobalVarDecl) Pos() lexer.Token { return g.Token }
func (g *GlobalVarDecl) declNode()        {}

// FieldDecl is one member of a struct/union body. Either (Type, Name) is set
// for a plain field, or Nested holds an anonymous nested struct/union decl.
type FieldDecl struct {
	Token    lexer.Token
	Type     TypeExpr
	Name     lexer.Token
	BitWidth Expr // non-nil for bit-fields
	Init     Expr
	Nested   Decl // *StructDecl or *UnionDecl for anonymous nested groups
}

func (f *FieldDecl) Pos() lexer.Token { return f.Token }

// StructDecl: 'struct' IDENT? '{' field* '}' ';'?
type StructDecl struct {
	Token  lexer.Token
	Name   string // empty when anonymous
	Fields []*FieldDecl
}

func (s *StructDecl) Pos() lexer.Token { return s.Token }
func (s *StructDecl) declNode()        {}

// UnionDecl: 'union' IDENT? '{' field* '}' ';'?
type UnionDecl struct {
	Token  lexer.Token
	Name   string
	Fields []*FieldDecl
}

func (u *UnionDecl) Pos() lexer.Token { return u.Token }
func (u *UnionDecl) declNode()        {}

// MessageDecl: 'message' '<' type '>' IDENT ';'
type MessageDecl struct {
	Token    lexer.Token
	ElemType TypeExpr
	Name     lexer.Token
}

func (m *MessageDecl) Pos() lexer.Token { return m.Token }
func (m *MessageDecl) declNode()        {}

// IncludeDecl is preprocessor residue: a no-op in codegen. The preprocessor
// pass fully splices include targets into the source before lexing, so the
// parser never produces this node.
type IncludeDecl struct {
	Token lexer.Token
	Path  string
}

func (i *IncludeDecl) Pos() lexer.Token { return i.Token }
func (i *IncludeDecl) declNode()        {}

// TaskDecl is the sugared declaration form (supplemented from the original
// implementation): 'Task' IDENT '{' task-attr* 'void' 'run' '(' ')' block '}'.
// The semantic analyzer desugars it into a FuncDecl for the body plus a
// TaskInfo carrying the StartTask operands; codegen never sees TaskDecl.
type TaskDecl struct {
	Token    lexer.Token
	Name     lexer.Token
	Core     Expr
	Priority Expr
	Stack    Expr
	Body     *BlockStmt
}

func (t *TaskDecl) Pos() lexer.Token { return t.Token }
func (t *TaskDecl) declNode()        {}
