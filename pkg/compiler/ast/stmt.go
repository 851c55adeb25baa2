package ast

import "github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"

// BlockStmt: '{' statement* '}'
type BlockStmt struct {
	Token lexer.Token
	Stmts []Stmt
}

func (b *BlockStmt) Pos() lexer.Token { return b.Token }
func (b *BlockStmt) stmtNode()        {}

// VarDeclStmt is a local variable declaration appearing inside a block.
type VarDeclStmt struct {
	Token    lexer.Token
	IsConst  bool
	Type     TypeExpr
	Name     lexer.Token
	ArrayLen Expr
	Init     Expr
}

func (v *VarDeclStmt) Pos() lexer.Token { return v.Token }
func (v *VarDeclStmt) stmtNode()        {}

// IfStmt: 'if' '(' expr ')' block ('else' block)?
type IfStmt struct {
	Token lexer.Token
	Cond  Expr
	Then  Stmt
	Else  Stmt // nil when there is no else branch
}

func (i *IfStmt) Pos() lexer.Token { return i.Token }
func (i *IfStmt) stmtNode()        {}

// WhileStmt: 'while' '(' expr ')' block
type WhileStmt struct {
	Token lexer.Token
	Cond  Expr
	Body  Stmt
}

func (w *WhileStmt) Pos() lexer.Token { return w.Token }
func (w *WhileStmt) stmtNode()        {}

// ForStmt: 'for' '(' (decl|expr)? ';' expr? ';' expr? ')' block
type ForStmt struct {
	Token lexer.Token
	Init  Stmt // *VarDeclStmt, *ExprStmt, or nil
	Cond  Expr // nil means "always true"
	Post  Expr // nil when omitted
	Body  Stmt
}

func (f *ForStmt) Pos() lexer.Token { return f.Token }
func (f *ForStmt) stmtNode()        {}

// BreakStmt: 'break' ';'
type BreakStmt struct{ Token lexer.Token }

func (b *BreakStmt) Pos() lexer.Token { return b.Token }
func (b *BreakStmt) stmtNode()        {}

// ContinueStmt: 'continue' ';'
type ContinueStmt struct{ Token lexer.Token }

func (c *ContinueStmt) Pos() lexer.Token { return c.Token }
func (c *ContinueStmt) stmtNode()        {}

// ReturnStmt: 'return' expr? ';'
type ReturnStmt struct {
	Token lexer.Token
	Value Expr // nil for a void return
}

func (r *ReturnStmt) Pos() lexer.Token { return r.Token }
func (r *ReturnStmt) stmtNode()        {}

// ExprStmt: expr ';'
type ExprStmt struct {
	Token lexer.Token
	X     Expr
}

func (e *ExprStmt) Pos() lexer.Token { return e.Token }
func (e *ExprStmt) stmtNode()        {}
