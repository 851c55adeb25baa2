// Package parser implements a recursive-descent parser with explicit
// precedence climbing for RT-Micro-C expressions, producing an ast.Program.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
)

// ErrorKind distinguishes parser failure modes.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrUnexpectedToken
)

// Error is the parser's diagnostic: expected vs. actual token.
type Error struct {
	Kind     ErrorKind
	Line     uint32
	Column   uint32
	Expected string
	Got      string
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: expected %s, got %s", e.Line, e.Column, e.Expected, e.Got)
}

// Parser consumes a token stream and builds the AST. It keeps a 3-token
// lookahead buffer (cur, peek, peek2), enough to disambiguate casts,
// anonymous nested struct/union fields, and named-type declarations without
// backtracking.
type Parser struct {
	scanner *lexer.Scanner
	src     []byte
	buf     [3]lexer.Token

	// typeNames records struct/union names declared so far, letting the
	// parser tell "Point p;" (a declaration) from "foo();" (a call) with a
	// single token of lookahead, the same way a C parser needs a symbol
	// table to parse without ambiguity.
	typeNames map[string]bool
}

// NewParser creates a parser over src, tokenized by s.
func NewParser(s *lexer.Scanner, src []byte) *Parser {
	p := &Parser{scanner: s, src: src, typeNames: make(map[string]bool)}
	for i := range p.buf {
		p.buf[i] = s.Next()
	}
	return p
}

func (p *Parser) cur() lexer.Token  { return p.buf[0] }
func (p *Parser) peek() lexer.Token { return p.buf[1] }

func (p *Parser) lex(t lexer.Token) string { return t.Lexeme(p.src) }

func (p *Parser) advance() lexer.Token {
	t := p.buf[0]
	p.buf[0] = p.buf[1]
	p.buf[1] = p.buf[2]
	p.buf[2] = p.scanner.Next()
	return t
}

func (p *Parser) unexpected(expected string) error {
	return &Error{
		Kind: ErrUnexpectedToken, Line: p.cur().Line, Column: p.cur().Column,
		Expected: expected, Got: p.cur().Kind.String(),
	}
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if p.cur().Kind != k {
		return lexer.Token{}, p.unexpected(k.String())
	}
	return p.advance(), nil
}

// Parse parses the full token stream into a Program.
func (p *Parser) Parse() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur().Kind != lexer.KindEOF {
		decl, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, decl)
	}
	return prog, nil
}

func (p *Parser) parseTopDecl() (ast.Decl, error) {
	switch p.cur().Kind {
	case lexer.KindStruct:
		return p.parseStructOrUse()
	case lexer.KindUnion:
		return p.parseUnionOrUse()
	case lexer.KindMessage:
		return p.parseMessageDecl()
	case lexer.KindTask:
		return p.parseTaskDecl()
	case lexer.KindConst, lexer.KindInt, lexer.KindFloat, lexer.KindChar, lexer.KindBool, lexer.KindVoid:
		return p.parseVarOrFuncDecl()
	case lexer.KindIdentifier:
		if p.typeNames[p.lex(p.cur())] {
			return p.parseVarOrFuncDecl()
		}
		return nil, p.unexpected("declaration")
	default:
		return nil, p.unexpected("declaration")
	}
}

// --- struct / union ---------------------------------------------------

func (p *Parser) parseStructOrUse() (ast.Decl, error) {
	tok := p.advance() // 'struct'
	name := ""
	if p.cur().Kind == lexer.KindIdentifier {
		name = p.lex(p.cur())
		p.advance()
	}
	if p.cur().Kind == lexer.KindLBrace {
		decl, err := p.parseStructBody(tok, name)
		if err != nil {
			return nil, err
		}
		if name != "" {
			p.typeNames[name] = true
		}
		if p.cur().Kind == lexer.KindSemicolon {
			p.advance()
		}
		return decl, nil
	}
	typ := &ast.NamedType{Token: tok, Name: name}
	return p.parseVarOrFuncDeclWithType(tok, typ, false)
}

func (p *Parser) parseUnionOrUse() (ast.Decl, error) {
	tok := p.advance() // 'union'
	name := ""
	if p.cur().Kind == lexer.KindIdentifier {
		name = p.lex(p.cur())
		p.advance()
	}
	if p.cur().Kind == lexer.KindLBrace {
		decl, err := p.parseUnionBody(tok, name)
		if err != nil {
			return nil, err
		}
		if name != "" {
			p.typeNames[name] = true
		}
		if p.cur().Kind == lexer.KindSemicolon {
			p.advance()
		}
		return decl, nil
	}
	typ := &ast.NamedType{Token: tok, Name: name}
	return p.parseVarOrFuncDeclWithType(tok, typ, false)
}

func (p *Parser) parseStructBody(tok lexer.Token, name string) (*ast.StructDecl, error) {
	if _, err := p.expect(lexer.KindLBrace); err != nil {
		return nil, err
	}
	var fields []*ast.FieldDecl
	for p.cur().Kind != lexer.KindRBrace && p.cur().Kind != lexer.KindEOF {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if _, err := p.expect(lexer.KindRBrace); err != nil {
		return nil, err
	}
	return &ast.StructDecl{Token: tok, Name: name, Fields: fields}, nil
}

func (p *Parser) parseUnionBody(tok lexer.Token, name string) (*ast.UnionDecl, error) {
	if _, err := p.expect(lexer.KindLBrace); err != nil {
		return nil, err
	}
	var fields []*ast.FieldDecl
	for p.cur().Kind != lexer.KindRBrace && p.cur().Kind != lexer.KindEOF {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if _, err := p.expect(lexer.KindRBrace); err != nil {
		return nil, err
	}
	return &ast.UnionDecl{Token: tok, Name: name, Fields: fields}, nil
}

func (p *Parser) parseField() (*ast.FieldDecl, error) {
	tok := p.cur()

	if p.cur().Kind == lexer.KindStruct || p.cur().Kind == lexer.KindUnion {
		isStruct := p.cur().Kind == lexer.KindStruct
		kw := p.advance()
		name := ""
		if p.cur().Kind == lexer.KindIdentifier {
			name = p.lex(p.cur())
			p.advance()
		}
		if p.cur().Kind == lexer.KindLBrace {
			var nested ast.Decl
			var err error
			if isStruct {
				nested, err = p.parseStructBody(kw, name)
			} else {
				nested, err = p.parseUnionBody(kw, name)
			}
			if err != nil {
				return nil, err
			}
			if name != "" {
				p.typeNames[name] = true
			}
			if p.cur().Kind == lexer.KindSemicolon {
				p.advance()
			}
			return &ast.FieldDecl{Token: tok, Nested: nested}, nil
		}
		var typ ast.TypeExpr = &ast.NamedType{Token: kw, Name: name}
		for p.cur().Kind == lexer.KindStar {
			star := p.advance()
			typ = &ast.PointerType{Token: star, Elem: typ}
		}
		return p.finishField(tok, typ)
	}

	// Inside a struct/union body an identifier can only start a field's type,
	// so a struct/union name declared later in the file is accepted here.
	if p.cur().Kind == lexer.KindIdentifier {
		nameTok := p.advance()
		var typ ast.TypeExpr = &ast.NamedType{Token: nameTok, Name: p.lex(nameTok)}
		for p.cur().Kind == lexer.KindStar {
			star := p.advance()
			typ = &ast.PointerType{Token: star, Elem: typ}
		}
		return p.finishField(tok, typ)
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return p.finishField(tok, typ)
}

func (p *Parser) finishField(tok lexer.Token, typ ast.TypeExpr) (*ast.FieldDecl, error) {
	name, err := p.expect(lexer.KindIdentifier)
	if err != nil {
		return nil, err
	}
	f := &ast.FieldDecl{Token: tok, Type: typ, Name: name}

	if p.cur().Kind == lexer.KindLBracket {
		lb := p.advance()
		size, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRBracket); err != nil {
			return nil, err
		}
		f.Type = &ast.ArrayType{Token: lb, Elem: typ, Size: size}
	}

	if p.cur().Kind == lexer.KindColon {
		p.advance()
		widthTok, err := p.expect(lexer.KindIntLiteral)
		if err != nil {
			return nil, err
		}
		v, _ := parseIntLiteral(p.lex(widthTok))
		f.BitWidth = &ast.IntLiteral{Token: widthTok, Value: v}
	}

	if p.cur().Kind == lexer.KindAssign {
		p.advance()
		init, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		f.Init = init
	}

	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}
	return f, nil
}

// --- message channels ---------------------------------------------------

func (p *Parser) parseMessageDecl() (ast.Decl, error) {
	tok := p.advance() // 'message'
	if _, err := p.expect(lexer.KindLt); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindGt); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.KindIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}
	return &ast.MessageDecl{Token: tok, ElemType: elem, Name: name}, nil
}

// --- Task sugar (supplemented from original_source) ---------------------

func (p *Parser) parseTaskDecl() (ast.Decl, error) {
	tok := p.advance() // 'Task'
	name, err := p.expect(lexer.KindIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindLBrace); err != nil {
		return nil, err
	}

	var core, priority, stack ast.Expr
	for p.cur().Kind == lexer.KindIdentifier {
		attr := p.lex(p.cur())
		if attr != "core" && attr != "priority" && attr != "stack" {
			break
		}
		p.advance()
		if _, err := p.expect(lexer.KindColon); err != nil {
			return nil, err
		}
		val, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindSemicolon); err != nil {
			return nil, err
		}
		switch attr {
		case "core":
			core = val
		case "priority":
			priority = val
		case "stack":
			stack = val
		}
	}

	if _, err := p.expect(lexer.KindVoid); err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.KindIdentifier || p.lex(p.cur()) != "run" {
		return nil, p.unexpected("run")
	}
	p.advance()
	if _, err := p.expect(lexer.KindLParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindRBrace); err != nil {
		return nil, err
	}

	return &ast.TaskDecl{Token: tok, Name: name, Core: core, Priority: priority, Stack: stack, Body: body}, nil
}

// --- functions / globals -------------------------------------------------

func (p *Parser) parseVarOrFuncDecl() (ast.Decl, error) {
	tok := p.cur()
	isConst := false
	if p.cur().Kind == lexer.KindConst {
		isConst = true
		p.advance()
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return p.parseVarOrFuncDeclWithType(tok, typ, isConst)
}

func (p *Parser) parseVarOrFuncDeclWithType(tok lexer.Token, typ ast.TypeExpr, isConst bool) (ast.Decl, error) {
	name, err := p.expect(lexer.KindIdentifier)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.KindLParen {
		return p.parseFuncDeclTail(tok, typ, name)
	}
	return p.parseGlobalVarDeclTail(tok, typ, name, isConst)
}

func (p *Parser) parseFuncDeclTail(tok lexer.Token, retType ast.TypeExpr, name lexer.Token) (ast.Decl, error) {
	p.advance() // '('
	var params []*ast.Param
	for p.cur().Kind != lexer.KindRParen {
		ptype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		pname, err := p.expect(lexer.KindIdentifier)
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Type: ptype, Name: pname})
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Token: tok, ReturnType: retType, Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseGlobalVarDeclTail(tok lexer.Token, typ ast.TypeExpr, name lexer.Token, isConst bool) (ast.Decl, error) {
	g := &ast.GlobalVarDecl{Token: tok, IsConst: isConst, Type: typ, Name: name}
	if p.cur().Kind == lexer.KindLBracket {
		p.advance()
		size, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRBracket); err != nil {
			return nil, err
		}
		g.ArrayLen = size
	}
	if p.cur().Kind == lexer.KindAssign {
		p.advance()
		init, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		g.Init = init
	}
	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}
	return g, nil
}

func (p *Parser) parseInitializer() (ast.Expr, error) {
	if p.cur().Kind == lexer.KindLBrace {
		return p.parseArrayLiteral()
	}
	return p.parseAssignment()
}

// --- types ---------------------------------------------------------------

func (p *Parser) isTypeStart() bool {
	switch p.cur().Kind {
	case lexer.KindInt, lexer.KindFloat, lexer.KindChar, lexer.KindBool, lexer.KindVoid, lexer.KindStruct:
		return true
	case lexer.KindIdentifier:
		return p.typeNames[p.lex(p.cur())]
	}
	return false
}

func (p *Parser) parseType() (ast.TypeExpr, error) {
	var typ ast.TypeExpr
	switch p.cur().Kind {
	case lexer.KindInt, lexer.KindFloat, lexer.KindChar, lexer.KindBool, lexer.KindVoid:
		tok := p.advance()
		typ = &ast.PrimitiveType{Token: tok, Kind: tok.Kind}
	case lexer.KindStruct:
		kw := p.advance()
		name, err := p.expect(lexer.KindIdentifier)
		if err != nil {
			return nil, err
		}
		typ = &ast.NamedType{Token: kw, Name: p.lex(name)}
	case lexer.KindIdentifier:
		if !p.typeNames[p.lex(p.cur())] {
			return nil, p.unexpected("type")
		}
		tok := p.advance()
		typ = &ast.NamedType{Token: tok, Name: p.lex(tok)}
	default:
		return nil, p.unexpected("type")
	}
	for p.cur().Kind == lexer.KindStar {
		star := p.advance()
		typ = &ast.PointerType{Token: star, Elem: typ}
	}
	return typ, nil
}

// --- statements ------------------------------------------------------------

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	tok, err := p.expect(lexer.KindLBrace)
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur().Kind != lexer.KindRBrace && p.cur().Kind != lexer.KindEOF {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(lexer.KindRBrace); err != nil {
		return nil, err
	}
	return &ast.BlockStmt{Token: tok, Stmts: stmts}, nil
}

func (p *Parser) isLocalDeclStart() bool {
	switch p.cur().Kind {
	case lexer.KindConst, lexer.KindInt, lexer.KindFloat, lexer.KindChar, lexer.KindBool, lexer.KindVoid, lexer.KindStruct, lexer.KindUnion:
		return true
	case lexer.KindIdentifier:
		return p.typeNames[p.lex(p.cur())]
	}
	return false
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Kind {
	case lexer.KindLBrace:
		return p.parseBlock()
	case lexer.KindIf:
		return p.parseIfStmt()
	case lexer.KindWhile:
		return p.parseWhileStmt()
	case lexer.KindFor:
		return p.parseForStmt()
	case lexer.KindBreak:
		tok := p.advance()
		if _, err := p.expect(lexer.KindSemicolon); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Token: tok}, nil
	case lexer.KindContinue:
		tok := p.advance()
		if _, err := p.expect(lexer.KindSemicolon); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Token: tok}, nil
	case lexer.KindReturn:
		tok := p.advance()
		if p.cur().Kind == lexer.KindSemicolon {
			p.advance()
			return &ast.ReturnStmt{Token: tok}, nil
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindSemicolon); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Token: tok, Value: val}, nil
	default:
		if p.isLocalDeclStart() {
			return p.parseLocalVarDecl()
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLocalVarDecl() (ast.Stmt, error) {
	tok := p.cur()
	isConst := false
	if p.cur().Kind == lexer.KindConst {
		isConst = true
		p.advance()
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.KindIdentifier)
	if err != nil {
		return nil, err
	}
	v := &ast.VarDeclStmt{Token: tok, IsConst: isConst, Type: typ, Name: name}
	if p.cur().Kind == lexer.KindLBracket {
		p.advance()
		size, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRBracket); err != nil {
			return nil, err
		}
		v.ArrayLen = size
	}
	if p.cur().Kind == lexer.KindAssign {
		p.advance()
		init, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		v.Init = init
	}
	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	tok := p.cur()
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Token: tok, X: x}, nil
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
	tok := p.advance() // 'if'
	if _, err := p.expect(lexer.KindLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindRParen); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.cur().Kind == lexer.KindElse {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Token: tok, Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhileStmt() (ast.Stmt, error) {
	tok := p.advance() // 'while'
	if _, err := p.expect(lexer.KindLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KindRParen); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Token: tok, Cond: cond, Body: body}, nil
}

func (p *Parser) parseForStmt() (ast.Stmt, error) {
	tok := p.advance() // 'for'
	if _, err := p.expect(lexer.KindLParen); err != nil {
		return nil, err
	}

	var init ast.Stmt
	if p.cur().Kind == lexer.KindSemicolon {
		p.advance()
	} else if p.isLocalDeclStart() {
		var err error
		init, err = p.parseLocalVarDecl()
		if err != nil {
			return nil, err
		}
	} else {
		xtok := p.cur()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = &ast.ExprStmt{Token: xtok, X: x}
		if _, err := p.expect(lexer.KindSemicolon); err != nil {
			return nil, err
		}
	}

	var cond ast.Expr
	if p.cur().Kind != lexer.KindSemicolon {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.KindSemicolon); err != nil {
		return nil, err
	}

	var post ast.Expr
	if p.cur().Kind != lexer.KindRParen {
		var err error
		post, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.KindRParen); err != nil {
		return nil, err
	}

	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Token: tok, Init: init, Cond: cond, Post: post, Body: body}, nil
}

// --- expressions: precedence climbing --------------------------------------

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseAssignment() }

var assignOps = map[lexer.Kind]bool{
	lexer.KindAssign: true, lexer.KindPlusAssign: true, lexer.KindMinusAssign: true,
	lexer.KindStarAssign: true, lexer.KindSlashAssign: true, lexer.KindPercentAssign: true,
	lexer.KindAmpAssign: true, lexer.KindPipeAssign: true, lexer.KindCaretAssign: true,
	lexer.KindShlAssign: true, lexer.KindShrAssign: true,
}

func (p *Parser) parseAssignment() (ast.Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if assignOps[p.cur().Kind] {
		op := p.advance()
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{Token: op, Op: op.Kind, Target: left, Value: right}, nil
	}
	return left, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseLogicalAnd, lexer.KindPipePipe)
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitOr, lexer.KindAmpAmp)
}

func (p *Parser) parseBitOr() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitXor, lexer.KindPipe)
}

func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseBitAnd, lexer.KindCaret)
}

func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseEquality, lexer.KindAmp)
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseRelational, lexer.KindEq, lexer.KindNeq)
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseShift, lexer.KindLt, lexer.KindLte, lexer.KindGt, lexer.KindGte)
}

func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseAdditive, lexer.KindShl, lexer.KindShr)
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, lexer.KindPlus, lexer.KindMinus)
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel(p.parseUnary, lexer.KindStar, lexer.KindSlash, lexer.KindPercent)
}

func (p *Parser) parseBinaryLevel(next func() (ast.Expr, error), ops ...lexer.Kind) (ast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.kindIn(p.cur().Kind, ops) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Token: op, Op: op.Kind, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) kindIn(k lexer.Kind, set []lexer.Kind) bool {
	for _, s := range set {
		if k == s {
			return true
		}
	}
	return false
}

var unaryPrefixOps = map[lexer.Kind]bool{
	lexer.KindPlus: true, lexer.KindMinus: true, lexer.KindBang: true, lexer.KindTilde: true,
	lexer.KindPlusPlus: true, lexer.KindMinusMinus: true, lexer.KindAmp: true, lexer.KindStar: true,
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if unaryPrefixOps[p.cur().Kind] {
		op := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Token: op, Op: op.Kind, X: x}, nil
	}

	if p.cur().Kind == lexer.KindSizeof {
		tok := p.advance()
		if _, err := p.expect(lexer.KindLParen); err != nil {
			return nil, err
		}
		s := &ast.SizeofExpr{Token: tok}
		if p.isTypeStart() {
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			s.Type = typ
		} else {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			s.X = x
		}
		if _, err := p.expect(lexer.KindRParen); err != nil {
			return nil, err
		}
		return s, nil
	}

	if p.cur().Kind == lexer.KindLParen && p.isCastAhead() {
		tok := p.advance() // '('
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRParen); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.CastExpr{Token: tok, Type: typ, X: x}, nil
	}

	return p.parsePostfix()
}

func (p *Parser) isCastAhead() bool {
	switch p.peek().Kind {
	case lexer.KindInt, lexer.KindFloat, lexer.KindChar, lexer.KindBool, lexer.KindVoid, lexer.KindStruct:
		return true
	case lexer.KindIdentifier:
		return p.typeNames[p.lex(p.peek())]
	}
	return false
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case lexer.KindLBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.KindRBracket); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{Token: x.Pos(), X: x, Index: idx}

		case lexer.KindDot, lexer.KindArrow:
			arrow := p.cur().Kind == lexer.KindArrow
			tok := p.advance()
			if p.cur().Kind == lexer.KindIdentifier && p.lex(p.cur()) == "send" {
				p.advance()
				if _, err := p.expect(lexer.KindLParen); err != nil {
					return nil, err
				}
				val, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.KindRParen); err != nil {
					return nil, err
				}
				x = &ast.MessageSendExpr{Token: tok, Chan: x, Value: val}
				continue
			}
			if p.cur().Kind == lexer.KindIdentifier && p.lex(p.cur()) == "recv" {
				p.advance()
				if _, err := p.expect(lexer.KindLParen); err != nil {
					return nil, err
				}
				var timeout ast.Expr
				if p.cur().Kind == lexer.KindIdentifier && p.lex(p.cur()) == "timeout" {
					p.advance()
					if _, err := p.expect(lexer.KindColon); err != nil {
						return nil, err
					}
					timeout, err = p.parseAssignment()
					if err != nil {
						return nil, err
					}
				} else if p.cur().Kind != lexer.KindRParen {
					timeout, err = p.parseAssignment()
					if err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(lexer.KindRParen); err != nil {
					return nil, err
				}
				x = &ast.MessageRecvExpr{Token: tok, Chan: x, Timeout: timeout}
				continue
			}
			name, err := p.expect(lexer.KindIdentifier)
			if err != nil {
				return nil, err
			}
			x = &ast.MemberExpr{Token: tok, X: x, Name: p.lex(name), Arrow: arrow}

		case lexer.KindPlusPlus, lexer.KindMinusMinus:
			tok := p.advance()
			x = &ast.UnaryExpr{Token: tok, Op: tok.Kind, X: x, Postfix: true}

		case lexer.KindLParen:
			id, ok := x.(*ast.Identifier)
			if !ok {
				return nil, &Error{Kind: ErrUnexpectedToken, Line: p.cur().Line, Column: p.cur().Column, Message: "call target must be a function name"}
			}
			p.advance()
			var args []ast.Expr
			for p.cur().Kind != lexer.KindRParen {
				a, err := p.parseAssignment()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur().Kind == lexer.KindComma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(lexer.KindRParen); err != nil {
				return nil, err
			}
			x = &ast.CallExpr{Token: id.Token, Callee: id.Name, Args: args}

		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur().Kind {
	case lexer.KindIntLiteral:
		tok := p.advance()
		v, err := parseIntLiteral(p.lex(tok))
		if err != nil {
			return nil, &Error{Kind: ErrUnexpectedToken, Line: tok.Line, Column: tok.Column, Message: err.Error()}
		}
		return &ast.IntLiteral{Token: tok, Value: v}, nil
	case lexer.KindFloatLiteral:
		tok := p.advance()
		f, _ := strconv.ParseFloat(p.lex(tok), 32)
		return &ast.FloatLiteral{Token: tok, Value: float32(f)}, nil
	case lexer.KindCharLiteral:
		tok := p.advance()
		return &ast.CharLiteral{Token: tok, Value: decodeCharLiteral(p.lex(tok))}, nil
	case lexer.KindStringLiteral:
		tok := p.advance()
		return &ast.StringLiteral{Token: tok, Value: decodeStringLiteral(p.lex(tok))}, nil
	case lexer.KindBoolLiteral:
		tok := p.advance()
		return &ast.BoolLiteral{Token: tok, Value: p.lex(tok) == "true"}, nil
	case lexer.KindIdentifier:
		tok := p.advance()
		return &ast.Identifier{Token: tok, Name: p.lex(tok)}, nil
	case lexer.KindLParen:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.KindRParen); err != nil {
			return nil, err
		}
		return x, nil
	case lexer.KindLBrace:
		return p.parseArrayLiteral()
	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseArrayLiteral() (ast.Expr, error) {
	tok := p.advance() // '{'
	var elems []ast.Expr
	for p.cur().Kind != lexer.KindRBrace {
		e, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.cur().Kind == lexer.KindComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.KindRBrace); err != nil {
		return nil, err
	}
	return &ast.ArrayLiteral{Token: tok, Elems: elems}, nil
}

// --- literal decoding ------------------------------------------------------

func parseIntLiteral(lit string) (int64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		return strconv.ParseInt(lit[2:], 16, 64)
	}
	return strconv.ParseInt(lit, 10, 64)
}

func decodeCharLiteral(lit string) byte {
	inner := lit[1 : len(lit)-1]
	decoded := unescape(inner)
	if len(decoded) == 0 {
		return 0
	}
	return decoded[0]
}

func decodeStringLiteral(lit string) string {
	inner := lit[1 : len(lit)-1]
	return string(unescape(inner))
}

func unescape(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '0':
			out = append(out, 0)
		case '\\':
			out = append(out, '\\')
		case '\'':
			out = append(out, '\'')
		case '"':
			out = append(out, '"')
		case 'x':
			if i+2 < len(s) {
				v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
				if err == nil {
					out = append(out, byte(v))
					i += 2
					continue
				}
			}
			out = append(out, 'x')
		default:
			out = append(out, s[i])
		}
	}
	return out
}
