package parser_test

import (
	"testing"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/parser"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	b := []byte(src)
	s := lexer.NewScanner(b)
	p := parser.NewParser(s, b)
	prog, err := p.Parse()
	require.NoError(t, err)
	return prog
}

func TestParseGlobalsAndFunctions(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"int global with init", "int counter = 0;"},
		{"const global array", "const int table[4] = {1, 2, 3, 4};"},
		{"function decl", "int add(int a, int b) { return a + b; }"},
		{"void function no params", "void tick() { counter = counter + 1; }"},
		{"pointer global", "int *p;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parse(t, tt.src)
			require.Len(t, prog.Decls, 1)
		})
	}
}

func TestParseStructWithBitfieldsAndNesting(t *testing.T) {
	src := `
struct Flags {
	int ready : 1;
	int mode : 3;
	struct {
		int x;
		int y;
	};
};
struct Flags f;
`
	prog := parse(t, src)
	require.Len(t, prog.Decls, 2)

	sd, ok := prog.Decls[0].(*ast.StructDecl)
	require.True(t, ok)
	require.Equal(t, "Flags", sd.Name)
	require.Len(t, sd.Fields, 3)

	require.NotNil(t, sd.Fields[0].BitWidth)
	require.NotNil(t, sd.Fields[1].BitWidth)

	nested := sd.Fields[2]
	require.NotNil(t, nested.Nested)
	nestedStruct, ok := nested.Nested.(*ast.StructDecl)
	require.True(t, ok)
	require.Len(t, nestedStruct.Fields, 2)

	gv, ok := prog.Decls[1].(*ast.GlobalVarDecl)
	require.True(t, ok)
	nt, ok := gv.Type.(*ast.NamedType)
	require.True(t, ok)
	require.Equal(t, "Flags", nt.Name)
}

func TestParseUnionAlternatives(t *testing.T) {
	src := `
union Word {
	int asInt;
	float asFloat;
};
`
	prog := parse(t, src)
	ud, ok := prog.Decls[0].(*ast.UnionDecl)
	require.True(t, ok)
	require.Len(t, ud.Fields, 2)
}

func TestParseMessageDecl(t *testing.T) {
	prog := parse(t, "message<int> temperatureChan;")
	md, ok := prog.Decls[0].(*ast.MessageDecl)
	require.True(t, ok)
	require.Equal(t, "temperatureChan", md.Name.Lexeme([]byte("message<int> temperatureChan;")))
	pt, ok := md.ElemType.(*ast.PrimitiveType)
	require.True(t, ok)
	require.Equal(t, lexer.KindInt, pt.Kind)
}

func TestParseTaskDecl(t *testing.T) {
	src := `
Task Blinker {
	core: 0;
	priority: 5;
	stack: 2048;
	void run() {
		counter = counter + 1;
	}
}
`
	prog := parse(t, src)
	td, ok := prog.Decls[0].(*ast.TaskDecl)
	require.True(t, ok)
	require.NotNil(t, td.Core)
	require.NotNil(t, td.Priority)
	require.NotNil(t, td.Stack)
	require.NotNil(t, td.Body)
	require.Len(t, td.Body.Stmts, 1)
}

func TestOperatorPrecedence(t *testing.T) {
	// a + b * c should parse as a + (b * c)
	prog := parse(t, "int x = a + b * c;")
	gv := prog.Decls[0].(*ast.GlobalVarDecl)
	add, ok := gv.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindPlus, add.Op)

	mul, ok := add.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindStar, mul.Op)

	_, isIdent := add.Left.(*ast.Identifier)
	require.True(t, isIdent)
}

func TestLogicalAndBitwisePrecedence(t *testing.T) {
	// a || b && c | d should parse as a || (b && (c | d))
	prog := parse(t, "int x = a || b && c | d;")
	gv := prog.Decls[0].(*ast.GlobalVarDecl)
	or, ok := gv.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindPipePipe, or.Op)

	and, ok := or.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindAmpAmp, and.Op)

	bor, ok := and.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindPipe, bor.Op)
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	prog := parse(t, "void f() { a = b = 1; }")
	fn := prog.Decls[0].(*ast.FuncDecl)
	stmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	outer, ok := stmt.X.(*ast.AssignExpr)
	require.True(t, ok)
	inner, ok := outer.Value.(*ast.AssignExpr)
	require.True(t, ok)
	require.Equal(t, lexer.KindAssign, inner.Op)
}

func TestCastVsParenDisambiguation(t *testing.T) {
	src := `
struct Point { int x; int y; };
void f() {
	int a = (int)3.5;
	struct Point *p;
	int b = (p->x);
}
`
	prog := parse(t, src)
	fn := prog.Decls[1].(*ast.FuncDecl)

	castDecl := fn.Body.Stmts[0].(*ast.VarDeclStmt)
	_, isCast := castDecl.Init.(*ast.CastExpr)
	require.True(t, isCast)

	parenDecl := fn.Body.Stmts[2].(*ast.VarDeclStmt)
	_, isMember := parenDecl.Init.(*ast.MemberExpr)
	require.True(t, isMember, "parenthesized expression must not be mistaken for a cast")
}

func TestForLoopClauses(t *testing.T) {
	src := `
void f() {
	for (int i = 0; i < 10; i = i + 1) {
		counter = counter + i;
	}
}
`
	prog := parse(t, src)
	fn := prog.Decls[0].(*ast.FuncDecl)
	forStmt, ok := fn.Body.Stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Post)

	_, initIsDecl := forStmt.Init.(*ast.VarDeclStmt)
	require.True(t, initIsDecl)
}

func TestForLoopWithOmittedClauses(t *testing.T) {
	src := `
void f() {
	for (;;) {
		break;
	}
}
`
	prog := parse(t, src)
	fn := prog.Decls[0].(*ast.FuncDecl)
	forStmt := fn.Body.Stmts[0].(*ast.ForStmt)
	require.Nil(t, forStmt.Init)
	require.Nil(t, forStmt.Cond)
	require.Nil(t, forStmt.Post)
}

func TestMessageSendAndRecv(t *testing.T) {
	src := `
message<int> chan;
void f() {
	chan.send(42);
	int v = chan.recv(timeout: 100);
	int w = chan.recv();
}
`
	prog := parse(t, src)
	fn := prog.Decls[1].(*ast.FuncDecl)

	sendStmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	send, ok := sendStmt.X.(*ast.MessageSendExpr)
	require.True(t, ok)
	lit, ok := send.Value.(*ast.IntLiteral)
	require.True(t, ok)
	require.EqualValues(t, 42, lit.Value)

	recvDecl := fn.Body.Stmts[1].(*ast.VarDeclStmt)
	recv, ok := recvDecl.Init.(*ast.MessageRecvExpr)
	require.True(t, ok)
	require.NotNil(t, recv.Timeout)

	blockingDecl := fn.Body.Stmts[2].(*ast.VarDeclStmt)
	blockingRecv, ok := blockingDecl.Init.(*ast.MessageRecvExpr)
	require.True(t, ok)
	require.Nil(t, blockingRecv.Timeout)
}

func TestSizeofTypeAndExpr(t *testing.T) {
	src := `
struct Point { int x; int y; };
void f() {
	int a = sizeof(struct Point);
	int b = sizeof(a);
}
`
	prog := parse(t, src)
	fn := prog.Decls[1].(*ast.FuncDecl)

	aDecl := fn.Body.Stmts[0].(*ast.VarDeclStmt)
	aSizeof, ok := aDecl.Init.(*ast.SizeofExpr)
	require.True(t, ok)
	require.NotNil(t, aSizeof.Type)
	require.Nil(t, aSizeof.X)

	bDecl := fn.Body.Stmts[1].(*ast.VarDeclStmt)
	bSizeof, ok := bDecl.Init.(*ast.SizeofExpr)
	require.True(t, ok)
	require.Nil(t, bSizeof.Type)
	require.NotNil(t, bSizeof.X)
}

func TestFunctionCallExpr(t *testing.T) {
	prog := parse(t, "void f() { add(1, 2); }")
	fn := prog.Decls[0].(*ast.FuncDecl)
	exprStmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	call, ok := exprStmt.X.(*ast.CallExpr)
	require.True(t, ok)
	require.Equal(t, "add", call.Callee)
	require.Len(t, call.Args, 2)
}

func TestArrayIndexAndMemberAccess(t *testing.T) {
	src := `
struct Point { int x; int y; };
void f() {
	int arr[4];
	struct Point *p;
	arr[0] = p->x;
}
`
	prog := parse(t, src)
	fn := prog.Decls[1].(*ast.FuncDecl)
	assignStmt := fn.Body.Stmts[2].(*ast.ExprStmt)
	assign, ok := assignStmt.X.(*ast.AssignExpr)
	require.True(t, ok)

	idx, ok := assign.Target.(*ast.IndexExpr)
	require.True(t, ok)
	_, isIdent := idx.X.(*ast.Identifier)
	require.True(t, isIdent)

	member, ok := assign.Value.(*ast.MemberExpr)
	require.True(t, ok)
	require.True(t, member.Arrow)
	require.Equal(t, "x", member.Name)
}

func TestUnexpectedTokenIsTypedError(t *testing.T) {
	b := []byte("int x = ;")
	s := lexer.NewScanner(b)
	p := parser.NewParser(s, b)
	_, err := p.Parse()
	require.Error(t, err)
	var perr *parser.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, parser.ErrUnexpectedToken, perr.Kind)
}

func TestMissingSemicolonIsError(t *testing.T) {
	b := []byte("int x = 1")
	s := lexer.NewScanner(b)
	p := parser.NewParser(s, b)
	_, err := p.Parse()
	require.Error(t, err)
}
