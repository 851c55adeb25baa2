package sema

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
)

// FuncInfo is a function's resolved signature plus its frame layout, handed
// to the bytecode generator.
type FuncInfo struct {
	ID         int
	Name       string
	Params     []Type
	ReturnType Type
	FrameSlots int // number of local/param slots the function's frame needs
}

// MsgInfo is a message channel's resolved element type and assigned id.
type MsgInfo struct {
	ID       int
	Name     string
	ElemType Type
}

// TaskInfo is one desugared Task declaration: the synthetic function it
// lowers to, plus the (stack, core, priority) StartTask operands.
type TaskInfo struct {
	ID       int
	Name     string
	FuncName string
	Stack    int64
	Core     int64
	Priority int64
}

// Info is everything the bytecode generator needs after a successful
// analysis: layouts, resolved globals/functions/messages, and task sugar
// lowered to StartTask operands.
type Info struct {
	Layouts   map[string]*StructLayout
	Globals   []*Symbol
	Functions map[string]*FuncInfo
	Messages  map[string]*MsgInfo
	Tasks     []TaskInfo
	// FuncLocals maps a function name to its body's resolved symbol table,
	// so codegen can look up each local's frame slot.
	FuncLocals map[string]map[string]*Symbol
	// Idents maps an *ast.Identifier's token offset (unique per occurrence
	// in the source) to the Symbol the scope stack resolved it to at that
	// point in the program. A flat by-name map cannot represent shadowing
	// (an inner block's `int x` re-declaring an outer `x`) since both
	// declarations share one name; keying by occurrence instead means
	// codegen resolves each identifier reference to exactly the symbol
	// sema's scope stack resolved it to, shadowing included.
	Idents map[uint32]*Symbol
	// Decls is the program's top-level declarations after Task-sugar
	// desugaring: codegen walks this, not the original parsed Program, so
	// it sees every Task's run() body as an ordinary FuncDecl.
	Decls []ast.Decl
}

// Analyzer walks an ast.Program, resolving names, checking types, and
// computing struct/union layouts and storage addresses.
type Analyzer struct {
	src []byte

	layouts     map[string]*StructLayout
	declsByName map[string]ast.Decl
	visiting    map[string]bool

	scopes    *scopeStack
	functions map[string]*FuncInfo
	messages  map[string]*MsgInfo
	tasks     []TaskInfo

	constVals map[string]int64

	globals     []*Symbol
	nextGlobal  uint32
	nextFuncID  int
	nextMsgID   int
	nextTaskID  int
	funcLocals  map[string]map[string]*Symbol
	idents      map[uint32]*Symbol
	curFrameLen int
}

// NewAnalyzer creates an Analyzer over src, the source buffer tokens were
// lexed from (needed to materialize identifier lexemes from their tokens).
func NewAnalyzer(src []byte) *Analyzer {
	return &Analyzer{
		src:         src,
		layouts:     make(map[string]*StructLayout),
		declsByName: make(map[string]ast.Decl),
		visiting:    make(map[string]bool),
		scopes:      newScopeStack(),
		functions:   make(map[string]*FuncInfo),
		messages:    make(map[string]*MsgInfo),
		constVals:   make(map[string]int64),
		funcLocals:  make(map[string]map[string]*Symbol),
		idents:      make(map[uint32]*Symbol),
	}
}

// Analyze runs every analysis pass over prog and returns the resolved Info.
func (a *Analyzer) Analyze(prog *ast.Program) (*Info, error) {
	decls, err := a.desugarTasks(prog.Decls)
	if err != nil {
		return nil, err
	}

	a.registerDecls(decls)
	for name, decl := range a.declsByName {
		if _, ok := decl.(*ast.StructDecl); ok {
			if _, err := a.resolveLayout(name); err != nil {
				return nil, err
			}
		}
		if _, ok := decl.(*ast.UnionDecl); ok {
			if _, err := a.resolveLayout(name); err != nil {
				return nil, err
			}
		}
	}

	// Pre-register function signatures so forward calls resolve before the
	// callee's body is type-checked.
	for _, d := range decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			if err := a.declareFunction(fn); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range decls {
		switch n := d.(type) {
		case *ast.GlobalVarDecl:
			if err := a.checkGlobalVarDecl(n); err != nil {
				return nil, err
			}
		case *ast.MessageDecl:
			if err := a.checkMessageDecl(n); err != nil {
				return nil, err
			}
		case *ast.FuncDecl:
			if err := a.checkFuncBody(n); err != nil {
				return nil, err
			}
		case *ast.StructDecl, *ast.UnionDecl:
			// layouts already resolved above.
		}
	}

	return &Info{
		Layouts:    a.layouts,
		Globals:    a.globals,
		Functions:  a.functions,
		Messages:   a.messages,
		Tasks:      a.tasks,
		FuncLocals: a.funcLocals,
		Idents:     a.idents,
		Decls:      decls,
	}, nil
}

func (a *Analyzer) lex(t lexer.Token) string { return t.Lexeme(a.src) }

// --- type resolution -------------------------------------------------------

func (a *Analyzer) resolveTypeExpr(te ast.TypeExpr) (Type, error) {
	switch n := te.(type) {
	case *ast.PrimitiveType:
		switch n.Kind {
		case lexer.KindInt:
			return Type{Kind: TInt}, nil
		case lexer.KindFloat:
			return Type{Kind: TFloat}, nil
		case lexer.KindChar:
			return Type{Kind: TChar}, nil
		case lexer.KindBool:
			return Type{Kind: TBool}, nil
		case lexer.KindVoid:
			return Type{Kind: TVoid}, nil
		}
		return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column, Message: "unknown primitive type"}
	case *ast.NamedType:
		return a.resolveNamedType(n, true)
	case *ast.PointerType:
		elem, err := a.resolveElemType(n.Elem)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: TPointer, Elem: &elem}, nil
	case *ast.ArrayType:
		elem, err := a.resolveTypeExpr(n.Elem)
		if err != nil {
			return Type{}, err
		}
		size, ok := a.evalConstInt(n.Size)
		if !ok {
			return Type{}, &Error{Kind: ArraySizeNotConstant, Line: n.Token.Line, Column: n.Token.Column,
				Message: "array size must be a compile-time constant"}
		}
		return Type{Kind: TArray, Elem: &elem, ArrayLen: int(size)}, nil
	case *ast.MessageType:
		elem, err := a.resolveTypeExpr(n.Elem)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: TMessage, Elem: &elem}, nil
	default:
		return Type{}, fmt.Errorf("sema: unknown type expr %T", te)
	}
}

// resolveNamedType resolves a struct/union name reference. eager controls
// whether the referenced type's layout is computed now: a value field needs
// its pointee's size immediately, but a pointer field only needs 8 bytes of
// its own storage, so resolving the pointee eagerly would force a layout
// computation that may not have started yet — and, for two structs that
// point at each other, would misreport that legitimate indirection as the
// CircularType a non-pointer cycle actually is.
func (a *Analyzer) resolveNamedType(n *ast.NamedType, eager bool) (Type, error) {
	decl, ok := a.declsByName[n.Name]
	if !ok {
		return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("undefined type %q", n.Name)}
	}
	if eager {
		if _, err := a.resolveLayout(n.Name); err != nil {
			return Type{}, err
		}
	}
	if _, isUnion := decl.(*ast.UnionDecl); isUnion {
		return Type{Kind: TUnion, StructName: n.Name}, nil
	}
	return Type{Kind: TStruct, StructName: n.Name}, nil
}

// resolveElemType resolves the type pointed to by a pointer, deferring
// struct/union layout resolution (see resolveNamedType) since a pointer's
// own size never depends on its pointee's layout.
func (a *Analyzer) resolveElemType(te ast.TypeExpr) (Type, error) {
	if n, ok := te.(*ast.NamedType); ok {
		return a.resolveNamedType(n, false)
	}
	return a.resolveTypeExpr(te)
}

// --- globals -----------------------------------------------------------

func (a *Analyzer) checkGlobalVarDecl(n *ast.GlobalVarDecl) error {
	name := a.lex(n.Name)
	typ, err := a.resolveTypeExpr(n.Type)
	if err != nil {
		return err
	}
	if n.ArrayLen != nil {
		size, ok := a.evalConstInt(n.ArrayLen)
		if !ok {
			return &Error{Kind: ArraySizeNotConstant, Line: n.Name.Line, Column: n.Name.Column,
				Message: fmt.Sprintf("array size of %q must be a compile-time constant", name)}
		}
		elemType := typ
		typ = Type{Kind: TArray, Elem: &elemType, ArrayLen: int(size)}
	}

	sym := &Symbol{Name: name, Kind: SymGlobal, Type: typ, IsConst: n.IsConst}
	if !a.scopes.declare(sym) {
		return &Error{Kind: DuplicateDefinition, Line: n.Name.Line, Column: n.Name.Column,
			Message: fmt.Sprintf("global %q already defined", name)}
	}

	align := typ.Align(a.layouts)
	a.nextGlobal = alignUp(a.nextGlobal, align)
	sym.Address = a.nextGlobal
	a.nextGlobal += typ.Size(a.layouts)
	a.globals = append(a.globals, sym)

	if n.Init != nil {
		initType, err := a.checkExpr(n.Init)
		if err != nil {
			return err
		}
		if !assignable(typ, initType) {
			return &Error{Kind: TypeMismatch, Line: n.Name.Line, Column: n.Name.Column,
				Message: fmt.Sprintf("cannot initialize %s with %s", typ, initType)}
		}
		if n.IsConst {
			if v, ok := a.evalConstInt(n.Init); ok {
				a.constVals[name] = v
			}
		}
	}
	return nil
}

func (a *Analyzer) checkMessageDecl(n *ast.MessageDecl) error {
	name := a.lex(n.Name)
	elem, err := a.resolveTypeExpr(n.ElemType)
	if err != nil {
		return err
	}
	if _, exists := a.messages[name]; exists {
		return &Error{Kind: DuplicateDefinition, Line: n.Name.Line, Column: n.Name.Column,
			Message: fmt.Sprintf("message channel %q already declared", name)}
	}
	id := a.nextMsgID
	a.nextMsgID++
	info := &MsgInfo{ID: id, Name: name, ElemType: elem}
	a.messages[name] = info

	sym := &Symbol{Name: name, Kind: SymMessage, Type: Type{Kind: TMessage, Elem: &elem}, Address: uint32(id)}
	if !a.scopes.declare(sym) {
		return &Error{Kind: DuplicateDefinition, Line: n.Name.Line, Column: n.Name.Column,
			Message: fmt.Sprintf("name %q already defined", name)}
	}
	return nil
}

// --- functions -----------------------------------------------------------

func (a *Analyzer) declareFunction(fn *ast.FuncDecl) error {
	name := a.lex(fn.Name)
	if _, exists := a.functions[name]; exists {
		return &Error{Kind: DuplicateDefinition, Line: fn.Name.Line, Column: fn.Name.Column,
			Message: fmt.Sprintf("function %q already defined", name)}
	}
	retType, err := a.resolveTypeExpr(fn.ReturnType)
	if err != nil {
		return err
	}
	params := make([]Type, len(fn.Params))
	for i, p := range fn.Params {
		pt, err := a.resolveTypeExpr(p.Type)
		if err != nil {
			return err
		}
		params[i] = pt
	}
	id := a.nextFuncID
	a.nextFuncID++
	a.functions[name] = &FuncInfo{ID: id, Name: name, Params: params, ReturnType: retType}
	return nil
}

func (a *Analyzer) checkFuncBody(fn *ast.FuncDecl) error {
	name := a.lex(fn.Name)
	info := a.functions[name]

	a.scopes.push()
	a.curFrameLen = 0
	locals := make(map[string]*Symbol)

	for i, p := range fn.Params {
		pname := a.lex(p.Name)
		sym := &Symbol{Name: pname, Kind: SymParam, Type: info.Params[i], Address: uint32(a.curFrameLen)}
		a.curFrameLen++
		if !a.scopes.declare(sym) {
			return &Error{Kind: DuplicateDefinition, Line: p.Name.Line, Column: p.Name.Column,
				Message: fmt.Sprintf("parameter %q already declared", pname)}
		}
		locals[pname] = sym
	}

	if err := a.checkBlockInto(fn.Body, locals); err != nil {
		return err
	}
	a.scopes.pop()

	info.FrameSlots = a.curFrameLen
	a.funcLocals[name] = locals
	return nil
}

// checkBlockInto checks stmt list without pushing a fresh scope (the caller
// already pushed one for the function's parameters), capturing every local
// declared transitively into locals so codegen can resolve frame slots.
func (a *Analyzer) checkBlockInto(b *ast.BlockStmt, locals map[string]*Symbol) error {
	for _, s := range b.Stmts {
		if err := a.checkStmt(s, locals); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkStmt(s ast.Stmt, locals map[string]*Symbol) error {
	switch n := s.(type) {
	case *ast.BlockStmt:
		a.scopes.push()
		err := a.checkBlockInto(n, locals)
		a.scopes.pop()
		return err

	case *ast.VarDeclStmt:
		name := a.lex(n.Name)
		typ, err := a.resolveTypeExpr(n.Type)
		if err != nil {
			return err
		}
		if n.ArrayLen != nil {
			size, ok := a.evalConstInt(n.ArrayLen)
			if !ok {
				return &Error{Kind: ArraySizeNotConstant, Line: n.Name.Line, Column: n.Name.Column,
					Message: fmt.Sprintf("array size of %q must be a compile-time constant", name)}
			}
			elemType := typ
			typ = Type{Kind: TArray, Elem: &elemType, ArrayLen: int(size)}
		}
		sym := &Symbol{Name: name, Kind: SymLocal, Type: typ, IsConst: n.IsConst, Address: uint32(a.curFrameLen)}
		a.curFrameLen++
		if !a.scopes.declare(sym) {
			return &Error{Kind: DuplicateDefinition, Line: n.Name.Line, Column: n.Name.Column,
				Message: fmt.Sprintf("local %q already declared in this scope", name)}
		}
		locals[name] = sym
		if n.Init != nil {
			initType, err := a.checkExpr(n.Init)
			if err != nil {
				return err
			}
			if !assignable(typ, initType) {
				return &Error{Kind: TypeMismatch, Line: n.Name.Line, Column: n.Name.Column,
					Message: fmt.Sprintf("cannot initialize %s with %s", typ, initType)}
			}
		}
		return nil

	case *ast.IfStmt:
		if _, err := a.checkExpr(n.Cond); err != nil {
			return err
		}
		if err := a.checkStmt(n.Then, locals); err != nil {
			return err
		}
		if n.Else != nil {
			return a.checkStmt(n.Else, locals)
		}
		return nil

	case *ast.WhileStmt:
		if _, err := a.checkExpr(n.Cond); err != nil {
			return err
		}
		return a.checkStmt(n.Body, locals)

	case *ast.ForStmt:
		a.scopes.push()
		defer a.scopes.pop()
		if n.Init != nil {
			if err := a.checkStmt(n.Init, locals); err != nil {
				return err
			}
		}
		if n.Cond != nil {
			if _, err := a.checkExpr(n.Cond); err != nil {
				return err
			}
		}
		if n.Post != nil {
			if _, err := a.checkExpr(n.Post); err != nil {
				return err
			}
		}
		return a.checkStmt(n.Body, locals)

	case *ast.ReturnStmt:
		if n.Value != nil {
			_, err := a.checkExpr(n.Value)
			return err
		}
		return nil

	case *ast.ExprStmt:
		_, err := a.checkExpr(n.X)
		return err

	case *ast.BreakStmt, *ast.ContinueStmt:
		return nil

	default:
		return fmt.Errorf("sema: unknown statement %T", s)
	}
}

// --- expressions -----------------------------------------------------------

func assignable(target, src Type) bool {
	if target.Equal(src) {
		return true
	}
	if target.IsNumeric() && src.IsNumeric() {
		return true
	}
	if target.Kind == TPointer && src.Kind == TPointer {
		return true // void* compatibility and pointer widening kept permissive
	}
	return false
}

func (a *Analyzer) checkExpr(e ast.Expr) (Type, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return Type{Kind: TInt}, nil
	case *ast.FloatLiteral:
		return Type{Kind: TFloat}, nil
	case *ast.CharLiteral:
		return Type{Kind: TChar}, nil
	case *ast.BoolLiteral:
		return Type{Kind: TBool}, nil
	case *ast.StringLiteral:
		ct := Type{Kind: TChar}
		return Type{Kind: TPointer, Elem: &ct}, nil
	case *ast.ArrayLiteral:
		if len(n.Elems) == 0 {
			return Type{Kind: TArray, Elem: &Type{Kind: TInt}, ArrayLen: 0}, nil
		}
		elemType, err := a.checkExpr(n.Elems[0])
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: TArray, Elem: &elemType, ArrayLen: len(n.Elems)}, nil

	case *ast.Identifier:
		sym, ok := a.scopes.lookup(n.Name)
		if !ok {
			if _, isFunc := a.functions[n.Name]; isFunc {
				return Type{Kind: TVoid}, nil
			}
			return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("undefined identifier %q", n.Name)}
		}
		// Record which symbol this specific occurrence resolved to: a flat
		// by-name table can't tell two same-named shadowed locals apart,
		// but this token's source offset is unique to this one reference.
		a.idents[n.Token.Offset] = sym
		return sym.Type, nil

	case *ast.UnaryExpr:
		return a.checkUnary(n)

	case *ast.SizeofExpr:
		if n.Type != nil {
			if _, err := a.resolveTypeExpr(n.Type); err != nil {
				return Type{}, err
			}
		} else {
			if _, err := a.checkExpr(n.X); err != nil {
				return Type{}, err
			}
		}
		return Type{Kind: TInt}, nil

	case *ast.CastExpr:
		if _, err := a.checkExpr(n.X); err != nil {
			return Type{}, err
		}
		return a.resolveTypeExpr(n.Type)

	case *ast.BinaryExpr:
		return a.checkBinary(n)

	case *ast.AssignExpr:
		return a.checkAssign(n)

	case *ast.MemberExpr:
		return a.checkMember(n)

	case *ast.IndexExpr:
		xt, err := a.checkExpr(n.X)
		if err != nil {
			return Type{}, err
		}
		if _, err := a.checkExpr(n.Index); err != nil {
			return Type{}, err
		}
		if xt.Kind != TArray && xt.Kind != TPointer {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("cannot index %s", xt)}
		}
		return *xt.Elem, nil

	case *ast.CallExpr:
		return a.checkCall(n)

	case *ast.MessageSendExpr:
		return a.checkMessageSend(n)

	case *ast.MessageRecvExpr:
		return a.checkMessageRecv(n)

	default:
		return Type{}, fmt.Errorf("sema: unknown expr %T", e)
	}
}

func (a *Analyzer) checkUnary(n *ast.UnaryExpr) (Type, error) {
	xt, err := a.checkExpr(n.X)
	if err != nil {
		return Type{}, err
	}
	switch n.Op.String() {
	case "&":
		return Type{Kind: TPointer, Elem: &xt}, nil
	case "*":
		if xt.Kind != TPointer {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("cannot dereference non-pointer type %s", xt)}
		}
		return *xt.Elem, nil
	default:
		return xt, nil
	}
}

func (a *Analyzer) checkBinary(n *ast.BinaryExpr) (Type, error) {
	lt, err := a.checkExpr(n.Left)
	if err != nil {
		return Type{}, err
	}
	rt, err := a.checkExpr(n.Right)
	if err != nil {
		return Type{}, err
	}

	switch n.Op.String() {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return Type{Kind: TBool}, nil
	case "&", "|", "^", "<<", ">>", "%":
		if !isIntegral(lt) || !isIntegral(rt) {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("bitwise operator requires integral operands, got %s and %s", lt, rt)}
		}
		return Type{Kind: TInt}, nil
	default: // + - * /
		if lt.Kind == TPointer {
			return lt, nil
		}
		if rt.Kind == TPointer {
			return rt, nil
		}
		if lt.Kind == TFloat || rt.Kind == TFloat {
			return Type{Kind: TFloat}, nil
		}
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("arithmetic operator requires numeric operands, got %s and %s", lt, rt)}
		}
		return Type{Kind: TInt}, nil
	}
}

func isIntegral(t Type) bool {
	return t.Kind == TInt || t.Kind == TChar || t.Kind == TBool
}

func (a *Analyzer) checkAssign(n *ast.AssignExpr) (Type, error) {
	if !isLValue(n.Target) {
		return Type{}, &Error{Kind: NonLValueAssignment, Line: n.Token.Line, Column: n.Token.Column,
			Message: "left-hand side of assignment is not assignable"}
	}
	if id, ok := n.Target.(*ast.Identifier); ok {
		if sym, found := a.scopes.lookup(id.Name); found && sym.IsConst {
			return Type{}, &Error{Kind: ConstAssignment, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("cannot assign to const %q", id.Name)}
		}
	}
	targetType, err := a.checkExpr(n.Target)
	if err != nil {
		return Type{}, err
	}
	valueType, err := a.checkExpr(n.Value)
	if err != nil {
		return Type{}, err
	}
	if !assignable(targetType, valueType) {
		return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("cannot assign %s to %s", valueType, targetType)}
	}
	return targetType, nil
}

func isLValue(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Identifier:
		return true
	case *ast.MemberExpr:
		return true
	case *ast.IndexExpr:
		return true
	case *ast.UnaryExpr:
		return n.Op.String() == "*"
	default:
		return false
	}
}

func (a *Analyzer) checkMember(n *ast.MemberExpr) (Type, error) {
	xt, err := a.checkExpr(n.X)
	if err != nil {
		return Type{}, err
	}
	structType := xt
	if n.Arrow {
		if xt.Kind != TPointer {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("-> requires a pointer, got %s", xt)}
		}
		structType = *xt.Elem
	}
	if structType.Kind != TStruct && structType.Kind != TUnion {
		return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("member access on non-struct/union type %s", structType)}
	}
	layout := a.layouts[structType.StructName]
	field, ok := layout.Field(n.Name)
	if !ok {
		return Type{}, &Error{Kind: FieldNotFound, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("%s has no field %q", structType, n.Name)}
	}
	return field.Type, nil
}

func (a *Analyzer) checkCall(n *ast.CallExpr) (Type, error) {
	if fn, ok := a.functions[n.Callee]; ok {
		if len(n.Args) != len(fn.Params) {
			return Type{}, &Error{Kind: ArityMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("%s expects %d arguments, got %d", n.Callee, len(fn.Params), len(n.Args))}
		}
		for _, arg := range n.Args {
			if _, err := a.checkExpr(arg); err != nil {
				return Type{}, err
			}
		}
		return fn.ReturnType, nil
	}

	if arity, ok := bytecode.IntrinsicArity[n.Callee]; ok {
		if len(n.Args) != arity {
			return Type{}, &Error{Kind: ArityMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: fmt.Sprintf("%s expects %d arguments, got %d", n.Callee, arity, len(n.Args))}
		}
		for _, arg := range n.Args {
			if _, err := a.checkExpr(arg); err != nil {
				return Type{}, err
			}
		}
		return Type{Kind: TInt}, nil
	}

	return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column,
		Message: fmt.Sprintf("call to undefined function %q", n.Callee)}
}

func (a *Analyzer) checkMessageSend(n *ast.MessageSendExpr) (Type, error) {
	id, ok := n.Chan.(*ast.Identifier)
	if !ok {
		return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
			Message: "message send target must be a channel name"}
	}
	msg, ok := a.messages[id.Name]
	if !ok {
		return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("undefined message channel %q", id.Name)}
	}
	valType, err := a.checkExpr(n.Value)
	if err != nil {
		return Type{}, err
	}
	if !assignable(msg.ElemType, valType) {
		return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("cannot send %s on channel of %s", valType, msg.ElemType)}
	}
	return Type{Kind: TVoid}, nil
}

func (a *Analyzer) checkMessageRecv(n *ast.MessageRecvExpr) (Type, error) {
	id, ok := n.Chan.(*ast.Identifier)
	if !ok {
		return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
			Message: "message recv target must be a channel name"}
	}
	msg, ok := a.messages[id.Name]
	if !ok {
		return Type{}, &Error{Kind: UndefinedSymbol, Line: n.Token.Line, Column: n.Token.Column,
			Message: fmt.Sprintf("undefined message channel %q", id.Name)}
	}
	if n.Timeout != nil {
		tt, err := a.checkExpr(n.Timeout)
		if err != nil {
			return Type{}, err
		}
		if !isIntegral(tt) {
			return Type{}, &Error{Kind: TypeMismatch, Line: n.Token.Line, Column: n.Token.Column,
				Message: "recv timeout must be an integer expression"}
		}
	}
	return msg.ElemType, nil
}
