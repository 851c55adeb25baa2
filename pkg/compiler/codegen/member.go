package codegen

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
)

// identSymbol resolves id to the exact Symbol sema's scope stack resolved
// it to at that source occurrence (sema.Info.Idents, keyed by token
// offset), so a shadowing inner-block local never gets confused with an
// outer symbol of the same name. The by-name locals/global lookup is only
// a fallback for identifiers sema never type-checked directly.
func (g *Generator) identSymbol(id *ast.Identifier) (*sema.Symbol, bool) {
	if s, ok := g.info.Idents[id.Token.Offset]; ok {
		return s, true
	}
	if g.locals != nil {
		if s, ok := g.locals[id.Name]; ok {
			return s, true
		}
	}
	if s := g.findGlobal(id.Name); s != nil {
		return s, true
	}
	return nil, false
}

// symbolType returns the declared type of the local or global id resolves to.
func (g *Generator) symbolType(id *ast.Identifier) (sema.Type, error) {
	if s, ok := g.identSymbol(id); ok {
		return s.Type, nil
	}
	return sema.Type{}, fmt.Errorf("codegen: internal: identifier %q not resolved by sema", id.Name)
}

// inferType recovers an already-checked expression's static type without
// emitting any instructions. The analyzer discards per-expression types
// once a program passes checkExpr, so codegen re-derives the few it needs
// (struct/union name for member access, element type for indexing/derefs)
// straight from the same declarations sema resolved.
func (g *Generator) inferType(e ast.Expr) (sema.Type, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return sema.Type{Kind: sema.TInt}, nil
	case *ast.FloatLiteral:
		return sema.Type{Kind: sema.TFloat}, nil
	case *ast.CharLiteral:
		return sema.Type{Kind: sema.TChar}, nil
	case *ast.BoolLiteral:
		return sema.Type{Kind: sema.TBool}, nil
	case *ast.StringLiteral:
		elem := sema.Type{Kind: sema.TChar}
		return sema.Type{Kind: sema.TPointer, Elem: &elem}, nil
	case *ast.Identifier:
		return g.symbolType(n)
	case *ast.UnaryExpr:
		switch n.Op.String() {
		case "&":
			t, err := g.inferType(n.X)
			if err != nil {
				return sema.Type{}, err
			}
			return sema.Type{Kind: sema.TPointer, Elem: &t}, nil
		case "*":
			t, err := g.inferType(n.X)
			if err != nil {
				return sema.Type{}, err
			}
			if t.Elem == nil {
				return sema.Type{}, fmt.Errorf("codegen: internal: * on non-pointer type %s", t)
			}
			return *t.Elem, nil
		default:
			return g.inferType(n.X)
		}
	case *ast.BinaryExpr:
		switch n.Op.String() {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			return sema.Type{Kind: sema.TBool}, nil
		}
		lt, err := g.inferType(n.Left)
		if err != nil {
			return sema.Type{}, err
		}
		if lt.Kind == sema.TPointer {
			return lt, nil
		}
		return g.inferType(n.Right)
	case *ast.AssignExpr:
		return g.inferType(n.Target)
	case *ast.CastExpr:
		return g.resolveType(n.Type)
	case *ast.SizeofExpr:
		return sema.Type{Kind: sema.TInt}, nil
	case *ast.MemberExpr:
		field, err := g.fieldOf(n)
		if err != nil {
			return sema.Type{}, err
		}
		return field.Type, nil
	case *ast.IndexExpr:
		xt, err := g.inferType(n.X)
		if err != nil {
			return sema.Type{}, err
		}
		if xt.Elem == nil {
			return sema.Type{}, fmt.Errorf("codegen: internal: index on non-array/pointer type %s", xt)
		}
		return *xt.Elem, nil
	case *ast.CallExpr:
		if fn, ok := g.info.Functions[n.Callee]; ok {
			return fn.ReturnType, nil
		}
		return sema.Type{Kind: sema.TInt}, nil
	default:
		return sema.Type{}, fmt.Errorf("codegen: cannot infer type of %T", e)
	}
}

// resolveType mirrors the analyzer's type-expression resolution, but
// without the eager/deferred layout distinction sema needs for cycle
// detection: by the time codegen runs every layout already exists.
func (g *Generator) resolveType(te ast.TypeExpr) (sema.Type, error) {
	switch t := te.(type) {
	case *ast.PrimitiveType:
		return primitiveType(t.Kind), nil
	case *ast.NamedType:
		if l, ok := g.info.Layouts[t.Name]; ok {
			kind := sema.TStruct
			if l.IsUnion {
				kind = sema.TUnion
			}
			return sema.Type{Kind: kind, StructName: t.Name}, nil
		}
		return sema.Type{}, fmt.Errorf("codegen: internal: unknown type %q", t.Name)
	case *ast.PointerType:
		elem, err := g.resolveType(t.Elem)
		if err != nil {
			return sema.Type{}, err
		}
		return sema.Type{Kind: sema.TPointer, Elem: &elem}, nil
	case *ast.ArrayType:
		elem, err := g.resolveType(t.Elem)
		if err != nil {
			return sema.Type{}, err
		}
		size, _ := g.constInt(t.Size)
		return sema.Type{Kind: sema.TArray, Elem: &elem, ArrayLen: int(size)}, nil
	case *ast.MessageType:
		elem, err := g.resolveType(t.Elem)
		if err != nil {
			return sema.Type{}, err
		}
		return sema.Type{Kind: sema.TMessage, Elem: &elem}, nil
	default:
		return sema.Type{}, fmt.Errorf("codegen: unknown type expr %T", te)
	}
}

func primitiveType(k interface{ String() string }) sema.Type {
	switch k.String() {
	case "int":
		return sema.Type{Kind: sema.TInt}
	case "float":
		return sema.Type{Kind: sema.TFloat}
	case "char":
		return sema.Type{Kind: sema.TChar}
	case "bool":
		return sema.Type{Kind: sema.TBool}
	default:
		return sema.Type{Kind: sema.TVoid}
	}
}

func (g *Generator) resolveTypeSize(te ast.TypeExpr) (int64, error) {
	t, err := g.resolveType(te)
	if err != nil {
		return 0, err
	}
	return int64(t.Size(g.info.Layouts)), nil
}

// constInt is codegen's own restricted constant folder, covering exactly
// the literal/unary/binary shapes StartTask's and recv's timeout arguments
// can reasonably take. It duplicates a small slice of the analyzer's
// evalConstInt rather than calling it, since that method is unexported and
// codegen only ever sees already-validated expressions.
func (g *Generator) constInt(e ast.Expr) (int64, bool) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return n.Value, true
	case *ast.CharLiteral:
		return int64(n.Value), true
	case *ast.BoolLiteral:
		if n.Value {
			return 1, true
		}
		return 0, true
	case *ast.UnaryExpr:
		v, ok := g.constInt(n.X)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		}
		return 0, false
	case *ast.BinaryExpr:
		l, ok := g.constInt(n.Left)
		if !ok {
			return 0, false
		}
		r, ok := g.constInt(n.Right)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// lvalueAddress emits code that pushes the address of the storage e
// designates, returning e's type. Used for &e, for assignment targets, and
// as the recursive base case when composing nested member/index addresses.
func (g *Generator) lvalueAddress(e ast.Expr) (sema.Type, error) {
	switch n := e.(type) {
	case *ast.Identifier:
		s, ok := g.resolveSymbol(n)
		if !ok {
			return sema.Type{}, fmt.Errorf("codegen: internal: identifier %q not resolved by sema", n.Name)
		}
		t, err := g.symbolType(n)
		if err != nil {
			return sema.Type{}, err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadAddr, Operands: []int64{s.address}})
		return t, nil

	case *ast.MemberExpr:
		field, err := g.memberAddress(n)
		if err != nil {
			return sema.Type{}, err
		}
		return field.Type, nil

	case *ast.IndexExpr:
		return g.indexAddress(n)

	case *ast.UnaryExpr:
		if n.Op.String() != "*" {
			return sema.Type{}, fmt.Errorf("codegen: unsupported lvalue %T", e)
		}
		t, err := g.inferType(n.X)
		if err != nil {
			return sema.Type{}, err
		}
		if t.Elem == nil {
			return sema.Type{}, fmt.Errorf("codegen: internal: * on non-pointer type %s", t)
		}
		if err := g.emitExpr(n.X); err != nil {
			return sema.Type{}, err
		}
		return *t.Elem, nil

	default:
		return sema.Type{}, fmt.Errorf("codegen: unsupported lvalue %T", e)
	}
}

// fieldOf resolves n's field descriptor without emitting anything, so
// inferType can use it purely for type lookup.
func (g *Generator) fieldOf(n *ast.MemberExpr) (*sema.FieldDescriptor, error) {
	var structType sema.Type
	if n.Arrow {
		t, err := g.inferType(n.X)
		if err != nil {
			return nil, err
		}
		if t.Elem == nil {
			return nil, fmt.Errorf("codegen: internal: -> on non-pointer type %s", t)
		}
		structType = *t.Elem
	} else {
		t, err := g.inferType(n.X)
		if err != nil {
			return nil, err
		}
		structType = t
	}
	layout, ok := g.info.Layouts[structType.StructName]
	if !ok {
		return nil, fmt.Errorf("codegen: internal: no layout for %q", structType.StructName)
	}
	field, ok := layout.Field(n.Name)
	if !ok {
		return nil, fmt.Errorf("codegen: internal: field %q not found on %q", n.Name, structType.StructName)
	}
	return field, nil
}

// memberAddress emits code pushing the address of n's storage (the
// containing word for a bit-field, the field itself otherwise).
func (g *Generator) memberAddress(n *ast.MemberExpr) (*sema.FieldDescriptor, error) {
	field, err := g.fieldOf(n)
	if err != nil {
		return nil, err
	}
	if n.Arrow {
		if err := g.emitExpr(n.X); err != nil {
			return nil, err
		}
	} else if _, err := g.lvalueAddress(n.X); err != nil {
		return nil, err
	}
	if field.ByteOffset != 0 {
		idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(field.ByteOffset)})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		g.emit(bytecode.Instruction{Op: bytecode.OpAdd})
	}
	return field, nil
}

// indexAddress emits code pushing the address of n.X[n.Index], decaying an
// array base to its storage address and a pointer base to its value.
func (g *Generator) indexAddress(n *ast.IndexExpr) (sema.Type, error) {
	xt, err := g.inferType(n.X)
	if err != nil {
		return sema.Type{}, err
	}
	if xt.Elem == nil {
		return sema.Type{}, fmt.Errorf("codegen: internal: index on non-array/pointer type %s", xt)
	}
	if xt.Kind == sema.TPointer {
		if err := g.emitExpr(n.X); err != nil {
			return sema.Type{}, err
		}
	} else if _, err := g.lvalueAddress(n.X); err != nil {
		return sema.Type{}, err
	}
	if err := g.emitExpr(n.Index); err != nil {
		return sema.Type{}, err
	}
	elemSize := int64(xt.Elem.Size(g.info.Layouts))
	idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(elemSize)})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
	g.emit(bytecode.Instruction{Op: bytecode.OpMul})
	g.emit(bytecode.Instruction{Op: bytecode.OpAdd})
	return *xt.Elem, nil
}

func (g *Generator) emitMemberLoad(n *ast.MemberExpr) error {
	field, err := g.memberAddress(n)
	if err != nil {
		return err
	}
	if field.BitWidth > 0 {
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadStructMemberBit, Operands: []int64{int64(field.BitOffset), int64(field.BitWidth)}})
	} else {
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadStructMember})
	}
	return nil
}

func (g *Generator) emitMemberStore(n *ast.MemberExpr) error {
	field, err := g.memberAddress(n)
	if err != nil {
		return err
	}
	if field.BitWidth > 0 {
		g.emit(bytecode.Instruction{Op: bytecode.OpStoreStructMemberBit, Operands: []int64{int64(field.BitOffset), int64(field.BitWidth)}})
	} else {
		g.emit(bytecode.Instruction{Op: bytecode.OpStoreStructMember})
	}
	return nil
}

func (g *Generator) emitIndexLoad(n *ast.IndexExpr) error {
	if _, err := g.indexAddress(n); err != nil {
		return err
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadArrayElem})
	return nil
}

func (g *Generator) emitIndexStore(n *ast.IndexExpr) error {
	if _, err := g.indexAddress(n); err != nil {
		return err
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpStoreArrayElem})
	return nil
}

// emitCall lowers a call to a user function, a hardware/RTOS intrinsic, or
// the StartTask builtin. StartTask is special-cased because its operands
// feed RTOS_CREATE_TASK directly rather than being pushed as arguments.
func (g *Generator) emitCall(n *ast.CallExpr) error {
	if n.Callee == "StartTask" {
		return g.emitStartTask(n)
	}
	if op, ok := bytecode.Intrinsics[n.Callee]; ok {
		for _, arg := range n.Args {
			if err := g.emitExpr(arg); err != nil {
				return err
			}
		}
		g.emit(bytecode.Instruction{Op: op})
		return nil
	}
	for _, arg := range n.Args {
		if err := g.emitExpr(arg); err != nil {
			return err
		}
	}
	pc := g.emit(bytecode.Instruction{Op: bytecode.OpCall, Operands: []int64{0}})
	g.pending = append(g.pending, funcRef{pc: pc, idx: 0, fn: n.Callee})
	return nil
}

// emitStartTask folds StartTask's first four arguments directly into
// RTOS_CREATE_TASK's operands and resolves its fifth (the task function)
// through the same deferred-address mechanism as Task-sugar task creation.
func (g *Generator) emitStartTask(n *ast.CallExpr) error {
	if len(n.Args) != 5 {
		return fmt.Errorf("codegen: StartTask takes exactly 5 arguments")
	}
	var operands [4]int64
	for i := 0; i < 4; i++ {
		v, ok := g.constInt(n.Args[i])
		if !ok {
			return fmt.Errorf("codegen: StartTask argument %d must be a compile-time constant", i+1)
		}
		operands[i] = v
	}
	fn, ok := n.Args[4].(*ast.Identifier)
	if !ok {
		return fmt.Errorf("codegen: StartTask's function argument must be a function name")
	}
	pc := g.emit(bytecode.Instruction{
		Op:       bytecode.OpRtosCreateTask,
		Operands: []int64{operands[0], operands[1], operands[2], operands[3], 0},
	})
	g.pending = append(g.pending, funcRef{pc: pc, idx: 4, fn: fn.Name})
	return nil
}

func (g *Generator) messageOf(chanExpr ast.Expr) (*sema.MsgInfo, error) {
	id, ok := chanExpr.(*ast.Identifier)
	if !ok {
		return nil, fmt.Errorf("codegen: message channel must be a simple identifier")
	}
	msg, ok := g.info.Messages[id.Name]
	if !ok {
		return nil, fmt.Errorf("codegen: internal: message %q not resolved by sema", id.Name)
	}
	return msg, nil
}

func (g *Generator) emitMessageSend(n *ast.MessageSendExpr) error {
	msg, err := g.messageOf(n.Chan)
	if err != nil {
		return err
	}
	if err := g.emitExpr(n.Value); err != nil {
		return err
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpMsgSend, Operands: []int64{int64(msg.ID)}})
	return nil
}

// emitMessageRecv emits LOAD_CONST(timeout); MSG_RECV(id) in that exact
// order, with a blocking recv() (no timeout: clause) folding to -1.
func (g *Generator) emitMessageRecv(n *ast.MessageRecvExpr) error {
	msg, err := g.messageOf(n.Chan)
	if err != nil {
		return err
	}
	timeout := int64(-1)
	if n.Timeout != nil {
		v, ok := g.constInt(n.Timeout)
		if !ok {
			return fmt.Errorf("codegen: recv timeout must be a compile-time constant")
		}
		timeout = v
	}
	idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(timeout)})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
	g.emit(bytecode.Instruction{Op: bytecode.OpMsgRecv, Operands: []int64{int64(msg.ID)}})
	return nil
}
