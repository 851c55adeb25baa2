// Package codegen walks a type-checked program and emits the bytecode.Program
// image the serializer writes out, resolving every forward reference (calls,
// task launches) with a single deferred back-patch pass once every
// function's entry address is known.
package codegen

import (
	"fmt"
	"math"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
)

// ErrorKind distinguishes codegen failure modes. Additive to spec.md §7's
// table: CodegenBranchTooFar is the one condition codegen itself can raise.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	BranchTooFar
)

// Error is codegen's diagnostic.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// maxBranchOffset bounds a patched function-address operand (CALL target,
// task entry, function used as a value) to what the instruction
// operand's int64 slot can represent without the VM needing 64-bit program
// counters; exceeding it is implementation-defined per spec.md §7.
const maxBranchOffset = 1 << 32

// funcRef is a deferred patch: instruction pc, operand index, and the
// function name whose resolved entry address fills that slot.
type funcRef struct {
	pc  int
	idx int
	fn  string
}

type loopLabels struct {
	breaks    []int // pcs of JUMP instructions to patch to the loop's exit
	continues []int // pcs of JUMP instructions to patch to the loop's test/post
}

// Generator walks info.Decls (the sema-desugared program) and produces a
// bytecode.Program.
type Generator struct {
	info *sema.Info
	src  []byte
	prog *bytecode.Program

	funcAddr map[string]int
	pending  []funcRef

	locals map[string]*sema.Symbol
	loops  []loopLabels

	// pos is the source position of the statement/expression currently being
	// lowered, stamped onto every instruction emit reports while in debug
	// mode (released images carry no Line/Col).
	pos lexer.Token
}

// emit appends in to the program, filling Line/Col from the generator's
// current source position when compiling in debug mode. Every codegen
// emission site goes through this instead of prog.Emit directly, except the
// program's trailing HALT, which has no source position.
func (g *Generator) emit(in bytecode.Instruction) int {
	if g.prog.Mode == bytecode.ModeDebug {
		in.Line = g.pos.Line
		in.Col = g.pos.Column
	}
	return g.prog.Emit(in)
}

// Generate runs codegen over info, the result of a successful sema.Analyze,
// returning the program image in the requested mode.
func Generate(info *sema.Info, src []byte, mode bytecode.Mode) (*bytecode.Program, error) {
	g := &Generator{
		info:     info,
		src:      src,
		prog:     &bytecode.Program{Mode: mode},
		funcAddr: make(map[string]int),
	}
	return g.run()
}

func (g *Generator) run() (*bytecode.Program, error) {
	for _, d := range g.info.Decls {
		if gv, ok := d.(*ast.GlobalVarDecl); ok {
			if err := g.emitGlobal(gv); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range g.info.Decls {
		if md, ok := d.(*ast.MessageDecl); ok {
			g.emitMessageDecl(md)
		}
	}
	for _, task := range g.info.Tasks {
		g.emitTaskCreate(task)
	}

	for _, d := range g.info.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			if err := g.emitFunc(fn); err != nil {
				return nil, err
			}
		}
	}

	for _, ref := range g.pending {
		addr, ok := g.funcAddr[ref.fn]
		if !ok {
			return nil, fmt.Errorf("codegen: internal: unresolved function reference %q", ref.fn)
		}
		if addr >= maxBranchOffset {
			return nil, &Error{Kind: BranchTooFar, Message: fmt.Sprintf("address of %q exceeds representable range", ref.fn)}
		}
		g.prog.PatchOperand(ref.pc, ref.idx, int64(addr))
	}

	g.prog.Emit(bytecode.Instruction{Op: bytecode.OpHalt})
	return g.prog, nil
}

// emitGlobal emits GLOBAL_VAR_DECLARE(address, init_const_id, is_const): the
// initializer is interned into the constant pool rather than lowered as
// imperative store code, since the VM applies every global's initial value
// during its own init pass before any task runs.
func (g *Generator) emitGlobal(gv *ast.GlobalVarDecl) error {
	g.pos = gv.Pos()
	name := gv.Name.Lexeme(g.src)
	sym := g.findGlobal(name)
	if sym == nil {
		return fmt.Errorf("codegen: internal: global %q not resolved by sema", name)
	}
	c, err := g.globalInitConstant(gv.Init, sym.Type)
	if err != nil {
		return err
	}
	constID := g.prog.AddConstant(c)
	isConst := int64(0)
	if sym.IsConst {
		isConst = 1
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpGlobalVarDeclare, Operands: []int64{int64(sym.Address), int64(constID), isConst}})
	if g.prog.Mode == bytecode.ModeDebug {
		g.prog.Symbols = append(g.prog.Symbols, bytecode.SymbolEntry{Name: name, Address: sym.Address})
	}
	return nil
}

// globalInitConstant folds e (nil for an uninitialized global, yielding the
// type's zero value) into the scalar Constant GLOBAL_VAR_DECLARE references.
// Only scalar compile-time-constant initializers fold here; a global array
// given a brace initializer list (which the parser accepts) is rejected with
// the compile-time-constant error.
func (g *Generator) globalInitConstant(e ast.Expr, t sema.Type) (bytecode.Constant, error) {
	if t.Kind == sema.TFloat {
		if e == nil {
			return bytecode.Constant{Tag: bytecode.TagF32, Bits: 0}, nil
		}
		f, ok := g.constFloat(e)
		if !ok {
			return bytecode.Constant{}, fmt.Errorf("codegen: global initializer must be a compile-time constant")
		}
		return bytecode.Constant{Tag: bytecode.TagF32, Bits: math.Float32bits(f)}, nil
	}
	if e == nil {
		return bytecode.Constant{Tag: bytecode.TagI32, Bits: 0}, nil
	}
	v, ok := g.constInt(e)
	if !ok {
		return bytecode.Constant{}, fmt.Errorf("codegen: global initializer must be a compile-time constant")
	}
	tag := bytecode.TagI32
	if t.Kind == sema.TPointer {
		tag = bytecode.TagPtr
	}
	return bytecode.Constant{Tag: tag, Bits: uint32(v)}, nil
}

// constFloat folds the small set of literal/unary-sign shapes a float
// global's initializer can take, mirroring constInt's restricted scope.
func (g *Generator) constFloat(e ast.Expr) (float32, bool) {
	switch n := e.(type) {
	case *ast.FloatLiteral:
		return n.Value, true
	case *ast.IntLiteral:
		return float32(n.Value), true
	case *ast.UnaryExpr:
		v, ok := g.constFloat(n.X)
		if !ok {
			return 0, false
		}
		switch n.Op.String() {
		case "-":
			return -v, true
		case "+":
			return v, true
		}
	}
	return 0, false
}

func (g *Generator) findGlobal(name string) *sema.Symbol {
	for _, s := range g.info.Globals {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (g *Generator) emitMessageDecl(md *ast.MessageDecl) {
	g.pos = md.Pos()
	name := md.Name.Lexeme(g.src)
	msg := g.info.Messages[name]
	g.emit(bytecode.Instruction{Op: bytecode.OpMsgDeclare, Operands: []int64{int64(msg.ID)}})
}

func (g *Generator) emitTaskCreate(task sema.TaskInfo) {
	pc := g.emit(bytecode.Instruction{
		Op:       bytecode.OpRtosCreateTask,
		Operands: []int64{task.Stack, task.Core, task.Priority, int64(task.ID), 0},
	})
	g.pending = append(g.pending, funcRef{pc: pc, idx: 4, fn: task.FuncName})
}
