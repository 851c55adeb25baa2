package codegen

import (
	"fmt"
	"math"
	"strings"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
)

var binaryOps = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul, "/": bytecode.OpDiv, "%": bytecode.OpMod,
	"&": bytecode.OpAnd, "|": bytecode.OpOr, "^": bytecode.OpXor,
	"==": bytecode.OpEq, "!=": bytecode.OpNeq,
	"<": bytecode.OpLt, "<=": bytecode.OpLte, ">": bytecode.OpGt, ">=": bytecode.OpGte,
}

func (g *Generator) emitExpr(e ast.Expr) error {
	g.pos = e.Pos()
	switch n := e.(type) {
	case *ast.IntLiteral:
		idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(n.Value)})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		return nil

	case *ast.FloatLiteral:
		idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagF32, Bits: math.Float32bits(n.Value)})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		return nil

	case *ast.CharLiteral:
		idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(n.Value)})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		return nil

	case *ast.BoolLiteral:
		v := uint32(0)
		if n.Value {
			v = 1
		}
		idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: v})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		return nil

	case *ast.StringLiteral:
		idx := g.prog.AddString(n.Value)
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
		return nil

	case *ast.ArrayLiteral:
		for _, elem := range n.Elems {
			if err := g.emitExpr(elem); err != nil {
				return err
			}
		}
		return nil

	case *ast.Identifier:
		return g.emitLoadIdentifier(n)

	case *ast.UnaryExpr:
		return g.emitUnary(n)

	case *ast.SizeofExpr:
		return g.emitSizeof(n)

	case *ast.CastExpr:
		return g.emitExpr(n.X)

	case *ast.BinaryExpr:
		return g.emitBinary(n)

	case *ast.AssignExpr:
		return g.emitAssign(n)

	case *ast.MemberExpr:
		return g.emitMemberLoad(n)

	case *ast.IndexExpr:
		return g.emitIndexLoad(n)

	case *ast.CallExpr:
		return g.emitCall(n)

	case *ast.MessageSendExpr:
		return g.emitMessageSend(n)

	case *ast.MessageRecvExpr:
		return g.emitMessageRecv(n)

	default:
		return fmt.Errorf("codegen: unknown expr %T", e)
	}
}

// sym is a resolved storage slot: either a function-local frame offset or a
// global address.
type sym = struct {
	kind    string // "local" or "global"
	address int64
}

// resolveSymbol resolves id to the exact symbol sema's scope stack picked
// for this occurrence (see sema.Info.Idents), so an inner block's shadowing
// local never reads or writes an outer same-named variable's frame slot.
func (g *Generator) resolveSymbol(id *ast.Identifier) (sym, bool) {
	s, ok := g.identSymbol(id)
	if !ok {
		return sym{}, false
	}
	kind := "global"
	if s.Kind == sema.SymLocal || s.Kind == sema.SymParam {
		kind = "local"
	}
	return sym{kind: kind, address: int64(s.Address)}, true
}

func (g *Generator) emitLoadIdentifier(n *ast.Identifier) error {
	if s, ok := g.resolveSymbol(n); ok {
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadVar, Operands: []int64{s.address}})
		return nil
	}
	if _, ok := g.info.Functions[n.Name]; ok {
		// A bare function name used as a value (StartTask's fn argument);
		// resolved once every function's address is known.
		pc := g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{0}})
		g.pending = append(g.pending, funcRef{pc: pc, idx: 0, fn: n.Name})
		return nil
	}
	return fmt.Errorf("codegen: internal: identifier %q not resolved by sema", n.Name)
}

func (g *Generator) emitUnary(n *ast.UnaryExpr) error {
	switch n.Op.String() {
	case "&":
		return g.emitAddrOf(n.X)
	case "*":
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadDeref})
		return nil
	case "-":
		zero := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: 0})
		// Negation lowers to 0 - x: the instruction set has no dedicated NEG.
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(zero)}})
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpSub})
		return nil
	case "+":
		return g.emitExpr(n.X)
	case "!":
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpNot})
		return nil
	case "~":
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		allOnes := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagU32, Bits: 0xFFFFFFFF})
		g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(allOnes)}})
		g.emit(bytecode.Instruction{Op: bytecode.OpXor})
		return nil
	default:
		// ++ / -- (prefix or postfix): read-modify-write through the lvalue.
		return g.emitIncDec(n)
	}
}

func (g *Generator) emitIncDec(n *ast.UnaryExpr) error {
	delta := int64(1)
	if n.Op.String() == "--" {
		delta = -1
	}
	id, ok := n.X.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("codegen: ++/-- only supported on simple variables")
	}
	s, ok := g.resolveSymbol(id)
	if !ok {
		return fmt.Errorf("codegen: internal: identifier %q not resolved by sema", id.Name)
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadVar, Operands: []int64{s.address}})
	idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(delta)})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
	g.emit(bytecode.Instruction{Op: bytecode.OpAdd})
	g.emit(bytecode.Instruction{Op: bytecode.OpStoreVar, Operands: []int64{s.address}})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadVar, Operands: []int64{s.address}})
	return nil
}

func (g *Generator) emitAddrOf(e ast.Expr) error {
	_, err := g.lvalueAddress(e)
	return err
}

func (g *Generator) emitSizeof(n *ast.SizeofExpr) error {
	var size int64
	if n.Type != nil {
		t, err := g.resolveTypeSize(n.Type)
		if err != nil {
			return err
		}
		size = t
	} else {
		t, err := g.inferType(n.X)
		if err != nil {
			return err
		}
		size = int64(t.Size(g.info.Layouts))
	}
	idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: uint32(size)})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
	return nil
}

func (g *Generator) emitBinary(n *ast.BinaryExpr) error {
	opStr := n.Op.String()
	switch opStr {
	case "&&":
		return g.emitShortCircuit(n, false)
	case "||":
		return g.emitShortCircuit(n, true)
	}
	if err := g.emitExpr(n.Left); err != nil {
		return err
	}
	if err := g.emitExpr(n.Right); err != nil {
		return err
	}
	return g.emitBinaryOp(opStr)
}

// emitBinaryOp emits the instruction combining the two values already on
// the stack, shared by emitBinary and compound assignment (+=, etc.).
func (g *Generator) emitBinaryOp(opStr string) error {
	switch opStr {
	case "<<":
		// No dedicated shift opcode: shift-left/right share SYSCALL's escape
		// hatch with a selector rather than lowering to repeated doubling.
		g.emit(bytecode.Instruction{Op: bytecode.OpSyscall, Operands: []int64{0}})
		return nil
	case ">>":
		g.emit(bytecode.Instruction{Op: bytecode.OpSyscall, Operands: []int64{1}})
		return nil
	}
	op, ok := binaryOps[opStr]
	if !ok {
		return fmt.Errorf("codegen: unsupported binary operator %q", opStr)
	}
	g.emit(bytecode.Instruction{Op: op})
	return nil
}

// emitShortCircuit lowers && and || without a dedicated logical-AND/OR
// opcode: evaluate the left side, and skip the right side's evaluation
// (short-circuiting) with a conditional jump, matching C's evaluation order.
func (g *Generator) emitShortCircuit(n *ast.BinaryExpr, isOr bool) error {
	if err := g.emitExpr(n.Left); err != nil {
		return err
	}
	var skip int
	if isOr {
		skip = g.emit(bytecode.Instruction{Op: bytecode.OpJumpIfTrue, Operands: []int64{0}})
	} else {
		skip = g.emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Operands: []int64{0}})
	}
	if err := g.emitExpr(n.Right); err != nil {
		return err
	}
	end := g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{0}})
	g.patchJump(skip, len(g.prog.Instructions))
	idx := g.prog.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: boolBits(isOr)})
	g.emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(idx)}})
	g.patchJump(end, len(g.prog.Instructions))
	return nil
}

func boolBits(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// emitAssign lowers both plain (=) and compound (+=, -=, ...) assignment.
// Compound forms re-read the target before combining, then store through
// the same target expression again — acceptable since targets here are
// plain variables, members, or array elements with no side effects of
// their own to duplicate.
func (g *Generator) emitAssign(n *ast.AssignExpr) error {
	opStr := n.Op.String()
	if opStr == "=" {
		if err := g.emitExpr(n.Value); err != nil {
			return err
		}
		return g.emitStore(n.Target)
	}
	base := strings.TrimSuffix(opStr, "=")
	if err := g.emitExpr(n.Target); err != nil {
		return err
	}
	if err := g.emitExpr(n.Value); err != nil {
		return err
	}
	if err := g.emitBinaryOp(base); err != nil {
		return err
	}
	return g.emitStore(n.Target)
}

func (g *Generator) emitStore(target ast.Expr) error {
	switch n := target.(type) {
	case *ast.Identifier:
		s, ok := g.resolveSymbol(n)
		if !ok {
			return fmt.Errorf("codegen: internal: identifier %q not resolved by sema", n.Name)
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpStoreVar, Operands: []int64{s.address}})
		return nil

	case *ast.MemberExpr:
		return g.emitMemberStore(n)

	case *ast.IndexExpr:
		return g.emitIndexStore(n)

	case *ast.UnaryExpr: // *p = value
		if n.Op.String() != "*" {
			return fmt.Errorf("codegen: unsupported assignment target")
		}
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpStoreDeref})
		return nil

	default:
		return fmt.Errorf("codegen: unsupported assignment target %T", target)
	}
}
