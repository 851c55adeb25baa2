package codegen

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
)

func (g *Generator) emitFunc(fn *ast.FuncDecl) error {
	g.pos = fn.Pos()
	name := fn.Name.Lexeme(g.src)
	info := g.info.Functions[name]
	addr := len(g.prog.Instructions)
	g.funcAddr[name] = addr

	g.locals = g.info.FuncLocals[name]
	g.loops = nil

	g.emit(bytecode.Instruction{Op: bytecode.OpAllocFrame, Operands: []int64{int64(info.FrameSlots)}})
	if err := g.emitBlock(fn.Body); err != nil {
		return err
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpFreeFrame})
	g.emit(bytecode.Instruction{Op: bytecode.OpRet})
	g.prog.Functions = append(g.prog.Functions, bytecode.FunctionEntry{Name: name, Address: uint32(addr)})
	if g.prog.Mode == bytecode.ModeDebug {
		g.prog.Symbols = append(g.prog.Symbols, bytecode.SymbolEntry{Name: name, Address: uint32(addr)})
	}
	return nil
}

func (g *Generator) emitBlock(b *ast.BlockStmt) error {
	for _, s := range b.Stmts {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) emitStmt(s ast.Stmt) error {
	g.pos = s.Pos()
	switch n := s.(type) {
	case *ast.BlockStmt:
		return g.emitBlock(n)

	case *ast.VarDeclStmt:
		name := n.Name.Lexeme(g.src)
		sym := g.locals[name]
		g.emit(bytecode.Instruction{Op: bytecode.OpAllocVar, Operands: []int64{int64(sym.Address)}})
		if n.Init != nil {
			if err := g.emitExpr(n.Init); err != nil {
				return err
			}
			g.emit(bytecode.Instruction{Op: bytecode.OpStoreVar, Operands: []int64{int64(sym.Address)}})
		}
		return nil

	case *ast.IfStmt:
		return g.emitIf(n)

	case *ast.WhileStmt:
		return g.emitWhile(n)

	case *ast.ForStmt:
		return g.emitFor(n)

	case *ast.ReturnStmt:
		if n.Value != nil {
			if err := g.emitExpr(n.Value); err != nil {
				return err
			}
		}
		g.emit(bytecode.Instruction{Op: bytecode.OpFreeFrame})
		g.emit(bytecode.Instruction{Op: bytecode.OpRet})
		return nil

	case *ast.BreakStmt:
		if len(g.loops) == 0 {
			return fmt.Errorf("codegen: internal: break outside loop")
		}
		pc := g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{0}})
		top := len(g.loops) - 1
		g.loops[top].breaks = append(g.loops[top].breaks, pc)
		return nil

	case *ast.ContinueStmt:
		if len(g.loops) == 0 {
			return fmt.Errorf("codegen: internal: continue outside loop")
		}
		pc := g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{0}})
		top := len(g.loops) - 1
		g.loops[top].continues = append(g.loops[top].continues, pc)
		return nil

	case *ast.ExprStmt:
		if err := g.emitExpr(n.X); err != nil {
			return err
		}
		return nil

	default:
		return fmt.Errorf("codegen: unknown statement %T", s)
	}
}

func (g *Generator) emitIf(n *ast.IfStmt) error {
	if err := g.emitExpr(n.Cond); err != nil {
		return err
	}
	jf := g.emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Operands: []int64{0}})
	if err := g.emitStmt(n.Then); err != nil {
		return err
	}
	if n.Else == nil {
		g.patchJump(jf, len(g.prog.Instructions))
		return nil
	}
	jEnd := g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{0}})
	g.patchJump(jf, len(g.prog.Instructions))
	if err := g.emitStmt(n.Else); err != nil {
		return err
	}
	g.patchJump(jEnd, len(g.prog.Instructions))
	return nil
}

// emitWhile emits the condition test first, then a JUMP_IF_FALSE forward to
// the loop exit, the body, and last a JUMP back to the test.
func (g *Generator) emitWhile(n *ast.WhileStmt) error {
	testPC := len(g.prog.Instructions)
	if err := g.emitExpr(n.Cond); err != nil {
		return err
	}
	jExit := g.emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Operands: []int64{0}})

	g.loops = append(g.loops, loopLabels{})
	if err := g.emitStmt(n.Body); err != nil {
		return err
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{int64(testPC)}})
	exitPC := len(g.prog.Instructions)
	g.patchJump(jExit, exitPC)
	g.resolveLoop(testPC, exitPC)
	return nil
}

func (g *Generator) emitFor(n *ast.ForStmt) error {
	if n.Init != nil {
		if err := g.emitStmt(n.Init); err != nil {
			return err
		}
	}
	testPC := len(g.prog.Instructions)
	var jExit int
	hasExit := n.Cond != nil
	if hasExit {
		if err := g.emitExpr(n.Cond); err != nil {
			return err
		}
		jExit = g.emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Operands: []int64{0}})
	}

	g.loops = append(g.loops, loopLabels{})
	if err := g.emitStmt(n.Body); err != nil {
		return err
	}
	postPC := len(g.prog.Instructions)
	if n.Post != nil {
		if err := g.emitExpr(n.Post); err != nil {
			return err
		}
	}
	g.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{int64(testPC)}})
	exitPC := len(g.prog.Instructions)
	if hasExit {
		g.patchJump(jExit, exitPC)
	}
	g.resolveLoop(postPC, exitPC)
	return nil
}

// resolveLoop patches every break/continue JUMP recorded for the
// just-finished innermost loop to the given exit/continue targets.
func (g *Generator) resolveLoop(continueTarget, exitTarget int) {
	top := len(g.loops) - 1
	labels := g.loops[top]
	g.loops = g.loops[:top]
	for _, pc := range labels.breaks {
		g.patchJump(pc, exitTarget)
	}
	for _, pc := range labels.continues {
		g.patchJump(pc, continueTarget)
	}
}

func (g *Generator) patchJump(pc, target int) {
	g.prog.PatchOperand(pc, 0, int64(target))
}
