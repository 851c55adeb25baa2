package sema

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
)

// desugarTasks rewrites every *ast.TaskDecl in decls into a synthetic
// void-returning FuncDecl holding the task's run() body, recording a
// TaskInfo (stack/core/priority, already range-checked) that codegen uses
// to emit RTOS_CREATE_TASK in the program preamble, after the global and
// message declarations. This is
// the supplemented Task sugar form (original_source/RTMC-Compiler's
// analyzer pre-registers task metadata the same way before walking bodies).
func (a *Analyzer) desugarTasks(decls []ast.Decl) ([]ast.Decl, error) {
	out := make([]ast.Decl, 0, len(decls))
	for _, d := range decls {
		td, ok := d.(*ast.TaskDecl)
		if !ok {
			out = append(out, d)
			continue
		}

		taskName := td.Name.Lexeme(a.src)
		// The synthetic function reuses the task's own name token so its
		// lexeme still resolves correctly out of the source buffer.
		funcName := taskName

		core, stack, priority := int64(0), int64(4096), int64(5)
		if td.Core != nil {
			v, ok := a.evalConstInt(td.Core)
			if !ok {
				return nil, &Error{Kind: ArraySizeNotConstant, Line: td.Token.Line, Column: td.Token.Column,
					Message: fmt.Sprintf("task %q: core must be a compile-time constant", taskName)}
			}
			if v < 0 || v > 7 {
				return nil, &Error{Kind: TaskCoreOutOfRange, Line: td.Token.Line, Column: td.Token.Column,
					Message: fmt.Sprintf("task %q: core %d out of range [0,7]", taskName, v)}
			}
			core = v
		}
		if td.Priority != nil {
			v, ok := a.evalConstInt(td.Priority)
			if !ok {
				return nil, &Error{Kind: ArraySizeNotConstant, Line: td.Token.Line, Column: td.Token.Column,
					Message: fmt.Sprintf("task %q: priority must be a compile-time constant", taskName)}
			}
			if v < 1 || v > 10 {
				return nil, &Error{Kind: TaskPriorityOutOfRange, Line: td.Token.Line, Column: td.Token.Column,
					Message: fmt.Sprintf("task %q: priority %d out of range [1,10]", taskName, v)}
			}
			priority = v
		}
		if td.Stack != nil {
			v, ok := a.evalConstInt(td.Stack)
			if !ok {
				return nil, &Error{Kind: ArraySizeNotConstant, Line: td.Token.Line, Column: td.Token.Column,
					Message: fmt.Sprintf("task %q: stack size must be a compile-time constant", taskName)}
			}
			stack = v
		}

		id := a.nextTaskID
		a.nextTaskID++
		a.tasks = append(a.tasks, TaskInfo{
			ID: id, Name: taskName, FuncName: funcName, Stack: stack, Core: core, Priority: priority,
		})

		fn := &ast.FuncDecl{
			Token:      td.Token,
			ReturnType: &ast.PrimitiveType{Token: td.Token, Kind: lexer.KindVoid},
			Name:       td.Name,
			Body:       td.Body,
		}
		out = append(out, fn)
	}
	return out, nil
}
