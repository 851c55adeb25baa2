// Package diag defines the uniform (kind, file, line, column, message)
// diagnostic tuple every compiler pass reports through, and a Reporter that
// prints diagnostics (and, in verbose mode, per-pass timings) to a stream.
package diag

import (
	"fmt"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/codegen"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/parser"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/preprocessor"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
)

// Diagnostic is a pass-agnostic error report. Kind is one of the stable
// identifiers from spec.md §7 (e.g. "UndefinedSymbol", "CodegenBranchTooFar").
type Diagnostic struct {
	Kind    string
	File    string
	Line    uint32
	Column  uint32
	Message string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("error[%s] %d:%d: %s", d.Kind, d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("error[%s] %s:%d:%d: %s", d.Kind, d.File, d.Line, d.Column, d.Message)
}

var preprocessorKinds = map[preprocessor.ErrorKind]string{
	preprocessor.ErrIncludeNotFound:    "IncludeNotFound",
	preprocessor.ErrCyclicMacro:        "CyclicMacro",
	preprocessor.ErrMalformedDirective: "MalformedDirective",
}

var lexerKinds = map[lexer.ErrorKind]string{
	lexer.ErrUnterminatedLiteral: "LexUnterminatedLiteral",
	lexer.ErrBadNumber:           "LexBadNumber",
	lexer.ErrBadChar:             "LexBadChar",
}

var semaKinds = map[sema.ErrorKind]string{
	sema.UndefinedSymbol:        "UndefinedSymbol",
	sema.DuplicateDefinition:    "DuplicateDefinition",
	sema.TypeMismatch:           "TypeMismatch",
	sema.NonLValueAssignment:    "NonLValueAssignment",
	sema.ConstAssignment:        "ConstAssignment",
	sema.FieldNotFound:          "FieldNotFound",
	sema.ArityMismatch:          "ArityMismatch",
	sema.CircularType:           "CircularType",
	sema.BadBitFieldWidth:       "BadBitFieldWidth",
	sema.ArraySizeNotConstant:   "ArraySizeNotConstant",
	sema.TaskCoreOutOfRange:     "TaskCoreOutOfRange",
	sema.TaskPriorityOutOfRange: "TaskPriorityOutOfRange",
}

var codegenKinds = map[codegen.ErrorKind]string{
	codegen.BranchTooFar: "CodegenBranchTooFar",
}

// FromPreprocessor converts a preprocessor.Error into a Diagnostic.
func FromPreprocessor(e *preprocessor.Error) Diagnostic {
	return Diagnostic{Kind: preprocessorKinds[e.Kind], File: e.File, Line: uint32(e.Line), Message: e.Message}
}

// FromLexer converts a lexer.Error into a Diagnostic.
func FromLexer(file string, e *lexer.Error) Diagnostic {
	return Diagnostic{Kind: lexerKinds[e.Kind], File: file, Line: e.Line, Column: e.Column, Message: e.Message}
}

// FromParser converts a parser.Error into a Diagnostic.
func FromParser(file string, e *parser.Error) Diagnostic {
	return Diagnostic{Kind: "ParseUnexpectedToken", File: file, Line: e.Line, Column: e.Column, Message: e.Error()}
}

// FromSema converts a sema.Error into a Diagnostic.
func FromSema(file string, e *sema.Error) Diagnostic {
	return Diagnostic{Kind: semaKinds[e.Kind], File: file, Line: e.Line, Column: e.Column, Message: e.Message}
}

// FromCodegen converts a codegen.Error into a Diagnostic.
func FromCodegen(file string, e *codegen.Error) Diagnostic {
	return Diagnostic{Kind: codegenKinds[e.Kind], File: file, Message: e.Message}
}
