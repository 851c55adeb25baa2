// Package driver composes the compiler passes — preprocess, lex, parse,
// analyze, generate — into a single Compile call, short-circuiting on the
// first pass that fails and mapping its diagnostic to a process exit code;
// Serialize performs the last pass, writing the image.
package driver

import (
	"bytes"
	"io/fs"
	"time"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/ast"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/codegen"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/parser"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/preprocessor"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
	"github.com/OmidArdestani/RTMC-Framework/pkg/diag"
)

// ExitCode mirrors spec.md's exit-code table: which pass, if any, aborted
// the build.
type ExitCode int

const (
	ExitOK ExitCode = iota
	ExitPreprocessor
	ExitLex
	ExitParse
	ExitSema
	ExitCodegen
	ExitIO
)

// Options configures a single Compile call. It carries no defaults that
// depend on process state (cwd, env) — every field is set explicitly by the
// caller, typically from parsed CLI flags.
type Options struct {
	// Mode selects debug vs. release codegen (symbol table retained vs. stripped).
	Mode bytecode.Mode
	// IncludeDirs are searched, in order, for #include targets not found
	// relative to the including file.
	IncludeDirs []string
	// DumpAST, when set, makes Result.AST non-nil.
	DumpAST bool
	// DumpTokens, when set, makes Result.Tokens non-nil.
	DumpTokens bool
}

// Result carries everything a caller (typically cmd/rtmcc) needs to act on
// a Compile call: the program on success, the pass diagnostics on failure,
// and optional debug dumps.
type Result struct {
	Program  *bytecode.Program
	ExitCode ExitCode
	Diag     diag.Diagnostic
	AST      *ast.Program
	Tokens   []lexer.Token
	Timings  []PassTiming
}

// PassTiming names one pass and how long it took, reported to a
// diag.Reporter in --verbose mode.
type PassTiming struct {
	Name    string
	Elapsed time.Duration
}

// Compile runs every pass over the file at path within fsys and returns the
// resulting program, or the diagnostic and exit code of whichever pass
// failed first. Compile is a pure function of its inputs: no goroutines, no
// package-level state, no reliance on the working directory beyond fsys.
func Compile(fsys fs.FS, path string, opts Options) (Result, error) {
	var res Result

	start := time.Now()
	ctx := preprocessor.NewContext(fsys, opts.IncludeDirs...)
	source, err := ctx.Process(path)
	res.Timings = append(res.Timings, PassTiming{"preprocess", time.Since(start)})
	if err != nil {
		if perr, ok := err.(*preprocessor.Error); ok {
			res.ExitCode = ExitPreprocessor
			res.Diag = diag.FromPreprocessor(perr)
			return res, nil
		}
		res.ExitCode = ExitIO
		return res, err
	}
	src := []byte(source)

	if opts.DumpTokens {
		res.Tokens = tokenize(src)
	}

	start = time.Now()
	sc := lexer.NewScanner(src)
	p := parser.NewParser(sc, src)
	prog, err := p.Parse()
	res.Timings = append(res.Timings, PassTiming{"parse", time.Since(start)})
	if err != nil {
		// The parser reports a lexer error token as an unexpected token;
		// the scanner still holds the underlying lexer error.
		if lerr := sc.Err(); lerr != nil {
			res.ExitCode = ExitLex
			res.Diag = diag.FromLexer(path, lerr)
			return res, nil
		}
		if perr, ok := err.(*parser.Error); ok {
			res.ExitCode = ExitParse
			res.Diag = diag.FromParser(path, perr)
			return res, nil
		}
		res.ExitCode = ExitIO
		return res, err
	}
	if opts.DumpAST {
		res.AST = prog
	}

	start = time.Now()
	info, err := sema.NewAnalyzer(src).Analyze(prog)
	res.Timings = append(res.Timings, PassTiming{"analyze", time.Since(start)})
	if err != nil {
		if serr, ok := err.(*sema.Error); ok {
			res.ExitCode = ExitSema
			res.Diag = diag.FromSema(path, serr)
			return res, nil
		}
		res.ExitCode = ExitIO
		return res, err
	}

	start = time.Now()
	out, err := codegen.Generate(info, src, opts.Mode)
	res.Timings = append(res.Timings, PassTiming{"codegen", time.Since(start)})
	if err != nil {
		if cerr, ok := err.(*codegen.Error); ok {
			res.ExitCode = ExitCodegen
			res.Diag = diag.FromCodegen(path, cerr)
			return res, nil
		}
		res.ExitCode = ExitIO
		return res, err
	}

	res.Program = out
	res.ExitCode = ExitOK
	return res, nil
}

// Serialize writes prog to its .vmb binary form.
func Serialize(prog *bytecode.Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := bytecode.Write(&buf, prog); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tokenize re-scans src independently of the parser, for --tokens dumps.
// The parser consumes tokens through its own lookahead buffer and never
// exposes the full stream, so a debug dump needs its own pass.
func tokenize(src []byte) []lexer.Token {
	sc := lexer.NewScanner(src)
	var toks []lexer.Token
	for {
		t := sc.Next()
		toks = append(toks, t)
		if t.Kind == lexer.KindEOF || sc.Err() != nil {
			break
		}
	}
	return toks
}
