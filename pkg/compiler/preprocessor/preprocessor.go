// Package preprocessor resolves #include directives and expands object-like
// #define macros before the lexer ever sees the source.
package preprocessor

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ErrorKind distinguishes preprocessor failure modes.
type ErrorKind uint8

const (
	ErrNone ErrorKind = iota
	ErrIncludeNotFound
	ErrCyclicMacro
	ErrMalformedDirective
)

// Error is the preprocessor's diagnostic.
type Error struct {
	Kind    ErrorKind
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// Context holds the mutable state threaded explicitly through a single
// preprocessing run: the macro table and the set of already-included paths.
// It is never a package global — callers own its lifetime.
type Context struct {
	FS          fs.FS
	IncludeDirs []string

	macros   map[string]string
	included map[string]bool
}

// NewContext creates a preprocessing context rooted at fsys, searching
// includeDirs (in order) in addition to the including file's own directory.
func NewContext(fsys fs.FS, includeDirs ...string) *Context {
	return &Context{
		FS:          fsys,
		IncludeDirs: includeDirs,
		macros:      make(map[string]string),
		included:    make(map[string]bool),
	}
}

// Process expands entryPath (and everything it transitively includes) into a
// single flat character stream ready for the lexer.
func (c *Context) Process(entryPath string) (string, error) {
	var out strings.Builder
	if err := c.processFile(entryPath, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (c *Context) processFile(filePath string, out *strings.Builder) error {
	clean := path.Clean(filePath)
	if c.included[clean] {
		return nil // idempotent include guard
	}
	c.included[clean] = true

	f, err := c.FS.Open(filePath)
	if err != nil {
		return &Error{Kind: ErrIncludeNotFound, File: filePath, Message: "include target not found: " + filePath}
	}
	defer f.Close()

	dir := path.Dir(filePath)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "#include"):
			target, err := parseIncludeDirective(trimmed, filePath, lineNo)
			if err != nil {
				return err
			}
			resolved, err := c.resolveInclude(dir, target)
			if err != nil {
				return &Error{Kind: ErrIncludeNotFound, File: filePath, Line: lineNo, Message: "include not found: " + target}
			}
			if err := c.processFile(resolved, out); err != nil {
				return err
			}
			out.WriteByte('\n')

		case strings.HasPrefix(trimmed, "#define"):
			name, repl, err := parseDefineDirective(trimmed, filePath, lineNo)
			if err != nil {
				return err
			}
			c.macros[name] = repl

		default:
			expanded, err := c.expandLine(line, filePath, lineNo, nil)
			if err != nil {
				return err
			}
			out.WriteString(expanded)
			out.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return &Error{Kind: ErrIncludeNotFound, File: filePath, Message: err.Error()}
	}
	return nil
}

func (c *Context) resolveInclude(currentDir, target string) (string, error) {
	candidates := []string{path.Join(currentDir, target)}
	for _, dir := range c.IncludeDirs {
		candidates = append(candidates, path.Join(dir, target))
	}
	for _, cand := range candidates {
		if _, err := fs.Stat(c.FS, cand); err == nil {
			return cand, nil
		}
	}
	return "", fmt.Errorf("not found")
}

func parseIncludeDirective(line, file string, lineNo int) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#include"))
	rest = strings.TrimSuffix(rest, ";")
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", &Error{Kind: ErrMalformedDirective, File: file, Line: lineNo, Message: "malformed #include directive"}
	}
	return rest[1 : len(rest)-1], nil
}

func parseDefineDirective(line, file string, lineNo int) (name, replacement string, err error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#define"))
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return "", "", &Error{Kind: ErrMalformedDirective, File: file, Line: lineNo, Message: "malformed #define directive"}
	}
	name = fields[0]
	if len(fields) == 2 {
		replacement = strings.TrimSpace(fields[1])
	}
	return name, replacement, nil
}

// expandLine performs word-boundary macro substitution, re-scanning
// recursively expanded text. stack tracks macro names currently being
// expanded on this line to detect direct and indirect cycles.
func (c *Context) expandLine(line, file string, lineNo int, stack []string) (string, error) {
	if len(c.macros) == 0 {
		return line, nil
	}

	var out strings.Builder
	i := 0
	n := len(line)
	inString := false
	inChar := false
	for i < n {
		ch := line[i]

		if !inChar && ch == '"' {
			inString = !inString
			out.WriteByte(ch)
			i++
			continue
		}
		if !inString && ch == '\'' {
			inChar = !inChar
			out.WriteByte(ch)
			i++
			continue
		}
		if inString || inChar {
			out.WriteByte(ch)
			i++
			continue
		}

		if isIdentStart(ch) {
			start := i
			for i < n && isIdentPart(line[i]) {
				i++
			}
			word := line[start:i]
			repl, ok := c.macros[word]
			if !ok {
				out.WriteString(word)
				continue
			}
			for _, seen := range stack {
				if seen == word {
					return "", &Error{Kind: ErrCyclicMacro, File: file, Line: lineNo, Message: "cyclic macro expansion: " + word}
				}
			}
			expanded, err := c.expandLine(repl, file, lineNo, append(stack, word))
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
			continue
		}

		out.WriteByte(ch)
		i++
	}
	return out.String(), nil
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
