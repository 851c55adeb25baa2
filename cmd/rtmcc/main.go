// Command rtmcc compiles a single .rtmc source file into a .vmb bytecode
// image, reporting one diagnostic per failing pass.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/diag"
	"github.com/OmidArdestani/RTMC-Framework/pkg/driver"
)

func main() {
	app := &cli.App{
		Name:      "rtmcc",
		Usage:     "compile an RTMC source file to bytecode",
		ArgsUsage: "<input.rtmc>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output .vmb path (defaults to the input name with a .vmb extension)"},
			&cli.BoolFlag{Name: "release", Usage: "strip the debug symbol table from the emitted program"},
			&cli.BoolFlag{Name: "verbose", Usage: "print per-pass timing to stderr"},
			&cli.BoolFlag{Name: "ast", Usage: "dump the parsed AST to stdout instead of compiling"},
			&cli.BoolFlag{Name: "tokens", Usage: "dump the token stream to stdout instead of compiling"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(driver.ExitIO))
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one input file", int(driver.ExitIO))
	}
	input := c.Args().First()

	mode := bytecode.ModeDebug
	if c.Bool("release") {
		mode = bytecode.ModeRelease
	}

	reporter := diag.NewReporter(os.Stderr, c.Bool("verbose"))

	fsys := os.DirFS(filepath.Dir(input))
	name := filepath.Base(input)

	opts := driver.Options{
		Mode:       mode,
		DumpAST:    c.Bool("ast"),
		DumpTokens: c.Bool("tokens"),
	}

	res, err := driver.Compile(fsys, name, opts)
	if err != nil {
		reporter.Report(diag.Diagnostic{Kind: "IO", File: input, Message: err.Error()})
		return cli.Exit("", int(driver.ExitIO))
	}
	for _, t := range res.Timings {
		reporter.Pass(t.Name, t.Elapsed)
	}

	if res.ExitCode != driver.ExitOK {
		reporter.Report(res.Diag)
		return cli.Exit("", int(res.ExitCode))
	}

	if opts.DumpTokens {
		return dumpJSON(res.Tokens)
	}
	if opts.DumpAST {
		return dumpJSON(res.AST)
	}

	out := c.String("output")
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".vmb"
	}
	body, err := driver.Serialize(res.Program)
	if err != nil {
		return cli.Exit(err.Error(), int(driver.ExitIO))
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return cli.Exit(err.Error(), int(driver.ExitIO))
	}
	return nil
}

func dumpJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
