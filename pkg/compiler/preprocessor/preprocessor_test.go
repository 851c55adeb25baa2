package preprocessor_test

import (
	"testing"
	"testing/fstest"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/preprocessor"
	"github.com/stretchr/testify/require"
)

func TestDefineExpansion(t *testing.T) {
	fsys := fstest.MapFS{
		"main.rtmc": {Data: []byte("#define N 4\nint arr[N];\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	out, err := ctx.Process("main.rtmc")
	require.NoError(t, err)
	require.Contains(t, out, "int arr[4];")
}

func TestIncludeAndDefineAcrossFiles(t *testing.T) {
	// Scenario D from the spec.
	fsys := fstest.MapFS{
		"a.rtmc": {Data: []byte("#define N 4\n")},
		"b.rtmc": {Data: []byte("#include \"a.rtmc\";\nint arr[N];\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	out, err := ctx.Process("b.rtmc")
	require.NoError(t, err)
	require.Contains(t, out, "int arr[4];")
}

func TestIncludeIdempotence(t *testing.T) {
	fsys := fstest.MapFS{
		"a.rtmc": {Data: []byte("int shared;\n")},
		"b.rtmc": {Data: []byte("#include \"a.rtmc\"\n#include \"a.rtmc\"\nint x;\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	out, err := ctx.Process("b.rtmc")
	require.NoError(t, err)
	require.Equal(t, 1, countOccurrences(out, "int shared;"))
}

func TestMacroNotExpandedInsideStringLiteral(t *testing.T) {
	fsys := fstest.MapFS{
		"main.rtmc": {Data: []byte("#define N 4\nDBG_PRINT(\"N items\");\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	out, err := ctx.Process("main.rtmc")
	require.NoError(t, err)
	require.Contains(t, out, `"N items"`)
}

func TestCyclicMacroIsError(t *testing.T) {
	fsys := fstest.MapFS{
		"main.rtmc": {Data: []byte("#define A B\n#define B A\nint x = A;\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	_, err := ctx.Process("main.rtmc")
	require.Error(t, err)
	pe, ok := err.(*preprocessor.Error)
	require.True(t, ok)
	require.Equal(t, preprocessor.ErrCyclicMacro, pe.Kind)
}

func TestIncludeNotFound(t *testing.T) {
	fsys := fstest.MapFS{
		"main.rtmc": {Data: []byte("#include \"missing.rtmc\"\n")},
	}
	ctx := preprocessor.NewContext(fsys)
	_, err := ctx.Process("main.rtmc")
	require.Error(t, err)
	pe, ok := err.(*preprocessor.Error)
	require.True(t, ok)
	require.Equal(t, preprocessor.ErrIncludeNotFound, pe.Kind)
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
