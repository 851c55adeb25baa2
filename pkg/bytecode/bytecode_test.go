package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/stretchr/testify/require"
)

func buildSample(mode bytecode.Mode) *bytecode.Program {
	p := &bytecode.Program{Mode: mode}
	cIdx := p.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: 42})
	sIdx := p.AddString("hello")
	p.Emit(bytecode.Instruction{Op: bytecode.OpLoadConst, Operands: []int64{int64(cIdx)}, Line: 1, Col: 1})
	p.Emit(bytecode.Instruction{Op: bytecode.OpPrint, Operands: []int64{int64(sIdx)}, Line: 2, Col: 3})
	p.Emit(bytecode.Instruction{Op: bytecode.OpHalt})
	p.Functions = append(p.Functions, bytecode.FunctionEntry{Name: "main", Address: 0})
	if mode == bytecode.ModeDebug {
		p.Symbols = append(p.Symbols, bytecode.SymbolEntry{Name: "x", Address: 4})
	}
	return p
}

func TestRoundTripDebugMode(t *testing.T) {
	prog := buildSample(bytecode.ModeDebug)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Write(&buf, prog))

	got, err := bytecode.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, prog.Mode, got.Mode)
	require.Equal(t, prog.Instructions, got.Instructions)
	require.Equal(t, prog.Constants, got.Constants)
	require.Equal(t, prog.Strings, got.Strings)
	require.Equal(t, prog.Functions, got.Functions)
	require.Equal(t, prog.Symbols, got.Symbols)
}

func TestRoundTripReleaseModeStripsDebugInfo(t *testing.T) {
	prog := buildSample(bytecode.ModeRelease)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Write(&buf, prog))

	got, err := bytecode.Read(&buf)
	require.NoError(t, err)
	require.Empty(t, got.Symbols)
	for _, in := range got.Instructions {
		require.Zero(t, in.Line)
		require.Zero(t, in.Col)
	}
}

func TestDeterministicSerialization(t *testing.T) {
	p1 := buildSample(bytecode.ModeRelease)
	p2 := buildSample(bytecode.ModeRelease)

	var b1, b2 bytes.Buffer
	require.NoError(t, bytecode.Write(&b1, p1))
	require.NoError(t, bytecode.Write(&b2, p2))
	require.Equal(t, b1.Bytes(), b2.Bytes())
}

func TestCorruptedChecksumIsRejected(t *testing.T) {
	prog := buildSample(bytecode.ModeRelease)
	var buf bytes.Buffer
	require.NoError(t, bytecode.Write(&buf, prog))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := bytecode.Read(bytes.NewReader(corrupted))
	require.Error(t, err)
}

func TestConstantPoolDeduplication(t *testing.T) {
	p := &bytecode.Program{}
	a := p.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: 7})
	b := p.AddConstant(bytecode.Constant{Tag: bytecode.TagI32, Bits: 7})
	c := p.AddConstant(bytecode.Constant{Tag: bytecode.TagF32, Bits: 7})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, p.Constants, 2)
}

func TestPatchOperandResolvesForwardJump(t *testing.T) {
	p := &bytecode.Program{}
	jumpPC := p.Emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []int64{-1}})
	p.Emit(bytecode.Instruction{Op: bytecode.OpNop})
	target := int64(len(p.Instructions))
	p.PatchOperand(jumpPC, 0, target)
	require.Equal(t, target, p.Instructions[jumpPC].Operands[0])
}
