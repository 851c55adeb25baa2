package codegen_test

import (
	"testing"

	"github.com/OmidArdestani/RTMC-Framework/pkg/bytecode"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/codegen"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/lexer"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/parser"
	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	b := []byte(src)
	s := lexer.NewScanner(b)
	p := parser.NewParser(s, b)
	prog, err := p.Parse()
	require.NoError(t, err)

	info, err := sema.NewAnalyzer(b).Analyze(prog)
	require.NoError(t, err)

	out, err := codegen.Generate(info, b, bytecode.ModeRelease)
	require.NoError(t, err)
	return out
}

func indexOfOp(prog *bytecode.Program, op bytecode.Op) int {
	for i, in := range prog.Instructions {
		if in.Op == op {
			return i
		}
	}
	return -1
}

func TestGlobalDeclarationInternsInitializerConstant(t *testing.T) {
	prog := generate(t, `const int counter = 7;`)
	require.Equal(t, bytecode.OpGlobalVarDeclare, prog.Instructions[0].Op)
	ops := prog.Instructions[0].Operands
	require.Len(t, ops, 3)
	require.Equal(t, int64(1), ops[2], "is_const operand")
	constIdx := ops[1]
	require.Equal(t, int32(7), int32(prog.Constants[constIdx].Bits))
}

func TestUninitializedGlobalDeclaresZeroConstant(t *testing.T) {
	prog := generate(t, `int counter;`)
	require.Equal(t, bytecode.OpGlobalVarDeclare, prog.Instructions[0].Op)
	ops := prog.Instructions[0].Operands
	require.Equal(t, int64(0), ops[2], "is_const operand")
	constIdx := ops[1]
	require.Equal(t, int32(0), int32(prog.Constants[constIdx].Bits))
}

func TestCompiledFunctionsAppearInFunctionTable(t *testing.T) {
	prog := generate(t, `
		void helper() { }
		void main() { helper(); }
	`)
	require.Len(t, prog.Functions, 2)
	names := map[string]uint32{}
	for _, f := range prog.Functions {
		names[f.Name] = f.Address
	}
	helperAddr, ok := names["helper"]
	require.True(t, ok)
	mainAddr, ok := names["main"]
	require.True(t, ok)
	require.Equal(t, bytecode.OpAllocFrame, prog.Instructions[helperAddr].Op)
	require.Equal(t, bytecode.OpAllocFrame, prog.Instructions[mainAddr].Op)
}

func TestProgramEndsWithHalt(t *testing.T) {
	prog := generate(t, `int counter = 0;`)
	last := prog.Instructions[len(prog.Instructions)-1]
	require.Equal(t, bytecode.OpHalt, last.Op)
}

func TestFunctionCallPatchesForwardReference(t *testing.T) {
	prog := generate(t, `
		void tick() { helper(); }
		void helper() { }
	`)
	callIdx := indexOfOp(prog, bytecode.OpCall)
	require.NotEqual(t, -1, callIdx)

	callPC := prog.Instructions[callIdx].Operands[0]
	// helper's ALLOC_FRAME must be the instruction the patched CALL targets.
	require.Equal(t, bytecode.OpAllocFrame, prog.Instructions[callPC].Op)
}

func TestIfElseBranchesPatchToCorrectTargets(t *testing.T) {
	prog := generate(t, `
		int flag = 1;
		void check() {
			if (flag) {
				flag = 0;
			} else {
				flag = 1;
			}
		}
	`)
	jf := indexOfOp(prog, bytecode.OpJumpIfFalse)
	require.NotEqual(t, -1, jf)
	elseTarget := int(prog.Instructions[jf].Operands[0])
	require.Equal(t, bytecode.OpJump, prog.Instructions[elseTarget-1].Op)

	jEndTarget := int(prog.Instructions[elseTarget-1].Operands[0])
	require.Equal(t, bytecode.OpFreeFrame, prog.Instructions[jEndTarget].Op)
}

func TestBreakAndContinueResolveAgainstLoopBounds(t *testing.T) {
	prog := generate(t, `
		void run() {
			int i;
			for (i = 0; i < 10; i = i + 1) {
				if (i == 5) {
					break;
				}
				continue;
			}
		}
	`)
	jumps := []int{}
	for i, in := range prog.Instructions {
		if in.Op == bytecode.OpJump {
			jumps = append(jumps, i)
		}
	}
	require.True(t, len(jumps) >= 3, "expected break, continue, and loopback jumps")
}

// Scenario A: StartTask(1024,0,2,1,run) emits exactly one RTOS_CREATE_TASK
// with operands (stack=1024, core=0, prio=2, id=1, fn=addr_of(run)), and
// run()'s body contains a JUMP whose target lies before the HW_GPIO_SET
// instruction (the loop test precedes the body it guards).
func TestStartTaskScenarioEmitsSingleCreateTaskWithResolvedOperands(t *testing.T) {
	prog := generate(t, `
		void run() {
			HW_GPIO_INIT(13, 1);
			while (1) {
				HW_GPIO_SET(13, 1);
				RTOS_DELAY_MS(500);
			}
		}
		void main() {
			StartTask(1024, 0, 2, 1, run);
		}
	`)

	var createIdx = -1
	for i, in := range prog.Instructions {
		if in.Op == bytecode.OpRtosCreateTask {
			require.Equal(t, -1, createIdx, "expected exactly one RTOS_CREATE_TASK")
			createIdx = i
		}
	}
	require.NotEqual(t, -1, createIdx)

	ops := prog.Instructions[createIdx].Operands
	require.Equal(t, []int64{1024, 0, 2, 1}, ops[:4])

	runAddr := ops[4]
	require.Equal(t, bytecode.OpAllocFrame, prog.Instructions[runAddr].Op)

	gpioSetIdx := -1
	for i := int(runAddr); i < len(prog.Instructions); i++ {
		if prog.Instructions[i].Op == bytecode.OpHwGpioSet {
			gpioSetIdx = i
			break
		}
	}
	require.NotEqual(t, -1, gpioSetIdx)

	jumpIdx := -1
	for i := int(runAddr); i < gpioSetIdx; i++ {
		if prog.Instructions[i].Op == bytecode.OpJump {
			jumpIdx = i
		}
	}
	if jumpIdx == -1 {
		// The loop's backward JUMP is emitted after the body; verify its
		// target still lies before gpioSetIdx instead.
		for i := gpioSetIdx; i < len(prog.Instructions); i++ {
			if prog.Instructions[i].Op == bytecode.OpJump {
				require.Less(t, int(prog.Instructions[i].Operands[0]), gpioSetIdx)
				jumpIdx = i
				break
			}
		}
	}
	require.NotEqual(t, -1, jumpIdx)
}

// Scenario C: Q.recv(timeout:500) emits LOAD_CONST(500); MSG_RECV(Q); a
// blocking Q.recv() emits LOAD_CONST(-1) instead.
func TestMessageRecvTimeoutOrdering(t *testing.T) {
	prog := generate(t, `
		message<int> Q;
		void consumer() {
			int x;
			x = Q.recv(timeout: 500);
		}
	`)
	recvIdx := indexOfOp(prog, bytecode.OpMsgRecv)
	require.NotEqual(t, -1, recvIdx)
	require.Equal(t, bytecode.OpLoadConst, prog.Instructions[recvIdx-1].Op)

	constIdx := prog.Instructions[recvIdx-1].Operands[0]
	require.Equal(t, int32(500), int32(prog.Constants[constIdx].Bits))
}

func TestMessageRecvBlockingDefaultsToNegativeOneTimeout(t *testing.T) {
	prog := generate(t, `
		message<int> Q;
		void consumer() {
			int x;
			x = Q.recv();
		}
	`)
	recvIdx := indexOfOp(prog, bytecode.OpMsgRecv)
	require.NotEqual(t, -1, recvIdx)
	constIdx := prog.Instructions[recvIdx-1].Operands[0]
	require.Equal(t, int32(-1), int32(prog.Constants[constIdx].Bits))
}

// Scenario F: int *p = &a; emits LOAD_ADDR; **pp emits exactly two
// LOAD_DEREF instructions in sequence.
func TestPointerAddressAndDoubleDerefEmission(t *testing.T) {
	prog := generate(t, `
		int a;
		int *p;
		int **pp;
		void run() {
			p = &a;
			pp = &p;
			a = **pp;
		}
	`)
	require.NotEqual(t, -1, indexOfOp(prog, bytecode.OpLoadAddr))

	derefCount := 0
	maxRun := 0
	cur := 0
	for _, in := range prog.Instructions {
		if in.Op == bytecode.OpLoadDeref {
			cur++
			if cur > maxRun {
				maxRun = cur
			}
			derefCount++
		} else {
			cur = 0
		}
	}
	require.GreaterOrEqual(t, derefCount, 2)
	require.Equal(t, 2, maxRun, "** should emit two consecutive LOAD_DEREF instructions")
}

func TestStructMemberBitFieldLoadStore(t *testing.T) {
	prog := generate(t, `
		struct Flags {
			int a : 16;
			int b : 16;
		};
		struct Flags f;
		void run() {
			f.a = 1;
			f.b = f.a;
		}
	`)
	require.NotEqual(t, -1, indexOfOp(prog, bytecode.OpStoreStructMemberBit))
	require.NotEqual(t, -1, indexOfOp(prog, bytecode.OpLoadStructMemberBit))
}

func TestArrayIndexLoadStore(t *testing.T) {
	prog := generate(t, `
		int table[4];
		void run() {
			table[0] = 1;
			table[1] = table[0];
		}
	`)
	require.NotEqual(t, -1, indexOfOp(prog, bytecode.OpStoreArrayElem))
	require.NotEqual(t, -1, indexOfOp(prog, bytecode.OpLoadArrayElem))
}

func TestTaskSugarEmitsCreateTaskForDesugaredFunction(t *testing.T) {
	prog := generate(t, `
		Task Blink {
			core: 0;
			priority: 3;
			stack: 2048;
			void run() {
				HW_GPIO_SET(13, 1);
			}
		}
	`)
	createIdx := indexOfOp(prog, bytecode.OpRtosCreateTask)
	require.NotEqual(t, -1, createIdx)
	ops := prog.Instructions[createIdx].Operands
	require.Equal(t, []int64{2048, 0, 3, 0}, ops[:4])

	blinkAddr := ops[4]
	require.Equal(t, bytecode.OpAllocFrame, prog.Instructions[blinkAddr].Op)
}

// A block-scoped local shadowing an outer local must resolve to its own
// frame slot, not the outer variable's — the outer x's final store must
// still target the outer slot, not the inner shadow's.
func TestBlockScopedLocalShadowsOuterOfSameName(t *testing.T) {
	prog := generate(t, `
		void run() {
			int x;
			x = 1;
			{
				int x;
				x = 2;
			}
			x = 3;
		}
	`)
	stores := []int64{}
	for _, in := range prog.Instructions {
		if in.Op == bytecode.OpStoreVar {
			stores = append(stores, in.Operands[0])
		}
	}
	require.Len(t, stores, 3)
	require.Equal(t, stores[0], stores[2], "outer x's two stores must target the same slot")
	require.NotEqual(t, stores[0], stores[1], "inner block's x must use a distinct slot from outer x")
}

func TestSizeofStructUsesActualLayoutSize(t *testing.T) {
	prog := generate(t, `
		struct Point {
			int x;
			int y;
		};
		struct Point p;
		void run() {
			int s;
			s = sizeof(p);
		}
	`)
	idx := indexOfOp(prog, bytecode.OpLoadConst)
	require.NotEqual(t, -1, idx)
	found := false
	for _, c := range prog.Constants {
		if c.Tag == bytecode.TagI32 && int32(c.Bits) == 8 {
			found = true
		}
	}
	require.True(t, found, "sizeof(struct Point) should intern the struct's real 8-byte size, not a hardcoded 4")
}

func TestConstantPoolDeduplicatesEqualValues(t *testing.T) {
	prog := generate(t, `
		void run() {
			int a;
			int b;
			a = 42;
			b = 42;
		}
	`)
	count := 0
	for _, c := range prog.Constants {
		if c.Tag == bytecode.TagI32 && int32(c.Bits) == 42 {
			count++
		}
	}
	require.Equal(t, 1, count, "42 should be interned once")
}
