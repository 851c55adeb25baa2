package sema_test

import (
	"testing"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
	"github.com/stretchr/testify/require"
)

func TestTaskDesugarsToFunctionAndTaskInfo(t *testing.T) {
	info, err := analyze(t, `
		Task Blink {
			core: 1;
			priority: 3;
			stack: 2048;
			void run() {
				int x = 1;
			}
		}
	`)
	require.NoError(t, err)
	require.Contains(t, info.Functions, "Blink")
	require.Len(t, info.Tasks, 1)
	require.Equal(t, "Blink", info.Tasks[0].Name)
	require.Equal(t, "Blink", info.Tasks[0].FuncName)
	require.EqualValues(t, 1, info.Tasks[0].Core)
	require.EqualValues(t, 3, info.Tasks[0].Priority)
	require.EqualValues(t, 2048, info.Tasks[0].Stack)
}

func TestTaskDefaultsWhenAttributesOmitted(t *testing.T) {
	info, err := analyze(t, `
		Task Idle {
			void run() {}
		}
	`)
	require.NoError(t, err)
	require.Len(t, info.Tasks, 1)
	require.EqualValues(t, 0, info.Tasks[0].Core)
	require.EqualValues(t, 5, info.Tasks[0].Priority)
	require.EqualValues(t, 4096, info.Tasks[0].Stack)
}

func TestTaskCoreOutOfRangeIsRejected(t *testing.T) {
	_, err := analyze(t, `
		Task Bad {
			core: 9;
			void run() {}
		}
	`)
	require.Error(t, err)
	var serr *sema.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, sema.TaskCoreOutOfRange, serr.Kind)
}

func TestTaskPriorityOutOfRangeIsRejected(t *testing.T) {
	_, err := analyze(t, `
		Task Bad {
			priority: 0;
			void run() {}
		}
	`)
	require.Error(t, err)
	var serr *sema.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, sema.TaskPriorityOutOfRange, serr.Kind)
}
