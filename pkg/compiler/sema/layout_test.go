package sema_test

import (
	"testing"

	"github.com/OmidArdestani/RTMC-Framework/pkg/compiler/sema"
	"github.com/stretchr/testify/require"
)

func TestBitFieldPacking(t *testing.T) {
	info, err := analyze(t, `
		struct Flags {
			int a : 16;
			int b : 16;
		};
		struct Flags f;
	`)
	require.NoError(t, err)
	layout := info.Layouts["Flags"]
	require.NotNil(t, layout)
	require.EqualValues(t, 4, layout.Size)

	fa, ok := layout.Field("a")
	require.True(t, ok)
	require.EqualValues(t, 0, fa.ByteOffset)
	require.EqualValues(t, 0, fa.BitOffset)
	require.EqualValues(t, 16, fa.BitWidth)

	fb, ok := layout.Field("b")
	require.True(t, ok)
	require.EqualValues(t, 0, fb.ByteOffset)
	require.EqualValues(t, 16, fb.BitOffset)
	require.EqualValues(t, 16, fb.BitWidth)
}

func TestBitFieldOverflowOpensNewStorageUnit(t *testing.T) {
	info, err := analyze(t, `
		struct Packed {
			int a : 24;
			int b : 16;
		};
		struct Packed p;
	`)
	require.NoError(t, err)
	layout := info.Layouts["Packed"]
	fa, _ := layout.Field("a")
	fb, _ := layout.Field("b")
	require.EqualValues(t, 0, fa.ByteOffset)
	require.EqualValues(t, 4, fb.ByteOffset)
	require.EqualValues(t, 0, fb.BitOffset)
	require.EqualValues(t, 8, layout.Size)
}

func TestUnionOverlaysAllAlternativesAtOffsetZero(t *testing.T) {
	info, err := analyze(t, `
		union Word {
			int asInt;
			char asBytes[4];
		};
		union Word w;
	`)
	require.NoError(t, err)
	layout := info.Layouts["Word"]
	require.True(t, layout.IsUnion)
	require.EqualValues(t, 4, layout.Size)

	fi, ok := layout.Field("asInt")
	require.True(t, ok)
	require.EqualValues(t, 0, fi.ByteOffset)

	fb, ok := layout.Field("asBytes")
	require.True(t, ok)
	require.EqualValues(t, 0, fb.ByteOffset)
}

func TestAnonymousNestedStructIsPromotedWithBiasedOffsets(t *testing.T) {
	info, err := analyze(t, `
		struct Packet {
			int header;
			struct {
				int x;
				int y;
			};
		};
		struct Packet p;
	`)
	require.NoError(t, err)
	layout := info.Layouts["Packet"]
	x, ok := layout.Field("x")
	require.True(t, ok)
	require.True(t, x.IsAnonymousGroup)
	require.EqualValues(t, 4, x.ByteOffset)

	y, ok := layout.Field("y")
	require.True(t, ok)
	require.EqualValues(t, 8, y.ByteOffset)
}

func TestFirstFieldStructInheritancePlacesAtOffsetZero(t *testing.T) {
	info, err := analyze(t, `
		struct Base { int id; };
		struct Derived {
			struct Base base;
			int extra;
		};
		struct Derived d;
	`)
	require.NoError(t, err)
	layout := info.Layouts["Derived"]
	base, ok := layout.Field("base")
	require.True(t, ok)
	require.EqualValues(t, 0, base.ByteOffset)
}

func TestCircularValueContainmentIsRejected(t *testing.T) {
	_, err := analyze(t, `
		struct A { struct B b; };
		struct B { struct A a; };
		struct A x;
	`)
	require.Error(t, err)
	var serr *sema.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, sema.CircularType, serr.Kind)
}

func TestPointerContainmentBreaksCycle(t *testing.T) {
	_, err := analyze(t, `
		struct A { struct B *b; };
		struct B { struct A *a; };
		struct A x;
	`)
	require.NoError(t, err)
}

func TestBadBitFieldWidthIsRejected(t *testing.T) {
	_, err := analyze(t, `
		struct Bad {
			int a : 40;
		};
	`)
	require.Error(t, err)
	var serr *sema.Error
	require.ErrorAs(t, err, &serr)
	require.Equal(t, sema.BadBitFieldWidth, serr.Kind)
}
