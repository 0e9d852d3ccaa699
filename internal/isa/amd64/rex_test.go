package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
)

func TestRexInfoEncode(t *testing.T) {
	cases := []struct {
		name string
		r    amd64.RexInfo
		want byte
	}{
		{"none", amd64.RexInfo{}, 0x40},
		{"w", amd64.RexInfo{W: true}, 0x48},
		{"wrxb", amd64.RexInfo{W: true, R: true, X: true, B: true}, 0x4f},
		{"b-only", amd64.RexInfo{B: true}, 0x41},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.r.Encode())
		})
	}
}

func TestRexInfoNeeded(t *testing.T) {
	require.False(t, amd64.RexInfo{}.Needed(false))
	require.True(t, amd64.RexInfo{}.Needed(true))
	require.True(t, amd64.RexInfo{W: true}.Needed(false))
}
