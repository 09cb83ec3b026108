package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildConvertKernel() *Module {
	tt := tensorOf(blocked1D(1), F32, 128)
	m, f, b := newKernel(tt)
	m.Attrs["num_warps"] = 4
	_, _ = b.CreateConvert(f.Entry().Arg(0), blocked1D(4))
	b.Create(OpReturn, nil, nil, nil)
	return m
}

func TestModuleHashDeterminism(t *testing.T) {
	h1, err := ModuleHash(buildConvertKernel())
	require.NoError(t, err)
	h2, err := ModuleHash(buildConvertKernel())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "structurally identical modules must hash equally")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestModuleHashIgnoresIDAllocation(t *testing.T) {
	m := buildConvertKernel()
	before := MustModuleHash(m)

	// Burn IDs without changing structure.
	for range 10 {
		m.newID()
	}
	other := buildConvertKernel()
	other.nextID += 100

	assert.Equal(t, before, MustModuleHash(m))
	assert.Equal(t, before, MustModuleHash(other))
}

func TestModuleHashChangesWithLayout(t *testing.T) {
	m := buildConvertKernel()
	before := MustModuleHash(m)

	conv := m.Funcs[0].Collect(OpConvertLayout)[0]
	conv.Result(0).SetType(tensorOf(blocked1D(2), F32, 128))

	assert.NotEqual(t, before, MustModuleHash(m))
}
