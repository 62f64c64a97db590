package evaluator

import (
	"context"
	"testing"

	"github.com/bryanlittle/factorsieve/internal/producttable"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
	"github.com/stretchr/testify/require"
)

func TestSetupMatchesDirectResidue(t *testing.T) {
	table, err := producttable.Build(sievetypes.Factorial, 101, 200)
	require.NoError(t, err)

	candidates := []uint64{1000003, 999999937, 4294967291}
	batch := NewBatch(candidates)
	eval := New(2, table, sievetypes.Factorial)
	eval.Setup(batch, 0, len(table.Entries))

	for i, p := range candidates {
		c := batch.consts[i]
		want := table.ResidueDirect(p)
		got := c.FromMontgomery(batch.R[i])
		require.Equal(t, want, got, "p=%d", p)
	}
}

func TestIterateEmitsKnownFactorialFactor(t *testing.T) {
	// 101! - 1 is divisible by a prime we can discover directly: by
	// Wilson's theorem 101! == 1 and 102! == -1 (mod 103), so candidate 103
	// must emit (103, 101, -1) and (103, 102, +1). The other candidate's
	// residue trail is checked against a direct recomputation.
	table, err := producttable.Build(sievetypes.Factorial, 101, 110)
	require.NoError(t, err)

	p := uint64(1000003)
	batch := NewBatch([]uint64{p, 103})
	eval := New(1, table, sievetypes.Factorial)
	eval.Setup(batch, 0, len(table.Entries))

	steps := eval.Steps(101, 110)
	ring := NewRing(10)
	err = eval.Iterate(context.Background(), batch, steps, ring)
	require.NoError(t, err)

	// Cross-check against the direct recomputation: walk 101..109 by hand.
	direct := table.ResidueDirect(p)
	for k := uint32(101); k < 110; k++ {
		direct = (direct * (uint64(k) % p)) % p
	}
	got := batch.consts[0].FromMontgomery(batch.R[0])
	require.Equal(t, direct, got)

	factors := ring.Drain()
	require.Contains(t, factors, sievetypes.NewFactor(103, 101, -1))
	require.Contains(t, factors, sievetypes.NewFactor(103, 102, 1))
}

func TestRingOverflowIsFatal(t *testing.T) {
	ring := NewRing(1)
	require.NoError(t, ring.Push(sievetypes.NewFactor(3, 101, 1)))
	err := ring.Push(sievetypes.NewFactor(5, 101, 1))
	require.Error(t, err)
}

func TestStepsPrimorialOnlyIncludesPrimes(t *testing.T) {
	table, err := producttable.Build(sievetypes.Primorial, 101, 300)
	require.NoError(t, err)
	eval := New(1, table, sievetypes.Primorial)
	steps := eval.Steps(101, 200)
	require.Contains(t, steps, uint32(101))
	require.NotContains(t, steps, uint32(100))
}

func TestStepsCompositorialExcludesPrimes(t *testing.T) {
	table, err := producttable.Build(sievetypes.Compositorial, 101, 300)
	require.NoError(t, err)
	eval := New(1, table, sievetypes.Compositorial)
	steps := eval.Steps(101, 120)
	require.NotContains(t, steps, uint32(101)) // 101 is prime, skipped
	require.Contains(t, steps, uint32(102))    // composite, multiplied
}
