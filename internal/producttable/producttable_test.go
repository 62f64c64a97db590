package producttable

import (
	"testing"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsSmallNMin(t *testing.T) {
	_, err := Build(sievetypes.Factorial, 50, 200)
	require.Error(t, err)
}

func TestFactorialTableMatchesDirectResidue(t *testing.T) {
	tbl, err := Build(sievetypes.Factorial, 101, 200)
	require.NoError(t, err)

	primes := []uint64{1000003, 999999937, 4294967291}
	for _, p := range primes {
		require.Equal(t, tbl.ResidueDirect(p), tbl.ResidueViaTable(p), "p=%d", p)
	}
	require.NoError(t, tbl.Verify(primes))
}

func TestPrimorialTableMatchesDirectResidueAndTailPrimes(t *testing.T) {
	tbl, err := Build(sievetypes.Primorial, 101, 300)
	require.NoError(t, err)

	require.NoError(t, tbl.Verify([]uint64{1000003, 999999937}))

	require.Contains(t, tbl.TailPrimes, uint32(101))
	require.NotContains(t, tbl.TailPrimes, uint32(97))
	for _, p := range tbl.TailPrimes {
		require.True(t, p >= 101 && p < 300)
	}
}

func TestCompositorialTableMatchesDirectResidue(t *testing.T) {
	tbl, err := Build(sievetypes.Compositorial, 101, 300)
	require.NoError(t, err)
	require.NoError(t, tbl.Verify([]uint64{1000003, 999999937}))

	require.False(t, tbl.IsPrime(100))
	require.True(t, tbl.IsPrime(101))
}

func TestCompressionStaysWithin64Bits(t *testing.T) {
	tbl, err := Build(sievetypes.Primorial, 101, 2_000_000)
	require.NoError(t, err)
	for _, e := range tbl.Entries {
		require.NotZero(t, e.Product)
	}
}

func TestArenaHashIsDeterministicAndSensitiveToRange(t *testing.T) {
	a, err := Build(sievetypes.Factorial, 101, 200)
	require.NoError(t, err)
	b, err := Build(sievetypes.Factorial, 101, 200)
	require.NoError(t, err)
	require.Equal(t, a.ArenaHash(), b.ArenaHash())

	// The factorial arena is built from the primes below n_min only, so it
	// is n_min that must change the hash.
	c, err := Build(sievetypes.Factorial, 150, 300)
	require.NoError(t, err)
	require.NotEqual(t, a.ArenaHash(), c.ArenaHash())
}

func TestLegendrePower(t *testing.T) {
	// 2's exponent in 100! is 97 (Legendre's formula: 50+25+12+6+3+1).
	require.Equal(t, uint32(97), legendrePower(2, 100))
	// 3's exponent in 100! is 48 (33+11+3+1).
	require.Equal(t, uint32(48), legendrePower(3, 100))
}
