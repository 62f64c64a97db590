package sievetypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkStatusSealAndValid(t *testing.T) {
	w := WorkStatus{PMin: 101, PMax: 1000, P: 500, Checksum: 42, PrimeCount: 10,
		FactorCount: 2, LastTrickle: 9999, NMin: 101, NMax: 200, Mode: Primorial}
	w.Seal()
	require.True(t, w.Valid())

	w.P = 501
	require.False(t, w.Valid())
}

func TestFactorEncodesSignInNc(t *testing.T) {
	f := NewFactor(97, 150, -1)
	require.Equal(t, uint32(150), f.N())
	require.Equal(t, int32(-1), f.C())
	require.Equal(t, uint64(149), f.ChecksumTerm())

	g := NewFactor(97, 150, 1)
	require.Equal(t, uint32(150), g.N())
	require.Equal(t, int32(1), g.C())
	require.Equal(t, uint64(151), g.ChecksumTerm())
}

func TestNewSearchDataNumResultsRule(t *testing.T) {
	sd := NewSearchData(1000)
	require.Equal(t, uint32(30_000_000), sd.NumResults)

	sd = NewSearchData(1 << 40)
	require.Equal(t, uint32(1_000_000), sd.NumResults)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("primorial")
	require.NoError(t, err)
	require.Equal(t, Primorial, m)

	_, err = ParseMode("bogus")
	require.Error(t, err)
}
