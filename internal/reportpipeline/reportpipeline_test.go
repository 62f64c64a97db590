package reportpipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
	"github.com/bryanlittle/factorsieve/internal/verify"
)

func TestFormatLineForEachMode(t *testing.T) {
	f := sievetypes.NewFactor(97, 150, -1)
	require.Equal(t, "97 | 150!-1\n", FormatLine(sievetypes.Factorial, f))
	require.Equal(t, "97 | 150#-1\n", FormatLine(sievetypes.Primorial, f))
	require.Equal(t, "97 | 150!/#-1\n", FormatLine(sievetypes.Compositorial, f))

	g := sievetypes.NewFactor(97, 150, 1)
	require.Equal(t, "97 | 150!+1\n", FormatLine(sievetypes.Factorial, g))
}

func TestReportDiscardsCompositeP(t *testing.T) {
	// 22577 = 107 * 211 is composite, and both 107 and 211 divide 105! - 1,
	// so the CPU verifier accepts (22577, 105, -1); reportpipeline must
	// still discard a factor reported against a non-prime p.
	verifier := verify.New(sievetypes.Factorial, 200)
	factors := []sievetypes.Factor{sievetypes.NewFactor(22577, 105, -1)}
	var status sievetypes.WorkStatus
	var buf bytes.Buffer

	err := Report(context.Background(), &buf, sievetypes.Factorial, factors, verifier, 1, &status)
	require.NoError(t, err)
	require.Empty(t, buf.String())
	require.Equal(t, uint64(0), status.FactorCount)
}

func TestReportFoldsChecksumForVerifiedPrimeFactor(t *testing.T) {
	// By Wilson's theorem 150! == -1 (mod 151), so 151 divides 150! + 1;
	// the verifier itself picks the sign of the self-consistent triple.
	p := uint64(151)
	n := uint32(150)
	verifier := verify.New(sievetypes.Factorial, 200)

	var c int32 = -1
	if !verifier.Verify(p, n, c) {
		c = 1
		require.True(t, verifier.Verify(p, n, c), "p=%d should divide one of n!+-1 for this synthetic test", p)
	}

	factors := []sievetypes.Factor{sievetypes.NewFactor(p, n, c)}
	var status sievetypes.WorkStatus
	var buf bytes.Buffer

	err := Report(context.Background(), &buf, sievetypes.Factorial, factors, verifier, 1, &status)
	require.NoError(t, err)
	require.Equal(t, FormatLine(sievetypes.Factorial, factors[0]), buf.String())
	require.Equal(t, uint64(1), status.FactorCount)
	require.Equal(t, factors[0].ChecksumTerm(), status.Checksum)
}

func TestReportDuplicatePReusesCachedVerdict(t *testing.T) {
	// Wilson's theorem: 149! == 1 and 150! == -1 (mod 151), so 151 divides
	// both 149! - 1 and 150! + 1.
	verifier := verify.New(sievetypes.Factorial, 300)
	p := uint64(151)

	var c1 int32 = -1
	if !verifier.Verify(p, 149, c1) {
		c1 = 1
	}
	factors := []sievetypes.Factor{
		sievetypes.NewFactor(p, 149, c1),
	}
	// second factor at same p and a later n, reusing the same base chain
	var c2 int32 = -1
	if !verifier.Verify(p, 150, c2) {
		c2 = 1
	}
	factors = append(factors, sievetypes.NewFactor(p, 150, c2))

	var status sievetypes.WorkStatus
	var buf bytes.Buffer
	err := Report(context.Background(), &buf, sievetypes.Factorial, factors, verifier, 1, &status)
	require.NoError(t, err)
	require.Equal(t, uint64(2), status.FactorCount)
}
