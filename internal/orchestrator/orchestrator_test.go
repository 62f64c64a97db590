package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

func testConfig(t *testing.T, mode sievetypes.Mode, pMin, pMax uint64, nMin, nMax uint32) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Mode:               mode,
		PMin:               pMin,
		PMax:               pMax,
		NMin:               nMin,
		NMax:               nMax,
		ResultsPath:        filepath.Join(dir, "factors.txt"),
		CheckpointA:        filepath.Join(dir, "state_a.dat"),
		CheckpointB:        filepath.Join(dir, "state_b.dat"),
		Workers:            2,
		CheckpointInterval: time.Hour,
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	base := testConfig(t, sievetypes.Factorial, 200, 100000, 101, 200)

	tooSmallP := base
	tooSmallP.PMin = 2
	require.Error(t, tooSmallP.Validate())

	invertedP := base
	invertedP.PMin, invertedP.PMax = invertedP.PMax, invertedP.PMin
	require.Error(t, invertedP.Validate())

	tooSmallN := base
	tooSmallN.NMin = 50
	require.Error(t, tooSmallN.Validate())

	invertedN := base
	invertedN.NMin, invertedN.NMax = invertedN.NMax, invertedN.NMin
	require.Error(t, invertedN.Validate())

	pBelowN := base
	pBelowN.PMin = 50
	pBelowN.NMin = 101
	pBelowN.Mode = sievetypes.Factorial
	require.Error(t, pBelowN.Validate())

	require.NoError(t, base.Validate())
}

func TestValidateAllowsCompositorialPBelowN(t *testing.T) {
	cfg := testConfig(t, sievetypes.Compositorial, 50, 100000, 101, 200)
	require.NoError(t, cfg.Validate())
}

func TestNewBuildsTableAndSelfVerifies(t *testing.T) {
	cfg := testConfig(t, sievetypes.Factorial, 100003, 100103, 101, 150)
	o, err := New(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, o.RunID())
	require.NotNil(t, o.table)
}

func TestRunOverSmallWindowWritesTrailerAndChecksum(t *testing.T) {
	cfg := testConfig(t, sievetypes.Factorial, 100003, 100203, 101, 103)
	cfg.CheckpointInterval = time.Millisecond

	o, err := New(cfg)
	require.NoError(t, err)

	status, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, status.PMax, status.P)
	require.True(t, status.Valid())

	contents, err := os.ReadFile(cfg.ResultsPath)
	require.NoError(t, err)
	require.Regexp(t, `(?s)^([^\n]*\n)*[0-9A-F]{16}\n$`, string(contents))
}

func TestRunIsIdempotentAcrossInterruption(t *testing.T) {
	cfg := testConfig(t, sievetypes.Factorial, 100003, 100403, 101, 103)
	cfg.CheckpointInterval = 0

	full, err := New(cfg)
	require.NoError(t, err)
	fullStatus, err := full.Run(context.Background())
	require.NoError(t, err)

	split := testConfig(t, sievetypes.Factorial, 100003, 100403, 101, 103)
	split.CheckpointA = cfg.CheckpointA + ".split"
	split.CheckpointB = cfg.CheckpointB + ".split"
	split.ResultsPath = cfg.ResultsPath + ".split"
	split.CheckpointInterval = 0

	ctx, cancel := context.WithCancel(context.Background())
	first, err := New(split)
	require.NoError(t, err)
	cancel()
	_, _ = first.Run(ctx)

	second, err := New(split)
	require.NoError(t, err)
	secondStatus, err := second.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, fullStatus.Checksum, secondStatus.Checksum)
	require.Equal(t, fullStatus.FactorCount, secondStatus.FactorCount)
}
