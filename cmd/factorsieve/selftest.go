package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/bryanlittle/factorsieve/internal/orchestrator"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// selftestCase is one row of the fixed regression suite.
type selftestCase struct {
	num         int
	mode        sievetypes.Mode
	pMin, pMax  uint64
	nMin, nMax  uint32
	factorCount uint64
	primeCount  uint64
	checksumHex string
}

// selftestCases holds every fixture spec.md's self-test table gives a
// literal expected outcome for. The table numbers 1-12 with gaps (4, 7,
// 8, 10-12 are not given literal values in spec.md); those slots are
// reserved and skipped rather than invented.
var selftestCases = []selftestCase{
	{1, sievetypes.Factorial, 100_000_000, 101_000_000, 1_000_000, 2_000_000, 1071, 54211, "000004F844B5103C"},
	{2, sievetypes.Factorial, 1_000_000_000_000, 1_000_010_000_000, 10_000, 2_000_000, 3, 361727, "0505A1C238896511"},
	{3, sievetypes.Factorial, 101, 100_000, 101, 1_000_000, 42821, 9571, "0000000065DDB8A0"},
	{5, sievetypes.Primorial, 100_000_000, 101_000_000, 101, 25_000_000, 1703, 54211, "0000027EFF497990"},
	{6, sievetypes.Primorial, 101, 2_000_000, 101, 2_000_000, 24503, 148954, "000000027BF5B8E0"},
	{9, sievetypes.Compositorial, 200_000_000, 200_010_000, 101, 26_000_000, 127, 529, "0000001848D8AFBB"},
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the fixed end-to-end regression fixtures with known expected checksums",
	Run:   selftestCommand,
}

func selftestCommand(cmd *cobra.Command, args []string) {
	allPassed := true
	for _, c := range selftestCases {
		passed, err := runSelftestCase(c)
		if err != nil {
			color.Red.Printf("case %d (%s): ERROR: %v\n", c.num, c.mode, err)
			allPassed = false
			continue
		}
		if passed {
			color.Green.Printf("case %d (%s): PASS\n", c.num, c.mode)
		} else {
			color.Red.Printf("case %d (%s): FAIL\n", c.num, c.mode)
			allPassed = false
		}
	}

	if !allPassed {
		os.Exit(1)
	}
}

func runSelftestCase(c selftestCase) (bool, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("factorsieve-selftest-%d-", c.num))
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(dir)

	cfg := orchestrator.Config{
		Mode:               c.mode,
		PMin:               c.pMin,
		PMax:               c.pMax,
		NMin:               c.nMin,
		NMax:               c.nMax,
		ResultsPath:        filepath.Join(dir, "factors.txt"),
		CheckpointA:        filepath.Join(dir, "stateA.ckp"),
		CheckpointB:        filepath.Join(dir, "stateB.ckp"),
		CheckpointInterval: time.Minute,
	}

	orc, err := orchestrator.New(cfg)
	if err != nil {
		return false, err
	}

	status, err := orc.Run(context.Background())
	if err != nil {
		return false, err
	}

	gotChecksum := fmt.Sprintf("%016X", status.Checksum)
	return status.FactorCount == c.factorCount &&
		status.PrimeCount == c.primeCount &&
		gotChecksum == c.checksumHex, nil
}
