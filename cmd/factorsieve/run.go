package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bryanlittle/factorsieve/internal/orchestrator"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

var (
	modeFlag               string
	pMinFlag, pMaxFlag     uint64
	nMinFlag, nMaxFlag     uint32
	resultsPathFlag        string
	checkpointAFlag        string
	checkpointBFlag        string
	workersFlag            int
	checkpointIntervalFlag time.Duration
	specFileFlag           string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sieve over a p-range",
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&modeFlag, "mode", "", "factorial | primorial | compositorial")
	runCmd.Flags().Uint64Var(&pMinFlag, "p-min", 0, "lower p bound (inclusive)")
	runCmd.Flags().Uint64Var(&pMaxFlag, "p-max", 0, "upper p bound (exclusive)")
	runCmd.Flags().Uint32Var(&nMinFlag, "n-min", 101, "lower n bound (inclusive)")
	runCmd.Flags().Uint32Var(&nMaxFlag, "n-max", 0, "upper n bound (exclusive)")
	runCmd.Flags().StringVar(&resultsPathFlag, "results", "factors.txt", "results log path")
	runCmd.Flags().StringVar(&checkpointAFlag, "checkpoint-a", "stateA.ckp", "checkpoint file A path")
	runCmd.Flags().StringVar(&checkpointBFlag, "checkpoint-b", "stateB.ckp", "checkpoint file B path")
	runCmd.Flags().IntVar(&workersFlag, "workers", 0, "worker pool size (0 = runtime.NumCPU())")
	runCmd.Flags().DurationVar(&checkpointIntervalFlag, "checkpoint-interval", time.Minute, "minimum time between checkpoint writes")
	runCmd.Flags().StringVar(&specFileFlag, "spec", "", "optional toml job spec file; explicit flags override its fields")
}

func runCommand(cmd *cobra.Command, args []string) {
	cfg, err := buildConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid invocation")
	}

	orc, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start run")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("run_id", orc.RunID()).Msg("sieve starting")
	status, err := orc.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("run terminated with a fatal error")
	}

	color.Green.Println("sieve run complete")
	log.Info().Uint64("p", status.P).Uint64("prime_count", status.PrimeCount).
		Uint64("factor_count", status.FactorCount).Uint64("checksum", status.Checksum).
		Msg("final status")
}

// buildConfig merges the optional toml job spec with explicit flags,
// explicit flags winning, then produces an orchestrator.Config.
func buildConfig() (orchestrator.Config, error) {
	details := JobDetails{
		Mode:        modeFlag,
		PMin:        pMinFlag,
		PMax:        pMaxFlag,
		NMin:        nMinFlag,
		NMax:        nMaxFlag,
		ResultsPath: resultsPathFlag,
		CheckpointA: checkpointAFlag,
		CheckpointB: checkpointBFlag,
		Workers:     workersFlag,
	}

	if specFileFlag != "" {
		spec, err := LoadJobSpecFromFile(specFileFlag)
		if err != nil {
			return orchestrator.Config{}, err
		}
		details = mergeJobDetails(spec.Job, details)
	}

	mode, err := sievetypes.ParseMode(details.Mode)
	if err != nil {
		return orchestrator.Config{}, err
	}

	return orchestrator.Config{
		Mode:               mode,
		PMin:               details.PMin,
		PMax:               details.PMax,
		NMin:               details.NMin,
		NMax:               details.NMax,
		ResultsPath:        details.ResultsPath,
		CheckpointA:        details.CheckpointA,
		CheckpointB:        details.CheckpointB,
		Workers:            details.Workers,
		CheckpointInterval: checkpointIntervalFlag,
	}, nil
}

// mergeJobDetails fills every field of override that still holds its flag
// default (zero, 101 for n_min, or the default results/checkpoint paths)
// from base (the toml spec file), so a flag set to a non-default value
// wins over the file. A flag explicitly set to its default value is not
// told apart from an unset one, and the file's value is used.
func mergeJobDetails(base, override JobDetails) JobDetails {
	out := override
	if out.Mode == "" {
		out.Mode = base.Mode
	}
	if out.PMin == 0 {
		out.PMin = base.PMin
	}
	if out.PMax == 0 {
		out.PMax = base.PMax
	}
	if out.NMin == 101 && base.NMin != 0 {
		out.NMin = base.NMin
	}
	if out.NMax == 0 {
		out.NMax = base.NMax
	}
	if out.ResultsPath == "factors.txt" && base.ResultsPath != "" {
		out.ResultsPath = base.ResultsPath
	}
	if out.CheckpointA == "stateA.ckp" && base.CheckpointA != "" {
		out.CheckpointA = base.CheckpointA
	}
	if out.CheckpointB == "stateB.ckp" && base.CheckpointB != "" {
		out.CheckpointB = base.CheckpointB
	}
	if out.Workers == 0 {
		out.Workers = base.Workers
	}
	return out
}
