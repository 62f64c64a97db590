// Package orchestrator drives the sieve end to end: builds the product
// table, resumes or starts a WorkStatus, walks p-windows through the
// batch evaluator, reports emitted factors, and checkpoints progress.
// It is the single orchestration thread spec.md 5 describes: it never
// reads evaluator output mid-batch, only after every worker in a phase
// has drained.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bryanlittle/factorsieve/internal/checkpoint"
	"github.com/bryanlittle/factorsieve/internal/evaluator"
	"github.com/bryanlittle/factorsieve/internal/producttable"
	"github.com/bryanlittle/factorsieve/internal/reportpipeline"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
	"github.com/bryanlittle/factorsieve/internal/verify"
	"github.com/bryanlittle/factorsieve/internal/wheel"
)

// Config is the invocation surface spec.md 6 describes: the job's mode,
// p-range, n-range, and where the core's externally observable files
// live. CLI flag parsing stays in cmd/factorsieve; this struct is what
// it must produce.
type Config struct {
	Mode        sievetypes.Mode
	PMin, PMax  uint64
	NMin, NMax  uint32
	ResultsPath string
	CheckpointA string
	CheckpointB string

	Workers            int
	CheckpointInterval time.Duration
}

// Validate enforces spec.md 6's invocation constraints before any work
// starts, per spec.md 7's input-violation error taxonomy.
func (c Config) Validate() error {
	if c.PMin < 3 {
		return fmt.Errorf("orchestrator: p_min must be >= 3, got %d", c.PMin)
	}
	if c.PMin >= c.PMax {
		return fmt.Errorf("orchestrator: p_min (%d) must be < p_max (%d)", c.PMin, c.PMax)
	}
	if c.NMin < 101 {
		return fmt.Errorf("orchestrator: n_min must be >= 101, got %d", c.NMin)
	}
	if c.NMax >= (1 << 31) {
		return fmt.Errorf("orchestrator: n_max must be < 2^31, got %d", c.NMax)
	}
	if c.NMin >= c.NMax {
		return fmt.Errorf("orchestrator: n_min (%d) must be < n_max (%d)", c.NMin, c.NMax)
	}
	if c.Mode != sievetypes.Compositorial && c.PMin < uint64(c.NMin) {
		return fmt.Errorf("orchestrator: p_min (%d) must be >= n_min (%d) for %v mode", c.PMin, c.NMin, c.Mode)
	}
	return nil
}

// Orchestrator owns one run's product table, checkpoint store, batch
// evaluator and CPU verifier, and drives p-windows from the resume point
// to p_max.
type Orchestrator struct {
	cfg      Config
	runID    string
	table    *producttable.Table
	store    *checkpoint.Store
	search   sievetypes.SearchData
	eval     *evaluator.Evaluator
	verifier *verify.Verifier
}

// New validates cfg, builds the product table, and runs the table
// self-verification pass before returning a ready-to-run Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table, err := producttable.Build(cfg.Mode, cfg.NMin, cfg.NMax)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building product table: %w", err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		runID:    uuid.NewString(),
		table:    table,
		store:    checkpoint.NewStore(cfg.CheckpointA, cfg.CheckpointB),
		search:   sievetypes.NewSearchData(cfg.PMin),
		eval:     evaluator.New(cfg.Workers, table, cfg.Mode),
		verifier: verify.New(cfg.Mode, cfg.NMax),
	}

	if err := o.selfVerifyTable(); err != nil {
		return nil, err
	}

	return o, nil
}

// RunID returns the run's generated identifier, used to correlate
// progress log lines and checkpoint writes across a single invocation.
func (o *Orchestrator) RunID() string { return o.runID }

// selfVerifyTable runs spec.md 4.5's table self-verification: a sample of
// wheel-generated candidates near p_min is checked against the
// independent direct recomputation. A mismatch is a fatal consistency
// failure (spec.md 7).
func (o *Orchestrator) selfVerifyTable() error {
	sampleEnd := o.cfg.PMin + o.search.Range
	if sampleEnd > o.cfg.PMax {
		sampleEnd = o.cfg.PMax
	}
	samples := wheel.Generate(o.cfg.PMin, sampleEnd)
	if len(samples) > 64 {
		samples = samples[:64]
	}
	if err := o.table.Verify(samples); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	log.Info().Int("samples", len(samples)).
		Str("arena_hash", fmt.Sprintf("%016x", o.table.ArenaHash())).
		Msg("product table self-verification passed")
	return nil
}

// segmentID returns a stable correlation identifier for a p-window, so a
// progress log line can be matched back to the same window across
// retries without re-printing the full p-range every time.
func segmentID(pStart, pEnd uint64) uint64 {
	var buf [16]byte
	binaryPutUint64Pair(&buf, pStart, pEnd)
	return farm.Hash64(buf[:])
}

func binaryPutUint64Pair(buf *[16]byte, a, b uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(a >> (8 * i))
		buf[8+i] = byte(b >> (8 * i))
	}
}

// Run walks p-windows from the resumed (or fresh) progress cursor to
// p_max, draining and reporting factors and checkpointing at the
// configured cadence, and returns the final WorkStatus.
func (o *Orchestrator) Run(ctx context.Context) (sievetypes.WorkStatus, error) {
	job := checkpoint.JobParams{PMin: o.cfg.PMin, PMax: o.cfg.PMax, NMin: o.cfg.NMin, NMax: o.cfg.NMax, Mode: o.cfg.Mode}
	status, resumed, writeANext := o.store.Resume(job)

	resultsFile, err := openResultsLog(o.cfg.ResultsPath, resumed)
	if err != nil {
		return status, fmt.Errorf("orchestrator: opening results log: %w", err)
	}
	defer resultsFile.Close()

	counters := evaluator.Counters{}
	lastCheckpoint := time.Now()

	log.Info().Str("run_id", o.runID).Str("mode", o.cfg.Mode.String()).
		Uint64("p", status.P).Uint64("p_max", status.PMax).Bool("resumed", resumed).
		Msg("starting sieve run")

	for status.P < status.PMax {
		select {
		case <-ctx.Done():
			return status, o.checkpointNow(&status, writeANext, &lastCheckpoint)
		default:
		}

		windowEnd := status.P + o.search.Range
		if windowEnd > status.PMax {
			windowEnd = status.PMax
		}

		segID := segmentID(status.P, windowEnd)

		if err := o.processWindow(ctx, resultsFile, &status, windowEnd, &counters); err != nil {
			return status, err
		}

		status.P = windowEnd
		status.LastTrickle = uint64(time.Now().Unix())

		log.Info().Str("run_id", o.runID).Str("segment_id", fmt.Sprintf("%016x", segID)).
			Uint64("p", status.P).Uint64("prime_count", status.PrimeCount).
			Uint64("factor_count", status.FactorCount).Msg("progress")

		if counters.OverflowFlag || counters.InvalidFlag {
			return status, fmt.Errorf("orchestrator: fatal evaluator flag set (overflow=%v invalid=%v)", counters.OverflowFlag, counters.InvalidFlag)
		}

		if time.Since(lastCheckpoint) >= o.cfg.CheckpointInterval {
			if err := o.checkpointNow(&status, writeANext, &lastCheckpoint); err != nil {
				log.Warn().Err(err).Msg("checkpoint write failed, continuing")
			}
			writeANext = !writeANext
		}
	}

	if err := o.checkpointNow(&status, writeANext, &lastCheckpoint); err != nil {
		log.Warn().Err(err).Msg("final checkpoint write failed")
	}

	if err := writeFinalLine(resultsFile, status.FactorCount, status.Checksum); err != nil {
		return status, fmt.Errorf("orchestrator: writing final checksum line: %w", err)
	}

	return status, nil
}

func (o *Orchestrator) checkpointNow(status *sievetypes.WorkStatus, writeANext bool, last *time.Time) error {
	*last = time.Now()
	status.Seal()
	return o.store.Write(*status, writeANext)
}

// processWindow runs one p-window through the generator, setup, iterate,
// check and report stages.
func (o *Orchestrator) processWindow(ctx context.Context, resultsFile *os.File, status *sievetypes.WorkStatus, windowEnd uint64, counters *evaluator.Counters) error {
	candidates := wheel.Generate(status.P, windowEnd)
	if len(candidates) == 0 {
		return nil
	}
	if uint32(len(candidates)) > o.search.PSize {
		return fmt.Errorf("orchestrator: candidate array overflow: %d candidates exceeds psize %d", len(candidates), o.search.PSize)
	}

	batch := evaluator.NewBatch(candidates)

	for s := 0; s < len(o.table.Entries); s += int(o.search.SStep) {
		e := s + int(o.search.SStep)
		if e > len(o.table.Entries) {
			e = len(o.table.Entries)
		}
		o.eval.Setup(batch, s, e)
	}

	ring := evaluator.NewRing(int(o.search.NumResults))
	for n := o.cfg.NMin; n < o.cfg.NMax; n += o.search.NStep {
		end := n + o.search.NStep
		if end > o.cfg.NMax {
			end = o.cfg.NMax
		}
		steps := o.eval.Steps(n, end)
		if err := o.eval.Iterate(ctx, batch, steps, ring); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}

	o.eval.Check(batch, counters)
	status.PrimeCount += uint64(len(candidates))

	factors := ring.Drain()
	if err := reportpipeline.Report(ctx, resultsFile, o.cfg.Mode, factors, o.verifier, o.cfg.Workers, status); err != nil {
		return err
	}

	return nil
}
