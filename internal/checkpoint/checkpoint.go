// Package checkpoint implements spec.md 4.8's dual alternating checkpoint
// scheme: two files, A and B, alternately rewritten in full so that at
// most one is ever mid-write, with a self-checksum (WorkStatus.StateSum)
// standing in for fsync-rename atomicity.
package checkpoint

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shamaton/msgpack/v2"

	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// JobParams are the header fields a resumed checkpoint must match before
// its state_sum is even considered: a checkpoint from a different job is
// treated exactly like a missing one.
type JobParams struct {
	PMin, PMax uint64
	NMin, NMax uint32
	Mode       sievetypes.Mode
}

func (jp JobParams) matches(w sievetypes.WorkStatus) bool {
	return w.PMin == jp.PMin && w.PMax == jp.PMax &&
		w.NMin == jp.NMin && w.NMax == jp.NMax && w.Mode == jp.Mode
}

// Store owns the pair of checkpoint file paths for a run.
type Store struct {
	PathA, PathB string
}

// NewStore builds a Store over the given checkpoint file paths.
func NewStore(pathA, pathB string) *Store {
	return &Store{PathA: pathA, PathB: pathB}
}

// readGood loads and validates one checkpoint file. A file is "good" iff
// it parses, its header matches job, and its state_sum is intact.
func readGood(path string, job JobParams) (sievetypes.WorkStatus, bool) {
	f, err := os.Open(path)
	if err != nil {
		return sievetypes.WorkStatus{}, false
	}
	defer f.Close()

	var w sievetypes.WorkStatus
	if err := msgpack.UnmarshalRead(f, &w); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("checkpoint file is unreadable, treating as absent")
		return sievetypes.WorkStatus{}, false
	}
	if !w.Valid() {
		log.Warn().Str("path", path).Msg("checkpoint state_sum mismatch, treating as absent")
		return sievetypes.WorkStatus{}, false
	}
	if !job.matches(w) {
		log.Warn().Str("path", path).Msg("checkpoint header does not match this job, treating as absent")
		return sievetypes.WorkStatus{}, false
	}
	return w, true
}

// Resume loads the freshest good checkpoint for job, or a fresh
// WorkStatus at p_min if neither file is usable. It also returns the
// toggle for which file the next write should target: whichever one we
// did not just resume from, so a fresh run always writes A first.
func (s *Store) Resume(job JobParams) (w sievetypes.WorkStatus, resumed bool, writeStateANext bool) {
	a, okA := readGood(s.PathA, job)
	b, okB := readGood(s.PathB, job)

	switch {
	case okA && okB:
		if a.P >= b.P {
			log.Info().Uint64("p", a.P).Msg("resuming from checkpoint A")
			return a, true, false
		}
		log.Info().Uint64("p", b.P).Msg("resuming from checkpoint B")
		return b, true, true
	case okA:
		log.Info().Uint64("p", a.P).Msg("resuming from checkpoint A")
		return a, true, false
	case okB:
		log.Info().Uint64("p", b.P).Msg("resuming from checkpoint B")
		return b, true, true
	default:
		fresh := sievetypes.WorkStatus{
			PMin: job.PMin, PMax: job.PMax, P: job.PMin,
			NMin: job.NMin, NMax: job.NMax, Mode: job.Mode,
		}
		fresh.Seal()
		log.Info().Msg("no usable checkpoint, starting from scratch")
		return fresh, false, true
	}
}

// Write persists w to whichever file writeStateANext selects. A failed
// write is logged and its error returned; Write does not stop the run
// itself: per spec.md 7, checkpoint I/O failures do not interrupt the
// run, the next checkpoint will try again.
func (s *Store) Write(w sievetypes.WorkStatus, writeStateANext bool) error {
	w.Seal()
	path := s.PathB
	if writeStateANext {
		path = s.PathA
	}

	f, err := os.Create(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot open checkpoint file, continuing")
		return err
	}
	defer f.Close()

	if err := msgpack.MarshalWrite(f, &w); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot write checkpoint, continuing")
		return err
	}
	return nil
}
