// Package sievetypes holds the data model shared across the sieve core:
// the persisted work status, runtime tuning parameters, and the factor
// record emitted by the batch evaluator.
package sievetypes

import "fmt"

// Mode selects which of the three related number families the core
// searches: n!, n#, or n!/n#.
type Mode int

const (
	Factorial Mode = iota
	Primorial
	Compositorial
)

func (m Mode) String() string {
	switch m {
	case Factorial:
		return "factorial"
	case Primorial:
		return "primorial"
	case Compositorial:
		return "compositorial"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode, or an error if it names none
// of the three supported families.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "factorial":
		return Factorial, nil
	case "primorial":
		return Primorial, nil
	case "compositorial":
		return Compositorial, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// WorkStatus is the persisted run state: the job's p/n boundaries, the
// progress cursor, and the running checksum and counts. StateSum is a
// redundant checksum of every other field, recomputed on load to detect a
// truncated or corrupted checkpoint.
type WorkStatus struct {
	PMin, PMax  uint64
	P           uint64
	Checksum    uint64
	PrimeCount  uint64
	FactorCount uint64
	LastTrickle uint64
	NMin, NMax  uint32
	Mode        Mode
	StateSum    uint64
}

// RecomputeStateSum returns the sum of every field but StateSum itself, the
// value StateSum must equal for the checkpoint to be considered intact.
func (w WorkStatus) RecomputeStateSum() uint64 {
	return w.PMin + w.PMax + w.P + w.Checksum + w.PrimeCount + w.FactorCount +
		w.LastTrickle + uint64(w.NMin) + uint64(w.NMax)
}

// Seal fixes StateSum to the current field values, making the struct ready
// to persist.
func (w *WorkStatus) Seal() {
	w.StateSum = w.RecomputeStateSum()
}

// Valid reports whether StateSum matches the other fields.
func (w WorkStatus) Valid() bool {
	return w.StateSum == w.RecomputeStateSum()
}

// SearchData holds the runtime-only kernel-size tuning parameters; none of
// it is persisted across checkpoints.
type SearchData struct {
	Range           uint64 // p-window per batch
	PSize           uint32 // candidate array capacity
	SStep           uint32 // product-table setup chunk size
	NStep           uint32 // iterate n-range chunk size
	NumGroups       uint32
	NumResults      uint32 // factor-array capacity
	WriteStateANext bool   // dual-checkpoint toggle
}

// NewSearchData builds the default tuning parameters for a job. NumResults
// follows spec.md's rule: 30M when p_min < 2^32, else 1M, since the
// factor density of 64-bit candidates is far lower.
func NewSearchData(pMin uint64) SearchData {
	numResults := uint32(1_000_000)
	if pMin < (1 << 32) {
		numResults = 30_000_000
	}
	return SearchData{
		Range:      1 << 20,
		PSize:      1 << 16,
		SStep:      1 << 12,
		NStep:      1 << 16,
		NumGroups:  256,
		NumResults: numResults,
	}
}

// Factor is a single (p, n, c) hit emitted by the iterate stage: p divides
// base_n + c. N carries the sign of c in Nc's sign bit: Nc > 0 means c =
// +1, Nc < 0 means c = -1, and |Nc| = n.
type Factor struct {
	P  uint64
	Nc int32
}

// N returns the exponent the factor was found at.
func (f Factor) N() uint32 {
	if f.Nc < 0 {
		return uint32(-f.Nc)
	}
	return uint32(f.Nc)
}

// C returns the sign term (+1 or -1) the factor was found against.
func (f Factor) C() int32 {
	if f.Nc < 0 {
		return -1
	}
	return 1
}

// NewFactor builds a Factor record from p, n and c, encoding c into the
// sign bit of Nc.
func NewFactor(p uint64, n uint32, c int32) Factor {
	nc := int32(n)
	if c < 0 {
		nc = -nc
	}
	return Factor{P: p, Nc: nc}
}

// ChecksumTerm returns |nc| + sign(nc), the quantity folded into the
// running work checksum for this factor.
func (f Factor) ChecksumTerm() uint64 {
	return uint64(int64(f.N()) + int64(f.C()))
}
