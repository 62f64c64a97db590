// Package producttable builds the compressed, 2^64-bounded product tables
// that seed the modular residue pipeline's setup stage: the residue of
// base_{n_min-1} mod p for every candidate p, computed once and reused
// across the whole p-window.
package producttable

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	farm "github.com/dgryski/go-farm"

	"github.com/bryanlittle/factorsieve/internal/montgomery"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
)

// Entry is one compressed table term: the product of a run of consecutive
// small primes (or composites) that fits in 64 bits. Power is 0 for a
// plain product entry (primorial, compositorial); for factorial mode it is
// the shared Legendre exponent every prime in the run must be raised to,
// and LeadingBit is the precomputed square-and-multiply starting mask for
// that exponent.
type Entry struct {
	Product    uint64
	Power      uint32
	LeadingBit uint32
}

// Table holds the immutable product table for one job's mode and n-range,
// plus whatever additional small-number lists the iterate stage needs to
// tell prime k from composite k.
type Table struct {
	Mode       sievetypes.Mode
	NMin, NMax uint32
	Entries    []Entry

	// TailPrimes holds, for primorial mode only, the primes in
	// [NMin, NMax) that iterate multiplies in one at a time.
	TailPrimes []uint32

	sieve *boolSieve // primality lookup over [0, NMax), used by iterate
}

// Build constructs the product table for the given mode and n-range.
// n_min must be at least 101, per spec.md's precondition that the CPU
// verifier's 128-bit seed constants remain valid.
func Build(mode sievetypes.Mode, nMin, nMax uint32) (*Table, error) {
	if nMin < 101 {
		return nil, fmt.Errorf("producttable: n_min must be >= 101, got %d", nMin)
	}
	if nMax <= nMin {
		return nil, fmt.Errorf("producttable: n_max (%d) must exceed n_min (%d)", nMax, nMin)
	}

	sieve := newBoolSieve(nMax)
	m := nMin - 1

	t := &Table{Mode: mode, NMin: nMin, NMax: nMax, sieve: sieve}

	switch mode {
	case sievetypes.Factorial:
		primes := sieve.Primes(2, nMin)
		powers := make([]uint32, len(primes))
		for i, p := range primes {
			powers[i] = legendrePower(p, m)
		}
		t.Entries = compressWithPower(primes, powers)

	case sievetypes.Primorial:
		primes := sieve.Primes(2, nMin)
		t.Entries = compressFlat(primes)
		t.TailPrimes = sieve.Primes(nMin, nMax)

	case sievetypes.Compositorial:
		composites := sieve.Composites(2, nMin)
		t.Entries = compressFlat(composites)

	default:
		return nil, fmt.Errorf("producttable: unknown mode %v", mode)
	}

	return t, nil
}

// IsPrime reports whether k is prime, for k in [0, NMax). Compositorial
// mode's iterate stage uses this to skip k when it is prime; primorial
// mode instead walks TailPrimes directly.
func (t *Table) IsPrime(k uint32) bool {
	return t.sieve.IsPrime(k)
}

// legendrePower returns sum_{k>=1} floor(m / prime^k), the exponent of
// prime in m!.
func legendrePower(prime uint32, m uint32) uint32 {
	var total uint64
	pk := uint64(prime)
	mm := uint64(m)
	for pk <= mm {
		total += mm / pk
		if pk > mm/uint64(prime) {
			break
		}
		pk *= uint64(prime)
	}
	return uint32(total)
}

// leadingBitFor returns the square-and-multiply starting mask for
// exponent power: the bit position just below power's highest set bit
// (whether or not that bit is itself set), or 0
// when power <= 1 (no further squaring needed beyond the implicit first
// multiply).
func leadingBitFor(power uint32) uint32 {
	if power <= 1 {
		return 0
	}
	return uint32(1) << (31 - bits.LeadingZeros32(power) - 1)
}

// compressWithPower groups consecutive primes sharing the same Legendre
// exponent into single product entries, starting a new entry whenever the
// exponent changes or the running product would exceed 2^64-1.
func compressWithPower(primes []uint32, powers []uint32) []Entry {
	var entries []Entry
	i := 0
	for i < len(primes) {
		product := uint64(primes[i])
		power := powers[i]
		j := i + 1
		for j < len(primes) && powers[j] == power {
			candidate := uint64(primes[j])
			if product > ^uint64(0)/candidate {
				break
			}
			product *= candidate
			j++
		}
		entries = append(entries, Entry{Product: product, Power: power, LeadingBit: leadingBitFor(power)})
		i = j
	}
	return entries
}

// compressFlat greedily concatenates consecutive values into a single
// product entry until it would exceed 2^64-1, then starts a new entry.
func compressFlat(values []uint32) []Entry {
	var entries []Entry
	i := 0
	for i < len(values) {
		product := uint64(values[i])
		j := i + 1
		for j < len(values) {
			candidate := uint64(values[j])
			if product > ^uint64(0)/candidate {
				break
			}
			product *= candidate
			j++
		}
		entries = append(entries, Entry{Product: product})
		i = j
	}
	return entries
}

// ResidueViaTable computes base_{n_min-1} mod p from the compressed table
// using Montgomery arithmetic, exactly as the batch evaluator's setup
// stage does for every candidate p. It is exported so the orchestrator's
// table self-verification pass (spec.md 4.5) can compare it against
// ResidueDirect's independent, non-Montgomery recomputation.
func (t *Table) ResidueViaTable(p uint64) uint64 {
	c := montgomery.NewConstants(p)
	r := c.One
	for _, e := range t.Entries {
		prodModP := e.Product % p
		mProd := c.ToMontgomery(prodModP)
		if e.Power <= 1 {
			r = c.Mul(r, mProd)
			continue
		}
		powResult := c.PowMontgomery(mProd, uint64(e.Power), uint64(e.LeadingBit))
		r = c.Mul(r, powResult)
	}
	return c.FromMontgomery(r)
}

// ResidueDirect independently recomputes base_{n_min-1} mod p from the
// uncompressed term-by-term definition, using plain 128-bit modular
// multiplication rather than Montgomery form. Used only for the table
// self-verification pass; too slow to run per-candidate in the hot path.
func (t *Table) ResidueDirect(p uint64) uint64 {
	result := uint64(1) % p
	switch t.Mode {
	case sievetypes.Factorial:
		for k := uint32(2); k <= t.NMin-1; k++ {
			result = mulmod(result, uint64(k)%p, p)
		}
	case sievetypes.Primorial:
		for _, pr := range t.sieve.Primes(2, t.NMin) {
			result = mulmod(result, uint64(pr)%p, p)
		}
	case sievetypes.Compositorial:
		for _, c := range t.sieve.Composites(2, t.NMin) {
			result = mulmod(result, uint64(c)%p, p)
		}
	}
	return result
}

// mulmod computes a*b mod p for a, b < p using a 128-bit intermediate
// product, the textbook non-Montgomery modular multiplication used only
// by the independent table verifier above.
func mulmod(a, b, p uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, p)
	return rem
}

// ArenaHash returns a content hash of the compressed table arena, used to
// correlate a self-verification pass with the exact table it ran against
// in the progress log (the table itself is never re-sent anywhere, so
// this is a diagnostic identifier, not a lookup key).
func (t *Table) ArenaHash() uint64 {
	buf := make([]byte, 0, len(t.Entries)*16)
	var scratch [16]byte
	for _, e := range t.Entries {
		binary.LittleEndian.PutUint64(scratch[0:8], e.Product)
		binary.LittleEndian.PutUint32(scratch[8:12], e.Power)
		binary.LittleEndian.PutUint32(scratch[12:16], e.LeadingBit)
		buf = append(buf, scratch[:]...)
	}
	return farm.Hash64(buf)
}

// Verify runs the table self-verification pass described in spec.md 4.5
// for a batch of candidate primes: it compares the Montgomery-compressed
// computation against the independent direct recomputation and returns an
// error (the invalid_flag condition) on any mismatch.
func (t *Table) Verify(candidates []uint64) error {
	for _, p := range candidates {
		want := t.ResidueDirect(p)
		got := t.ResidueViaTable(p)
		if want != got {
			return fmt.Errorf("producttable: self-verification failed for p=%d: direct=%d table=%d", p, want, got)
		}
	}
	return nil
}
