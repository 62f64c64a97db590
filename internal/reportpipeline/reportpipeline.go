// Package reportpipeline implements spec.md 4.7: sort emitted factors,
// verify them on the CPU, discard the ones that turn out to be 2-PRPs
// rather than true primes, and fold the survivors into the results log
// and the running work checksum.
package reportpipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/bryanlittle/factorsieve/internal/millerrabin"
	"github.com/bryanlittle/factorsieve/internal/sievetypes"
	"github.com/bryanlittle/factorsieve/internal/verify"
)

// sortFactors orders factors ascending by p, breaking ties by ascending
// |nc|, the order spec.md 4.7 step 1 requires before verification and
// before duplicate-p primality caching.
func sortFactors(factors []sievetypes.Factor) {
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].P != factors[j].P {
			return factors[i].P < factors[j].P
		}
		return factors[i].N() < factors[j].N()
	})
}

// FormatLine renders one factor as a results-log line in the exact form
// spec.md 6 requires for mode.
func FormatLine(mode sievetypes.Mode, f sievetypes.Factor) string {
	switch mode {
	case sievetypes.Factorial:
		return fmt.Sprintf("%d | %d!%+d\n", f.P, f.N(), f.C())
	case sievetypes.Primorial:
		return fmt.Sprintf("%d | %d#%+d\n", f.P, f.N(), f.C())
	case sievetypes.Compositorial:
		return fmt.Sprintf("%d | %d!/#%+d\n", f.P, f.N(), f.C())
	default:
		return fmt.Sprintf("%d | %d?%+d\n", f.P, f.N(), f.C())
	}
}

// Report runs the full pipeline over one drained batch of factors: sort,
// CPU-verify (fatal on failure), then walk the sorted list running the
// primality filter (reusing the cached verdict for a consecutive
// duplicate p), writing surviving lines to w and folding their checksum
// term into status.
func Report(ctx context.Context, w io.Writer, mode sievetypes.Mode, factors []sievetypes.Factor, verifier *verify.Verifier, workers int, status *sievetypes.WorkStatus) error {
	if len(factors) == 0 {
		return nil
	}

	sortFactors(factors)

	if err := verifier.VerifyBatch(ctx, workers, factors); err != nil {
		return fmt.Errorf("reportpipeline: %w", err)
	}

	var lastP uint64
	var lastWasPrime bool
	haveLast := false

	for _, f := range factors {
		var isPrime bool
		if haveLast && f.P == lastP {
			isPrime = lastWasPrime
		} else {
			isPrime = millerrabin.IsPrime(f.P)
			lastP = f.P
			lastWasPrime = isPrime
			haveLast = true
		}

		if !isPrime {
			log.Warn().Uint64("p", f.P).Msg("discarded 2-PRP factor, not prime")
			continue
		}

		if _, err := io.WriteString(w, FormatLine(mode, f)); err != nil {
			return fmt.Errorf("reportpipeline: writing results log: %w", err)
		}

		status.Checksum += f.ChecksumTerm()
		status.FactorCount++
	}

	return nil
}
