package orchestrator

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// noFactorsLine is the literal line spec.md 6 requires immediately before
// the final checksum line when a run emits no factors at all.
const noFactorsLine = "no factors\n"

// openResultsLog opens the results log for appending. On a fresh run it
// creates an empty file. On a resumed run it supplements spec.md 6: it
// scans past any final-checksum trailer line (and the optional preceding
// "no factors" line) a prior, interrupted run may have already written,
// truncating them off so the resumed run appends valid entries instead
// of duplicating or burying the trailer. See cl_sieve.cpp's results-file
// reopen-for-reconciliation around its RESULTS_FILENAME handling.
func openResultsLog(path string, resumed bool) (*os.File, error) {
	if !resumed {
		return os.Create(path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	keepUpTo, err := trailerOffset(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(keepUpTo); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(keepUpTo, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// trailerOffset scans the results log line by line and returns the byte
// offset immediately before the last "no factors" / final-checksum line
// pair, so that offset becomes the new end-of-file for a resumed run. A
// log with no trailer returns its full length unchanged.
func trailerOffset(f *os.File) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(f)
	var offset int64
	trailerStart := int64(-1)
	prevWasNoFactors := false

	for scanner.Scan() {
		line := scanner.Text() + "\n"
		lineStart := offset
		offset += int64(len(line))

		if isFinalChecksumLine(line) {
			if !prevWasNoFactors {
				trailerStart = lineStart
			}
			// else: trailerStart already points at the "no factors" line
			// that preceded this checksum line, from the prior iteration.
			continue
		}
		prevWasNoFactors = line == noFactorsLine
		if prevWasNoFactors {
			trailerStart = lineStart
		} else {
			trailerStart = -1
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	if trailerStart >= 0 {
		return trailerStart, nil
	}
	return offset, nil
}

// isFinalChecksumLine reports whether line is exactly a 16 hex-digit
// checksum line, the shape spec.md 6 mandates for the trailer.
func isFinalChecksumLine(line string) bool {
	if len(line) != 17 || line[16] != '\n' {
		return false
	}
	for _, r := range line[:16] {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// writeFinalLine appends spec.md 6's end-of-run trailer: a literal
// "no factors" line when factorCount is zero, followed by the checksum
// rendered as 16 uppercase hex digits.
func writeFinalLine(f *os.File, factorCount, checksum uint64) error {
	if factorCount == 0 {
		if _, err := f.WriteString(noFactorsLine); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(f, "%016X\n", checksum)
	return err
}
