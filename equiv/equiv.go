// Package equiv decides whether two files hold the same photo, running the
// cheap exact check before the expensive pixel comparison.
package equiv

import (
	"fmt"
	"log/slog"

	"github.com/levmv/photoarc/hasher"
	"github.com/levmv/photoarc/similarity"
)

// Verdict is the outcome of Check.
type Verdict int

const (
	// Different means neither check matched.
	Different Verdict = iota
	// SameContent means the content hashes are equal.
	SameContent
	// SamePixels means the bytes differ but the decoded pixels are identical.
	SamePixels
)

func (v Verdict) String() string {
	switch v {
	case SameContent:
		return "same-content"
	case SamePixels:
		return "same-pixels"
	default:
		return "different"
	}
}

// Duplicate reports whether the verdict means one side can be dropped.
func (v Verdict) Duplicate() bool {
	return v == SameContent || v == SamePixels
}

// Checker runs the equivalence checks. The zero value is usable.
type Checker struct {
	Log *slog.Logger
	// HashFile and CompareFiles default to the hasher and similarity packages.
	HashFile     func(path string) (string, error)
	CompareFiles func(a, b string) (float64, error)
}

// Check compares the files at a and b. A content hash failure is an error,
// because the exact check must never be skipped; a decode failure during the
// pixel comparison only yields Different.
func (c *Checker) Check(a, b string) (Verdict, error) {
	hashFile := c.HashFile
	if hashFile == nil {
		hashFile = hasher.ContentHash
	}
	compare := c.CompareFiles
	if compare == nil {
		compare = similarity.CompareFiles
	}
	log := c.Log
	if log == nil {
		log = slog.Default()
	}

	ha, err := hashFile(a)
	if err != nil {
		return Different, fmt.Errorf("equivalence: %w", err)
	}
	hb, err := hashFile(b)
	if err != nil {
		return Different, fmt.Errorf("equivalence: %w", err)
	}
	if ha == hb {
		return SameContent, nil
	}

	score, err := compare(a, b)
	if err != nil {
		log.Info("structural comparison unavailable", "a", a, "b", b, "err", err)
		return Different, nil
	}
	if score == similarity.Identical {
		return SamePixels, nil
	}
	log.Debug("structural comparison", "a", a, "b", b, "score", score)
	return Different, nil
}

// Check runs a zero-value Checker.
func Check(a, b string) (Verdict, error) {
	var c Checker
	return c.Check(a, b)
}
