package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StampLayout is the chronologically sortable timestamp of canonical names.
const StampLayout = "2006-01-02_150405"

// ExtCase controls the case of the extension in canonical names.
type ExtCase int

const (
	ExtKeep ExtCase = iota
	ExtLower
	ExtUpper
)

// ParseExtCase accepts keep, lower or upper.
func ParseExtCase(s string) (ExtCase, error) {
	switch strings.ToLower(s) {
	case "", "keep":
		return ExtKeep, nil
	case "lower":
		return ExtLower, nil
	case "upper":
		return ExtUpper, nil
	default:
		return ExtKeep, fmt.Errorf("unknown extension case %q", s)
	}
}

func (c ExtCase) apply(ext string) string {
	switch c {
	case ExtLower:
		return strings.ToLower(ext)
	case ExtUpper:
		return strings.ToUpper(ext)
	default:
		return ext
	}
}

// CanonicalName builds {timestamp}{suffix}{ext}.
func CanonicalName(t time.Time, suffix, ext string) string {
	return t.Format(StampLayout) + suffix + ext
}

// counterName builds {timestamp}_{n}{suffix}{ext}.
func counterName(t time.Time, n int, suffix, ext string) string {
	return fmt.Sprintf("%s_%d%s%s", t.Format(StampLayout), n, suffix, ext)
}

// freeName returns the first canonical name in dir that is not taken by
// another file. The file at self never blocks its own name, which keeps
// repeated runs from renaming an already canonical file.
func freeName(dir string, t time.Time, suffix, ext, self string, taken func(string) bool) string {
	candidate := filepath.Join(dir, CanonicalName(t, suffix, ext))
	for n := 1; ; n++ {
		if isSelf(candidate, self) || !taken(candidate) {
			return candidate
		}
		candidate = filepath.Join(dir, counterName(t, n, suffix, ext))
	}
}

// isCanonical reports whether name already reads
// {timestamp}[_n]{suffix}{ext}.
func isCanonical(name, suffix, ext string) bool {
	stem, ok := strings.CutSuffix(name, suffix+ext)
	if !ok || len(stem) < len(StampLayout) {
		return false
	}
	if _, err := time.ParseInLocation(StampLayout, stem[:len(StampLayout)], time.Local); err != nil {
		return false
	}
	rest := stem[len(StampLayout):]
	if rest == "" {
		return true
	}
	n, ok := strings.CutPrefix(rest, "_")
	if !ok || n == "" {
		return false
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isSelf(candidate, self string) bool {
	if self == "" {
		return false
	}
	if filepath.Clean(candidate) == filepath.Clean(self) {
		return true
	}
	// Case-insensitive filesystems resolve a re-cased name to the same file.
	a, errA := os.Stat(candidate)
	b, errB := os.Stat(self)
	return errA == nil && errB == nil && os.SameFile(a, b)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// UniquePath appends _n before the extension of path until nothing is there.
func UniquePath(path string) string {
	if !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}
