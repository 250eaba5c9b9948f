// Package dedupe finds records of the index that share an identity and
// resolves the collisions one pair at a time.
package dedupe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/levmv/photoarc/index"
)

// Decision is what to do with a colliding pair.
type Decision int

const (
	// Keep leaves both files in place.
	Keep Decision = iota
	// DeleteFirst removes the first-seen record and its file.
	DeleteFirst
	// DeleteSecond removes the repeat and its file.
	DeleteSecond
)

func (d Decision) String() string {
	switch d {
	case DeleteFirst:
		return "delete-first"
	case DeleteSecond:
		return "delete-second"
	default:
		return "keep"
	}
}

// Policy chooses the outcome for a pair whose content hashes coincide.
type Policy interface {
	Resolve(first, second index.Record) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(first, second index.Record) Decision

func (f PolicyFunc) Resolve(first, second index.Record) Decision { return f(first, second) }

// Prompt asks an operator on Out and reads the answer from In. Anything
// other than A or B means Keep.
type Prompt struct {
	In  *bufio.Reader
	Out io.Writer
}

// NewPrompt returns a Prompt bound to r and w.
func NewPrompt(r io.Reader, w io.Writer) *Prompt {
	return &Prompt{In: bufio.NewReader(r), Out: w}
}

func (p *Prompt) Resolve(first, second index.Record) Decision {
	fmt.Fprintln(p.Out, "--")
	fmt.Fprintf(p.Out, "A: %s\n", first.Path)
	fmt.Fprintf(p.Out, "B: %s\n", second.Path)
	fmt.Fprintln(p.Out, "--")
	fmt.Fprintln(p.Out, "Enter A/B to delete or any other key to ignore")
	fmt.Fprint(p.Out, "> ")

	line, _ := p.In.ReadString('\n')
	switch strings.TrimSpace(line) {
	case "A", "a":
		return DeleteFirst
	case "B", "b":
		return DeleteSecond
	default:
		fmt.Fprintln(p.Out, "Ignoring")
		return Keep
	}
}

// Keep strategies for unattended runs: the named file survives, the other
// side of the pair is deleted.
const (
	KeepOldest       = "oldest"
	KeepNewest       = "newest"
	KeepShortestPath = "shortest-path"
)

// KeepPolicy returns an automated policy for one of the keep strategies.
// When either side cannot be stat'ed the pair is kept untouched.
func KeepPolicy(strategy string) (Policy, error) {
	switch strategy {
	case KeepOldest, KeepNewest:
		newest := strategy == KeepNewest
		return PolicyFunc(func(first, second index.Record) Decision {
			a, errA := modTime(first.Path)
			b, errB := modTime(second.Path)
			if errA != nil || errB != nil {
				return Keep
			}
			// Ties keep the first seen.
			secondWins := b.Before(a)
			if newest {
				secondWins = b.After(a)
			}
			if secondWins {
				return DeleteFirst
			}
			return DeleteSecond
		}), nil
	case KeepShortestPath:
		return PolicyFunc(func(first, second index.Record) Decision {
			if len(second.Path) < len(first.Path) ||
				(len(second.Path) == len(first.Path) && second.Path < first.Path) {
				return DeleteFirst
			}
			return DeleteSecond
		}), nil
	default:
		return nil, fmt.Errorf("unknown keep strategy %q", strategy)
	}
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
