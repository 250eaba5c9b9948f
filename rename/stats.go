package rename

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats counts the outcomes of a run.
type Stats struct {
	Scanned    int
	Renamed    int
	Unchanged  int
	Merged     int // moved into the merge target
	Duplicates int // removed because the target already had them
	Skipped    int // kept next to a different file of the same name
	Review     int // routed to manual review
	Videos     int
	Errors     int
	BytesMoved int64
	StartTime  time.Time

	// ReviewPaths lists the files a person should look at.
	ReviewPaths []string
}

// NewStats starts the clock.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

func (s *Stats) record(o Outcome) {
	switch o {
	case Renamed:
		s.Renamed++
	case Unchanged:
		s.Unchanged++
	case Merged:
		s.Merged++
	case Duplicate:
		s.Duplicates++
	case Conflict:
		s.Skipped++
	case Review:
		s.Review++
	case Video:
		s.Videos++
	}
}

// Processed is every file that went through the state machine.
func (s *Stats) Processed() int {
	return s.Renamed + s.Unchanged + s.Merged + s.Duplicates + s.Skipped
}

// PrintSummary outputs the final table.
func (s *Stats) PrintSummary(w io.Writer) {
	duration := time.Since(s.StartTime)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(tw, "Total Scanned:\t%d\n", s.Scanned)
	fmt.Fprintf(tw, "Processed:\t%d\n", s.Processed())
	if s.Renamed > 0 {
		fmt.Fprintf(tw, "Renamed:\t%d\n", s.Renamed)
	}
	if s.Merged > 0 {
		fmt.Fprintf(tw, "Merged:\t%d\n", s.Merged)
		fmt.Fprintf(tw, "Data Volume:\t%s\n", humanize.Bytes(uint64(s.BytesMoved)))
	}
	if s.Duplicates > 0 {
		fmt.Fprintf(tw, "Duplicates Removed:\t%d\n", s.Duplicates)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped:\t%d\n", s.Skipped)
	}
	if s.Review > 0 {
		fmt.Fprintf(tw, "Manual Review:\t%d\n", s.Review)
	}
	if s.Videos > 0 {
		fmt.Fprintf(tw, "Videos:\t%d\n", s.Videos)
	}
	if s.Errors > 0 {
		fmt.Fprintf(tw, "Errors:\t%d\n", s.Errors)
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", duration.Round(time.Millisecond))
	tw.Flush()

	for _, p := range s.ReviewPaths {
		fmt.Fprintf(w, "review: %s\n", p)
	}
	fmt.Fprintln(w, "----------------------------------------")
}
