package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/levmv/photoarc/dedupe"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <root>",
		Short: "Rescan an archive tree and replace the index with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			n, err := store.Rebuild(cmd.Context(), args[0], newProgress("Indexing"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s files into %s in %s\n",
				humanize.Comma(int64(n)), store.Path(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count duplicate hashes in the index without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Records(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), dedupe.Statistics(records))
			return nil
		},
	}
}

func printReport(w io.Writer, r dedupe.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Records:\t%s\n", humanize.Comma(int64(r.Records)))
	fmt.Fprintf(tw, "Duplicate content hashes:\t%s\n", humanize.Comma(int64(r.DuplicateHashes)))
	fmt.Fprintf(tw, "Duplicate perceptual hashes:\t%s\n", humanize.Comma(int64(r.DuplicatePerceptual)))
	tw.Flush()
}
