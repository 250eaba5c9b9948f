package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/levmv/photoarc/dedupe"
	"github.com/levmv/photoarc/hasher"
	"github.com/levmv/photoarc/index"
	"github.com/levmv/photoarc/rename"
)

// --- Rename ---

func newRenameCmd() *cobra.Command {
	var (
		opts       rename.Options
		extCase    string
		cameraOnly bool
	)
	cmd := &cobra.Command{
		Use:   "rename <source>",
		Short: "Give photos timestamp names and merge them into an archive directory",
		Long: `Renames every still image directly inside <source> to YYYY-MM-DD_HHMMSS{suffix}.{ext}
using DateTimeOriginal, then the IFD0 date, then the file creation time. The
original file name is kept in ImageDescription.

With --merge-into, renamed files move into that directory. A byte-identical or
pixel-identical file already there makes the source a duplicate, which is
removed; a different file under the same name is left for review.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ec, err := rename.ParseExtCase(extCase)
			if err != nil {
				return err
			}
			opts.ExtCase = ec
			opts.CameraOnly = cameraOnly

			meta := newMetadataService()
			defer meta.Close()

			p := rename.New(meta, logger, opts)
			stats, err := p.Run(cmd.Context(), args[0], newProgress("Renaming"))
			stats.PrintSummary(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Suffix, "suffix", "", "Suffix inserted after the timestamp")
	cmd.Flags().StringVar(&opts.MergeDir, "merge-into", "", "Archive directory receiving renamed files")
	cmd.Flags().StringVar(&opts.ReviewDir, "review-dir", "", "Directory for files that need manual review")
	cmd.Flags().StringVar(&extCase, "ext-case", "keep", "Extension case: keep, lower, upper")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Dry run (no disk changes)")
	cmd.Flags().BoolVar(&cameraOnly, "camera-only", true, "Route images without camera make/model to review")
	return cmd
}

// --- Check ---

// sourceMatch is a source file already present in the archive.
type sourceMatch struct {
	Path     string
	Archived string
	// Similar is set for perceptual matches with different bytes.
	Similar bool
}

// checkSource hashes every non-hidden file under root and looks it up in
// the reverse maps of records. Nothing is modified.
func checkSource(ctx context.Context, records []index.Record, root string, log *slog.Logger) ([]sourceMatch, int, error) {
	content, _ := dedupe.ContentMap(records)
	perceptual, _ := dedupe.PerceptualMap(records)
	paths := make(map[string]string, len(records))
	for _, rec := range records {
		paths[rec.ID] = rec.Path
	}

	var matches []sourceMatch
	scanned := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("skipping path", "path", path, "err", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		scanned++

		h, err := hasher.ContentHash(path)
		if err != nil {
			log.Warn("content hash failed", "path", path, "err", err)
			return nil
		}
		if id, ok := content[h]; ok {
			matches = append(matches, sourceMatch{Path: path, Archived: paths[id]})
			log.Info("already archived", "tag", "DUP", "path", path, "archived", paths[id])
			return nil
		}

		if !hasher.IsStillImage(filepath.Ext(path)) {
			return nil
		}
		set, err := hasher.PerceptualHash(path)
		if err != nil {
			log.Debug("perceptual hash failed", "path", path, "err", err)
			return nil
		}
		// The unrotated fingerprint against every orientation in the archive.
		if id, ok := perceptual[dedupe.PerceptualKey(set[hasher.Rot0])]; ok {
			matches = append(matches, sourceMatch{Path: path, Archived: paths[id], Similar: true})
			log.Info("similar to archived", "tag", "SKIP", "path", path, "archived", paths[id])
		}
		return nil
	})
	return matches, scanned, err
}

func printMatches(w io.Writer, matches []sourceMatch, scanned int) {
	exact := 0
	for _, m := range matches {
		kind := "same"
		if m.Similar {
			kind = "similar"
		} else {
			exact++
		}
		fmt.Fprintf(w, "%-7s %s -> %s\n", kind, m.Path, m.Archived)
	}
	fmt.Fprintf(w, "Scanned: %d, already archived: %d, similar: %d\n", scanned, exact, len(matches)-exact)
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <source>",
		Short: "Report which files of a source directory are already in the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Records(cmd.Context())
			if err != nil {
				return err
			}
			matches, scanned, err := checkSource(cmd.Context(), records, args[0], logger)
			printMatches(cmd.OutOrStdout(), matches, scanned)
			return err
		},
	}
}
