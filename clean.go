package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/levmv/photoarc/dedupe"
	"github.com/levmv/photoarc/hasher"
	"github.com/levmv/photoarc/index"
	"github.com/levmv/photoarc/rename"
)

// --- Dedupe ---

func newDedupeCmd() *cobra.Command {
	var keep string
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Resolve files of the index that share a content hash",
		Long: `Walks the index once. For every file whose content hash was already seen,
the keep policy decides which copy goes. With --keep prompt (the default) both
paths are shown and A or B deletes that side; any other answer keeps both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var policy dedupe.Policy
			if keep == "prompt" {
				policy = dedupe.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
			} else {
				p, err := dedupe.KeepPolicy(keep)
				if err != nil {
					return err
				}
				policy = p
			}

			store, err := openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			r := &dedupe.Resolver{Store: store, Policy: policy, Log: logger}
			res, err := r.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Collisions: %d, deleted: %d, kept: %d, failed: %d\n",
				res.Collisions, res.Deleted, res.Kept, res.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&keep, "keep", "prompt", "Keep strategy: prompt, oldest, newest, shortest-path")
	return cmd
}

// --- Trash ---

type trashStore interface {
	Records(ctx context.Context) ([]index.Record, error)
	Delete(ctx context.Context, id string) error
}

// trasher moves indexed images that did not come from a camera out of the
// archive and drops their records.
type trasher struct {
	store    trashStore
	isCamera func(path string) bool
	dir      string
	dryRun   bool
	log      *slog.Logger
}

type trashResult struct {
	Checked int
	Trashed int
	Failed  int
}

func (t *trasher) run(ctx context.Context, progress index.Progress) (trashResult, error) {
	var res trashResult
	records, err := t.store.Records(ctx)
	if err != nil {
		return res, err
	}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if progress != nil {
			progress(i+1, len(records))
		}
		if !isImageRecord(rec) {
			continue
		}
		res.Checked++
		if t.isCamera(rec.Path) {
			continue
		}

		dest := rename.UniquePath(filepath.Join(t.dir, rec.Filename))
		if t.dryRun {
			t.log.Info("would trash", "tag", "DRY", "path", rec.Path, "to", dest)
			res.Trashed++
			continue
		}
		if err := rename.MoveFile(rec.Path, dest); err != nil {
			res.Failed++
			t.log.Error("could not trash", "path", rec.Path, "err", err)
			continue
		}
		if err := t.store.Delete(ctx, rec.ID); err != nil {
			return res, err
		}
		res.Trashed++
		t.log.Info("not camera-sourced", "tag", "TRASH", "path", rec.Path, "to", dest)
	}
	return res, nil
}

// isImageRecord includes HEIC, which the classifier reads through exiftool.
func isImageRecord(rec index.Record) bool {
	return hasher.IsStillImage(rec.Ext) || rec.Ext == ".HEIC" || rec.Ext == ".HEIF"
}

func newTrashCmd() *cobra.Command {
	var (
		dir    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Move indexed images without camera make/model into a trash directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				return fmt.Errorf("--to is required")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			store, err := openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			meta := newMetadataService()
			defer meta.Close()

			t := &trasher{store: store, isCamera: meta.IsCamera, dir: dir, dryRun: dryRun, log: logger}
			res, err := t.run(cmd.Context(), newProgress("Classifying"))
			fmt.Fprintf(cmd.OutOrStdout(), "Checked: %d, trashed: %d, failed: %d\n", res.Checked, res.Trashed, res.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "to", "", "Trash directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Dry run (no disk changes)")
	return cmd
}
