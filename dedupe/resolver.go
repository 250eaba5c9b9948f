package dedupe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/levmv/photoarc/index"
)

// Store is the part of the index the resolver needs.
type Store interface {
	Records(ctx context.Context) ([]index.Record, error)
	Delete(ctx context.Context, id string) error
}

// Result summarises a resolver pass.
type Result struct {
	Collisions int
	Deleted    int
	Kept       int
	Failed     int
}

// Resolver walks the index once and asks Policy about every repeated
// content hash. First found wins unless the policy says otherwise, and no
// file is removed without an explicit decision.
type Resolver struct {
	Store  Store
	Policy Policy
	Log    *slog.Logger
	// Remove deletes a file from disk; defaults to os.Remove.
	Remove func(path string) error
}

// Run performs the pass. Deleting a side removes both its file and its record.
func (r *Resolver) Run(ctx context.Context) (Result, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	remove := r.Remove
	if remove == nil {
		remove = os.Remove
	}

	var res Result
	records, err := r.Store.Records(ctx)
	if err != nil {
		return res, err
	}

	seen := make(map[string]index.Record, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !rec.HasHash() {
			continue
		}
		first, ok := seen[rec.Hash]
		if !ok {
			seen[rec.Hash] = rec
			continue
		}

		res.Collisions++
		decision := r.Policy.Resolve(first, rec)
		var victim index.Record
		switch decision {
		case DeleteFirst:
			victim = first
		case DeleteSecond:
			victim = rec
		default:
			res.Kept++
			log.Info("duplicate kept", "first", first.Path, "second", rec.Path)
			continue
		}

		if err := r.delete(ctx, remove, victim); err != nil {
			res.Failed++
			log.Error("could not delete duplicate", "path", victim.Path, "err", err)
			continue
		}
		res.Deleted++
		log.Info("duplicate deleted", "tag", "TRASH", "path", victim.Path, "decision", decision.String())
		if decision == DeleteFirst {
			// The survivor answers for this hash from now on.
			seen[rec.Hash] = rec
		}
	}
	return res, nil
}

func (r *Resolver) delete(ctx context.Context, remove func(string) error, rec index.Record) error {
	if err := remove(rec.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rec.Path, err)
	}
	if err := r.Store.Delete(ctx, rec.ID); err != nil {
		return err
	}
	return nil
}
