// Package rename gives photos canonical, chronologically sortable names and
// reconciles them against an archive directory.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/levmv/photoarc/equiv"
	"github.com/levmv/photoarc/hasher"
	"github.com/levmv/photoarc/metadata"
)

// ErrMetadataWrite aborts a file whose renamed copy could not receive its
// metadata, since it would silently lose its provenance.
var ErrMetadataWrite = errors.New("metadata write failed")

// ErrMergeIntoSource rejects a merge target that is the directory being
// renamed; every file would be compared with itself.
var ErrMergeIntoSource = errors.New("merge target is the source directory")

// Metadata is the extractor the pipeline consumes.
type Metadata interface {
	Read(path string) (*metadata.Block, error)
	Write(path string, enc metadata.Encoded) error
	IsCamera(path string) bool
	VideoCreationTime(path string) (string, error)
}

// Equivalence decides whether two files hold the same photo.
type Equivalence interface {
	Check(a, b string) (equiv.Verdict, error)
}

// Outcome is what happened to one file.
type Outcome int

const (
	Ignored Outcome = iota
	Renamed
	Unchanged
	Merged
	Duplicate
	Conflict
	Review
	Video
)

var outcomeNames = [...]string{"ignored", "renamed", "unchanged", "merged", "duplicate", "conflict", "review", "video"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result describes the processing of one file.
type Result struct {
	Outcome Outcome
	From    string
	To      string
	Bytes   int64
}

var videoExts = map[string]bool{
	".mp4": true,
	".mov": true,
	".m4v": true,
	".avi": true,
	".mkv": true,
	".3gp": true,
	".mts": true,
}

// Options configure a Pipeline.
type Options struct {
	// Suffix is inserted between the timestamp and the extension.
	Suffix  string
	ExtCase ExtCase
	// MergeDir, when set, receives every renamed file.
	MergeDir string
	// ReviewDir, when set, receives the files that need a person's look.
	ReviewDir string
	// CameraOnly routes images without camera make/model to review.
	CameraOnly bool
	DryRun     bool
}

// Pipeline renames and merges the photos of one directory, one file at a
// time.
type Pipeline struct {
	Options
	Meta  Metadata
	Equiv Equivalence
	Log   *slog.Logger

	reserved map[string]bool
}

// New returns a Pipeline using meta for tag access.
func New(meta Metadata, log *slog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		Options: opts,
		Meta:    meta,
		Equiv:   &equiv.Checker{Log: log},
		Log:     log,
	}
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// taken reports whether a name is occupied on disk or, in a dry run, by an
// earlier decision of the same run.
func (p *Pipeline) taken(path string) bool {
	return exists(path) || p.reserved[filepath.Clean(path)]
}

func (p *Pipeline) reserve(path string) {
	if !p.DryRun {
		return
	}
	if p.reserved == nil {
		p.reserved = make(map[string]bool)
	}
	p.reserved[filepath.Clean(path)] = true
}

// candidates lists the non-hidden regular files directly inside dir.
func candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Run processes every file of dir in name order. A failing file is logged
// and counted; the run goes on with the next one.
func (p *Pipeline) Run(ctx context.Context, dir string, progress func(done, total int)) (*Stats, error) {
	stats := NewStats()
	if p.MergeDir != "" && sameDir(dir, p.MergeDir) {
		return stats, fmt.Errorf("%w: %s", ErrMergeIntoSource, p.MergeDir)
	}
	files, err := candidates(dir)
	if err != nil {
		return stats, fmt.Errorf("list %s: %w", dir, err)
	}
	stats.Scanned = len(files)

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := p.Process(ctx, path)
		if err != nil {
			stats.Errors++
			p.log().Error("file aborted", "path", path, "err", err)
		} else {
			stats.record(res.Outcome)
			stats.BytesMoved += res.Bytes
			if res.Outcome == Conflict || res.Outcome == Review {
				stats.ReviewPaths = append(stats.ReviewPaths, res.From)
			}
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}
	return stats, nil
}

// Process runs one file through the state machine.
func (p *Pipeline) Process(ctx context.Context, path string) (Result, error) {
	log := p.log()
	res := Result{From: path, To: path}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	ext := filepath.Ext(path)
	switch lower := strings.ToLower(ext); {
	case videoExts[lower]:
		if created, err := p.Meta.VideoCreationTime(path); err != nil {
			log.Info("video left in place", "path", path, "err", err)
		} else {
			log.Info("video left in place", "path", path, "created", created)
		}
		res.Outcome = Video
		return res, nil
	case !hasher.IsStillImage(lower):
		log.Debug("not a still image, ignored", "path", path)
		return res, nil
	}

	if p.CameraOnly && !p.Meta.IsCamera(path) {
		return p.toReview(res)
	}

	info, err := os.Stat(path)
	if err != nil {
		return res, err
	}

	block, err := p.Meta.Read(path)
	if err != nil {
		if !errors.Is(err, metadata.ErrNoMetadata) {
			log.Warn("metadata unreadable, falling back to file time", "path", path, "err", err)
		}
		block = nil
	}
	stamp, source := resolveTimestamp(block, info, log)

	original, hadOriginal := block.String(metadata.TagImageDescription)
	if original = strings.TrimSpace(original); original == "" {
		original = filepath.Base(path)
		hadOriginal = false
	}
	if block == nil {
		block = metadata.NewBlock()
	}
	block.Set(metadata.TagImageDescription, original)

	repaired := metadata.Repair(block, log)

	enc, err := metadata.Encode(block)
	stripped := false
	if err != nil {
		log.Warn("metadata cannot be serialized, stripping it", "path", path, "err", err)
		enc = metadata.Stripped()
		stripped = true
	}

	newExt := p.ExtCase.apply(ext)
	var target string
	if source == sourceFile && isCanonical(filepath.Base(path), p.Suffix, newExt) {
		// File times drift; a name already given from one is kept.
		target = path
	} else {
		target = freeName(filepath.Dir(path), stamp, p.Suffix, newExt, path, p.taken)
	}
	renamed := filepath.Clean(target) != filepath.Clean(path)
	needsWrite := renamed || !hadOriginal || repaired > 0 || stripped

	if p.DryRun {
		p.reserve(target)
		log.Info("would rename", "tag", "DRY", "path", path, "to", filepath.Base(target), "source", source)
	} else {
		if renamed {
			if err := os.Rename(path, target); err != nil {
				return res, fmt.Errorf("rename %s: %w", path, err)
			}
			log.Info("renamed", "tag", "MOVE", "path", path, "to", filepath.Base(target), "source", source)
		}
		if needsWrite {
			if err := p.Meta.Write(target, enc); err != nil {
				return res, fmt.Errorf("%w: %s: %v", ErrMetadataWrite, target, err)
			}
			if err := os.Chtimes(target, time.Time{}, info.ModTime()); err != nil {
				log.Warn("could not restore modification time", "path", target, "err", err)
			}
		}
	}

	res.To = target
	res.Outcome = Unchanged
	if renamed {
		res.Outcome = Renamed
	}

	if p.MergeDir != "" {
		return p.merge(res, info.Size())
	}
	return res, nil
}

// merge reconciles a renamed file with the merge target. The cheap content
// check runs before the pixel comparison; anything else is kept for review.
func (p *Pipeline) merge(res Result, size int64) (Result, error) {
	log := p.log()
	src := res.To
	if p.DryRun {
		src = res.From
	}
	dst := filepath.Join(p.MergeDir, filepath.Base(res.To))

	if exists(dst) && isSelf(dst, src) {
		log.Debug("already in merge target", "path", src)
		res.To = dst
		return res, nil
	}

	if !p.taken(dst) {
		if p.DryRun {
			p.reserve(dst)
			log.Info("would merge", "tag", "DRY", "path", src, "to", dst)
		} else {
			if err := MoveFile(src, dst); err != nil {
				return res, fmt.Errorf("merge %s: %w", src, err)
			}
			log.Info("merged", "tag", "MOVE", "path", src, "to", dst)
		}
		res.To = dst
		res.Outcome = Merged
		res.Bytes = size
		return res, nil
	}

	if !exists(dst) {
		// Claimed by an earlier file of this dry run; nothing to compare yet.
		log.Warn("merge target claimed earlier in this run", "path", src, "target", dst)
		res.Outcome = Conflict
		return res, nil
	}

	checker := p.Equiv
	if checker == nil {
		checker = &equiv.Checker{Log: log}
	}
	verdict, err := checker.Check(src, dst)
	if err != nil {
		log.Warn("cannot compare with merge target, keeping both", "path", src, "target", dst, "err", err)
		res.Outcome = Conflict
		return res, nil
	}
	if verdict.Duplicate() {
		if !p.DryRun {
			if err := os.Remove(src); err != nil {
				return res, fmt.Errorf("remove duplicate %s: %w", src, err)
			}
		}
		log.Info("duplicate of archived file removed", "tag", "DUP", "path", src, "archived", dst, "check", verdict.String())
		res.To = dst
		res.Outcome = Duplicate
		return res, nil
	}

	log.Warn("name taken by a different file, flagged for review", "tag", "SKIP", "path", src, "target", dst)
	res.Outcome = Conflict
	return res, nil
}

// sameDir reports whether a and b name the same directory.
func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

// toReview moves a non-camera image into the review directory, or leaves
// it where it is when none is configured.
func (p *Pipeline) toReview(res Result) (Result, error) {
	log := p.log()
	res.Outcome = Review
	if p.ReviewDir == "" {
		log.Info("not camera-sourced, left for review", "path", res.From)
		return res, nil
	}
	dst := UniquePath(filepath.Join(p.ReviewDir, filepath.Base(res.From)))
	if p.DryRun {
		log.Info("would move to review", "tag", "DRY", "path", res.From, "to", dst)
		return res, nil
	}
	if err := MoveFile(res.From, dst); err != nil {
		return res, fmt.Errorf("move to review %s: %w", res.From, err)
	}
	log.Info("not camera-sourced, moved to review", "tag", "TRASH", "path", res.From, "to", dst)
	res.To = dst
	return res, nil
}
