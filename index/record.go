// Package index persists one record per observed file of the photo library.
package index

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/levmv/photoarc/hasher"
)

// Record describes one observed file. ID never changes once assigned.
// An empty Hash means the content could not be hashed; a nil PHash means
// the file has no perceptual fingerprint.
type Record struct {
	ID       string
	Filename string
	Ext      string
	Path     string
	Hash     string
	PHash    *hasher.PerceptualSet
}

// HasHash reports whether the content hash is present.
func (r Record) HasHash() bool { return r.Hash != "" }

// NormalizeExt upper-cases an extension the way the index stores it.
func NormalizeExt(name string) string {
	return strings.ToUpper(filepath.Ext(name))
}

// NewRecord hashes the file at path and returns a record with a fresh ID.
// Hashing failures are logged and leave the corresponding field empty.
func NewRecord(log *slog.Logger, path string) Record {
	name := filepath.Base(path)
	rec := Record{
		ID:       uuid.NewString(),
		Filename: name,
		Ext:      NormalizeExt(name),
		Path:     path,
	}

	h, err := hasher.ContentHash(path)
	if err != nil {
		log.Warn("content hash failed, record has no hash", "path", path, "err", err)
	} else {
		rec.Hash = h
	}

	if hasher.IsStillImage(rec.Ext) {
		set, err := hasher.PerceptualHash(path)
		if err != nil {
			log.Warn("perceptual hash failed, record has no fingerprint", "path", path, "err", err)
		} else {
			rec.PHash = set
		}
	}
	return rec
}
