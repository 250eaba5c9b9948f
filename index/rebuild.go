package index

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Progress is advanced once per processed file, monotonically.
type Progress func(done, total int)

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// walkFiles lists every non-hidden regular file under root. Hidden
// directories are not descended into.
func (s *Store) walkFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("skipping path", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// Rebuild clears the index and repopulates it from the tree under root.
// Files that cannot be hashed are still recorded, without the hash.
// The index reflects the tree as of the scan; later changes need another
// Rebuild.
func (s *Store) Rebuild(ctx context.Context, root string, progress Progress) (int, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}
	files, err := s.walkFiles(root)
	if err != nil {
		return 0, fmt.Errorf("rebuild %s: %w", root, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return 0, fmt.Errorf("rebuild: clear: %w", err)
	}

	total := len(files)
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rec := NewRecord(s.log, path)
		if err := put(ctx, tx, rec); err != nil {
			return 0, fmt.Errorf("rebuild: %w", err)
		}
		s.log.Debug("indexed", "path", path, "id", rec.ID)
		if progress != nil {
			progress(i+1, total)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("rebuild: commit: %w", err)
	}
	return total, nil
}
