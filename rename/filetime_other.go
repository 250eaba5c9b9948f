//go:build !darwin

package rename

import (
	"os"
	"time"
)

// creationTime falls back to the modification time: Linux stat has no birth
// time, and the inode change time moves with every rename. The pipeline
// restores the modification time after writing tags, so it stays stable.
func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
