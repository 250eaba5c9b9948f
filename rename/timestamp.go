package rename

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/levmv/photoarc/metadata"
)

// Sources of a resolved timestamp, for logging.
const (
	sourceOriginal = metadata.TagDateTimeOriginal
	sourceModify   = metadata.TagModifyDate
	sourceFile     = "file"
)

// resolveTimestamp picks the capture time: DateTimeOriginal, then the IFD0
// date when the original is blank or missing, then the file creation time
// when there is no usable metadata.
func resolveTimestamp(b *metadata.Block, info os.FileInfo, log *slog.Logger) (time.Time, string) {
	for _, tag := range []string{sourceOriginal, sourceModify} {
		v, ok := b.String(tag)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		t, err := metadata.ParseTime(v)
		if err != nil {
			log.Warn("date tag unusable", "path", info.Name(), "tag", tag, "value", v, "err", err)
			continue
		}
		return t, tag
	}
	return creationTime(info), sourceFile
}
