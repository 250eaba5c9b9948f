// Package metadata reads, repairs and writes back the EXIF tags the archive
// relies on, and tells camera photos apart from everything else.
package metadata

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Tag names follow exiftool's vocabulary.
const (
	TagMake                = "Make"
	TagModel               = "Model"
	TagDateTimeOriginal    = "DateTimeOriginal"
	TagModifyDate          = "ModifyDate" // IFD0 DateTime
	TagImageDescription    = "ImageDescription"
	TagSubSecTimeOriginal  = "SubSecTimeOriginal"
	TagSubSecTimeDigitized = "SubSecTimeDigitized"
)

// managedTags are the only tags carried in a Block.
var managedTags = []string{
	TagMake,
	TagModel,
	TagDateTimeOriginal,
	TagModifyDate,
	TagImageDescription,
	TagSubSecTimeOriginal,
	TagSubSecTimeDigitized,
}

var (
	// ErrNoMetadata means the file carries no metadata block at all.
	ErrNoMetadata = errors.New("no metadata")
	// ErrUnsupported means the native parser does not know the container.
	ErrUnsupported = errors.New("unsupported format")
)

// Block is the structured tag block of one file. Values are string,
// []byte, int64, float64 or whatever the parser produced for exotic tags.
type Block struct {
	tags map[string]any
}

// NewBlock returns an empty block.
func NewBlock() *Block {
	return &Block{tags: make(map[string]any)}
}

// Has reports whether tag is present, whatever its value.
func (b *Block) Has(tag string) bool {
	if b == nil {
		return false
	}
	_, ok := b.tags[tag]
	return ok
}

// Get returns the raw value of tag.
func (b *Block) Get(tag string) (any, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.tags[tag]
	return v, ok
}

// String returns tag as text. Byte values are converted, NUL padding is
// dropped. Numeric values are not text and report false.
func (b *Block) String(tag string) (string, bool) {
	v, ok := b.Get(tag)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimRight(s, "\x00"), true
	case []byte:
		return strings.TrimRight(string(s), "\x00"), true
	default:
		return "", false
	}
}

// Set stores v under tag.
func (b *Block) Set(tag string, v any) {
	b.tags[tag] = v
}

// Delete drops tag.
func (b *Block) Delete(tag string) {
	delete(b.tags, tag)
}

// Len returns the number of tags.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.tags)
}

// Tags returns the tag names in sorted order.
func (b *Block) Tags() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.tags))
	for k := range b.tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var timeLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// ParseTime parses an EXIF date/time value in local time. Zeroed
// placeholders such as "0000:00:00 00:00:00" are rejected.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if len(s) < 10 || strings.HasPrefix(s, "0000:00:00") || strings.HasPrefix(s, "    :  :  ") {
		return time.Time{}, errors.New("date not set")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unknown date format '" + s + "'")
}
