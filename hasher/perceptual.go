package hasher

import (
	"fmt"
	"image"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Orientation indexes into a PerceptualSet.
type Orientation int

const (
	Rot0 Orientation = iota
	Rot90
	Rot180
	Rot270
)

// PerceptualSet holds one 64-bit pHash per clockwise quarter turn of the
// decoded image. Index Rot0 is always the buffer as stored.
type PerceptualSet [4]uint64

// Contains reports whether v equals any orientation of the set.
func (s PerceptualSet) Contains(v uint64) bool {
	for _, h := range s {
		if h == v {
			return true
		}
	}
	return false
}

// stillImageExts lists the extensions the perceptual hasher can decode.
// Raw formats, HEIC and video are deliberately absent.
var stillImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsStillImage reports whether ext (with leading dot, any case) names a still
// image format the perceptual hasher supports.
func IsStillImage(ext string) bool {
	return stillImageExts[strings.ToLower(ext)]
}

// PerceptualHash decodes the image at path without applying EXIF
// auto-rotation and hashes its four literal quarter turns.
func PerceptualHash(path string) (*PerceptualSet, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("perceptual hash %s: %w", path, err)
	}
	set, err := PerceptualHashImage(img)
	if err != nil {
		return nil, fmt.Errorf("perceptual hash %s: %w", path, err)
	}
	return set, nil
}

// PerceptualHashImage is PerceptualHash for an already decoded image.
func PerceptualHashImage(img image.Image) (*PerceptualSet, error) {
	// imaging rotates counter-clockwise, so a clockwise quarter turn is Rotate270.
	base := imaging.Clone(img)
	turns := [4]*image.NRGBA{
		Rot0:   base,
		Rot90:  imaging.Rotate270(base),
		Rot180: imaging.Rotate180(base),
		Rot270: imaging.Rotate90(base),
	}

	var set PerceptualSet
	for i, turned := range turns {
		h, err := goimagehash.PerceptionHash(turned)
		if err != nil {
			return nil, err
		}
		set[i] = h.GetHash()
	}
	return &set, nil
}
