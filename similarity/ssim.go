// Package similarity scores how alike two images are in the pixel domain.
package similarity

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrShapeMismatch is returned when the two images do not share dimensions.
var ErrShapeMismatch = errors.New("images differ in shape")

// Identical is the score of two pixel-exact images.
const Identical = 1.0

const (
	window = 8
	// Stabilisers from Wang et al. for an 8-bit dynamic range.
	c1 = (0.01 * 255) * (0.01 * 255)
	c2 = (0.03 * 255) * (0.03 * 255)
)

// CompareFiles decodes both files to grayscale, ignoring EXIF orientation,
// and returns their structural similarity.
func CompareFiles(a, b string) (float64, error) {
	ia, err := imaging.Open(a)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", a, err)
	}
	ib, err := imaging.Open(b)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", b, err)
	}
	return Score(ia, ib)
}

// Score computes the mean SSIM over non-overlapping windows of the grayscale
// forms of a and b. Identical pixels always score exactly 1.0.
func Score(a, b image.Image) (float64, error) {
	ga := imaging.Grayscale(a)
	gb := imaging.Grayscale(b)
	w, h := ga.Bounds().Dx(), ga.Bounds().Dy()
	if w != gb.Bounds().Dx() || h != gb.Bounds().Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, w, h, gb.Bounds().Dx(), gb.Bounds().Dy())
	}
	if w == 0 || h == 0 {
		return Identical, nil
	}

	var total float64
	var windows int
	for y := 0; y < h; y += window {
		for x := 0; x < w; x += window {
			x1, y1 := min(x+window, w), min(y+window, h)
			total += windowSSIM(ga, gb, x, y, x1, y1)
			windows++
		}
	}
	return total / float64(windows), nil
}

// windowSSIM evaluates one window. Grayscale keeps R == G == B, so the
// red channel is the luminance.
func windowSSIM(a, b *image.NRGBA, x0, y0, x1, y1 int) float64 {
	n := float64((x1 - x0) * (y1 - y0))

	var sumA, sumB float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sumA += float64(a.Pix[a.PixOffset(x, y)])
			sumB += float64(b.Pix[b.PixOffset(x, y)])
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var varA, varB, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			da := float64(a.Pix[a.PixOffset(x, y)]) - meanA
			db := float64(b.Pix[b.PixOffset(x, y)]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*meanA*meanB + c1) * (2*cov + c2)
	den := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	return num / den
}
