package similarity

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func pattern(w, h int, shift uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x*7+y*3) + shift
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v ^ 0x55, B: uint8(y * 9), A: 255})
		}
	}
	return img
}

func TestScoreIdentical(t *testing.T) {
	img := pattern(37, 21, 0)
	got, err := Score(img, pattern(37, 21, 0))
	if err != nil {
		t.Fatal(err)
	}
	if got != Identical {
		t.Errorf("Score = %v, want exactly %v", got, Identical)
	}
}

func TestScoreDifferent(t *testing.T) {
	got, err := Score(pattern(40, 40, 0), pattern(40, 40, 90))
	if err != nil {
		t.Fatal(err)
	}
	if got >= Identical {
		t.Errorf("Score = %v, want < 1", got)
	}
}

func TestScoreSinglePixelChange(t *testing.T) {
	a := pattern(16, 16, 0)
	b := pattern(16, 16, 0)
	b.SetNRGBA(3, 3, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	got, err := Score(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got == Identical {
		t.Error("a changed pixel must not score 1.0")
	}
}

func TestScoreShapeMismatch(t *testing.T) {
	_, err := Score(pattern(10, 10, 0), pattern(10, 11, 0))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestCompareFilesSamePixelsDifferentBytes(t *testing.T) {
	dir := t.TempDir()
	img := pattern(64, 48, 11)

	write := func(name string, level png.CompressionLevel) string {
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: level}
		if err := enc.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	a := write("a.png", png.NoCompression)
	b := write("b.png", png.BestCompression)

	ba, _ := os.ReadFile(a)
	bb, _ := os.ReadFile(b)
	if bytes.Equal(ba, bb) {
		t.Fatal("fixture files should differ byte-wise")
	}

	got, err := CompareFiles(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if got != Identical {
		t.Errorf("CompareFiles = %v, want %v", got, Identical)
	}
}
