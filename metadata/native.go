package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// nativeFields maps goexif field names onto Block tags.
var nativeFields = map[exif.FieldName]string{
	exif.Make:                TagMake,
	exif.Model:               TagModel,
	exif.DateTime:            TagModifyDate,
	exif.DateTimeOriginal:    TagDateTimeOriginal,
	exif.ImageDescription:    TagImageDescription,
	exif.SubSecTimeOriginal:  TagSubSecTimeOriginal,
	exif.SubSecTimeDigitized: TagSubSecTimeDigitized,
}

// decodeNative parses the EXIF block of a JPEG, PNG or TIFF file in-process.
// A broken GPS or interop sub-IFD is tolerated; IFD0 stays usable.
func decodeNative(path string) (*exif.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kind, err := sniffContainer(f)
	if err != nil {
		return nil, err
	}

	var src io.Reader = f
	switch kind {
	case containerJPEG, containerTIFF:
	case containerPNG:
		blob, err := pngEXIF(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if blob == nil {
			return nil, ErrNoMetadata
		}
		src = bytes.NewReader(blob)
	default:
		return nil, ErrUnsupported
	}

	x, err := exif.Decode(src)
	if err == nil {
		return x, nil
	}
	if kind == containerJPEG && noAPP1(err) {
		return nil, ErrNoMetadata
	}
	if x == nil || exif.IsCriticalError(err) {
		return nil, fmt.Errorf("decode exif %s: %w", path, err)
	}
	return x, nil
}

// noAPP1 recognises goexif running off the end of a JPEG without finding an
// Exif APP1 segment.
func noAPP1(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		err.Error() == "exif: failed to find exif intro marker"
}

// readNative builds a Block from the goexif view of the file.
func readNative(path string) (*Block, error) {
	x, err := decodeNative(path)
	if err != nil {
		return nil, err
	}
	b := NewBlock()
	for field, tag := range nativeFields {
		t, err := x.Get(field)
		if err != nil {
			continue
		}
		if v, ok := tagValue(t); ok {
			b.Set(tag, v)
		}
	}
	return b, nil
}

func tagValue(t *tiff.Tag) (any, bool) {
	switch t.Format() {
	case tiff.StringVal:
		s, err := t.StringVal()
		return s, err == nil
	case tiff.IntVal:
		n, err := t.Int64(0)
		return n, err == nil
	case tiff.FloatVal:
		f, err := t.Float(0)
		return f, err == nil
	case tiff.RatVal:
		r, err := t.Rat(0)
		return r, err == nil
	default:
		return append([]byte(nil), t.Val...), true
	}
}
