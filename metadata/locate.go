package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// container is the file layout the native parser understands.
type container int

const (
	containerUnknown container = iota
	containerJPEG
	containerPNG
	containerTIFF
)

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

// sniffContainer reads the magic bytes of r and rewinds it.
func sniffContainer(r io.ReadSeeker) (container, error) {
	var magic [8]byte
	n, err := io.ReadFull(r, magic[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return containerUnknown, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return containerUnknown, err
	}
	head := magic[:n]
	switch {
	case bytes.HasPrefix(head, jpegMagic):
		return containerJPEG, nil
	case bytes.HasPrefix(head, pngMagic):
		return containerPNG, nil
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return containerTIFF, nil
	}
	return containerUnknown, nil
}

// maxPNGExif bounds the eXIf chunk we are willing to load.
const maxPNGExif = 10 << 20

type pngChunkHeader struct {
	Length uint32
	Type   [4]byte
}

// pngEXIF returns the bare TIFF payload of the eXIf chunk of a PNG stream,
// or nil when the image carries none.
func pngEXIF(r io.Reader) ([]byte, error) {
	if _, err := io.CopyN(io.Discard, r, int64(len(pngMagic))); err != nil {
		return nil, err
	}
	for {
		var h pngChunkHeader
		if err := binary.Read(r, binary.BigEndian, &h); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("png chunk: %w", err)
		}
		switch string(h.Type[:]) {
		case "IEND":
			return nil, nil
		case "eXIf":
			if h.Length > maxPNGExif {
				return nil, fmt.Errorf("png eXIf chunk of %d bytes", h.Length)
			}
			blob := make([]byte, h.Length)
			if _, err := io.ReadFull(r, blob); err != nil {
				return nil, fmt.Errorf("png eXIf: %w", err)
			}
			return blob, nil
		}
		// chunk data plus CRC
		if _, err := io.CopyN(io.Discard, r, int64(h.Length)+4); err != nil {
			return nil, fmt.Errorf("png chunk %s: %w", h.Type[:], err)
		}
	}
}
