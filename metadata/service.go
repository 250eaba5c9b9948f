package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
)

// Service reads tags natively where it can and falls back to a lazily
// started exiftool process for everything else. Writes always go through
// exiftool.
type Service struct {
	Log *slog.Logger

	et *exiftool.Exiftool
	mu sync.Mutex
}

// NewService returns a Service logging to log.
func NewService(log *slog.Logger) *Service {
	return &Service{Log: log}
}

func (s *Service) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Close cleans up the exiftool process if it was started.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.et != nil {
		s.et.Close()
		s.et = nil
	}
}

// ensureExifTool lazily initializes the exiftool instance.
func (s *Service) ensureExifTool() (*exiftool.Exiftool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.et != nil {
		return s.et, nil
	}
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	s.et = et
	return s.et, nil
}

func (s *Service) extract(path string) (exiftool.FileMetadata, error) {
	et, err := s.ensureExifTool()
	if err != nil {
		return exiftool.FileMetadata{}, err
	}
	infos := et.ExtractMetadata(path)
	if len(infos) == 0 {
		return exiftool.FileMetadata{}, fmt.Errorf("exiftool: no result for %s", path)
	}
	if infos[0].Err != nil {
		return exiftool.FileMetadata{}, fmt.Errorf("exiftool %s: %w", path, infos[0].Err)
	}
	return infos[0], nil
}

// Read returns the managed tags of path. ErrNoMetadata means the file has
// no tag block at all.
func (s *Service) Read(path string) (*Block, error) {
	b, err := readNative(path)
	if err == nil || !errors.Is(err, ErrUnsupported) {
		return b, err
	}

	fm, err := s.extract(path)
	if err != nil {
		return nil, err
	}
	b = NewBlock()
	blockFromExifTool(b, fm)
	if b.Len() == 0 {
		return nil, ErrNoMetadata
	}
	return b, nil
}

// blockFromExifTool copies the managed tags as text, so a SubSecTime of "45"
// that exiftool's JSON reported as a number stays "45".
func blockFromExifTool(b *Block, fm exiftool.FileMetadata) {
	for _, tag := range managedTags {
		v, err := fm.GetString(tag)
		if err != nil {
			continue
		}
		b.Set(tag, v)
	}
}

// Write stores enc onto the file at path.
func (s *Service) Write(path string, enc Encoded) error {
	if enc.Empty() {
		return nil
	}
	et, err := s.ensureExifTool()
	if err != nil {
		return err
	}

	fm, err := fileMetadata(path, enc)
	if err != nil {
		return err
	}

	batch := []exiftool.FileMetadata{fm}
	et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("write %s: %w", path, batch[0].Err)
	}
	return nil
}

// fileMetadata turns enc into the write request for exiftool.
func fileMetadata(path string, enc Encoded) (exiftool.FileMetadata, error) {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	if enc.Strip {
		fm.Clear("all")
	}
	for tag, v := range enc.Fields {
		switch x := v.(type) {
		case string:
			fm.SetString(tag, x)
		case int64:
			fm.SetInt(tag, x)
		case float64:
			fm.SetFloat(tag, x)
		case []string:
			fm.SetStrings(tag, x)
		default:
			return fm, fmt.Errorf("write %s: %w: %s has type %T", path, ErrUnserializable, tag, v)
		}
	}
	return fm, nil
}

var videoDateKeys = []string{"CreateDate", "MediaCreateDate", "TrackCreateDate"}

// VideoCreationTime asks exiftool for the container creation time of a
// video file. The value is returned verbatim for reporting.
func (s *Service) VideoCreationTime(path string) (string, error) {
	fm, err := s.extract(path)
	if err != nil {
		return "", err
	}
	for _, key := range videoDateKeys {
		v, err := fm.GetString(key)
		if err != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" && !strings.HasPrefix(v, "0000:00:00") {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrNoMetadata)
}
