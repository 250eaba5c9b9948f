package metadata

import (
	"errors"

	"github.com/rwcarlsen/goexif/exif"
)

// IsCamera reports whether the primary tag block of path names both a
// camera make and model. Any parse failure counts as not camera-sourced.
func (s *Service) IsCamera(path string) bool {
	log := s.log()

	x, err := decodeNative(path)
	if err == nil {
		_, errMake := x.Get(exif.Make)
		_, errModel := x.Get(exif.Model)
		if errMake != nil || errModel != nil {
			log.Info("not camera-sourced: make/model missing", "path", path)
			return false
		}
		return true
	}
	if !errors.Is(err, ErrUnsupported) {
		log.Info("not camera-sourced: metadata unreadable", "path", path, "err", err)
		return false
	}

	fm, err := s.extract(path)
	if err != nil {
		log.Warn("not camera-sourced: metadata unreadable", "path", path, "err", err)
		return false
	}
	mk, errMake := fm.GetString(TagMake)
	model, errModel := fm.GetString(TagModel)
	if errMake != nil || errModel != nil || mk == "" || model == "" {
		log.Info("not camera-sourced: make/model missing", "path", path)
		return false
	}
	return true
}
