package dedupe

import (
	"strconv"

	"github.com/levmv/photoarc/index"
)

// ReverseMap maps a hash value to the identifier of the first record that
// carried it. It is derived from the index and rebuilt rather than updated.
type ReverseMap map[string]string

// ContentMap builds the content-hash reverse map and counts the records
// whose hash was already taken. Records without a hash are ignored.
func ContentMap(records []index.Record) (ReverseMap, int) {
	m := make(ReverseMap, len(records))
	dupes := 0
	for _, rec := range records {
		if !rec.HasHash() {
			continue
		}
		if _, ok := m[rec.Hash]; ok {
			dupes++
			continue
		}
		m[rec.Hash] = rec.ID
	}
	return m, dupes
}

// PerceptualKey renders one orientation value as a map key.
func PerceptualKey(v uint64) string {
	return strconv.FormatUint(v, 16)
}

// PerceptualMap flattens every orientation of every fingerprinted record
// into one reverse map. A value counts as a duplicate only when a different
// record already claimed it, so a symmetric image whose orientations
// coincide is not its own duplicate.
func PerceptualMap(records []index.Record) (ReverseMap, int) {
	m := make(ReverseMap, 4*len(records))
	dupes := 0
	for _, rec := range records {
		if rec.PHash == nil {
			continue
		}
		for _, v := range rec.PHash {
			key := PerceptualKey(v)
			owner, ok := m[key]
			switch {
			case !ok:
				m[key] = rec.ID
			case owner != rec.ID:
				dupes++
			}
		}
	}
	return m, dupes
}

// Report is the outcome of the read-only statistics pass.
type Report struct {
	Records             int
	DuplicateHashes     int
	DuplicatePerceptual int
}

// Statistics counts collisions without resolving or mutating anything.
func Statistics(records []index.Record) Report {
	_, hashDupes := ContentMap(records)
	_, phDupes := PerceptualMap(records)
	return Report{
		Records:             len(records),
		DuplicateHashes:     hashDupes,
		DuplicatePerceptual: phDupes,
	}
}
