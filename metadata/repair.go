package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
)

// ErrUnserializable is returned by Encode when a tag value cannot be written.
var ErrUnserializable = errors.New("tag value cannot be serialized")

// Encoding is the on-disk shape a repaired tag must have.
type Encoding int

const (
	// OneByte is a single big-endian byte.
	OneByte Encoding = iota
)

// repairTable lists tags some writers store as bare integers where a byte
// sequence is expected. New entries need no change to the rename flow.
var repairTable = map[string]Encoding{
	TagSubSecTimeOriginal:  OneByte,
	TagSubSecTimeDigitized: OneByte,
}

func repairTags() []string {
	tags := make([]string, 0, len(repairTable))
	for t := range repairTable {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Repair coerces integer values of the tags in the repair table to their
// expected encoding. Missing tags are logged and skipped. It returns the
// number of tags changed.
func Repair(b *Block, log *slog.Logger) int {
	if log == nil {
		log = slog.Default()
	}
	changed := 0
	for _, tag := range repairTags() {
		v, ok := b.Get(tag)
		if !ok {
			log.Debug("repair: tag missing, skipped", "tag", tag)
			continue
		}
		n, isInt := asInt(v)
		if !isInt {
			continue
		}
		switch repairTable[tag] {
		case OneByte:
			if n < 0 || n > 0xFF {
				log.Warn("repair: value does not fit one byte", "tag", tag, "value", n)
				continue
			}
			b.Set(tag, []byte{byte(n)})
			changed++
		}
	}
	return changed
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// Encoded is a block in its writable form. An Encoded with Strip set removes
// every tag from the target file.
type Encoded struct {
	Fields map[string]any
	Strip  bool
}

// Empty reports whether writing e would change nothing.
func (e Encoded) Empty() bool {
	return !e.Strip && len(e.Fields) == 0
}

// Stripped returns the empty block used when a block cannot be encoded.
func Stripped() Encoded {
	return Encoded{Fields: map[string]any{}, Strip: true}
}

// Encode converts b to its writable form. Tags of the repair table must
// have been coerced to bytes already.
func Encode(b *Block) (Encoded, error) {
	enc := Encoded{Fields: make(map[string]any, b.Len())}
	for _, tag := range b.Tags() {
		v, _ := b.Get(tag)
		if _, repairable := repairTable[tag]; repairable {
			switch v.(type) {
			case []byte, string:
			default:
				return Encoded{}, fmt.Errorf("%w: %s expects a byte sequence, got %T", ErrUnserializable, tag, v)
			}
		}
		switch x := v.(type) {
		case string:
			enc.Fields[tag] = x
		case []byte:
			enc.Fields[tag] = string(x)
		case int64:
			enc.Fields[tag] = x
		case int:
			enc.Fields[tag] = int64(x)
		case float64:
			enc.Fields[tag] = x
		case []string:
			enc.Fields[tag] = x
		case *big.Rat:
			return Encoded{}, fmt.Errorf("%w: %s is a rational", ErrUnserializable, tag)
		default:
			return Encoded{}, fmt.Errorf("%w: %s has type %T", ErrUnserializable, tag, v)
		}
	}
	return enc, nil
}
