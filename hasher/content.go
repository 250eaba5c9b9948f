// Package hasher computes the identities the archive uses to spot duplicates:
// an exact content digest and a rotation-invariant perceptual fingerprint.
package hasher

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/minio/sha256-simd"
)

// ChunkSize is the read size used when folding a file into the digest.
const ChunkSize = 4096

// ContentHash calculates the SHA256 of the entire file, reading it in
// ChunkSize blocks. The result is a lowercase hex string and depends only on
// the bytes, never on the name or location.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("content hash %s: %w", path, err)
	}
	defer f.Close()

	sum, err := contentHash(f)
	if err != nil {
		return "", fmt.Errorf("content hash %s: %w", path, err)
	}
	return sum, nil
}

func contentHash(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
