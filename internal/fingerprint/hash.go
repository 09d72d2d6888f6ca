// Package fingerprint computes stable content fingerprints for files,
// environment variables, and build options. It implements the invalidation
// digest scheme used to decide whether cached build artifacts are still valid,
// and memoizes per-file hashing within a single build.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// FileHasher computes content hashes for cache keys
type FileHasher struct{}

// NewFileHasher creates a new file hasher
func NewFileHasher() *FileHasher {
	return &FileHasher{}
}

// HashFile computes a SHA-256 hash of the file contents
func (fh *FileHasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashContent computes a SHA-256 hash of the given content
func (fh *FileHasher) HashContent(content []byte) string {
	hasher := sha256.New()
	hasher.Write(content)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashString computes a SHA-256 hash of the given string
func (fh *FileHasher) HashString(content string) string {
	return fh.HashContent([]byte(content))
}

// Fingerprint computes a short, stable xxhash fingerprint of the given parts.
// Identical inputs produce identical fingerprints across process restarts,
// which is what makes derived identities cache-shareable.
func Fingerprint(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		h.WriteString(p)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// FingerprintBytes computes a short xxhash fingerprint of raw content
func FingerprintBytes(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
