package fetch

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IntegrityError reports a digest mismatch between a file's content and
// its declared integrity token. It is a terminal, user-class error for
// the pull that produced it: the backing file has already been removed
// by the time callers see it.
type IntegrityError struct {
	Filename  string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s:%s, got %s:%s",
		e.Filename, e.Algorithm, e.Expected, e.Algorithm, e.Actual)
}

// ParseChecksum splits an integrity token <algorithm>:<hex> into its
// parts. Token syntax is validated upstream at metadata load time, so a
// malformed token here is reported as a plain error, not a panic.
func ParseChecksum(token string) (algo, digest string, err error) {
	algo, digest, ok := strings.Cut(token, ":")
	if !ok || algo == "" || digest == "" {
		return "", "", fmt.Errorf("malformed checksum token %q", token)
	}
	return algo, digest, nil
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "md5":
		return md5.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
}

// checkDigest compares a computed hash against the expected hex digest,
// case-insensitively. On mismatch it returns an *IntegrityError naming
// filename.
func checkDigest(h hash.Hash, algo, expected, filename string) error {
	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return &IntegrityError{
			Filename:  filename,
			Algorithm: algo,
			Expected:  strings.ToLower(expected),
			Actual:    actual,
		}
	}
	return nil
}

// VerifyFile recomputes the digest of the file at path and compares it
// against the integrity token. This is the same comparison used during
// transfers, so "correct" has a single definition whether a digest was
// computed during download or on a cache re-validation. The file is not
// modified; deleting a corrupt file is the caller's decision.
func VerifyFile(path, token string) error {
	algo, expected, err := ParseChecksum(token)
	if err != nil {
		return err
	}
	h, err := newHash(algo)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return checkDigest(h, algo, expected, filepath.Base(path))
}
