package ioutils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrSizeMismatch is returned when a file does not have the expected size.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrChecksumMismatch is returned when a file does not hash to the expected digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Verify checks the file at path against an expected size and SHA-256 hex
// digest. A size of zero or an empty digest skips that check.
func Verify(path string, size int64, sha256hex string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if size > 0 && info.Size() != size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, info.Size(), size)
	}
	if sha256hex == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, sha256hex) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, sha256hex)
	}
	return nil
}
