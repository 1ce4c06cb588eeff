package routekit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/cespare/xxhash/v2"
)

// NewHasher creates a new hash.Hash for the given algorithm.
// Returns an error if the algorithm is not supported.
func NewHasher(algorithm ChecksumAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumCRC32:
		return crc32.NewIEEE(), nil
	case ChecksumXXHash:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported checksum algorithm: %s", ErrNotSupported, algorithm)
	}
}

// CalculateChecksum reads from the reader and calculates the checksum using
// the specified algorithm. Returns the hex-encoded checksum string.
func CalculateChecksum(r io.Reader, algorithm ChecksumAlgorithm) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyCopy compares the xxhash of src and dst. It reports
// ErrNotSupported when fs cannot checksum, and ErrChecksumMismatch when the
// two files differ.
func VerifyCopy(ctx context.Context, fs FileSystem, src, dst string) error {
	checksummer, ok := fs.(CanChecksum)
	if !ok {
		return fmt.Errorf("%w: filesystem does not support checksums", ErrNotSupported)
	}

	want, err := checksummer.Checksum(ctx, src, ChecksumXXHash)
	if err != nil {
		return err
	}
	got, err := checksummer.Checksum(ctx, dst, ChecksumXXHash)
	if err != nil {
		return err
	}
	if want != got {
		return &PathError{Op: "verify", Path: dst, Err: ErrChecksumMismatch}
	}
	return nil
}
