package gateways

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// checksumVerifier computes and checks file digests
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

func newHash(kind entities.ChecksumKind) (hash.Hash, error) {
	switch kind {
	case entities.ChecksumSHA256:
		return sha256.New(), nil
	case entities.ChecksumSHA512:
		return sha512.New(), nil
	case entities.ChecksumBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum kind %q", kind)
	}
}

// Checksum returns the lowercase hex digest of a file
func (v *checksumVerifier) Checksum(ctx context.Context, filePath string, kind entities.ChecksumKind) (string, error) {
	h, err := newHash(kind)
	if err != nil {
		return "", err
	}

	//nolint:gosec // G304: File path comes from the artifact cache
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if _, err := io.Copy(h, &contextReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies a file's digest against an expected hex value
func (v *checksumVerifier) VerifyChecksum(ctx context.Context, filePath string, expected entities.Checksum) error {
	actual, err := v.Checksum(ctx, filePath, expected.Kind)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected.Value) {
		return fmt.Errorf("%s mismatch: expected %s, got %s", expected.Kind, expected.Value, actual)
	}

	return nil
}

// contextReader stops reading once ctx is done so hashing large files can be canceled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
