// Package checksum fingerprints encoded snapshots so identical recordings
// can be recognised in the store.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/xxh3"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	// XXH3 is a fast non-cryptographic 64-bit hash
	XXH3 Algorithm = "xxh3"
)

// Options configures the checksum calculator
type Options struct {
	// MaxSize: inputs larger than this are rejected (0 = unlimited)
	MaxSize int64

	// BufferSize: size of buffer for streaming reads
	BufferSize int
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		MaxSize:    0,
		BufferSize: 32 * 1024,
	}
}

// Calculator computes checksums of streamed content
type Calculator interface {
	Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error)
}

// DefaultCalculator implements Calculator with streaming reads
type DefaultCalculator struct {
	opts Options
}

// NewCalculator creates a new calculator with the given options
func NewCalculator(opts Options) *DefaultCalculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	return &DefaultCalculator{opts: opts}
}

// NewDefaultCalculator creates a calculator with default options
func NewDefaultCalculator() *DefaultCalculator {
	return NewCalculator(DefaultOptions())
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case XXH3:
		return xxh3.New(), nil
	}
	return nil, fmt.Errorf("unsupported algorithm: %s", algo)
}

// Calculate streams reader through the hash and returns it hex-encoded.
// The context is checked between buffer reads.
func (c *DefaultCalculator) Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	var r io.Reader = reader
	if c.opts.MaxSize > 0 {
		r = io.LimitReader(reader, c.opts.MaxSize+1)
	}

	buffer := make([]byte, c.opts.BufferSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buffer)
		if n > 0 {
			total += int64(n)
			if c.opts.MaxSize > 0 && total > c.opts.MaxSize {
				return "", fmt.Errorf("input exceeds maximum size (%d bytes)", c.opts.MaxSize)
			}
			h.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	_, err := newHash(algo)
	return err == nil
}
