// Package asset stores uploaded images, template thumbnails and exported
// certificates, on local disk or in an S3-compatible bucket.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("asset not found")
	ErrInvalidKey = errors.New("invalid asset key")
)

// Storage is a flat key/value blob store. Keys are slash-separated paths
// such as "org_1/jane_doe/certificate_1700000000000.pdf".
type Storage interface {
	// Put stores the object and returns a URL it can be downloaded from.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey normalizes key and rejects keys that escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// SanitizeSegment makes s safe for use as one key segment: every rune
// outside [A-Za-z0-9_-] becomes an underscore.
func SanitizeSegment(s string) string {
	out := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
	if out == "" {
		return "_"
	}
	return out
}
