// Package oracle – image store
//
// Evidence submissions carry opaque image references (storage keys), never
// raw bytes. The ImageStore resolves a reference to the stored photo so the
// verifier can (a) reject malformed evidence before spending a judgment call
// and (b) attach the bytes to the oracle request. The filesystem-backed
// implementation mirrors the original deployment, where technicians' uploads
// land in a flat directory keyed by filename.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnresolvable is returned when an image reference does not resolve to a
// retrievable, non-empty image.
var ErrUnresolvable = errors.New("image reference does not resolve to a non-empty image")

// ImageStore resolves opaque image references into image bytes.
type ImageStore interface {
	// Resolve returns the stored image for ref, or ErrUnresolvable when the
	// reference is missing, empty, or escapes the store.
	Resolve(ctx context.Context, ref string) (Image, error)
}

// FSStore is an ImageStore backed by a single directory of uploaded files.
type FSStore struct {
	// Root is the directory image references are resolved under.
	Root string
}

// Resolve implements ImageStore. References are treated as file names under
// Root; path traversal outside Root is rejected as unresolvable.
func (s *FSStore) Resolve(_ context.Context, ref string) (Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Image{}, ErrUnresolvable
	}

	path := filepath.Join(s.Root, filepath.Clean("/"+ref))
	rel, err := filepath.Rel(s.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Image{}, ErrUnresolvable
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s", ErrUnresolvable, ref)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: %s is empty", ErrUnresolvable, ref)
	}
	return Image{Data: data, MIME: mimeFromExt(path)}, nil
}

// mimeFromExt guesses the image MIME type from the file extension, defaulting
// to JPEG like the original upload handler did.
func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
