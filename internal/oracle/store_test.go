package oracle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newFSStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	root := t.TempDir()
	return &FSStore{Root: root}, root
}

func writeImage(t *testing.T, root, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFSStore_Resolve(t *testing.T) {
	store, root := newFSStore(t)
	writeImage(t, root, "after.png", []byte("png bytes"))

	img, err := store.Resolve(context.Background(), "after.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(img.Data) != "png bytes" {
		t.Fatalf("wrong bytes: %q", img.Data)
	}
	if img.MIME != "image/png" {
		t.Fatalf("wrong mime: %s", img.MIME)
	}
}

func TestFSStore_Resolve_Failures(t *testing.T) {
	store, root := newFSStore(t)
	writeImage(t, root, "empty.jpg", nil)

	// A sibling file outside the root that a traversal would reach.
	outside := filepath.Join(filepath.Dir(root), "secret.jpg")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatalf("write outside file: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(outside) })

	cases := []struct {
		name string
		ref  string
	}{
		{"missing", "nope.jpg"},
		{"blank", "   "},
		{"empty file", "empty.jpg"},
		{"traversal", "../secret.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Resolve(context.Background(), tc.ref); !errors.Is(err, ErrUnresolvable) {
				t.Fatalf("expected ErrUnresolvable, got %v", err)
			}
		})
	}
}

func TestMimeFromExt(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"a.png", "image/png"},
		{"a.PNG", "image/png"},
		{"a.webp", "image/webp"},
		{"a.gif", "image/gif"},
		{"a.jpg", "image/jpeg"},
		{"a.jpeg", "image/jpeg"},
		{"noext", "image/jpeg"},
	}
	for _, tc := range cases {
		if got := mimeFromExt(tc.path); got != tc.want {
			t.Errorf("mimeFromExt(%q) = %s, want %s", tc.path, got, tc.want)
		}
	}
}
