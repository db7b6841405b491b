// Package assets maps stored image references to files, substituting a
// placeholder image when a reference cannot be found.
package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"muzzlewatch/internal/imaging"
)

const (
	// PlaceholderSize is the edge length of the generated placeholder in pixels.
	PlaceholderSize = 300
	// PlaceholderText is drawn in the middle of the placeholder.
	PlaceholderText = "No image"
)

// AssetStore answers whether a stored reference exists and where it lives.
type AssetStore interface {
	Exists(name string) bool
	Path(name string) string
}

// Asset is the result of resolving a reference. Found is false when Path
// points at the placeholder.
type Asset struct {
	Path  string
	Found bool
}

// Resolver resolves references against an AssetStore.
type Resolver struct {
	store       AssetStore
	placeholder string
}

// NewResolver creates a resolver that falls back to placeholder.
func NewResolver(store AssetStore, placeholder string) *Resolver {
	return &Resolver{store: store, placeholder: placeholder}
}

// Placeholder returns the placeholder path.
func (r *Resolver) Placeholder() string {
	return r.placeholder
}

// Resolve never fails: missing, empty or unsafe references resolve to the placeholder.
func (r *Resolver) Resolve(ref string) Asset {
	if ref != "" && r.store.Exists(ref) {
		if path := r.store.Path(ref); path != "" {
			return Asset{Path: path, Found: true}
		}
	}
	return Asset{Path: r.placeholder, Found: false}
}

// EnsurePlaceholder writes the placeholder image to path unless a file is already there.
func EnsurePlaceholder(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat placeholder: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create placeholder directory: %w", err)
	}
	return imaging.Save(path, imaging.Placeholder(PlaceholderSize, PlaceholderText))
}
