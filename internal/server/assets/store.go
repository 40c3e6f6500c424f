// Package assets stores normalized image files and maps them to the public
// references kept on catalog entries.
package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAssetExists is returned by Store.Write when the name is already taken.
var ErrAssetExists = errors.New("asset already exists")

// ErrInvalidName is returned for names that are not a single path element.
var ErrInvalidName = errors.New("invalid asset name")

// Store is a flat namespace of immutable files.
//
// Write never overwrites: it fails with ErrAssetExists when name is taken.
// Delete of a missing name succeeds.
type Store interface {
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	PublicReference(name string) string
	// NameFromReference reverses PublicReference. ok is false for
	// references that do not belong to this store.
	NameFromReference(ref string) (name string, ok bool)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
