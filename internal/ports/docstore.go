package ports

import (
	"context"
	"fmt"

	"github.com/arvinsg/index-management/internal/types"
)

// RefreshPolicy is the store-visibility hint for a write, passed through from
// the REST surface unchanged. Backends without deferred visibility ignore it.
type RefreshPolicy string

const (
	RefreshImmediate RefreshPolicy = "true"
	RefreshNone      RefreshPolicy = "false"
	RefreshWaitFor   RefreshPolicy = "wait_for"
)

func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch RefreshPolicy(s) {
	case RefreshImmediate, RefreshNone, RefreshWaitFor:
		return RefreshPolicy(s), nil
	}
	return "", fmt.Errorf("unknown refresh policy %q", s)
}

// DocStore is the versioned document store backing the config service.
// Documents are stored in their self-describing tree form (type wrapper and
// user kept). Implementations MUST provide atomic check-and-set per id;
// no ordering is guaranteed across distinct ids.
//
// I/O failures MUST be surfaced wrapping types.ErrStoreUnavailable and MUST
// NOT be retried inside the store; the caller decides whether to retry.
type DocStore interface {
	// Get returns the document and its current version.
	// MUST return types.ErrNotFound if the id does not exist.
	Get(ctx context.Context, id string) (types.Tree, types.Version, error)

	// CreateOnly writes a document only if the id does not exist yet and
	// returns the assigned version. MUST return types.ErrConflict when the id
	// is already present; MUST NOT overwrite.
	CreateOnly(ctx context.Context, id string, doc types.Tree, refresh RefreshPolicy) (types.Version, error)

	// UpdateIfVersion replaces the whole document only if the current version
	// equals expected, and returns the new, strictly greater version.
	// MUST return types.ErrConflict on a stale pair and types.ErrNotFound on a
	// missing id.
	UpdateIfVersion(ctx context.Context, id string, doc types.Tree, expected types.Version, refresh RefreshPolicy) (types.Version, error)

	// Delete removes the document and returns the version it had.
	// MUST return types.ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id string, refresh RefreshPolicy) (types.Version, error)

	// SearchByField returns the ids of documents whose field at fieldPath
	// (a path into the bare document, inside the type wrapper) equals value.
	// excludeID, when non-empty, is left out of the result. The scan is a
	// point-in-time listing, not isolated from concurrent writers.
	SearchByField(ctx context.Context, fieldPath, value, excludeID string) ([]string, error)
}
