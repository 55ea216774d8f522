// Package admission holds the store-aware checks that run between parsing a
// document and writing it. Structural invariants are already enforced by the
// document constructors; this layer handles the rules that span documents.
package admission

import (
	"context"
	"fmt"

	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

type Engine struct {
	store    ports.DocStore
	settings Settings
}

func NewEngine(store ports.DocStore, settings Settings) *Engine {
	return &Engine{store: store, settings: settings}
}

func (e *Engine) Settings() Settings { return e.settings }

// AdmitSMPolicy applies the snapshot-policy admission rules and returns the
// document as it will be persisted. excludeID is empty for a create and the
// policy's own doc id for an update, so a policy never conflicts with itself.
//
// The repository-exclusivity check reads the store outside any per-id CAS, so
// it is best-effort under concurrency: two creates racing on different policy
// names can both pass it. The per-id conditional write stays the final
// authority; the worst case is a transient double claim corrected on the next
// write cycle.
func (e *Engine) AdmitSMPolicy(ctx context.Context, p types.SMPolicy, excludeID string) (types.SMPolicy, error) {
	repo := p.Repository()
	for _, blocked := range e.settings.BlockedRepositories {
		if repo == blocked {
			return types.SMPolicy{}, &types.AdmissionError{
				Reason:  types.RepositoryBlocked,
				Message: fmt.Sprintf("repository [%s] is not allowed for snapshot policies", repo),
			}
		}
	}

	ids, err := e.store.SearchByField(ctx, types.SMPolicyRepositoryPath, repo, excludeID)
	if err != nil {
		return types.SMPolicy{}, err
	}
	if len(ids) > 0 {
		return types.SMPolicy{}, &types.AdmissionError{
			Reason:  types.RepositoryConflict,
			Message: fmt.Sprintf("repository [%s] is already claimed by policy document [%s]", repo, ids[0]),
		}
	}

	ceiling := e.settings.DefaultMaxSnapshotsPerPolicy
	switch {
	case p.Deletion == nil && excludeID == "":
		// No deletion policy on create: substitute the default condition.
		p.Deletion = &types.DeletionPolicy{
			Condition: types.DeletionCondition{MaxCount: ceiling},
		}
	case p.Deletion != nil && p.Deletion.Condition.MaxCount > ceiling:
		// Clamp, never reject: out-of-range max_count is reduced to the
		// ceiling and the caller sees the clamped value in the response.
		d := *p.Deletion
		d.Condition.MaxCount = ceiling
		p.Deletion = &d
	}
	return p, nil
}
