// Package mem is an in-process DocStore with the same CAS semantics as the
// real backends. It backs unit and end-to-end tests and local development.
package mem

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/arvinsg/index-management/internal/backends/fieldmatch"
	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

type record struct {
	doc types.Tree
	ver types.Version
}

type DocStore struct {
	mu   sync.RWMutex
	docs map[string]record
	// seq is store-wide, like a translog position; per-id versions still
	// strictly advance because every accepted write bumps it.
	seq  int64
	term int64
}

func NewDocStore() *DocStore {
	return &DocStore{docs: make(map[string]record), term: 1}
}

func (s *DocStore) Get(ctx context.Context, id string) (types.Tree, types.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok {
		return nil, types.UnassignedVersion(), types.ErrNotFound
	}
	return copyTree(rec.doc), rec.ver, nil
}

func (s *DocStore) CreateOnly(ctx context.Context, id string, doc types.Tree, refresh ports.RefreshPolicy) (types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; ok {
		return types.UnassignedVersion(), types.ErrConflict
	}
	s.seq++
	ver := types.Version{SeqNo: s.seq, PrimaryTerm: s.term}
	s.docs[id] = record{doc: copyTree(doc), ver: ver}
	return ver, nil
}

func (s *DocStore) UpdateIfVersion(ctx context.Context, id string, doc types.Tree, expected types.Version, refresh ports.RefreshPolicy) (types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	if !ok {
		return types.UnassignedVersion(), types.ErrNotFound
	}
	if rec.ver != expected {
		return types.UnassignedVersion(), types.ErrConflict
	}
	s.seq++
	ver := types.Version{SeqNo: s.seq, PrimaryTerm: s.term}
	s.docs[id] = record{doc: copyTree(doc), ver: ver}
	return ver, nil
}

func (s *DocStore) Delete(ctx context.Context, id string, refresh ports.RefreshPolicy) (types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	if !ok {
		return types.UnassignedVersion(), types.ErrNotFound
	}
	delete(s.docs, id)
	return rec.ver, nil
}

func (s *DocStore) SearchByField(ctx context.Context, fieldPath, value, excludeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, rec := range s.docs {
		if id == excludeID {
			continue
		}
		if fieldmatch.Match(rec.doc, fieldPath, value) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// copyTree detaches stored trees from caller-held maps. Round-tripping through
// JSON is slower than a hand-rolled walk but shares the exact coercion rules
// the real backends have.
func copyTree(t types.Tree) types.Tree {
	b, err := json.Marshal(t)
	if err != nil {
		// Trees come from decoded JSON; re-encoding them cannot fail.
		panic(err)
	}
	var out types.Tree
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
