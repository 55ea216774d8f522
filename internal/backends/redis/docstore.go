package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/arvinsg/index-management/internal/backends/fieldmatch"
	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

const (
	docKeyTemplate = "_im_doc_%s"
	seqCounterKey  = "_im_seq"

	docField  = "doc"
	seqField  = "seq_no"
	termField = "term"

	// Redis has no primary-term epochs; every revision carries term 1.
	primaryTerm = 1
)

// Script return conventions: {seqNo, term} on success, {-1, 0} for a CAS
// miss (exists on create, stale pair on update), {-2, 0} for a missing id.
const (
	resConflict = -1
	resMissing  = -2
)

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return {-1, 0} end
local seq = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'doc', ARGV[1], 'seq_no', seq, 'term', ARGV[2])
return {seq, tonumber(ARGV[2])}
`)

var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return {-2, 0} end
local cur = redis.call('HMGET', KEYS[1], 'seq_no', 'term')
if tonumber(cur[1]) ~= tonumber(ARGV[2]) or tonumber(cur[2]) ~= tonumber(ARGV[3]) then
  return {-1, 0}
end
local seq = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'doc', ARGV[1], 'seq_no', seq)
return {seq, tonumber(cur[2])}
`)

var deleteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return {-2, 0} end
local cur = redis.call('HMGET', KEYS[1], 'seq_no', 'term')
redis.call('DEL', KEYS[1])
return {tonumber(cur[1]), tonumber(cur[2])}
`)

// DocStore implements ports.DocStore on Redis. A document lives in one hash
// (json blob + version fields); the CAS paths run as Lua scripts so the
// check and the write are a single atomic step. Writes are immediately
// visible, so the refresh hint is a no-op.
type DocStore struct {
	cli *redis.Client
}

func NewDocStore(cli *redis.Client) *DocStore {
	return &DocStore{cli: cli}
}

func (s *DocStore) Get(ctx context.Context, id string) (types.Tree, types.Version, error) {
	out, err := s.cli.HGetAll(ctx, docKey(id)).Result()
	if err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	if len(out) == 0 {
		return nil, types.UnassignedVersion(), types.ErrNotFound
	}
	var doc types.Tree
	if err := json.Unmarshal([]byte(out[docField]), &doc); err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "corrupt document %s", id)
	}
	ver, err := versionFromFields(out[seqField], out[termField])
	if err != nil {
		return nil, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "corrupt version on %s", id)
	}
	return doc, ver, nil
}

func (s *DocStore) CreateOnly(ctx context.Context, id string, doc types.Tree, refresh ports.RefreshPolicy) (types.Version, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	res, err := createScript.Run(ctx, s.cli, []string{docKey(id), seqCounterKey}, string(blob), primaryTerm).Result()
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return scriptVersion(res, types.ErrConflict)
}

func (s *DocStore) UpdateIfVersion(ctx context.Context, id string, doc types.Tree, expected types.Version, refresh ports.RefreshPolicy) (types.Version, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	res, err := updateScript.Run(ctx, s.cli,
		[]string{docKey(id), seqCounterKey},
		string(blob), expected.SeqNo, expected.PrimaryTerm,
	).Result()
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return scriptVersion(res, types.ErrConflict)
}

func (s *DocStore) Delete(ctx context.Context, id string, refresh ports.RefreshPolicy) (types.Version, error) {
	res, err := deleteScript.Run(ctx, s.cli, []string{docKey(id), seqCounterKey}).Result()
	if err != nil {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "")
	}
	return scriptVersion(res, types.ErrConflict)
}

func (s *DocStore) SearchByField(ctx context.Context, fieldPath, value, excludeID string) ([]string, error) {
	keys, err := s.cli.Keys(ctx, docKey("*")).Result()
	if err != nil {
		return nil, types.Err(types.ErrStoreUnavailable, err, "")
	}
	prefix := docKey("")
	var ids []string
	for _, k := range keys {
		id := strings.TrimPrefix(k, prefix)
		if id == "" || id == excludeID {
			continue
		}
		blob, err := s.cli.HGet(ctx, k, docField).Result()
		if err == redis.Nil {
			continue // deleted between KEYS and HGET
		}
		if err != nil {
			return nil, types.Err(types.ErrStoreUnavailable, err, "")
		}
		var doc types.Tree
		if err := json.Unmarshal([]byte(blob), &doc); err != nil {
			return nil, types.Err(types.ErrStoreUnavailable, err, "corrupt document %s", id)
		}
		if fieldmatch.Match(doc, fieldPath, value) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func docKey(id string) string { return fmt.Sprintf(docKeyTemplate, id) }

// scriptVersion decodes the {seq, term} pair a CAS script returns, mapping the
// negative markers onto the typed outcomes.
func scriptVersion(res any, conflictErr error) (types.Version, error) {
	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, nil, "unexpected script reply %v", res)
	}
	seq, ok1 := pair[0].(int64)
	term, ok2 := pair[1].(int64)
	if !ok1 || !ok2 {
		return types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, nil, "unexpected script reply %v", res)
	}
	switch seq {
	case resConflict:
		return types.UnassignedVersion(), conflictErr
	case resMissing:
		return types.UnassignedVersion(), types.ErrNotFound
	}
	return types.Version{SeqNo: seq, PrimaryTerm: term}, nil
}

func versionFromFields(seq, term string) (types.Version, error) {
	var v types.Version
	if _, err := fmt.Sscanf(seq, "%d", &v.SeqNo); err != nil {
		return types.UnassignedVersion(), err
	}
	if _, err := fmt.Sscanf(term, "%d", &v.PrimaryTerm); err != nil {
		return types.UnassignedVersion(), err
	}
	return v, nil
}
