// Package service orchestrates the configuration-document lifecycle: derive
// the document id, run admission, issue the conditional store write, and hand
// the typed outcome back. It holds no mutable state of its own; all
// coordination lives in the store's per-id check-and-set.
package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arvinsg/index-management/internal/admission"
	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

// CurrentSchemaVersion is stamped on every accepted write and drives forward
// migrations of stored documents.
const CurrentSchemaVersion = 1

type ConfigService struct {
	store ports.DocStore
	eng   *admission.Engine
	now   func() time.Time
}

func New(store ports.DocStore, eng *admission.Engine) *ConfigService {
	return &ConfigService{store: store, eng: eng, now: time.Now}
}

// SetNowFn overrides the clock used for last_updated_time stamps. Tests only.
func (s *ConfigService) SetNowFn(f func() time.Time) { s.now = f }

// UpdateOptions carries the caller's optimistic-concurrency precondition.
// Force skips the precondition and is reserved for internal migration paths;
// external callers always supply the version pair they last observed.
type UpdateOptions struct {
	Expected types.Version
	Force    bool
}

func (s *ConfigService) stamp(t *int64, v *int64) {
	*t = s.now().UnixMilli()
	*v = CurrentSchemaVersion
}

// resolveExpected turns the update options into the concrete precondition.
// A forced update reads the current version and names it; a concurrent writer
// slipping in between still surfaces as a conflict rather than a lost update.
func (s *ConfigService) resolveExpected(ctx context.Context, id string, opts UpdateOptions) (types.Version, error) {
	if !opts.Force {
		if !opts.Expected.Assigned() {
			return types.UnassignedVersion(), types.Err(types.ErrConflict, nil, "update of %s requires the observed seq_no and primary_term", id)
		}
		return opts.Expected, nil
	}
	_, ver, err := s.store.Get(ctx, id)
	if err != nil {
		return types.UnassignedVersion(), err
	}
	return ver, nil
}

// --- operation-notification configs ---

func (s *ConfigService) CreateLRONConfig(ctx context.Context, c types.LRONConfig, refresh ports.RefreshPolicy) (types.LRONConfig, types.Version, error) {
	if err := c.Validate(); err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	s.stamp(&c.LastUpdatedTime, &c.SchemaVersion)
	id := c.DocID()
	ver, err := s.store.CreateOnly(ctx, id, c.ToTree(types.StorageView), refresh)
	if err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("created lron_config")
	return c, ver, nil
}

func (s *ConfigService) UpdateLRONConfig(ctx context.Context, c types.LRONConfig, opts UpdateOptions, refresh ports.RefreshPolicy) (types.LRONConfig, types.Version, error) {
	if err := c.Validate(); err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	id := c.DocID()
	expected, err := s.resolveExpected(ctx, id, opts)
	if err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	s.stamp(&c.LastUpdatedTime, &c.SchemaVersion)
	ver, err := s.store.UpdateIfVersion(ctx, id, c.ToTree(types.StorageView), expected, refresh)
	if err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("updated lron_config")
	return c, ver, nil
}

// GetLRONConfig returns the stored config. Unless the caller has elevated
// visibility, the owning user is stripped from the view.
func (s *ConfigService) GetLRONConfig(ctx context.Context, taskID, actionName string, elevated bool) (types.LRONConfig, types.Version, error) {
	id := types.LRONDocID(taskID, actionName)
	tree, ver, err := s.store.Get(ctx, id)
	if err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), err
	}
	c, err := types.ParseLRONConfig(tree)
	if err != nil {
		return types.LRONConfig{}, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "stored document %s failed to parse", id)
	}
	if !elevated {
		c.User = nil
	}
	return c, ver, nil
}

func (s *ConfigService) DeleteLRONConfig(ctx context.Context, taskID, actionName string, refresh ports.RefreshPolicy) (string, types.Version, error) {
	id := types.LRONDocID(taskID, actionName)
	ver, err := s.store.Delete(ctx, id, refresh)
	if err != nil {
		return "", types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("deleted lron_config")
	return id, ver, nil
}

// --- snapshot-management policies ---

func (s *ConfigService) CreateSMPolicy(ctx context.Context, p types.SMPolicy, refresh ports.RefreshPolicy) (types.SMPolicy, types.Version, error) {
	if err := p.Validate(); err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	p, err := s.eng.AdmitSMPolicy(ctx, p, "")
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	s.stamp(&p.LastUpdatedTime, &p.SchemaVersion)
	id := p.DocID()
	ver, err := s.store.CreateOnly(ctx, id, p.ToTree(types.StorageView), refresh)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("created sm_policy")
	return p, ver, nil
}

func (s *ConfigService) UpdateSMPolicy(ctx context.Context, p types.SMPolicy, opts UpdateOptions, refresh ports.RefreshPolicy) (types.SMPolicy, types.Version, error) {
	if err := p.Validate(); err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	id := p.DocID()
	expected, err := s.resolveExpected(ctx, id, opts)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	p, err = s.eng.AdmitSMPolicy(ctx, p, id)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	s.stamp(&p.LastUpdatedTime, &p.SchemaVersion)
	ver, err := s.store.UpdateIfVersion(ctx, id, p.ToTree(types.StorageView), expected, refresh)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("updated sm_policy")
	return p, ver, nil
}

func (s *ConfigService) GetSMPolicy(ctx context.Context, policyName string, elevated bool) (types.SMPolicy, types.Version, error) {
	id := types.SMPolicyDocID(policyName)
	tree, ver, err := s.store.Get(ctx, id)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), err
	}
	p, err := types.ParseSMPolicy(tree)
	if err != nil {
		return types.SMPolicy{}, types.UnassignedVersion(), types.Err(types.ErrStoreUnavailable, err, "stored document %s failed to parse", id)
	}
	if !elevated {
		p.User = nil
	}
	return p, ver, nil
}

func (s *ConfigService) DeleteSMPolicy(ctx context.Context, policyName string, refresh ports.RefreshPolicy) (string, types.Version, error) {
	id := types.SMPolicyDocID(policyName)
	ver, err := s.store.Delete(ctx, id, refresh)
	if err != nil {
		return "", types.UnassignedVersion(), err
	}
	log.WithFields(log.Fields{"id": id, "version": ver}).Debug("deleted sm_policy")
	return id, ver, nil
}
