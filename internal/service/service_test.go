package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/arvinsg/index-management/internal/admission"
	"github.com/arvinsg/index-management/internal/backends/mem"
	"github.com/arvinsg/index-management/internal/ports"
	"github.com/arvinsg/index-management/internal/types"
)

type ServiceTestSuite struct {
	suite.Suite

	store *mem.DocStore
	svc   *ConfigService
	ctx   context.Context
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.store = mem.NewDocStore()
	s.svc = New(s.store, admission.NewEngine(s.store, admission.DefaultSettings()))
	s.svc.SetNowFn(func() time.Time { return time.UnixMilli(1724800000000) })
	s.ctx = context.Background()
}

func lron(taskID string) types.LRONConfig {
	return types.LRONConfig{
		Enabled:  true,
		TaskID:   taskID,
		Channels: []types.Channel{{ID: "c1"}},
		User:     &types.User{Name: "admin", BackendRoles: []string{"ops"}, Roles: []string{"all_access"}},
	}
}

func smPolicy(name, repo string) types.SMPolicy {
	return types.SMPolicy{
		Name:           name,
		SnapshotConfig: types.Tree{"repository": repo},
		User:           &types.User{Name: "admin", BackendRoles: []string{"ops"}, Roles: []string{"all_access"}},
	}
}

func (s *ServiceTestSuite) TestLRONLifecycle() {
	created, v1, err := s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.NoError(err)
	s.True(v1.Assigned())
	s.Equal(int64(1724800000000), created.LastUpdatedTime)
	s.Equal(int64(CurrentSchemaVersion), created.SchemaVersion)

	// Duplicate create conflicts.
	_, _, err = s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrConflict))

	got, gotVer, err := s.svc.GetLRONConfig(s.ctx, "task1", "", true)
	s.NoError(err)
	s.Equal(v1, gotVer)
	s.Equal(created, got)

	next := lron("task1")
	next.Channels = append(next.Channels, types.Channel{ID: "c2"})
	updated, v2, err := s.svc.UpdateLRONConfig(s.ctx, next, UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.NoError(err)
	s.Greater(v2.SeqNo, v1.SeqNo)
	s.Len(updated.Channels, 2)

	id, delVer, err := s.svc.DeleteLRONConfig(s.ctx, "task1", "", ports.RefreshImmediate)
	s.NoError(err)
	s.Equal("lron:task1#", id)
	s.Equal(v2, delVer)

	_, _, err = s.svc.GetLRONConfig(s.ctx, "task1", "", true)
	s.True(errors.Is(err, types.ErrNotFound))
}

func (s *ServiceTestSuite) TestLRONUpdateStaleVersion() {
	_, v1, err := s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.NoError(err)
	_, _, err = s.svc.UpdateLRONConfig(s.ctx, lron("task1"), UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.NoError(err)

	_, _, err = s.svc.UpdateLRONConfig(s.ctx, lron("task1"), UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrConflict))
}

func (s *ServiceTestSuite) TestLRONUpdateWithoutVersion() {
	_, _, err := s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.NoError(err)

	// An unassigned precondition is not a free pass.
	_, _, err = s.svc.UpdateLRONConfig(s.ctx, lron("task1"), UpdateOptions{}, ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrConflict))
}

func (s *ServiceTestSuite) TestLRONForceUpdate() {
	_, v1, err := s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.NoError(err)

	_, v2, err := s.svc.UpdateLRONConfig(s.ctx, lron("task1"), UpdateOptions{Force: true}, ports.RefreshImmediate)
	s.NoError(err)
	s.Greater(v2.SeqNo, v1.SeqNo)
}

func (s *ServiceTestSuite) TestLRONUpdateMissing() {
	_, _, err := s.svc.UpdateLRONConfig(s.ctx, lron("ghost"), UpdateOptions{Expected: types.Version{SeqNo: 1, PrimaryTerm: 1}}, ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrNotFound))
}

func (s *ServiceTestSuite) TestLRONGetRedactsUser() {
	_, _, err := s.svc.CreateLRONConfig(s.ctx, lron("task1"), ports.RefreshImmediate)
	s.NoError(err)

	got, _, err := s.svc.GetLRONConfig(s.ctx, "task1", "", false)
	s.NoError(err)
	s.Nil(got.User)

	got, _, err = s.svc.GetLRONConfig(s.ctx, "task1", "", true)
	s.NoError(err)
	s.NotNil(got.User)
	s.Equal("admin", got.User.Name)
}

func (s *ServiceTestSuite) TestCreateInvalidConfigNeverStored() {
	bad := lron("task1")
	bad.Channels = nil
	_, _, err := s.svc.CreateLRONConfig(s.ctx, bad, ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrInvalidDocument))

	_, _, err = s.svc.GetLRONConfig(s.ctx, "task1", "", true)
	s.True(errors.Is(err, types.ErrNotFound))
}

func (s *ServiceTestSuite) TestSMPolicyLifecycle() {
	created, v1, err := s.svc.CreateSMPolicy(s.ctx, smPolicy("p1", "repo-1"), ports.RefreshImmediate)
	s.NoError(err)
	s.True(v1.Assigned())
	// Default deletion policy filled in on create.
	s.Require().NotNil(created.Deletion)
	s.Equal(int64(admission.DefaultMaxSnapshotsPerPolicy), created.Deletion.Condition.MaxCount)

	got, _, err := s.svc.GetSMPolicy(s.ctx, "p1", true)
	s.NoError(err)
	s.Equal(created, got)

	next := smPolicy("p1", "repo-2")
	updated, v2, err := s.svc.UpdateSMPolicy(s.ctx, next, UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.NoError(err)
	s.Greater(v2.SeqNo, v1.SeqNo)
	s.Equal("repo-2", updated.Repository())

	id, _, err := s.svc.DeleteSMPolicy(s.ctx, "p1", ports.RefreshImmediate)
	s.NoError(err)
	s.Equal("p1-sm-policy", id)
}

func (s *ServiceTestSuite) TestSMPolicyRepositoryExclusivity() {
	_, _, err := s.svc.CreateSMPolicy(s.ctx, smPolicy("p1", "repo-1"), ports.RefreshImmediate)
	s.NoError(err)

	_, _, err = s.svc.CreateSMPolicy(s.ctx, smPolicy("p2", "repo-1"), ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrAdmissionDenied))

	// The same policy may keep its repository across an update.
	_, v1, err := s.svc.GetSMPolicy(s.ctx, "p1", true)
	s.NoError(err)
	_, _, err = s.svc.UpdateSMPolicy(s.ctx, smPolicy("p1", "repo-1"), UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.NoError(err)
}

func (s *ServiceTestSuite) TestSMPolicyClampOnUpdate() {
	_, v1, err := s.svc.CreateSMPolicy(s.ctx, smPolicy("p1", "repo-1"), ports.RefreshImmediate)
	s.NoError(err)

	next := smPolicy("p1", "repo-1")
	next.Deletion = &types.DeletionPolicy{Condition: types.DeletionCondition{MaxCount: 9999}}
	updated, _, err := s.svc.UpdateSMPolicy(s.ctx, next, UpdateOptions{Expected: v1}, ports.RefreshImmediate)
	s.NoError(err)
	s.Equal(int64(admission.DefaultMaxSnapshotsPerPolicy), updated.Deletion.Condition.MaxCount)
}

func (s *ServiceTestSuite) TestSMPolicyBlockedRepository() {
	_, _, err := s.svc.CreateSMPolicy(s.ctx, smPolicy("p1", "cs-automated"), ports.RefreshImmediate)
	s.True(errors.Is(err, types.ErrAdmissionDenied))
}
