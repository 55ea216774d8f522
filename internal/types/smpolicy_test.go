package types

import "errors"

func sampleSMPolicy() SMPolicy {
	prio := int64(10)
	return SMPolicy{
		Name:        "daily-backup",
		Description: "nightly snapshots of the logs indices",
		SnapshotConfig: Tree{
			"repository": "repo-1",
			"indices":    "logs-*",
			"partial":    false,
		},
		Deletion: &DeletionPolicy{Condition: DeletionCondition{MaxCount: 21}},
		Priority: &prio,
		User: &User{
			Name:         "admin",
			BackendRoles: []string{"ops"},
			Roles:        []string{"all_access"},
		},
		LastUpdatedTime: 1724800000000,
		SchemaVersion:   1,
	}
}

func (s *UnitTestSuite) TestSMPolicyDocID() {
	s.Equal("daily-backup-sm-policy", sampleSMPolicy().DocID())
	s.Equal("x-sm-policy", SMPolicyDocID("x"))
}

func (s *UnitTestSuite) TestSMPolicyValidate() {
	p := sampleSMPolicy()
	s.NoError(p.Validate())

	p.Name = ""
	s.True(errors.Is(p.Validate(), ErrInvalidDocument))

	p = sampleSMPolicy()
	p.SnapshotConfig = Tree{"indices": "logs-*"}
	s.True(errors.Is(p.Validate(), ErrInvalidDocument))

	// A non-string repository entry counts as missing.
	p.SnapshotConfig = Tree{"repository": 42}
	s.True(errors.Is(p.Validate(), ErrInvalidDocument))
}

func (s *UnitTestSuite) TestSMPolicyRepository() {
	s.Equal("repo-1", sampleSMPolicy().Repository())
	s.Equal("", SMPolicy{SnapshotConfig: Tree{}}.Repository())
}

func (s *UnitTestSuite) TestSMPolicyRoundTripStorage() {
	p := sampleSMPolicy()
	tree := p.ToTree(StorageView)
	_, ok := tree[SMPolicyField]
	s.True(ok)
	s.Len(tree, 1)

	got, err := ParseSMPolicy(tree)
	s.NoError(err)
	s.Equal(p, got)
}

func (s *UnitTestSuite) TestSMPolicyRoundTripBare() {
	p := sampleSMPolicy()
	got, err := ParseSMPolicy(p.ToTree(TreeOpts{WithType: false, WithUser: true}))
	s.NoError(err)
	s.Equal(p, got)
}

func (s *UnitTestSuite) TestSMPolicyOptionalFieldsAbsent() {
	p := SMPolicy{
		Name:           "min",
		SnapshotConfig: Tree{"repository": "repo-1"},
	}
	got, err := ParseSMPolicy(p.ToTree(StorageView))
	s.NoError(err)
	s.Equal(p, got)
	s.Nil(got.Deletion)
	s.Nil(got.Priority)
	s.Nil(got.User)
}

func (s *UnitTestSuite) TestSMPolicyRedactedView() {
	tree := sampleSMPolicy().ToTree(RedactedView)
	_, ok := tree[SMPolicyField]
	s.False(ok)
	_, ok = tree["user"]
	s.False(ok)
}

func (s *UnitTestSuite) TestSMPolicyUnknownFieldRejected() {
	_, err := ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"scheduled":       true,
	})
	s.Error(err)
	var se *SchemaError
	s.True(errors.As(err, &se))
	s.Equal("scheduled", se.Field)
}

func (s *UnitTestSuite) TestSMPolicySnapshotConfigIsFreeForm() {
	got, err := ParseSMPolicy(Tree{
		"name": "p1",
		"snapshot_config": Tree{
			"repository":           "repo-1",
			"some_plugin_specific": Tree{"anything": []any{1.0, "two"}},
		},
	})
	s.NoError(err)
	s.Equal("repo-1", got.Repository())
}

func (s *UnitTestSuite) TestSMPolicyDeletionStrict() {
	// Condition is required inside a deletion policy,
	_, err := ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"deletion":        Tree{},
	})
	s.True(errors.Is(err, ErrInvalidDocument))

	// max_count must be positive,
	_, err = ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"deletion":        Tree{"condition": Tree{"max_count": int64(0)}},
	})
	s.True(errors.Is(err, ErrInvalidDocument))

	// and nothing beyond max_count is understood yet.
	_, err = ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"deletion":        Tree{"condition": Tree{"max_age": "7d"}},
	})
	var se *SchemaError
	s.True(errors.As(err, &se))
	s.Equal("deletion.condition.max_age", se.Field)
}

func (s *UnitTestSuite) TestSMPolicyNumbersFromJSON() {
	// Numbers decoded from JSON arrive as float64.
	got, err := ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"deletion":        Tree{"condition": Tree{"max_count": 7.0}},
		"priority":        3.0,
	})
	s.NoError(err)
	s.Equal(int64(7), got.Deletion.Condition.MaxCount)
	s.Equal(int64(3), *got.Priority)

	_, err = ParseSMPolicy(Tree{
		"name":            "p1",
		"snapshot_config": Tree{"repository": "repo-1"},
		"priority":        3.5,
	})
	s.True(errors.Is(err, ErrInvalidDocument))
}

func (s *UnitTestSuite) TestNamedSMPolicyPathBodyAgreement() {
	got, err := ParseNamedSMPolicy(Tree{"snapshot_config": Tree{"repository": "repo-1"}}, "p1")
	s.NoError(err)
	s.Equal("p1", got.Name)

	got, err = ParseNamedSMPolicy(Tree{"name": "p1", "snapshot_config": Tree{"repository": "repo-1"}}, "p1")
	s.NoError(err)
	s.Equal("p1", got.Name)

	_, err = ParseNamedSMPolicy(Tree{"name": "p2", "snapshot_config": Tree{"repository": "repo-1"}}, "p1")
	s.True(errors.Is(err, ErrInvalidDocument))
}
