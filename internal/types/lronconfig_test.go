package types

import "errors"

func sampleLRONConfig() LRONConfig {
	return LRONConfig{
		Enabled:    true,
		TaskID:     "node_123:456",
		ActionName: "indices:data/write/reindex",
		Channels:   []Channel{{ID: "chan1"}, {ID: "chan2"}},
		User: &User{
			Name:         "admin",
			BackendRoles: []string{"ops"},
			Roles:        []string{"all_access"},
		},
		SuccessMessageTemplate: &Template{Source: "done {{ctx.id}}", Lang: DefaultTemplateLang},
		LastUpdatedTime:        1724800000000,
		SchemaVersion:          1,
	}
}

func (s *UnitTestSuite) TestLRONDocID() {
	s.Equal("lron:node_123:456#indices:data/write/reindex", sampleLRONConfig().DocID())
	s.Equal("lron:#reindex", LRONDocID("", "reindex"))
	s.Equal("lron:abc#", LRONDocID("abc", ""))
}

func (s *UnitTestSuite) TestLRONValidate() {
	c := sampleLRONConfig()
	s.NoError(c.Validate())

	c.TaskID = ""
	c.ActionName = ""
	err := c.Validate()
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))

	c = sampleLRONConfig()
	c.Channels = nil
	err = c.Validate()
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))

	// A disabled config may keep zero channels.
	c.Enabled = false
	s.NoError(c.Validate())
}

func (s *UnitTestSuite) TestLRONRoundTripStorage() {
	c := sampleLRONConfig()
	tree := c.ToTree(StorageView)

	// Storage form is wrapped
	_, ok := tree[LRONConfigField]
	s.True(ok)
	s.Len(tree, 1)

	got, err := ParseLRONConfig(tree)
	s.NoError(err)
	s.Equal(c, got)
}

func (s *UnitTestSuite) TestLRONRoundTripBare() {
	c := sampleLRONConfig()
	got, err := ParseLRONConfig(c.ToTree(TreeOpts{WithType: false, WithUser: true}))
	s.NoError(err)
	s.Equal(c, got)
}

func (s *UnitTestSuite) TestLRONRedactedView() {
	c := sampleLRONConfig()
	tree := c.ToTree(RedactedView)
	_, ok := tree[LRONConfigField]
	s.False(ok)
	_, ok = tree["user"]
	s.False(ok)
}

func (s *UnitTestSuite) TestLRONOptionalFieldsAbsent() {
	c := LRONConfig{
		Enabled:  true,
		TaskID:   "task1",
		Channels: []Channel{{ID: "c1"}},
	}
	tree := c.ToTree(StorageView)
	got, err := ParseLRONConfig(tree)
	s.NoError(err)
	s.Equal(c, got)
	s.Nil(got.User)
	s.Nil(got.SuccessMessageTemplate)
	s.Nil(got.FailedMessageTemplate)
}

func (s *UnitTestSuite) TestLRONEnabledDefaultsTrue() {
	got, err := ParseLRONConfig(Tree{
		"task_id":  "task1",
		"channels": []any{Tree{"id": "c1"}},
	})
	s.NoError(err)
	s.True(got.Enabled)
}

func (s *UnitTestSuite) TestLRONUnknownFieldRejected() {
	_, err := ParseLRONConfig(Tree{
		"task_id":  "task1",
		"channels": []any{Tree{"id": "c1"}},
		"chanels":  []any{},
	})
	s.Error(err)
	var se *SchemaError
	s.True(errors.As(err, &se))
	s.Equal("chanels", se.Field)
	s.True(errors.Is(err, ErrInvalidDocument))
}

func (s *UnitTestSuite) TestLRONUnknownNestedFieldRejected() {
	_, err := ParseLRONConfig(Tree{
		"task_id":  "task1",
		"channels": []any{Tree{"id": "c1", "name": "nope"}},
	})
	s.Error(err)
	var se *SchemaError
	s.True(errors.As(err, &se))
	s.Equal("channels.name", se.Field)
}

func (s *UnitTestSuite) TestLRONWrapperMustBeSoleField() {
	_, err := ParseLRONConfig(Tree{
		LRONConfigField: Tree{"task_id": "task1"},
		"extra":         1,
	})
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))
}

func (s *UnitTestSuite) TestLRONInvariantHoldsThroughParse() {
	// An enabled config without channels cannot enter through the tree form,
	// whether the channels field is absent, null or empty.
	for _, tree := range []Tree{
		{"task_id": "task1", "enabled": true},
		{"task_id": "task1", "enabled": true, "channels": nil},
		{"task_id": "task1", "enabled": true, "channels": []any{}},
	} {
		_, err := ParseLRONConfig(tree)
		s.Error(err)
		s.True(errors.Is(err, ErrInvalidDocument))
	}
}

func (s *UnitTestSuite) TestLRONExplicitNulls() {
	got, err := ParseLRONConfig(Tree{
		"task_id":                  "task1",
		"enabled":                  false,
		"channels":                 nil,
		"user":                     nil,
		"success_message_template": nil,
	})
	s.NoError(err)
	s.Nil(got.Channels)
	s.Nil(got.User)
	s.Nil(got.SuccessMessageTemplate)
}

func (s *UnitTestSuite) TestLRONWrongTypeRejected() {
	_, err := ParseLRONConfig(Tree{"task_id": 42, "channels": []any{Tree{"id": "c1"}}})
	s.Error(err)
	var se *SchemaError
	s.True(errors.As(err, &se))
	s.Equal("task_id", se.Field)

	_, err = ParseLRONConfig(Tree{"task_id": "t", "enabled": "yes", "channels": []any{Tree{"id": "c1"}}})
	s.Error(err)
	s.True(errors.As(err, &se))
	s.Equal("enabled", se.Field)
}

func (s *UnitTestSuite) TestLRONEmptyChannelID() {
	_, err := ParseLRONConfig(Tree{
		"task_id":  "task1",
		"channels": []any{Tree{"id": ""}},
	})
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))
}

func (s *UnitTestSuite) TestLRONTemplateLangDefault() {
	got, err := ParseLRONConfig(Tree{
		"task_id":                 "task1",
		"channels":                []any{Tree{"id": "c1"}},
		"failed_message_template": Tree{"source": "failed: {{ctx.cause}}"},
	})
	s.NoError(err)
	s.NotNil(got.FailedMessageTemplate)
	s.Equal(DefaultTemplateLang, got.FailedMessageTemplate.Lang)
	s.Equal("failed: {{ctx.cause}}", got.FailedMessageTemplate.Source)
}

func (s *UnitTestSuite) TestAddressedLRONPathBodyAgreement() {
	body := Tree{"channels": []any{Tree{"id": "c1"}}}
	got, err := ParseAddressedLRONConfig(body, "task1", "reindex")
	s.NoError(err)
	s.Equal("task1", got.TaskID)
	s.Equal("reindex", got.ActionName)

	// Body stating a different key than the path is rejected.
	body = Tree{"task_id": "other", "channels": []any{Tree{"id": "c1"}}}
	_, err = ParseAddressedLRONConfig(body, "task1", "reindex")
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))

	body = Tree{"action_name": "shrink", "channels": []any{Tree{"id": "c1"}}}
	_, err = ParseAddressedLRONConfig(body, "task1", "reindex")
	s.Error(err)
	s.True(errors.Is(err, ErrInvalidDocument))
}
