package types

import "fmt"

// SMPolicy is a snapshot-management policy. The policy name is the unique
// natural key; snapshot_config is free-form except for the repository entry,
// which admission control reasons about.
type SMPolicy struct {
	Name            string
	Description     string
	SnapshotConfig  Tree
	Deletion        *DeletionPolicy
	Priority        *int64
	User            *User
	LastUpdatedTime int64
	SchemaVersion   int64
}

type DeletionPolicy struct {
	Condition DeletionCondition
}

type DeletionCondition struct {
	MaxCount int64
}

const (
	SMPolicyField       = "sm_policy"
	nameField           = "name"
	descriptionField    = "description"
	snapshotConfigField = "snapshot_config"
	deletionField       = "deletion"
	conditionField      = "condition"
	maxCountField       = "max_count"
	priorityField       = "priority"

	RepositoryField = "repository"

	// SMPolicyRepositoryPath is the field path the admission engine searches on.
	SMPolicyRepositoryPath = snapshotConfigField + "." + RepositoryField

	smDocIDSuffix = "-sm-policy"
)

// SMPolicyDocID derives the document id from the policy name.
func SMPolicyDocID(policyName string) string {
	return policyName + smDocIDSuffix
}

func (p SMPolicy) DocID() string {
	return SMPolicyDocID(p.Name)
}

// Repository returns the repository entry of snapshot_config, or "" when it is
// missing or not a string.
func (p SMPolicy) Repository() string {
	s, _ := p.SnapshotConfig[RepositoryField].(string)
	return s
}

func (p SMPolicy) Validate() error {
	if p.Name == "" {
		return Err(ErrInvalidDocument, nil, "sm_policy must have a name")
	}
	if p.Repository() == "" {
		return Err(ErrInvalidDocument, nil, "sm_policy snapshot_config must name a repository")
	}
	return nil
}

func (p SMPolicy) ToTree(opts TreeOpts) Tree {
	doc := Tree{
		nameField:            p.Name,
		snapshotConfigField:  p.SnapshotConfig,
		lastUpdatedTimeField: p.LastUpdatedTime,
		schemaVersionField:   p.SchemaVersion,
	}
	if p.Description != "" {
		doc[descriptionField] = p.Description
	}
	if p.Deletion != nil {
		doc[deletionField] = Tree{
			conditionField: Tree{maxCountField: p.Deletion.Condition.MaxCount},
		}
	}
	if p.Priority != nil {
		doc[priorityField] = *p.Priority
	}
	if opts.WithUser && p.User != nil {
		doc[userField] = p.User.toTree()
	}
	if opts.WithType {
		return Tree{SMPolicyField: doc}
	}
	return doc
}

// ParseSMPolicy parses the tree form, wrapped or bare, strictly. The contents
// of snapshot_config are not schema-checked beyond being an object; everything
// else is.
func ParseSMPolicy(tree Tree) (SMPolicy, error) {
	p, err := parseSMPolicyFields(tree)
	if err != nil {
		return SMPolicy{}, err
	}
	if err := p.Validate(); err != nil {
		return SMPolicy{}, err
	}
	return p, nil
}

// ParseNamedSMPolicy parses a policy whose name arrives out of band (the URL
// path). A body that names itself must agree with the path.
func ParseNamedSMPolicy(tree Tree, policyName string) (SMPolicy, error) {
	p, err := parseSMPolicyFields(tree)
	if err != nil {
		return SMPolicy{}, err
	}
	if p.Name == "" {
		p.Name = policyName
	} else if p.Name != policyName {
		return SMPolicy{}, schemaErr(nameField, "does not match the policy name in the request path")
	}
	if err := p.Validate(); err != nil {
		return SMPolicy{}, err
	}
	return p, nil
}

func parseSMPolicyFields(tree Tree) (SMPolicy, error) {
	doc, err := unwrapType(tree, SMPolicyField)
	if err != nil {
		return SMPolicy{}, err
	}
	var p SMPolicy
	for k, v := range doc {
		switch k {
		case nameField:
			if p.Name, err = treeString(k, v); err != nil {
				return SMPolicy{}, err
			}
		case descriptionField:
			if v != nil {
				if p.Description, err = treeString(k, v); err != nil {
					return SMPolicy{}, err
				}
			}
		case snapshotConfigField:
			if p.SnapshotConfig, err = treeObject(k, v); err != nil {
				return SMPolicy{}, err
			}
		case deletionField:
			if v != nil {
				if p.Deletion, err = parseDeletion(k, v); err != nil {
					return SMPolicy{}, err
				}
			}
		case priorityField:
			if v != nil {
				n, err := treeInt64(k, v)
				if err != nil {
					return SMPolicy{}, err
				}
				p.Priority = &n
			}
		case userField:
			if p.User, err = parseUser(k, v); err != nil {
				return SMPolicy{}, err
			}
		case lastUpdatedTimeField:
			if p.LastUpdatedTime, err = treeInt64(k, v); err != nil {
				return SMPolicy{}, err
			}
		case schemaVersionField:
			if p.SchemaVersion, err = treeInt64(k, v); err != nil {
				return SMPolicy{}, err
			}
		default:
			return SMPolicy{}, schemaErr(k, "")
		}
	}
	return p, nil
}

func parseDeletion(field string, v any) (*DeletionPolicy, error) {
	m, err := treeObject(field, v)
	if err != nil {
		return nil, err
	}
	var d DeletionPolicy
	seenCondition := false
	for k, dv := range m {
		switch k {
		case conditionField:
			cm, err := treeObject(field+"."+k, dv)
			if err != nil {
				return nil, err
			}
			for ck, cv := range cm {
				switch ck {
				case maxCountField:
					if d.Condition.MaxCount, err = treeInt64(fmt.Sprintf("%s.%s.%s", field, k, ck), cv); err != nil {
						return nil, err
					}
				default:
					return nil, schemaErr(fmt.Sprintf("%s.%s.%s", field, k, ck), "")
				}
			}
			seenCondition = true
		default:
			return nil, schemaErr(field+"."+k, "")
		}
	}
	if !seenCondition {
		return nil, schemaErr(field, "deletion policy must carry a condition")
	}
	if d.Condition.MaxCount <= 0 {
		return nil, schemaErr(field+"."+conditionField+"."+maxCountField, "must be positive")
	}
	return &d, nil
}
