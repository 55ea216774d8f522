package types

import "fmt"

// LRONConfig is the notification setting for one long-running operation,
// identified by task id and/or action name. An enabled config must name at
// least one delivery channel; a disabled one may keep its channels around.
type LRONConfig struct {
	Enabled                bool
	TaskID                 string
	ActionName             string
	Channels               []Channel
	User                   *User
	SuccessMessageTemplate *Template
	FailedMessageTemplate  *Template
	LastUpdatedTime        int64
	SchemaVersion          int64
}

// Channel is a reference to a delivery channel; resolution and delivery happen
// elsewhere.
type Channel struct {
	ID string `json:"id"`
}

// Template is a message template with its template-language tag.
type Template struct {
	Source string `json:"source"`
	Lang   string `json:"lang"`
}

const (
	LRONConfigField             = "lron_config"
	enabledField                = "enabled"
	taskIDField                 = "task_id"
	actionNameField             = "action_name"
	channelsField               = "channels"
	userField                   = "user"
	successMessageTemplateField = "success_message_template"
	failedMessageTemplateField  = "failed_message_template"

	channelIDField      = "id"
	templateSourceField = "source"
	templateLangField   = "lang"

	lastUpdatedTimeField = "last_updated_time"
	schemaVersionField   = "schema_version"

	DefaultTemplateLang = "mustache"

	LRONDocIDPrefix = "lron:"
)

// LRONDocID derives the document id from the config's natural key.
func LRONDocID(taskID, actionName string) string {
	return fmt.Sprintf("%s%s#%s", LRONDocIDPrefix, taskID, actionName)
}

func (c LRONConfig) DocID() string {
	return LRONDocID(c.TaskID, c.ActionName)
}

// Validate enforces the construction invariants. Every path that produces an
// LRONConfig (tree parse, binary decode, direct construction before a write)
// runs it; neither serialization format can bypass it.
func (c LRONConfig) Validate() error {
	if c.TaskID == "" && c.ActionName == "" {
		return Err(ErrInvalidDocument, nil, "lron_config must have task_id or action_name")
	}
	if c.Enabled && len(c.Channels) == 0 {
		return Err(ErrInvalidDocument, nil, "enabled lron_config must contain at least one channel")
	}
	return nil
}

// ToTree serializes the config. c.Channels==nil omits the field entirely;
// an empty non-nil slice serializes as an empty array.
func (c LRONConfig) ToTree(opts TreeOpts) Tree {
	doc := Tree{
		enabledField:         c.Enabled,
		lastUpdatedTimeField: c.LastUpdatedTime,
		schemaVersionField:   c.SchemaVersion,
	}
	if c.TaskID != "" {
		doc[taskIDField] = c.TaskID
	}
	if c.ActionName != "" {
		doc[actionNameField] = c.ActionName
	}
	if c.Channels != nil {
		chs := make([]any, 0, len(c.Channels))
		for _, ch := range c.Channels {
			chs = append(chs, Tree{channelIDField: ch.ID})
		}
		doc[channelsField] = chs
	}
	if opts.WithUser && c.User != nil {
		doc[userField] = c.User.toTree()
	}
	if c.SuccessMessageTemplate != nil {
		doc[successMessageTemplateField] = c.SuccessMessageTemplate.toTree()
	}
	if c.FailedMessageTemplate != nil {
		doc[failedMessageTemplateField] = c.FailedMessageTemplate.toTree()
	}
	if opts.WithType {
		return Tree{LRONConfigField: doc}
	}
	return doc
}

// ParseLRONConfig parses the tree form, wrapped or bare. Unknown fields fail;
// explicit nulls are honored only for nullable fields.
func ParseLRONConfig(tree Tree) (LRONConfig, error) {
	c, err := parseLRONConfigFields(tree)
	if err != nil {
		return LRONConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return LRONConfig{}, err
	}
	return c, nil
}

// ParseAddressedLRONConfig parses a config addressed by its resource path.
// Path and body must agree on the natural key where the body states it.
func ParseAddressedLRONConfig(tree Tree, taskID, actionName string) (LRONConfig, error) {
	c, err := parseLRONConfigFields(tree)
	if err != nil {
		return LRONConfig{}, err
	}
	if c.TaskID == "" {
		c.TaskID = taskID
	} else if c.TaskID != taskID {
		return LRONConfig{}, schemaErr(taskIDField, "does not match the task id in the request path")
	}
	if c.ActionName == "" {
		c.ActionName = actionName
	} else if c.ActionName != actionName {
		return LRONConfig{}, schemaErr(actionNameField, "does not match the action name in the request path")
	}
	if err := c.Validate(); err != nil {
		return LRONConfig{}, err
	}
	return c, nil
}

func parseLRONConfigFields(tree Tree) (LRONConfig, error) {
	doc, err := unwrapType(tree, LRONConfigField)
	if err != nil {
		return LRONConfig{}, err
	}
	c := LRONConfig{Enabled: true} // enabled defaults to true when omitted
	for k, v := range doc {
		switch k {
		case enabledField:
			if c.Enabled, err = treeBool(k, v); err != nil {
				return LRONConfig{}, err
			}
		case taskIDField:
			if v != nil {
				if c.TaskID, err = treeString(k, v); err != nil {
					return LRONConfig{}, err
				}
			}
		case actionNameField:
			if v != nil {
				if c.ActionName, err = treeString(k, v); err != nil {
					return LRONConfig{}, err
				}
			}
		case channelsField:
			if v != nil {
				if c.Channels, err = parseChannels(k, v); err != nil {
					return LRONConfig{}, err
				}
			}
		case userField:
			if c.User, err = parseUser(k, v); err != nil {
				return LRONConfig{}, err
			}
		case successMessageTemplateField:
			if c.SuccessMessageTemplate, err = parseTemplate(k, v); err != nil {
				return LRONConfig{}, err
			}
		case failedMessageTemplateField:
			if c.FailedMessageTemplate, err = parseTemplate(k, v); err != nil {
				return LRONConfig{}, err
			}
		case lastUpdatedTimeField:
			if c.LastUpdatedTime, err = treeInt64(k, v); err != nil {
				return LRONConfig{}, err
			}
		case schemaVersionField:
			if c.SchemaVersion, err = treeInt64(k, v); err != nil {
				return LRONConfig{}, err
			}
		default:
			return LRONConfig{}, schemaErr(k, "")
		}
	}
	return c, nil
}

func parseChannels(field string, v any) ([]Channel, error) {
	arr, err := treeArray(field, v)
	if err != nil {
		return nil, err
	}
	channels := make([]Channel, 0, len(arr))
	for _, e := range arr {
		m, err := treeObject(field, e)
		if err != nil {
			return nil, err
		}
		var ch Channel
		for k, cv := range m {
			switch k {
			case channelIDField:
				if ch.ID, err = treeString(field+"."+k, cv); err != nil {
					return nil, err
				}
			default:
				return nil, schemaErr(field+"."+k, "")
			}
		}
		if ch.ID == "" {
			return nil, schemaErr(field, "channel id must not be empty")
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (t Template) toTree() Tree {
	return Tree{templateSourceField: t.Source, templateLangField: t.Lang}
}

func parseTemplate(field string, v any) (*Template, error) {
	if v == nil {
		return nil, nil
	}
	m, err := treeObject(field, v)
	if err != nil {
		return nil, err
	}
	t := Template{Lang: DefaultTemplateLang}
	for k, tv := range m {
		switch k {
		case templateSourceField:
			if t.Source, err = treeString(field+"."+k, tv); err != nil {
				return nil, err
			}
		case templateLangField:
			if t.Lang, err = treeString(field+"."+k, tv); err != nil {
				return nil, err
			}
		default:
			return nil, schemaErr(field+"."+k, "")
		}
	}
	return &t, nil
}
