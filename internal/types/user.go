package types

// User is the identity principal that owns a document. It is persisted with
// the document but stripped from caller-facing views unless the caller has
// elevated visibility.
type User struct {
	Name         string   `json:"name"`
	BackendRoles []string `json:"backend_roles"`
	Roles        []string `json:"roles"`
}

const (
	userNameField         = "name"
	userBackendRolesField = "backend_roles"
	userRolesField        = "roles"
)

func (u User) toTree() Tree {
	return Tree{
		userNameField:         u.Name,
		userBackendRolesField: stringsToAny(u.BackendRoles),
		userRolesField:        stringsToAny(u.Roles),
	}
}

func parseUser(field string, v any) (*User, error) {
	if v == nil {
		return nil, nil
	}
	m, err := treeObject(field, v)
	if err != nil {
		return nil, err
	}
	var u User
	for k, fv := range m {
		switch k {
		case userNameField:
			if u.Name, err = treeString(field+"."+k, fv); err != nil {
				return nil, err
			}
		case userBackendRolesField:
			if u.BackendRoles, err = parseStrings(field+"."+k, fv); err != nil {
				return nil, err
			}
		case userRolesField:
			if u.Roles, err = parseStrings(field+"."+k, fv); err != nil {
				return nil, err
			}
		default:
			return nil, schemaErr(field+"."+k, "")
		}
	}
	return &u, nil
}

func parseStrings(field string, v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	arr, err := treeArray(field, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, err := treeString(field, e)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
