package types

import (
	"strconv"
)

// Tree is the self-describing nested key/value form shared by network payloads
// and stored documents. It is what a JSON object decodes to.
type Tree = map[string]any

// TreeOpts selects which view of a document a serialization produces.
// Storage round-trips keep everything; caller-facing views drop the type
// wrapper and redact the owning user.
type TreeOpts struct {
	WithType bool
	WithUser bool
}

var (
	StorageView  = TreeOpts{WithType: true, WithUser: true}
	RedactedView = TreeOpts{WithType: false, WithUser: false}
)

// unwrapType descends into the self-describing wrapper when present.
// A tree of exactly {typeKey: {...}} is the wrapped form; anything else is
// taken as the bare document and validated field by field from there.
func unwrapType(tree Tree, typeKey string) (Tree, error) {
	inner, ok := tree[typeKey]
	if !ok {
		return tree, nil
	}
	if len(tree) != 1 {
		return nil, schemaErr(typeKey, "type wrapper must be the only top-level field")
	}
	m, ok := inner.(map[string]any)
	if !ok {
		return nil, schemaErr(typeKey, "expected an object")
	}
	return m, nil
}

func treeString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", schemaErr(field, "expected a string")
	}
	return s, nil
}

func treeBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, schemaErr(field, "expected a boolean")
	}
	return b, nil
}

func treeInt64(field string, v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		i := int64(n)
		if float64(i) != n {
			return 0, schemaErr(field, "expected an integer")
		}
		return i, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		// Numbers arriving through parameter maps, e.g. query strings.
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, schemaErr(field, "expected an integer")
		}
		return i, nil
	default:
		return 0, schemaErr(field, "expected an integer")
	}
}

func treeObject(field string, v any) (Tree, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schemaErr(field, "expected an object")
	}
	return m, nil
}

func treeArray(field string, v any) ([]any, error) {
	a, ok := v.([]any)
	if !ok {
		return nil, schemaErr(field, "expected an array")
	}
	return a, nil
}
