// Package fieldmatch evaluates DocStore search paths against stored document
// trees. All backends answer SearchByField the same way: list candidates, then
// match client-side with a JMESPath expression.
package fieldmatch

import (
	"github.com/jmespath/go-jmespath"

	"github.com/arvinsg/index-management/internal/types"
)

// Match reports whether the document's value at path equals want.
// The path addresses the bare document, so a self-describing type wrapper is
// descended into first. A path that selects nothing, or selects a non-string,
// never matches.
func Match(doc types.Tree, path, want string) bool {
	if inner, ok := unwrap(doc); ok {
		doc = inner
	}
	v, err := jmespath.Search(path, doc)
	if err != nil || v == nil {
		return false
	}
	s, ok := v.(string)
	return ok && s == want
}

func unwrap(doc types.Tree) (types.Tree, bool) {
	for _, key := range []string{types.LRONConfigField, types.SMPolicyField} {
		if v, ok := doc[key]; ok && len(doc) == 1 {
			if inner, ok := v.(map[string]any); ok {
				return inner, true
			}
		}
	}
	return nil, false
}
