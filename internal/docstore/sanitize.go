package docstore

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Sanitize returns the public JSON projection of doc: the collection
// transform runs first, then private paths and the revision counter are
// removed. Expanded references are sanitized with their own collection.
func (c *Collection) Sanitize(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %s document: %w", c.name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("docstore: decode %s document: %w", c.name, err)
	}
	c.sanitizeMap(m)
	return m, nil
}

func (c *Collection) sanitizeMap(m map[string]any) {
	if m == nil {
		return
	}
	if c.transform != nil {
		c.transform(m)
	}
	for _, path := range c.private {
		deletePath(m, path)
	}
	revision := RevisionField
	if f, ok := c.Field(RevisionField); ok {
		revision = f.JSONName
	}
	delete(m, revision)

	for _, f := range c.fields {
		if !f.IsReference() {
			continue
		}
		target, ok := c.catalog.Lookup(f.Target)
		if !ok {
			continue
		}
		switch v := m[f.JSONName].(type) {
		case map[string]any:
			target.sanitizeMap(v)
		case []any:
			for _, e := range v {
				if em, ok := e.(map[string]any); ok {
					target.sanitizeMap(em)
				}
			}
		}
	}
}

// deletePath removes the value at path. Arrays along the way are walked
// element-wise; a missing segment ends the walk.
func deletePath(v any, path []string) {
	if len(path) == 0 {
		return
	}
	switch node := v.(type) {
	case map[string]any:
		if len(path) == 1 {
			delete(node, path[0])
			return
		}
		deletePath(node[path[0]], path[1:])
	case []any:
		for _, e := range node {
			deletePath(e, path)
		}
	}
}

// project keeps only the given top level keys.
func project(m map[string]any, keys []string) {
	if len(keys) == 0 {
		return
	}
	for k := range m {
		if !slices.Contains(keys, k) {
			delete(m, k)
		}
	}
}
