// Package ingest turns observation bundles into rows: it normalizes
// member objects, derives stable identifiers, and merge-upserts the
// result inside one transaction per batch.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is one observation: a time window plus the member objects it
// observed, keyed the way the source keyed them (local index or id).
type Envelope struct {
	ID             string
	FirstObserved  string
	LastObserved   string
	NumberObserved int
	CreatedByRef   string
	Members        map[string]map[string]any
}

// ParseBundle reads a bundle document. Both layouts are accepted: an
// observation with an inline "objects" map keyed by local index, and an
// observation with "object_refs" pointing at sibling top-level objects.
func ParseBundle(data []byte) ([]Envelope, error) {
	var bundle struct {
		Objects []map[string]any `json:"objects"`
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}

	// Top-level objects addressable by id, for object_refs resolution.
	byID := make(map[string]map[string]any)
	for _, obj := range bundle.Objects {
		if id, ok := obj["id"].(string); ok {
			byID[id] = obj
		}
	}

	var envelopes []Envelope
	for _, obj := range bundle.Objects {
		typ, _ := obj["type"].(string)
		if typ != "observed-data" {
			continue
		}
		env, err := parseEnvelope(obj, byID)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}
	if len(envelopes) == 0 {
		return nil, fmt.Errorf("bundle contains no observations")
	}
	return envelopes, nil
}

func parseEnvelope(obj map[string]any, byID map[string]map[string]any) (Envelope, error) {
	env := Envelope{
		ID:             stringProp(obj, "id"),
		FirstObserved:  stringProp(obj, "first_observed"),
		LastObserved:   stringProp(obj, "last_observed"),
		NumberObserved: intProp(obj, "number_observed"),
		CreatedByRef:   stringProp(obj, "created_by_ref"),
		Members:        make(map[string]map[string]any),
	}
	if env.ID == "" {
		return Envelope{}, fmt.Errorf("observation missing id")
	}
	if env.NumberObserved == 0 {
		env.NumberObserved = 1
	}

	if inline, ok := obj["objects"].(map[string]any); ok {
		for key, raw := range inline {
			member, ok := raw.(map[string]any)
			if !ok {
				return Envelope{}, fmt.Errorf("observation %s: member %q is not an object", env.ID, key)
			}
			env.Members[key] = member
		}
		return env, nil
	}

	if refs, ok := obj["object_refs"].([]any); ok {
		for _, raw := range refs {
			id, ok := raw.(string)
			if !ok {
				continue
			}
			member, ok := byID[id]
			if !ok {
				return Envelope{}, fmt.Errorf("observation %s references missing object %s", env.ID, id)
			}
			env.Members[id] = member
		}
		return env, nil
	}

	return Envelope{}, fmt.Errorf("observation %s has no members", env.ID)
}

func stringProp(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func intProp(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// localRef reports whether a reference value points inside the envelope
// (a bare member key) rather than at a final identifier.
func localRef(members map[string]map[string]any, v string) bool {
	if _, ok := members[v]; !ok {
		return false
	}
	return !strings.Contains(v, "--")
}
