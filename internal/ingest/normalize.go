package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyritedb/pyrite/internal/identity"
	"github.com/pyritedb/pyrite/internal/schema"
)

// member is one normalized observable: flattened properties, a final
// identifier, and the list-reference edges it carries.
type member struct {
	Key   string
	Type  string
	ID    string
	Props map[string]any
	Root  bool
}

// refEdge is one __reflist row.
type refEdge struct {
	Name   string
	Source string
	Target string
}

// normalized is the relational shape of one envelope.
type normalized struct {
	Envelope member
	Members  []member
	RefLists []refEdge
}

// normalize flattens every member, rewrites local references to final
// identifiers, stamps the envelope columns, and marks roots. Identifier
// assignment iterates so that reference-contributing properties (e.g.
// network-traffic src_ref) see their targets' final ids first.
func normalize(env Envelope, maker *identity.Maker) (*normalized, error) {
	flat := make(map[string]map[string]any, len(env.Members))
	types := make(map[string]string, len(env.Members))
	for key, raw := range env.Members {
		typ, _ := raw["type"].(string)
		if typ == "" {
			return nil, fmt.Errorf("observation %s: member %q has no type", env.ID, key)
		}
		props := make(map[string]any)
		flatten("", raw, props)
		delete(props, "type")
		flat[key] = props
		types[key] = typ
	}

	ids, err := assignIDs(env, flat, types, maker)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool)
	var members []member
	var refLists []refEdge

	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		props := flat[key]
		id := ids[key]

		for name, value := range props {
			base := lastSegment(name)
			switch {
			case schema.IsRefProp(base):
				if s, ok := value.(string); ok && localRef(env.Members, s) {
					props[name] = ids[s]
					referenced[s] = true
				}
			case schema.IsRefListProp(base):
				items, ok := value.([]any)
				if !ok {
					continue
				}
				finals := make([]any, len(items))
				for i, item := range items {
					s, _ := item.(string)
					if localRef(env.Members, s) {
						referenced[s] = true
						s = ids[s]
					}
					finals[i] = s
					refLists = append(refLists, refEdge{Name: base, Source: id, Target: s})
				}
				props[name] = finals
			}
		}

		props["id"] = id
		props["x_contained_by_ref"] = env.ID
		props["first_observed"] = env.FirstObserved
		props["last_observed"] = env.LastObserved
		props["number_observed"] = env.NumberObserved

		members = append(members, member{Key: key, Type: types[key], ID: id, Props: props})
	}

	// Roots: members no other member references. One per type is typical;
	// all unreferenced members are marked.
	for i := range members {
		if !referenced[members[i].Key] {
			members[i].Root = true
			members[i].Props["x_root"] = 1
		}
	}

	envProps := map[string]any{
		"id":              env.ID,
		"first_observed":  env.FirstObserved,
		"last_observed":   env.LastObserved,
		"number_observed": env.NumberObserved,
	}
	if env.CreatedByRef != "" {
		envProps["created_by_ref"] = env.CreatedByRef
	}

	return &normalized{
		Envelope: member{Type: "observed-data", ID: env.ID, Props: envProps},
		Members:  members,
		RefLists: refLists,
	}, nil
}

// assignIDs derives final identifiers, passing over the members until
// every reference a member's identity depends on has itself been assigned.
// A cycle falls back to deriving from whatever is resolved.
func assignIDs(env Envelope, flat map[string]map[string]any, types map[string]string, maker *identity.Maker) (map[string]string, error) {
	ids := make(map[string]string, len(flat))

	pending := make([]string, 0, len(flat))
	for key := range flat {
		if declared, ok := flat[key]["id"].(string); ok && strings.Contains(declared, "--") {
			ids[key] = declared
			continue
		}
		pending = append(pending, key)
	}
	sort.Strings(pending)

	for pass := 0; len(pending) > 0 && pass <= len(flat); pass++ {
		var next []string
		for _, key := range pending {
			if !refsResolved(env, flat[key], ids) {
				next = append(next, key)
				continue
			}
			resolved := withResolvedRefs(env, flat[key], ids)
			id, err := maker.MakeID(types[key], resolved)
			if err != nil {
				return nil, fmt.Errorf("observation %s member %q: %w", env.ID, key, err)
			}
			ids[key] = id
		}
		if len(next) == len(pending) {
			// No progress: reference cycle. Force the remainder through.
			for _, key := range next {
				resolved := withResolvedRefs(env, flat[key], ids)
				id, err := maker.MakeID(types[key], resolved)
				if err != nil {
					return nil, fmt.Errorf("observation %s member %q: %w", env.ID, key, err)
				}
				ids[key] = id
			}
			return ids, nil
		}
		pending = next
	}
	return ids, nil
}

func refsResolved(env Envelope, props map[string]any, ids map[string]string) bool {
	for name, value := range props {
		if !schema.IsRefProp(lastSegment(name)) {
			continue
		}
		if s, ok := value.(string); ok && localRef(env.Members, s) {
			if _, done := ids[s]; !done {
				return false
			}
		}
	}
	return true
}

// withResolvedRefs returns a copy with local reference values swapped for
// any final identifiers assigned so far.
func withResolvedRefs(env Envelope, props map[string]any, ids map[string]string) map[string]any {
	out := make(map[string]any, len(props))
	for name, value := range props {
		if schema.IsRefProp(lastSegment(name)) {
			if s, ok := value.(string); ok && localRef(env.Members, s) {
				if id, done := ids[s]; done {
					out[name] = id
					continue
				}
			}
		}
		out[name] = value
	}
	return out
}

// flatten rewrites nested maps into dotted property paths. Lists are kept
// whole; their encoding is a storage concern.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for key, value := range in {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = value
	}
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
