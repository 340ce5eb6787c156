// Package identity derives stable observable identifiers so that
// re-ingesting the same logical record converges on the same row.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Namespace for deterministic v5 identifiers.
var idNamespace = uuid.MustParse("00abedb4-aa42-466c-9c01-fed23315a9b7")

// Preference order for hash algorithms when a hashes map contributes to
// identity.
var hashPreference = []string{"MD5", "SHA-1", "SHA-256", "SHA-512"}

// AmbiguityError means a record declared no identifier and carried none of
// the properties that contribute to a deterministic one.
type AmbiguityError struct {
	Type string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("cannot derive a stable identifier for %s: no contributing properties", e.Type)
}

// contributing lists the identity-contributing properties per observable
// type. A "hashes" entry selects one preferred hash from the flattened
// hashes.* columns.
var contributing = map[string][]string{
	"artifact":             {"hashes", "payload_bin"},
	"autonomous-system":    {"number"},
	"directory":            {"path"},
	"domain-name":          {"value"},
	"email-addr":           {"value"},
	"email-message":        {"from_ref", "subject", "body"},
	"file":                 {"hashes", "name", "parent_directory_ref"},
	"ipv4-addr":            {"value"},
	"ipv6-addr":            {"value"},
	"mac-addr":             {"value"},
	"mutex":                {"name"},
	"network-traffic":      {"start", "src_ref", "dst_ref", "src_port", "dst_port", "protocols"},
	"software":             {"name", "cpe", "vendor", "version"},
	"url":                  {"value"},
	"user-account":         {"account_type", "user_id", "account_login"},
	"windows-registry-key": {"key", "values"},
	"x509-certificate":     {"hashes", "serial_number"},
}

// Maker derives identifiers from a per-type contributing-property map.
type Maker struct {
	props map[string][]string
}

// NewMaker returns a maker with the built-in contributing-property sets.
func NewMaker() *Maker {
	return &Maker{props: contributing}
}

// NewMakerFromFile overlays the built-in sets with a YAML mapping of
// type name to property list.
func NewMakerFromFile(path string) (*Maker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity config: %w", err)
	}
	var overrides map[string][]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing identity config %s: %w", path, err)
	}
	merged := make(map[string][]string, len(contributing)+len(overrides))
	for k, v := range contributing {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return &Maker{props: merged}, nil
}

// MakeID returns "<type>--<uuid5>" over the canonical JSON encoding of the
// record's contributing properties. Types without a declared set use every
// non-envelope scalar property in sorted order. An empty contributing
// subset yields an AmbiguityError.
func (m *Maker) MakeID(typeName string, record map[string]any) (string, error) {
	subset := m.subset(typeName, record)
	if len(subset) == 0 {
		return "", &AmbiguityError{Type: typeName}
	}
	data, err := canonicalJSON(subset)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s identity: %w", typeName, err)
	}
	return typeName + "--" + uuid.NewSHA1(idNamespace, data).String(), nil
}

func (m *Maker) subset(typeName string, record map[string]any) map[string]any {
	declared, ok := m.props[typeName]
	if !ok {
		return allScalarProps(record)
	}
	subset := make(map[string]any)
	for _, name := range declared {
		if name == "hashes" {
			if key, val, ok := preferredHash(record); ok {
				subset[key] = val
			}
			continue
		}
		if v, ok := record[name]; ok && v != nil {
			subset[name] = v
		}
	}
	return subset
}

// preferredHash picks one flattened hashes.* property, by algorithm
// preference then lexicographic order.
func preferredHash(record map[string]any) (string, any, bool) {
	for _, alg := range hashPreference {
		key := "hashes." + alg
		if v, ok := record[key]; ok && v != nil {
			return key, v, true
		}
	}
	var keys []string
	for k := range record {
		if strings.HasPrefix(k, "hashes.") && record[k] != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", nil, false
	}
	sort.Strings(keys)
	return keys[0], record[keys[0]], true
}

var envelopeProps = map[string]struct{}{
	"id":                 {},
	"type":               {},
	"first_observed":     {},
	"last_observed":      {},
	"number_observed":    {},
	"x_contained_by_ref": {},
	"x_root":             {},
}

func allScalarProps(record map[string]any) map[string]any {
	subset := make(map[string]any)
	for k, v := range record {
		if _, skip := envelopeProps[k]; skip {
			continue
		}
		switch v.(type) {
		case nil, []any, map[string]any:
			continue
		}
		subset[k] = v
	}
	return subset
}

// canonicalJSON encodes with sorted keys and no insignificant whitespace,
// so the same properties always hash identically.
func canonicalJSON(subset map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(subset))
	for k := range subset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		sb.Write(kb)
		sb.WriteByte(':')
		vb, err := json.Marshal(subset[k])
		if err != nil {
			return nil, err
		}
		sb.Write(vb)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
