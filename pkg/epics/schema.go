package epics

import (
	"fmt"
	"sort"
)

// Access marks whether a field may be written through the gateway.
type Access int

const (
	ReadWrite Access = iota
	ReadOnly
)

// Field is one scalar PV in a device tree: the suffix appended to the
// enclosing prefix, plus binding flags. AsString marks enum PVs that are
// read as their string choice rather than the raw index.
type Field struct {
	Suffix   string
	Access   Access
	AsString bool
}

// FormattedField is a PV whose name is not prefix+suffix but is derived
// by splitting the enclosing prefix into base and trailing index and
// re-inserting a token between them.
type FormattedField struct {
	Token  string
	Access Access
}

// Group nests a sub-schema under an additional suffix.
type Group struct {
	Suffix string
	Schema *Schema
}

// Schema is a declarative device tree: a mapping from logical field name
// to PV suffix and sub-schema. It is data, not behavior; Expand resolves
// it against a concrete prefix into the full PV name per attribute path.
type Schema struct {
	Version   string
	Fields    map[string]Field
	Formatted map[string]FormattedField
	Groups    map[string]Group
}

// Expand resolves every field in the tree against prefix, returning the
// attribute path (dot separated) to full PV name mapping. Colliding
// attribute paths or PV names are reported as errors.
func (s *Schema) Expand(prefix string) (map[string]string, error) {
	out := make(map[string]string)
	if err := s.expand(prefix, "", out); err != nil {
		return nil, err
	}

	byPV := make(map[string]string, len(out))
	for path, pv := range out {
		if prev, ok := byPV[pv]; ok {
			return nil, fmt.Errorf("PV %q bound by both %q and %q", pv, prev, path)
		}
		byPV[pv] = path
	}
	return out, nil
}

func (s *Schema) expand(prefix, path string, out map[string]string) error {
	add := func(name, pv string) error {
		p := name
		if path != "" {
			p = path + "." + name
		}
		if _, ok := out[p]; ok {
			return fmt.Errorf("duplicate attribute path %q", p)
		}
		out[p] = pv
		return nil
	}

	for name, f := range s.Fields {
		if err := add(name, prefix+f.Suffix); err != nil {
			return err
		}
	}

	parts := SplitPrefix(prefix)
	for name, f := range s.Formatted {
		if err := add(name, parts.Format(f.Token)); err != nil {
			return err
		}
	}

	for name, g := range s.Groups {
		sub := path
		if sub == "" {
			sub = name
		} else {
			sub = path + "." + name
		}
		if g.Schema == nil {
			return fmt.Errorf("group %q has no schema", sub)
		}
		if err := g.Schema.expand(prefix+g.Suffix, sub, out); err != nil {
			return err
		}
	}
	return nil
}

// PVNames returns the sorted list of full PV names the schema binds
// under prefix.
func (s *Schema) PVNames(prefix string) ([]string, error) {
	expanded, err := s.Expand(prefix)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(expanded))
	for _, pv := range expanded {
		names = append(names, pv)
	}
	sort.Strings(names)
	return names, nil
}
