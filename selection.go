package amf

import (
	"fmt"
	"strings"
)

type selectionKey struct {
	region, perm int
}

// Selection is the set of enabled (region, permutation) pairs.
type Selection struct {
	enabled map[selectionKey]bool
}

func NewSelection() *Selection {
	return &Selection{enabled: make(map[selectionKey]bool)}
}

// SelectAll enables every permutation of m.
func SelectAll(m *Model) *Selection {
	s := NewSelection()
	for ri, r := range m.Regions {
		for pi := range r.Permutations {
			s.Enable(ri, pi)
		}
	}
	return s
}

func (s *Selection) Enable(region, perm int) {
	s.enabled[selectionKey{region, perm}] = true
}

func (s *Selection) Disable(region, perm int) {
	delete(s.enabled, selectionKey{region, perm})
}

func (s *Selection) DisableRegion(region int) {
	for k := range s.enabled {
		if k.region == region {
			delete(s.enabled, k)
		}
	}
}

func (s *Selection) Enabled(region, perm int) bool {
	if s == nil {
		return false
	}
	return s.enabled[selectionKey{region, perm}]
}

func (s *Selection) Len() int {
	return len(s.enabled)
}

// ParseSelection enables the comma separated "Region" or "Region/Permutation"
// entries of expr. An empty expr selects everything.
func ParseSelection(m *Model, expr string) (*Selection, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return SelectAll(m), nil
	}
	s := NewSelection()
	for _, item := range strings.Split(expr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		region, perm, hasPerm := strings.Cut(item, "/")
		ri := m.FindRegion(region)
		if ri < 0 {
			return nil, fmt.Errorf("amf: selection %q: no region %q", item, region)
		}
		r := m.Regions[ri]
		if !hasPerm {
			for pi := range r.Permutations {
				s.Enable(ri, pi)
			}
			continue
		}
		pi := r.FindPermutation(perm)
		if pi < 0 {
			return nil, fmt.Errorf("amf: selection %q: region %q has no permutation %q", item, region, perm)
		}
		s.Enable(ri, pi)
	}
	return s, nil
}
