// Package aggregate counts open service requests by type inside the active
// region filter.
package aggregate

import (
	"fmt"
	"sort"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/region"
)

// Counts maps request type to number of requests.
type Counts map[string]int

// Get returns the count for a type, zero when absent.
func (c Counts) Get(requestType string) int {
	return c[requestType]
}

// Total sums every type.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Table holds precomputed counts: boundary id -> request type -> count.
type Table map[string]map[string]int

// Tables holds one Table per boundary kind.
type Tables map[region.Kind]Table

// Lookup returns the counts of one boundary.
func (t Tables) Lookup(kind region.Kind, id string) (map[string]int, error) {
	row, ok := t[kind][id]
	if !ok {
		return nil, apperrors.MissingAggregate(string(kind), id)
	}
	return row, nil
}

// Validate checks that every type in every table belongs to known and that
// no count is negative.
func (t Tables) Validate(known TypeSet) error {
	for kind, table := range t {
		for id, row := range table {
			for typ, n := range row {
				if !known.Contains(typ) {
					return apperrors.Validation(fmt.Sprintf("%s table entry %q has unknown request type %q", kind, id, typ))
				}
				if n < 0 {
					return apperrors.Validation(fmt.Sprintf("%s table entry %q has negative count for %q", kind, id, typ))
				}
			}
		}
	}
	return nil
}

// TypeSet is an immutable set of request types. The zero value is empty.
type TypeSet struct {
	types []string
}

// NewTypeSet builds a set from types, dropping duplicates.
func NewTypeSet(types ...string) TypeSet {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return TypeSet{types: out}
}

// Contains reports whether t is in the set.
func (s TypeSet) Contains(t string) bool {
	i := sort.SearchStrings(s.types, t)
	return i < len(s.types) && s.types[i] == t
}

// Len returns the number of types.
func (s TypeSet) Len() int {
	return len(s.types)
}

// Slice returns the types in sorted order.
func (s TypeSet) Slice() []string {
	out := make([]string, len(s.types))
	copy(out, s.types)
	return out
}

// Equal compares two sets by value.
func (s TypeSet) Equal(o TypeSet) bool {
	if len(s.types) != len(o.types) {
		return false
	}
	for i := range s.types {
		if s.types[i] != o.types[i] {
			return false
		}
	}
	return true
}

// Covers reports whether every type of o is in s.
func (s TypeSet) Covers(o TypeSet) bool {
	for _, t := range o.types {
		if !s.Contains(t) {
			return false
		}
	}
	return true
}

// Union returns the types in either set.
func (s TypeSet) Union(o TypeSet) TypeSet {
	return NewTypeSet(append(s.Slice(), o.types...)...)
}
