package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a PII category. The set is closed: each kind maps to one
// configuration section and one id prefix.
type Kind string

const (
	Person      Kind = "PERSON"
	Email       Kind = "EMAIL"
	Address     Kind = "ADDRESS"
	PhoneNumber Kind = "PHONE_NUMBER"
	CPRNumber   Kind = "CPR_NUMBER"
)

// Kinds lists all entity kinds in configuration section order.
var Kinds = []Kind{Person, Email, Address, PhoneNumber, CPRNumber}

// kindInfo carries the per-kind section name, id prefix, and whether variants
// of the kind are compared digits-only.
type kindInfo struct {
	section string
	prefix  string
	numeric bool
}

var kindTable = map[Kind]kindInfo{
	Person:      {section: "names", prefix: "PERSON", numeric: false},
	Email:       {section: "emails", prefix: "EMAIL", numeric: false},
	Address:     {section: "addresses", prefix: "ADDRESS", numeric: false},
	PhoneNumber: {section: "numbers", prefix: "NUMBER", numeric: true},
	CPRNumber:   {section: "cpr", prefix: "CPR", numeric: true},
}

// Section returns the configuration section name for the kind.
func (k Kind) Section() string { return kindTable[k].section }

// Prefix returns the id prefix for the kind, e.g. "PERSON" for <PERSON_1>.
func (k Kind) Prefix() string { return kindTable[k].prefix }

// Numeric reports whether variants of this kind are normalized digits-only.
func (k Kind) Numeric() bool { return kindTable[k].numeric }

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// Group is one canonical entity: a stable id, its observed textual variants
// (verbatim, insertion order preserved), and an optional regex pattern used as
// an additional matcher for numeric groups.
type Group struct {
	ID       string   `yaml:"id"`
	Variants []string `yaml:"variants"`
	Pattern  string   `yaml:"pattern,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern, or nil if the group has none.
// Compile must have succeeded during Set validation.
func (g *Group) Regexp() *regexp.Regexp { return g.re }

// HasVariant reports whether the group already records the exact variant.
func (g *Group) HasVariant(v string) bool {
	for _, existing := range g.Variants {
		if existing == v {
			return true
		}
	}
	return false
}

// AddVariant appends a variant unless it is already present verbatim.
func (g *Group) AddVariant(v string) {
	if !g.HasVariant(v) {
		g.Variants = append(g.Variants, v)
	}
}

// SetPattern installs a regex pattern on the group, compiling it eagerly.
func (g *Group) SetPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &PatternError{ID: g.ID, Pattern: pattern, Err: err}
	}
	g.Pattern = pattern
	g.re = re
	return nil
}

// Set is the entity configuration: an ordered mapping from kind to groups.
// It is the single source of truth for replacement; group ids are never
// mutated once assigned.
type Set struct {
	Names     []*Group `yaml:"names"`
	Emails    []*Group `yaml:"emails"`
	Addresses []*Group `yaml:"addresses"`
	Numbers   []*Group `yaml:"numbers"`
	CPR       []*Group `yaml:"cpr"`
}

// NewSet returns an empty entity configuration.
func NewSet() *Set { return &Set{} }

// Groups returns the group slice for the kind.
func (s *Set) Groups(kind Kind) []*Group {
	switch kind {
	case Person:
		return s.Names
	case Email:
		return s.Emails
	case Address:
		return s.Addresses
	case PhoneNumber:
		return s.Numbers
	case CPRNumber:
		return s.CPR
	}
	return nil
}

// Append adds a group to the kind's section.
func (s *Set) Append(kind Kind, g *Group) {
	switch kind {
	case Person:
		s.Names = append(s.Names, g)
	case Email:
		s.Emails = append(s.Emails, g)
	case Address:
		s.Addresses = append(s.Addresses, g)
	case PhoneNumber:
		s.Numbers = append(s.Numbers, g)
	case CPRNumber:
		s.CPR = append(s.CPR, g)
	}
}

// Empty reports whether the set contains no groups at all.
func (s *Set) Empty() bool {
	for _, kind := range Kinds {
		if len(s.Groups(kind)) > 0 {
			return false
		}
	}
	return true
}

// GroupCount returns the total number of groups across all kinds.
func (s *Set) GroupCount() int {
	n := 0
	for _, kind := range Kinds {
		n += len(s.Groups(kind))
	}
	return n
}

// NextID mints the next free id for the kind: the label prefix with
// max(existing numeric suffixes)+1. Suffixes are never reused, even after
// manual deletion, so already-anonymized documents stay consistent.
func (s *Set) NextID(kind Kind) string {
	max := 0
	for _, g := range s.Groups(kind) {
		if n, ok := idSuffix(g.ID, kind.Prefix()); ok && n > max {
			max = n
		}
	}
	return fmt.Sprintf("<%s_%d>", kind.Prefix(), max+1)
}

// Mint appends a new group for the kind with the next free id and the given
// first variant, returning the new group.
func (s *Set) Mint(kind Kind, variant string) *Group {
	g := &Group{ID: s.NextID(kind), Variants: []string{variant}}
	s.Append(kind, g)
	return g
}

// IDs returns every group id in the set, in section and group order.
func (s *Set) IDs() []string {
	var ids []string
	for _, kind := range Kinds {
		for _, g := range s.Groups(kind) {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// idSuffix parses the numeric suffix out of an id like <PERSON_3>.
// Operator-edited ids that do not follow the convention are ignored.
func idSuffix(id, prefix string) (int, bool) {
	body := strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
	rest, ok := strings.CutPrefix(body, prefix+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
