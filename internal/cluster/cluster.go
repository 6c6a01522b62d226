package cluster

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/pattern"
)

// Clusterer groups raw span texts of one label into canonical entity groups
// using normalized edit-distance similarity. Processing order is the order
// texts were collected, so clustering is deterministic.
type Clusterer struct {
	threshold float64
}

// New creates a clusterer with the given similarity threshold in (0, 1].
func New(threshold float64) *Clusterer {
	return &Clusterer{threshold: threshold}
}

// Similarity scores two variants of a kind on their normalized forms:
// 1 - levenshtein/max(len). Identical normalized forms score 1.
func (c *Clusterer) Similarity(kind entity.Kind, a, b string) float64 {
	return similarity(Normalize(kind, a), Normalize(kind, b))
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max)
}

// Cluster groups the texts (in collection order) into entity groups. Group
// ids are left unassigned; the reconciler mints them. Each cluster's
// representative is the normalized form of its first variant. Numeric
// clusters derive a regex pattern from the first variant observed with
// internal separators, so format-preserving variants not seen verbatim still
// match at anonymization time.
func (c *Clusterer) Cluster(kind entity.Kind, texts []string) []*entity.Group {
	type bucket struct {
		group *entity.Group
		rep   string
	}

	var buckets []*bucket
	for _, text := range texts {
		norm := Normalize(kind, text)
		if norm == "" {
			continue
		}

		var best *bucket
		bestScore := 0.0
		for _, b := range buckets {
			if score := similarity(b.rep, norm); score > bestScore {
				best, bestScore = b, score
			}
		}

		if best != nil && bestScore >= c.threshold {
			best.group.AddVariant(text)
		} else {
			best = &bucket{group: &entity.Group{Variants: []string{text}}, rep: norm}
			buckets = append(buckets, best)
		}

		if kind.Numeric() && best.group.Pattern == "" {
			if p := pattern.Derive(text); p != "" {
				// Derived patterns are built from digit runs and always compile.
				_ = best.group.SetPattern(p)
			}
		}
	}

	groups := make([]*entity.Group, 0, len(buckets))
	for _, b := range buckets {
		groups = append(groups, b.group)
	}
	return groups
}
