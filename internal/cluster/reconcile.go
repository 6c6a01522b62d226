package cluster

import "github.com/evidlabel/did/internal/entity"

// Reconcile merges freshly clustered groups into an existing entity set.
// A fresh group merges into the existing group of the same kind whose
// variants score highest against any fresh variant, provided the score meets
// the clustering threshold; otherwise it is appended with the next free id
// for the kind. A fresh group that already carries a known id merges into
// that group directly. Reconciling the same inputs twice produces an
// identical set: ids and variant order are stable, and ids are never reused.
//
// Reports whether the set was changed (new groups or new variants).
func (c *Clusterer) Reconcile(set *entity.Set, fresh map[entity.Kind][]*entity.Group) bool {
	changed := false

	for _, kind := range entity.Kinds {
		byID := make(map[string]*entity.Group)
		for _, g := range set.Groups(kind) {
			byID[g.ID] = g
		}

		for _, fg := range fresh[kind] {
			target := byID[fg.ID]
			if target == nil {
				target = c.bestMatch(kind, set.Groups(kind), fg)
			}

			if target == nil {
				if fg.ID == "" {
					fg.ID = set.NextID(kind)
				}
				set.Append(kind, fg)
				byID[fg.ID] = fg
				changed = true
				continue
			}

			for _, v := range fg.Variants {
				if !target.HasVariant(v) {
					target.AddVariant(v)
					changed = true
				}
			}
			if target.Pattern == "" && fg.Pattern != "" {
				if err := target.SetPattern(fg.Pattern); err == nil {
					changed = true
				}
			}
		}
	}

	return changed
}

// bestMatch returns the existing group most similar to any of the fresh
// group's variants, or nil if no group reaches the threshold.
func (c *Clusterer) bestMatch(kind entity.Kind, existing []*entity.Group, fresh *entity.Group) *entity.Group {
	var best *entity.Group
	bestScore := 0.0
	for _, g := range existing {
		for _, ev := range g.Variants {
			for _, fv := range fresh.Variants {
				if score := c.Similarity(kind, ev, fv); score > bestScore {
					best, bestScore = g, score
				}
			}
		}
	}
	if bestScore >= c.threshold {
		return best
	}
	return nil
}
