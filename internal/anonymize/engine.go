package anonymize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/document"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/logger"
	"github.com/evidlabel/did/internal/pattern"
	"go.uber.org/zap"
)

// Counts reports per-kind detection and replacement totals for one document.
type Counts struct {
	Found    map[entity.Kind]int
	Replaced map[entity.Kind]int
	Minted   int
}

func newCounts() Counts {
	return Counts{
		Found:    make(map[entity.Kind]int),
		Replaced: make(map[entity.Kind]int),
	}
}

// Result is the outcome of anonymizing one document.
type Result struct {
	Text   string
	Counts Counts
	// ConfigChanged reports whether new groups were minted; the caller
	// decides whether to persist the updated entity set.
	ConfigChanged bool
}

// Engine computes a non-overlapping substitution plan for a document against
// an entity set and emits the anonymized document. Byte content outside
// matched spans and inside syntax regions is never altered.
type Engine struct {
	recognizer detect.Recognizer
	clusterer  *cluster.Clusterer
	language   string
	logger     *logger.Logger
}

// NewEngine creates a replacement engine.
func NewEngine(rec detect.Recognizer, cl *cluster.Clusterer, language string, log *logger.Logger) *Engine {
	return &Engine{recognizer: rec, clusterer: cl, language: language, logger: log}
}

// candidate is one potential replacement: a span attributed to a group.
type candidate struct {
	start, end int
	group      *entity.Group
	kind       entity.Kind
	// literal marks an exact variant match, which wins group-attribution
	// ties against pattern matches.
	literal bool
}

// Anonymize replaces every occurrence of every group's variants and patterns
// inside the document's content regions with the group id. Recognized spans
// matching no group mint a new group inline, so documents never seen by
// extraction still anonymize consistently.
func (e *Engine) Anonymize(ctx context.Context, text string, format document.Format, set *entity.Set) (*Result, error) {
	regions, err := document.Segment(text, format)
	if err != nil {
		return nil, err
	}

	counts := newCounts()
	changed := false

	// Occurrences of configured id tokens are never rescanned: anonymizing
	// an already-anonymized document is a no-op.
	forbidden := idTokenRanges(text, set)

	var candidates []candidate
	for _, region := range regions {
		if !region.Content {
			continue
		}
		chunk := text[region.Start:region.End]

		// Direct variant and pattern scan: previously catalogued entities
		// are always caught, whether or not the recognizer flags them.
		for _, kind := range entity.Kinds {
			matches, err := pattern.ScanGroups(chunk, kind, set.Groups(kind))
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				candidates = append(candidates, candidate{
					start:   region.Start + m.Start,
					end:     region.Start + m.End,
					group:   m.Group,
					kind:    kind,
					literal: m.Literal,
				})
			}
		}

		// Recognizer spans. Group attribution waits until after overlap
		// resolution so losing spans never mint anything.
		spans, err := e.recognizer.Detect(ctx, chunk, e.language)
		if err != nil {
			return nil, err
		}
		for _, s := range spans {
			counts.Found[s.Kind]++
			candidates = append(candidates, candidate{
				start: region.Start + s.Start,
				end:   region.Start + s.End,
				kind:  s.Kind,
			})
		}
	}

	resolved := resolve(filterForbidden(candidates, forbidden))

	for i := range resolved {
		c := &resolved[i]
		if c.group != nil {
			continue
		}
		mention := text[c.start:c.end]
		c.group, c.literal = attribute(set, c.kind, mention)
		if c.group == nil {
			c.group = mint(set, c.kind, mention)
			changed = true
			counts.Minted++
			e.logger.Debug("Minted new entity group",
				zap.String("id", c.group.ID),
				zap.String("kind", string(c.kind)),
			)
		}
	}

	out := substitute(text, resolved)
	for _, c := range resolved {
		counts.Replaced[c.kind]++
	}

	return &Result{Text: out, Counts: counts, ConfigChanged: changed}, nil
}

// attribute finds the configured group owning the mention text: first by
// normalized variant equality (exact literal match), then by pattern match
// over the whole mention.
func attribute(set *entity.Set, kind entity.Kind, text string) (*entity.Group, bool) {
	norm := cluster.Normalize(kind, text)
	for _, g := range set.Groups(kind) {
		for _, v := range g.Variants {
			if cluster.Normalize(kind, v) == norm {
				return g, true
			}
		}
	}
	for _, g := range set.Groups(kind) {
		if re := g.Regexp(); re != nil {
			if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 && loc[1] == len(text) {
				return g, false
			}
		}
	}
	return nil, false
}

// mint creates a new group for an unrecognized mention, deriving a format
// pattern for separated numeric mentions.
func mint(set *entity.Set, kind entity.Kind, text string) *entity.Group {
	g := set.Mint(kind, text)
	if kind.Numeric() {
		if p := pattern.Derive(text); p != "" {
			_ = g.SetPattern(p)
		}
	}
	return g
}

// idTokenRanges locates every occurrence of every configured group id.
func idTokenRanges(text string, set *entity.Set) [][2]int {
	var ranges [][2]int
	for _, id := range set.IDs() {
		for pos := 0; ; {
			i := strings.Index(text[pos:], id)
			if i < 0 {
				break
			}
			ranges = append(ranges, [2]int{pos + i, pos + i + len(id)})
			pos += i + len(id)
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	return ranges
}

func overlapsAny(start, end int, ranges [][2]int) bool {
	for _, r := range ranges {
		if start < r[1] && r[0] < end {
			return true
		}
	}
	return false
}

func filterForbidden(candidates []candidate, forbidden [][2]int) []candidate {
	if len(forbidden) == 0 {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if !overlapsAny(c.start, c.end, forbidden) {
			kept = append(kept, c)
		}
	}
	return kept
}

// resolve picks the surviving non-overlapping spans: sorted by start offset
// then descending length, exact matches before pattern matches on full ties;
// a span contained in or intersecting an earlier surviving span is dropped,
// atomically (no re-splitting).
func resolve(candidates []candidate) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.literal && !b.literal
	})

	var kept []candidate
	lastEnd := -1
	for _, c := range candidates {
		if c.start < lastEnd {
			continue
		}
		kept = append(kept, c)
		lastEnd = c.end
	}
	return kept
}

// substitute emits the document with each surviving span replaced by its
// group id. Everything else is copied byte for byte.
func substitute(text string, spans []candidate) string {
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, s := range spans {
		b.WriteString(text[pos:s.start])
		b.WriteString(s.group.ID)
		pos = s.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// AnonymizeFile is a convenience wrapper that infers the format from the
// path before anonymizing.
func (e *Engine) AnonymizeFile(ctx context.Context, path, text string, set *entity.Set) (*Result, error) {
	format, err := document.FormatForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e.Anonymize(ctx, text, format, set)
}
