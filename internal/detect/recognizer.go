package detect

import (
	"context"
	"fmt"
	"sort"

	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/logger"
	"go.uber.org/zap"
)

// RuleRecognizer is the built-in recognizer: regex rules per entity kind plus
// the digit-density number detector. An optional delegate recognizer (for
// example a remote NER service) contributes additional spans.
type RuleRecognizer struct {
	rules    []Rule
	enabled  map[string]bool
	density  *DensityDetector
	delegate Recognizer
	logger   *logger.Logger
}

// New creates a recognizer from the detection configuration.
func New(cfg config.DetectionConfig, log *logger.Logger) (*RuleRecognizer, error) {
	r := &RuleRecognizer{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		density: NewDensityDetector(cfg.MinDigits),
		logger:  log,
	}

	if err := r.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Recognizer initialized",
		zap.Int("total_rules", len(r.rules)),
		zap.Int("enabled_rules", r.countEnabledRules()),
	)

	return r, nil
}

// SetDelegate installs an additional recognizer whose spans are merged with
// the rule spans, e.g. the remote NER collaborator.
func (r *RuleRecognizer) SetDelegate(d Recognizer) { r.delegate = d }

// configureDetectors enables/disables rules based on configuration
func (r *RuleRecognizer) configureDetectors(detectors []string) error {
	for _, rule := range r.rules {
		r.enabled[rule.Name] = false
	}

	for _, name := range detectors {
		if name == "all" {
			for _, rule := range r.rules {
				r.enabled[rule.Name] = true
			}
			continue
		}
		if name == "density" {
			continue // always-on sliding-window detector
		}

		found := false
		for _, rule := range r.rules {
			if rule.Name == name {
				r.enabled[rule.Name] = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown detector: %s", name)
		}
	}

	return nil
}

// Detect runs every enabled rule applicable to the language plus the density
// detector, merges delegate spans if configured, and returns deduplicated
// spans sorted by start offset. A span fully contained in another span of the
// same kind is a duplicate and is dropped.
func (r *RuleRecognizer) Detect(ctx context.Context, text, language string) ([]Span, error) {
	if !ValidLanguage(language) {
		return nil, &RecognitionError{Language: language, Err: fmt.Errorf("unsupported language")}
	}

	var spans []Span
	for _, rule := range r.rules {
		if !r.enabled[rule.Name] || !rule.appliesTo(language) {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			span := Span{Start: loc[0], End: loc[1], Kind: rule.Kind, Text: text[loc[0]:loc[1]]}
			if rule.Kind == entity.Person {
				// "Contact John Doe" keeps "John Doe" instead of being
				// discarded outright.
				span.Start += TrimStopWords(span.Text)
				span.Text = text[span.Start:span.End]
				if !PlausibleName(span.Text) {
					continue
				}
			}
			spans = append(spans, span)
		}
	}

	spans = append(spans, r.density.Find(text)...)

	if r.delegate != nil {
		delegated, err := r.delegate.Detect(ctx, text, language)
		if err != nil {
			return nil, err
		}
		spans = append(spans, delegated...)
	}

	spans = dropContained(spans)

	r.logger.Debug("Detection complete",
		zap.String("language", language),
		zap.Int("spans", len(spans)),
	)

	return spans, nil
}

// countEnabledRules returns the number of enabled detection rules
func (r *RuleRecognizer) countEnabledRules() int {
	count := 0
	for _, enabled := range r.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// EnabledRules returns the names of enabled rules, sorted.
func (r *RuleRecognizer) EnabledRules() []string {
	var names []string
	for name, enabled := range r.enabled {
		if enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// dropContained removes spans fully contained in a longer span of the same
// kind, and exact duplicates. Output is sorted by start offset, longest
// first on ties.
func dropContained(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	kept := spans[:0]
	for _, s := range spans {
		contained := false
		for _, k := range kept {
			if k.Kind == s.Kind && k.Start <= s.Start && s.End <= k.End {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, s)
		}
	}
	return kept
}
