package anonymize

import (
	"context"

	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/document"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/logger"
	"go.uber.org/zap"
)

// Extractor implements the two-phase batch design: first every document's
// content regions are collected and their spans pooled, then the pool is
// clustered and reconciled once into the entity set. No per-file locking is
// needed because nothing touches the set until Finalize.
type Extractor struct {
	recognizer detect.Recognizer
	clusterer  *cluster.Clusterer
	language   string
	logger     *logger.Logger

	// texts accumulates span texts per kind in collection order, first
	// occurrence only, so clustering is deterministic across runs.
	texts map[entity.Kind][]string
	seen  map[entity.Kind]map[string]bool

	counts Counts
}

// NewExtractor creates a batch extractor.
func NewExtractor(rec detect.Recognizer, cl *cluster.Clusterer, language string, log *logger.Logger) *Extractor {
	return &Extractor{
		recognizer: rec,
		clusterer:  cl,
		language:   language,
		logger:     log,
		texts:      make(map[entity.Kind][]string),
		seen:       make(map[entity.Kind]map[string]bool),
		counts:     newCounts(),
	}
}

// AddDocument collects spans from one document's content regions.
func (x *Extractor) AddDocument(ctx context.Context, text string, format document.Format) error {
	regions, err := document.Segment(text, format)
	if err != nil {
		return err
	}

	content := document.ContentOnly(text, regions)
	spans, err := x.recognizer.Detect(ctx, content, x.language)
	if err != nil {
		return err
	}

	for _, s := range spans {
		x.counts.Found[s.Kind]++
		if x.seen[s.Kind] == nil {
			x.seen[s.Kind] = make(map[string]bool)
		}
		if x.seen[s.Kind][s.Text] {
			continue
		}
		x.seen[s.Kind][s.Text] = true
		x.texts[s.Kind] = append(x.texts[s.Kind], s.Text)
	}

	return nil
}

// Counts returns the per-kind found totals accumulated so far.
func (x *Extractor) Counts() Counts { return x.counts }

// Finalize clusters the pooled span texts and reconciles the resulting
// groups into the entity set. Reports whether the set changed.
func (x *Extractor) Finalize(set *entity.Set) bool {
	fresh := make(map[entity.Kind][]*entity.Group)
	for _, kind := range entity.Kinds {
		if groups := x.clusterer.Cluster(kind, x.texts[kind]); len(groups) > 0 {
			fresh[kind] = groups
			x.logger.Debug("Clustered variants",
				zap.String("kind", string(kind)),
				zap.Int("mentions", len(x.texts[kind])),
				zap.Int("groups", len(groups)),
			)
		}
	}
	return x.clusterer.Reconcile(set, fresh)
}
