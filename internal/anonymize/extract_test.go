package anonymize

import (
	"context"
	"errors"
	"testing"

	"github.com/evidlabel/did/internal/cluster"
	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/document"
	"github.com/evidlabel/did/internal/entity"
	"github.com/evidlabel/did/internal/logger"
)

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	rec, err := detect.New(config.DetectionConfig{Detectors: []string{"all"}, MinDigits: 4}, logger.Nop())
	if err != nil {
		t.Fatalf("detect.New() error = %v", err)
	}
	return NewExtractor(rec, cluster.New(0.85), detect.LangEnglish, logger.Nop())
}

func TestExtractorBatch(t *testing.T) {
	x := testExtractor(t)
	ctx := context.Background()

	docs := []string{
		"Contact John Doe at 1234567890.",
		"Jon Doe called from 12 34 56 78.",
	}
	for _, doc := range docs {
		if err := x.AddDocument(ctx, doc, document.Text); err != nil {
			t.Fatalf("AddDocument() error = %v", err)
		}
	}

	set := entity.NewSet()
	if !x.Finalize(set) {
		t.Fatal("Finalize() = false, want changes on an empty set")
	}

	if len(set.Names) != 1 {
		t.Fatalf("Names = %+v, want the two spellings clustered into one group", set.Names)
	}
	g := set.Names[0]
	if g.ID != "<PERSON_1>" {
		t.Errorf("person id = %q", g.ID)
	}
	if !g.HasVariant("John Doe") || !g.HasVariant("Jon Doe") {
		t.Errorf("variants = %v", g.Variants)
	}

	// The two numbers share no digits, so they stay separate groups.
	if len(set.Numbers) != 2 {
		t.Fatalf("Numbers = %+v, want 2 groups", set.Numbers)
	}
	if set.Numbers[0].ID != "<NUMBER_1>" || set.Numbers[1].ID != "<NUMBER_2>" {
		t.Errorf("number ids = %q, %q", set.Numbers[0].ID, set.Numbers[1].ID)
	}
	if set.Numbers[1].Pattern == "" {
		t.Error("separated number group should carry a derived pattern")
	}

	counts := x.Counts()
	if counts.Found[entity.Person] != 2 || counts.Found[entity.PhoneNumber] != 2 {
		t.Errorf("Found = %v", counts.Found)
	}
}

func TestExtractorStableAcrossRuns(t *testing.T) {
	ctx := context.Background()
	docs := []string{
		"Contact John Doe at 1234567890.",
		"Jon Doe called from 12 34 56 78.",
	}

	set := entity.NewSet()
	first := testExtractor(t)
	for _, doc := range docs {
		if err := first.AddDocument(ctx, doc, document.Text); err != nil {
			t.Fatal(err)
		}
	}
	first.Finalize(set)

	// A second batch over the same documents must not change the set.
	second := testExtractor(t)
	for _, doc := range docs {
		if err := second.AddDocument(ctx, doc, document.Text); err != nil {
			t.Fatal(err)
		}
	}
	if second.Finalize(set) {
		t.Error("Finalize() = true on an identical second run")
	}
	if set.Names[0].ID != "<PERSON_1>" || len(set.Names) != 1 {
		t.Errorf("ids drifted: %+v", set.Names)
	}
}

func TestExtractorNewDocumentExtendsSet(t *testing.T) {
	ctx := context.Background()
	set := entity.NewSet()
	set.Append(entity.Person, &entity.Group{ID: "<PERSON_1>", Variants: []string{"John Doe"}})
	set.Append(entity.Person, &entity.Group{ID: "<PERSON_2>", Variants: []string{"Jane Smith"}})

	x := testExtractor(t)
	if err := x.AddDocument(ctx, "Alice Wonder met Jon Doe.", document.Text); err != nil {
		t.Fatal(err)
	}
	if !x.Finalize(set) {
		t.Fatal("Finalize() = false, want changes")
	}

	if len(set.Names) != 3 {
		t.Fatalf("Names = %+v, want one new group", set.Names)
	}
	if set.Names[2].ID != "<PERSON_3>" || !set.Names[2].HasVariant("Alice Wonder") {
		t.Errorf("new group = %+v", set.Names[2])
	}
	if !set.Names[0].HasVariant("Jon Doe") {
		t.Errorf("similar spelling not merged into existing group: %v", set.Names[0].Variants)
	}
}

func TestExtractorSkipsSyntaxRegions(t *testing.T) {
	x := testExtractor(t)
	doc := "Prose.\n```\nJohn Doe 1234567890\n```\n"
	if err := x.AddDocument(context.Background(), doc, document.Markdown); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}

	set := entity.NewSet()
	x.Finalize(set)
	if !set.Empty() {
		t.Errorf("entities extracted from fenced code: %+v", set)
	}
}

func TestExtractorParseError(t *testing.T) {
	x := testExtractor(t)
	err := x.AddDocument(context.Background(), "not bibtex at all", document.BibTeX)
	var perr *document.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *document.ParseError", err)
	}
}

func TestExtractorDedupsMentions(t *testing.T) {
	x := testExtractor(t)
	if err := x.AddDocument(context.Background(), "John Doe met John Doe.", document.Text); err != nil {
		t.Fatal(err)
	}

	set := entity.NewSet()
	x.Finalize(set)
	if len(set.Names) != 1 || len(set.Names[0].Variants) != 1 {
		t.Fatalf("set = %+v, want one group with one variant", set.Names)
	}
	if got := x.Counts().Found[entity.Person]; got != 2 {
		t.Errorf("Found = %d, want both occurrences counted", got)
	}
}
