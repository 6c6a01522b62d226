package detect

import (
	"context"
	"fmt"

	"github.com/evidlabel/did/internal/entity"
)

// Supported detection languages.
const (
	LangEnglish = "en"
	LangDanish  = "da"
)

// ValidLanguage reports whether lang is a supported detection language.
func ValidLanguage(lang string) bool {
	return lang == LangEnglish || lang == LangDanish
}

// Span is one raw candidate entity mention: byte offsets into the scanned
// text, the kind, and the matched text. Spans are transient: produced by
// collectors, consumed by the clusterer and replacement engine, never
// persisted.
type Span struct {
	Start int
	End   int
	Kind  entity.Kind
	Text  string
}

// Recognizer detects entity mentions in a text blob. Implementations must
// return spans with Text == input[Start:End].
type Recognizer interface {
	Detect(ctx context.Context, text, language string) ([]Span, error)
}

// RecognitionError reports a recognizer collaborator failure. It aborts the
// affected file; the batch continues.
type RecognitionError struct {
	Language string
	Err      error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("entity recognition failed (language %s): %v", e.Language, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
