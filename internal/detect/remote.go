package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/entity"
)

// Remote is a client for an external NER service. The service receives
// {"text": ..., "language": ...} and answers a JSON array of
// {"start", "end", "label"} spans with byte offsets into the text.
// Failures surface as RecognitionError; they are never silently swallowed.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a remote recognizer client.
func NewRemote(cfg config.RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

type remoteRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type remoteSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Detect calls the remote service and converts its spans. Spans with labels
// outside the supported kinds or with out-of-range offsets are rejected.
func (r *Remote) Detect(ctx context.Context, text, language string) ([]Span, error) {
	body, err := json.Marshal(remoteRequest{Text: text, Language: language})
	if err != nil {
		return nil, &RecognitionError{Language: language, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, &RecognitionError{Language: language, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &RecognitionError{Language: language, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RecognitionError{
			Language: language,
			Err:      fmt.Errorf("recognizer service returned %d: %s", resp.StatusCode, data),
		}
	}

	var raw []remoteSpan
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &RecognitionError{Language: language, Err: fmt.Errorf("bad recognizer response: %w", err)}
	}

	spans := make([]Span, 0, len(raw))
	for _, rs := range raw {
		kind := entity.Kind(rs.Label)
		if !kind.Valid() {
			continue
		}
		if rs.Start < 0 || rs.End > len(text) || rs.Start >= rs.End {
			return nil, &RecognitionError{
				Language: language,
				Err:      fmt.Errorf("recognizer span [%d:%d) out of range", rs.Start, rs.End),
			}
		}
		spans = append(spans, Span{Start: rs.Start, End: rs.End, Kind: kind, Text: text[rs.Start:rs.End]})
	}
	return spans, nil
}
