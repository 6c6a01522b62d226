package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/document"
	"github.com/evidlabel/did/internal/entity"
	"go.uber.org/zap"
)

// anonymizeRequest is the body of POST /v1/anonymize.
type anonymizeRequest struct {
	Text   string `json:"text"`
	Format string `json:"format,omitempty"` // txt, md, tex, bib; default txt
}

// anonymizeResponse carries the anonymized text and per-kind counters.
type anonymizeResponse struct {
	Text          string         `json:"text"`
	Found         map[string]int `json:"found"`
	Replaced      map[string]int `json:"replaced"`
	MintedGroups  int            `json:"minted_groups"`
	ConfigChanged bool           `json:"config_changed"`
}

// extractRequest is the body of POST /v1/extract.
type extractRequest struct {
	Texts  []string `json:"texts"`
	Format string   `json:"format,omitempty"`
}

// extractResponse reports the updated entity configuration.
type extractResponse struct {
	Found    map[string]int `json:"found"`
	Groups   int            `json:"groups"`
	Entities string         `json:"entities"` // YAML entity configuration
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":     "did",
		"language": s.config.Language,
		"groups":   s.groupCount(),
	}
	if s.cache != nil {
		info["cache"] = s.cache.Stats()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleAnonymize anonymizes one document against the shared entity set.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	format, err := parseFormat(req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()

	s.mu.Lock()
	result, err := s.engine.Anonymize(r.Context(), req.Text, format, s.entities)
	s.mu.Unlock()

	if err != nil {
		s.writeProcessingError(w, err)
		return
	}

	resp := anonymizeResponse{
		Text:          result.Text,
		Found:         kindCounts(result.Counts.Found),
		Replaced:      kindCounts(result.Counts.Replaced),
		MintedGroups:  result.Counts.Minted,
		ConfigChanged: result.ConfigChanged,
	}
	writeJSON(w, http.StatusOK, resp)

	s.hub.Broadcast(Event{
		Type:      EventAnonymized,
		Timestamp: time.Now(),
		Data: AnonymizedEvent{
			Format:       string(format),
			Replaced:     resp.Replaced,
			MintedGroups: resp.MintedGroups,
			ProcessingMS: float64(time.Since(start).Microseconds()) / 1000,
		},
	})
}

// handleExtract collects and clusters entities from the posted texts into
// the shared entity set.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	format, err := parseFormat(req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	extractor := s.newExtractor()
	for _, text := range req.Texts {
		if err := extractor.AddDocument(r.Context(), text, format); err != nil {
			s.writeProcessingError(w, err)
			return
		}
	}

	s.mu.Lock()
	extractor.Finalize(s.entities)
	data, err := entity.Marshal(s.entities)
	groups := s.entities.GroupCount()
	s.mu.Unlock()

	if err != nil {
		s.writeProcessingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Found:    kindCounts(extractor.Counts().Found),
		Groups:   groups,
		Entities: string(data),
	})

	s.hub.Broadcast(Event{
		Type:      EventExtracted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"documents": len(req.Texts),
			"found":     kindCounts(extractor.Counts().Found),
			"groups":    groups,
		},
	})
}

// handleEntities returns the current entity configuration as YAML.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, err := entity.Marshal(s.entities)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleEvents upgrades to a websocket subscribed to anonymization events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// writeProcessingError maps domain errors to HTTP statuses: malformed
// documents and bad configurations are client errors, recognizer failures
// are upstream errors.
func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	var (
		parseErr *document.ParseError
		valErr   *entity.ValidationError
		patErr   *entity.PatternError
		recErr   *detect.RecognitionError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &valErr), errors.As(err, &patErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &recErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
	s.logger.Error("Request failed", zap.Error(err))
}

func parseFormat(f string) (document.Format, error) {
	if f == "" {
		return document.Text, nil
	}
	switch document.Format(f) {
	case document.Text, document.Markdown, document.TeX, document.BibTeX:
		return document.Format(f), nil
	}
	return "", fmt.Errorf("unsupported format: %s", f)
}

func kindCounts(m map[entity.Kind]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
