package cache

import (
	"time"

	"github.com/evidlabel/did/internal/detect"
)

// CachedDetection is the stored form of one recognizer run.
type CachedDetection struct {
	Language string        `json:"language"`
	Spans    []detect.Span `json:"spans"`
	CachedAt time.Time     `json:"cached_at"`
}

// Stats reports cache performance counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
