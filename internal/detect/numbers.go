package detect

import (
	"github.com/evidlabel/did/internal/entity"
)

// DensityDetector finds number-like substrings by digit density: any window
// with enough digits is a candidate, overlapping windows are merged, and the
// merged interval is trimmed to its digit boundaries. This catches account
// numbers, wrapped phone numbers, and other formats no fixed regex covers.
type DensityDetector struct {
	MinDigits int
	Window    int
	Density   float64
}

// NewDensityDetector returns a detector with the default tuning.
func NewDensityDetector(minDigits int) *DensityDetector {
	if minDigits <= 0 {
		minDigits = 4
	}
	return &DensityDetector{
		MinDigits: minDigits,
		Window:    12,
		Density:   0.4,
	}
}

// Find returns PHONE_NUMBER spans for high digit density regions of text.
func (d *DensityDetector) Find(text string) []Span {
	if len(text) < d.MinDigits {
		return nil
	}

	window := d.Window
	if window > len(text) {
		window = len(text)
	}

	// Prefix sums of digit counts, byte-indexed. Digits are ASCII so byte
	// windows are safe.
	prefix := make([]int, len(text)+1)
	for i := 0; i < len(text); i++ {
		prefix[i+1] = prefix[i]
		if text[i] >= '0' && text[i] <= '9' {
			prefix[i+1]++
		}
	}

	var intervals [][2]int
	for i := 0; i+window <= len(text); i++ {
		digits := prefix[i+window] - prefix[i]
		if digits >= d.MinDigits && float64(digits)/float64(window) >= d.Density {
			intervals = append(intervals, [2]int{i, i + window})
		}
	}
	if len(intervals) == 0 {
		return nil
	}

	// Merge overlapping windows.
	merged := intervals[:1]
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv[0] <= last[1] {
			if iv[1] > last[1] {
				last[1] = iv[1]
			}
		} else {
			merged = append(merged, iv)
		}
	}

	// A merged interval can bridge unrelated numbers across words
	// ("...7890 or 12 34..."), so split it at bytes that cannot be part of a
	// formatted number before trimming each piece to its digit boundaries.
	var spans []Span
	for _, iv := range merged {
		segStart := iv[0]
		for i := iv[0]; i <= iv[1]; i++ {
			if i < iv[1] && isNumberByte(text[i]) {
				continue
			}
			start, end := segStart, i
			for start < end && !isDigitByte(text[start]) {
				start++
			}
			for end > start && !isDigitByte(text[end-1]) {
				end--
			}
			if prefix[end]-prefix[start] >= d.MinDigits {
				spans = append(spans, Span{
					Start: start,
					End:   end,
					Kind:  entity.PhoneNumber,
					Text:  text[start:end],
				})
			}
			segStart = i + 1
		}
	}
	return spans
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

// isNumberByte reports whether b can appear inside a formatted number.
func isNumberByte(b byte) bool {
	switch {
	case isDigitByte(b):
		return true
	case b == ' ' || b == '\t' || b == '\n' || b == '\r':
		return true
	case b == '.' || b == '-' || b == '/' || b == '+' || b == '(' || b == ')':
		return true
	}
	return false
}
