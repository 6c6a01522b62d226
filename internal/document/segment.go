package document

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Format identifies a supported document format.
type Format string

const (
	Text     Format = "txt"
	Markdown Format = "md"
	TeX      Format = "tex"
	BibTeX   Format = "bib"
)

// FormatForPath infers the document format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return Text, nil
	case ".md", ".markdown":
		return Markdown, nil
	case ".tex":
		return TeX, nil
	case ".bib":
		return BibTeX, nil
	}
	return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
}

// Region is a half-open byte range of a document. Content regions are
// eligible for entity detection and replacement; syntax regions are emitted
// byte-identical.
type Region struct {
	Start   int
	End     int
	Content bool
}

// ParseError reports a malformed document. Replacement fails fast on it
// rather than attempting a partial, unsafe substitution.
type ParseError struct {
	Format Format
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed %s document at byte %d: %s", e.Format, e.Offset, e.Reason)
}

// Segment splits a document into an ordered, non-overlapping cover of
// content and syntax regions.
func Segment(text string, format Format) ([]Region, error) {
	switch format {
	case Text:
		if len(text) == 0 {
			return nil, nil
		}
		return []Region{{Start: 0, End: len(text), Content: true}}, nil
	case Markdown:
		return segmentMarkdown(text)
	case TeX:
		return segmentTeX(text)
	case BibTeX:
		return segmentBibTeX(text)
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// ContentOnly concatenates the content regions of a document, for
// extraction. Region boundaries are joined with newlines so mentions never
// merge across regions.
func ContentOnly(text string, regions []Region) string {
	var b strings.Builder
	for _, r := range regions {
		if !r.Content {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text[r.Start:r.End])
	}
	return b.String()
}

// cover builds the region cover of [0, n) from a set of excluded (syntax)
// intervals, which may overlap.
func cover(n int, excluded [][2]int) []Region {
	if n == 0 {
		return nil
	}
	if len(excluded) == 0 {
		return []Region{{Start: 0, End: n, Content: true}}
	}

	sort.Slice(excluded, func(i, j int) bool { return excluded[i][0] < excluded[j][0] })

	merged := make([][2]int, 0, len(excluded))
	for _, iv := range excluded {
		if iv[0] >= iv[1] {
			continue
		}
		if len(merged) > 0 && iv[0] <= merged[len(merged)-1][1] {
			if iv[1] > merged[len(merged)-1][1] {
				merged[len(merged)-1][1] = iv[1]
			}
		} else {
			merged = append(merged, iv)
		}
	}

	var regions []Region
	pos := 0
	for _, iv := range merged {
		if iv[0] > pos {
			regions = append(regions, Region{Start: pos, End: iv[0], Content: true})
		}
		regions = append(regions, Region{Start: iv[0], End: iv[1], Content: false})
		pos = iv[1]
	}
	if pos < n {
		regions = append(regions, Region{Start: pos, End: n, Content: true})
	}
	return regions
}

// segmentMarkdown excludes fenced code blocks, inline code spans, and
// link/image destinations. Markdown has no failure mode: anything that does
// not parse as markup is plain content.
func segmentMarkdown(text string) ([]Region, error) {
	var excluded [][2]int

	// Fenced code blocks (``` ... ```), fence lines included.
	inFence := false
	fenceStart := 0
	pos := 0
	for pos <= len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if end >= 0 {
			lineEnd = pos + end + 1
		}
		line := strings.TrimRight(text[pos:lineEnd], "\n")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				excluded = append(excluded, [2]int{fenceStart, lineEnd})
				inFence = false
			} else {
				inFence = true
				fenceStart = pos
			}
		}
		if end < 0 {
			break
		}
		pos = lineEnd
	}
	if inFence {
		// Unterminated fence: exclude through end of document.
		excluded = append(excluded, [2]int{fenceStart, len(text)})
	}

	// Inline code spans.
	for i := 0; i < len(text); {
		if text[i] != '`' {
			i++
			continue
		}
		j := strings.IndexByte(text[i+1:], '`')
		if j < 0 {
			break
		}
		excluded = append(excluded, [2]int{i, i + j + 2})
		i += j + 2
	}

	// Link and image destinations: the (...) part of [label](dest).
	for i := 0; i+1 < len(text); i++ {
		if text[i] != ']' || text[i+1] != '(' {
			continue
		}
		depth := 1
		j := i + 2
		for j < len(text) && depth > 0 {
			switch text[j] {
			case '(':
				depth++
			case ')':
				depth--
			case '\n':
				depth = -1 // destinations do not span lines
			}
			j++
		}
		if depth == 0 {
			excluded = append(excluded, [2]int{i + 1, j})
		}
	}

	return cover(len(text), excluded), nil
}

// segmentTeX excludes command names (including \begin/\end and their
// environment name argument), comments, and math-mode delimiters. Unbalanced
// braces outside comments are a parse error.
func segmentTeX(text string) ([]Region, error) {
	var excluded [][2]int
	depth := 0

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			if isTexLetter(text[i+1]) {
				j := i + 1
				for j < len(text) && isTexLetter(text[j]) {
					j++
				}
				if j < len(text) && text[j] == '*' {
					j++
				}
				name := text[i+1 : j]
				if name == "begin" || name == "end" {
					// Exclude the {environment} argument as well.
					if j < len(text) && text[j] == '{' {
						k := strings.IndexByte(text[j:], '}')
						if k < 0 {
							return nil, &ParseError{Format: TeX, Offset: j, Reason: fmt.Sprintf(`unterminated \%s{`, name)}
						}
						j += k + 1
					}
				}
				excluded = append(excluded, [2]int{i, j})
				i = j
				continue
			}
			// Escaped character such as \% or \{ — skip both bytes.
			excluded = append(excluded, [2]int{i, i + 2})
			i += 2
			continue
		case c == '%':
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				j = len(text) - i
			}
			excluded = append(excluded, [2]int{i, i + j})
			i += j
			continue
		case c == '{':
			depth++
			excluded = append(excluded, [2]int{i, i + 1})
		case c == '}':
			depth--
			if depth < 0 {
				return nil, &ParseError{Format: TeX, Offset: i, Reason: "unbalanced closing brace"}
			}
			excluded = append(excluded, [2]int{i, i + 1})
		case c == '$':
			excluded = append(excluded, [2]int{i, i + 1})
		}
		i++
	}

	if depth != 0 {
		return nil, &ParseError{Format: TeX, Offset: len(text), Reason: "unbalanced opening brace"}
	}

	return cover(len(text), excluded), nil
}

func isTexLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '@'
}

// segmentBibTeX exposes only field values as content: entry types, citation
// keys, and field names are syntax. Structural errors fail fast.
func segmentBibTeX(text string) ([]Region, error) {
	var contents [][2]int

	i := 0
	for i < len(text) {
		c := text[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}
		if c == '%' {
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				break
			}
			i += j + 1
			continue
		}
		if c != '@' {
			return nil, &ParseError{Format: BibTeX, Offset: i, Reason: fmt.Sprintf("expected '@', found %q", c)}
		}

		next, entryContents, err := parseBibEntry(text, i)
		if err != nil {
			return nil, err
		}
		contents = append(contents, entryContents...)
		i = next
	}

	// Invert: everything except field values is syntax.
	var excluded [][2]int
	pos := 0
	sort.Slice(contents, func(a, b int) bool { return contents[a][0] < contents[b][0] })
	for _, iv := range contents {
		if iv[0] > pos {
			excluded = append(excluded, [2]int{pos, iv[0]})
		}
		pos = iv[1]
	}
	if pos < len(text) {
		excluded = append(excluded, [2]int{pos, len(text)})
	}

	return cover(len(text), excluded), nil
}

// parseBibEntry parses one @type{key, field = value, ...} entry starting at
// the '@'. Returns the offset past the entry and the value ranges.
func parseBibEntry(text string, at int) (int, [][2]int, error) {
	i := at + 1
	start := i
	for i < len(text) && isBibIdent(text[i]) {
		i++
	}
	entryType := strings.ToLower(text[start:i])
	if entryType == "" {
		return 0, nil, &ParseError{Format: BibTeX, Offset: at, Reason: "missing entry type after '@'"}
	}

	i = skipBibSpace(text, i)
	if i >= len(text) || text[i] != '{' {
		return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: fmt.Sprintf("expected '{' after @%s", entryType)}
	}
	i++

	// @comment and @preamble carry no field structure; skip to the matching
	// close brace, everything inside is syntax.
	if entryType == "comment" || entryType == "preamble" {
		end, err := skipBalanced(text, i-1)
		if err != nil {
			return 0, nil, err
		}
		return end, nil, nil
	}

	// Citation key (absent for @string).
	if entryType != "string" {
		i = skipBibSpace(text, i)
		for i < len(text) && text[i] != ',' && text[i] != '}' {
			i++
		}
		if i < len(text) && text[i] == ',' {
			i++
		}
	}

	var values [][2]int
	for {
		i = skipBibSpace(text, i)
		if i >= len(text) {
			return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: "unterminated entry"}
		}
		if text[i] == '}' {
			return i + 1, values, nil
		}

		// Field name.
		nameStart := i
		for i < len(text) && isBibIdent(text[i]) {
			i++
		}
		if i == nameStart {
			return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: fmt.Sprintf("expected field name, found %q", text[i])}
		}

		i = skipBibSpace(text, i)
		if i >= len(text) || text[i] != '=' {
			return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: "expected '=' after field name"}
		}
		i = skipBibSpace(text, i+1)
		if i >= len(text) {
			return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: "missing field value"}
		}

		switch text[i] {
		case '{':
			end, err := skipBalanced(text, i)
			if err != nil {
				return 0, nil, err
			}
			values = append(values, [2]int{i + 1, end - 1})
			i = end
		case '"':
			j := strings.IndexByte(text[i+1:], '"')
			if j < 0 {
				return 0, nil, &ParseError{Format: BibTeX, Offset: i, Reason: "unterminated quoted value"}
			}
			values = append(values, [2]int{i + 1, i + 1 + j})
			i += j + 2
		default:
			// Bare value (number or macro name).
			valStart := i
			for i < len(text) && text[i] != ',' && text[i] != '}' && text[i] != '\n' {
				i++
			}
			values = append(values, [2]int{valStart, i})
		}

		i = skipBibSpace(text, i)
		if i < len(text) && text[i] == ',' {
			i++
		}
	}
}

// skipBalanced consumes a { ... } group with nesting, starting at the '{'.
// Returns the offset just past the closing brace.
func skipBalanced(text string, at int) (int, error) {
	depth := 0
	for i := at; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, &ParseError{Format: BibTeX, Offset: at, Reason: "unbalanced braces"}
}

func skipBibSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r') {
		i++
	}
	return i
}

func isBibIdent(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') ||
		b == '_' || b == '-' || b == ':' || b == '.'
}
