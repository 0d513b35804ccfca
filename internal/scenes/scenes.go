// Package scenes parses user supplied trim ranges and scene names.
package scenes

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	listSeparator  = ","
	rangeSeparator = "-"
)

var (
	ErrInvalidFormat     = errors.New("no valid start-end ranges")
	ErrNameCountMismatch = errors.New("number of names does not match number of scenes")
)

// Range is a start/end pair. Values are passed to the transcoder as-is.
type Range struct {
	Start string
	End   string
}

func (r Range) String() string {
	return r.Start + " - " + r.End
}

// Scene is one requested clip. Index is 1-based.
type Scene struct {
	Index int
	Start string
	End   string
	Name  string
}

// ParseRanges splits text such as "00:00:10-00:00:20,00:01:00-00:01:10" into
// ordered ranges. Tokens without exactly one separator, or with an empty side,
// are skipped. ErrInvalidFormat is returned when nothing usable remains.
func ParseRanges(text string) ([]Range, error) {
	var ranges []Range
	for _, token := range strings.Split(text, listSeparator) {
		if strings.Count(token, rangeSeparator) != 1 {
			continue
		}
		start, end, _ := strings.Cut(token, rangeSeparator)
		start, end = strings.TrimSpace(start), strings.TrimSpace(end)
		if start == "" || end == "" {
			continue
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	if len(ranges) == 0 {
		return nil, ErrInvalidFormat
	}
	return ranges, nil
}

// ParseNames splits a comma separated list of scene names.
func ParseNames(text string) []string {
	parts := strings.Split(strings.TrimSpace(text), listSeparator)
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = strings.TrimSpace(p)
	}
	return names
}

// Zip pairs ranges with names in order.
func Zip(ranges []Range, names []string) ([]Scene, error) {
	if len(ranges) != len(names) {
		return nil, fmt.Errorf("%w: %d names for %d scenes", ErrNameCountMismatch, len(names), len(ranges))
	}
	out := make([]Scene, len(ranges))
	for i, r := range ranges {
		out[i] = Scene{Index: i + 1, Start: r.Start, End: r.End, Name: names[i]}
	}
	return out, nil
}

// SanitizeName keeps letters, digits, '_', '-' and spaces, then turns each
// run of spaces into a single underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), "_")
}

// FileStem is SanitizeName with a positional fallback for names that
// sanitize to nothing.
func (s Scene) FileStem() string {
	if safe := SanitizeName(s.Name); safe != "" {
		return safe
	}
	return fmt.Sprintf("scene_%d", s.Index)
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_':
		return true
	default:
		return false
	}
}
