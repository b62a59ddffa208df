package lore

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"opentales/app/internal/viewer"
)

// Segment is one piece of mention-resolved text. Entry is nil for plain text
// and set for a reference segment. Text always holds the exact substring of
// the input it covers (including the leading @ for references), so
// concatenating every segment reproduces the original text.
type Segment struct {
	Text  string `json:"text"`
	Entry *Entry `json:"entry,omitempty"`
}

// IsReference reports whether the segment links to a lore entry.
func (s Segment) IsReference() bool {
	return s.Entry != nil
}

// ResolveMentions scans text for @Title references against the titles of
// entries visible to the viewer and returns the alternating plain/reference
// segments. Titles are matched case-insensitively and longer titles win over
// shorter prefixes ("@Dragon Lord" binds to "Dragon Lord", never "Dragon" +
// " Lord"). A lone @ or an @ followed by an unknown title passes through as
// plain text. When several entries share a title the reference binds to the
// one with the smallest id, i.e. the earliest-created entry; the ambiguity is
// inherent to non-unique titles and this tie-break keeps resolution
// deterministic.
func ResolveMentions(text string, entries []Entry, v viewer.Context) []Segment {
	if text == "" {
		return nil
	}

	titles, byTitle := mentionIndex(entries, v)
	if len(titles) == 0 {
		return []Segment{{Text: text}}
	}

	escaped := make([]string, len(titles))
	for i, title := range titles {
		escaped[i] = regexp.QuoteMeta(title)
	}

	// Alternation order matters: Go's regexp prefers earlier alternatives,
	// so sorting titles by descending length first ensures the longest
	// matching title is consumed.
	pattern, err := regexp.Compile(`(?i)@(` + strings.Join(escaped, "|") + `)`)
	if err != nil {
		return []Segment{{Text: text}}
	}

	var segments []Segment
	last := 0
	for _, match := range pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := match[0], match[1]
		if start > last {
			segments = append(segments, Segment{Text: text[last:start]})
		}

		title := strings.ToLower(text[match[2]:match[3]])
		segments = append(segments, Segment{Text: text[start:end], Entry: byTitle[title]})
		last = end
	}

	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}

	return segments
}

// SuggestMentions returns the visible entries whose titles contain the
// partial filter typed after an @ trigger, ordered by title. An empty filter
// returns every visible entry.
func SuggestMentions(filter string, entries []Entry, v viewer.Context) []Entry {
	needle := strings.ToLower(strings.TrimSpace(filter))

	var matches []Entry
	for _, e := range entries {
		if !e.VisibleTo(v) || e.Title == "" {
			continue
		}
		if strings.Contains(strings.ToLower(e.Title), needle) {
			matches = append(matches, e)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].Title) < strings.ToLower(matches[j].Title)
	})
	return matches
}

// TriggerFilter locates an active @ trigger for the cursor position inside
// composed text. It returns the byte offset of the @ and the partial filter
// typed between the trigger and the cursor. The trigger is broken by any
// whitespace between the @ and the cursor.
func TriggerFilter(text string, cursor int) (start int, filter string, ok bool) {
	if cursor < 0 || cursor > len(text) {
		return 0, "", false
	}

	for i := cursor; i > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		if r == '@' {
			return i, text[i+1 : cursor], true
		}
		if r == ' ' || r == '\t' || r == '\n' {
			return 0, "", false
		}
	}
	return 0, "", false
}

// ApplyMention splices a selected title into composed text, replacing the
// trigger and partially-typed filter between start and cursor with
// "@Title " so typing can continue after the reference.
func ApplyMention(text string, start, cursor int, title string) string {
	if start < 0 || cursor < start || cursor > len(text) {
		return text
	}
	return text[:start] + "@" + title + " " + text[cursor:]
}

func mentionIndex(entries []Entry, v viewer.Context) ([]string, map[string]*Entry) {
	byTitle := make(map[string]*Entry)
	for i := range entries {
		e := &entries[i]
		if !e.VisibleTo(v) || e.Title == "" {
			continue
		}
		key := strings.ToLower(e.Title)
		if existing, ok := byTitle[key]; !ok || e.ID < existing.ID {
			byTitle[key] = e
		}
	}

	titles := make([]string, 0, len(byTitle))
	for title := range byTitle {
		titles = append(titles, title)
	}
	sort.Slice(titles, func(i, j int) bool {
		if len(titles[i]) != len(titles[j]) {
			return len(titles[i]) > len(titles[j])
		}
		return titles[i] < titles[j]
	})

	return titles, byTitle
}
