// Package contentguard flags free text that contains blocked terms.
//
// Matching is case-insensitive and whole-word, so a blocked term inside a
// longer innocent word ("ass" in "classic") is not flagged. The filter is
// advisory: it can under- and over-block.
package contentguard

import (
	"regexp"
	"sort"
	"strings"

	svcErr "github.com/oggyb/campus-match/internal/errors"
)

// Result is the outcome of Check.
type Result struct {
	IsClean      bool
	MatchedTerms []string
}

// Field is one named piece of free text submitted by a user.
// Label is the human readable name used in messages.
type Field struct {
	Name  string
	Label string
	Text  string
}

// Violation describes the first offending field of a ValidateFields call.
type Violation struct {
	Field Field
	Terms []string
}

func (v Violation) Message() string {
	label := v.Field.Label
	if label == "" {
		label = v.Field.Name
	}
	return label + " contains inappropriate language"
}

// Guard holds a compiled blocklist. Safe for concurrent use.
type Guard struct {
	re *regexp.Regexp
}

// New compiles terms into a single whole-word pattern.
// Multi-word terms match across any run of whitespace.
func New(terms []string) *Guard {
	cleaned := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = normalize(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		cleaned = append(cleaned, t)
	}
	// longest first so phrases win over their prefixes
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })

	parts := make([]string, 0, len(cleaned))
	for _, t := range cleaned {
		words := strings.Fields(t)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s+`))
	}
	if len(parts) == 0 {
		return &Guard{}
	}
	return &Guard{re: regexp.MustCompile(`(?i)(?:^|` + nonWord + `)(` + strings.Join(parts, "|") + `)(?:$|` + nonWord + `)`)}
}

// nonWord is a Unicode-aware boundary; \b only knows ASCII letters, so it
// would split "putaña" after "puta".
const nonWord = `[^\p{L}\p{N}_]`

// findAll returns the blocked terms in text in order. The search resumes right
// after each term so one separator can end a match and start the next.
func (g *Guard) findAll(text string) []string {
	var found []string
	for pos := 0; pos < len(text); {
		loc := g.re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		found = append(found, text[pos+loc[2]:pos+loc[3]])
		pos += loc[3]
	}
	return found
}

// Default uses the built-in bilingual blocklist.
func Default() *Guard {
	return defaultGuard
}

var defaultGuard = New(Blocklist)

// Check reports every distinct blocked term found in text, lowercased, in
// order of first appearance.
func (g *Guard) Check(text string) Result {
	if g == nil || g.re == nil || strings.TrimSpace(text) == "" {
		return Result{IsClean: true}
	}

	found := g.findAll(text)
	if len(found) == 0 {
		return Result{IsClean: true}
	}

	terms := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, f := range found {
		f = normalize(f)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return Result{IsClean: false, MatchedTerms: terms}
}

// FirstViolation checks fields in order and stops at the first offender.
func (g *Guard) FirstViolation(fields []Field) (Violation, bool) {
	for _, f := range fields {
		if res := g.Check(f.Text); !res.IsClean {
			return Violation{Field: f, Terms: res.MatchedTerms}, true
		}
	}
	return Violation{}, false
}

// ValidateFields returns a validation error naming the first offending field, or nil.
func (g *Guard) ValidateFields(fields []Field) error {
	v, bad := g.FirstViolation(fields)
	if !bad {
		return nil
	}
	return svcErr.Validation(v.Field.Name, v.Message())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
