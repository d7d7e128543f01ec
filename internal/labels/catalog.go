// Package labels cleans user-typed class labels and suggests known ones.
package labels

import (
	"sort"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"github.com/microcosm-cc/bluemonday"
)

// maxLabelLength bounds a corrected label after cleaning.
const maxLabelLength = 128

// Catalog is an immutable set of known labels.
type Catalog struct {
	labels     []string
	normalized []string
	policy     *bluemonday.Policy
}

func NewCatalog(known []string) *Catalog {
	c := &Catalog{policy: bluemonday.StrictPolicy()}
	seen := make(map[string]bool, len(known))
	for _, l := range known {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		c.labels = append(c.labels, l)
		c.normalized = append(c.normalized, Normalize(l))
	}
	return c
}

// Labels returns a copy of the known labels.
func (c *Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Clean strips markup and surrounding space from a user-typed label.
func (c *Catalog) Clean(s string) string {
	s = c.policy.Sanitize(s)
	// Sanitize escapes what it keeps; labels are plain text.
	s = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&lt;", "<", "&gt;", ">").Replace(s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxLabelLength {
		s = string(r[:maxLabelLength])
	}
	return s
}

// Normalize folds case and treats spaces and dashes as underscores.
func Normalize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
		default:
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		}
	}
	return strings.Trim(b.String(), "_")
}

// Canonical returns the known label equal to s after normalisation.
func (c *Catalog) Canonical(s string) (string, bool) {
	n := Normalize(s)
	for i, kn := range c.normalized {
		if kn == n {
			return c.labels[i], true
		}
	}
	return "", false
}

type scored struct {
	label    string
	score    int
	contains bool
}

// Suggest returns up to limit known labels closest to query. Labels that
// contain the query rank first, then by edit distance, then alphabetically.
func (c *Catalog) Suggest(query string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	q := Normalize(query)
	if q == "" {
		if limit > len(c.labels) {
			limit = len(c.labels)
		}
		out := append([]string(nil), c.labels...)
		sort.Strings(out)
		return out[:limit]
	}

	// Distances above this are noise for short queries.
	maxDistance := len(q)/2 + 2

	var candidates []scored
	for i, kn := range c.normalized {
		contains := strings.Contains(kn, q)
		d := levenshtein.Distance(q, kn)
		if !contains && d > maxDistance {
			continue
		}
		candidates = append(candidates, scored{label: c.labels[i], score: d, contains: contains})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.contains != b.contains {
			return a.contains
		}
		if a.score != b.score {
			return a.score < b.score
		}
		return a.label < b.label
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, s := range candidates {
		out[i] = s.label
	}
	return out
}
