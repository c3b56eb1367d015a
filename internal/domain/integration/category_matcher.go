package integration

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchResult is the outcome of matching one local category against a tree
type MatchResult struct {
	// Best is the highest scoring candidate, nil if the tree was empty
	Best *RemoteCategory
	// Score is the confidence of Best in [0, 1]
	Score float64
	// Exact is true when Best matched by normalized path
	Exact bool
	// NeedsManualMapping is true when Score is below the threshold.
	// Such a match must never be used for automatic sync.
	NeedsManualMapping bool
}

// CategoryMatcher maps local categories onto marketplace category trees.
// Exact path matches win; otherwise candidates are scored by normalized
// edit distance and the best one is accepted only above Threshold.
type CategoryMatcher struct {
	Threshold float64
	// LeafOnly restricts candidates to leaf categories
	LeafOnly bool
}

// NewCategoryMatcher creates a matcher. A non-positive threshold falls back to DefaultMatchThreshold.
func NewCategoryMatcher(threshold float64) *CategoryMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return &CategoryMatcher{Threshold: threshold, LeafOnly: true}
}

// Match finds the best remote category for a local category
func (m *CategoryMatcher) Match(local LocalCategory, candidates []RemoteCategory) MatchResult {
	localPath := normalizePath(local.Path)
	localLeaf := NormalizeCategoryName(local.Name)

	var (
		best      *RemoteCategory
		bestScore float64
	)
	for i := range candidates {
		c := &candidates[i]
		if m.LeafOnly && !c.Leaf {
			continue
		}
		if localPath != "" && normalizePath(c.Path) == localPath {
			return MatchResult{Best: c, Score: 1, Exact: true}
		}

		score := Similarity(localLeaf, NormalizeCategoryName(c.Name))
		if pathScore := Similarity(localPath, normalizePath(c.Path)); pathScore > score {
			score = pathScore
		}
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == nil {
		return MatchResult{NeedsManualMapping: true}
	}
	return MatchResult{
		Best:               best,
		Score:              bestScore,
		NeedsManualMapping: bestScore < m.Threshold,
	}
}

// ---------------------------------------------------------------------------
// Normalization and similarity
// ---------------------------------------------------------------------------

// dotless i has no decomposition, fold it by hand
var foldReplacer = strings.NewReplacer("ı", "i", "&", " ve ", "+", " ")

// NormalizeCategoryName lower-cases with Turkish rules, strips diacritics,
// replaces punctuation with spaces and collapses whitespace.
// "Kadın Ayakkabı & Çanta" becomes "kadin ayakkabi ve canta".
func NormalizeCategoryName(s string) string {
	// a Caser is stateful and must not be shared between goroutines
	s = cases.Lower(language.Turkish).String(s)
	s = foldReplacer.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizePath(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		if n := NormalizeCategoryName(p); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "/")
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)), on runes.
// Two empty strings are not considered similar.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the edit distance with two rolling rows
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
