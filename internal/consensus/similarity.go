package consensus

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// minTokenLength is the shortest token that counts as significant.
const minTokenLength = 3

var stopWords = makeSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "have", "been", "being",
	"this", "that", "these", "those", "with", "from", "into", "onto", "than",
	"then", "there", "their", "them", "they", "what", "when", "where", "which",
	"while", "who", "whom", "why", "how", "will", "would", "should", "could",
	"shall", "may", "might", "must", "does", "did", "doing", "done", "its",
	"also", "just", "only", "very", "more", "most", "some", "such", "each",
	"other", "over", "under", "about", "above", "below", "after", "before",
	"because", "between", "both", "either", "neither", "here", "were", "your",
	"yours", "his", "she", "him", "itself", "same", "too", "own", "off",
	"again", "further", "once", "during", "through", "until", "upon", "via",
)

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// significantWords lowercases text, splits it on whitespace, and strips
// non-alphanumerics inside each word, so "null-check" is one token. It keeps
// the distinct tokens of at least minTokenLength runes that are not stop words.
func significantWords(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))

	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Map(keepAlphanumeric, f)
		if utf8.RuneCountInString(f) < minTokenLength {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		words[f] = struct{}{}
	}
	return words
}

func keepAlphanumeric(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return r
	}
	return -1
}

// overlapCoefficient returns |A ∩ B| / min(|A|, |B|), or 0 if either set is empty.
func overlapCoefficient(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}

	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// Similarity scores how likely a and b describe the same issue, in [0, 1].
// Findings in different files, or further apart than the policy's line
// window, score 0 regardless of wording.
func Similarity(a, b domain.Finding, policy Policy) float64 {
	if a.File != b.File {
		return 0
	}
	if abs(a.Line-b.Line) > policy.LineWindow {
		return 0
	}
	return overlapCoefficient(
		significantWords(a.Title+" "+a.Description),
		significantWords(b.Title+" "+b.Description),
	)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
