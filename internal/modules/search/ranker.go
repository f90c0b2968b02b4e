// README: Product ranking: edit distance, fuzzy name matching and weighted scoring.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scoring weights.
const (
	scoreExactName       = 200
	scoreNameContains    = 150
	scoreTokenSubstring  = 100
	scorePartialWord     = 85
	scoreFuzzySequence   = 80
	minNameSimilarity    = 70
	nameMatchBonus       = 50
	scoreCategoryContain = 40
	scoreCategoryFuzzy   = 20
	scoreDescription     = 10
)

type MatchType string

const (
	MatchNone           MatchType = "none"
	MatchExactSubstring MatchType = "exact_substring"
	MatchLevenshtein    MatchType = "levenshtein"
	MatchFuzzySequence  MatchType = "fuzzy_sequence"
	MatchPartialWord    MatchType = "partial_word"
)

type NameMatch struct {
	Matched bool
	Score   int
	Type    MatchType
}

// Levenshtein is the unit-cost edit distance between a and b, by rune.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(ra)+1)
	cur := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		cur[0] = j
		for i := 1; i <= len(ra); i++ {
			if ra[i-1] == rb[j-1] {
				cur[i] = prev[i-1]
				continue
			}
			cur[i] = 1 + min(prev[i], cur[i-1], prev[i-1])
		}
		prev, cur = cur, prev
	}
	return prev[len(ra)]
}

// Similarity maps edit distance to 0..100; two empty strings are 100.
func Similarity(a, b string) int {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 100
	}
	d := Levenshtein(a, b)
	return int(math.Round(float64(maxLen-d) / float64(maxLen) * 100))
}

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// fold lower-cases s and strips diacritics so "Crème" compares equal to "creme".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Sanitize folds the query, drops everything except [a-z0-9 -] and collapses whitespace.
func Sanitize(q string) string {
	q = strings.TrimSpace(fold(q))
	q = disallowed.ReplaceAllString(q, "")
	q = spaces.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

func Tokenize(q string) []string {
	return strings.Fields(q)
}

// isSubsequence reports whether every rune of token appears in s in order.
func isSubsequence(token, s string) bool {
	tr := []rune(token)
	if len(tr) == 0 {
		return true
	}
	i := 0
	for _, r := range s {
		if r == tr[i] {
			i++
			if i == len(tr) {
				return true
			}
		}
	}
	return false
}

// MatchName tries each token against name. A substring hit wins outright; otherwise
// the best of edit-distance similarity, in-order subsequence and word prefix is kept.
func MatchName(name string, tokens []string) NameMatch {
	nameL := fold(name)
	best, kind := 0, MatchNone
	consider := func(score int, t MatchType) {
		if score > best {
			best, kind = score, t
		}
	}
	for _, token := range tokens {
		tokenL := fold(token)
		if strings.Contains(nameL, tokenL) {
			return NameMatch{Matched: true, Score: scoreTokenSubstring, Type: MatchExactSubstring}
		}
		if sim := Similarity(tokenL, nameL); sim >= minNameSimilarity {
			consider(sim, MatchLevenshtein)
		}
		if isSubsequence(tokenL, nameL) {
			consider(scoreFuzzySequence, MatchFuzzySequence)
		}
		for _, w := range strings.Split(nameL, " ") {
			if strings.HasPrefix(w, tokenL) {
				consider(scorePartialWord, MatchPartialWord)
			}
		}
	}
	return NameMatch{Matched: best >= minNameSimilarity, Score: best, Type: kind}
}

// Score rates p against the tokenized query. An exact name match short-circuits.
func Score(p Product, tokens []string, fullQuery string) int {
	nameL, categoryL, descL := fold(p.Name), fold(p.Category), fold(p.Description)
	queryL := fold(fullQuery)

	if nameL == queryL {
		return scoreExactName
	}
	score := 0
	if strings.Contains(nameL, queryL) {
		score += scoreNameContains
	}
	for _, token := range tokens {
		tokenL := fold(token)
		if m := MatchName(p.Name, []string{token}); m.Matched {
			score += m.Score + nameMatchBonus
		}
		if strings.Contains(categoryL, tokenL) {
			score += scoreCategoryContain
		} else if sim := Similarity(tokenL, categoryL); sim >= minNameSimilarity {
			score += scoreCategoryFuzzy + (sim - minNameSimilarity)
		}
		if descL != "" && strings.Contains(descL, tokenL) {
			score += scoreDescription
		}
	}
	return max(score, 0)
}

type Scored struct {
	Product Product
	Score   int
	// Exact marks a name equal to the query. Exact hits rank ahead of every
	// partial hit, whose accumulated token scores can exceed scoreExactName.
	Exact bool
}

// Rank scores every candidate, drops zero scores and sorts exact name matches first,
// then by descending score. Ties keep input order.
func Rank(candidates []Product, tokens []string, fullQuery string) []Scored {
	queryL := fold(fullQuery)
	out := make([]Scored, 0, len(candidates))
	for _, p := range candidates {
		if s := Score(p, tokens, fullQuery); s > 0 {
			out = append(out, Scored{Product: p, Score: s, Exact: fold(p.Name) == queryL})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Exact != out[j].Exact {
			return out[i].Exact
		}
		return out[i].Score > out[j].Score
	})
	return out
}
