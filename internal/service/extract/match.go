package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	exactConfidence    = 1.0
	fuzzyCeiling       = 0.9
	contextConfidence  = 0.4
	fallbackConfidence = 0.3
	minFuzzyLength     = 3
)

var wordRe = regexp.MustCompile(`[a-z][a-z'\-]*`)

// stopwords never name a customer or strain on their own.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "for": true, "of": true, "and": true, "at": true,
	"on": true, "in": true, "with": true, "some": true, "me": true, "my": true, "i": true,
	"he": true, "she": true, "they": true, "him": true, "her": true, "them": true, "it": true,
	"sold": true, "sell": true, "sale": true, "sales": true, "gave": true, "paid": true, "pay": true,
	"owes": true, "owe": true, "owing": true, "still": true, "tick": true, "ticked": true, "iou": true,
	"credit": true, "fronted": true, "front": true, "today": true, "tonight": true, "yesterday": true,
	"last": true, "night": true, "profit": true, "made": true, "total": true, "price": true,
	"bucks": true, "dollars": true, "usd": true, "cash": true, "g": true, "gs": true, "gram": true,
	"grams": true, "oz": true, "ounce": true, "ounces": true, "lb": true, "lbs": true, "zip": true,
	"eighth": true, "quarter": true, "half": true, "ok": true,
}

// token is a word located in the working text.
type token struct {
	start, end int
	lower      string
}

// candidate is a compiled catalog name.
type candidate struct {
	name  string
	lower string
	words int
	re    *regexp.Regexp
}

func compileCandidates(names []string) []candidate {
	out := make([]candidate, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		lower := strings.ToLower(trimmed)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, candidate{
			name:  trimmed,
			lower: lower,
			words: len(strings.Fields(lower)),
			re:    regexp.MustCompile(`\b` + regexp.QuoteMeta(lower) + `\b`),
		})
	}
	// Longest names first so "blue dream" wins over "dream".
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].lower) > len(out[j].lower) })
	return out
}

func tokenize(work string) []token {
	locs := wordRe.FindAllStringIndex(work, -1)
	out := make([]token, 0, len(locs))
	for _, l := range locs {
		out = append(out, token{start: l[0], end: l[1], lower: work[l[0]:l[1]]})
	}
	return out
}

// span is a half-open byte range in the working text.
type span struct{ start, end int }

func (s span) overlaps(o span) bool { return s.start < o.end && o.start < s.end }

func overlapsAny(s span, used []span) bool {
	for _, u := range used {
		if s.overlaps(u) {
			return true
		}
	}
	return false
}

// matchResult is a catalog hit.
type matchResult struct {
	name       string
	confidence float64
	at         span
}

// matchCatalog finds the best catalog name in work: exact whole-word match
// first, then the closest fuzzy window of tokens.
func matchCatalog(work string, tokens []token, catalog []candidate, used []span) (matchResult, bool) {
	for _, c := range catalog {
		for _, loc := range c.re.FindAllStringIndex(work, -1) {
			at := span{loc[0], loc[1]}
			if !overlapsAny(at, used) {
				return matchResult{name: c.name, confidence: exactConfidence, at: at}, true
			}
		}
	}

	var (
		best  matchResult
		found bool
	)
	for _, c := range catalog {
		if len(c.lower) < minFuzzyLength {
			continue
		}
		for i := 0; i+c.words <= len(tokens); i++ {
			window := tokens[i : i+c.words]
			at := span{window[0].start, window[len(window)-1].end}
			if overlapsAny(at, used) || stopwords[window[0].lower] {
				continue
			}
			parts := make([]string, len(window))
			for k, tk := range window {
				parts[k] = tk.lower
			}
			joined := strings.Join(parts, " ")
			if len(joined) < minFuzzyLength {
				continue
			}

			d := levenshtein.ComputeDistance(joined, c.lower)
			if d == 0 || d > maxEdits(len(c.lower)) {
				continue
			}
			conf := fuzzyConfidence(d, len(c.lower))
			if !found || conf > best.confidence {
				best = matchResult{name: c.name, confidence: conf, at: at}
				found = true
			}
		}
	}
	return best, found
}

func maxEdits(length int) int {
	switch {
	case length <= 5:
		return 1
	case length <= 10:
		return 2
	default:
		return 3
	}
}

// fuzzyConfidence decreases with edit distance and stays below an exact match.
func fuzzyConfidence(distance, length int) float64 {
	if length == 0 {
		return 0
	}
	conf := fuzzyCeiling * (1 - float64(distance)/float64(length))
	if conf < 0 {
		return 0
	}
	return conf
}
