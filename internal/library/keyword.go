package library

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Snippet window around the first keyword hit, in bytes.
const (
	snippetBefore = 200
	snippetAfter  = 400
)

// stopwords are query terms too common to carry signal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "query": true, "search": true, "what": true,
	"is": true, "of": true, "in": true, "to": true, "a": true, "an": true,
}

var wordRE = regexp.MustCompile(`\w+`)

// queryKeywords tokenizes a query into lowercase search terms. Short tokens
// and stopwords are dropped; if nothing survives the raw tokens (or the
// whole query) are used instead.
func queryKeywords(query string) []string {
	var words []string
	for _, w := range wordRE.FindAllString(query, -1) {
		if len(w) > 2 {
			words = append(words, strings.ToLower(w))
		}
	}
	if len(words) == 0 {
		return []string{strings.ToLower(strings.TrimSpace(query))}
	}

	var keywords []string
	for _, w := range words {
		if !stopwords[w] {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return words
	}
	return keywords
}

// keywordMatch is an internal ranking record: matches sort by how many
// distinct keywords a document contains before score ties are broken.
type keywordMatch struct {
	result SearchResult
	found  int
}

// searchKeyword scans the cached corpus for query keywords. Matching is
// typo-tolerant: a keyword hits either as a substring or as a token within
// Damerau-Levenshtein distance 1 of a document token. Results whose
// lowercased snippet is already in seen are skipped.
func (l *Library) searchKeyword(query string, topK int, seen map[string]bool) ([]SearchResult, error) {
	manifest, cache, err := l.loadManifest()
	if err != nil {
		return nil, err
	}
	keywords := queryKeywords(query)

	var matches []keywordMatch
	for rel, name := range manifest {
		data, err := os.ReadFile(filepath.Join(cache, name))
		if err != nil {
			continue
		}
		text := string(data)
		textLower := strings.ToLower(text)

		found := 0
		firstIdx := -1
		for _, kw := range keywords {
			idx := strings.Index(textLower, kw)
			if idx == -1 {
				idx = fuzzyIndex(textLower, kw)
			}
			if idx >= 0 {
				found++
				if firstIdx == -1 || idx < firstIdx {
					firstIdx = idx
				}
			}
		}
		if found == 0 {
			continue
		}

		snippet := extractSnippet(text, firstIdx)
		if seen[strings.ToLower(snippet)] {
			continue
		}
		seen[strings.ToLower(snippet)] = true

		matches = append(matches, keywordMatch{
			result: SearchResult{
				Path:    rel,
				Snippet: snippet,
				Score:   0.5 + float64(found)/float64(len(keywords))*0.3,
			},
			found: found,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].found != matches[j].found {
			return matches[i].found > matches[j].found
		}
		if matches[i].result.Score != matches[j].result.Score {
			return matches[i].result.Score > matches[j].result.Score
		}
		return matches[i].result.Path < matches[j].result.Path
	})

	results := make([]SearchResult, 0, min(len(matches), topK))
	for _, m := range matches {
		if len(results) >= topK {
			break
		}
		results = append(results, m.result)
	}
	return results, nil
}

// fuzzyIndex returns the byte offset of the first document token within edit
// distance 1 of kw, or -1. Very short keywords skip fuzzy matching: at three
// characters a single edit matches far too much.
func fuzzyIndex(textLower, kw string) int {
	if len(kw) < 4 {
		return -1
	}
	for _, loc := range wordRE.FindAllStringIndex(textLower, -1) {
		tok := textLower[loc[0]:loc[1]]
		// A length gap over 1 cannot be within distance 1.
		if d := len(tok) - len(kw); d > 1 || d < -1 {
			continue
		}
		if matchr.DamerauLevenshtein(kw, tok) <= 1 {
			return loc[0]
		}
	}
	return -1
}

// extractSnippet cuts a context window around the hit at idx and flattens it
// to a single line.
func extractSnippet(text string, idx int) string {
	start := max(0, idx-snippetBefore)
	end := min(len(text), idx+snippetAfter)
	snippet := strings.TrimSpace(strings.ReplaceAll(text[start:end], "\n", " "))
	return "..." + snippet + "..."
}
