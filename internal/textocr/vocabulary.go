// Package textocr recognises text in rasterised type layers and snaps noisy
// recognition output onto the placement keyword vocabulary.
package textocr

import (
	"errors"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
)

// ErrUnavailable is returned when the binary was built without tesseract.
var ErrUnavailable = errors.New("text recognition not available in this build")

// Vocabulary snaps recognised words to the closest known keyword.
type Vocabulary struct {
	words []string
}

// NewVocabulary splits keywords into a deduplicated lowercase word list.
func NewVocabulary(keywords []string) *Vocabulary {
	seen := make(map[string]bool)
	var words []string
	for _, k := range keywords {
		for _, w := range strings.Fields(strings.ToLower(k)) {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	return &Vocabulary{words: words}
}

// Normalize lowercases text, strips punctuation and replaces each word that
// is within a small edit distance of a vocabulary word with that word.
func (v *Vocabulary) Normalize(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = v.snap(f)
	}
	return strings.Join(fields, " ")
}

func (v *Vocabulary) snap(word string) string {
	limit := tolerance(word)
	if limit == 0 {
		return word
	}
	best, bestDist := word, limit+1
	for _, w := range v.words {
		if d := levenshtein.Distance(word, w); d < bestDist {
			best, bestDist = w, d
		}
	}
	return best
}

// tolerance is the edit budget for a word: none for short words, which
// would otherwise snap to unrelated keywords.
func tolerance(word string) int {
	n := len([]rune(word))
	switch {
	case n < 4:
		return 0
	case n < 7:
		return 1
	default:
		return 2
	}
}
