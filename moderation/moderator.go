package moderation

import (
	"chat-room/errors"
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks censored words in message texts before they reach the log.
// Matching ignores case, punctuation, spacing and common leet substitutions,
// so "B.4.d.g.3r" is caught by "badger".
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// folded is the searchable form of a text with, for each kept rune, its index in the original.
type folded struct {
	runes     []rune
	positions []int
}

// NewModerator builds the automaton from the censored words.
// Words that are pure noise once folded ("...", "") are ignored.
func NewModerator(censoredWords []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	patterns := lo.FilterMap(censoredWords, func(word string, _ int) ([]rune, bool) {
		f := fold(word)
		return f.runes, len(f.runes) > 0
	})
	patterns = lo.UniqBy(patterns, func(p []rune) string { return string(p) })
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	log.Debug("Moderator ready", "patterns", len(patterns))
	return &Moderator{matcher: m, replacement: replacement, log: log}, nil
}

// Censor returns the text with every censored occurrence replaced rune by rune,
// spacing preserved, along with the censored words found (nil when clean).
func (m *Moderator) Censor(text string) (string, []string) {
	f := fold(text)
	if len(f.runes) == 0 {
		return text, nil
	}
	terms := m.matcher.MultiPatternSearch(f.runes, false)
	if len(terms) == 0 {
		return text, nil
	}

	original := []rune(text)
	var words []string
	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(f.positions) {
			continue
		}
		for i := f.positions[start]; i <= f.positions[end-1]; i++ {
			original[i] = m.replacement
		}
		words = append(words, string(term.Word))
	}
	if len(words) > 0 {
		m.log.Debug("Message censored", "words", len(words))
	}
	return string(original), words
}

func fold(text string) folded {
	runes := []rune(text)
	f := folded{
		runes:     make([]rune, 0, len(runes)),
		positions: make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(clean))
		f.positions = append(f.positions, i)
	}
	return f
}

// unleet maps common leet speak characters back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
