// Package moderation censors forbidden words in chat text before it is relayed.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks dictionary words found in a message. Matching ignores case,
// punctuation inserted between letters and common leet-speak substitutions.
// A match only counts when it is not glued to surrounding letters, so "hello"
// survives a dictionary containing "hell".
type Moderator struct {
	log         *slog.Logger
	machine     *goahocorasick.Machine
	replacement rune
}

// folded is a normalized view of a text: the kept runes and, for each of them,
// its index in the original text.
type folded struct {
	runes []rune
	index []int
}

// NewModerator builds the automaton. Words that normalize to nothing are skipped.
func NewModerator(words []string, replacement rune, log *slog.Logger) (*Moderator, error) {
	var patterns [][]rune
	for _, word := range words {
		if pattern := fold(word).runes; len(pattern) > 0 {
			patterns = append(patterns, pattern)
		}
	}
	m := &Moderator{log: log, replacement: replacement}
	if len(patterns) == 0 {
		log.Warn("Moderation dictionary is empty, messages will not be censored")
		return m, nil
	}

	m.machine = new(goahocorasick.Machine)
	if err := m.machine.Build(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Censor returns text with every match replaced rune by rune, and the matched
// words in order of appearance.
func (m *Moderator) Censor(text string) (string, []string) {
	if m.machine == nil || text == "" {
		return text, nil
	}
	view := fold(text)
	if len(view.runes) == 0 {
		return text, nil
	}

	original := []rune(text)
	var found []string
	for _, term := range m.machine.MultiPatternSearch(view.runes, false) {
		end := term.Pos + len(term.Word)
		if term.Pos < 0 || end > len(view.index) {
			continue
		}
		from, to := view.index[term.Pos], view.index[end-1]+1
		if !isolated(original, from, to) {
			continue
		}
		for i := from; i < to; i++ {
			if !unicode.IsSpace(original[i]) {
				original[i] = m.replacement
			}
		}
		found = append(found, string(term.Word))
	}
	if len(found) > 0 {
		m.log.Debug("Message censored", "words", len(found))
	}
	return string(original), found
}

func fold(text string) folded {
	source := []rune(text)
	view := folded{
		runes: make([]rune, 0, len(source)),
		index: make([]int, 0, len(source)),
	}
	for i, r := range source {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		view.runes = append(view.runes, unicode.ToLower(r))
		view.index = append(view.index, i)
	}
	return view
}

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
	case '7':
		return 't'
	default:
		return r
	}
}

// isolated reports whether runes[from:to] is not preceded or followed by a letter.
func isolated(runes []rune, from, to int) bool {
	if from > 0 && unicode.IsLetter(runes[from-1]) {
		return false
	}
	if to < len(runes) && unicode.IsLetter(runes[to]) {
		return false
	}
	return true
}
