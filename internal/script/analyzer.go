// Package script turns raw teleprompter script text into an indexed word
// sequence used by every other engine component.
//
// Analysis is pure and deterministic: the same text always produces the same
// [Analysis]. Words carry both their original form (for display) and a
// normalised form (for matching): lowercased, with leading and trailing
// punctuation stripped but internal apostrophes and hyphens preserved, so
// "don't" and "well-known" stay single tokens.
package script

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyScript is returned by [Analyze] when the script contains no words
// after normalisation.
var ErrEmptyScript = errors.New("script: no words in script text")

// Word is a single script word with its position metadata. Words are
// immutable once produced by [Analyze].
type Word struct {
	// Index is the 0-based position of the word in reading order.
	Index int

	// Text is the word as written, with original casing and punctuation.
	Text string

	// Normalized is the lowercased, punctuation-stripped form used for
	// matching against recognized speech.
	Normalized string

	// ParagraphIndex is the 0-based index of the containing paragraph.
	ParagraphIndex int

	// SentenceIndex is the 0-based index of the containing sentence,
	// counted across the whole script.
	SentenceIndex int

	// CharOffset is the rune offset of the word's first character in the
	// original text, for display-position mapping.
	CharOffset int
}

// Analysis is the indexed form of a script. One instance exists per active
// script per session; it is read-only after construction and shared across
// the session's components.
type Analysis struct {
	// Words holds every script word in reading order. Words[i].Index == i.
	Words []Word

	TotalWords      int
	TotalSentences  int
	TotalParagraphs int
}

// WordAt returns the word at index, or a zero Word and false when index is
// out of range.
func (a *Analysis) WordAt(index int) (Word, bool) {
	if index < 0 || index >= len(a.Words) {
		return Word{}, false
	}
	return a.Words[index], true
}

// Analyze segments text into an [Analysis].
//
// Paragraphs are blank-line-separated. Sentence boundaries are '.', '?' or
// '!' followed by whitespace or end of text; abbreviation handling is
// best-effort only. Returns [ErrEmptyScript] when no words survive
// normalisation.
func Analyze(text string) (*Analysis, error) {
	a := &Analysis{}

	sentence := 0
	paragraph := 0
	inParagraph := false
	pendingSentenceEnd := false

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]

		if unicode.IsSpace(r) {
			// A blank line (two newlines separated only by spaces/tabs)
			// closes the current paragraph.
			if r == '\n' && inParagraph {
				j := i + 1
				for j < len(runes) && runes[j] != '\n' && unicode.IsSpace(runes[j]) {
					j++
				}
				if j < len(runes) && runes[j] == '\n' {
					paragraph++
					inParagraph = false
					if !pendingSentenceEnd && len(a.Words) > 0 {
						// A paragraph break ends the sentence even
						// without closing punctuation.
						sentence++
						pendingSentenceEnd = false
					}
					i = j + 1
					continue
				}
			}
			if pendingSentenceEnd {
				sentence++
				pendingSentenceEnd = false
			}
			i++
			continue
		}

		// Start of a token: scan to the next whitespace rune.
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		token := string(runes[start:i])

		if pendingSentenceEnd {
			sentence++
			pendingSentenceEnd = false
		}

		norm := Normalize(token)
		if norm != "" {
			a.Words = append(a.Words, Word{
				Index:          len(a.Words),
				Text:           token,
				Normalized:     norm,
				ParagraphIndex: paragraph,
				SentenceIndex:  sentence,
				CharOffset:     start,
			})
			inParagraph = true
		}

		if endsSentence(token) {
			pendingSentenceEnd = true
		}
	}

	if len(a.Words) == 0 {
		return nil, ErrEmptyScript
	}

	last := a.Words[len(a.Words)-1]
	a.TotalWords = len(a.Words)
	a.TotalSentences = last.SentenceIndex + 1
	a.TotalParagraphs = last.ParagraphIndex + 1
	return a, nil
}

// Normalize returns the matching form of token: lowercased with leading and
// trailing punctuation removed. Internal apostrophes and hyphens are kept.
// Returns "" for tokens that are pure punctuation.
func Normalize(token string) string {
	trimmed := strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.ToLower(trimmed)
}

// endsSentence reports whether token's trailing punctuation terminates a
// sentence. Closing quotes and brackets after the terminator are tolerated.
func endsSentence(token string) bool {
	for i := len(token) - 1; i >= 0; i-- {
		switch token[i] {
		case '"', '\'', ')', ']', '}':
			continue
		case '.', '?', '!':
			return true
		default:
			return false
		}
	}
	return false
}
