// Package align implements karaoke-style alignment of recognized speech
// against an analyzed script.
//
// A [Matcher] consumes one recognized-word event at a time and advances a
// pointer into the script. Matching combines exact comparison with
// Jaro-Winkler similarity and a Levenshtein ratio so STT substitution errors
// ("there"/"their") still align, and it searches a bounded lookahead window
// so a speaker who skips a few words does not lose sync. The pointer never
// moves backward within a session.
package align

import (
	"log/slog"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/promptwheel/promptwheel/internal/script"
)

const (
	// DefaultThreshold is the minimum similarity score for a word to count
	// as matched. Tunable; validate against real STT error patterns.
	DefaultThreshold = 0.70

	// DefaultWindow is the number of script words searched ahead of the
	// pointer when the expected next word does not match.
	DefaultWindow = 6
)

// Event is a single recognized word from the speech-recognition collaborator.
type Event struct {
	// Text is the raw recognized token.
	Text string

	// Confidence is the recognizer's confidence in [0, 1].
	Confidence float64

	// TimestampMs is the session-relative monotonic timestamp of the word.
	TimestampMs int64
}

// Result is the outcome of processing one [Event].
type Result struct {
	// Matched reports whether a script word was confidently matched.
	// When false the event is off-script noise and the pointer is unmoved.
	Matched bool

	// WordIndex is the matched script word index. Valid only when Matched.
	WordIndex int

	// Word is the matched script word. Valid only when Matched.
	Word script.Word

	// Similarity is the score of the accepted match in [0, 1].
	Similarity float64

	// SkippedWords is the number of script words silently advanced over:
	// 0 for a direct next-word match, >0 when the speaker jumped ahead.
	SkippedWords int

	// TimestampMs echoes the event timestamp.
	TimestampMs int64
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum similarity score for a match.
// Default: [DefaultThreshold].
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// WithWindow sets the lookahead window size in words. Default: [DefaultWindow].
func WithWindow(w int) Option {
	return func(m *Matcher) {
		if w > 0 {
			m.window = w
		}
	}
}

// Matcher tracks the speaker's position in a script. It is session-scoped
// mutable state; construct one per session and do not share across sessions.
// Methods are not safe for concurrent use; the engine drives each session
// from a single goroutine.
type Matcher struct {
	analysis  *script.Analysis
	threshold float64
	window    int

	// current is the index of the last confidently matched word, or -1
	// before any match.
	current int

	lastTimestampMs int64
}

// New creates a Matcher over analysis with the supplied options.
func New(analysis *script.Analysis, opts ...Option) *Matcher {
	m := &Matcher{
		analysis:  analysis,
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		current:   -1,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CurrentIndex returns the last confidently matched script word index, or -1
// before any match.
func (m *Matcher) CurrentIndex() int {
	return m.current
}

// AtEnd reports whether the pointer has reached the last script word.
func (m *Matcher) AtEnd() bool {
	return m.current >= len(m.analysis.Words)-1
}

// Reset rewinds the pointer to the pre-session state. Safe to call at any
// time, including repeatedly.
func (m *Matcher) Reset() {
	m.current = -1
	m.lastTimestampMs = 0
}

// SetThreshold updates the match threshold mid-session. Used by config
// hot-reload.
func (m *Matcher) SetThreshold(t float64) {
	if t > 0 {
		m.threshold = t
	}
}

// ProcessWord matches event against the script and advances the pointer on
// success.
//
// The expected next word is tried first; on failure the window
// [current+1, current+1+W] is scanned and the best-scoring word at or above
// the threshold wins, with ties broken toward the smallest skip. Past the
// last script word every event yields an unmatched result, which signals
// script completion to the caller.
func (m *Matcher) ProcessWord(event Event) Result {
	if event.TimestampMs < m.lastTimestampMs {
		slog.Warn("align: out-of-order word event",
			"text", event.Text,
			"timestamp_ms", event.TimestampMs,
			"last_timestamp_ms", m.lastTimestampMs,
		)
	} else {
		m.lastTimestampMs = event.TimestampMs
	}

	miss := Result{Matched: false, WordIndex: -1, TimestampMs: event.TimestampMs}

	norm := script.Normalize(event.Text)
	if norm == "" || m.AtEnd() {
		return miss
	}

	start := m.current + 1

	// The expected next word takes precedence: any score clearing the
	// threshold is a direct advance, even when a later window word would
	// score higher.
	if score := Similarity(norm, m.analysis.Words[start].Normalized); score >= m.threshold {
		m.current = start
		return Result{
			Matched:     true,
			WordIndex:   start,
			Word:        m.analysis.Words[start],
			Similarity:  score,
			TimestampMs: event.TimestampMs,
		}
	}

	end := start + m.window
	if end > len(m.analysis.Words)-1 {
		end = len(m.analysis.Words) - 1
	}

	bestIdx := -1
	bestScore := 0.0
	for i := start + 1; i <= end; i++ {
		score := Similarity(norm, m.analysis.Words[i].Normalized)
		if score >= m.threshold && score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if bestIdx < 0 {
		slog.Debug("align: off-script word", "text", event.Text, "current", m.current)
		return miss
	}

	skipped := bestIdx - start
	m.current = bestIdx
	return Result{
		Matched:      true,
		WordIndex:    bestIdx,
		Word:         m.analysis.Words[bestIdx],
		Similarity:   bestScore,
		SkippedWords: skipped,
		TimestampMs:  event.TimestampMs,
	}
}

// shortTokenRunes is the length below which only exact matches count.
// Jaro-Winkler scores unrelated words against one- and two-letter tokens
// above the default threshold ("target" vs "a" is 0.72).
const shortTokenRunes = 3

// Similarity scores how well a recognized word matches a script word. Both
// inputs must already be normalised. Exact matches score 1.0; tokens shorter
// than three runes match only exactly; otherwise the score is the better of
// Jaro-Winkler similarity and a length-normalised Levenshtein ratio.
func Similarity(spoken, scripted string) float64 {
	if spoken == scripted {
		return 1.0
	}
	if spoken == "" || scripted == "" {
		return 0
	}
	if utf8.RuneCountInString(spoken) < shortTokenRunes ||
		utf8.RuneCountInString(scripted) < shortTokenRunes {
		return 0
	}

	score := matchr.JaroWinkler(spoken, scripted, false)

	longer := len(spoken)
	if len(scripted) > longer {
		longer = len(scripted)
	}
	dist := matchr.Levenshtein(spoken, scripted)
	if ratio := 1.0 - float64(dist)/float64(longer); ratio > score {
		score = ratio
	}
	return score
}

// NearestIndexHint returns a best-effort script index for an off-script word
// such as a filler: the last confidently matched word. Returns -1 before any
// match.
func (m *Matcher) NearestIndexHint() int {
	if m.current < 0 {
		return -1
	}
	return m.current
}
