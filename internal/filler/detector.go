// Package filler detects verbal disfluencies ("um", "uh", "you know") in the
// raw recognized-word stream.
//
// Detection is independent of script alignment: filler words are by
// definition off-script, so the detector inspects every recognized word
// whether or not the matcher placed it. Multi-word fillers are found with a
// short sliding window over the most recent raw words.
package filler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/promptwheel/promptwheel/internal/script"
)

// Sensitivity selects how aggressively the detector flags fillers, trading
// false negatives against false positives.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// IsValid reports whether s is a recognised sensitivity level.
func (s Sensitivity) IsValid() bool {
	switch s {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// coreFillers are unambiguous disfluencies, active at every sensitivity.
var coreFillers = []string{"um", "uh", "er", "ah", "hmm"}

// hedgeFillers are common words that are only fillers in context; they are
// active at medium sensitivity and above.
var hedgeFillers = []string{"like", "so", "actually", "basically", "literally", "you know", "i mean", "sort of", "kind of"}

// minConfidence per sensitivity: higher sensitivity accepts lower-confidence
// recognitions as detections.
var minConfidence = map[Sensitivity]float64{
	SensitivityLow:    0.75,
	SensitivityMedium: 0.55,
	SensitivityHigh:   0.0,
}

// Detection is a single filler utterance, emitted live for visual cueing.
type Detection struct {
	// Word is the canonical filler token (e.g. "you know").
	Word string

	// TimestampMs is when the filler was spoken, session-relative.
	TimestampMs int64

	// WordIndexHint is a best-effort nearby script index, or -1 when the
	// speaker's position is unknown.
	WordIndexHint int
}

// State aggregates a session's filler activity.
type State struct {
	// Detected is the ordered list of detections.
	Detected []Detection

	TotalCount int

	// RatePerMinute is fillers per minute of speech.
	RatePerMinute float64

	// CommonFillers counts detections per distinct filler token.
	CommonFillers map[string]int
}

// Settings tunes a [Detector]. Zero values fall back to defaults.
type Settings struct {
	// Words overrides the default filler list. Multi-word entries are
	// allowed ("you know"). When empty the built-in lists are used.
	Words []string

	// Sensitivity selects the active token set and the minimum recognition
	// confidence. Default: medium.
	Sensitivity Sensitivity
}

// Detector scans raw recognized words for configured fillers. Session-scoped
// mutable state; not safe for concurrent use. The engine drives each
// session from a single goroutine.
type Detector struct {
	fillers       map[string]struct{}
	maxTokens     int
	minConfidence float64
	sensitivity   Sensitivity
	customWords   bool

	active  bool
	startMs int64
	nowMs   int64

	// window holds the last maxTokens normalised raw words for multi-word
	// filler matching.
	window []string

	detected []Detection
	counts   map[string]int
}

// NewDetector creates a Detector with the given settings. The analysis is
// accepted for interface symmetry with the other components; filler
// detection does not consult the script.
func NewDetector(_ *script.Analysis, settings Settings) *Detector {
	if !settings.Sensitivity.IsValid() {
		settings.Sensitivity = SensitivityMedium
	}

	words := settings.Words
	if len(words) == 0 {
		words = append(words, coreFillers...)
		if settings.Sensitivity != SensitivityLow {
			words = append(words, hedgeFillers...)
		}
	}

	d := &Detector{
		fillers:       make(map[string]struct{}, len(words)),
		maxTokens:     1,
		minConfidence: minConfidence[settings.Sensitivity],
		sensitivity:   settings.Sensitivity,
		customWords:   len(settings.Words) > 0,
		counts:        make(map[string]int),
	}
	for _, w := range words {
		norm := normalizePhrase(w)
		if norm == "" {
			continue
		}
		d.fillers[norm] = struct{}{}
		if n := len(strings.Fields(norm)); n > d.maxTokens {
			d.maxTokens = n
		}
	}
	return d
}

// SetSensitivity switches the active token set and minimum confidence
// mid-session, keeping accumulated detections. Used by config hot-reload.
// A custom word list from Settings.Words is preserved as-is.
func (d *Detector) SetSensitivity(s Sensitivity) {
	if !s.IsValid() || s == d.sensitivity {
		return
	}
	d.sensitivity = s
	d.minConfidence = minConfidence[s]
	if d.customWords {
		return
	}

	words := append([]string(nil), coreFillers...)
	if s != SensitivityLow {
		words = append(words, hedgeFillers...)
	}
	d.fillers = make(map[string]struct{}, len(words))
	d.maxTokens = 1
	for _, w := range words {
		norm := normalizePhrase(w)
		d.fillers[norm] = struct{}{}
		if n := len(strings.Fields(norm)); n > d.maxTokens {
			d.maxTokens = n
		}
	}
}

// StartSession begins a new session with its clock at startMs. Starting
// while a session is active restarts it.
func (d *Detector) StartSession(startMs int64) {
	if d.active {
		slog.Warn("filler: session restarted while active")
	}
	d.Reset()
	d.active = true
	d.startMs = startMs
	d.nowMs = startMs
}

// Active reports whether a session is running.
func (d *Detector) Active() bool {
	return d.active
}

// ProcessSTTWord inspects one raw recognized word. When the word (alone or
// as the tail of a multi-word phrase) is a configured filler at sufficient
// confidence, a [Detection] is recorded and returned. Returns nil otherwise
// and when no session is active.
func (d *Detector) ProcessSTTWord(word string, confidence float64, timestampMs int64, wordIndexHint int) *Detection {
	if !d.active {
		return nil
	}
	if timestampMs > d.nowMs {
		d.nowMs = timestampMs
	}

	norm := script.Normalize(word)
	if norm == "" {
		return nil
	}

	d.window = append(d.window, norm)
	if len(d.window) > d.maxTokens {
		d.window = d.window[1:]
	}

	if confidence < d.minConfidence {
		return nil
	}

	// Longest phrase ending at the current word wins, so "you know" is one
	// detection rather than a detection of "know" alone.
	for n := len(d.window); n >= 1; n-- {
		phrase := strings.Join(d.window[len(d.window)-n:], " ")
		if _, ok := d.fillers[phrase]; !ok {
			continue
		}

		det := Detection{
			Word:          phrase,
			TimestampMs:   timestampMs,
			WordIndexHint: wordIndexHint,
		}
		d.detected = append(d.detected, det)
		d.counts[phrase]++

		// Consume the matched tokens so overlapping phrases do not
		// double-count.
		d.window = d.window[:0]

		slog.Debug("filler: detected", "word", phrase, "timestamp_ms", timestampMs)
		return &det
	}
	return nil
}

// Snapshot returns the aggregated [State] for the session so far.
func (d *Detector) Snapshot() State {
	s := State{
		Detected:      append([]Detection(nil), d.detected...),
		TotalCount:    len(d.detected),
		CommonFillers: make(map[string]int, len(d.counts)),
	}
	for k, v := range d.counts {
		s.CommonFillers[k] = v
	}

	elapsedMin := float64(d.nowMs-d.startMs) / float64(time.Minute.Milliseconds())
	if d.active && elapsedMin > 0 {
		s.RatePerMinute = float64(s.TotalCount) / elapsedMin
	}
	return s
}

// EndSession stops the session, leaving the aggregated state readable until
// the next StartSession or Reset. No-op when no session is active.
func (d *Detector) EndSession() {
	if !d.active {
		return
	}
	d.active = false
	slog.Info("filler: session ended", "total", len(d.detected))
}

// Reset discards all session state. Safe to call at any time.
func (d *Detector) Reset() {
	d.active = false
	d.startMs = 0
	d.nowMs = 0
	d.window = d.window[:0]
	d.detected = nil
	d.counts = make(map[string]int)
}

// normalizePhrase normalises each word of a possibly multi-word filler.
func normalizePhrase(phrase string) string {
	fields := strings.Fields(strings.ToLower(phrase))
	for i, f := range fields {
		fields[i] = script.Normalize(f)
	}
	return strings.Join(fields, " ")
}
