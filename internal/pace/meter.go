// Package pace maintains rolling words-per-minute statistics for a speaking
// session: an instantaneous rate from inter-word arrival times, a session
// average, an exponentially smoothed display value, a trend classification,
// and pause detection driven by the engine's idle tick.
package pace

import (
	"log/slog"
	"time"
)

// Trend classifies the direction of the speaker's pace.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendDecelerating Trend = "decelerating"
	TrendStable       Trend = "stable"
)

// TargetStatus relates the smoothed pace to the configured target WPM.
type TargetStatus string

const (
	// TargetUnset is reported when no target WPM is configured.
	TargetUnset TargetStatus = ""

	TargetOn      TargetStatus = "on_target"
	TargetTooFast TargetStatus = "too_fast"
	TargetTooSlow TargetStatus = "too_slow"
)

const (
	// maxInstantWPM caps the instantaneous rate so duplicate or
	// near-duplicate timestamps cannot produce absurd spikes.
	maxInstantWPM = 400.0

	// minIntervalMs is the epsilon used in place of a zero inter-word gap.
	minIntervalMs = 1

	// segmentLength is the granularity of the pace history ring.
	segmentLength = 10 * time.Second

	// historyCapacity bounds the pace history ring: one hour of segments.
	historyCapacity = 360
)

// Settings tunes a [Meter]. Zero values fall back to defaults.
type Settings struct {
	// PauseThreshold is how long without a matched word counts as a pause.
	// Default: 2 s.
	PauseThreshold time.Duration

	// SmoothingAlpha is the EMA coefficient blending instantaneous pace
	// into the displayed current value, in (0, 1]. Default: 0.3.
	SmoothingAlpha float64

	// TrendWindow is how far back the trend comparison looks. Default: 5 s.
	TrendWindow time.Duration

	// TrendTolerancePct is the percentage change beyond which the trend is
	// classified as accelerating or decelerating. Default: 10.
	TrendTolerancePct float64

	// TargetWPM is the speaker's configured target pace, recorded in the
	// session report. Optional.
	TargetWPM float64

	// TargetTolerancePct is the band around TargetWPM, in percent, within
	// which the pace counts as on target. Default: 10.
	TargetTolerancePct float64
}

func (s *Settings) applyDefaults() {
	if s.PauseThreshold <= 0 {
		s.PauseThreshold = 2 * time.Second
	}
	if s.SmoothingAlpha <= 0 || s.SmoothingAlpha > 1 {
		s.SmoothingAlpha = 0.3
	}
	if s.TrendWindow <= 0 {
		s.TrendWindow = 5 * time.Second
	}
	if s.TrendTolerancePct <= 0 {
		s.TrendTolerancePct = 10
	}
	if s.TargetTolerancePct <= 0 {
		s.TargetTolerancePct = 10
	}
}

// Metrics is a point-in-time snapshot of the session's pace state.
type Metrics struct {
	// CurrentWPM is the smoothed display value.
	CurrentWPM float64

	// AverageWPM is total words over elapsed session minutes.
	AverageWPM float64

	// InstantaneousWPM is derived from the last inter-word interval.
	InstantaneousWPM float64

	// TimeSinceLastWordMs is the gap since the last matched word,
	// maintained by [Meter.Tick] even when no words arrive.
	TimeSinceLastWordMs int64

	TotalWordsSpoken int

	// IsPaused is true once TimeSinceLastWordMs exceeds the pause threshold.
	IsPaused bool

	PaceTrend Trend

	// TargetStatus relates CurrentWPM to the configured target WPM band.
	// [TargetUnset] when no target is configured or no words arrived yet.
	TargetStatus TargetStatus

	// ConfidenceLevel is the running mean STT confidence of matched words.
	ConfidenceLevel float64
}

// Segment is one fixed-length slice of the session's pace history.
type Segment struct {
	StartMs int64
	EndMs   int64
	Words   int
	WPM     float64
}

// SummaryReport is the frozen end-of-session report returned by
// [Meter.EndSession].
type SummaryReport struct {
	SessionID  string
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMs int64

	TotalWords int
	AverageWPM float64
	PeakWPM    float64
	TargetWPM  float64

	// PauseCount is the number of distinct pauses detected.
	PauseCount int

	// Segments is the per-segment pace history, oldest first.
	Segments []Segment
}

// trendSample pairs a smoothed WPM value with the session clock time it was
// observed, for the trend comparison ring.
type trendSample struct {
	atMs int64
	wpm  float64
}

// Meter computes pace metrics from matched-word timings. Session-scoped
// mutable state; not safe for concurrent use. The engine drives each
// session from a single goroutine.
type Meter struct {
	settings Settings

	active    bool
	sessionID string
	startedAt time.Time

	// Session clock, in session-relative milliseconds.
	startMs       int64
	lastWordMs    int64
	nowMs         int64
	haveFirstWord bool

	totalWords    int
	sumConfidence float64

	instantWPM  float64
	smoothedWPM float64
	peakWPM     float64

	paused     bool
	pauseCount int

	trendRing []trendSample

	// Segment accumulation for the history ring.
	segments      ring[Segment]
	segStartMs    int64
	segWords      int
	segOpen       bool
	nowFn         func() time.Time
}

// NewMeter creates a Meter with the given settings. Call [Meter.StartSession]
// before feeding word timings.
func NewMeter(settings Settings) *Meter {
	settings.applyDefaults()
	return &Meter{
		settings: settings,
		segments: newRing[Segment](historyCapacity),
		nowFn:    time.Now,
	}
}

// StartSession begins a new session identified by sessionID with its clock at
// startMs. Starting while a session is active restarts it.
func (m *Meter) StartSession(sessionID string, startMs int64) {
	if m.active {
		slog.Warn("pace: session restarted while active", "session_id", m.sessionID)
	}
	m.Reset()
	m.active = true
	m.sessionID = sessionID
	m.startedAt = m.nowFn()
	m.startMs = startMs
	m.nowMs = startMs
	m.lastWordMs = startMs
	m.segStartMs = startMs
	m.segOpen = true
}

// Active reports whether a session is running.
func (m *Meter) Active() bool {
	return m.active
}

// ProcessWordTiming records one matched word at timestampMs with the STT
// confidence of the match. Calls with no active session are ignored.
func (m *Meter) ProcessWordTiming(wordIndex int, word string, timestampMs int64, confidence float64) {
	if !m.active {
		return
	}
	if timestampMs < m.nowMs {
		slog.Warn("pace: out-of-order word timing",
			"word", word,
			"word_index", wordIndex,
			"timestamp_ms", timestampMs,
			"clock_ms", m.nowMs,
		)
		timestampMs = m.nowMs
	}

	if m.haveFirstWord {
		interval := timestampMs - m.lastWordMs
		if interval < minIntervalMs {
			interval = minIntervalMs
		}
		m.instantWPM = 60000.0 / float64(interval)
		if m.instantWPM > maxInstantWPM {
			m.instantWPM = maxInstantWPM
		}
	}

	m.totalWords++
	m.sumConfidence += confidence
	m.haveFirstWord = true
	m.lastWordMs = timestampMs
	m.nowMs = timestampMs

	// EMA blend for display stability.
	alpha := m.settings.SmoothingAlpha
	if m.smoothedWPM == 0 {
		m.smoothedWPM = m.instantWPM
	} else {
		m.smoothedWPM = alpha*m.instantWPM + (1-alpha)*m.smoothedWPM
	}
	if m.smoothedWPM > m.peakWPM {
		m.peakWPM = m.smoothedWPM
	}

	if m.paused {
		m.paused = false
	}

	m.recordTrendSample()
	m.accumulateSegment(timestampMs)
	m.segWords++
}

// Tick advances the session clock to nowMs without a new word. It keeps
// TimeSinceLastWordMs and IsPaused current and rolls segment boundaries.
// No-op when no session is active.
func (m *Meter) Tick(nowMs int64) {
	if !m.active {
		return
	}
	if nowMs < m.nowMs {
		return
	}
	m.nowMs = nowMs

	if m.haveFirstWord && !m.paused {
		if nowMs-m.lastWordMs >= m.settings.PauseThreshold.Milliseconds() {
			m.paused = true
			m.pauseCount++
			slog.Debug("pace: pause detected",
				"session_id", m.sessionID,
				"since_last_word_ms", nowMs-m.lastWordMs,
			)
		}
	}

	m.accumulateSegment(nowMs)
}

// Snapshot returns the current [Metrics]. Valid to call with no active
// session; all fields are zero then.
func (m *Meter) Snapshot() Metrics {
	if !m.active {
		return Metrics{PaceTrend: TrendStable}
	}

	met := Metrics{
		CurrentWPM:       m.smoothedWPM,
		InstantaneousWPM: m.instantWPM,
		TotalWordsSpoken: m.totalWords,
		IsPaused:         m.paused,
		PaceTrend:        m.trend(),
	}
	if m.haveFirstWord {
		met.TimeSinceLastWordMs = m.nowMs - m.lastWordMs
	}
	if m.totalWords > 0 {
		elapsedMin := float64(m.nowMs-m.startMs) / 60000.0
		if elapsedMin > 0 {
			met.AverageWPM = float64(m.totalWords) / elapsedMin
		}
		met.ConfidenceLevel = m.sumConfidence / float64(m.totalWords)
		met.TargetStatus = m.targetStatus()
	}
	return met
}

// targetStatus compares the smoothed pace against the configured target band.
func (m *Meter) targetStatus() TargetStatus {
	target := m.settings.TargetWPM
	if target <= 0 || m.smoothedWPM == 0 {
		return TargetUnset
	}
	band := target * m.settings.TargetTolerancePct / 100
	switch {
	case m.smoothedWPM > target+band:
		return TargetTooFast
	case m.smoothedWPM < target-band:
		return TargetTooSlow
	default:
		return TargetOn
	}
}

// EndSession finalises the session and returns its frozen report. Calling it
// with no active session is a no-op returning nil.
func (m *Meter) EndSession() *SummaryReport {
	if !m.active {
		return nil
	}

	m.closeSegment(m.nowMs)

	snap := m.Snapshot()
	report := &SummaryReport{
		SessionID:  m.sessionID,
		StartedAt:  m.startedAt,
		EndedAt:    m.nowFn(),
		DurationMs: m.nowMs - m.startMs,
		TotalWords: m.totalWords,
		AverageWPM: snap.AverageWPM,
		PeakWPM:    m.peakWPM,
		TargetWPM:  m.settings.TargetWPM,
		PauseCount: m.pauseCount,
		Segments:   m.segments.values(),
	}

	m.active = false
	slog.Info("pace: session ended",
		"session_id", report.SessionID,
		"total_words", report.TotalWords,
		"average_wpm", report.AverageWPM,
		"pauses", report.PauseCount,
	)
	return report
}

// Reset discards all session state. Safe to call at any time, including with
// no active session.
func (m *Meter) Reset() {
	m.active = false
	m.sessionID = ""
	m.startedAt = time.Time{}
	m.startMs = 0
	m.lastWordMs = 0
	m.nowMs = 0
	m.haveFirstWord = false
	m.totalWords = 0
	m.sumConfidence = 0
	m.instantWPM = 0
	m.smoothedWPM = 0
	m.peakWPM = 0
	m.paused = false
	m.pauseCount = 0
	m.trendRing = m.trendRing[:0]
	m.segments = newRing[Segment](historyCapacity)
	m.segStartMs = 0
	m.segWords = 0
	m.segOpen = false
}

// recordTrendSample appends the current smoothed value to the trend ring and
// drops samples older than twice the trend window.
func (m *Meter) recordTrendSample() {
	m.trendRing = append(m.trendRing, trendSample{atMs: m.nowMs, wpm: m.smoothedWPM})

	cutoff := m.nowMs - 2*m.settings.TrendWindow.Milliseconds()
	drop := 0
	for drop < len(m.trendRing) && m.trendRing[drop].atMs < cutoff {
		drop++
	}
	if drop > 0 {
		m.trendRing = append(m.trendRing[:0], m.trendRing[drop:]...)
	}
}

// trend compares the smoothed pace against its value one trend window ago.
func (m *Meter) trend() Trend {
	windowMs := m.settings.TrendWindow.Milliseconds()
	target := m.nowMs - windowMs

	var ref *trendSample
	for i := range m.trendRing {
		if m.trendRing[i].atMs <= target {
			ref = &m.trendRing[i]
		} else {
			break
		}
	}
	if ref == nil || ref.wpm == 0 {
		return TrendStable
	}

	changePct := (m.smoothedWPM - ref.wpm) / ref.wpm * 100
	switch {
	case changePct > m.settings.TrendTolerancePct:
		return TrendAccelerating
	case changePct < -m.settings.TrendTolerancePct:
		return TrendDecelerating
	default:
		return TrendStable
	}
}

// accumulateSegment counts the word (when called from ProcessWordTiming the
// caller already bumped totals) and rolls the segment boundary when the
// clock passes the segment length.
func (m *Meter) accumulateSegment(nowMs int64) {
	if !m.segOpen {
		return
	}
	segLenMs := segmentLength.Milliseconds()
	for nowMs-m.segStartMs >= segLenMs {
		m.closeSegment(m.segStartMs + segLenMs)
		m.segStartMs += segLenMs
		m.segWords = 0
	}
}

// closeSegment finalises the currently open segment ending at endMs.
func (m *Meter) closeSegment(endMs int64) {
	if !m.segOpen || endMs <= m.segStartMs {
		return
	}
	durMin := float64(endMs-m.segStartMs) / 60000.0
	seg := Segment{
		StartMs: m.segStartMs,
		EndMs:   endMs,
		Words:   m.segWords,
	}
	if durMin > 0 {
		seg.WPM = float64(seg.Words) / durMin
	}
	m.segments.add(seg)
}
