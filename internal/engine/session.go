// Package engine wires the alignment, pacing, filler and scroll components
// into a single teleprompter session.
//
// A [Session] owns one instance of each component and drives them in a fixed
// order for every recognized word and every tick, so components never observe
// partially applied state. All exported methods lock the session mutex;
// callers (the websocket handler, the tick loop, config hot-reload) may live
// on different goroutines.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/promptwheel/promptwheel/internal/align"
	"github.com/promptwheel/promptwheel/internal/filler"
	"github.com/promptwheel/promptwheel/internal/observe"
	"github.com/promptwheel/promptwheel/internal/pace"
	"github.com/promptwheel/promptwheel/internal/script"
	"github.com/promptwheel/promptwheel/internal/scroll"
	"github.com/promptwheel/promptwheel/pkg/report"
)

// Settings aggregates the per-component tuning for a session.
type Settings struct {
	// MatchThreshold is the minimum similarity for word alignment.
	// Zero means [align.DefaultThreshold].
	MatchThreshold float64

	// MatchWindow is the alignment lookahead in words. Zero means
	// [align.DefaultWindow].
	MatchWindow int

	Pace   pace.Settings
	Filler filler.Settings
	Scroll scroll.Settings
}

// Sinks receives component output as it is produced. Nil fields are skipped.
// Sinks are invoked synchronously with the session mutex held, so they must
// not call back into the session.
type Sinks struct {
	// OnMatch fires for every recognized word, matched or not.
	OnMatch func(align.Result)

	// OnFiller fires for every live filler detection.
	OnFiller func(filler.Detection)

	// OnState fires after every event and every tick with the combined
	// session snapshot.
	OnState func(Snapshot)
}

// Snapshot is the combined point-in-time view of a session, pushed to the
// view layer after every event and tick.
type Snapshot struct {
	SessionID        string
	Active           bool
	CurrentWordIndex int
	ScriptComplete   bool

	Pace   pace.Metrics
	Filler filler.State
	Scroll scroll.Snapshot
}

// Option configures a [Session].
type Option func(*Session)

// WithStore sets the report store used for best-effort summary persistence.
func WithStore(s report.Store) Option {
	return func(sess *Session) { sess.store = s }
}

// WithSinks sets the output sinks.
func WithSinks(s Sinks) Option {
	return func(sess *Session) { sess.sinks = s }
}

// WithLayout sets the scroll layout provider.
func WithLayout(l scroll.LayoutProvider) Option {
	return func(sess *Session) { sess.layout = l }
}

// WithMetrics overrides the metrics instance, e.g. for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(sess *Session) { sess.metrics = m }
}

// Session is one live teleprompter session over one analyzed script.
type Session struct {
	mu sync.Mutex

	id       string
	analysis *script.Analysis
	settings Settings

	matcher    *align.Matcher
	meter      *pace.Meter
	detector   *filler.Detector
	controller *scroll.Controller

	layout  scroll.LayoutProvider
	store   report.Store
	sinks   Sinks
	metrics *observe.Metrics
	log     *slog.Logger

	active bool

	// span covers the whole session lifecycle, Start to End.
	span trace.Span
}

// NewSession analyses scriptText and builds a session around it.
func NewSession(id, scriptText string, settings Settings, opts ...Option) (*Session, error) {
	analysis, err := script.Analyze(scriptText)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		id:       id,
		analysis: analysis,
		settings: settings,
		log:      slog.Default().With("session_id", id),
	}
	for _, o := range opts {
		o(sess)
	}
	if sess.metrics == nil {
		sess.metrics = observe.DefaultMetrics()
	}

	var matchOpts []align.Option
	if settings.MatchThreshold > 0 {
		matchOpts = append(matchOpts, align.WithThreshold(settings.MatchThreshold))
	}
	if settings.MatchWindow > 0 {
		matchOpts = append(matchOpts, align.WithWindow(settings.MatchWindow))
	}
	sess.matcher = align.New(analysis, matchOpts...)
	sess.meter = pace.NewMeter(settings.Pace)
	sess.detector = filler.NewDetector(analysis, settings.Filler)
	sess.controller = scroll.NewController(sess.layout, settings.Scroll)

	return sess, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Analysis returns the analyzed script the session runs against.
func (s *Session) Analysis() *script.Analysis {
	return s.analysis
}

// TickInterval returns the configured tick period for the drive loop.
func (s *Session) TickInterval() time.Duration {
	if s.settings.Scroll.TickInterval > 0 {
		return s.settings.Scroll.TickInterval
	}
	return 50 * time.Millisecond
}

// Start begins the session with its clock at startMs. Starting an already
// active session restarts it.
func (s *Session) Start(ctx context.Context, startMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.log.Warn("engine: session restarted while active")
		s.resetLocked()
	}

	s.meter.StartSession(s.id, startMs)
	s.detector.StartSession(startMs)
	s.controller.Start()
	s.active = true

	_, s.span = observe.StartSpan(ctx, "engine.session",
		trace.WithAttributes(observe.Attr("session_id", s.id)),
	)
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.log.Info("engine: session started",
		"total_words", s.analysis.TotalWords,
		"start_ms", startMs,
	)
}

// Active reports whether the session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ProcessEvent runs one recognized word through the full component fan-out:
// alignment first, then pacing and scroll on a match, and filler detection on
// every word regardless of match outcome. Returns the alignment result.
// No-op (unmatched result) when the session is not active.
func (s *Session) ProcessEvent(ctx context.Context, event align.Event) align.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return align.Result{Matched: false, WordIndex: -1, TimestampMs: event.TimestampMs}
	}

	started := time.Now()
	res := s.matcher.ProcessWord(event)

	if res.Matched {
		s.metrics.RecordMatch(ctx, s.id, res.SkippedWords)
		s.meter.ProcessWordTiming(res.WordIndex, res.Word.Text, res.TimestampMs, event.Confidence)
		s.controller.OnWordMatched(res.WordIndex)
	} else {
		s.metrics.RecordUnmatched(ctx, s.id)
	}

	// Fillers are off-script noise, so the detector sees every word.
	if det := s.detector.ProcessSTTWord(event.Text, event.Confidence, event.TimestampMs, s.matcher.NearestIndexHint()); det != nil {
		s.metrics.RecordFiller(ctx, det.Word)
		if s.sinks.OnFiller != nil {
			s.sinks.OnFiller(*det)
		}
	}

	s.metrics.EventDuration.Record(ctx, time.Since(started).Seconds())

	if s.sinks.OnMatch != nil {
		s.sinks.OnMatch(res)
	}
	s.emitStateLocked()
	return res
}

// Tick advances the session clock to nowMs: pause detection first, then one
// scroll integration step using the fresh pause state. No-op when inactive.
func (s *Session) Tick(ctx context.Context, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	started := time.Now()
	s.meter.Tick(nowMs)
	paused := s.meter.Snapshot().IsPaused
	s.controller.Tick(paused)
	s.metrics.ScrollUpdates.Add(ctx, 1)
	s.metrics.TickDuration.Record(ctx, time.Since(started).Seconds())

	s.emitStateLocked()
}

// SetUserScrollPosition records a manual scroll and suspends automatic
// scrolling until [Session.ResumeAutoScroll].
func (s *Session) SetUserScrollPosition(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.SetUserScrollPosition(position)
	s.emitStateLocked()
}

// ResumeAutoScroll returns scroll control to the engine.
func (s *Session) ResumeAutoScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.ResumeAutoScroll()
	s.emitStateLocked()
}

// SetLayoutProvider replaces the scroll layout lookup, e.g. after the view
// re-measures.
func (s *Session) SetLayoutProvider(l scroll.LayoutProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l
	s.controller.SetLayoutProvider(l)
}

// Tuning is the subset of settings that may change mid-session via config
// hot-reload. Zero fields are left unchanged.
type Tuning struct {
	MatchThreshold    float64
	ScrollSmoothing   float64
	FillerSensitivity filler.Sensitivity
}

// ApplyTuning applies a hot-reloaded tuning change to the live components.
func (s *Session) ApplyTuning(t Tuning) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.MatchThreshold > 0 {
		s.matcher.SetThreshold(t.MatchThreshold)
	}
	if t.ScrollSmoothing > 0 {
		s.controller.SetSmoothingFactor(t.ScrollSmoothing)
	}
	if t.FillerSensitivity != "" && t.FillerSensitivity.IsValid() {
		s.detector.SetSensitivity(t.FillerSensitivity)
	}
	s.log.Info("engine: tuning applied",
		"match_threshold", t.MatchThreshold,
		"scroll_smoothing", t.ScrollSmoothing,
		"filler_sensitivity", string(t.FillerSensitivity),
	)
}

// Snapshot returns the combined session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:        s.id,
		Active:           s.active,
		CurrentWordIndex: s.matcher.CurrentIndex(),
		ScriptComplete:   s.matcher.AtEnd(),
		Pace:             s.meter.Snapshot(),
		Filler:           s.detector.Snapshot(),
		Scroll:           s.controller.Snapshot(),
	}
}

func (s *Session) emitStateLocked() {
	if s.sinks.OnState != nil {
		s.sinks.OnState(s.snapshotLocked())
	}
}

// End finalises the session and returns the summary report. The report is
// saved to the configured store best-effort: a save failure is logged and
// counted, never returned. Ending an inactive session returns nil.
func (s *Session) End(ctx context.Context) *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	fillerState := s.detector.Snapshot()
	s.detector.EndSession()
	s.controller.Stop()
	summary := s.meter.EndSession()
	s.active = false
	s.endSpanLocked()
	s.metrics.ActiveSessions.Add(ctx, -1)

	r := buildReport(summary, fillerState)

	if s.store != nil {
		if err := s.store.Save(ctx, r); err != nil {
			s.metrics.RecordReportSave(ctx, "error")
			s.log.Error("engine: report save failed", "error", err)
		} else {
			s.metrics.RecordReportSave(ctx, "ok")
		}
	}

	s.log.Info("engine: session ended",
		"total_words", r.TotalWords,
		"average_wpm", r.AverageWPM,
		"fillers", r.FillerCount,
	)
	return &r
}

// Reset discards all session state so the same session object can be started
// again over the same script.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.endSpanLocked()
	s.matcher.Reset()
	s.meter.Reset()
	s.detector.Reset()
	s.controller.Reset()
	s.active = false
}

func (s *Session) endSpanLocked() {
	if s.span != nil {
		s.span.End()
		s.span = nil
	}
}

// Run drives the session from events until ctx is cancelled or events is
// closed. Ticks fire at the configured scroll tick interval; word events are
// applied as they arrive. The session clock is wall time relative to startMs.
func (s *Session) Run(ctx context.Context, events <-chan align.Event) error {
	startMs := int64(0)
	started := time.Now()
	s.Start(ctx, startMs)

	ticker := time.NewTicker(s.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.End(context.WithoutCancel(ctx))
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.End(ctx)
				return nil
			}
			s.ProcessEvent(ctx, ev)
		case <-ticker.C:
			s.Tick(ctx, startMs+time.Since(started).Milliseconds())
		}
	}
}

// buildReport merges the frozen pace summary with the filler aggregate into
// the persistence shape.
func buildReport(summary *pace.SummaryReport, fillers filler.State) report.Report {
	r := report.Report{
		FillerCount:   fillers.TotalCount,
		FillerRate:    fillers.RatePerMinute,
		CommonFillers: fillers.CommonFillers,
	}
	if summary == nil {
		return r
	}

	r.SessionID = summary.SessionID
	r.StartedAt = summary.StartedAt
	r.EndedAt = summary.EndedAt
	r.DurationMs = summary.DurationMs
	r.TotalWords = summary.TotalWords
	r.AverageWPM = summary.AverageWPM
	r.PeakWPM = summary.PeakWPM
	r.TargetWPM = summary.TargetWPM
	r.PauseCount = summary.PauseCount

	r.Segments = make([]report.Segment, len(summary.Segments))
	for i, seg := range summary.Segments {
		r.Segments[i] = report.Segment{
			StartMs: seg.StartMs,
			EndMs:   seg.EndMs,
			Words:   seg.Words,
			WPM:     seg.WPM,
		}
	}
	return r
}
