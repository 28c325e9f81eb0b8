// Package scroll computes the teleprompter's smoothed scroll position from
// the speaker's matched script position and pace.
//
// The controller is a small state machine (Idle, Running, UserOverride,
// Stopped). While Running it converts the matched word into a raw target
// offset via an injected [LayoutProvider], smooths recent targets through a
// bounded ring, and integrates a velocity whose per-tick change is clamped to
// the configured acceleration and deceleration limits, so the visible scroll
// speed never jumps even when the matched word does. While the user is
// dragging, automatic updates are suppressed entirely until an explicit
// resume.
package scroll

import (
	"log/slog"
	"time"
)

// State enumerates the controller's lifecycle states.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateUserOverride State = "user_override"
	StateStopped      State = "stopped"
)

// LayoutProvider maps a script word index to its on-screen vertical offset
// in pixels. Supplied by the rendering collaborator; the engine never
// computes layout itself. OffsetForWord returns false when the layout for
// index has not been measured yet.
type LayoutProvider interface {
	OffsetForWord(index int) (float64, bool)
}

// LayoutFunc adapts a function to the [LayoutProvider] interface.
type LayoutFunc func(index int) (float64, bool)

// OffsetForWord implements [LayoutProvider].
func (f LayoutFunc) OffsetForWord(index int) (float64, bool) {
	return f(index)
}

// Settings tunes a [Controller]. Zero values fall back to defaults.
type Settings struct {
	// TickInterval is the update period. Default: 50 ms.
	TickInterval time.Duration

	// SmoothingFactor in (0, 1] weights recent smoothing-buffer samples;
	// higher values follow raw targets more eagerly. Default: 0.4.
	SmoothingFactor float64

	// SmoothingWindow is the smoothing ring capacity. Default: 8.
	SmoothingWindow int

	// AccelerationLimit is the maximum increase in velocity magnitude per
	// tick, in px/s. Default: 120.
	AccelerationLimit float64

	// DecelerationLimit is the maximum decrease in velocity magnitude per
	// tick, in px/s. Default: 200.
	DecelerationLimit float64

	// Responsiveness in (0, 1] scales how strongly the controller chases
	// the smoothed target each tick. Default: 0.8.
	Responsiveness float64

	// PauseDecay is the time constant for bleeding velocity off while the
	// speaker is paused. Default: 600 ms.
	PauseDecay time.Duration
}

func (s *Settings) applyDefaults() {
	if s.TickInterval <= 0 {
		s.TickInterval = 50 * time.Millisecond
	}
	if s.SmoothingFactor <= 0 || s.SmoothingFactor > 1 {
		s.SmoothingFactor = 0.4
	}
	if s.SmoothingWindow <= 0 {
		s.SmoothingWindow = 8
	}
	if s.AccelerationLimit <= 0 {
		s.AccelerationLimit = 120
	}
	if s.DecelerationLimit <= 0 {
		s.DecelerationLimit = 200
	}
	if s.Responsiveness <= 0 || s.Responsiveness > 1 {
		s.Responsiveness = 0.8
	}
	if s.PauseDecay <= 0 {
		s.PauseDecay = 600 * time.Millisecond
	}
}

// Snapshot is a point-in-time view of the scroll state for the view layer.
type Snapshot struct {
	State State

	// Position is the current scroll offset in pixels.
	Position float64

	// TargetPosition is the smoothed target the controller is chasing.
	TargetPosition float64

	// Velocity is the current scroll speed in px/s.
	Velocity float64

	// Acceleration is the last applied velocity change in px/s per tick.
	Acceleration float64

	// AdaptiveSpeed is the displayed speed value for the UI, equal to the
	// velocity magnitude.
	AdaptiveSpeed float64

	// UserControlled is true while manual dragging suppresses automatic
	// updates.
	UserControlled bool
}

// Controller drives the scroll position. Session-scoped mutable state; not
// safe for concurrent use; the engine drives each session from a single
// goroutine.
type Controller struct {
	settings Settings
	layout   LayoutProvider

	state State

	position  float64
	velocity  float64
	accel     float64
	rawTarget float64
	hasTarget bool

	smoothing ringBuffer
}

// NewController creates a Controller in the Idle state. layout may be nil
// until [Controller.SetLayoutProvider] is called; lookups soft-degrade in
// the meantime.
func NewController(layout LayoutProvider, settings Settings) *Controller {
	settings.applyDefaults()
	return &Controller{
		settings:  settings,
		layout:    layout,
		state:     StateIdle,
		smoothing: newRingBuffer(settings.SmoothingWindow),
	}
}

// SetLayoutProvider replaces the layout lookup, e.g. after the view
// re-measures.
func (c *Controller) SetLayoutProvider(layout LayoutProvider) {
	c.layout = layout
}

// SetSmoothingFactor updates the smoothing weight mid-session. Out-of-range
// values are ignored. Used by config hot-reload.
func (c *Controller) SetSmoothingFactor(f float64) {
	if f > 0 && f <= 1 {
		c.settings.SmoothingFactor = f
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Start transitions Idle or Stopped to Running. Starting while Running or in
// UserOverride is a no-op.
func (c *Controller) Start() {
	switch c.state {
	case StateIdle, StateStopped:
		c.state = StateRunning
		slog.Debug("scroll: started")
	}
}

// Stop transitions any state to Stopped. The position is retained so a later
// Start resumes from where the display stands.
func (c *Controller) Stop() {
	c.state = StateStopped
	c.velocity = 0
	c.accel = 0
}

// SetUserScrollPosition records a manual scroll position and enters
// UserOverride from Running. Idempotent: repeated calls while overridden
// simply update the recorded position.
func (c *Controller) SetUserScrollPosition(position float64) {
	if c.state == StateRunning {
		c.state = StateUserOverride
		c.velocity = 0
		c.accel = 0
		slog.Debug("scroll: user override", "position", position)
	}
	if c.state == StateUserOverride {
		c.position = position
	}
}

// ResumeAutoScroll returns from UserOverride to Running. The current manual
// position becomes the baseline the controller ramps from. No-op in other
// states.
func (c *Controller) ResumeAutoScroll() {
	if c.state != StateUserOverride {
		return
	}
	c.state = StateRunning
	c.smoothing.clear()
	slog.Debug("scroll: auto scroll resumed", "position", c.position)
}

// OnWordMatched feeds a newly matched script word index. The raw target is
// refreshed from the layout lookup; when the lookup misses (layout not yet
// measured) the previous target is held, a soft degrade rather than an error.
func (c *Controller) OnWordMatched(wordIndex int) {
	if c.state != StateRunning {
		return
	}
	if c.layout == nil {
		return
	}
	offset, ok := c.layout.OffsetForWord(wordIndex)
	if !ok {
		slog.Debug("scroll: layout miss, holding previous target", "word_index", wordIndex)
		return
	}
	c.rawTarget = offset
	c.hasTarget = true
}

// Tick advances the controller by one tick interval. speakerPaused bleeds
// velocity off smoothly instead of freezing. No movement occurs outside
// Running.
func (c *Controller) Tick(speakerPaused bool) {
	if c.state != StateRunning {
		return
	}

	dt := c.settings.TickInterval.Seconds()

	if speakerPaused {
		// Exponential decay toward zero with the configured time constant.
		decay := 1.0 - dt/c.settings.PauseDecay.Seconds()
		if decay < 0 {
			decay = 0
		}
		old := c.velocity
		c.velocity *= decay
		c.accel = c.velocity - old
		c.position += c.velocity * dt
		return
	}

	if !c.hasTarget {
		return
	}

	c.smoothing.add(c.rawTarget)
	target := c.smoothing.weightedAverage(c.settings.SmoothingFactor)

	desired := (target - c.position) / dt * c.settings.Responsiveness

	// Clamp the change in velocity, not the velocity itself: ramped rather
	// than snapped motion.
	delta := desired - c.velocity
	limit := c.settings.AccelerationLimit
	if absF(desired) < absF(c.velocity) {
		limit = c.settings.DecelerationLimit
	}
	if delta > limit {
		delta = limit
	} else if delta < -limit {
		delta = -limit
	}

	c.velocity += delta
	c.accel = delta
	c.position += c.velocity * dt
}

// Snapshot returns the current scroll state for the view layer.
func (c *Controller) Snapshot() Snapshot {
	target := c.rawTarget
	if n := c.smoothing.length(); n > 0 {
		target = c.smoothing.weightedAverage(c.settings.SmoothingFactor)
	}
	return Snapshot{
		State:          c.state,
		Position:       c.position,
		TargetPosition: target,
		Velocity:       c.velocity,
		Acceleration:   c.accel,
		AdaptiveSpeed:  absF(c.velocity),
		UserControlled: c.state == StateUserOverride,
	}
}

// Reset zeroes position, velocity, and acceleration, clears the smoothing
// buffer, and returns to Idle. Usable from any state, repeatedly.
func (c *Controller) Reset() {
	c.state = StateIdle
	c.position = 0
	c.velocity = 0
	c.accel = 0
	c.rawTarget = 0
	c.hasTarget = false
	c.smoothing.clear()
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ringBuffer is a bounded FIFO of raw target samples.
type ringBuffer struct {
	data []float64
	size int
	pos  int
	full bool
}

func newRingBuffer(size int) ringBuffer {
	return ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) add(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.size {
		r.pos = 0
		r.full = true
	}
}

func (r *ringBuffer) length() int {
	if r.full {
		return r.size
	}
	return r.pos
}

func (r *ringBuffer) clear() {
	r.pos = 0
	r.full = false
}

// weightedAverage averages the buffered samples oldest-first with
// geometrically increasing weight toward recent samples: each sample weighs
// 1/(1-factor) times the previous one (factor 1 degenerates to
// latest-sample-wins).
func (r *ringBuffer) weightedAverage(factor float64) float64 {
	n := r.length()
	if n == 0 {
		return 0
	}

	// Oldest-first iteration order.
	start := 0
	if r.full {
		start = r.pos
	}

	growth := 1.0 / (1.0 - factor)
	if factor >= 1 {
		// Latest sample only.
		idx := (start + n - 1) % r.size
		return r.data[idx]
	}

	weight := 1.0
	sum := 0.0
	total := 0.0
	for i := 0; i < n; i++ {
		idx := (start + i) % r.size
		sum += r.data[idx] * weight
		total += weight
		weight *= growth
	}
	return sum / total
}
