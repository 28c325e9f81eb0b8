package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/promptwheel/promptwheel/internal/align"
	"github.com/promptwheel/promptwheel/internal/engine"
	"github.com/promptwheel/promptwheel/internal/filler"
	"github.com/promptwheel/promptwheel/internal/scroll"
	"github.com/promptwheel/promptwheel/pkg/report"
)

// outboundBuffer is the per-connection send queue depth. State frames are
// dropped (not blocked on) when the client cannot keep up; match, filler and
// summary frames always queue.
const outboundBuffer = 64

// clientFrame is the union of all frames a client may send.
type clientFrame struct {
	Type string `json:"type"`

	// start
	SessionID string `json:"session_id,omitempty"`
	Script    string `json:"script,omitempty"`

	// layout: offsets[i] is the pixel offset of script word i. A shorter
	// array than the script means the tail is not measured yet.
	Offsets []float64 `json:"offsets,omitempty"`

	// word
	Text        string  `json:"text,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	TimestampMs int64   `json:"timestamp_ms,omitempty"`

	// scroll
	Position float64 `json:"position,omitempty"`
}

type readyFrame struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id"`
	TotalWords      int    `json:"total_words"`
	TotalSentences  int    `json:"total_sentences"`
	TotalParagraphs int    `json:"total_paragraphs"`
}

type matchFrame struct {
	Type         string  `json:"type"`
	Matched      bool    `json:"matched"`
	WordIndex    int     `json:"word_index"`
	Word         string  `json:"word,omitempty"`
	Similarity   float64 `json:"similarity"`
	SkippedWords int     `json:"skipped_words"`
	TimestampMs  int64   `json:"timestamp_ms"`
}

type fillerFrame struct {
	Type        string `json:"type"`
	Word        string `json:"word"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type stateFrame struct {
	Type     string          `json:"type"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

type summaryFrame struct {
	Type   string        `json:"type"`
	Report report.Report `json:"report"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleSession serves one live teleprompter session over a websocket. The
// client sends a start frame carrying the script, then word, layout, scroll,
// resume and end frames; the server pushes match, filler, state and summary
// frames back. Word frames are processed synchronously in arrival order.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket accept", "err", err)
		return
	}

	sc := &sessionConn{
		srv:      s,
		conn:     conn,
		outbound: make(chan []byte, outboundBuffer),
	}
	sc.run(r.Context())
}

// sessionConn is the per-connection state of one websocket session.
type sessionConn struct {
	srv  *Server
	conn *websocket.Conn

	outbound chan []byte

	sess *engine.Session

	// layout offsets pushed by the client, read by the scroll controller
	// through a LayoutFunc.
	layoutMu sync.RWMutex
	offsets  []float64

	started time.Time
	tickWG  sync.WaitGroup
}

func (sc *sessionConn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		sc.writeLoop(ctx)
	}()

	for {
		_, data, err := sc.conn.Read(ctx)
		if err != nil {
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			sc.sendError("malformed frame: " + err.Error())
			continue
		}

		if err := sc.handleFrame(ctx, frame); err != nil {
			if errors.Is(err, errSessionDone) {
				break
			}
			sc.sendError(err.Error())
		}
	}

	// Stop the tick loop before finalising; after this only run() itself
	// queues frames.
	cancel()
	sc.tickWG.Wait()

	// Finalise a still-running session so the summary is persisted even on
	// abrupt disconnect.
	if sc.sess != nil {
		sc.srv.unregisterSession(sc.sess.ID())
		if rep := sc.sess.End(context.WithoutCancel(ctx)); rep != nil {
			sc.send(summaryFrame{Type: "summary", Report: *rep})
		}
	}

	close(sc.outbound)
	writeWG.Wait()
	sc.conn.Close(websocket.StatusNormalClosure, "session closed")
}

// errSessionDone signals a clean client-initiated end of session.
var errSessionDone = errors.New("session done")

func (sc *sessionConn) handleFrame(ctx context.Context, frame clientFrame) error {
	switch frame.Type {
	case "start":
		return sc.handleStart(ctx, frame)

	case "layout":
		sc.layoutMu.Lock()
		sc.offsets = frame.Offsets
		sc.layoutMu.Unlock()
		return nil

	case "word":
		if sc.sess == nil {
			return errors.New("word before start")
		}
		res := sc.sess.ProcessEvent(ctx, align.Event{
			Text:        frame.Text,
			Confidence:  frame.Confidence,
			TimestampMs: frame.TimestampMs,
		})
		sc.send(matchFrame{
			Type:         "match",
			Matched:      res.Matched,
			WordIndex:    res.WordIndex,
			Word:         res.Word.Text,
			Similarity:   res.Similarity,
			SkippedWords: res.SkippedWords,
			TimestampMs:  res.TimestampMs,
		})
		return nil

	case "scroll":
		if sc.sess == nil {
			return errors.New("scroll before start")
		}
		sc.sess.SetUserScrollPosition(frame.Position)
		return nil

	case "resume":
		if sc.sess == nil {
			return errors.New("resume before start")
		}
		sc.sess.ResumeAutoScroll()
		return nil

	case "end":
		return errSessionDone

	default:
		return errors.New("unknown frame type " + strconv.Quote(frame.Type))
	}
}

func (sc *sessionConn) handleStart(ctx context.Context, frame clientFrame) error {
	if sc.sess != nil {
		return errors.New("session already started")
	}
	if frame.SessionID == "" {
		return errors.New("start frame missing session_id")
	}

	layout := scroll.LayoutFunc(func(i int) (float64, bool) {
		sc.layoutMu.RLock()
		defer sc.layoutMu.RUnlock()
		if i < 0 || i >= len(sc.offsets) {
			return 0, false
		}
		return sc.offsets[i], true
	})

	sess, err := engine.NewSession(frame.SessionID, frame.Script, sc.srv.settings(),
		engine.WithStore(sc.srv.store),
		engine.WithLayout(layout),
		engine.WithSinks(engine.Sinks{
			OnFiller: func(d filler.Detection) {
				sc.send(fillerFrame{Type: "filler", Word: d.Word, TimestampMs: d.TimestampMs})
			},
		}),
	)
	if err != nil {
		return err
	}

	sc.sess = sess
	sc.started = time.Now()
	sc.srv.registerSession(sess)
	sess.Start(ctx, 0)

	sc.tickWG.Add(1)
	go func() {
		defer sc.tickWG.Done()
		sc.tickLoop(ctx)
	}()

	analysis := sess.Analysis()
	sc.send(readyFrame{
		Type:            "ready",
		SessionID:       sess.ID(),
		TotalWords:      analysis.TotalWords,
		TotalSentences:  analysis.TotalSentences,
		TotalParagraphs: analysis.TotalParagraphs,
	})
	return nil
}

// tickLoop drives the session clock while the connection lives. A state frame
// is pushed after every tick.
func (sc *sessionConn) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(sc.sess.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sc.sess.Active() {
				return
			}
			sc.sess.Tick(ctx, time.Since(sc.started).Milliseconds())
			sc.trySend(stateFrame{Type: "state", Snapshot: sc.sess.Snapshot()})
		}
	}
}

// send queues a frame, blocking until there is room. Used for frames the
// client must not miss.
func (sc *sessionConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("server: marshal frame", "err", err)
		return
	}
	sc.outbound <- data
}

// trySend queues a frame if there is room, dropping it otherwise. Used for
// periodic state frames, where the next tick supersedes a dropped one.
func (sc *sessionConn) trySend(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("server: marshal frame", "err", err)
		return
	}
	select {
	case sc.outbound <- data:
	default:
	}
}

func (sc *sessionConn) sendError(msg string) {
	sc.send(errorFrame{Type: "error", Error: msg})
}

// writeLoop serialises all websocket writes. On a write error it keeps
// draining the queue so producers never block.
func (sc *sessionConn) writeLoop(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	broken := false
	for data := range sc.outbound {
		if broken {
			continue
		}
		writeCtx, cancel := context.WithTimeout(base, 5*time.Second)
		err := sc.conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			broken = true
		}
	}
}
