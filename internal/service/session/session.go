// Package session runs one listening interval: provider transcripts are
// segmented into questions, deduplicated, answered one at a time, and every
// step is pushed to the UI sink.
//
// All pipeline state is owned by a single reactor goroutine per run. Provider
// callbacks, timer fires, backend completions and inspection requests are
// posted to the run's event channel and handled one at a time, so the
// normalizer, segmenter, gate and coordinator need no locks.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-assist-service/internal/models"
	"interview-assist-service/internal/observability/metrics"
	"interview-assist-service/internal/observability/reporting"
	"interview-assist-service/internal/service/answer"
	"interview-assist-service/internal/service/conversation"
	"interview-assist-service/internal/service/dispatch"
	"interview-assist-service/internal/service/emission"
	"interview-assist-service/internal/service/segment"
	"interview-assist-service/internal/service/speaker"
	"interview-assist-service/internal/service/stt"
	"interview-assist-service/internal/ui"
)

// Config holds the timing parameters of a session.
type Config struct {
	Limits            segment.Limits
	FinalRecheckDelay time.Duration
	DebounceWindow    time.Duration
	StuckTimeout      time.Duration

	// Provider labels logs and metrics (mock, google, deepgram).
	Provider string

	// DispatchOtherSpeaker also answers questions asked by the non-interviewer.
	DispatchOtherSpeaker bool

	// EventBuffer is the capacity of the reactor's event channel.
	EventBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Limits:            segment.DefaultLimits(),
		FinalRecheckDelay: 300 * time.Millisecond,
		DebounceWindow:    3 * time.Second,
		StuckTimeout:      dispatch.DefaultStuckTimeout,
		Provider:          "mock",
		EventBuffer:       256,
	}
}

// Deps are the collaborators of a session.
type Deps struct {
	Classifier *segment.Classifier
	STT        stt.Factory
	Backend    answer.Backend
	History    *conversation.Context
	Sink       ui.Sink
	Metrics    *metrics.Metrics
	Clock      Clock
	Logger     zerolog.Logger
}

// Snapshot is a point-in-time view of the session for the control API.
type Snapshot struct {
	Running       bool      `json:"running"`
	SessionID     string    `json:"sessionId,omitempty"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
	State         string    `json:"state"`
	Buffer        string    `json:"buffer,omitempty"`
	BufferRole    string    `json:"bufferRole,omitempty"`
	InFlightID    string    `json:"inFlightId,omitempty"`
	InFlightText  string    `json:"inFlightText,omitempty"`
	Queue         []string  `json:"queue,omitempty"`
	LastEmitted   string    `json:"lastEmitted,omitempty"`
	InterviewerID *int      `json:"interviewerId,omitempty"`
	HistoryTurns  int       `json:"historyTurns"`
}

// Session is the control surface for one listening interval at a time.
// Start and Stop are idempotent and safe for concurrent use.
type Session struct {
	cfg     Config
	stt     stt.Factory
	backend answer.Backend
	history *conversation.Context
	sink    ui.Sink
	metrics *metrics.Metrics
	clock   Clock
	logger  zerolog.Logger
	ids     *segment.Generator

	// Pipeline state, touched only by the reactor of the live run or while
	// no run exists.
	normalizer *speaker.Normalizer
	segmenter  *segment.Segmenter
	gate       *emission.Gate

	ctl  sync.Mutex // serializes Start and Stop
	mu   sync.Mutex // guards run and last
	run  *run
	last *run
}

// New creates a stopped session.
func New(cfg Config, deps Deps) *Session {
	if deps.Classifier == nil {
		deps.Classifier = segment.DefaultClassifier()
	}
	if deps.Sink == nil {
		deps.Sink = ui.Fanout{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.History == nil {
		deps.History = conversation.New(conversation.DefaultMaxExchanges, nil, deps.Logger)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return &Session{
		cfg:        cfg,
		stt:        deps.STT,
		backend:    deps.Backend,
		history:    deps.History,
		sink:       deps.Sink,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
		ids:        segment.NewGenerator(),
		normalizer: speaker.NewNormalizer(),
		segmenter:  segment.NewSegmenter(deps.Classifier, cfg.Limits),
		gate:       emission.NewGate(deps.Classifier, cfg.DebounceWindow),
	}
}

// run is one listening interval. Its channel and context die with it, so
// callbacks and timers from a previous run can never reach a newer one.
type run struct {
	id        string
	startedAt time.Time
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan any
	done   chan struct{}

	adapter stt.Adapter
	coord   *dispatch.Coordinator

	flushTimer Timer
	flushAt    time.Time
	flushSeq   uint64
	finalTimer Timer
	finalSeq   uint64
	stuckTimer Timer

	current string // text last pushed as the current question
	err     error  // set when the run ended on a provider failure

	// failed is set by the provider callback before its error reaches the
	// reactor; the run is ending from then on.
	failed atomic.Bool
}

// ending reports whether the run has stopped or is about to.
func (r *run) ending() bool {
	return r.failed.Load() || r.ctx.Err() != nil
}

type transcriptMsg struct{ ev models.TranscriptEvent }

type providerErrorMsg struct{ err error }

type timerKind int

const (
	timerFlush timerKind = iota
	timerFinal
	timerStuck
)

type timerMsg struct {
	kind    timerKind
	seq     uint64
	finalAt time.Time
	callID  string
}

type resultMsg struct {
	call   dispatch.Call
	answer string
	err    error
}

type inspectMsg struct{ reply chan Snapshot }

// post hands msg to the reactor. Messages for a finished run are dropped.
func (r *run) post(msg any) {
	select {
	case r.events <- msg:
	case <-r.ctx.Done():
	}
}

// callback adapts provider callbacks to reactor messages.
type callback struct{ r *run }

func (c callback) OnTranscript(ev models.TranscriptEvent) { c.r.post(transcriptMsg{ev: ev}) }
func (c callback) OnError(err error) {
	c.r.failed.Store(true)
	c.r.post(providerErrorMsg{err: err})
}

// Start opens a provider stream and starts the reactor. Starting a running
// session is a no-op; a run that is ending is waited out and replaced.
func (s *Session) Start(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	current, last := s.run, s.last
	s.mu.Unlock()
	switch {
	case current != nil && !current.ending():
		return nil
	case current != nil:
		<-current.done
	case last != nil:
		<-last.done
	}

	s.resetPipeline()

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        uuid.NewString(),
		startedAt: s.clock.Now(),
		ctx:       runCtx,
		cancel:    cancel,
		events:    make(chan any, s.cfg.EventBuffer),
		done:      make(chan struct{}),
	}
	r.logger = s.logger.With().Str("sessionId", r.id).Logger()
	r.coord = dispatch.NewCoordinator(s.launcher(r), func() string { return s.ids.Next(r.id) }, s.cfg.StuckTimeout)

	adapter, err := s.stt(ctx)
	if err != nil {
		cancel()
		s.metrics.RecordSTTError(s.cfg.Provider, "connect")
		return fmt.Errorf("%w: %w", ErrProviderConnection, err)
	}
	r.adapter = adapter

	if err := adapter.Start(runCtx, callback{r: r}); err != nil {
		cancel()
		adapter.Close()
		s.metrics.RecordSTTError(s.cfg.Provider, "start")
		return fmt.Errorf("%w: %w", ErrProviderConnection, err)
	}

	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	s.metrics.RecordSessionStart()
	r.logger.Info().Str("sttProvider", s.cfg.Provider).Msg("Session started")
	s.notify(r, models.Event{EventType: models.EventStatus, Status: models.StatusStarted})

	go s.loop(r)
	return nil
}

// Stop ends the live run, if any, and waits until its state is reset.
func (s *Session) Stop() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Running reports whether a run is live.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && !s.run.ending()
}

// SendAudio forwards an audio frame to the provider stream.
func (s *Session) SendAudio(ctx context.Context, audio []byte) error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil || r.ending() {
		return ErrNotRunning
	}
	return r.adapter.SendAudio(ctx, audio)
}

// Snapshot returns the current pipeline state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()

	if r == nil {
		return Snapshot{State: segment.StateIdle.String(), HistoryTurns: s.history.Len()}, nil
	}

	reply := make(chan Snapshot, 1)
	select {
	case r.events <- inspectMsg{reply: reply}:
	case <-r.done:
		return Snapshot{State: segment.StateIdle.String(), HistoryTurns: s.history.Len()}, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return Snapshot{State: segment.StateIdle.String(), HistoryTurns: s.history.Len()}, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// History returns the conversation history.
func (s *Session) History() []models.Turn {
	return s.history.History()
}

// ClearHistory empties the conversation history.
func (s *Session) ClearHistory(ctx context.Context) error {
	err := s.history.Clear(ctx)
	s.metrics.SetHistoryTurns(s.history.Len())
	if err != nil {
		s.metrics.RecordHistoryPersistError()
	}
	return err
}

func (s *Session) resetPipeline() {
	s.normalizer.Reset()
	s.segmenter.Reset()
	s.gate.Reset()
}

func (s *Session) launcher(r *run) dispatch.Launcher {
	return func(c dispatch.Call) context.CancelFunc {
		ctx, cancel := context.WithCancel(r.ctx)
		history := s.history.History()
		go func() {
			text, err := s.backend.Generate(ctx, c.Job.Text, history)
			r.post(resultMsg{call: c, answer: text, err: err})
		}()
		return cancel
	}
}

func (s *Session) loop(r *run) {
	defer close(r.done)
	defer s.teardown(r)

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg := <-r.events:
			if !s.handle(r, msg) {
				return
			}
		}
	}
}

// handle applies one message. Returns false when the run must end.
func (s *Session) handle(r *run, msg any) bool {
	switch m := msg.(type) {
	case transcriptMsg:
		s.onTranscript(r, m.ev)
	case providerErrorMsg:
		s.onProviderError(r, m.err)
		return false
	case timerMsg:
		s.onTimer(r, m)
	case resultMsg:
		s.onResult(r, m)
	case inspectMsg:
		m.reply <- s.snapshot(r)
		return true
	}
	s.publishCurrent(r)
	s.scheduleFlush(r)
	return true
}

func (s *Session) onTranscript(r *run, ev models.TranscriptEvent) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	raw := ev.RawSpeakerID
	if raw == nil {
		raw = stt.DominantSpeaker(ev.Words)
	}
	role := s.normalizer.Normalize(raw)

	at := ev.ArrivalTime
	if at.IsZero() {
		at = s.clock.Now()
	}

	s.metrics.RecordTranscript(ev.IsFinal, role.String())
	s.notify(r, models.Event{
		EventType: models.EventTranscript,
		Speaker:   role.String(),
		Text:      text,
		IsFinal:   ev.IsFinal,
	})

	res := s.segmenter.Observe(segment.Input{
		Role:    role,
		Text:    text,
		IsFinal: ev.IsFinal,
		At:      at,
	})
	if res.Started {
		s.metrics.RecordBufferStarted()
	}
	for _, f := range res.Flushes {
		s.onFlush(r, f)
	}
	if res.RecheckAfterFinal {
		s.scheduleFinalRecheck(r, at)
	}
}

// otherSpeakerOutcome labels emissions skipped because the non-interviewer asked.
const otherSpeakerOutcome = "other_speaker"

func (s *Session) onFlush(r *run, f segment.Flush) {
	now := s.clock.Now()
	s.metrics.RecordFlush(f.Reason.String())

	// Other-speaker questions are screened but leave the emission record
	// to the interviewer.
	if f.Role == speaker.RoleOther && !s.cfg.DispatchOtherSpeaker {
		outcome := s.gate.Check(f.Text, now)
		s.metrics.RecordEmission(otherSpeakerOutcome)
		r.logger.Debug().
			Str("text", f.Text).
			Str("reason", f.Reason.String()).
			Str("outcome", outcome.String()).
			Msg("Ignoring question from other speaker")
		return
	}

	outcome := s.gate.Evaluate(f.Text, now)
	s.metrics.RecordEmission(outcome.String())
	if outcome != emission.Emitted {
		r.logger.Debug().
			Str("text", f.Text).
			Str("reason", f.Reason.String()).
			Str("outcome", outcome.String()).
			Msg("Flush suppressed")
		return
	}

	job, call := r.coord.Submit(f.Text, now)
	r.logger.Info().
		Str("questionId", job.ID).
		Str("reason", f.Reason.String()).
		Bool("queued", call == nil).
		Int("queueLen", r.coord.QueueLen()).
		Msg("Question detected")

	s.notify(r, models.Event{
		EventType:  models.EventQuestion,
		Speaker:    f.Role.String(),
		QuestionID: job.ID,
		Text:       f.Text,
	})
	if call != nil {
		s.armStuck(r, *call)
	}
	s.metrics.SetQueueDepth(r.coord.QueueLen())
}

func (s *Session) onResult(r *run, m resultMsg) {
	now := s.clock.Now()
	latency := now.Sub(m.call.StartedAt).Seconds()
	logger := r.logger.With().Str("questionId", m.call.ID).Logger()

	if !r.coord.IsCurrent(m.call.ID) {
		s.metrics.RecordDispatch("discarded", latency)
		logger.Debug().Msg("Discarding answer for released call")
		return
	}

	if m.err != nil {
		err := fmt.Errorf("%w: %w", ErrBackendCall, m.err)
		s.metrics.RecordDispatch("error", latency)
		logger.Error().Err(err).Msg("Answer generation failed")
		reporting.Capture(err, map[string]string{"sessionId": r.id, "questionId": m.call.ID})
		s.notify(r, models.Event{
			EventType:  models.EventError,
			QuestionID: m.call.ID,
			Text:       m.call.Job.Text,
			Error:      err.Error(),
			ErrorKind:  models.ErrorKindBackendCall,
		})
	} else {
		s.metrics.RecordDispatch("success", latency)
		if err := s.history.AppendExchange(r.ctx, m.call.Job.Text, m.answer); err != nil {
			s.metrics.RecordHistoryPersistError()
			reporting.Capture(err, map[string]string{"sessionId": r.id})
		}
		s.metrics.SetHistoryTurns(s.history.Len())
		logger.Info().Float64("latencySeconds", latency).Msg("Answer generated")
		s.notify(r, models.Event{
			EventType:  models.EventAnswer,
			QuestionID: m.call.ID,
			Text:       m.call.Job.Text,
			Answer:     m.answer,
		})
	}

	s.stopTimer(&r.stuckTimer)
	if next, _ := r.coord.Complete(m.call.ID, now); next != nil {
		s.armStuck(r, *next)
	}
	s.metrics.SetQueueDepth(r.coord.QueueLen())
}

func (s *Session) onProviderError(r *run, err error) {
	r.cancel()
	r.err = fmt.Errorf("%w: %w", ErrProviderConnection, err)
	s.metrics.RecordSTTError(s.cfg.Provider, "stream")
	r.logger.Error().Err(err).Str("sttProvider", s.cfg.Provider).Msg("Speech provider failed, stopping session")
	reporting.Capture(r.err, map[string]string{"sessionId": r.id, "sttProvider": s.cfg.Provider})
	s.notify(r, models.Event{
		EventType: models.EventError,
		Error:     r.err.Error(),
		ErrorKind: models.ErrorKindProviderConnection,
	})
}

func (s *Session) onTimer(r *run, m timerMsg) {
	now := s.clock.Now()

	switch m.kind {
	case timerFlush:
		if m.seq != r.flushSeq {
			return
		}
		r.flushTimer = nil
		r.flushAt = time.Time{}
		if f, ok := s.segmenter.Evaluate(now); ok {
			s.onFlush(r, f)
		}

	case timerFinal:
		if m.seq != r.finalSeq {
			return
		}
		r.finalTimer = nil
		if f, ok := s.segmenter.EvaluateFinal(now, m.finalAt); ok {
			s.onFlush(r, f)
		}

	case timerStuck:
		if !r.coord.IsCurrent(m.callID) {
			return
		}
		r.stuckTimer = nil
		next, released := r.coord.ReleaseStuck(m.callID, now)
		if !released {
			// Fired early; wait for the real deadline.
			if call, ok := r.coord.InFlight(); ok {
				s.armStuck(r, call)
			}
			return
		}
		err := fmt.Errorf("%w: question %s", ErrDispatchTimeout, m.callID)
		s.metrics.RecordStuckRelease()
		r.logger.Warn().Err(err).Int("queueLen", r.coord.QueueLen()).Msg("Released stuck answer call")
		reporting.Capture(err, map[string]string{"sessionId": r.id, "questionId": m.callID})
		if next != nil {
			s.armStuck(r, *next)
		}
		s.metrics.SetQueueDepth(r.coord.QueueLen())
	}
}

// scheduleFlush keeps one timer armed at the segmenter's next deadline.
func (s *Session) scheduleFlush(r *run) {
	deadline, ok := s.segmenter.NextDeadline()
	if !ok {
		s.stopTimer(&r.flushTimer)
		r.flushAt = time.Time{}
		return
	}
	if r.flushTimer != nil && deadline.Equal(r.flushAt) {
		return
	}

	s.stopTimer(&r.flushTimer)
	r.flushSeq++
	r.flushAt = deadline
	msg := timerMsg{kind: timerFlush, seq: r.flushSeq}
	r.flushTimer = s.clock.AfterFunc(max(deadline.Sub(s.clock.Now()), 0), func() { r.post(msg) })
}

func (s *Session) scheduleFinalRecheck(r *run, finalAt time.Time) {
	s.stopTimer(&r.finalTimer)
	r.finalSeq++
	msg := timerMsg{kind: timerFinal, seq: r.finalSeq, finalAt: finalAt}
	r.finalTimer = s.clock.AfterFunc(s.cfg.FinalRecheckDelay, func() { r.post(msg) })
}

func (s *Session) armStuck(r *run, call dispatch.Call) {
	s.stopTimer(&r.stuckTimer)
	deadline, ok := r.coord.StuckDeadline()
	if !ok {
		return
	}
	msg := timerMsg{kind: timerStuck, callID: call.ID}
	r.stuckTimer = s.clock.AfterFunc(max(deadline.Sub(s.clock.Now()), 0), func() { r.post(msg) })
}

func (s *Session) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// publishCurrent pushes the live buffer text when it changed.
func (s *Session) publishCurrent(r *run) {
	var text, role string
	if buf, ok := s.segmenter.Current(); ok {
		text, role = buf.Text, buf.Speaker().String()
	}
	if text == r.current {
		return
	}
	r.current = text
	s.notify(r, models.Event{EventType: models.EventCurrentQuestion, Speaker: role, Text: text})
}

func (s *Session) snapshot(r *run) Snapshot {
	snap := Snapshot{
		Running:      true,
		SessionID:    r.id,
		StartedAt:    r.startedAt,
		State:        s.segmenter.State().String(),
		HistoryTurns: s.history.Len(),
	}
	if buf, ok := s.segmenter.Current(); ok {
		snap.Buffer = buf.Text
		snap.BufferRole = buf.Speaker().String()
	}
	if call, ok := r.coord.InFlight(); ok {
		snap.InFlightID = call.ID
		snap.InFlightText = call.Job.Text
	}
	for _, job := range r.coord.Pending() {
		snap.Queue = append(snap.Queue, job.Text)
	}
	if rec, ok := s.gate.Last(); ok {
		snap.LastEmitted = rec.Text
	}
	if id, ok := s.normalizer.InterviewerID(); ok {
		snap.InterviewerID = models.SpeakerID(id)
	}
	return snap
}

// teardown runs on the reactor goroutine when the run ends for any reason.
func (s *Session) teardown(r *run) {
	r.cancel()
	s.stopTimer(&r.flushTimer)
	s.stopTimer(&r.finalTimer)
	s.stopTimer(&r.stuckTimer)
	r.coord.Reset()

	if err := r.adapter.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("Error closing speech provider")
	}
	s.resetPipeline()
	s.metrics.SetQueueDepth(0)

	errorKind := ""
	status := models.Event{EventType: models.EventStatus, Status: models.StatusStopped}
	if r.err != nil {
		errorKind = models.ErrorKindProviderConnection
		status.Error = r.err.Error()
		status.ErrorKind = errorKind
	}
	duration := s.clock.Now().Sub(r.startedAt)
	s.metrics.RecordSessionEnd(errorKind, duration.Seconds())
	s.notify(r, status)

	r.logger.Info().Dur("duration", duration).Msg("Session stopped")

	s.mu.Lock()
	if s.run == r {
		s.run = nil
	}
	s.last = r
	s.mu.Unlock()
}

func (s *Session) notify(r *run, ev models.Event) {
	ev.SessionID = r.id
	ev.Timestamp = s.clock.Now().UnixMilli()
	s.sink.Notify(ev)
}
