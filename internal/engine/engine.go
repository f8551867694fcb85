// Package engine implements the recording engine (C6): the single-writer
// state machine that owns audio sources and recognizers for up to two
// concurrent pipelines (microphone, system audio), persists finalized
// segments, and pushes a directed stream of engine events to a delegate
// broadcaster.
//
// It is grounded on the donor's app.SessionManager: a mutex-guarded
// single-owner struct with an ordered-closer teardown list, generalized
// from one Discord voice session to the two audio/recognizer pipelines
// this daemon drives, and with the event-emission and sequencing behavior
// the donor's SessionManager does not have.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jwulff/stenod/pkg/audio"
	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/permission"
	"github.com/jwulff/stenod/pkg/recognizer"
	"github.com/jwulff/stenod/pkg/store"
)

// defaultLevelInterval is the level-metering tick period; 100ms satisfies
// the 10 Hz rate limit spec.md §4.3 requires.
const defaultLevelInterval = 100 * time.Millisecond

// EventSink receives every [domain.EngineEvent] the engine emits, in
// emission order. The broadcaster (C7) is the production implementation.
type EventSink interface {
	Emit(domain.EngineEvent)
}

// Coordinator is the narrow view of the summary coordinator (C5) the engine
// depends on: one call per saved segment, returning an optional result the
// engine uses only to decide whether a topicsUpdated event is due. No
// coordinator error or panic may propagate past this call.
type Coordinator interface {
	OnSegmentSaved(ctx context.Context, sessionID string) (*domain.SummaryResult, error)
}

// Config bundles an [Engine]'s dependencies.
type Config struct {
	Store             store.Repository
	Permission        permission.Prober
	AudioFactory      audio.Factory
	RecognizerFactory recognizer.Factory
	Coordinator       Coordinator
	Events            EventSink

	// LevelInterval overrides the level-metering tick period; defaults to
	// 100ms (10 Hz) when zero.
	LevelInterval time.Duration
}

// pipeline is one (AudioSource, RecognizerHandle, consumer task) triple,
// tagged by source.
type pipeline struct {
	source   domain.Source
	audioSrc audio.Source
	handle   recognizer.Handle
	events   <-chan recognizer.Event
	level    *atomicFloat
}

// Engine is the recording engine. A single instance owns at most one
// active session's pipelines at a time; external callers only ever
// observe its state through [Engine.Status] and friends, or through
// events pushed to the configured [EventSink].
type Engine struct {
	store             store.Repository
	permission        permission.Prober
	audioFactory      audio.Factory
	recognizerFactory recognizer.Factory
	coordinator       Coordinator
	events            EventSink
	levelInterval     time.Duration

	mu                 sync.Mutex
	status             domain.EngineStatus
	session            *domain.Session
	device             string
	systemAudioEnabled bool
	pipelines          []*pipeline
	cancel             context.CancelFunc

	// segMu serializes final-segment sequencing and persistence across
	// both pipelines of the active session, so sequenceNumber allocation
	// is strictly ordered regardless of which source finalizes first.
	segMu        sync.Mutex
	segmentCount int

	wg sync.WaitGroup
}

// New constructs an idle [Engine] from cfg.
func New(cfg Config) *Engine {
	interval := cfg.LevelInterval
	if interval <= 0 {
		interval = defaultLevelInterval
	}
	return &Engine{
		store:             cfg.Store,
		permission:        cfg.Permission,
		audioFactory:      cfg.AudioFactory,
		recognizerFactory: cfg.RecognizerFactory,
		coordinator:       cfg.Coordinator,
		events:            cfg.Events,
		levelInterval:     interval,
		status:            domain.EngineIdle,
	}
}

// Start begins a new recording session. See spec.md §4.3 for the full
// error/ordering contract; in short: fails with [domain.ErrAlreadyRecording]
// unless idle or errored, [domain.ErrPermissionDenied] if capture is not
// authorized, [domain.ErrAudioSourceFailed] or [domain.ErrRecognizerFailed]
// if pipeline setup fails. On success the session transitions atomically to
// EngineRecording with its sequence counter reset to zero.
func (e *Engine) Start(ctx context.Context, locale, device string, systemAudio bool) (domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != domain.EngineIdle && e.status != domain.EngineError {
		return domain.Session{}, domain.ErrAlreadyRecording
	}

	if err := e.permission.Check(ctx, domain.SourceMicrophone); err != nil {
		return e.abortStart(ctx, "", fmt.Errorf("%w: microphone: %v", domain.ErrPermissionDenied, err))
	}
	if systemAudio {
		if err := e.permission.Check(ctx, domain.SourceSystemAudio); err != nil {
			return e.abortStart(ctx, "", fmt.Errorf("%w: system audio: %v", domain.ErrPermissionDenied, err))
		}
	}

	sess, err := e.store.CreateSession(ctx, locale)
	if err != nil {
		return e.abortStart(ctx, "", fmt.Errorf("create session: %w", err))
	}

	var pipelines []*pipeline
	teardown := func() {
		for i := len(pipelines) - 1; i >= 0; i-- {
			_ = pipelines[i].handle.Stop()
			_ = pipelines[i].audioSrc.Stop()
		}
	}

	micPipe, err := e.openPipeline(ctx, domain.SourceMicrophone, locale, device)
	if err != nil {
		teardown()
		return e.abortStart(ctx, sess.ID, err)
	}
	pipelines = append(pipelines, micPipe)

	if systemAudio {
		sysPipe, err := e.openPipeline(ctx, domain.SourceSystemAudio, locale, "")
		if err != nil {
			teardown()
			return e.abortStart(ctx, sess.ID, err)
		}
		pipelines = append(pipelines, sysPipe)
	}

	pipelineCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.pipelines = pipelines
	e.session = &sess
	e.device = device
	e.systemAudioEnabled = systemAudio
	e.status = domain.EngineRecording

	e.segMu.Lock()
	e.segmentCount = 0
	e.segMu.Unlock()

	// Emit the status event before spawning any pipeline or level-ticker
	// goroutine: a subscribed client must observe statusChanged(recording)
	// before the first partial/level/segment event a fast recognizer result
	// could otherwise race ahead of (spec.md §8 scenario S1).
	e.emit(domain.EngineEvent{Kind: domain.EventStatusChanged, Status: domain.EngineRecording})

	for _, p := range pipelines {
		e.wg.Add(1)
		go e.runPipeline(pipelineCtx, p)
	}
	e.wg.Add(1)
	go e.runLevelTicker(pipelineCtx)

	return sess, nil
}

// abortStart records a setup failure: it ends any session already created
// for this attempt (so no orphaned active session survives a failed
// Start), transitions to EngineError, and emits the corresponding events.
// Must be called with mu held.
func (e *Engine) abortStart(ctx context.Context, sessionID string, err error) (domain.Session, error) {
	if sessionID != "" {
		if endErr := e.store.EndSession(ctx, sessionID); endErr != nil {
			err = fmt.Errorf("%w (and failed to end orphaned session: %v)", err, endErr)
		}
	}
	e.status = domain.EngineError
	e.session = nil
	e.pipelines = nil
	e.emit(domain.EngineEvent{Kind: domain.EventError, Message: err.Error(), IsTransient: false})
	e.emit(domain.EngineEvent{Kind: domain.EventStatusChanged, Status: domain.EngineError})
	return domain.Session{}, err
}

// openPipeline opens an audio source, starts it, constructs a matching
// recognizer handle, and begins transcription, wrapping any failure in the
// sentinel spec.md §4.3 names for that stage.
func (e *Engine) openPipeline(ctx context.Context, tag domain.Source, locale, device string) (*pipeline, error) {
	src, err := e.audioFactory.Open(ctx, tag, device)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s source: %v", domain.ErrAudioSourceFailed, tag, err)
	}
	buffers, format, err := src.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: start %s source: %v", domain.ErrAudioSourceFailed, tag, err)
	}

	handle, err := e.recognizerFactory.Make(ctx, locale, format)
	if err != nil {
		_ = src.Stop()
		return nil, fmt.Errorf("%w: make recognizer for %s: %v", domain.ErrRecognizerFailed, tag, err)
	}

	level := &atomicFloat{}
	teed := teeLevel(buffers, format.BitDepth, level)
	events, err := handle.Transcribe(ctx, teed)
	if err != nil {
		_ = handle.Stop()
		_ = src.Stop()
		return nil, fmt.Errorf("%w: transcribe %s: %v", domain.ErrRecognizerFailed, tag, err)
	}

	return &pipeline{source: tag, audioSrc: src, handle: handle, events: events, level: level}, nil
}

// Stop ends the active session, if any. It is a no-op when the engine is
// already idle. Calling Stop while a session is starting, recording, or
// errored tears down every pipeline (recognizers before audio sources, in
// reverse order of setup), ends the session, and returns to idle.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == domain.EngineIdle {
		return nil
	}

	e.status = domain.EngineStopping
	if e.cancel != nil {
		e.cancel()
	}

	for i := len(e.pipelines) - 1; i >= 0; i-- {
		p := e.pipelines[i]
		_ = p.handle.Stop()
		_ = p.audioSrc.Stop()
	}

	e.wg.Wait()

	if e.session != nil {
		if err := e.store.EndSession(ctx, e.session.ID); err != nil {
			e.emit(domain.EngineEvent{Kind: domain.EventError, Message: err.Error(), IsTransient: true})
		}
	}

	e.session = nil
	e.device = ""
	e.systemAudioEnabled = false
	e.pipelines = nil
	e.cancel = nil
	e.status = domain.EngineIdle
	e.emit(domain.EngineEvent{Kind: domain.EventStatusChanged, Status: domain.EngineIdle})
	return nil
}

// Status returns the engine's current state.
func (e *Engine) Status() domain.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// CurrentSession returns a copy of the active session, or nil if none.
func (e *Engine) CurrentSession() *domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	sess := *e.session
	return &sess
}

// CurrentDevice returns the microphone device name passed to the active
// Start call, or "" if idle.
func (e *Engine) CurrentDevice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

// IsSystemAudioEnabled reports whether the active session captures system
// audio in addition to the microphone.
func (e *Engine) IsSystemAudioEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.systemAudioEnabled
}

// SegmentCount returns the number of segments finalized so far in the
// active session, or in the most recent session when none is active.
func (e *Engine) SegmentCount() int {
	e.segMu.Lock()
	defer e.segMu.Unlock()
	return e.segmentCount
}

// runPipeline consumes one pipeline's recognizer events until its channel
// closes. ctx cancellation is a backstop; the normal termination path is
// Stop calling handle.Stop()/audioSrc.Stop(), which closes events.
func (e *Engine) runPipeline(ctx context.Context, p *pipeline) {
	defer e.wg.Done()
	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				return
			}
			e.handleResult(p.source, ev)
		case <-ctx.Done():
			return
		}
	}
}

// handleResult implements spec.md §4.3's "Handling a result" and "Error
// semantics" sections for a single recognizer event.
func (e *Engine) handleResult(source domain.Source, ev recognizer.Event) {
	if ev.Err != nil {
		if domain.IsCancellation(ev.Err) {
			return
		}
		e.emit(domain.EngineEvent{Kind: domain.EventError, Message: ev.Err.Error(), IsTransient: true})
		return
	}

	r := ev.Result
	if !r.IsFinal {
		e.emit(domain.EngineEvent{Kind: domain.EventPartialText, Text: r.Text, Source: source})
		return
	}

	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}

	e.mu.Lock()
	if e.status != domain.EngineRecording || e.session == nil {
		e.mu.Unlock()
		return
	}
	sessionID := e.session.ID
	e.mu.Unlock()

	e.segMu.Lock()
	seq := e.segmentCount + 1
	seg := domain.StoredSegment{
		SessionID:      sessionID,
		Text:           text,
		StartedAt:      r.Timestamp,
		EndedAt:        time.Now().UTC(),
		Confidence:     r.Confidence,
		SequenceNumber: seq,
		Source:         source,
	}
	if err := e.store.SaveSegment(context.Background(), seg); err != nil {
		e.segMu.Unlock()
		e.emit(domain.EngineEvent{Kind: domain.EventError, Message: err.Error(), IsTransient: true})
		return
	}
	e.segmentCount = seq
	e.segMu.Unlock()

	e.emit(domain.EngineEvent{Kind: domain.EventSegmentFinalized, Segment: seg})
	e.invokeCoordinator(sessionID)
}

// invokeCoordinator runs the summary coordinator for sessionID on its own
// goroutine so a slow LLM call never blocks either pipeline's consumer
// loop (spec.md §8 scenario S4). No coordinator error can reach the engine
// beyond the modelProcessing bracket.
func (e *Engine) invokeCoordinator(sessionID string) {
	if e.coordinator == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.emit(domain.EngineEvent{Kind: domain.EventModelProcessing, ModelBusy: true})
		result, err := e.coordinator.OnSegmentSaved(context.Background(), sessionID)
		e.emit(domain.EngineEvent{Kind: domain.EventModelProcessing, ModelBusy: false})
		if err != nil || result == nil || len(result.Topics) == 0 {
			return
		}
		e.emit(domain.EngineEvent{Kind: domain.EventTopicsUpdated, Topics: result.Topics})
	}()
}

// runLevelTicker emits at most one level event per levelInterval, carrying
// the peak observed on each source since the previous tick.
func (e *Engine) runLevelTicker(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.levelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mic, sys := e.drainLevels()
			e.emit(domain.EngineEvent{Kind: domain.EventLevel, MicLevel: mic, SystemLevel: sys})
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) drainLevels() (mic, sys float64) {
	e.mu.Lock()
	pipelines := e.pipelines
	e.mu.Unlock()
	for _, p := range pipelines {
		v := p.level.Swap(0)
		switch p.source {
		case domain.SourceMicrophone:
			mic = v
		case domain.SourceSystemAudio:
			sys = v
		}
	}
	return mic, sys
}

func (e *Engine) emit(ev domain.EngineEvent) {
	if e.events != nil {
		e.events.Emit(ev)
	}
}
