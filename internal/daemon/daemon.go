// Package daemon wires every stenod subsystem into a running application.
//
// Daemon owns the full process lifecycle the way the donor's internal/app.App
// owns a Glyphoxa server's: New constructs and connects every collaborator
// (store, engine, coordinator, broadcaster, dispatcher, socket server, health
// and metrics HTTP server), Run blocks until the context is cancelled, and
// Shutdown tears everything down in reverse-init order, respecting a
// deadline.
//
// For testing, inject collaborators via functional [Option]s. An unset store
// falls back to the SQLite repository at the configured path; an unset audio
// factory, recognizer factory or summarizer falls back to a non-functional
// mock stand-in.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwulff/stenod/internal/broadcast"
	"github.com/jwulff/stenod/internal/config"
	"github.com/jwulff/stenod/internal/coordinator"
	"github.com/jwulff/stenod/internal/dispatch"
	"github.com/jwulff/stenod/internal/engine"
	"github.com/jwulff/stenod/internal/health"
	"github.com/jwulff/stenod/internal/observe"
	"github.com/jwulff/stenod/internal/socket"
	"github.com/jwulff/stenod/pkg/audio"
	audiomock "github.com/jwulff/stenod/pkg/audio/mock"
	"github.com/jwulff/stenod/pkg/domain"
	permissionmock "github.com/jwulff/stenod/pkg/permission/mock"
	"github.com/jwulff/stenod/pkg/recognizer"
	recognizermock "github.com/jwulff/stenod/pkg/recognizer/mock"
	"github.com/jwulff/stenod/pkg/store"
	"github.com/jwulff/stenod/pkg/store/sqlite"
	"github.com/jwulff/stenod/pkg/summarizer"
	summarizermock "github.com/jwulff/stenod/pkg/summarizer/mock"
)

// Daemon owns every subsystem's lifetime: the transcript repository (C1),
// the recording engine (C6), the summary coordinator (C5), the event
// broadcaster (C7), the command dispatcher (C8), the socket server (C9),
// and the loopback health/metrics HTTP server.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store             store.Repository
	audioFactory      audio.Factory
	recognizerFactory recognizer.Factory
	summarizer        summarizer.Summarizer

	coordinator *coordinator.Coordinator
	engine      *engine.Engine
	broadcast   *broadcast.Broadcaster
	dispatcher  *dispatch.Dispatcher
	socket      *socket.Server
	httpSrv     *http.Server
	metrics     *observe.Metrics

	// closers run in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for [New]. Use these to inject test doubles.
type Option func(*Daemon)

// WithStore injects a repository instead of opening one from cfg.Server.DBPath.
func WithStore(s store.Repository) Option {
	return func(d *Daemon) { d.store = s }
}

// WithAudioFactory injects an audio source factory instead of the built-in
// mock stand-in. stenod ships no concrete capture backend (spec.md §1
// Non-goals); callers wiring a real device must supply one.
func WithAudioFactory(f audio.Factory) Option {
	return func(d *Daemon) { d.audioFactory = f }
}

// WithRecognizerFactory injects a recognizer factory instead of the built-in
// mock stand-in. stenod ships no concrete recognition backend (spec.md §1
// Non-goals); callers wiring a real provider must supply one.
func WithRecognizerFactory(f recognizer.Factory) Option {
	return func(d *Daemon) { d.recognizerFactory = f }
}

// WithSummarizer injects a summarizer instead of the built-in mock stand-in.
// stenod ships no concrete LLM-backed summarizer (spec.md §1 Non-goals).
func WithSummarizer(s summarizer.Summarizer) Option {
	return func(d *Daemon) { d.summarizer = s }
}

// WithMetrics injects a [observe.Metrics] instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithLogger overrides the [slog.Logger] used for daemon diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// New wires every subsystem from cfg, applying opts first so test doubles
// take priority over real construction. Initialisation is synchronous and
// ordered; each successful step that owns a resource appends a teardown func
// to d.closers so [Daemon.Shutdown] can unwind them in reverse order.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{cfg: cfg}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}

	// ── 2. Transcript repository (C1) ───────────────────────────────────
	if err := d.initStore(ctx); err != nil {
		return nil, fmt.Errorf("daemon: init store: %w", err)
	}

	// ── 3. External collaborators (C2/C3/C4) ────────────────────────────
	d.initCollaborators()

	// ── 4. Summary coordinator (C5) ──────────────────────────────────────
	d.coordinator = coordinator.New(coordinator.Config{
		Store:                     d.store,
		Summarizer:                d.summarizer,
		TriggerCount:              cfg.Coordinator.TriggerCount,
		TimeThreshold:             cfg.Coordinator.TimeThreshold,
		MinSegmentsForTimeTrigger: cfg.Coordinator.MinSegmentsForTimeTrigger,
		LLMTimeout:                cfg.Coordinator.LLMTimeout,
	})

	// ── 5. Event broadcaster (C7) ────────────────────────────────────────
	d.broadcast = broadcast.New()

	// ── 6. Recording engine (C6) ──────────────────────────────────────────
	d.engine = engine.New(engine.Config{
		Store:             d.store,
		Permission:        &permissionmock.Prober{},
		AudioFactory:      d.audioFactory,
		RecognizerFactory: d.recognizerFactory,
		Coordinator:       d.coordinator,
		Events:            d.broadcast,
	})

	// ── 7. Command dispatcher (C8) ────────────────────────────────────────
	d.dispatcher = dispatch.New(dispatch.Config{
		Engine:        d.engine,
		Devices:       d.audioFactory,
		Subscriber:    d.broadcast,
		DefaultLocale: cfg.Recognizer.DefaultLocale,
	})

	// ── 8. Socket server (C9) ─────────────────────────────────────────────
	if err := d.initSocket(); err != nil {
		return nil, fmt.Errorf("daemon: init socket: %w", err)
	}

	// ── 9. Health/metrics HTTP server ─────────────────────────────────────
	d.initHTTP()

	return d, nil
}

// initStore opens the sqlite-backed repository unless one was injected.
func (d *Daemon) initStore(ctx context.Context) error {
	if d.store != nil {
		return nil
	}
	if d.cfg.Server.DBPath == "" {
		return errors.New("server.db_path is required")
	}
	st, err := sqlite.New(ctx, sqlite.Config{Path: d.cfg.Server.DBPath})
	if err != nil {
		return err
	}
	d.store = st
	d.closers = append(d.closers, st.Close)
	return nil
}

// initCollaborators fills in the audio, recognizer, and summarizer
// collaborators with mock stand-ins when not injected. No concrete capture,
// recognition, or LLM-backed summarization implementation ships with stenod
// (spec.md §1 Non-goals); a deployment that needs one must supply it via
// [WithAudioFactory], [WithRecognizerFactory], or [WithSummarizer].
func (d *Daemon) initCollaborators() {
	if d.audioFactory == nil {
		d.logger.Warn("no audio factory configured — using a non-functional mock stand-in; recording will not capture real audio")
		d.audioFactory = &audiomock.Factory{Devices: []string{"mock-device"}}
	}
	if d.recognizerFactory == nil {
		d.logger.Warn("no recognizer factory configured — using a non-functional mock stand-in; transcripts will be empty")
		d.recognizerFactory = &recognizermock.Factory{}
	}
	if d.summarizer == nil {
		d.logger.Warn("no summarizer configured — using a non-functional mock stand-in; summaries and topics will be empty")
		d.summarizer = &summarizermock.Summarizer{}
	}
}

// initSocket starts the C9 socket server's listener and PID file. The server
// itself begins accepting connections only once [Daemon.Run] calls Serve.
func (d *Daemon) initSocket() error {
	socketPath := d.cfg.Server.SocketPath
	if socketPath == "" {
		return errors.New("server.socket_path is required")
	}
	srv, err := socket.New(socket.Config{
		SocketPath: socketPath,
		PIDPath:    d.cfg.Server.PIDFile,
		Dispatcher: d.dispatcher,
		Broadcast:  d.broadcast,
		Logger:     d.logger,
	})
	if err != nil {
		return err
	}
	d.socket = srv
	d.closers = append(d.closers, srv.Close)
	return nil
}

// initHTTP builds (but does not start) the loopback health/metrics server.
// A blank MetricsAddr disables it entirely.
func (d *Daemon) initHTTP() {
	if d.cfg.Server.MetricsAddr == "" {
		return
	}

	h := health.New(
		health.Checker{Name: "store", Check: func(ctx context.Context) error {
			_, err := d.store.AllSessions(ctx)
			return err
		}},
		health.Checker{Name: "engine", Check: func(ctx context.Context) error {
			if d.engine.Status() == domain.EngineError {
				return fmt.Errorf("engine is in error state")
			}
			return nil
		}},
	)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	d.httpSrv = &http.Server{
		Addr:    d.cfg.Server.MetricsAddr,
		Handler: observe.Middleware(d.metrics)(mux),
	}
	d.closers = append(d.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.httpSrv.Shutdown(ctx)
	})
}

// Run starts the socket server's accept loop and the HTTP server (if
// configured), blocking until ctx is cancelled. A failure in either
// subsystem cancels the other and is returned once both have stopped.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.socket.Serve(runCtx); err != nil {
			errCh <- fmt.Errorf("socket server: %w", err)
			cancel()
		}
	}()

	if d.httpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("health/metrics server: %w", err)
				cancel()
			}
		}()
	}

	d.logger.Info("stenod running",
		"socket_path", d.cfg.Server.SocketPath,
		"metrics_addr", d.cfg.Server.MetricsAddr,
	)

	<-runCtx.Done()
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down every subsystem in reverse-init order, respecting
// ctx's deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var shutdownErr error
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down", "closers", len(d.closers))

		if d.engine.Status() == domain.EngineRecording {
			if err := d.engine.Stop(ctx); err != nil {
				d.logger.Warn("engine stop error", "err", err)
			}
		}

		for i := len(d.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				d.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := d.closers[i](); err != nil {
				d.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		d.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// Store returns the transcript repository (C1).
func (d *Daemon) Store() store.Repository { return d.store }

// Engine returns the recording engine (C6).
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// Broadcast returns the event broadcaster (C7).
func (d *Daemon) Broadcast() *broadcast.Broadcaster { return d.broadcast }

// Coordinator returns the summary/topic coordinator (C5), primarily so a
// config watcher can apply hot-reloaded trigger thresholds via
// [coordinator.Coordinator.SetThresholds].
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coordinator }
