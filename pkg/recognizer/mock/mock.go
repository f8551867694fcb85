// Package mock provides test doubles for [recognizer.Factory] and
// [recognizer.Handle].
package mock

import (
	"context"
	"sync"

	"github.com/jwulff/stenod/pkg/audio"
	"github.com/jwulff/stenod/pkg/recognizer"
)

// Factory is a mock [recognizer.Factory]. Configure Results (and optionally
// MakeErr) before the engine calls Make; every Handle it produces replays the
// same scripted Results.
type Factory struct {
	mu sync.Mutex

	// Results is fed, in order, on the channel returned by the produced
	// Handle's Transcribe.
	Results []recognizer.Event

	// MakeErr, if non-nil, is returned by Make instead of constructing a
	// Handle.
	MakeErr error

	// Calls records each Make invocation's locale.
	Calls []string

	// Handles records every Handle this factory has produced, in order.
	Handles []*Handle
}

// Make implements [recognizer.Factory].
func (f *Factory) Make(ctx context.Context, locale string, format audio.Format) (recognizer.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, locale)
	if f.MakeErr != nil {
		return nil, f.MakeErr
	}
	h := &Handle{Results: f.Results}
	f.Handles = append(f.Handles, h)
	return h, nil
}

// Handle is a mock [recognizer.Handle].
type Handle struct {
	mu sync.Mutex

	// Results is fed, in order, on the channel returned by Transcribe.
	Results []recognizer.Event

	// TranscribeErr, if non-nil, is returned by Transcribe instead of
	// opening a channel.
	TranscribeErr error

	stopped   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	StopCalls int
}

// Transcribe implements [recognizer.Handle].
func (h *Handle) Transcribe(ctx context.Context, buffers <-chan audio.Buffer) (<-chan recognizer.Event, error) {
	h.mu.Lock()
	if h.TranscribeErr != nil {
		h.mu.Unlock()
		return nil, h.TranscribeErr
	}
	h.stopCh = make(chan struct{})
	h.mu.Unlock()

	out := make(chan recognizer.Event)
	go func() {
		defer close(out)
		for _, ev := range h.Results {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			}
		}
		// Drain the source until it closes, so a caller that keeps feeding
		// buffers after results are exhausted never blocks forever.
		for {
			select {
			case _, ok := <-buffers:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			}
		}
	}()
	return out, nil
}

// Stop implements [recognizer.Handle]. Safe to call multiple times.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.StopCalls++
	if h.stopCh != nil {
		h.stopOnce.Do(func() { close(h.stopCh) })
	}
	h.stopped = true
	return nil
}

var (
	_ recognizer.Factory = (*Factory)(nil)
	_ recognizer.Handle  = (*Handle)(nil)
)
