// Package mock provides test doubles for [audio.Source].
//
// Use [Source] to script a sequence of buffers (or a start failure) for the
// engine to consume; Stop is call-counted so tests can assert the engine's
// shutdown path releases every pipeline it opened.
package mock

import (
	"context"
	"sync"

	"github.com/jwulff/stenod/pkg/audio"
	"github.com/jwulff/stenod/pkg/domain"
)

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Buffers is sent, in order, on the channel returned by Start, then the
	// channel is closed. Populate before calling Start.
	Buffers []audio.Buffer

	// Format is returned alongside the channel from Start.
	Format audio.Format

	// StartErr, if non-nil, is returned by Start instead of opening a
	// channel.
	StartErr error

	// StopErr, if non-nil, is returned by every Stop call.
	StopErr error

	started   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	StopCalls int
}

// Start implements [audio.Source]. It feeds every buffer in Buffers onto the
// returned channel (respecting ctx cancellation and a Stop call) and then
// closes it.
func (s *Source) Start(ctx context.Context) (<-chan audio.Buffer, audio.Format, error) {
	s.mu.Lock()
	if s.StartErr != nil {
		s.mu.Unlock()
		return nil, audio.Format{}, s.StartErr
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	out := make(chan audio.Buffer)
	go func() {
		defer close(out)
		for _, b := range s.Buffers {
			select {
			case out <- b:
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	return out, s.Format, nil
}

// Stop implements [audio.Source]. Safe to call multiple times.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	if s.started {
		s.stopOnce.Do(func() { close(s.stopCh) })
	}
	return s.StopErr
}

var _ audio.Source = (*Source)(nil)

// Factory is a mock [audio.Factory]. Open returns a shallow copy of Template
// (so each pipeline gets its own Source state; the Buffers slice is shared)
// unless OpenErr is set, or
// tag has a per-tag override in Sources.
type Factory struct {
	mu sync.Mutex

	// Template is cloned (value fields only) into the Source returned by
	// Open when no per-tag override is present in Sources.
	Template Source

	// Sources, when set, is consulted by tag before Template.
	Sources map[domain.Source]*Source

	// OpenErr, if non-nil, is returned by Open instead of a Source.
	OpenErr error

	// Devices is returned by ListDevices.
	Devices []string

	// ListDevicesErr, if non-nil, is returned by ListDevices.
	ListDevicesErr error

	// OpenCalls records each Open invocation's (tag, device).
	OpenCalls []OpenCall
}

// OpenCall records one [Factory.Open] invocation.
type OpenCall struct {
	Tag    domain.Source
	Device string
}

// Open implements [audio.Factory].
func (f *Factory) Open(ctx context.Context, tag domain.Source, device string) (audio.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls = append(f.OpenCalls, OpenCall{Tag: tag, Device: device})
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	if src, ok := f.Sources[tag]; ok {
		clone := *src
		return &clone, nil
	}
	clone := f.Template
	return &clone, nil
}

// ListDevices implements [audio.Factory].
func (f *Factory) ListDevices(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListDevicesErr != nil {
		return nil, f.ListDevicesErr
	}
	return f.Devices, nil
}

var _ audio.Factory = (*Factory)(nil)
