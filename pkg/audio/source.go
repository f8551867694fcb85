// Package audio defines the AudioSource contract (C3): the narrow, single-use
// capture abstraction the recording engine drives per source tag.
//
// Concrete device enumeration and PCM capture are out of scope for this
// daemon (spec.md §1); only the interface the engine consumes lives here.
// This is narrowed from the donor's multi-participant [Platform]/[Connection]
// shape (N inbound streams plus one mixed outbound stream, join/leave
// events) down to a single lazy PCM sequence per local device, since this
// daemon captures from exactly one source per tag rather than mixing many
// remote participants.
package audio

import (
	"context"

	"github.com/jwulff/stenod/pkg/domain"
)

// Format describes the PCM encoding a [Source] declares on [Source.Start].
// The recognizer factory uses it to configure the matching recognizer Handle.
type Format struct {
	// SampleRate is the audio sample rate in Hz (e.g. 16000, 48000).
	SampleRate int

	// Channels is the channel count. 1 = mono, the format most recognizers
	// expect; sources that capture stereo must downmix before emitting.
	Channels int

	// BitDepth is the sample bit depth (e.g. 16 for signed 16-bit PCM).
	BitDepth int
}

// Buffer is one chunk of raw PCM audio produced by a [Source].
type Buffer struct {
	// Data holds the raw PCM samples in the format declared by [Source.Start].
	Data []byte

	// Timestamp marks when this buffer was captured.
	Timestamp int64
}

// Source is a single-use producer of a lazy sequence of PCM [Buffer] values.
// spec.md §4.2 calls this "AudioSource": exactly one [Source.Start] call is
// valid per instance; the engine must not assume any particular buffer
// cadence, since capture may be sub-real-time or bursty.
//
// Implementations must be safe for concurrent use between the goroutine that
// reads Buffers and the goroutine that calls Stop.
type Source interface {
	// Start begins capture and returns a channel of PCM buffers plus the
	// format they are encoded in. The channel is closed when the source
	// reaches end-of-stream or [Source.Stop] is called. A second call to
	// Start on the same instance is undefined behavior.
	Start(ctx context.Context) (<-chan Buffer, Format, error)

	// Stop releases all resources held by the source. It is idempotent:
	// calling it more than once, or calling it before Start, is safe and
	// returns nil on every call after the first successful stop.
	Stop() error
}

// Factory opens a fresh [Source] for a given source tag and, for
// [domain.SourceMicrophone], an optional device name. Concrete device
// enumeration and PCM capture are out of scope for this daemon; a Factory
// implementation supplies both.
type Factory interface {
	// Open constructs a new, not-yet-started [Source] for tag. device is
	// only meaningful for [domain.SourceMicrophone]; implementations should
	// ignore it (or reject a non-empty value) for other tags.
	Open(ctx context.Context, tag domain.Source, device string) (Source, error)

	// ListDevices returns the names of capture devices currently available
	// for [domain.SourceMicrophone], for the "devices" command response.
	ListDevices(ctx context.Context) ([]string, error)
}
