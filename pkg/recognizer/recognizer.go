// Package recognizer defines the SpeechRecognizerFactory / RecognizerHandle
// contract (C4): the external streaming speech-to-text collaborator the
// recording engine drives per source.
//
// The concrete recognizer implementation (Deepgram, Whisper, a local model
// server, …) is out of scope for this daemon (spec.md §1); only the
// interface the engine consumes lives here. It is grounded on the donor's
// stt.Provider / stt.SessionHandle shape, merging the donor's dual
// Partials()/Finals() channels into spec.md §4.2's single "lazy throwing
// sequence of RecognizerResult" by emitting one channel of [Event] values —
// partial vs. final is carried on [domain.RecognizerResult.IsFinal] instead
// of channel identity.
package recognizer

import (
	"context"

	"github.com/jwulff/stenod/pkg/audio"
	"github.com/jwulff/stenod/pkg/domain"
)

// Event is one item from a [Handle]'s result stream: either a successful
// [domain.RecognizerResult] or a terminal error. Exactly one of Result, Err
// is populated.
type Event struct {
	Result domain.RecognizerResult
	Err    error
}

// Handle is an open streaming recognition session for one audio source.
// spec.md §4.2 names this "RecognizerHandle". Implementations must be safe
// for concurrent use between the goroutine feeding buffers and the goroutine
// calling Stop.
type Handle interface {
	// Transcribe consumes buffers until the channel closes or ctx is
	// cancelled, and returns a channel of [Event] values. Each
	// Result.IsFinal == true event corresponds to a committed utterance the
	// engine treats as append-only; IsFinal == false events are
	// latest-wins partials superseded by any later partial or final. The
	// returned channel is closed when buffers ends or [Handle.Stop] is
	// called; a terminated stream must not emit an Event.Err unless a real
	// recognition error occurred.
	Transcribe(ctx context.Context, buffers <-chan audio.Buffer) (<-chan Event, error)

	// Stop cancels the in-flight transcription, if any. It is idempotent;
	// calling it more than once is safe. After Stop returns, the channel
	// returned by Transcribe will observe end-of-stream once any buffered
	// events drain.
	Stop() error
}

// Factory constructs a [Handle] configured for a given locale and audio
// format. spec.md §4.2 names this "SpeechRecognizerFactory".
type Factory interface {
	// Make opens a new recognition session for locale (BCP-47) and format.
	// Returns an error if the recognizer cannot be constructed (unsupported
	// locale/format, authentication failure, and so on) — the recording
	// engine surfaces such a failure as [domain.ErrRecognizerFailed].
	Make(ctx context.Context, locale string, format audio.Format) (Handle, error)
}

// CancellationError is an alias retained so recognizer implementations can
// report cancellation without importing pkg/domain directly for that one
// type; see [domain.CancellationError] for the authoritative definition and
// spec.md §9's open question on the cancellation marker.
type CancellationError = domain.CancellationError
