package domain

import (
	"errors"
	"strings"
)

// Sentinel error kinds surfaced by the repository and recording engine.
// Callers compare against these with [errors.Is]; implementations should
// wrap them with %w rather than returning them bare, so call-site context
// (which session, which segment) survives in the error string.
var (
	// ErrAlreadyRecording is returned by Engine.Start when the engine is
	// not in EngineIdle or EngineError.
	ErrAlreadyRecording = errors.New("engine: already recording")

	// ErrPermissionDenied is returned by Engine.Start when the permission
	// probe rejects capture.
	ErrPermissionDenied = errors.New("engine: permission denied")

	// ErrAudioSourceFailed is returned by Engine.Start when an audio
	// source fails to start.
	ErrAudioSourceFailed = errors.New("engine: audio source failed")

	// ErrRecognizerFailed is returned by Engine.Start when a recognizer
	// factory fails to construct a handle.
	ErrRecognizerFailed = errors.New("engine: recognizer failed")

	// ErrConstraintViolation is returned by the repository when a write
	// would violate a data-model invariant (duplicate sequence number,
	// empty segment text, and so on).
	ErrConstraintViolation = errors.New("store: constraint violation")

	// ErrNotFound is returned by repository reads for an id that does not
	// exist, where the operation is not defined to be a silent no-op.
	ErrNotFound = errors.New("store: not found")
)

// IsCancellation reports whether err represents the expected
// end-of-stream signal from a recognizer whose upstream buffer feed was
// cancelled, rather than a genuine transcription error. It first checks
// for an explicit [*CancellationError] in err's chain; only when none is
// present does it fall back to the legacy substring match the original
// implementation relied on. New recognizer implementations should always
// populate a [*CancellationError] instead of depending on the fallback.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancellationError
	if errors.As(err, &ce) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "cancel")
}
