// Package permission defines the capability probe the recording engine
// consults before opening a source: whether this process is currently
// authorized to capture it.
//
// This has no direct donor analog — the donor always owns its Discord voice
// connection once joined — but follows spec.md §9's note that the engine
// depends on injected capability-set interfaces for every platform concern
// it cannot itself verify.
package permission

import (
	"context"

	"github.com/jwulff/stenod/pkg/domain"
)

// Prober checks whether a source may be captured right now.
type Prober interface {
	// Check returns nil if source is authorized, or a non-nil error
	// (typically wrapping [domain.ErrPermissionDenied]) if it is not.
	Check(ctx context.Context, source domain.Source) error
}
