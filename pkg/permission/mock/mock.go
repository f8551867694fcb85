// Package mock provides a test double for [permission.Prober].
package mock

import (
	"context"
	"sync"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/permission"
)

// Prober is a mock [permission.Prober]. By default every source is
// authorized; set Denied to block specific sources.
type Prober struct {
	mu sync.Mutex

	// Denied lists sources Check should reject with
	// [domain.ErrPermissionDenied].
	Denied map[domain.Source]bool

	// Calls records each Check invocation's source, in order.
	Calls []domain.Source
}

// Check implements [permission.Prober].
func (p *Prober) Check(ctx context.Context, source domain.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, source)
	if p.Denied[source] {
		return domain.ErrPermissionDenied
	}
	return nil
}

var _ permission.Prober = (*Prober)(nil)
