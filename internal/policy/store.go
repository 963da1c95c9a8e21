package policy

import (
	"sync/atomic"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
)

// Store holds the active policy. Readers never block; a reload replaces the
// whole policy in one atomic swap.
type Store struct {
	current atomic.Pointer[Policy]
}

// NewStore creates a store holding p. A nil p denies everything.
func NewStore(p *Policy) *Store {
	s := &Store{}
	if p == nil {
		p = &Policy{}
	}
	s.current.Store(p)
	return s
}

// Policy returns the active policy.
func (s *Store) Policy() *Policy {
	return s.current.Load()
}

// Replace swaps in p and returns the previous policy. Nil is ignored.
func (s *Store) Replace(p *Policy) *Policy {
	if p == nil {
		return s.current.Load()
	}
	return s.current.Swap(p)
}

// Authorize evaluates req against the active policy.
func (s *Store) Authorize(req Request) Decision {
	return Authorize(s.current.Load(), req)
}

// Visible reports whether the caller could ever be allowed to call the tool.
func (s *Store) Visible(claims *auth.Claims, tool, capability string) bool {
	return Visible(s.current.Load(), claims, tool, capability)
}
