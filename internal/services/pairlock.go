package services

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// pairLocks serializes transitions on the same unordered user pair within
// this process. Unrelated pairs may share a stripe.
type pairLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (p *pairLocks) lock(a, b uuid.UUID) (unlock func()) {
	// XOR is symmetric, so {a, b} and {b, a} pick the same stripe.
	idx := (uint(a[14]^b[14])<<8 | uint(a[15]^b[15])) % lockStripes
	m := &p.stripes[idx]
	m.Lock()
	return m.Unlock
}
