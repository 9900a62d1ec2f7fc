package dispatch

import "time"

// EvictionPolicy decides how long a (source, address) pair suppresses repeats
// and how many pairs are remembered.
type EvictionPolicy interface {
	// Expired reports whether an entry recorded at seenAt no longer
	// suppresses a repeat detection at now.
	Expired(seenAt, now time.Time) bool
	// Limit is the maximum number of remembered pairs; 0 means unbounded.
	Limit() int
}

// Lifetime remembers every pair for the life of the process: each
// (source, address) is notified at most once per run.
func Lifetime() EvictionPolicy { return lifetime{} }

// TTL forgets a pair once window has passed since it was notified.
func TTL(window time.Duration) EvictionPolicy { return ttl{window: window} }

// MaxEntries remembers at most n pairs, dropping the oldest first.
func MaxEntries(n int) EvictionPolicy { return maxEntries{n: n} }

// Combine merges policies: an entry expires when any policy says so, and the
// smallest non-zero limit applies.
func Combine(policies ...EvictionPolicy) EvictionPolicy { return combined(policies) }

type lifetime struct{}

func (lifetime) Expired(time.Time, time.Time) bool { return false }
func (lifetime) Limit() int                        { return 0 }

type ttl struct{ window time.Duration }

func (p ttl) Expired(seenAt, now time.Time) bool {
	return p.window > 0 && now.Sub(seenAt) >= p.window
}
func (ttl) Limit() int { return 0 }

type maxEntries struct{ n int }

func (maxEntries) Expired(time.Time, time.Time) bool { return false }
func (p maxEntries) Limit() int {
	if p.n < 0 {
		return 0
	}
	return p.n
}

type combined []EvictionPolicy

func (c combined) Expired(seenAt, now time.Time) bool {
	for _, p := range c {
		if p.Expired(seenAt, now) {
			return true
		}
	}
	return false
}

func (c combined) Limit() int {
	limit := 0
	for _, p := range c {
		if l := p.Limit(); l > 0 && (limit == 0 || l < limit) {
			limit = l
		}
	}
	return limit
}
