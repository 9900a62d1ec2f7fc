// Package dispatch decides who is told about a detection and makes sure each
// (source, address) pair is announced once within the dedup window.
//
// The owner receives the full detection; the target user receives only the
// bare address. Either recipient may be absent. A pair is recorded as soon as
// it is routed, so a recipient that keeps failing does not cause resends.
package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
)

// Recipients holds the chat IDs notifications are routed to. Zero means unset.
type Recipients struct {
	Owner  int64
	Target int64
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithEviction sets the dedup eviction policy (default Lifetime)
func WithEviction(p EvictionPolicy) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.policy = p
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

type seenEntry struct {
	key models.DedupKey
	at  time.Time
}

// Dispatcher builds notifications for detections and owns the dedup map.
// It is safe for concurrent use.
type Dispatcher struct {
	recipients Recipients
	policy     EvictionPolicy
	now        func() time.Time

	mu    sync.Mutex
	seen  map[models.DedupKey]time.Time
	queue []seenEntry // insertion order, oldest first
}

// New creates a Dispatcher. It fails with *models.ConfigurationError when
// neither recipient is configured.
func New(recipients Recipients, opts ...Option) (*Dispatcher, error) {
	if recipients.Owner == 0 && recipients.Target == 0 {
		return nil, &models.ConfigurationError{Field: "telegram.owner_id/telegram.target_id", Reason: "at least one recipient is required"}
	}

	d := &Dispatcher{
		recipients: recipients,
		policy:     Lifetime(),
		now:        time.Now,
		seen:       make(map[models.DedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Route returns the notifications for a detection: none if the pair was already
// routed inside the dedup window, otherwise one per configured recipient.
func (d *Dispatcher) Route(det models.Detection) []models.Notification {
	key := det.Key()
	if !d.claim(key) {
		logger.Debug("Suppressed duplicate %s from %s", det.Address, det.SourceID)
		return nil
	}

	var notifications []models.Notification
	if d.recipients.Owner != 0 {
		notifications = append(notifications, models.Notification{
			ID:        uuid.New().String(),
			Recipient: models.RecipientOwner,
			ChatID:    d.recipients.Owner,
			Detection: det,
			Address:   det.Address,
		})
	}
	// The owner already has the address in the detailed message.
	if d.recipients.Target != 0 && d.recipients.Target != d.recipients.Owner {
		notifications = append(notifications, models.Notification{
			ID:        uuid.New().String(),
			Recipient: models.RecipientTarget,
			ChatID:    d.recipients.Target,
			Address:   det.Address,
		})
	}
	return notifications
}

// claim atomically checks the dedup map for key and records it if absent.
func (d *Dispatcher) claim(key models.DedupKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evictExpired(now)

	if at, ok := d.seen[key]; ok && !d.policy.Expired(at, now) {
		return false
	}

	d.seen[key] = now
	d.queue = append(d.queue, seenEntry{key: key, at: now})

	if limit := d.policy.Limit(); limit > 0 {
		for len(d.seen) > limit && len(d.queue) > 0 {
			d.pop()
		}
	}
	return true
}

// evictExpired drops entries from the front of the queue while they are stale
// or expired. Entries are queued in time order, so the scan stops at the first
// live one.
func (d *Dispatcher) evictExpired(now time.Time) {
	for len(d.queue) > 0 {
		front := d.queue[0]
		if at, ok := d.seen[front.key]; ok && at.Equal(front.at) && !d.policy.Expired(at, now) {
			return
		}
		d.pop()
	}
}

// pop removes the oldest queued entry, deleting it from the map unless the
// key was re-recorded later.
func (d *Dispatcher) pop() {
	front := d.queue[0]
	d.queue = d.queue[1:]
	if at, ok := d.seen[front.key]; ok && at.Equal(front.at) {
		delete(d.seen, front.key)
	}
}

// Seen reports whether the pair is currently suppressed
func (d *Dispatcher) Seen(key models.DedupKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[key]
	return ok && !d.policy.Expired(at, d.now())
}

// Len returns the number of remembered pairs
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Reset forgets every remembered pair
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[models.DedupKey]time.Time)
	d.queue = nil
}

// Recipients returns the configured recipients
func (d *Dispatcher) Recipients() Recipients {
	return d.recipients
}
