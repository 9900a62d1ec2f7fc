// Package monitor runs the message pipeline: it gates incoming messages by the
// allow-list, hands them to the detection engine, routes every detection
// through the dispatcher and delivers the resulting notifications.
//
// Settings (toggles and allow-list) are swapped atomically, so a config reload
// takes effect on the next message without locking the hot path.
package monitor

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rewired-gh/ca-monitor/internal/detector"
	"github.com/rewired-gh/ca-monitor/internal/dispatch"
	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
)

// Sender delivers notifications
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// Directory remembers the sources messages arrive from
type Directory interface {
	Observe(msg *models.IncomingMessage) error
	Title(id string) string
	RecordDetections(id string, n int) error
	RotateSources() error
	Save() error
}

// Settings is the hot-reloadable part of the configuration
type Settings struct {
	Toggles   models.Toggles
	allowList map[models.SourceKind]map[string]struct{}
}

// NewSettings builds settings from toggles and per-kind numeric chat IDs
func NewSettings(toggles models.Toggles, allow map[models.SourceKind][]int64) *Settings {
	s := &Settings{
		Toggles:   toggles,
		allowList: make(map[models.SourceKind]map[string]struct{}, len(allow)),
	}
	for kind, ids := range allow {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[strconv.FormatInt(id, 10)] = struct{}{}
		}
		s.allowList[kind] = set
	}
	return s
}

// Allowed reports whether the source is listed for its kind
func (s *Settings) Allowed(kind models.SourceKind, sourceID string) bool {
	_, ok := s.allowList[kind][sourceID]
	return ok
}

// Monitored returns the number of allow-listed sources for a kind
func (s *Settings) Monitored(kind models.SourceKind) int {
	return len(s.allowList[kind])
}

// Stats is a snapshot of pipeline counters
type Stats struct {
	Engine        detector.Stats `json:"engine"`
	Skipped       uint64         `json:"skipped"`
	Invalid       uint64         `json:"invalid"`
	Notifications uint64         `json:"notifications"`
	SendFailures  uint64         `json:"send_failures"`
	DedupEntries  int            `json:"dedup_entries"`
	StartedAt     time.Time      `json:"started_at"`
	Uptime        time.Duration  `json:"uptime"`
}

// Service handles message processing end to end. It is safe for concurrent use.
type Service struct {
	engine     *detector.Engine
	dispatcher *dispatch.Dispatcher
	sender     Sender
	directory  Directory
	settings   atomic.Pointer[Settings]
	startedAt  time.Time

	skipped       atomic.Uint64
	invalid       atomic.Uint64
	notifications atomic.Uint64
	sendFailures  atomic.Uint64
}

// New creates a new Service. directory may be nil.
func New(engine *detector.Engine, dispatcher *dispatch.Dispatcher, sender Sender, directory Directory, settings *Settings) *Service {
	s := &Service{
		engine:     engine,
		dispatcher: dispatcher,
		sender:     sender,
		directory:  directory,
		startedAt:  time.Now(),
	}
	if settings == nil {
		settings = NewSettings(models.DefaultToggles(), nil)
	}
	s.settings.Store(settings)
	return s
}

// UpdateSettings swaps in new toggles and allow-list
func (s *Service) UpdateSettings(settings *Settings) {
	if settings == nil {
		return
	}
	s.settings.Store(settings)
	logger.Info("Settings updated: bot_enabled=%v channels=%d groups=%d users=%d",
		settings.Toggles.BotEnabled,
		settings.Monitored(models.SourceChannel),
		settings.Monitored(models.SourceGroup),
		settings.Monitored(models.SourceUser),
	)
}

// Settings returns the active settings
func (s *Service) Settings() *Settings {
	return s.settings.Load()
}

// HandleMessage runs one message through the pipeline and returns the
// detections it produced. Invalid messages yield a *models.InputError;
// delivery failures are logged and counted, never returned.
func (s *Service) HandleMessage(ctx context.Context, msg models.IncomingMessage) ([]models.Detection, error) {
	if err := msg.Validate(); err != nil {
		s.invalid.Add(1)
		return nil, err
	}

	settings := s.settings.Load()
	if !settings.Allowed(msg.SourceKind, msg.SourceID) {
		s.skipped.Add(1)
		logger.Debug("Skipping message from unlisted %s %s", msg.SourceKind, msg.SourceID)
		return nil, nil
	}

	if s.directory != nil {
		if err := s.directory.Observe(&msg); err != nil {
			logger.Warn("Failed to record source %s: %v", msg.SourceID, err)
		}
		if msg.SourceTitle == "" {
			msg.SourceTitle = s.directory.Title(msg.SourceID)
		}
	}

	detections, err := s.engine.Process(&msg, settings.Toggles)
	if err != nil {
		s.invalid.Add(1)
		return nil, err
	}
	if len(detections) == 0 {
		return nil, nil
	}

	for _, det := range detections {
		for _, n := range s.dispatcher.Route(det) {
			if err := s.sender.Send(ctx, n); err != nil {
				s.sendFailures.Add(1)
				logger.Error("Failed to deliver %s notification for %s: %v", n.Recipient, n.Address, err)
				continue
			}
			s.notifications.Add(1)
		}
	}

	if s.directory != nil {
		if err := s.directory.RecordDetections(msg.SourceID, len(detections)); err != nil {
			logger.Warn("Failed to record detections for %s: %v", msg.SourceID, err)
		}
	}

	return detections, nil
}

// RunOptions controls the background duties of Run
type RunOptions struct {
	HeartbeatInterval   time.Duration
	PersistenceInterval time.Duration
}

// Run consumes messages until ctx is cancelled or the channel is closed,
// logging a heartbeat and persisting the source directory periodically.
func (s *Service) Run(ctx context.Context, messages <-chan models.IncomingMessage, opts RunOptions) error {
	heartbeat := newTicker(opts.HeartbeatInterval)
	defer heartbeat.Stop()
	persist := newTicker(opts.PersistenceInterval)
	defer persist.Stop()

	defer s.persist()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Monitor stopped")
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				logger.Info("Update stream closed")
				return nil
			}
			if _, err := s.HandleMessage(ctx, msg); err != nil {
				var inputErr *models.InputError
				if errors.As(err, &inputErr) {
					logger.Warn("Skipping message: %v", err)
				} else {
					logger.Error("Failed to handle message: %v", err)
				}
			}

		case <-heartbeat.C:
			s.logHeartbeat()

		case <-persist.C:
			s.persist()
		}
	}
}

// Stats returns a snapshot of the pipeline counters
func (s *Service) Stats() Stats {
	return Stats{
		Engine:        s.engine.Stats(),
		Skipped:       s.skipped.Load(),
		Invalid:       s.invalid.Load(),
		Notifications: s.notifications.Load(),
		SendFailures:  s.sendFailures.Load(),
		DedupEntries:  s.dispatcher.Len(),
		StartedAt:     s.startedAt,
		Uptime:        time.Since(s.startedAt),
	}
}

func (s *Service) logHeartbeat() {
	stats := s.Stats()
	logger.Info("Stats: %d messages processed, %d addresses found, %d notifications sent",
		stats.Engine.MessagesProcessed,
		stats.Engine.AddressesFound,
		stats.Notifications,
	)
	logger.Debug("Detections: PumpFun=%d Moonshot=%d Raydium=%d Native=%d Unknown=%d, skipped=%d invalid=%d send_failures=%d dedup=%d",
		stats.Engine.Detections[models.PlatformPumpFun],
		stats.Engine.Detections[models.PlatformMoonshot],
		stats.Engine.Detections[models.PlatformRaydium],
		stats.Engine.Detections[models.PlatformNative],
		stats.Engine.Detections[models.PlatformUnknown],
		stats.Skipped,
		stats.Invalid,
		stats.SendFailures,
		stats.DedupEntries,
	)
}

func (s *Service) persist() {
	if s.directory == nil {
		return
	}
	if err := s.directory.RotateSources(); err != nil {
		logger.Warn("Failed to rotate sources: %v", err)
	}
	if err := s.directory.Save(); err != nil {
		logger.Warn("Failed to save sources: %v", err)
	}
}

// newTicker returns a ticker that never fires when d <= 0
func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}
