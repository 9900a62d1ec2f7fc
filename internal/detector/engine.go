package detector

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
)

// maxSnippetRunes bounds the message excerpt carried on a detection.
const maxSnippetRunes = 300

// publicKeyLen is the decoded size of an ed25519 public key / Solana account.
const publicKeyLen = 32

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	MessagesProcessed uint64                     `json:"messages_processed"`
	MessagesIgnored   uint64                     `json:"messages_ignored"`
	AddressesFound    uint64                     `json:"addresses_found"`
	Detections        map[models.Platform]uint64 `json:"detections"`
}

// Engine runs extraction, hinting and classification for one message at a time.
// It holds no per-message state and is safe for concurrent use.
type Engine struct {
	now func() time.Time

	processed  atomic.Uint64
	ignored    atomic.Uint64
	found      atomic.Uint64
	byPlatform [5]atomic.Uint64 // indexed like models.AllPlatforms
}

// NewEngine creates a new detection engine
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Process returns the detections for msg in discovery order. Content shape never
// causes an error: empty or CA-free messages yield nil. Only a structurally
// unreadable message returns an *models.InputError.
func (e *Engine) Process(msg *models.IncomingMessage, toggles models.Toggles) ([]models.Detection, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if !toggles.BotEnabled || !toggles.MonitorsKind(msg.SourceKind) {
		e.ignored.Add(1)
		return nil, nil
	}
	e.processed.Add(1)

	if msg.IsEmpty() {
		return nil, nil
	}

	candidates := Extract(msg.Text)
	hints, buttonCandidates := CollectHints(msg.Buttons, msg.Text)
	candidates = mergeCandidates(candidates, buttonCandidates)
	if len(candidates) == 0 {
		return nil, nil
	}
	e.found.Add(uint64(len(candidates)))

	now := e.now()
	snippet := truncate(strings.TrimSpace(msg.Text), maxSnippetRunes)

	var detections []models.Detection
	for _, c := range candidates {
		platform, ok := Classify(c, hints, toggles)
		if !ok {
			logger.Debug("Filtered candidate %s from %s (hints: [%s])", c.Value, msg.SourceID, hints)
			continue
		}
		e.count(platform)

		detections = append(detections, models.Detection{
			ID:          uuid.New().String(),
			Address:     c.Value,
			Origin:      c.Origin,
			Platform:    platform,
			Hints:       hints,
			PublicKey:   IsPublicKey(c.Value),
			SourceID:    msg.SourceID,
			SourceKind:  msg.SourceKind,
			SourceTitle: msg.SourceTitle,
			Snippet:     snippet,
			DetectedAt:  now,
		})
	}

	if len(detections) > 0 {
		logger.Info("Found %d Solana addresses from %s", len(detections), msg.SourceLabel())
		for _, d := range detections {
			logger.Debug("%s CA: %s (origin: %s)", d.Platform, d.Address, d.Origin)
		}
	}
	return detections, nil
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	s := Stats{
		MessagesProcessed: e.processed.Load(),
		MessagesIgnored:   e.ignored.Load(),
		AddressesFound:    e.found.Load(),
		Detections:        make(map[models.Platform]uint64, len(models.AllPlatforms)),
	}
	for i, p := range models.AllPlatforms {
		s.Detections[p] = e.byPlatform[i].Load()
	}
	return s
}

func (e *Engine) count(p models.Platform) {
	for i, known := range models.AllPlatforms {
		if p == known {
			e.byPlatform[i].Add(1)
			return
		}
	}
}

// IsPublicKey reports whether addr decodes to exactly 32 bytes, the size of a
// Solana account key. Shorter in-range strings are still reported, but flagged.
func IsPublicKey(addr string) bool {
	decoded, err := base58.Decode(addr)
	return err == nil && len(decoded) == publicKeyLen
}

// mergeCandidates concatenates body and button candidates, keeping only the
// first occurrence of each address.
func mergeCandidates(body, buttons []models.CandidateAddress) []models.CandidateAddress {
	if len(body)+len(buttons) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(body)+len(buttons))
	merged := make([]models.CandidateAddress, 0, len(body)+len(buttons))
	for _, list := range [][]models.CandidateAddress{body, buttons} {
		for _, c := range list {
			if _, dup := seen[c.Value]; dup {
				continue
			}
			seen[c.Value] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
