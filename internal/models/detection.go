package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Base58Alphabet is the Bitcoin/Solana Base58 alphabet (no 0, O, I, l).
const Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Address length bounds for a Solana CA, inclusive.
const (
	MinAddressLen = 32
	MaxAddressLen = 44
)

// IsBase58 reports whether s is non-empty and made only of Base58 characters.
func IsBase58(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Base58Alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// Origin records where in a message a candidate address was found
type Origin string

const (
	OriginBodyText    Origin = "body_text"
	OriginButtonURL   Origin = "button_url"
	OriginButtonLabel Origin = "button_label"
)

// CandidateAddress is a Base58 run of valid CA length found in a message.
type CandidateAddress struct {
	Value  string `json:"value"`
	Origin Origin `json:"origin"`
}

// Validate checks the alphabet and length invariants
func (c *CandidateAddress) Validate() error {
	if len(c.Value) < MinAddressLen || len(c.Value) > MaxAddressLen {
		return errors.New("candidate length must be between 32 and 44")
	}
	if !IsBase58(c.Value) {
		return errors.New("candidate must only contain base58 characters")
	}
	switch c.Origin {
	case OriginBodyText, OriginButtonURL, OriginButtonLabel:
	default:
		return errors.New("candidate origin must be body_text, button_url or button_label")
	}
	return nil
}

// Hint is a platform tag recognized in message content. The set of hints is closed;
// declaration order is classification precedence.
type Hint uint8

const (
	HintPumpFun Hint = iota
	HintMoonshot
	HintRaydium
	HintBirdeye

	hintCount
)

var hintNames = [hintCount]string{"pumpfun", "moonshot", "raydium", "birdeye"}

// AllHints lists every hint in precedence order
var AllHints = []Hint{HintPumpFun, HintMoonshot, HintRaydium, HintBirdeye}

func (h Hint) String() string {
	if h < hintCount {
		return hintNames[h]
	}
	return "invalid"
}

// HintSet is a set of hints. The zero value is the empty set.
type HintSet uint8

// Add returns the set with h included
func (s HintSet) Add(h Hint) HintSet {
	if h >= hintCount {
		return s
	}
	return s | 1<<h
}

// Has reports whether h is in the set
func (s HintSet) Has(h Hint) bool {
	return h < hintCount && s&(1<<h) != 0
}

// Empty reports whether the set has no hints
func (s HintSet) Empty() bool {
	return s == 0
}

// Tokens returns the hints in the set in precedence order
func (s HintSet) Tokens() []Hint {
	tokens := make([]Hint, 0, hintCount)
	for _, h := range AllHints {
		if s.Has(h) {
			tokens = append(tokens, h)
		}
	}
	return tokens
}

func (s HintSet) String() string {
	names := make([]string, 0, hintCount)
	for _, h := range s.Tokens() {
		names = append(names, h.String())
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the set as a list of hint names
func (s HintSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, hintCount)
	for _, h := range s.Tokens() {
		names = append(names, h.String())
	}
	return json.Marshal(names)
}

// Platform is the classification label assigned to a detected CA
type Platform string

const (
	PlatformPumpFun  Platform = "PumpFun"
	PlatformMoonshot Platform = "Moonshot"
	PlatformRaydium  Platform = "Raydium"
	PlatformNative   Platform = "Native"
	PlatformUnknown  Platform = "Unknown"
)

// AllPlatforms lists every platform label
var AllPlatforms = []Platform{PlatformPumpFun, PlatformMoonshot, PlatformRaydium, PlatformNative, PlatformUnknown}

// Valid reports whether p is a known platform label
func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// Detection is a classified CA found in one message. Immutable after creation.
type Detection struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Origin      Origin     `json:"origin"`
	Platform    Platform   `json:"platform"`
	Hints       HintSet    `json:"hints"`
	PublicKey   bool       `json:"public_key"` // decodes to a 32-byte ed25519 key
	SourceID    string     `json:"source_id"`
	SourceKind  SourceKind `json:"source_kind"`
	SourceTitle string     `json:"source_title,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}

// Validate checks that all detection fields are valid
func (d *Detection) Validate() error {
	if d.ID == "" {
		return errors.New("detection ID must not be empty")
	}
	candidate := CandidateAddress{Value: d.Address, Origin: d.Origin}
	if err := candidate.Validate(); err != nil {
		return err
	}
	if !d.Platform.Valid() {
		return errors.New("platform must be one of PumpFun, Moonshot, Raydium, Native, Unknown")
	}
	if d.SourceID == "" {
		return errors.New("source ID must not be empty")
	}
	if !d.SourceKind.Valid() {
		return errors.New("source kind must be channel, group or user")
	}
	if d.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}

// Key returns the deduplication key for the detection
func (d *Detection) Key() DedupKey {
	return DedupKey{SourceID: d.SourceID, Address: d.Address}
}

// SourceLabel returns a human-readable description of the detection source
func (d *Detection) SourceLabel() string {
	return sourceLabel(d.SourceTitle, d.SourceID, d.SourceKind)
}

// DedupKey identifies a (source, address) pair for notification deduplication
type DedupKey struct {
	SourceID string
	Address  string
}
