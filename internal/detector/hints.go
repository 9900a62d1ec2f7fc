package detector

import (
	"net/url"
	"strings"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

// hintKeyword maps a lowercase substring to the hint it proves.
type hintKeyword struct {
	keyword string
	hint    models.Hint
}

// hintKeywords is matched case-insensitively against message text, button
// URLs and button labels.
var hintKeywords = []hintKeyword{
	{"pump.fun", models.HintPumpFun},
	{"pumpfun", models.HintPumpFun},
	{"moonshot", models.HintMoonshot},
	{"raydium", models.HintRaydium},
	{"birdeye", models.HintBirdeye},
}

// HintsIn returns the hints whose keywords occur in s.
func HintsIn(s string) models.HintSet {
	var hints models.HintSet
	if s == "" {
		return hints
	}
	lower := strings.ToLower(s)
	for _, kw := range hintKeywords {
		if strings.Contains(lower, kw.keyword) {
			hints = hints.Add(kw.hint)
		}
	}
	return hints
}

// CollectHints inspects the message text and buttons for platform hints and
// returns any CAs embedded in button URLs or labels, in button order.
func CollectHints(buttons []models.Button, text string) (models.HintSet, []models.CandidateAddress) {
	hints := HintsIn(text)

	var candidates []models.CandidateAddress
	for _, b := range buttons {
		hints |= HintsIn(b.URL) | HintsIn(b.Label)
		candidates = append(candidates, urlCandidates(b.URL)...)
		candidates = append(candidates, ExtractFrom(b.Label, models.OriginButtonLabel)...)
	}
	return hints, candidates
}

// urlCandidates extracts CAs from the path and query of a button URL. The host
// is skipped so domain names never become candidates.
func urlCandidates(raw string) []models.CandidateAddress {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ExtractFrom(raw, models.OriginButtonURL)
	}

	candidates := ExtractFrom(u.Path, models.OriginButtonURL)
	query := u.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	candidates = append(candidates, ExtractFrom(query, models.OriginButtonURL)...)
	candidates = append(candidates, ExtractFrom(u.Fragment, models.OriginButtonURL)...)
	return candidates
}
