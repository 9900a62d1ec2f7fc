// Package detector finds Solana contract addresses in chat messages and
// classifies them by the platform that likely minted or listed them.
//
// Detection runs in three steps per message:
//
//	candidates = Extract(text) ++ button candidates
//	hints      = CollectHints(buttons, text)
//	platform   = Classify(candidate, hints, toggles)
//
// Hints are message-scoped: a pump.fun link anywhere in a message hints every
// CA found in that message. Engine ties the steps together and keeps counters.
package detector

import (
	"regexp"

	"github.com/rewired-gh/ca-monitor/internal/models"
)

// base58Run matches maximal runs of Base58 characters. The quantifier is greedy,
// so each match is the longest run at its position.
var base58Run = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]+`)

// Extract returns every Base58 run in text whose length is within the CA bounds,
// in order of appearance, tagged as body text. Runs outside the bounds are dropped
// whole: a 45-character run is not truncated to 44.
func Extract(text string) []models.CandidateAddress {
	return ExtractFrom(text, models.OriginBodyText)
}

// ExtractFrom is Extract with an explicit origin tag.
func ExtractFrom(text string, origin models.Origin) []models.CandidateAddress {
	if len(text) < models.MinAddressLen {
		return nil
	}

	var candidates []models.CandidateAddress
	for _, run := range base58Run.FindAllString(text, -1) {
		if len(run) < models.MinAddressLen || len(run) > models.MaxAddressLen {
			continue
		}
		candidates = append(candidates, models.CandidateAddress{Value: run, Origin: origin})
	}
	return candidates
}
