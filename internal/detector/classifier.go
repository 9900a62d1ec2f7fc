package detector

import (
	"github.com/rewired-gh/ca-monitor/internal/models"
)

// precedenceRule maps a hint to the label it assigns.
type precedenceRule struct {
	hint     models.Hint
	platform models.Platform
}

// precedence is ordered highest first. Mint-origin platforms outrank the
// exchange, and Birdeye only ever yields Unknown: an aggregator listing says
// where a token trades, not where it came from.
var precedence = []precedenceRule{
	{models.HintPumpFun, models.PlatformPumpFun},
	{models.HintMoonshot, models.PlatformMoonshot},
	{models.HintRaydium, models.PlatformRaydium},
	{models.HintBirdeye, models.PlatformUnknown},
}

// Classify assigns exactly one platform label to a candidate. The boolean is
// false when the toggles exclude the candidate from reporting.
//
// The first hint present whose toggle is enabled wins; a disabled hint falls
// through to the next one. With no usable hint the label is Native, or the
// candidate is filtered when native reporting is off.
func Classify(candidate models.CandidateAddress, hints models.HintSet, toggles models.Toggles) (models.Platform, bool) {
	if candidate.Validate() != nil {
		return "", false
	}

	for _, rule := range precedence {
		if hints.Has(rule.hint) && toggles.HintEnabled(rule.hint) {
			return rule.platform, true
		}
	}

	if toggles.Native {
		return models.PlatformNative, true
	}
	return "", false
}
