package engine

import (
	"fmt"
	"strings"
)

// Decision is the final publication verdict for one evaluation.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionHeld     Decision = "HELD"
	// DecisionRejected is reserved for future policy rules. No current rule
	// emits it, but every caller must treat it as blocking.
	DecisionRejected Decision = "REJECTED"
)

// RiskLevel is the classifier's verdict for a piece of content.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "Safe"
	RiskHigh      RiskLevel = "High_Risk"
	RiskUncertain RiskLevel = "Uncertain"
)

// DefaultConfidenceThreshold is used when the settings snapshot carries no
// explicit threshold.
const DefaultConfidenceThreshold = 0.7

// BlocklistResult is the outcome of the layer-1 scan.
type BlocklistResult struct {
	Hit     bool
	Matched string
}

// ClassifierResult is the parsed classifier output. A nil *ClassifierResult
// is the fail-closed sentinel: timeout, network error, or unparsable JSON.
type ClassifierResult struct {
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
}

// Outcome is the engine's combined result for one evaluation.
type Outcome struct {
	Decision        Decision
	Reason          string
	Layer1Hit       *string
	BlockedByLayer1 bool
}

// CheckBlocklist runs the layer-1 scan: case-insensitive substring match,
// first matching pattern wins. Empty patterns and an empty blocklist never
// hit.
func CheckBlocklist(content string, blocklist []string) BlocklistResult {
	if content == "" || len(blocklist) == 0 {
		return BlocklistResult{}
	}

	lowered := strings.ToLower(content)
	for _, pattern := range blocklist {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(trimmed)) {
			return BlocklistResult{Hit: true, Matched: pattern}
		}
	}
	return BlocklistResult{}
}

// MakeSafetyDecision turns the classifier result into a layer-3 verdict.
// Fail-closed: a nil result always holds, a non-Safe risk level always holds,
// and "Safe" below the confidence threshold still holds.
func MakeSafetyDecision(res *ClassifierResult, threshold float64) Outcome {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	if res == nil {
		return Outcome{
			Decision: DecisionHeld,
			Reason:   "classifier unavailable: timeout, network error, or unusable response",
		}
	}

	if res.RiskLevel != RiskSafe {
		return Outcome{
			Decision: DecisionHeld,
			Reason:   fmt.Sprintf("classifier flagged content as %s (confidence %.2f)", res.RiskLevel, res.Confidence),
		}
	}

	if res.Confidence < threshold {
		return Outcome{
			Decision: DecisionHeld,
			Reason:   fmt.Sprintf("classifier marked content Safe with low confidence %.2f (threshold %.2f)", res.Confidence, threshold),
		}
	}

	return Outcome{
		Decision: DecisionApproved,
		Reason:   fmt.Sprintf("classifier marked content Safe with confidence %.2f", res.Confidence),
	}
}

// Run combines layer 1 and layer 3 into the final verdict. If precomputed is
// non-nil it is trusted as the layer-1 result; otherwise the blocklist is
// scanned here. The outcome is identical either way. The whole function is
// deterministic and does no I/O.
func Run(content string, blocklist []string, res *ClassifierResult, threshold float64, precomputed *BlocklistResult) Outcome {
	var l1 BlocklistResult
	if precomputed != nil {
		l1 = *precomputed
	} else {
		l1 = CheckBlocklist(content, blocklist)
	}

	if l1.Hit {
		matched := l1.Matched
		return Outcome{
			Decision:        DecisionHeld,
			Reason:          "Blocklist pattern matched: " + matched,
			Layer1Hit:       &matched,
			BlockedByLayer1: true,
		}
	}

	return MakeSafetyDecision(res, threshold)
}

// ShouldBlockPublication reports whether a decision keeps the comment from
// being published. The only place this rule lives.
func ShouldBlockPublication(d Decision) bool {
	return d == DecisionHeld || d == DecisionRejected
}

// RequiresHumanReview reports whether a decision puts the comment on the
// moderation queue. The only place this rule lives.
func RequiresHumanReview(d Decision) bool {
	return d == DecisionHeld
}
