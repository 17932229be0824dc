// Package consensus merges two independent classification opinions into a
// single decision with an explicit confidence algebra. Pure: no I/O, no
// clock, fully determined by its inputs.
package consensus

import (
	"fmt"
	"math"

	"mesadesk.app/triage/internal/model"
)

const (
	agreementBonus      = 1.1  // both providers agree it is an incident
	disagreementPenalty = 0.85 // providers disagree, higher confidence wins
	partialErrorPenalty = 0.75 // only one provider produced an opinion
)

// Resolve combines two opinions. Rules are evaluated in order:
//
//  1. both true  → averaged confidence with agreement bonus, capped at 1.0
//  2. both false → max confidence, category and priority cleared
//  3. disagree   → higher confidence wins, penalized, flagged for review
//  4. one error  → surviving opinion, penalized, flagged for review
//  5. both error → undecided, zero confidence, flagged for review
//
// Every branch tags the consensus kind and carries both raw opinions in the
// comparison report for auditability.
func Resolve(a, b model.ClassificationOpinion) model.ConsensusResult {
	switch {
	case !a.Errored() && !b.Errored() && *a.IsIncident && *b.IsIncident:
		return bothYes(a, b)
	case !a.Errored() && !b.Errored() && !*a.IsIncident && !*b.IsIncident:
		return bothNo(a, b)
	case !a.Errored() && !b.Errored():
		return disagreement(a, b)
	case a.Errored() && b.Errored():
		return errorBoth(a, b)
	default:
		return errorPartial(a, b)
	}
}

func bothYes(a, b model.ClassificationOpinion) model.ConsensusResult {
	yes := true
	confidence := math.Min((a.Confidence+b.Confidence)/2*agreementBonus, 1.0)

	// Category, priority and metadata come from the more confident
	// opinion; ties favor a.
	primary := a
	if b.Confidence > a.Confidence {
		primary = b
	}

	return model.ConsensusResult{
		IsIncident:      &yes,
		Confidence:      round3(confidence),
		Category:        primary.Category,
		Priority:        primary.Priority,
		Metadata:        primary.Metadata,
		Kind:            model.ConsensusBothYes,
		RequiresReview:  false,
		PrimaryProvider: primary.Provider,
		Comparison:      compare(a, b),
	}
}

func bothNo(a, b model.ClassificationOpinion) model.ConsensusResult {
	no := false
	return model.ConsensusResult{
		IsIncident:      &no,
		Confidence:      round3(math.Max(a.Confidence, b.Confidence)),
		Kind:            model.ConsensusBothNo,
		RequiresReview:  false,
		PrimaryProvider: "consensus",
		Comparison:      compare(a, b),
	}
}

func disagreement(a, b model.ClassificationOpinion) model.ConsensusResult {
	primary, other := a, b
	if b.Confidence > a.Confidence {
		primary, other = b, a
	}

	incident := *primary.IsIncident
	return model.ConsensusResult{
		IsIncident:      &incident,
		Confidence:      round3(primary.Confidence * disagreementPenalty),
		Category:        primary.Category,
		Priority:        primary.Priority,
		Metadata:        primary.Metadata,
		Kind:            model.ConsensusDisagreement,
		RequiresReview:  true,
		PrimaryProvider: primary.Provider,
		DisagreementReason: fmt.Sprintf("%s says %t, %s says %t",
			primary.Provider, *primary.IsIncident, other.Provider, *other.IsIncident),
		Comparison: compare(a, b),
	}
}

func errorPartial(a, b model.ClassificationOpinion) model.ConsensusResult {
	valid := a
	if a.Errored() {
		valid = b
	}

	incident := *valid.IsIncident
	return model.ConsensusResult{
		IsIncident:      &incident,
		Confidence:      round3(valid.Confidence * partialErrorPenalty),
		Category:        valid.Category,
		Priority:        valid.Priority,
		Metadata:        valid.Metadata,
		Kind:            model.ConsensusErrorPartial,
		RequiresReview:  true,
		PrimaryProvider: valid.Provider,
		Comparison:      compare(a, b),
	}
}

func errorBoth(a, b model.ClassificationOpinion) model.ConsensusResult {
	return model.ConsensusResult{
		IsIncident:     nil,
		Confidence:     0,
		Kind:           model.ConsensusErrorBoth,
		RequiresReview: true,
		Comparison:     compare(a, b),
	}
}

// compare builds the audit report: which fields matched, which differed.
func compare(a, b model.ClassificationOpinion) model.Comparison {
	c := model.Comparison{A: a, B: b}

	if boolPtrEqual(a.IsIncident, b.IsIncident) {
		c.Matched = append(c.Matched, "is_incident")
	} else {
		c.Differ = append(c.Differ, fmt.Sprintf("is_incident: %s=%s, %s=%s",
			a.Provider, formatBoolPtr(a.IsIncident), b.Provider, formatBoolPtr(b.IsIncident)))
	}

	switch {
	case a.Category == nil && b.Category == nil:
		// nothing to compare
	case a.Category != nil && b.Category != nil && *a.Category == *b.Category:
		c.Matched = append(c.Matched, "category")
	case a.Category != nil && b.Category != nil:
		c.Differ = append(c.Differ, fmt.Sprintf("category: %s=%s, %s=%s",
			a.Provider, *a.Category, b.Provider, *b.Category))
	}

	switch {
	case a.Priority == nil && b.Priority == nil:
	case a.Priority != nil && b.Priority != nil && *a.Priority == *b.Priority:
		c.Matched = append(c.Matched, "priority")
	case a.Priority != nil && b.Priority != nil:
		c.Differ = append(c.Differ, fmt.Sprintf("priority: %s=%s, %s=%s",
			a.Provider, *a.Priority, b.Provider, *b.Priority))
	}

	return c
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatBoolPtr(p *bool) string {
	if p == nil {
		return "error"
	}
	return fmt.Sprintf("%t", *p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
