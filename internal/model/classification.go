package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Category string

const (
	CategoryUrgent         Category = "urgent"
	CategoryTechnical      Category = "technical"
	CategoryBilling        Category = "billing"
	CategoryOperational    Category = "operational"
	CategoryGeneralInquiry Category = "general_inquiry"
)

// ClassificationOpinion is one classifier's view of a message.
// A nil IsIncident marks a provider error, not a "no".
type ClassificationOpinion struct {
	IsIncident *bool          `json:"is_incident"`
	Confidence float64        `json:"confidence"`
	Category   *Category      `json:"category,omitempty"`
	Priority   *Priority      `json:"priority,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Provider   string         `json:"provider"`
	Latency    time.Duration  `json:"latency_ns"`
	CostUSD    float64        `json:"cost_usd"`
}

// Errored reports whether this opinion represents a provider failure.
func (o ClassificationOpinion) Errored() bool {
	return o.IsIncident == nil
}

type ConsensusKind string

const (
	ConsensusBothYes      ConsensusKind = "both_yes"
	ConsensusBothNo       ConsensusKind = "both_no"
	ConsensusDisagreement ConsensusKind = "disagreement"
	ConsensusErrorPartial ConsensusKind = "error_partial"
	ConsensusErrorBoth    ConsensusKind = "error_both"
)

// Comparison is the audit report of how two opinions relate.
type Comparison struct {
	A       ClassificationOpinion `json:"a"`
	B       ClassificationOpinion `json:"b"`
	Matched []string              `json:"matched"`
	Differ  []string              `json:"differed"`
}

// ConsensusResult is the merged decision for one message. Derived, never
// persisted directly; the audit store keeps its own serialized record.
type ConsensusResult struct {
	IsIncident         *bool          `json:"is_incident"`
	Confidence         float64        `json:"confidence"`
	Category           *Category      `json:"category,omitempty"`
	Priority           *Priority      `json:"priority,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Kind               ConsensusKind  `json:"consensus_kind"`
	RequiresReview     bool           `json:"requires_review"`
	PrimaryProvider    string         `json:"primary_provider,omitempty"`
	DisagreementReason string         `json:"disagreement_reason,omitempty"`
	Comparison         Comparison     `json:"comparison"`
}

// Incident reports whether the merged decision marks the message as an
// incident. A nil IsIncident (error_both) counts as no.
func (r ConsensusResult) Incident() bool {
	return r.IsIncident != nil && *r.IsIncident
}
