package model

import "time"

// EmailEvent represents a single observed email as delivered by an event source.
// It is the canonical inbound type for ingestion, the engine, and analytics.
type EmailEvent struct {
	Sender      string
	SenderEmail string
	Subject     string
	ReceivedAt  time.Time // Zero value = use ingestion time
	Source      string    // "tcp", "stdin", "api"
}

// SenderKey returns the identity used for per-sender aggregation.
// The address wins over the display name when both are present.
func (e EmailEvent) SenderKey() string {
	if e.SenderEmail != "" {
		return e.SenderEmail
	}
	return e.Sender
}

// Classification labels an email with a category (for example "urgent_action").
type Classification struct {
	Category   string
	Confidence float64
}

// Urgency scores an email on a 1 (lowest) to 5 (highest) scale.
// Name carries the human label when the producer sends one ("critical", "high", ...).
type Urgency struct {
	Value int
	Name  string
}

// Key returns the label used in urgency distributions, preferring the
// human-readable name over the numeric level.
func (u Urgency) Key() string {
	if u.Name != "" {
		return u.Name
	}
	switch u.Value {
	case 1:
		return "minimal"
	case 2:
		return "low"
	case 3:
		return "medium"
	case 4:
		return "high"
	case 5:
		return "critical"
	}
	return "unknown"
}

// Intelligence carries optional enrichment attached to an email event by an
// upstream classifier. Every field is optional; readers must tolerate absence.
type Intelligence struct {
	Classification   *Classification
	Urgency          *Urgency
	ProcessingTimeMS *float64
}

// Category returns the classification category, or "" when absent.
// Safe on a nil receiver.
func (i *Intelligence) Category() string {
	if i == nil || i.Classification == nil {
		return ""
	}
	return i.Classification.Category
}

// UrgencyValue returns the numeric urgency, or 0 when absent.
// Safe on a nil receiver.
func (i *Intelligence) UrgencyValue() int {
	if i == nil || i.Urgency == nil {
		return 0
	}
	return i.Urgency.Value
}

// ProcessingTime returns the reported processing duration in milliseconds.
// Safe on a nil receiver.
func (i *Intelligence) ProcessingTime() (float64, bool) {
	if i == nil || i.ProcessingTimeMS == nil {
		return 0, false
	}
	return *i.ProcessingTimeMS, true
}
