package model

import "time"

// Shared defaults used by both the engine and the CLI binary.
const (
	DefaultUpdateInterval = 2 * time.Second
	DefaultEventBuffer    = 1000

	// DefaultVolumeSpikeRate is the emails-per-minute rate over the 1-minute
	// window above which a volume_spike alert fires.
	DefaultVolumeSpikeRate = 10.0

	// DefaultUrgencyAlertLevel is the minimum urgency (1-5 scale) that fires
	// a high_urgency alert.
	DefaultUrgencyAlertLevel = 4
)
