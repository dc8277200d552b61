package model

import "time"

// IngestEnvelope carries one raw event line with source metadata.
// It is the transport contract between event sources and processing.
// ReceivedAt is stamped at the transport edge (socket accept, stdin read)
// so events whose payload carries no timestamp still land in the windows
// of the moment they arrived, not the moment they were parsed.
type IngestEnvelope struct {
	Source     string
	Line       string
	ReceivedAt time.Time
}
