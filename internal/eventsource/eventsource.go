// Package eventsource provides the inbound event transports: TCP and stdin
// sources emitting newline-delimited JSON email events.
package eventsource

import "github.com/tinytelemetry/pulse/internal/model"

// EventSource is a unified interface for all event input sources.
type EventSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw event lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin"
}
