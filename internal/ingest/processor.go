package ingest

import (
	"log"

	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/obs"
)

// EventRecorder is the narrow engine contract the processor needs.
type EventRecorder interface {
	ProcessEmailEvent(event model.EmailEvent, intel *model.Intelligence)
}

// Processor parses source-tagged event lines and feeds them to the engine.
// Malformed lines are counted and logged, never fatal.
type Processor struct {
	recorder EventRecorder

	parsed  int64
	dropped int64
}

// NewProcessor creates a processor routing events to recorder.
func NewProcessor(recorder EventRecorder) *Processor {
	return &Processor{recorder: recorder}
}

// ProcessEnvelope handles one raw line. Returns the parsed event, or nil
// when the line was dropped. Events whose payload carries no timestamp
// inherit the envelope's receipt time stamped at the transport edge, so
// they land in the windows of the moment they arrived.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *model.EmailEvent {
	event, intel, err := ParseEventLine(env.Line)
	if err != nil {
		p.dropped++
		obs.ParseFailures.Inc()
		log.Printf("ingest: dropped malformed line from %s: %v", env.Source, err)
		return nil
	}
	event.Source = env.Source
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = env.ReceivedAt
	}

	p.parsed++
	if p.recorder != nil {
		p.recorder.ProcessEmailEvent(event, intel)
	}
	return &event
}

// Counts reports how many lines were parsed and dropped.
func (p *Processor) Counts() (parsed, dropped int64) {
	return p.parsed, p.dropped
}
