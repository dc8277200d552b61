package main

import (
	"context"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the merged event
// stream. It only needs to ride out scheduling gaps between the sources and
// the processor; the per-source buffers absorb ingest bursts.
const DefaultMuxBuffer = 10_000

// SourceMultiplexer merges multiple event sources into a single stream and
// keeps per-origin forwarding counts for the runtime log. Envelopes missing
// a receipt stamp get one here, so downstream code can rely on every
// envelope carrying a transport-edge timestamp.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sources []NamedEventSource
	events  chan model.IngestEnvelope

	mu        sync.Mutex
	forwarded map[string]int64

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSourceMultiplexer(parent context.Context, sources []NamedEventSource, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:       ctx,
		cancel:    cancel,
		sources:   sources,
		events:    make(chan model.IngestEnvelope, buffer),
		forwarded: make(map[string]int64, len(sources)),
	}
}

func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for _, src := range m.sources {
			src := src
			m.wg.Add(1)
			go m.forward(src)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

func (m *SourceMultiplexer) Lines() <-chan model.IngestEnvelope {
	return m.events
}

// SourceCounts reports how many envelopes each origin has forwarded so far.
func (m *SourceMultiplexer) SourceCounts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.forwarded))
	for origin, n := range m.forwarded {
		out[origin] = n
	}
	return out
}

func (m *SourceMultiplexer) forward(src NamedEventSource) {
	defer m.wg.Done()

	origin := src.Name()
	incoming := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case env, ok := <-incoming:
			if !ok {
				return
			}
			if env.Line == "" {
				continue
			}
			if env.ReceivedAt.IsZero() {
				env.ReceivedAt = time.Now()
			}
			select {
			case m.events <- env:
				m.mu.Lock()
				m.forwarded[origin]++
				m.mu.Unlock()
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.events)
	})
}
