package eventsource

import (
	"bufio"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/obs"
)

const stdinSourceName = "stdin"

const (
	// DefaultStdinBuffer is the default channel buffer for piped events.
	// Stdin is replay territory (piped mailbox dumps), so bursts are the
	// norm; the buffer matches the TCP listener's.
	DefaultStdinBuffer = 8192

	// DefaultStdinMaxEventBytes bounds one piped event line, same rationale
	// as the TCP limit.
	DefaultStdinMaxEventBytes = 256 * 1024
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize    int
	MaxEventBytes int
}

// StdinSource reads email event lines piped to stdin, typically a replayed
// capture or an exported mailbox dump. Each line is stamped with its read
// time so replayed events without payload timestamps stay ingestable.
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource reading in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	maxEventBytes := DefaultStdinMaxEventBytes
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxEventBytes > 0 {
			maxEventBytes = conf[0].MaxEventBytes
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.pump(ctx, maxEventBytes)
	return s
}

// pump forwards scanned lines as stamped envelopes. Scanning happens on a
// separate goroutine because bufio blocks on a quiet pipe; the pump itself
// stays responsive to cancellation.
func (s *StdinSource) pump(ctx context.Context, maxEventBytes int) {
	defer close(s.ch)

	lines := s.scanLines(ctx, maxEventBytes)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			env := model.IngestEnvelope{
				Source:     stdinSourceName,
				Line:       line,
				ReceivedAt: time.Now(),
			}
			select {
			case s.ch <- env:
				obs.SourceLines.WithLabelValues(stdinSourceName).Inc()
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) scanLines(ctx context.Context, maxEventBytes int) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), maxEventBytes)

		for scanner.Scan() {
			line := strings.TrimSuffix(scanner.Text(), "\r")
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				obs.OversizedEvents.WithLabelValues(stdinSourceName).Inc()
				log.Printf("eventsource: stdin event exceeded %d bytes, stopping stdin source", maxEventBytes)
				return
			}
			log.Printf("eventsource: stdin read error: %v", err)
		}
	}()
	return out
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.cancel() }
func (s *StdinSource) Name() string                       { return stdinSourceName }
