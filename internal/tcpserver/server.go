// Package tcpserver accepts newline-delimited JSON email events over TCP.
// Every accepted line is stamped with its receipt time at the socket, so an
// event whose payload carries no timestamp is still placed in the windows of
// the moment it arrived.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/obs"
)

const sourceName = "tcp"

const (
	// DefaultEventBuffer is the default capacity of the outbound event
	// channel. Email pipelines deliver bursts (mailbox sync, replay), not a
	// sustained firehose; a few thousand in-flight events absorbs a burst
	// without hiding sustained backpressure.
	DefaultEventBuffer = 8192

	// DefaultMaxEventBytes bounds one event line. An email event is a few KB
	// of sender/subject plus an optional intelligence block; 256KB leaves
	// generous headroom while keeping one client from exhausting memory.
	DefaultMaxEventBytes = 256 * 1024

	scanStartBuffer = 64 * 1024
)

// Config holds tunable parameters for the TCP event listener.
type Config struct {
	EventBuffer   int
	MaxEventBytes int
}

// Server listens for newline-delimited JSON email event payloads over TCP.
type Server struct {
	addr          string
	listener      net.Listener
	events        chan model.IngestEnvelope
	maxEventBytes int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewServer creates a new TCP event listener. Default addr is "127.0.0.1:4000".
func NewServer(addr string, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:4000"
	}
	buffer := DefaultEventBuffer
	maxEventBytes := DefaultMaxEventBytes
	if len(conf) > 0 {
		if conf[0].EventBuffer > 0 {
			buffer = conf[0].EventBuffer
		}
		if conf[0].MaxEventBytes > 0 {
			maxEventBytes = conf[0].MaxEventBytes
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:          addr,
		events:        make(chan model.IngestEnvelope, buffer),
		maxEventBytes: maxEventBytes,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.readEvents(conn)
	}
}

// readEvents drains one client connection. Lines are trimmed of a trailing
// CR (mail exporters on some platforms emit CRLF), stamped with their
// receipt time, and counted per source.
func (s *Server) readEvents(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, scanStartBuffer), s.maxEventBytes)

	var accepted int64
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		env := model.IngestEnvelope{
			Source:     sourceName,
			Line:       line,
			ReceivedAt: time.Now(),
		}
		select {
		case s.events <- env:
			accepted++
			obs.SourceLines.WithLabelValues(sourceName).Inc()
		case <-s.ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			obs.OversizedEvents.WithLabelValues(sourceName).Inc()
			log.Printf("tcpserver: closing %s, event exceeded %d bytes", remote, s.maxEventBytes)
		} else {
			log.Printf("tcpserver: read error from %s: %v", remote, err)
		}
	}
	if accepted > 0 {
		log.Printf("tcpserver: %s disconnected after %d events", remote, accepted)
	}
}

// Stop gracefully shuts down the TCP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	close(s.events)
	return nil
}

// Lines returns the channel of received event envelopes.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.events
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
