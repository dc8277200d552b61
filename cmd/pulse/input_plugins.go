package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/pulse/internal/eventsource"
	"github.com/tinytelemetry/pulse/internal/tcpserver"
)

// NamedEventSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedEventSource = eventsource.EventSource

// InputSourcePlugin is a small plugin primitive for wiring event inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedEventSource, error)
}

// InputPluginConfig defines runtime input selection and per-event limits
// shared by all transports.
type InputPluginConfig struct {
	TCPEnabled    bool
	TCPAddr       string
	MaxEventBytes int
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	return []InputSourcePlugin{
		tcpInputPlugin{cfg: cfg},
		stdinInputPlugin{maxEventBytes: cfg.MaxEventBytes},
	}
}

type tcpInputPlugin struct {
	cfg InputPluginConfig
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.cfg.TCPEnabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedEventSource, error) {
	server := tcpserver.NewServer(p.cfg.TCPAddr, tcpserver.Config{
		MaxEventBytes: p.cfg.MaxEventBytes,
	})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp listener: %w", err)
	}
	return eventsource.NewTCPSource(server), nil
}

// stdinInputPlugin enables itself only when stdin is a pipe, the shape of a
// replayed capture or exported mailbox dump.
type stdinInputPlugin struct {
	maxEventBytes int
}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedEventSource, error) {
	return eventsource.NewStdinSource(ctx, eventsource.StdinConfig{
		MaxEventBytes: p.maxEventBytes,
	}), nil
}
