package main

import (
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/sink"
	"github.com/tinytelemetry/pulse/internal/tcpserver"
)

const (
	defaultUpdateInterval    = model.DefaultUpdateInterval
	defaultBindHost          = "127.0.0.1"
	defaultTCPPort           = 4000
	defaultMuxBufferSize     = DefaultMuxBuffer
	defaultAPIPort           = 3000
	defaultVolumeSpikeRate   = model.DefaultVolumeSpikeRate
	defaultUrgencyAlertLevel = model.DefaultUrgencyAlertLevel
	defaultTopSenders        = 10
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultRedisChannel      = sink.DefaultRedisChannel
	defaultMaxEventBytes     = tcpserver.DefaultMaxEventBytes
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	UpdateInterval    time.Duration `mapstructure:"update-interval"`
	Host              string        `mapstructure:"host"`
	TCPEnabled        bool          `mapstructure:"tcp-enabled"`
	TCPPort           int           `mapstructure:"tcp-port"`
	TCPAddr           string        `mapstructure:"tcp-addr"`
	MuxBufferSize     int           `mapstructure:"mux-buffer-size"`
	MaxEventBytes     int           `mapstructure:"max-event-bytes"`
	APIEnabled        bool          `mapstructure:"api-enabled"`
	APIPort           int           `mapstructure:"api-port"`
	APIAddr           string        `mapstructure:"api-addr"`
	VolumeSpikeRate   float64       `mapstructure:"volume-spike-rate"`
	UrgencyAlertLevel int           `mapstructure:"urgency-alert-level"`
	TopSenders        int           `mapstructure:"top-senders"`
	RedisEnabled      bool          `mapstructure:"redis-enabled"`
	RedisAddr         string        `mapstructure:"redis-addr"`
	RedisChannel      string        `mapstructure:"redis-channel"`
	LogSink           bool          `mapstructure:"log-sink"`
	ConfigPath        string        `mapstructure:"-"` // not from config file
}
