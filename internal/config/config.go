// Package config defines the server's typed configuration surface
// (SPEC_FULL.md §4.7): listen address, transport timeouts, and default
// per-device quota knobs, populated from command-line flags via cobra
// and pflag rather than the teacher's bare stdlib flag package.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Config holds everything cmd/server needs to start listening.
type Config struct {
	// ListenAddr is the host:port both the TCP and UDP listeners bind to
	// (spec.md §6: "TCP and UDP on the same configurable port, default
	// 31000").
	ListenAddr string

	// MaxPacketLength is checked by Validate but is not passed to the
	// transports; frame size is not limited by it.
	MaxPacketLength int

	IdleTimeout    time.Duration
	PacketTimeout  time.Duration
	TCPSessionTimeout time.Duration
	UDPSessionTimeout time.Duration
	Linger         time.Duration

	AcceptRatePerSecond float64
	AcceptBurst         int

	LogLevel string

	// DefaultUnitLimitIntervalMinutes is checked by Validate; nothing else
	// in this repository reads it. The protocol core always reads the
	// interval off the resolved Device.
	DefaultUnitLimitIntervalMinutes int
}

// Default returns the configuration spec.md §6 states as defaults.
func Default() Config {
	return Config{
		ListenAddr:        ":31000",
		MaxPacketLength:   600,
		IdleTimeout:       4 * time.Second,
		PacketTimeout:     1 * time.Second,
		TCPSessionTimeout: 5 * time.Second,
		UDPSessionTimeout: 60 * time.Second,
		Linger:            5 * time.Second,

		AcceptRatePerSecond: 200,
		AcceptBurst:         50,

		LogLevel: "info",

		DefaultUnitLimitIntervalMinutes: 60,
	}
}

// BindFlags registers every field of Config onto fs, defaulting to
// whatever c already holds (typically config.Default()).
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "address both TCP and UDP listeners bind to")
	fs.IntVar(&c.MaxPacketLength, "max-packet-length", c.MaxPacketLength, "maximum packet length in bytes (validated only; frames are not limited by it)")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "no bytes read for this long closes the session")
	fs.DurationVar(&c.PacketTimeout, "packet-timeout", c.PacketTimeout, "time allowed to assemble one packet")
	fs.DurationVar(&c.TCPSessionTimeout, "tcp-session-timeout", c.TCPSessionTimeout, "hard cap on one TCP session's lifetime")
	fs.DurationVar(&c.UDPSessionTimeout, "udp-session-timeout", c.UDPSessionTimeout, "idle window before a UDP session is forgotten")
	fs.DurationVar(&c.Linger, "linger", c.Linger, "time allowed for a closing session to persist its rate-profile stats")
	fs.Float64Var(&c.AcceptRatePerSecond, "accept-rate", c.AcceptRatePerSecond, "sustained Accept() rate the acceptor allows")
	fs.IntVar(&c.AcceptBurst, "accept-burst", c.AcceptBurst, "burst size for the accept-rate limiter")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level (panic|fatal|error|warn|info|debug|trace)")
	fs.IntVar(&c.DefaultUnitLimitIntervalMinutes, "default-unit-limit-interval-minutes", c.DefaultUnitLimitIntervalMinutes, "rate-profile interval length for newly provisioned devices")
}

// Validate rejects configuration values that can never be sane (spec.md
// §8: unitLimitIntervalMinutes = 0 is a legal boundary case that disables
// the interval cap, so only negative values are rejected).
func (c Config) Validate() error {
	if c.DefaultUnitLimitIntervalMinutes < 0 {
		return fmt.Errorf("default-unit-limit-interval-minutes must not be negative, got %d", c.DefaultUnitLimitIntervalMinutes)
	}
	if c.MaxPacketLength <= 0 {
		return fmt.Errorf("max-packet-length must be positive, got %d", c.MaxPacketLength)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}
