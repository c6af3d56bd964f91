// Package appconf holds process-level configuration loaded from the
// environment and command-line flags.
package appconf

import (
	"fmt"
	"os"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// EnvFlagToEnvironment converts an environment flag string to an Environment.
// Unknown values default to Development.
func EnvFlagToEnvironment(envFlag string) Environment {
	switch envFlag {
	case "test":
		return Test
	case "production":
		return Production
	default:
		return Development
	}
}

const (
	DefaultListenAddress = "127.0.0.1:8080"
	DefaultGTFSURL       = "https://gtfs.at.govt.nz/gtfs.zip"
	DefaultRealtimeURL   = "https://at-proxy.heaps.dev/realtime.json"
)

// Config is the process configuration. Flags mirror the environment
// variables; a non-empty flag value wins.
type Config struct {
	Env           Environment
	DatabasePath  string // DATABASE_PATH, required
	ListenAddress string // LISTEN_ADDRESS
	AllowOrigin   string // ALLOW_ORIGIN; "*" allows any origin
	LogLevel      string // LOG_LEVEL: debug|info|warn|error
	GTFSURL       string // GTFS_URL, static feed archive
	RealtimeURL   string // REALTIME_URL, realtime feed endpoint
	RateLimit     int    // requests per second for management endpoints
	Verbose       bool
}

// LoadFromEnv fills unset fields from the environment and applies defaults.
// Returns an error if DATABASE_PATH is missing.
func (c *Config) LoadFromEnv() error {
	if c.DatabasePath == "" {
		c.DatabasePath = os.Getenv("DATABASE_PATH")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must be set")
	}
	if c.ListenAddress == "" {
		c.ListenAddress = os.Getenv("LISTEN_ADDRESS")
	}
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.AllowOrigin == "" {
		c.AllowOrigin = os.Getenv("ALLOW_ORIGIN")
	}
	if c.LogLevel == "" {
		c.LogLevel = os.Getenv("LOG_LEVEL")
	}
	if c.GTFSURL == "" {
		c.GTFSURL = os.Getenv("GTFS_URL")
	}
	if c.GTFSURL == "" {
		c.GTFSURL = DefaultGTFSURL
	}
	if c.RealtimeURL == "" {
		c.RealtimeURL = os.Getenv("REALTIME_URL")
	}
	if c.RealtimeURL == "" {
		c.RealtimeURL = DefaultRealtimeURL
	}
	return nil
}
