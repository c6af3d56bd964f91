package appconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFlagToEnvironment(t *testing.T) {
	assert.Equal(t, Test, EnvFlagToEnvironment("test"))
	assert.Equal(t, Production, EnvFlagToEnvironment("production"))
	assert.Equal(t, Development, EnvFlagToEnvironment("development"))
	assert.Equal(t, Development, EnvFlagToEnvironment("anything-else"))
}

func TestLoadFromEnvRequiresDatabasePath(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")

	var cfg Config
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_PATH")
}

func TestLoadFromEnvAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/arrivals.db")
	t.Setenv("LISTEN_ADDRESS", "")
	t.Setenv("GTFS_URL", "")
	t.Setenv("REALTIME_URL", "")

	var cfg Config
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "/tmp/arrivals.db", cfg.DatabasePath)
	assert.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, DefaultGTFSURL, cfg.GTFSURL)
	assert.Equal(t, DefaultRealtimeURL, cfg.RealtimeURL)
}

func TestLoadFromEnvReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/arrivals.db")
	t.Setenv("LISTEN_ADDRESS", "0.0.0.0:9090")
	t.Setenv("ALLOW_ORIGIN", "*")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GTFS_URL", "https://feeds.example.nz/gtfs.zip")
	t.Setenv("REALTIME_URL", "https://feeds.example.nz/realtime.json")

	var cfg Config
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddress)
	assert.Equal(t, "*", cfg.AllowOrigin)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://feeds.example.nz/gtfs.zip", cfg.GTFSURL)
	assert.Equal(t, "https://feeds.example.nz/realtime.json", cfg.RealtimeURL)
}

func TestLoadFromEnvFlagWins(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("LISTEN_ADDRESS", "0.0.0.0:9090")

	cfg := Config{DatabasePath: "/tmp/from-flag.db", ListenAddress: "127.0.0.1:8081"}
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "/tmp/from-flag.db", cfg.DatabasePath)
	assert.Equal(t, "127.0.0.1:8081", cfg.ListenAddress)
}
