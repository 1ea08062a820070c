package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"PayLedger/internal/config"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 1024, cfg.ChannelSize)
	require.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestDefault_FromEnv(t *testing.T) {
	t.Setenv("PAY_WORKERS", "8")
	t.Setenv("PAY_NATS_URL", "nats://nats:4222")
	t.Setenv("PAY_CHANNEL_SIZE", "not-a-number")

	cfg := config.Default()

	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "nats://nats:4222", cfg.NATSURL)
	require.Equal(t, 1024, cfg.ChannelSize, "unparseable ints fall back to the default")
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoad_FileOverlaysEnv(t *testing.T) {
	t.Setenv("PAY_WORKERS", "8")
	t.Setenv("PAY_GRPC_ADDR", ":7000")

	path := writeConfig(t, `
workers = 4
log_level = "debug"
snapshot_subject = "accounts.out"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "accounts.out", cfg.SnapshotSubject)
	require.Equal(t, ":7000", cfg.GRPCAddr, "keys absent from the file keep the env value")
}

func TestLoad_WrongType(t *testing.T) {
	path := writeConfig(t, `workers = "many"`)

	_, err := config.Load(path)
	require.ErrorContains(t, err, "workers")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `channel_size = 0`)

	_, err := config.Load(path)
	require.ErrorContains(t, err, "channel_size")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
