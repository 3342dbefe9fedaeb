package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LIFTLOG_CONFIG", "")
	t.Setenv("LIFTLOG_DATA_DIR", "/tmp/liftlog-test")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, BackendFile, cfg.StoreBackend)
	require.Equal(t, filepath.Join("/tmp/liftlog-test", "liftlog.json"), cfg.DocumentPath)
	require.False(t, cfg.ExportEnabled())
	require.Equal(t, 256, cfg.LocationBuffer)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liftlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: sqlite
data_dir: /var/lib/liftlog
kafka_brokers: [broker-1:9092, broker-2:9092]
outbox_poll_interval: 30s
outbox_batch_size: 10
`), 0o600))

	t.Setenv("OUTBOX_BATCH_SIZE", "99")
	t.Setenv("HTTP_ADDRESS", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.StoreBackend)
	require.Equal(t, "/var/lib/liftlog/liftlog.db", cfg.SQLitePath)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 30*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 99, cfg.OutboxBatchSize)
	require.Equal(t, ":9000", cfg.HTTPAddress)
	require.True(t, cfg.ExportEnabled())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("LIFTLOG_CONFIG", "")
	t.Setenv("LIFTLOG_STORE", "postgres")
	t.Setenv("POSTGRES_URL", "")
	_, err := Load("")
	require.ErrorContains(t, err, "POSTGRES_URL")

	t.Setenv("LIFTLOG_STORE", "floppy")
	_, err = Load("")
	require.ErrorContains(t, err, "unknown store")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSplitAndTrim(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b ,"))
}
