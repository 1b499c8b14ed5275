package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/db
logging:
  level: debug
security:
  rate_limit:
    rps: 25
    burst: 50
  api_keys:
    backend: [bk1, bk2]
llm:
  provider: scripted
stream:
  broker: local
  replay_buffer_max: 4MB
  subscriber_timeout: 250ms
  linger: 30s
retention:
  enabled: true
  cron: "*/5 * * * *"
  stale_after: 10m
  prune_after: 24h
telemetry:
  sample_rate: 0.5
  slow_threshold: 2s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9090", cfg.Addr())
	require.Equal(t, "/tmp/db", cfg.Server.DBPath)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"bk1", "bk2"}, cfg.Security.APIKeys.Backend)
	require.Equal(t, int64(4*1024*1024), cfg.Stream.ReplayBufferMax.Int64())
	require.Equal(t, 250*time.Millisecond, cfg.Stream.SubscriberTimeout.Duration())
	require.Equal(t, 30*time.Second, cfg.Stream.Linger.Duration())
	require.Equal(t, 10*time.Minute, cfg.Retention.StaleAfter.Duration())
	require.Equal(t, 2*time.Second, cfg.Telemetry.SlowThreshold.Duration())
}

func TestDurationNumericSeconds(t *testing.T) {
	cfg, err := Load(writeConfig(t, "stream:\n  linger: 45\n"))
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.Stream.Linger.Duration())
}

func TestSizePlainInteger(t *testing.T) {
	cfg, err := Load(writeConfig(t, "stream:\n  replay_buffer_max: 1024\n"))
	require.NoError(t, err)
	require.Equal(t, int64(1024), cfg.Stream.ReplayBufferMax.Int64())
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("CHATSTREAM_ADDR", "10.1.2.3:7070")
	t.Setenv("CHATSTREAM_DB_PATH", "/var/lib/cs")
	t.Setenv("CHATSTREAM_API_BACKEND_KEYS", "k1, k2")
	t.Setenv("CHATSTREAM_LLM_PROVIDER", "scripted")
	t.Setenv("CHATSTREAM_STREAM_BROKER", "nats")
	t.Setenv("CHATSTREAM_NATS_URL", "nats://127.0.0.1:4222")

	cfg, res := ParseConfigEnvs()
	require.True(t, res.EnvUsed)
	require.Equal(t, "10.1.2.3:7070", cfg.Addr())
	require.Equal(t, "/var/lib/cs", cfg.Server.DBPath)
	require.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys.Backend)
	require.Contains(t, res.BackendKeys, "k1")
	require.Contains(t, res.SigningKeys, "k2")
	require.Equal(t, "scripted", cfg.LLM.Provider)
	require.Equal(t, "nats", cfg.Stream.Broker)
}

func TestEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "filehost"
	fileCfg.Server.Port = 1111
	fileCfg.Server.DBPath = "/file/db"

	envCfg := &Config{}
	envCfg.Server.Address = "envhost"
	envCfg.Server.Port = 2222
	envCfg.Server.DBPath = "/env/db"
	envRes := EnvResult{EnvUsed: true}

	// Explicit --config wins and requires the file to exist.
	res, err := LoadEffectiveConfig(Flags{Config: "x.yaml", Set: map[string]bool{"config": true}}, fileCfg, true, envCfg, envRes)
	require.NoError(t, err)
	require.Equal(t, "config", res.Source)
	require.Equal(t, "filehost:1111", res.Addr)

	_, err = LoadEffectiveConfig(Flags{Config: "x.yaml", Set: map[string]bool{"config": true}}, fileCfg, false, envCfg, envRes)
	require.Error(t, err)

	// Explicit -addr flag wins over everything.
	res, err = LoadEffectiveConfig(Flags{Addr: ":3333", Set: map[string]bool{"addr": true}}, fileCfg, true, envCfg, envRes)
	require.NoError(t, err)
	require.Equal(t, "flags", res.Source)
	require.Equal(t, ":3333", res.Addr)
	require.Equal(t, "/env/db", res.DBPath)

	// No flags: file beats env.
	res, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, envRes)
	require.NoError(t, err)
	require.Equal(t, "config", res.Source)
	require.Equal(t, "/file/db", res.DBPath)

	// No flags, no file: env.
	res, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, envRes)
	require.NoError(t, err)
	require.Equal(t, "env", res.Source)
	require.Equal(t, "envhost:2222", res.Addr)
}

func TestResolveConfigPath(t *testing.T) {
	require.Equal(t, "./flag.yaml", ResolveConfigPath("./flag.yaml", true))
	t.Setenv("CHATSTREAM_CONFIG", "/etc/cs.yaml")
	require.Equal(t, "/etc/cs.yaml", ResolveConfigPath("./flag.yaml", false))
}
