package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/agentrt/pkg/agentrt/config"
)

const sampleYAML = `
bus:
  history_size: 500
  request_timeout: 5s
journal:
  driver: sqlite
  path: /tmp/events.db
replayer:
  enabled: true
  poll_interval: 2s
agents:
  - id: clock
    tier: foundation
    tick_rate: 1s
  - id: pricer
    name: price feed
    tier: sensing
    dependencies: [clock]
    settings:
      symbol: BTC
      depth: 10
      refresh: 250ms
`

func TestParseYAML(t *testing.T) {
	f, err := config.ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 500, f.Bus.HistorySize)
	assert.Equal(t, 5*time.Second, f.Bus.RequestTimeout.Std())
	assert.Equal(t, "sqlite", f.Journal.Driver)
	assert.Equal(t, "/tmp/events.db", f.Journal.Path)
	assert.True(t, f.Replayer.Enabled)
	assert.Equal(t, 2*time.Second, f.Replayer.PollInterval.Std())

	require.Len(t, f.Agents, 2)
	assert.Equal(t, "clock", f.Agents[0].ID)
	assert.Equal(t, time.Second, f.Agents[0].TickRate.Std())

	cfg := f.Agents[0].AgentConfig()
	assert.Equal(t, "clock", cfg.ID)
	assert.Equal(t, time.Second, cfg.TickRate)

	pricer := f.Agents[1]
	assert.Equal(t, []string{"clock"}, pricer.Dependencies)
	assert.Equal(t, "BTC", pricer.Settings.String("symbol", ""))
	assert.Equal(t, 10, pricer.Settings.Int("depth", 0))
	assert.Equal(t, 250*time.Millisecond, pricer.Settings.Duration("refresh", 0))
}

func TestParseJSON(t *testing.T) {
	raw := `{
		"bus": {"history_size": 50, "request_timeout": "1s"},
		"agents": [{"id": "solo", "tier": "foundation"}]
	}`
	f, err := config.ParseJSON([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 50, f.Bus.HistorySize)
	assert.Equal(t, time.Second, f.Bus.RequestTimeout.Std())
	require.Len(t, f.Agents, 1)
	assert.Equal(t, "solo", f.Agents[0].ID)
}

func TestDefaultsApplied(t *testing.T) {
	f, err := config.ParseYAML([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHistorySize, f.Bus.HistorySize)
	assert.Equal(t, config.DefaultRequestTimeout, f.Bus.RequestTimeout.Std())
	assert.Equal(t, config.DefaultDeadLetterMaxSize, f.Bus.DeadLetterMaxSize)
	assert.Equal(t, config.DefaultMaxRetries, f.Bus.MaxRetries)
	assert.Equal(t, config.DefaultReplayInterval, f.Replayer.PollInterval.Std())
}

func TestDurationNumericSeconds(t *testing.T) {
	f, err := config.ParseYAML([]byte("bus:\n  request_timeout: 15\n"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, f.Bus.RequestTimeout.Std())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	f, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, f.Bus.HistorySize)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "unsupported config file extension")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown journal driver",
			yaml: "journal:\n  driver: postgres\n",
			want: "unknown journal driver",
		},
		{
			name: "sqlite without path",
			yaml: "journal:\n  driver: sqlite\n",
			want: "journal.path is required",
		},
		{
			name: "agent without id",
			yaml: "agents:\n  - tier: sensing\n",
			want: "id is required",
		},
		{
			name: "duplicate agent id",
			yaml: "agents:\n  - id: a\n  - id: a\n",
			want: "duplicate agent id",
		},
		{
			name: "forward dependency",
			yaml: "agents:\n  - id: late\n    dependencies: [early]\n  - id: early\n",
			want: "must be declared first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseYAML([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValuesAccessors(t *testing.T) {
	v := config.Values{
		"name":    "feed",
		"count":   3,
		"ratio":   0.5,
		"on":      true,
		"wait":    "100ms",
		"symbols": []any{"BTC", "ETH"},
	}

	assert.Equal(t, "feed", v.String("name", ""))
	assert.Equal(t, "x", v.String("missing", "x"))
	assert.Equal(t, 3, v.Int("count", 0))
	assert.Equal(t, 7, v.Int("ratio", 7), "fractional floats do not convert to int")
	assert.Equal(t, 0.5, v.Float("ratio", 0))
	assert.True(t, v.Bool("on", false))
	assert.Equal(t, 100*time.Millisecond, v.Duration("wait", 0))
	assert.Equal(t, []string{"BTC", "ETH"}, v.StringSlice("symbols", nil))
	assert.True(t, v.Has("name"))
	assert.False(t, v.Has("nope"))
}
