package config_test

import (
	"os"
	"path"
	"testing"
	"time"

	"clob/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
is_debug: true
data_dir: /tmp/clob
engine:
  symbols: [btc_usdt, " eth_usdt "]
  depth_levels: 5
grpc:
  addr: ":12340"
redis:
  main:
    enabled: true
    addr: 127.0.0.1:6379
    timeout: 250
`))
	require.Nil(t, err)
	require.True(t, cfg.IsDebug)
	require.Equal(t, []string{"BTC_USDT", "ETH_USDT"}, cfg.Engine.Symbols)
	require.Equal(t, 5, cfg.Engine.DepthLevels)
	require.Equal(t, 1024, cfg.Engine.QueueSize)
	require.True(t, cfg.Engine.PublishDepth)
	require.Equal(t, ":12340", cfg.Grpc.Advertise)
	require.Equal(t, 250*time.Millisecond, cfg.RedisTimeout())
}

func TestValidate(t *testing.T) {
	_, err := config.Parse([]byte("engine:\n  symbols: [BTCUSDT]\n"))
	require.NotNil(t, err)

	_, err = config.Parse([]byte("engine:\n  symbols: [BTC_USDT, btc_usdt]\n"))
	require.NotNil(t, err)

	_, err = config.Parse([]byte("engine:\n  symbols: []\n"))
	require.NotNil(t, err)
}

func TestLoad(t *testing.T) {
	p := path.Join(t.TempDir(), "config.yml")
	require.Nil(t, os.WriteFile(p, []byte("data_dir: here\n"), 0644))

	config.Init(p)
	require.Equal(t, "here", config.Shared.DataDir)
	require.Equal(t, []string{"BTC_USDT"}, config.Shared.Engine.Symbols)
	require.Equal(t, time.Second, config.Shared.RedisTimeout())
}
