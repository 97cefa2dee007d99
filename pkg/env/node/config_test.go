package node

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "node.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	conf := defaultConfig
	path := writeConfig(t, `
id = " bench-1 "
description = "bench"
mqtt = ""
websocket = ":8080"
serial = "/dev/ttyUSB0"
baud = 57600
enable_pin = "GPIO17"
run_good_pin = "GPIO27"
period = "20ms"
shutdown_grace = "2s"
heartbeat_every = 5
can_id = 0x120

[labels]
site = "pad-a"
`)
	require.NoError(t, conf.LoadFile(path))
	require.Equal(t, "bench-1", conf.Info.Ref.ID)
	require.Equal(t, NodeType, conf.Info.Ref.Type)
	require.Equal(t, "bench", conf.Info.Meta.Description)
	require.Equal(t, "pad-a", conf.Info.Meta.Labels["site"])
	require.Empty(t, conf.MQTTBrokerURL)
	require.Equal(t, ":8080", conf.WebsocketAddr)
	require.Equal(t, "/dev/ttyUSB0", conf.Serial.Device)
	require.Equal(t, 57600, conf.Serial.BaudRate)
	require.Equal(t, "GPIO17", conf.EnablePin)
	require.Equal(t, 20*time.Millisecond, conf.Period)
	require.Equal(t, 2*time.Second, conf.ShutdownGrace)
	require.Equal(t, uint64(5), conf.HeartbeatEvery)
	require.Equal(t, uint32(0x120), conf.CANID)
	// untouched keys keep defaults.
	require.Equal(t, defaultConfig.LogPath, conf.LogPath)
	require.Equal(t, defaultConfig.LinkTimeout, conf.LinkTimeout)
	require.NoError(t, conf.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	tests := []string{
		`period = "fast"`,
		`unknown_key = 1`,
		`id = [`,
	}
	for _, content := range tests {
		conf := defaultConfig
		require.Error(t, conf.LoadFile(writeConfig(t, content)), content)
	}
	conf := defaultConfig
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no id", func(c *Config) { c.Info.Ref.ID = "" }, false},
		{"zero period", func(c *Config) { c.Period = 0 }, false},
		{"half pins", func(c *Config) { c.EnablePin = "GPIO17" }, false},
		{"no transport", func(c *Config) { c.MQTTBrokerURL = "" }, false},
		{"tcp only", func(c *Config) { c.MQTTBrokerURL, c.TCPAddr = "", ":7000" }, true},
	}
	for _, test := range tests {
		conf := defaultConfig
		test.modify(&conf)
		if test.ok {
			require.NoError(t, conf.Validate(), test.name)
		} else {
			require.Error(t, conf.Validate(), test.name)
		}
	}
}

func TestNewEnv(t *testing.T) {
	conf := defaultConfig
	conf.MQTTBrokerURL = ""
	conf.WebsocketAddr = "localhost:0"
	conf.TCPAddr = "localhost:0"
	env, err := conf.NewEnv()
	require.NoError(t, err)
	require.Len(t, env.Registrar.Registrars, 2)
	require.Equal(t, []string{"ws://localhost:0/console", "stream://localhost:0"}, env.RegistryURLs)
}
