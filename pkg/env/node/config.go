// Package node configures a TVC node: identity, console registrars,
// hardware bindings and control timing.
package node

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/env"
	"github.com/robotalks/tvc.go/pkg/hw"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

// NodeType is the registered type of the node.
const NodeType = "tvc"

// Config provides the options of a node.
type Config struct {
	Info console.NodeInfo

	// MQTTBrokerURL specifies the MQTT broker to register with,
	// e.g. mqtt://host:port/topic-prefix/.
	MQTTBrokerURL string
	// WebsocketAddr serves the console over websocket when set.
	WebsocketAddr string
	// TCPAddr serves the console over plain TCP when set.
	TCPAddr string

	Serial hw.SerialConfig
	// EnablePin and RunGoodPin name the power-sequencing GPIOs.
	// Without them the companion is assumed always powered.
	EnablePin  string
	RunGoodPin string
	// LinkTimeout is the exchange timeout of the companion link.
	LinkTimeout time.Duration

	// CANAddr is the TCP address of a SocketCAN stream, empty disables
	// the vehicle-bus relay.
	CANAddr string
	CANID   uint32

	// LogPath is the flight-data log file, empty disables recording.
	LogPath string

	Period         time.Duration
	HeartbeatEvery uint64
	ShutdownGrace  time.Duration
}

var defaultConfig = Config{
	MQTTBrokerURL:  "mqtt://localhost:1883/tvc/",
	Serial:         hw.SerialConfig{Device: "/dev/serial0", BaudRate: hw.DefaultBaudRate},
	LinkTimeout:    100 * time.Millisecond,
	CANID:          0x100,
	LogPath:        "flight.log",
	Period:         supervisor.DefaultPeriod,
	HeartbeatEvery: supervisor.DefaultHeartbeatEvery,
	ShutdownGrace:  supervisor.DefaultShutdownGrace,
}

var configFile string

func init() {
	defaultConfig.Info.Ref = console.NodeRef{Type: NodeType, ID: env.MachineID()}
	defaultConfig.Info.Meta.Description = "TVC avionics node"
	if val := env.Getenv("ID"); val != "" {
		defaultConfig.Info.Ref.ID = val
	}
	if val := env.Getenv("MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := env.Getenv("SERIAL"); val != "" {
		defaultConfig.Serial.Device = val
	}
	if val := env.Getenv("WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
	if val := env.Getenv("CAN_ADDR"); val != "" {
		defaultConfig.CANAddr = val
	}
	configFile = env.Getenv("CONFIG")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&configFile, "config", configFile, "TOML config file")
	flag.StringVar(&c.Info.Ref.ID, "id", c.Info.Ref.ID, "Node ID")
	flag.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty disables")
	flag.StringVar(&c.WebsocketAddr, "ws", c.WebsocketAddr, "Websocket console address")
	flag.StringVar(&c.TCPAddr, "tcp", c.TCPAddr, "TCP console address")
	flag.StringVar(&c.Serial.Device, "serial", c.Serial.Device, "Companion UART device")
	flag.IntVar(&c.Serial.BaudRate, "baud", c.Serial.BaudRate, "Companion UART baud rate")
	flag.StringVar(&c.EnablePin, "enable-pin", c.EnablePin, "GPIO driving the companion enable line")
	flag.StringVar(&c.RunGoodPin, "run-good-pin", c.RunGoodPin, "GPIO reading the companion run-good line")
	flag.StringVar(&c.CANAddr, "can", c.CANAddr, "SocketCAN stream address")
	flag.StringVar(&c.LogPath, "log", c.LogPath, "Flight-data log file, empty disables")
	flag.DurationVar(&c.Period, "period", c.Period, "Control period")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from defaults, the config file and flags.
// Flags explicitly set override the file.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if configFile == "" {
		return &conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	if flag.Parsed() {
		conf.applyFlags()
	}
	return &conf, nil
}

// applyFlags copies explicitly set flags over values from the file.
func (c *Config) applyFlags() {
	d := &defaultConfig
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "id":
			c.Info.Ref.ID = d.Info.Ref.ID
		case "mqtt":
			c.MQTTBrokerURL = d.MQTTBrokerURL
		case "ws":
			c.WebsocketAddr = d.WebsocketAddr
		case "tcp":
			c.TCPAddr = d.TCPAddr
		case "serial":
			c.Serial.Device = d.Serial.Device
		case "baud":
			c.Serial.BaudRate = d.Serial.BaudRate
		case "enable-pin":
			c.EnablePin = d.EnablePin
		case "run-good-pin":
			c.RunGoodPin = d.RunGoodPin
		case "can":
			c.CANAddr = d.CANAddr
		case "log":
			c.LogPath = d.LogPath
		case "period":
			c.Period = d.Period
		}
	})
}

type fileConfig struct {
	ID             string            `toml:"id"`
	Description    string            `toml:"description"`
	Labels         map[string]string `toml:"labels"`
	MQTT           string            `toml:"mqtt"`
	Websocket      string            `toml:"websocket"`
	TCP            string            `toml:"tcp"`
	Serial         string            `toml:"serial"`
	Baud           int               `toml:"baud"`
	EnablePin      string            `toml:"enable_pin"`
	RunGoodPin     string            `toml:"run_good_pin"`
	LinkTimeout    string            `toml:"link_timeout"`
	CAN            string            `toml:"can"`
	CANID          uint32            `toml:"can_id"`
	Log            string            `toml:"log"`
	Period         string            `toml:"period"`
	HeartbeatEvery uint64            `toml:"heartbeat_every"`
	ShutdownGrace  string            `toml:"shutdown_grace"`
}

// LoadFile overrides the config with keys defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load node config: %v", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load node config: unknown keys %v", undecoded)
	}

	str := func(key, val string, dst *string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(val)
		}
	}
	str("id", raw.ID, &c.Info.Ref.ID)
	str("description", raw.Description, &c.Info.Meta.Description)
	str("mqtt", raw.MQTT, &c.MQTTBrokerURL)
	str("websocket", raw.Websocket, &c.WebsocketAddr)
	str("tcp", raw.TCP, &c.TCPAddr)
	str("serial", raw.Serial, &c.Serial.Device)
	str("enable_pin", raw.EnablePin, &c.EnablePin)
	str("run_good_pin", raw.RunGoodPin, &c.RunGoodPin)
	str("can", raw.CAN, &c.CANAddr)
	str("log", raw.Log, &c.LogPath)
	if meta.IsDefined("labels") {
		c.Info.Meta.Labels = raw.Labels
	}
	if meta.IsDefined("baud") {
		c.Serial.BaudRate = raw.Baud
	}
	if meta.IsDefined("can_id") {
		c.CANID = raw.CANID
	}
	if meta.IsDefined("heartbeat_every") {
		c.HeartbeatEvery = raw.HeartbeatEvery
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"link_timeout", raw.LinkTimeout, &c.LinkTimeout},
		{"period", raw.Period, &c.Period},
		{"shutdown_grace", raw.ShutdownGrace, &c.ShutdownGrace},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return fmt.Errorf("parse %s: %v", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if !c.Info.Ref.IsValid() {
		return fmt.Errorf("node type and id must be specified")
	}
	if c.Period <= 0 {
		return fmt.Errorf("invalid control period %v", c.Period)
	}
	if (c.EnablePin == "") != (c.RunGoodPin == "") {
		return fmt.Errorf("enable and run-good pins must be specified together")
	}
	if c.MQTTBrokerURL == "" && c.WebsocketAddr == "" && c.TCPAddr == "" {
		return fmt.Errorf("at least one console transport is required")
	}
	return nil
}
