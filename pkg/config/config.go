package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config structs

type Config struct {
	IsDebug bool   `yaml:"is_debug"`
	DataDir string `yaml:"data_dir"`

	MySQL MySQL `yaml:"mysql"`
	Redis Redis `yaml:"redis"`
	Etcd  Etcd  `yaml:"etcd"`
	Nats  Nats  `yaml:"nats"`

	Engine  Engine  `yaml:"engine"`
	Grpc    Grpc    `yaml:"grpc"`
	Metrics Metrics `yaml:"metrics"`

	Env Env `yaml:"env"`
}

type MySQL struct {
	Main MySQLServer `yaml:"main"`
}

type MySQLServer struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Pass         string `yaml:"pass"`
	DB           string `yaml:"db"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type Redis struct {
	Main RedisServer `yaml:"main"`
}

type RedisServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Pass    string `yaml:"pass"`
	Timeout int    `yaml:"timeout"` // milliseconds
}

type Etcd struct {
	Main EtcdServer `yaml:"main"`
}

type EtcdServer struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"`
	TTL     int64  `yaml:"ttl"` // registration lease, seconds
}

type Nats struct {
	Main NatsServer `yaml:"main"`
}

type NatsServer struct {
	Enabled bool   `yaml:"enabled"`
	Url     string `yaml:"url"`
}

// Engine settings shared by every matching engine of this process
type Engine struct {
	Symbols      []string `yaml:"symbols"`       // e.g. BTC_USDT, one engine each
	DepthLevels  int      `yaml:"depth_levels"`  // levels per side carried by depth events
	QueueSize    int      `yaml:"queue_size"`    // pending commands per symbol
	EventQueue   int      `yaml:"event_queue"`   // pending events per network publisher
	PublishDepth bool     `yaml:"publish_depth"` // emit DepthChanged events
	Persist      bool     `yaml:"persist"`       // write journal results into mysql
}

type Grpc struct {
	Addr      string `yaml:"addr"`      // listen address, empty disables the server
	Advertise string `yaml:"advertise"` // address registered in etcd, defaults to Addr
}

type Metrics struct {
	Addr string `yaml:"addr"` // listen address of /metrics, empty disables it
}

type Env struct {
	XlogMode  string `yaml:"xlog_mode"`
	XlogColor bool   `yaml:"xlog_color"`
}

// Global variables

const DEVDATA = "/usr/local/clob/devdata"

var Shared *Config // single instance of the config

var (
	fConfig string // config file path
)

func init() {
	flag.StringVar(&fConfig, "config", "", "specify the config file")
}

// Default returns a config that runs without any external service
func Default() *Config {
	return &Config{
		DataDir: "data",
		Engine: Engine{
			Symbols:      []string{"BTC_USDT"},
			DepthLevels:  20,
			QueueSize:    1024,
			EventQueue:   4096,
			PublishDepth: true,
		},
		Etcd: Etcd{Main: EtcdServer{TTL: 10}},
		Env:  Env{XlogMode: "development"},
	}
}

// Load parses a yaml file on top of Default
func Load(configFile string) (cfg *Config, err error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return
	}
	return Parse(b)
}

// Parse parses yaml content on top of Default
func Parse(b []byte) (cfg *Config, err error) {
	cfg = Default()
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes symbols and checks bounds
func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return errors.New("engine.symbols is empty")
	}
	seen := map[string]bool{}
	for i, s := range c.Engine.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		ss := strings.Split(s, "_")
		if len(ss) != 2 || ss[0] == "" || ss[1] == "" {
			return fmt.Errorf("invalid symbol %q, want BASE_QUOTE", s)
		}
		if seen[s] {
			return fmt.Errorf("duplicate symbol %s", s)
		}
		seen[s] = true
		c.Engine.Symbols[i] = s
	}
	if c.Engine.DepthLevels < 0 {
		return errors.New("engine.depth_levels must not be negative")
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 1024
	}
	if c.Grpc.Advertise == "" {
		c.Grpc.Advertise = c.Grpc.Addr
	}
	return nil
}

// RedisTimeout as a duration, one second when unset
func (c *Config) RedisTimeout() time.Duration {
	if c.Redis.Main.Timeout <= 0 {
		return time.Second
	}
	return time.Duration(c.Redis.Main.Timeout) * time.Millisecond
}

// Init initializes the Shared config with the given config file path
func Init(configFile string) {
	cfg, err := Load(configFile)
	if err != nil {
		panic(err)
	}
	Shared = cfg
}

// EasyInit initializes the Shared config from -config, config/config.yml or DEVDATA
func EasyInit() {
	fpath := fConfig
	if fpath == "" {
		fpath = "config/config.yml"
	}

	if _, err := os.Stat(fpath); os.IsNotExist(err) {
		fpath = DEVDATA + "/config.yml"
		if _, err := os.Stat(fpath); os.IsNotExist(err) {
			printf("no config file found, use defaults")
			Shared = Default()
			return
		}
		printf(fmt.Sprintf("use config: %s (DEVDATA)", fpath))
	} else {
		printf(fmt.Sprintf("use config: %s", fpath))
	}

	Init(fpath)
}

// Print the given string to the standard output
func printf(s string) {
	fmt.Printf("%s %s\n", time.Now().Format("2006/01/02 15:04:05"), s)
}
