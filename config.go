package dinex

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ConfigFile is the path of the ring configuration file.
var ConfigFile = flag.String("config", "config.json", "Configuration file for the philosopher ring. Defaults to config.json.")

// Config holds the ring topology and the timing knobs of one run.
// Peer addresses are URLs whose scheme selects the transport,
// e.g. tcp://127.0.0.1:1735 or chan://ring.0.
type Config struct {
	Addrs     map[Rank]string `json:"address"`      // address for node-to-node communication
	HTTPAddrs map[Rank]string `json:"http_address"` // per-node status endpoint, optional

	ThinkMinMs     int `json:"think_min_ms"`     // lower bound of the randomized thinking time
	ThinkMaxMs     int `json:"think_max_ms"`     // upper bound of the randomized thinking time
	EatMs          int `json:"eat_ms"`           // fixed eating time
	TickMs         int `json:"tick_ms"`          // poll interval of the thinking loop
	ChanBufferSize int `json:"chan_buffer_size"` // buffer size for channels
}

var config Config

// GetConfig returns the package-level configuration.
func GetConfig() *Config {
	return &config
}

// N returns the number of processes in the ring.
func (c *Config) N() int {
	return len(c.Addrs)
}

func (c *Config) ThinkMin() time.Duration {
	return time.Duration(c.ThinkMinMs) * time.Millisecond
}

func (c *Config) ThinkMax() time.Duration {
	return time.Duration(c.ThinkMaxMs) * time.Millisecond
}

func (c *Config) Eat() time.Duration {
	return time.Duration(c.EatMs) * time.Millisecond
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// defaultRingSize is the ring run when no config file exists.
const defaultRingSize = 5

// Load reads the configuration from ConfigFile. A missing file is not
// fatal: the config falls back to a default in-memory ring, the same
// topology simulation mode runs on.
func (c *Config) Load() {
	file, err := os.Open(*ConfigFile)
	if os.IsNotExist(err) {
		logrus.Warnf("config file %s not found, running a default %d-process chan ring", *ConfigFile, defaultRingSize)
		MakeDefaultConfig(defaultRingSize)
		*c = config
		return
	}
	if err != nil {
		logrus.Fatalf("failed to open config file %s: %v", *ConfigFile, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		logrus.Fatalf("failed to parse config file %s: %v", *ConfigFile, err)
	}
	c.applyDefaults()

	if err = c.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
}

// Validate checks the topology constraints the protocol relies on.
func (c *Config) Validate() error {
	if c.N() < 2 {
		return fmt.Errorf("config: the ring needs at least 2 processes, got %d", c.N())
	}
	for i := 0; i < c.N(); i++ {
		if _, ok := c.Addrs[Rank(i)]; !ok {
			return fmt.Errorf("config: missing address for rank %d (ranks must be 0..%d)", i, c.N()-1)
		}
	}
	if c.ThinkMinMs > c.ThinkMaxMs {
		return fmt.Errorf("config: think_min_ms (%d) > think_max_ms (%d)", c.ThinkMinMs, c.ThinkMaxMs)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ThinkMinMs == 0 {
		c.ThinkMinMs = 2000
	}
	if c.ThinkMaxMs == 0 {
		c.ThinkMaxMs = 5000
	}
	if c.EatMs == 0 {
		c.EatMs = 2000
	}
	if c.TickMs == 0 {
		c.TickMs = 1000
	}
	if c.ChanBufferSize == 0 {
		c.ChanBufferSize = 1024
	}
}

// MakeDefaultConfig fills the package config with an n-process ring
// wired over in-memory channels. Simulation mode and tests use it.
func MakeDefaultConfig(n int) {
	config = Config{
		Addrs:     make(map[Rank]string, n),
		HTTPAddrs: make(map[Rank]string),
	}
	for i := 0; i < n; i++ {
		config.Addrs[Rank(i)] = fmt.Sprintf("chan://ring.%d", i)
	}
	config.applyDefaults()
}

// Simulation switches every peer address to the in-memory chan
// transport so the whole ring runs inside one process.
func Simulation() {
	for id := range config.Addrs {
		config.Addrs[id] = fmt.Sprintf("chan://ring.%v", id)
	}
}
