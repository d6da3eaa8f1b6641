package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fahertym/InterCooperative-Network/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"

	// DefaultLogFile is the default name of the node's log file
	DefaultLogFile = "icn.log"
)

// Default configuration values.
const (
	DefaultLogLevel             = "debug"
	DefaultHost                 = "127.0.0.1"
	DefaultPort                 = 8000
	DefaultDifficulty           = 4
	DefaultMiningReward         = 10.0
	DefaultStakeThreshold       = 100.0
	DefaultCooperationThreshold = 50
	DefaultHeartbeat            = 60 * time.Second
	DefaultCleanupInterval      = 300 * time.Second
	DefaultPeerTimeout          = 5 * time.Second
	DefaultBadger               = false
)

// Config contains all the configuration properties of an ICN node. It is set
// once at startup and not mutated thereafter.
type Config struct {
	// DataDir is the top-level directory containing ICN configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Host is the local address the HTTP listener binds to.
	Host string `mapstructure:"host"`

	// Port is the local port of the HTTP listener. The node advertises
	// http://Host:Port to its peers.
	Port int `mapstructure:"port"`

	// BootstrapPeers are addresses merged into every discovery pass. They
	// seed a fresh node's peer set.
	BootstrapPeers []string `mapstructure:"bootstrap"`

	// Difficulty is the number of leading zero characters a sealed block
	// hash must carry. It is fixed process-wide, not retargeted.
	Difficulty int `mapstructure:"difficulty"`

	// MiningReward is the amount credited to a block producer.
	MiningReward float64 `mapstructure:"mining-reward"`

	// StakeThreshold is the minimum stake for validator registration and
	// eligibility.
	StakeThreshold float64 `mapstructure:"stake-threshold"`

	// CooperationThreshold is the minimum cooperation score for validator
	// eligibility.
	CooperationThreshold int `mapstructure:"cooperation-threshold"`

	// Heartbeat is the interval of the periodic discovery+sync pass.
	Heartbeat time.Duration `mapstructure:"heartbeat"`

	// CleanupInterval is the interval of the peer liveness pass. It should
	// be longer than Heartbeat.
	CleanupInterval time.Duration `mapstructure:"cleanup-interval"`

	// PeerTimeout bounds every outbound peer call so that one unresponsive
	// peer cannot stall the node.
	PeerTimeout time.Duration `mapstructure:"timeout"`

	// Badger selects the Badger database over JSON files for persistence.
	Badger bool `mapstructure:"store"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:              DefaultDataDir(),
		LogLevel:             DefaultLogLevel,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		Difficulty:           DefaultDifficulty,
		MiningReward:         DefaultMiningReward,
		StakeThreshold:       DefaultStakeThreshold,
		CooperationThreshold: DefaultCooperationThreshold,
		Heartbeat:            DefaultHeartbeat,
		CleanupInterval:      DefaultCleanupInterval,
		PeerTimeout:          DefaultPeerTimeout,
		Badger:               DefaultBadger,
	}
}

// NewTestConfig returns a config object with default values, a low sealing
// difficulty, short timers, and a logger routed through the test.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.DataDir = ""
	config.Difficulty = 1
	config.Heartbeat = 50 * time.Millisecond
	config.CleanupInterval = 200 * time.Millisecond
	config.PeerTimeout = time.Second
	config.logger = common.NewTestLogger(t)
	return config
}

// AdvertiseAddr returns the address this node advertises to peers.
func (c *Config) AdvertiseAddr() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// BindAddr returns the host:port the HTTP listener binds to.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// BadgerDir returns the full path of the Badger database directory.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, DefaultBadgerFile)
}

// Logger returns a formatted logrus Entry with prefix set to "icn". Besides
// the console formatter, the logger carries a file hook writing into the
// datadir when one is configured.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.DataDir != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = filepath.Join(c.DataDir, DefaultLogFile)
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(logrus.JSONFormatter)))
		}
	}
	return c.logger.WithField("prefix", "icn")
}

// DefaultDataDir returns the default directory name for top-level ICN config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".ICN")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "ICN")
		} else {
			return filepath.Join(home, ".icn")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
