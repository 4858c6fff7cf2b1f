package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/consensus"
	"github.com/robjohncolson/apstat-chain/src/crypto"
	"github.com/robjohncolson/apstat-chain/src/reputation"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key.
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database.
	DefaultBadgerFile = "badger_db"

	// DefaultAnswersFile is the default name of the reference answers file.
	DefaultAnswersFile = "answers.json"
)

// Default configuration values.
const (
	DefaultLogLevel        = "debug"
	DefaultServiceAddr     = "127.0.0.1:8000"
	DefaultCacheSize       = 10000
	DefaultStore           = false
	DefaultQuorumMinSize   = 1
	DefaultQuorumThreshold = 0.0
)

// DefaultMineInterval is the period of the background mining loop.
const DefaultMineInterval = 30 * time.Second

// Config contains all the configuration properties of a node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, tees log output into a file through an lfshook.
	LogFile string `mapstructure:"log-file"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Store activates persistent storage (badger) instead of the in-memory
	// store.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether to load the node from an existing
	// database. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Moniker defines the friendly name of this node.
	Moniker string `mapstructure:"moniker"`

	// MockCrypto swaps the SHA256 hasher for the byte-compatible mock used
	// by lightweight clients. Fixtures produced either way interoperate only
	// with peers running the same backend.
	MockCrypto bool `mapstructure:"mock-crypto"`

	// AnswersFile points to a JSON file of reference answers keyed by
	// question id.
	AnswersFile string `mapstructure:"answers"`

	// QuorumMinSize is the minimum number of attestations per question
	// before a block can form.
	QuorumMinSize int `mapstructure:"quorum-min-size"`

	// QuorumThreshold is the minimum ratio of matching attestations.
	QuorumThreshold float64 `mapstructure:"quorum-threshold"`

	// MineInterval is the period of the background mining loop.
	MineInterval time.Duration `mapstructure:"mine-interval"`

	// Reputation carries the scoring constants.
	Reputation reputation.Params `mapstructure:"reputation"`

	// Key is the private key of the node's active profile.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		ServiceAddr:     DefaultServiceAddr,
		CacheSize:       DefaultCacheSize,
		Store:           DefaultStore,
		DatabaseDir:     DefaultDatabaseDir(),
		QuorumMinSize:   DefaultQuorumMinSize,
		QuorumThreshold: DefaultQuorumThreshold,
		MineInterval:    DefaultMineInterval,
		Reputation:      reputation.DefaultParams(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitly
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Quorum builds the quorum policy from the configured parameters.
func (c *Config) Quorum() consensus.QuorumPolicy {
	return consensus.QuorumPolicy{
		MinSize:   c.QuorumMinSize,
		Threshold: c.QuorumThreshold,
	}
}

// Hasher returns the configured hash backend.
func (c *Config) Hasher() crypto.Hasher {
	if c.MockCrypto {
		return crypto.MockHasher{}
	}
	return crypto.SHA256Hasher{}
}

// Logger returns a formatted logrus Entry, with prefix set to "apstat".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				if level <= c.logger.Level {
					pathMap[level] = c.LogFile
				}
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "apstat")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".ApstatChain")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "ApstatChain")
		} else {
			return filepath.Join(home, ".apstat-chain")
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
