package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robjohncolson/apstat-chain/src/config"
	"github.com/robjohncolson/apstat-chain/src/consensus"
	"github.com/robjohncolson/apstat-chain/src/crypto/keys"
	"github.com/robjohncolson/apstat-chain/src/node"
	"github.com/robjohncolson/apstat-chain/src/service"
	"github.com/robjohncolson/apstat-chain/src/store"
)

//NewRunCmd returns the command that starts a node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNode(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	n, err := buildNode()
	if err != nil {
		return err
	}

	if !_config.NoService {
		serviceServer := service.NewService(_config.ServiceAddr, n, logger)
		go serviceServer.Serve()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		n.Shutdown()
	}()

	n.Run()

	return nil
}

// buildNode assembles the store, keyfile, reference answers, and node from
// the loaded configuration.
func buildNode() (*node.Node, error) {
	logger := _config.Logger()

	var st store.Store
	if _config.Store || _config.Bootstrap {
		var err error
		if _config.Bootstrap {
			st, err = store.LoadBadgerStore(_config.CacheSize, _config.DatabaseDir)
		} else {
			st, err = store.NewBadgerStore(_config.CacheSize, _config.DatabaseDir)
		}
		if err != nil {
			return nil, fmt.Errorf("opening database: %v", err)
		}
	} else {
		st = store.NewInmemStore(_config.CacheSize)
	}

	// A missing or unreadable keyfile is not fatal; the node starts with a
	// locked profile and a key can be created or unlocked through the API.
	simpleKeyfile := keys.NewSimpleKeyfile(_config.Keyfile())
	if key, err := simpleKeyfile.ReadKey(); err == nil {
		_config.Key = key
	} else {
		logger.WithError(err).Debug("No usable keyfile, starting locked")
	}

	answersFile := _config.AnswersFile
	if answersFile == "" {
		answersFile = filepath.Join(_config.DataDir, config.DefaultAnswersFile)
	}
	answers, err := consensus.LoadStaticAnswers(answersFile)
	if err != nil {
		logger.WithError(err).Warn("No reference answers loaded")
		answers = consensus.StaticAnswers{}
	}

	n := node.NewNode(_config, st, answers, logger)

	if err := n.Init(); err != nil {
		logger.Error("Cannot initialize node:", err)
		return nil, err
	}

	return n, nil
}

// buildOfflineNode is buildNode for the one-shot sync commands. It forces the
// persistent store and bootstraps from the database when one exists, so the
// blob reflects what the run command would serve.
func buildOfflineNode() (*node.Node, error) {
	_config.Store = true
	if _, err := os.Stat(_config.DatabaseDir); err == nil {
		_config.Bootstrap = true
	}
	return buildNode()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Optional file to tee log output into")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP API service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load from database")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in in-memory caches")

	// Consensus
	cmd.Flags().String("answers", _config.AnswersFile, "JSON file of reference answers keyed by question id")
	cmd.Flags().Int("quorum-min-size", _config.QuorumMinSize, "Min attestations per question before a block can form")
	cmd.Flags().Float64("quorum-threshold", _config.QuorumThreshold, "Min ratio of matching attestations")
	cmd.Flags().Duration("mine-interval", _config.MineInterval, "Time between mining attempts")
	cmd.Flags().Bool("mock-crypto", _config.MockCrypto, "Use the lightweight mock hash backend")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":         _config.DataDir,
		"ServiceAddr":     _config.ServiceAddr,
		"NoService":       _config.NoService,
		"Store":           _config.Store,
		"LogLevel":        _config.LogLevel,
		"Moniker":         _config.Moniker,
		"CacheSize":       _config.CacheSize,
		"AnswersFile":     _config.AnswersFile,
		"QuorumMinSize":   _config.QuorumMinSize,
		"QuorumThreshold": _config.QuorumThreshold,
		"MineInterval":    _config.MineInterval,
		"MockCrypto":      _config.MockCrypto,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["Bootstrap"] = _config.Bootstrap
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/apstat.toml (.json, .yaml also work)
	viper.SetConfigName("apstat")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
