package command

import (
	"github.com/fahertym/InterCooperative-Network/src/icn"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts an ICN node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runICN,
	}
	AddRunFlags(cmd)
	return cmd
}

func runICN(cmd *cobra.Command, args []string) error {
	engine := icn.NewICN(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().String("host", _config.Host, "Listen IP for the HTTP service")
	cmd.Flags().IntP("port", "p", _config.Port, "Listen port for the HTTP service")
	cmd.Flags().StringSliceP("bootstrap", "b", _config.BootstrapPeers, "Bootstrap peer addresses")
	cmd.Flags().DurationP("timeout", "t", _config.PeerTimeout, "Timeout for outbound peer calls")

	// Ledger
	cmd.Flags().Int("difficulty", _config.Difficulty, "Number of leading zeros a sealed block hash must carry")
	cmd.Flags().Float64("mining-reward", _config.MiningReward, "Amount credited to a block producer")

	// Consensus
	cmd.Flags().Float64("stake-threshold", _config.StakeThreshold, "Minimum stake for validator eligibility")
	cmd.Flags().Int("cooperation-threshold", _config.CooperationThreshold, "Minimum cooperation score for validator eligibility")

	// Timers
	cmd.Flags().Duration("heartbeat", _config.Heartbeat, "Time between discovery and sync passes")
	cmd.Flags().Duration("cleanup-interval", _config.CleanupInterval, "Time between peer liveness passes")

	// Store
	cmd.Flags().Bool("store", _config.Badger, "Use badgerDB instead of JSON files")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"datadir":               _config.DataDir,
		"log":                   _config.LogLevel,
		"moniker":               _config.Moniker,
		"host":                  _config.Host,
		"port":                  _config.Port,
		"bootstrap":             _config.BootstrapPeers,
		"timeout":               _config.PeerTimeout,
		"difficulty":            _config.Difficulty,
		"mining-reward":         _config.MiningReward,
		"stake-threshold":       _config.StakeThreshold,
		"cooperation-threshold": _config.CooperationThreshold,
		"heartbeat":             _config.Heartbeat,
		"cleanup-interval":      _config.CleanupInterval,
		"store":                 _config.Badger,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/icn.toml (.json, .yaml also work)
	viper.SetConfigName("icn")
	viper.AddConfigPath(_config.DataDir)

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
