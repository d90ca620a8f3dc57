package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addCommonFlags adds the flags shared by the relay and the watch client.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Copy the logs to this file, in JSON")

	// WAMP
	cmd.Flags().StringP("wamp-listen", "w", _config.WAMPAddr, "IP:Port of the WAMP relay")
	cmd.Flags().String("wamp-realm", _config.WAMPRealm, "WAMP realm of the explorer")
	cmd.Flags().Bool("wamp-tls", _config.WAMPTLS, "Use wss with the certificate of the datadir")
	cmd.Flags().DurationP("timeout", "t", _config.Timeout, "Timeout of the ledger queries")
}

func logConfig(fields logrus.Fields) {
	common := logrus.Fields{
		"DataDir":   _config.DataDir,
		"LogLevel":  _config.LogLevel,
		"LogFile":   _config.LogFile,
		"WAMPAddr":  _config.WAMPAddr,
		"WAMPRealm": _config.WAMPRealm,
		"WAMPTLS":   _config.WAMPTLS,
		"Timeout":   _config.Timeout,
	}
	for k, v := range fields {
		common[k] = v
	}
	_config.Logger().WithFields(common).Debug("Config")
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

	// look for config file in [datadir]/explorer.toml (.json, .yaml also work)
	viper.SetConfigName("explorer")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	found := ""
	if err := viper.ReadInConfig(); err == nil {
		found = viper.ConfigFileUsed()
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return err
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	if found != "" {
		_config.Logger().Debugf("Using config file: %s", found)
	} else {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	}

	// If --datadir was explicitely set, but not --db or --sqlite, this will
	// move the default database paths inside the new datadir
	_config.SetDataDir(_config.DataDir)

	return nil
}
