package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "planectl"
	configFileType = "yaml"
	envPrefix      = "PLANECTL"

	cfgKeyServer   = "server"
	cfgKeyToken    = "token"
	cfgKeyScale    = "scale"
	cfgKeyLogLevel = "log_level"

	defaultServer = "http://localhost:8080"
	defaultScale  = 1.0
)

// loadConfig reads planectl.yaml from the given file, or from the working
// directory and ~/.config/planectl when file is empty. PLANECTL_* variables
// override the file and flags bound on cmd override both. A missing config
// file is not an error.
func loadConfig(cmd *cobra.Command, file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyServer, defaultServer)
	v.SetDefault(cfgKeyScale, defaultScale)
	v.SetDefault(cfgKeyLogLevel, "warn")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/planectl")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, key := range []string{cfgKeyServer, cfgKeyToken, cfgKeyScale} {
		if f := cmd.Flags().Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}
	return v, nil
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return level
}
