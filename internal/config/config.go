// Package config loads the engine and CLI configuration through viper.
// Nothing is persisted back; the config file is read once at startup and
// every key has a working default.
package config

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/lightcurve-labs/iqstream/internal/engine"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("input_device", "")
	viper.SetDefault("output_device", "")
	viper.SetDefault("sample_rate", 96000)
	viper.SetDefault("buffer_ms", 100)
	viper.SetDefault("audio_gain", 10.0)
	viper.SetDefault("input_gain_db", 0.0)
	viper.SetDefault("min_output_rate", 24000)
	viper.SetDefault("max_decimation", 1024)
	viper.SetDefault("min_read_size", 1000)
}

// LoadConfig seeds the defaults and merges the config file at
// configFilePath on top, if one exists.
func LoadConfig(configFilePath string) {
	setViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			slog.Info("no config file found, using defaults", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}

// EngineConfig assembles the engine tuning parameters from the loaded
// configuration.
func EngineConfig() engine.Config {
	return engine.Config{
		BufferMs:      viper.GetInt("buffer_ms"),
		AudioGain:     viper.GetFloat64("audio_gain"),
		InputGainDB:   viper.GetFloat64("input_gain_db"),
		MinOutputRate: viper.GetInt("min_output_rate"),
		MaxDecimation: viper.GetInt("max_decimation"),
		MinReadSize:   viper.GetInt("min_read_size"),
	}
}
