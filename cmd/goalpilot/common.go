package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/metalagman/goalpilot/internal/config"
	"github.com/metalagman/goalpilot/internal/store"
)

func openStore() (*store.Store, func(), error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, func() {}, err
	}
	stateDir := filepath.Join(workDir, ".goalpilot")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, func() {}, err
	}
	db, err := store.Open(filepath.Join(stateDir, "results.db"))
	if err != nil {
		return nil, func() {}, err
	}
	return store.NewStore(db), func() { _ = db.Close() }, nil
}

// loadConfig reads the config file when it exists and falls back to
// defaults when it does not. The chat URL is the only hard requirement.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	switch err := viper.ReadInConfig(); {
	case err == nil:
		if err := config.ValidateSettings(viper.AllSettings()); err != nil {
			return config.Config{}, err
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return config.Config{}, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// missing file means run on defaults
	default:
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if cfg.Chat.URL == "" {
		return config.Config{}, fmt.Errorf("chat.url is required (set it in %s)", viper.ConfigFileUsed())
	}
	return cfg, nil
}
