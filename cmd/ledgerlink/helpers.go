package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/spidersync/ledgerlink/internal/config"
	"github.com/spidersync/ledgerlink/internal/pattern"
	"github.com/spidersync/ledgerlink/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/ledgerlink/ledgerlink.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initRegistry loads the pattern registry from either a dedicated rules file
// or the rules section of the main config.
func initRegistry() (*pattern.Registry, error) {
	if rulesPath := viper.GetString("rules_file"); rulesPath != "" {
		return config.LoadRegistryFile(rulesPath)
	}
	return config.LoadRegistry(viper.GetViper())
}
