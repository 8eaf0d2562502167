package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/m3ts/referee/internal/config"
	"github.com/m3ts/referee/internal/storage"
	"github.com/m3ts/referee/internal/storage/influx"
	"github.com/m3ts/referee/internal/storage/memory"
	pgstorage "github.com/m3ts/referee/internal/storage/postgres"
	sqlitestorage "github.com/m3ts/referee/internal/storage/sqlite"
	wsstorage "github.com/m3ts/referee/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig, dbLogger zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  storageCfg.SQLite.DumpInterval,
			DumpPath:      storageCfg.SQLite.DumpPath,
			FlushInterval: storageCfg.FlushInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "postgres":
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Config{FlushInterval: storageCfg.FlushInterval}, dbLogger, logger), nil

	case "influx":
		ic := config.GetInfluxConfig()
		logger.Info("InfluxDB storage backend selected", "url", ic.URL, "bucket", ic.Bucket)
		return influx.New(influx.Config{
			Enabled:    ic.Enabled,
			URL:        ic.URL,
			Token:      ic.Token,
			Org:        ic.Org,
			Bucket:     ic.Bucket,
			BackupPath: ic.BackupPath,
		}, dbLogger), nil

	case "websocket":
		wc := config.GetWebsocketConfig()
		logger.Info("WebSocket storage backend selected", "url", wc.URL)
		return wsstorage.New(wsstorage.Config{URL: wc.URL, Secret: wc.Secret}, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownStorage, storageCfg.Type)
	}
}
