// Command weftd serves the Weave sync API over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jacentio/weft/api"
	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := store.Config{
		RecordsTable:     os.Getenv("WEFT_RECORDS_TABLE"),
		CollectionsTable: os.Getenv("WEFT_COLLECTIONS_TABLE"),
		AccountsTable:    os.Getenv("WEFT_ACCOUNTS_TABLE"),
		Path:             os.Getenv("WEFT_SQLITE_PATH"),
	}
	backend := env("WEFT_BACKEND", "dynamo")

	sub, err := store.New(context.Background(), backend, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", backend, "error", err)
		os.Exit(1)
	}

	records := engine.NewRecords(sub, engine.Config{Logger: logger})
	cols := engine.NewCollections(sub, records)
	accounts := engine.NewAccounts(sub, cols)
	handler := api.New(records, cols, accounts, logger)

	addr := env("WEFT_ADDR", ":8080")
	logger.Info("listening", "addr", addr, "backend", backend)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
