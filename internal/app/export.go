package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sandeepkv93/nagd/internal/config"
	"github.com/sandeepkv93/nagd/internal/export"
	"github.com/sandeepkv93/nagd/internal/journal"
	"github.com/sandeepkv93/nagd/internal/storage"
)

// Export writes the configured journal log to outPath ("-" for stdout).
func Export(ctx context.Context, configPath, format, outPath string, stdout io.Writer) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var log journal.Log
	switch cfg.JournalBackend {
	case config.BackendSQLite:
		repo, err := storage.OpenSQLite(cfg.JournalDB)
		if err != nil {
			return fmt.Errorf("open journal db: %w", err)
		}
		defer repo.Close()
		log = journal.NewSQLiteLog(repo, loc)
	default:
		log = journal.NewFileLog(cfg.JournalFolder, loc)
	}

	entries, err := log.Entries(ctx)
	if err != nil {
		return err
	}

	if outPath == "" || outPath == "-" {
		return export.Write(stdout, f, entries)
	}
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := export.Write(out, f, entries); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
