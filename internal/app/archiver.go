package app

import (
	"github.com/me2resh/me2resh-daily/internal/config"
	"github.com/me2resh/me2resh-daily/internal/report"
	"github.com/me2resh/me2resh-daily/internal/storage"
)

// Archiver is the unified interface over the report storage backends.
type Archiver interface {
	Store(result report.ScanResult) error
	Load(date string) (report.ScanResult, error)
}

func newArchiver(cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Mode {
	case "off":
		return nil, nil
	case "postgres":
		return storage.NewPostgresArchive(cfg.DSN)
	default:
		return storage.NewFileArchive(cfg.FilePath), nil
	}
}
