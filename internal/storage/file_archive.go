package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/me2resh/me2resh-daily/internal/report"
)

// FileArchive persists each run's ScanResult as a dated JSON document under
// one directory, with latest.json always pointing at the newest run. This is
// the static report archive that the email links back to.
type FileArchive struct {
	dir string
}

func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{dir: dir}
}

// Store writes <dir>/<date>.json and refreshes latest.json. A rerun for the
// same date overwrites the earlier document.
func (fa *FileArchive) Store(result report.ScanResult) error {
	if err := os.MkdirAll(fa.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	dated := filepath.Join(fa.dir, result.Date+".json")
	if err := os.WriteFile(dated, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	latest := filepath.Join(fa.dir, "latest.json")
	if err := os.WriteFile(latest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write latest report: %w", err)
	}

	return nil
}

// Load reads an archived report by date ("2006-01-02").
func (fa *FileArchive) Load(date string) (report.ScanResult, error) {
	var result report.ScanResult

	data, err := os.ReadFile(filepath.Join(fa.dir, date+".json"))
	if err != nil {
		return result, fmt.Errorf("failed to read archived report: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal archived report: %w", err)
	}
	return result, nil
}
