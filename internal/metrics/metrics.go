package metrics

import (
	"sync"
	"time"
)

// Metrics tracks per-run counters for the scan pipeline. One instance lives
// for the whole process and is exposed via the /metrics monitoring endpoint.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsFetched       int64
	ItemsFromResearch  int64
	DuplicatesRemoved  int64
	MalformedDropped   int64
	ProbesFailed       int64
	SourcesFailed      int64
	ItemsSelected      int64
	ReportsArchived    int64
	EmailsSent         int64
	ResearchFailures   int64

	// Timings
	LastScanDuration    time.Duration
	AverageScanDuration time.Duration
	TotalScanDuration   time.Duration
	ScanCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddItemsFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += int64(n)
}

func (m *Metrics) AddItemsFromResearch(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFromResearch += int64(n)
}

func (m *Metrics) AddDuplicatesRemoved(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesRemoved += int64(n)
}

func (m *Metrics) IncrementMalformedDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MalformedDropped++
}

func (m *Metrics) IncrementProbesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbesFailed++
}

func (m *Metrics) IncrementSourcesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourcesFailed++
}

func (m *Metrics) AddItemsSelected(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsSelected += int64(n)
}

func (m *Metrics) IncrementReportsArchived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReportsArchived++
}

func (m *Metrics) IncrementEmailsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmailsSent++
}

func (m *Metrics) IncrementResearchFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResearchFailures++
}

func (m *Metrics) RecordScanDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastScanDuration = duration
	m.TotalScanDuration += duration
	m.ScanCount++

	if m.ScanCount > 0 {
		m.AverageScanDuration = m.TotalScanDuration / time.Duration(m.ScanCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_fetched":          m.ItemsFetched,
		"items_from_research":    m.ItemsFromResearch,
		"duplicates_removed":     m.DuplicatesRemoved,
		"malformed_dropped":      m.MalformedDropped,
		"probes_failed":          m.ProbesFailed,
		"sources_failed":         m.SourcesFailed,
		"items_selected":         m.ItemsSelected,
		"reports_archived":       m.ReportsArchived,
		"emails_sent":            m.EmailsSent,
		"research_failures":      m.ResearchFailures,
		"last_scan_duration_ms":  m.LastScanDuration.Milliseconds(),
		"avg_scan_duration_ms":   m.AverageScanDuration.Milliseconds(),
		"last_run_time":          m.LastRunTime.Format(time.RFC3339),
		"last_error_time":        m.LastErrorTime.Format(time.RFC3339),
		"last_error":             m.LastError,
		"is_healthy":             m.IsHealthy,
	}
}
