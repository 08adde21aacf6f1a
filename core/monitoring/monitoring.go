// Package monitoring abstracts error reporting for failures that cannot be
// returned to a caller, such as a channel failing in the middle of a mix.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor discards every report.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

// Captured is one report held by a RecordingMonitor.
type Captured struct {
	Err  error
	Tags map[string]string
}

// RecordingMonitor keeps reports in memory. It is used in tests and by the
// status endpoint to expose the most recent failures.
type RecordingMonitor struct {
	mu      sync.Mutex
	entries []Captured
	limit   int
}

// NewRecordingMonitor keeps at most limit reports; zero keeps everything.
func NewRecordingMonitor(limit int) *RecordingMonitor {
	return &RecordingMonitor{limit: limit}
}

func (m *RecordingMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Captured{Err: err, Tags: cp})
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
}

func (m *RecordingMonitor) Flush(time.Duration) {}

// Entries returns a copy of the recorded reports.
func (m *RecordingMonitor) Entries() []Captured {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Captured(nil), m.entries...)
}

// Multi forwards reports to several monitors.
type Multi []Monitor

func (mm Multi) CaptureException(err error, tags map[string]string) {
	for _, m := range mm {
		m.CaptureException(err, tags)
	}
}

func (mm Multi) Flush(d time.Duration) {
	for _, m := range mm {
		m.Flush(d)
	}
}
