package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore appends records to a JSON lines file rotated by lumberjack.
// Rotated files share the base path as prefix and are read back by Query.
type JSONLStore struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
}

// RotationOptions bounds the journal on disk. Zero values keep lumberjack's
// defaults (100 MB, unlimited backups and age).
type RotationOptions struct {
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// NewJSONLStore creates the parent directory of path and opens the journal.
func NewJSONLStore(path string, opts RotationOptions) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &JSONLStore{writer: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *JSONLStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.writer).Encode(rec)
}

// Query reads the active file and every rotated backup. Malformed lines are
// skipped. Results are ordered by timestamp.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	prefix := s.path[:len(s.path)-len(ext)]
	files, err := filepath.Glob(prefix + "*")
	if err != nil {
		return nil, err
	}
	var res []Record
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		recs, err := scan(f, q)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		res = append(res, recs...)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func scan(r io.Reader, q Query) ([]Record, error) {
	var res []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if q.Match(rec) {
			res = append(res, rec)
		}
	}
	return res, scanner.Err()
}

// Close closes the underlying writer.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
