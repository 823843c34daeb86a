package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/llm"
	"github.com/hyperifyio/reportbuilder/internal/metrics"
)

// TimestampLayout names run directories and output files.
const TimestampLayout = "20060102_150405"

var nonWord = regexp.MustCompile(`\W+`)

// Slug replaces runs of non-word characters with underscores and caps the
// result at 50 bytes.
func Slug(topic string) string {
	s := nonWord.ReplaceAllString(topic, "_")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// Run carries the state of one pipeline invocation: identity, archive
// location, the global seen-URL set and the audit log. It is safe for use
// from multiple goroutines but must never be shared between runs.
type Run struct {
	ID         string
	Timestamp  string
	Slug       string
	ArchiveDir string
	Model      llm.ModelConfig
	Metrics    *metrics.Recorder

	mu      sync.Mutex
	seen    map[string]struct{}
	logFile *os.File
	now     func() time.Time
}

// New creates the archive directory <base>/<timestamp>_<slug> and opens the
// audit log run_<YYYYMMDD>.log inside it.
func New(base, topic string, now time.Time, model llm.ModelConfig) (*Run, error) {
	id := uuid.NewString()
	ts := now.Format(TimestampLayout)
	slug := Slug(topic)
	dir := filepath.Join(base, ts+"_"+slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	logPath := filepath.Join(dir, "run_"+now.Format("20060102")+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Run{
		ID:         id,
		Timestamp:  ts,
		Slug:       slug,
		ArchiveDir: dir,
		Model:      model,
		Metrics:    metrics.New(id),
		seen:       make(map[string]struct{}),
		logFile:    f,
		now:        time.Now,
	}, nil
}

// Logf appends a timestamped line to the audit log and mirrors it at debug
// level. Write failures are reported through zerolog only. A nil Run logs
// through zerolog alone.
func (r *Run) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r == nil {
		log.Debug().Msg(msg)
		return
	}
	log.Debug().Str("run", r.ID).Msg(msg)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logFile == nil {
		return
	}
	line := "[" + r.now().Format(time.RFC3339Nano) + "] " + msg + "\n"
	if _, err := r.logFile.WriteString(line); err != nil {
		log.Warn().Err(err).Msg("audit log write failed")
	}
}

// Seen reports whether url was already marked.
func (r *Run) Seen(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[url]
	return ok
}

// MarkSeen records url and reports whether it was new. Callers mark before
// fetching so a failed fetch is not attempted again.
func (r *Run) MarkSeen(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[url]; ok {
		return false
	}
	r.seen[url] = struct{}{}
	return true
}

// SeenCount returns the number of distinct URLs marked so far.
func (r *Run) SeenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// WriteArtifact stores content under name inside the archive directory.
func (r *Run) WriteArtifact(name, content string) error {
	path := filepath.Join(r.ArchiveDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.Logf("Error writing artifact %s: %v", name, err)
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}

// Close writes the metrics textfile and closes the audit log.
func (r *Run) Close() error {
	var firstErr error
	if err := r.Metrics.WriteTextfile(filepath.Join(r.ArchiveDir, "metrics.prom")); err != nil {
		firstErr = err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logFile != nil {
		if err := r.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.logFile = nil
	}
	return firstErr
}
