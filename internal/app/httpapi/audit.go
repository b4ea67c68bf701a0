package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errRateLimited  = errors.New("rate limit exceeded")
)

// AuditEntry is one recorded request.
type AuditEntry struct {
	Time       time.Time `json:"time"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// auditLog keeps a bounded in-memory window of request audit entries and
// optionally forwards each one to a sink.
type auditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	max     int
	sink    auditSink
}

type auditSink interface {
	Write(entry AuditEntry) error
}

func newAuditLog(max int, sink auditSink) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max, sink: sink}
}

func (l *auditLog) add(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; never impacts the request flow.
		_ = l.sink.Write(entry)
	}
}

func (l *auditLog) list() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// statusRecorder captures the status code the wrapped handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestAudit records method, path and status for every handled request.
func requestAudit(next http.Handler, audits *auditLog) http.Handler {
	if audits == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		audits.add(AuditEntry{
			Time:       time.Now().UTC(),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})
	})
}

// AuditLog is the exported wrapper handed to the server entrypoint.
type AuditLog struct {
	inner *auditLog
}

// Middleware wraps next so every handled request lands in the log.
func (l *AuditLog) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return requestAudit(next, l.inner)
}

// Recent returns up to limit of the newest recorded entries, oldest first.
// A non-positive limit returns everything retained.
func (l *AuditLog) Recent(limit int) []AuditEntry {
	entries := l.inner.list()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// NewAuditLog creates a request audit log. When path is non-empty, entries
// are also appended to that file as JSONL.
func NewAuditLog(max int, path string) (*AuditLog, error) {
	sink, err := newFileAuditSink(path)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return &AuditLog{inner: newAuditLog(max, nil)}, nil
	}
	return &AuditLog{inner: newAuditLog(max, sink)}, nil
}

// fileAuditSink appends audit entries as JSONL.
type fileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

func newFileAuditSink(path string) (*fileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &fileAuditSink{file: f}, nil
}

func (s *fileAuditSink) Write(entry AuditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = s.file.Write(line)
	return err
}
