// Package store appends normalized messages to the JSON message log.
//
// Every append is a full read-modify-write of one file. Writers for the same
// path share a process-wide mutex and additionally hold an flock on
// "<path>.lock", so at most one append per log is in flight at a time. The
// updated document is written to a temporary file in the same directory and
// renamed over the target: readers see either the previous or the new log,
// never a partial one.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattjoyce/line-webhook/internal/lock"
	"github.com/mattjoyce/line-webhook/internal/message"
)

const previewLen = 30

var (
	pathLocksMu sync.Mutex
	pathLocks   = make(map[string]*sync.Mutex)
)

// rename is swapped in tests to simulate a failed replace.
var rename = os.Rename

// pathLock returns the mutex shared by all writers of path.
func pathLock(path string) *sync.Mutex {
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()

	mu, ok := pathLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		pathLocks[path] = mu
	}
	return mu
}

// Writer appends messages to a single log file.
type Writer struct {
	path   string
	mu     *sync.Mutex
	logger *slog.Logger
}

// New returns a Writer for path. The file and its directory are created on
// the first successful Append.
func New(path string, logger *slog.Logger) *Writer {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	} else {
		path = filepath.Clean(path)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		path:   path,
		mu:     pathLock(path),
		logger: logger,
	}
}

// Path returns the absolute path of the log file.
func (w *Writer) Path() string { return w.path }

// Append adds msg to the end of the log. Any I/O failure is logged and
// returned; the previously committed log is left untouched in that case.
func (w *Writer) Append(msg message.StoredMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.appendLocked(msg); err != nil {
		w.logger.Error("error saving message", "path", w.path, "error", err)
		return err
	}

	w.logger.Info("message saved",
		"user_id", msg.UserID,
		"type", msg.Type,
		"preview", message.Preview(msg.Content, previewLen),
	)
	return nil
}

func (w *Writer) appendLocked(msg message.StoredMessage) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	fl, err := lock.Lock(w.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock message log: %w", err)
	}
	defer fl.Release()

	doc, err := w.readDocument()
	if err != nil {
		return err
	}

	entry, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	doc.Messages = append(doc.Messages, entry)

	data, err := encode(doc)
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}

	return writeFileAtomic(w.path, data, 0o644)
}

// document keeps existing entries as raw JSON so fields this service does
// not know about survive a rewrite.
type document struct {
	Messages []json.RawMessage `json:"messages"`
}

// readDocument loads the committed log. A missing or empty file yields an
// empty document. An unparsable file is logged and replaced by an empty
// document.
func (w *Writer) readDocument() (document, error) {
	empty := document{Messages: []json.RawMessage{}}

	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("read message log: %w", err)
	}
	if len(data) == 0 {
		return empty, nil
	}

	doc, err := decodeDocument(data)
	if err != nil {
		w.logger.Error("invalid JSON in message log, starting new log",
			"path", w.path,
			"size", len(data),
			"error", err,
		)
		return empty, nil
	}
	return doc, nil
}

func decodeDocument(data []byte) (document, error) {
	var raw struct {
		Messages *[]json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return document{}, err
	}
	if raw.Messages == nil {
		return document{}, errors.New(`missing "messages" array`)
	}
	return document{Messages: *raw.Messages}, nil
}

// encode renders the log pretty-printed, without escaping HTML characters
// or non-ASCII text.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads the committed log. Unlike Append it reports a corrupt file as
// an error instead of discarding it.
func (w *Writer) Load() (message.Log, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return message.Log{Messages: []message.StoredMessage{}}, nil
	}
	if err != nil {
		return message.Log{}, fmt.Errorf("read message log: %w", err)
	}
	if len(data) == 0 {
		return message.Log{Messages: []message.StoredMessage{}}, nil
	}

	var log message.Log
	if err := json.Unmarshal(data, &log); err != nil {
		return message.Log{}, fmt.Errorf("decode message log: %w", err)
	}
	if log.Messages == nil {
		log.Messages = []message.StoredMessage{}
	}
	return log, nil
}
