// Package resultio implements the minimal file-writing collaborator the
// base spec allows: an atomic JSONL line appender and a run-directory
// writer that lays out one intervention run's artifacts on disk. Nothing
// here is a hard dependency of the simulator core — callers use these
// writers directly, and RunDirWriter also satisfies the narrow ResultSink
// interface.
package resultio

import (
	"encoding/json"
	"os"
	"sync"

	simerrors "github.com/kart-io/forecastsim/errors"
)

// JSONLWriter appends one JSON-encoded line per call to a single
// O_APPEND file, serializing concurrent writers so each line lands
// atomically relative to the others.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
}

// OpenJSONLWriter opens (creating if necessary) path for append-only
// JSONL writing.
func OpenJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidConfig, "open jsonl file").
			WithComponent("resultio").WithContext("path", path)
	}
	return &JSONLWriter{file: f}, nil
}

// WriteLine marshals v and appends it as one line, holding the writer's
// mutex for the duration of the write so concurrent batch runs never
// interleave partial lines.
func (w *JSONLWriter) WriteLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return simerrors.Wrap(err, simerrors.CodeInternal, "marshal jsonl record").WithComponent("resultio")
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(data); err != nil {
		return simerrors.Wrap(err, simerrors.CodeInternal, "write jsonl line").WithComponent("resultio")
	}
	return nil
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
