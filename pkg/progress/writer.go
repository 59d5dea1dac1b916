package progress

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Record envelope types for JSONL output. These follow the pattern:
// efiling.<type>.v<version>
const (
	// TypeRecordProgress identifies progress event records.
	TypeRecordProgress = "efiling.progress.v1"

	// TypeRecordSummary identifies final run summary records.
	TypeRecordSummary = "efiling.summary.v1"
)

// Record is the envelope for JSONL output on the CLI run path.
//
// Each line is a self-contained JSON object that can be parsed
// independently of its neighbors.
type Record struct {
	// Type identifies the record type (e.g., "efiling.progress.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was written (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this filing run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// SummaryRecord is the data payload for the final summary line.
type SummaryRecord struct {
	CaseFormID int    `json:"case_form_id"`
	FormCode   string `json:"form_code"`
	Outcome    string `json:"outcome"`
	Events     int    `json:"events"`
	Warnings   int    `json:"warnings"`
	DurationMS int64  `json:"duration_ms"`
}

// JSONLWriter renders progress events as newline-delimited JSON.
//
// JSONLWriter is safe for concurrent use. Writes are serialized with a
// mutex so lines are never interleaved.
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a writer that tags every record with runID.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID}
}

// WriteEvent emits one progress event record.
func (jw *JSONLWriter) WriteEvent(e Event) error {
	return jw.writeRecord(TypeRecordProgress, e)
}

// WriteSummary emits the final summary record.
func (jw *JSONLWriter) WriteSummary(sum *SummaryRecord) error {
	return jw.writeRecord(TypeRecordSummary, sum)
}

// Close marks the writer closed. Further writes return ErrWriterClosed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	rec := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  payload,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	_, err = jw.w.Write(line)
	return err
}
