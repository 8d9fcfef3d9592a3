package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes JSON output. A single result is emitted as an object,
// several as an array.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	items  []any
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write buffers a single item for JSON output.
func (w *JSONWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Flush writes the buffered items.
func (w *JSONWriter) Flush() error {
	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}

	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(payload, "", w.indent)
	} else {
		out, err = json.Marshal(payload)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON, one result per line as it
// arrives. Suited to watching a stream of results.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
