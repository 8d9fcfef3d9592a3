package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes YAML output. A single result is emitted as a document,
// several as a sequence.
type YAMLWriter struct {
	w     *bufio.Writer
	items []any
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write buffers a single item.
func (w *YAMLWriter) Write(data any) error {
	w.items = append(w.items, data)
	return nil
}

// Flush writes the buffered items as YAML.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}
	if err := encoder.Encode(payload); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
