package output

import (
	"bufio"
	"fmt"
	"io"
)

// TextWriter writes just the result text, one result per block, so output
// pipes cleanly into other tools.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write writes a single item. Results print their text; anything else prints
// with its default formatting.
func (w *TextWriter) Write(data any) error {
	var err error
	switch v := data.(type) {
	case Result:
		_, err = fmt.Fprintln(w.w, v.Text)
	case *Result:
		_, err = fmt.Fprintln(w.w, v.Text)
	default:
		_, err = fmt.Fprintln(w.w, v)
	}
	if err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.Flush()
}
