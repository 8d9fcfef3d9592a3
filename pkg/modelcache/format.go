// Package modelcache packages a model's cached artifacts into a single
// portable binary file and restores them, so a model downloaded once can be
// side-loaded onto machines without network access.
package modelcache

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a model cache package file ("MLCP" big-endian).
const Magic uint32 = 0x4D4C4350

// Format limits. A package violating them is rejected up front rather than
// trusted into a huge allocation.
const (
	maxEntries   = 1 << 16
	maxURLLen    = 1 << 16
	maxEntrySize = 8 << 30
)

// Entry is one cached artifact: the URL it was fetched from and its bytes.
type Entry struct {
	URL  string
	Data []byte
}

// Pack writes entries to w in the package format: a magic word, an entry
// count, then per entry a length-prefixed URL and a length-prefixed payload.
// All integers are big-endian.
func Pack(w io.Writer, entries []Entry) error {
	if len(entries) > maxEntries {
		return fmt.Errorf("too many entries: %d", len(entries))
	}

	if err := binary.Write(w, binary.BigEndian, Magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(entries))); err != nil {
		return fmt.Errorf("write entry count: %w", err)
	}

	for i, e := range entries {
		if len(e.URL) > maxURLLen {
			return fmt.Errorf("entry %d: URL too long (%d bytes)", i, len(e.URL))
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(e.URL))); err != nil {
			return fmt.Errorf("entry %d: write URL length: %w", i, err)
		}
		if _, err := io.WriteString(w, e.URL); err != nil {
			return fmt.Errorf("entry %d: write URL: %w", i, err)
		}
		if err := binary.Write(w, binary.BigEndian, uint64(len(e.Data))); err != nil {
			return fmt.Errorf("entry %d: write payload size: %w", i, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return fmt.Errorf("entry %d: write payload: %w", i, err)
		}
	}
	return nil
}

// Unpack reads a package produced by Pack. It fails fast on a bad magic word
// and validates every length before allocating.
func Unpack(r io.Reader) ([]Entry, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a model cache package (magic 0x%08X)", magic)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}
	if count > maxEntries {
		return nil, fmt.Errorf("entry count %d exceeds limit", count)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		var urlLen uint32
		if err := binary.Read(r, binary.BigEndian, &urlLen); err != nil {
			return nil, fmt.Errorf("entry %d: read URL length: %w", i, err)
		}
		if urlLen > maxURLLen {
			return nil, fmt.Errorf("entry %d: URL length %d exceeds limit", i, urlLen)
		}
		urlBuf := make([]byte, urlLen)
		if _, err := io.ReadFull(r, urlBuf); err != nil {
			return nil, fmt.Errorf("entry %d: read URL: %w", i, err)
		}

		var size uint64
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("entry %d: read payload size: %w", i, err)
		}
		if size > maxEntrySize {
			return nil, fmt.Errorf("entry %d: payload size %d exceeds limit", i, size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("entry %d: read payload: %w", i, err)
		}

		entries = append(entries, Entry{URL: string(urlBuf), Data: data})
	}
	return entries, nil
}
