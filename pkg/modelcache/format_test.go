package modelcache

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestPackUnpack_RoundTrip(t *testing.T) {
	entries := []Entry{
		{URL: "https://cdn.example.com/model/config.json", Data: []byte(`{"layers":24}`)},
		{URL: "https://cdn.example.com/model/weights-0.bin", Data: bytes.Repeat([]byte{0xAB}, 4096)},
		{URL: "https://cdn.example.com/model/tokenizer.json", Data: []byte{}},
	}

	var buf bytes.Buffer
	if err := Pack(&buf, entries); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range entries {
		if got[i].URL != e.URL {
			t.Errorf("entry %d: URL %q != %q", i, got[i].URL, e.URL)
		}
		if !bytes.Equal(got[i].Data, e.Data) {
			t.Errorf("entry %d: payload mismatch (%d vs %d bytes)", i, len(got[i].Data), len(e.Data))
		}
	}
}

func TestPack_EmptySet(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(&buf, nil); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestPack_HeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Pack(&buf, []Entry{{URL: "u", Data: []byte("d")}}); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	raw := buf.Bytes()

	if got := binary.BigEndian.Uint32(raw[0:4]); got != Magic {
		t.Errorf("magic: expected 0x%08X, got 0x%08X", Magic, got)
	}
	if got := binary.BigEndian.Uint32(raw[4:8]); got != 1 {
		t.Errorf("count: expected 1, got %d", got)
	}
	if got := binary.BigEndian.Uint32(raw[8:12]); got != 1 {
		t.Errorf("url length: expected 1, got %d", got)
	}
	if raw[12] != 'u' {
		t.Errorf("url byte: expected 'u', got %q", raw[12])
	}
	if got := binary.BigEndian.Uint64(raw[13:21]); got != 1 {
		t.Errorf("payload size: expected 1, got %d", got)
	}
	if raw[21] != 'd' {
		t.Errorf("payload byte: expected 'd', got %q", raw[21])
	}
}

func TestUnpack_RejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(0xDEADBEEF))
	_ = binary.Write(&buf, binary.BigEndian, uint32(0))

	if _, err := Unpack(&buf); err == nil {
		t.Fatal("expected rejection of bad magic")
	}
}

func TestUnpack_RejectsTruncatedInput(t *testing.T) {
	entries := []Entry{{URL: "https://example.com/a", Data: []byte("payload")}}
	var buf bytes.Buffer
	if err := Pack(&buf, entries); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	raw := buf.Bytes()
	for _, cut := range []int{2, 6, 10, len(raw) - 1} {
		if _, err := Unpack(bytes.NewReader(raw[:cut])); err == nil {
			t.Errorf("expected error for input truncated at %d bytes", cut)
		}
	}
}

func TestUnpack_RejectsOversizedCounts(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, Magic)
	_ = binary.Write(&buf, binary.BigEndian, uint32(maxEntries+1))

	if _, err := Unpack(&buf); err == nil {
		t.Fatal("expected rejection of oversized entry count")
	}
}
