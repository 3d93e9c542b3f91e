package packet

import "testing"

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	names := []string{".", "www.example.com.", "a.", "x-y.z."}
	for _, name := range names {
		buf := make([]byte, 512)
		n, err := EncodeName(buf, name)
		if err != nil {
			t.Fatalf("EncodeName(%q) error = %v", name, err)
		}

		d := &decoder{msg: buf[:n], offset: 0}
		got, err := d.decodeName()
		if err != nil {
			t.Fatalf("decodeName() error = %v", err)
		}
		if got != name {
			t.Fatalf("round-trip %q -> %q", name, got)
		}
	}
}

func TestEncodeNameInvalidLabel(t *testing.T) {
	buf := make([]byte, 512)
	_, err := EncodeName(buf, "toolong."+string(make([]byte, 64))+".")
	if err == nil {
		t.Fatal("expected error for over-long label")
	}
}

func TestEncodeMessageBasic(t *testing.T) {
	m := Message{
		Header: Header{ID: 0xAAAA, Flags: FlagQR | FlagAA, QDCount: 1},
		Question: []Question{
			{Name: "www.example.com.", Type: TypeA, Class: ClassIN},
		},
		Answer: []RR{
			{Name: "www.example.com.", Type: TypeA, Class: ClassIN, TTL: 3600, RData: []byte{93, 184, 216, 34}},
		},
	}

	buf := make([]byte, 512)
	n, err := Encode(buf, m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Header.ID != m.Header.ID {
		t.Fatalf("ID = %x, want %x", decoded.Header.ID, m.Header.ID)
	}
	if decoded.Header.ANCount != 1 || len(decoded.Answer) != 1 {
		t.Fatalf("ANCount/len(Answer) = %d/%d, want 1/1", decoded.Header.ANCount, len(decoded.Answer))
	}
	if decoded.Answer[0].Name != "www.example.com." {
		t.Fatalf("answer name = %q", decoded.Answer[0].Name)
	}
}

func TestEncodeMessageTruncatesAtRRBoundary(t *testing.T) {
	m := Message{
		Header:   Header{ID: 1, QDCount: 1},
		Question: []Question{{Name: "example.com.", Type: TypeA, Class: ClassIN}},
	}
	// Stuff far more A records than fit in 512 bytes.
	for i := 0; i < 60; i++ {
		m.Answer = append(m.Answer, RR{
			Name: "example.com.", Type: TypeA, Class: ClassIN, TTL: 60,
			RData: []byte{1, 2, 3, 4},
		})
	}

	buf := make([]byte, 512)
	n, err := Encode(buf, m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if n > 512 {
		t.Fatalf("encoded size %d exceeds 512", n)
	}

	decoded, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() of truncated message error = %v", err)
	}
	if decoded.Header.Flags&FlagTC == 0 {
		t.Fatal("expected TC flag set")
	}
	if int(decoded.Header.ANCount) != len(decoded.Answer) {
		t.Fatalf("ANCount %d != len(Answer) %d", decoded.Header.ANCount, len(decoded.Answer))
	}
	if len(decoded.Answer) >= 60 {
		t.Fatalf("expected truncation, got all %d answers", len(decoded.Answer))
	}
}
