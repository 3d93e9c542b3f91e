package index

import (
	"testing"

	"github.com/coredomain/dnsrelayd/internal/packet"
	"github.com/coredomain/dnsrelayd/internal/zone"
)

func sampleRecords() zone.Set {
	return zone.Set{
		{Name: "www.example.com.", Type: packet.TypeA, RData: []byte{1, 1, 1, 1}},
		{Name: "example.com.", Type: packet.TypeNS, RData: []byte{0}},
		{Name: "www.example.com.", Type: packet.TypeA, RData: []byte{2, 2, 2, 2}},
		{Name: "other.example.com.", Type: packet.TypeA, RData: []byte{3, 3, 3, 3}},
	}
}

func TestFindNextMatchFromStart(t *testing.T) {
	records := sampleRecords()
	idx, ok := FindNextMatch(records, "www.example.com.", -1)
	if !ok || idx != 0 {
		t.Fatalf("FindNextMatch() = (%d, %v), want (0, true)", idx, ok)
	}
}

func TestFindNextMatchContinuesAfterPrevious(t *testing.T) {
	records := sampleRecords()
	idx, ok := FindNextMatch(records, "www.example.com.", 0)
	if !ok || idx != 2 {
		t.Fatalf("FindNextMatch() = (%d, %v), want (2, true)", idx, ok)
	}
}

func TestFindNextMatchExhausted(t *testing.T) {
	records := sampleRecords()
	_, ok := FindNextMatch(records, "www.example.com.", 2)
	if ok {
		t.Fatal("FindNextMatch() found a match past the last one")
	}
}

func TestFindNextMatchNoMatch(t *testing.T) {
	records := sampleRecords()
	_, ok := FindNextMatch(records, "nowhere.example.com.", -1)
	if ok {
		t.Fatal("FindNextMatch() unexpectedly matched")
	}
}

func TestAllMatches(t *testing.T) {
	records := sampleRecords()
	matches := AllMatches(records, "www.example.com.")
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if string(matches[0].RData) != string([]byte{1, 1, 1, 1}) {
		t.Fatalf("matches[0].RData = %v", matches[0].RData)
	}
	if string(matches[1].RData) != string([]byte{2, 2, 2, 2}) {
		t.Fatalf("matches[1].RData = %v", matches[1].RData)
	}
}

func TestAllMatchesEmpty(t *testing.T) {
	records := sampleRecords()
	matches := AllMatches(records, "nope.example.com.")
	if matches != nil {
		t.Fatalf("AllMatches() = %v, want nil", matches)
	}
}
