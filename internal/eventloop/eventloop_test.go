package eventloop

import (
	"net"
	"testing"
	"time"

	"github.com/coredomain/dnsrelayd/internal/packet"
	"github.com/coredomain/dnsrelayd/internal/zone"
)

func encodeQuery(t *testing.T, id uint16, name string) []byte {
	t.Helper()
	buf := make([]byte, 512)
	n, err := packet.Encode(buf, packet.Message{
		Header:   packet.Header{ID: id, Flags: packet.FlagRD, QDCount: 1},
		Question: []packet.Question{{Name: name, Type: packet.TypeA, Class: packet.ClassIN}},
	})
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	return buf[:n]
}

func TestServerAnswersAuthoritatively(t *testing.T) {
	upstream, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket upstream: %v", err)
	}
	defer upstream.Close()

	records := zone.Set{
		{Name: "example.com.", Type: packet.TypeA, Class: packet.ClassIN, TTL: 60, RData: []byte{1, 2, 3, 4}},
	}

	srv, err := New(Config{
		ListenAddr:        "127.0.0.1:0",
		UpstreamAddr:      upstream.LocalAddr().String(),
		Records:           records,
		ForwarderTTL:      time.Second,
		ForwarderCapacity: 16,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Start()
	defer srv.Stop()

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket client: %v", err)
	}
	defer client.Close()

	query := encodeQuery(t, 0xBEEF, "example.com.")
	if _, err := client.WriteTo(query, srv.clientConn.LocalAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, _, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}

	resp, err := packet.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Header.ID != 0xBEEF {
		t.Fatalf("ID = %x, want 0xBEEF", resp.Header.ID)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("len(Answer) = %d, want 1", len(resp.Answer))
	}
}

func TestServerForwardsUnmatchedQuery(t *testing.T) {
	upstreamConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket upstream: %v", err)
	}
	defer upstreamConn.Close()

	srv, err := New(Config{
		ListenAddr:        "127.0.0.1:0",
		UpstreamAddr:      upstreamConn.LocalAddr().String(),
		Records:           nil,
		ForwarderTTL:      time.Second,
		ForwarderCapacity: 16,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Start()
	defer srv.Stop()

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket client: %v", err)
	}
	defer client.Close()

	query := encodeQuery(t, 0x1111, "nowhere.example.")
	if _, err := client.WriteTo(query, srv.clientConn.LocalAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	// The upstream should receive the forwarded query verbatim.
	upstreamConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, fromClient, err := upstreamConn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("upstream ReadFrom() error = %v", err)
	}

	decoded, err := packet.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Header.ID != 0x1111 {
		t.Fatalf("forwarded ID = %x, want 0x1111", decoded.Header.ID)
	}

	// Now have the upstream answer it, and the client should get the
	// reply relayed back verbatim.
	answer := make([]byte, 512)
	m, err := packet.Encode(answer, packet.Message{
		Header:   packet.Header{ID: 0x1111, Flags: packet.FlagQR, QDCount: 1, ANCount: 1},
		Question: decoded.Question,
		Answer: []packet.RR{
			{Name: "nowhere.example.", Type: packet.TypeA, Class: packet.ClassIN, TTL: 30, RData: []byte{9, 9, 9, 9}},
		},
	})
	if err != nil {
		t.Fatalf("encode upstream answer: %v", err)
	}
	if _, err := upstreamConn.WriteTo(answer[:m], fromClient); err != nil {
		t.Fatalf("upstream WriteTo() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	out := make([]byte, 512)
	n, _, err = client.ReadFrom(out)
	if err != nil {
		t.Fatalf("client ReadFrom() error = %v", err)
	}
	relayed, err := packet.Decode(out[:n])
	if err != nil {
		t.Fatalf("Decode() relayed reply error = %v", err)
	}
	if relayed.Header.ID != 0x1111 {
		t.Fatalf("relayed ID = %x, want 0x1111", relayed.Header.ID)
	}
	if len(relayed.Answer) != 1 || string(relayed.Answer[0].RData) != string([]byte{9, 9, 9, 9}) {
		t.Fatalf("relayed Answer = %+v", relayed.Answer)
	}
}
