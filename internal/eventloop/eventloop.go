// Package eventloop drives the server's two sockets (the client-facing
// listener and the upstream forwarding socket) and ties together the
// wire codec, zone lookup, reply builder, forwarder table, and rate
// limiter into the query-handling path.
//
// A single-threaded select() loop over both sockets would mean no
// query or reply is ever processed concurrently with another and no
// state needs locking. Go has no direct equivalent for
// select()-over-blocking-sockets, so this package uses two reader
// goroutines — one per socket — that each read with a short deadline
// and forward what they read over an unbuffered channel to a single
// consumer goroutine. The consumer is the only goroutine that ever
// touches the forwarder table or issues a reply, so no shared mutable
// state crosses goroutines even though three are involved instead of
// one.
package eventloop

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coredomain/dnsrelayd/internal/forwarder"
	"github.com/coredomain/dnsrelayd/internal/metrics"
	"github.com/coredomain/dnsrelayd/internal/packet"
	"github.com/coredomain/dnsrelayd/internal/ratelimit"
	"github.com/coredomain/dnsrelayd/internal/reply"
	"github.com/coredomain/dnsrelayd/internal/zone"
)

func beUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// readDeadline bounds each socket read so both reader goroutines wake
// up often enough to notice shutdown without needing to interrupt a
// blocking read directly.
const readDeadline = time.Second

// maxDatagramSize is large enough for any UDP DNS datagram this server
// will ever receive or relay; it never negotiates EDNS(0) so 512 bytes
// would do for queries, but the upstream's replies are unconstrained.
const maxDatagramSize = 4096

// Config configures a Server.
type Config struct {
	ListenAddr   string
	UpstreamAddr string
	Records      zone.Set

	ForwarderTTL      time.Duration
	ForwarderCapacity int

	RateLimiter *ratelimit.Limiter
}

type datagram struct {
	data []byte
	addr net.Addr
}

// Server answers authoritative queries from Records directly and
// forwards everything else to the configured upstream resolver,
// relaying the eventual reply back to the original client.
type Server struct {
	cfg Config

	clientConn   net.PacketConn
	upstreamConn net.PacketConn
	upstreamAddr net.Addr

	table *forwarder.Table

	// lastEvictions/lastExpirations hold the forwarder table's
	// cumulative counters as of the last metrics sync, so the counter
	// deltas pushed to Prometheus stay correct across calls. Touched
	// only by the single consumer goroutine, so no lock is needed.
	lastEvictions   float64
	lastExpirations float64

	queries   atomic.Uint64
	answers   atomic.Uint64
	forwards  atomic.Uint64
	errors    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New resolves the upstream address and binds both sockets but does
// not start serving; call Start for that.
func New(cfg Config) (*Server, error) {
	upstreamAddr, err := net.ResolveUDPAddr("udp", cfg.UpstreamAddr)
	if err != nil {
		return nil, err
	}

	clientConn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	upstreamConn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		clientConn.Close()
		return nil, err
	}

	var key0, key1 [8]byte
	if _, err := rand.Read(key0[:]); err != nil {
		clientConn.Close()
		upstreamConn.Close()
		return nil, err
	}
	if _, err := rand.Read(key1[:]); err != nil {
		clientConn.Close()
		upstreamConn.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:          cfg,
		clientConn:   clientConn,
		upstreamConn: upstreamConn,
		upstreamAddr: upstreamAddr,
		table: forwarder.New(cfg.ForwarderTTL, cfg.ForwarderCapacity,
			beUint64(key0[:]), beUint64(key1[:])),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the reader and consumer goroutines and returns
// immediately.
func (s *Server) Start() {
	clientCh := make(chan datagram)
	upstreamCh := make(chan datagram)

	s.wg.Add(3)
	go s.readLoop(s.clientConn, clientCh)
	go s.readLoop(s.upstreamConn, upstreamCh)
	go s.consume(clientCh, upstreamCh)
}

// Stop cancels the context, closes both sockets to unblock any
// in-progress read, and waits for every goroutine to exit.
func (s *Server) Stop() {
	s.cancel()
	s.clientConn.Close()
	s.upstreamConn.Close()
	s.wg.Wait()
}

// Stats reports cumulative counters.
type Stats struct {
	Queries  uint64
	Answers  uint64
	Forwards uint64
	Errors   uint64
}

// Stats returns the server's cumulative counters.
func (s *Server) Stats() Stats {
	return Stats{
		Queries:  s.queries.Load(),
		Answers:  s.answers.Load(),
		Forwards: s.forwards.Load(),
		Errors:   s.errors.Load(),
	}
}

func (s *Server) readLoop(conn net.PacketConn, out chan<- datagram) {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		msg := make([]byte, n)
		copy(msg, buf[:n])

		select {
		case out <- datagram{data: msg, addr: addr}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) consume(clientCh, upstreamCh <-chan datagram) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case dg := <-clientCh:
			s.handleClientDatagram(dg)
		case dg := <-upstreamCh:
			s.handleUpstreamDatagram(dg)
		}
	}
}

// syncForwarderMetrics republishes the forwarder table's live gauges
// and cumulative counters to Prometheus. Called after every Register
// and TakeMatching, both of which can move those numbers.
func (s *Server) syncForwarderMetrics() {
	metrics.ForwardsInFlight.Set(float64(s.table.Len()))
	st := s.table.Stats()
	metrics.ForwarderEvictionsTotal.Add(float64(st.Evictions) - s.lastEvictions)
	metrics.ForwarderExpirationsTotal.Add(float64(st.Expirations) - s.lastExpirations)
	s.lastEvictions = float64(st.Evictions)
	s.lastExpirations = float64(st.Expirations)
}

func (s *Server) handleClientDatagram(dg datagram) {
	s.queries.Add(1)

	query, err := packet.Decode(dg.data)
	if err != nil {
		s.errors.Add(1)
		metrics.DecodeErrorsTotal.Inc()
		return
	}

	if s.cfg.RateLimiter != nil {
		if host, _, err := net.SplitHostPort(dg.addr.String()); err == nil {
			if ip := net.ParseIP(host); ip != nil && !s.cfg.RateLimiter.Allow(ip) {
				metrics.RateLimitedTotal.Inc()
				return
			}
		}
	}

	if resp, ok := reply.Build(query, s.cfg.Records); ok {
		out, err := reply.Encode(resp)
		if err != nil {
			s.errors.Add(1)
			return
		}
		if _, err := s.clientConn.WriteTo(out, dg.addr); err != nil {
			log.Printf("eventloop: write reply to %s: %v", dg.addr, err)
			return
		}
		s.answers.Add(1)
		metrics.QueriesTotal.WithLabelValues("answered").Inc()
		return
	}

	s.table.Register(query.Header.ID, dg.addr)
	s.syncForwarderMetrics()
	if _, err := s.upstreamConn.WriteTo(dg.data, s.upstreamAddr); err != nil {
		log.Printf("eventloop: forward to upstream: %v", err)
		return
	}
	s.forwards.Add(1)
	metrics.QueriesTotal.WithLabelValues("forwarded").Inc()
}

func (s *Server) handleUpstreamDatagram(dg datagram) {
	hdr, err := packet.DecodeHeader(dg.data)
	if err != nil {
		s.errors.Add(1)
		metrics.DecodeErrorsTotal.Inc()
		return
	}

	clientAddr, ok := s.table.TakeMatching(hdr.ID)
	s.syncForwarderMetrics()
	if !ok {
		// No client is waiting on this transaction ID: either it
		// already timed out or this is an unsolicited datagram.
		return
	}

	if _, err := s.clientConn.WriteTo(dg.data, clientAddr); err != nil {
		log.Printf("eventloop: relay upstream reply to %s: %v", clientAddr, err)
		return
	}
	s.answers.Add(1)
}
