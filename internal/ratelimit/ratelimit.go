// Package ratelimit provides optional per-client rate limiting for
// incoming queries, disabled by default and enabled only when the
// operator sets a nonzero queries-per-second budget.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a per-client-IP token bucket. A Limiter with a
// zero QueriesPerSecond allows every query, so callers can construct
// one unconditionally and only pay for the map/lock machinery when a
// limit is actually configured.
type Limiter struct {
	mu              sync.RWMutex
	limitersByIP    map[string]*rate.Limiter
	queriesPerSec   rate.Limit
	burstSize       int
	cleanupInterval time.Duration
	lastCleanup     time.Time
	exemptNets      []*net.IPNet
}

// Config configures a Limiter.
type Config struct {
	// QueriesPerSecond is the sustained per-client rate. Zero disables
	// rate limiting entirely.
	QueriesPerSecond float64
	BurstSize        int
	CleanupInterval  time.Duration
}

// DefaultBurst is used when a nonzero QueriesPerSecond is given
// without an explicit BurstSize.
const DefaultBurst = 2

// DefaultCleanupInterval is used when Config.CleanupInterval is zero.
const DefaultCleanupInterval = 5 * time.Minute

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = DefaultBurst
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &Limiter{
		limitersByIP:    make(map[string]*rate.Limiter),
		queriesPerSec:   rate.Limit(cfg.QueriesPerSecond),
		burstSize:       burst,
		cleanupInterval: cleanup,
		lastCleanup:     time.Now(),
	}
}

// Allow reports whether a query from ip should proceed. It always
// returns true when the limiter was configured with a zero rate.
func (l *Limiter) Allow(ip net.IP) bool {
	if l.queriesPerSec == 0 {
		return true
	}
	if l.isExempt(ip) {
		return true
	}

	ipStr := ip.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > l.cleanupInterval {
		l.cleanup()
	}

	limiter, ok := l.limitersByIP[ipStr]
	if !ok {
		limiter = rate.NewLimiter(l.queriesPerSec, l.burstSize)
		l.limitersByIP[ipStr] = limiter
	}

	return limiter.Allow()
}

// AddExempt adds a network or single address that bypasses rate
// limiting regardless of the configured budget.
func (l *Limiter) AddExempt(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return err
		}
		if ip.To4() != nil {
			ipnet = &net.IPNet{IP: ip, Mask: net.CIDRMask(32, 32)}
		} else {
			ipnet = &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exemptNets = append(l.exemptNets, ipnet)
	return nil
}

func (l *Limiter) isExempt(ip net.IP) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, exempt := range l.exemptNets {
		if exempt.Contains(ip) {
			return true
		}
	}
	return false
}

// cleanup drops every tracked limiter. Must be called with the lock
// held. This is a blunt but cheap approach: a client dropped this way
// simply gets a fresh bucket on its next query.
func (l *Limiter) cleanup() {
	l.limitersByIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}

// Stats reports current limiter bookkeeping.
type Stats struct {
	TrackedClients int
	ExemptNets     int
}

// Stats returns current statistics about the limiter.
func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TrackedClients: len(l.limitersByIP),
		ExemptNets:     len(l.exemptNets),
	}
}
