// Package zone loads a record set from a textual zone description — a
// BIND-style subset (directives plus A/NS/CNAME records), plus a
// supplemental YAML format — into the ordered, opaque-rdata Record
// model the wire codec and reply builder share.
package zone

import "github.com/coredomain/dnsrelayd/internal/packet"

// Record is one resource record in a record set. Unlike miekg/dns's
// typed dns.RR family, RData is always opaque bytes: the loader never
// interprets rdata it didn't just build itself, and the reply builder
// never re-parses it, matching the wire codec's own promise to leave
// rdata untouched.
type Record struct {
	Name     string
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	RData    []byte
}

// ToRR converts a Record to the codec's wire RR type.
func (r Record) ToRR() packet.RR {
	return packet.RR{
		Name:     r.Name,
		Type:     r.Type,
		Class:    r.Class,
		TTL:      r.TTL,
		RDLength: r.RDLength,
		RData:    r.RData,
	}
}

// Set is an ordered record set, insertion order preserved, as loaded
// from a zone file. It is owned by whoever loaded it for the process
// lifetime and is read-only afterward.
type Set []Record
