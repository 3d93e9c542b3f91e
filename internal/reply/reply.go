// Package reply builds an authoritative response from a query and a
// loaded record set, classifying matches into the Answer, Authority,
// and Additional sections and truncating to fit a 512-byte UDP
// datagram when necessary.
package reply

import (
	"github.com/coredomain/dnsrelayd/internal/index"
	"github.com/coredomain/dnsrelayd/internal/packet"
	"github.com/coredomain/dnsrelayd/internal/zone"
)

// maxUDPSize is the classic DNS-over-UDP payload ceiling this server
// targets; it never advertises or honors EDNS(0).
const maxUDPSize = 512

// Build matches every question in query against records by name
// only — type and class are not consulted. Every matching
// record is classified by its own type: A records become answers, NS
// records become authority records, everything else becomes an
// additional record. Build reports false if there is no question to
// answer or no record in the set matches any question's name, in
// which case the caller should forward the query upstream instead.
func Build(query *packet.Message, records zone.Set) (*packet.Message, bool) {
	if len(query.Question) == 0 {
		return nil, false
	}

	resp := &packet.Message{
		Header: packet.Header{
			ID:      query.Header.ID,
			Flags:   packet.FlagQR | packet.FlagAA | (query.Header.Flags & packet.FlagRD),
			QDCount: uint16(len(query.Question)),
		},
		Question: query.Question,
	}

	for _, q := range query.Question {
		for _, rec := range index.AllMatches(records, q.Name) {
			rr := rec.ToRR()
			switch rec.Type {
			case packet.TypeA:
				resp.Answer = append(resp.Answer, rr)
			case packet.TypeNS:
				resp.Authority = append(resp.Authority, rr)
			default:
				resp.Additional = append(resp.Additional, rr)
			}
		}
	}

	if len(resp.Answer)+len(resp.Authority)+len(resp.Additional) == 0 {
		return nil, false
	}

	return resp, true
}

// Encode serializes resp into buf, truncating per RFC 1035 §4.1.1 and
// setting the TC flag if it does not fit in maxUDPSize bytes.
func Encode(resp *packet.Message) ([]byte, error) {
	buf := make([]byte, maxUDPSize)
	n, err := packet.Encode(buf, *resp)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
