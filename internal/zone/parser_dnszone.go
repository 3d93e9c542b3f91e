package zone

import (
	"fmt"
	"net"
	"os"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"

	"github.com/coredomain/dnsrelayd/internal/packet"
)

// dnsZoneFile is the supplemental YAML zone format, a richer alternative
// to the BIND-style text format for operators who'd rather hand-edit
// structured data. It covers the same three record types the rest of
// this package supports (A, NS, CNAME); keys for any other record type
// are silently ignored when the YAML is decoded.
type dnsZoneFile struct {
	Zone    dnsZoneSection             `yaml:"zone"`
	Records map[string]dnsRecordEntry  `yaml:"records"`
}

type dnsZoneSection struct {
	Name string `yaml:"name"`
	TTL  uint32 `yaml:"ttl,omitempty"`
}

type dnsRecordEntry struct {
	A     interface{} `yaml:"A,omitempty"`
	NS    interface{} `yaml:"NS,omitempty"`
	CNAME string      `yaml:"CNAME,omitempty"`
	TTL   uint32       `yaml:"ttl,omitempty"`
}

// LoadDNSZoneFile parses a .dnszone YAML file into an ordered record
// set, using the same Record model the BIND-style loader produces.
func LoadDNSZoneFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var zf dnsZoneFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("parse dnszone YAML: %w", err)
	}

	origin := dns.Fqdn(zf.Zone.Name)
	ttl := zf.Zone.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}

	var records Set
	for owner, entry := range zf.Records {
		recordTTL := ttl
		if entry.TTL > 0 {
			recordTTL = entry.TTL
		}
		fqdn := fullyQualify(owner, origin)

		if err := appendA(&records, fqdn, entry.A, recordTTL); err != nil {
			return nil, fmt.Errorf("records[%s].A: %w", owner, err)
		}
		if err := appendNS(&records, fqdn, entry.NS, recordTTL); err != nil {
			return nil, fmt.Errorf("records[%s].NS: %w", owner, err)
		}
		if entry.CNAME != "" {
			if err := appendCNAME(&records, fqdn, entry.CNAME, recordTTL); err != nil {
				return nil, fmt.Errorf("records[%s].CNAME: %w", owner, err)
			}
		}
	}

	return records, nil
}

// fullyQualify mirrors completeName's "@" and trailing-dot rules using
// miekg/dns's FQDN helper for the common case.
func fullyQualify(owner, origin string) string {
	if owner == "@" {
		return origin
	}
	return dns.Fqdn(owner + "." + origin)
}

func appendA(records *Set, owner string, data interface{}, ttl uint32) error {
	if data == nil {
		return nil
	}
	for _, ipStr := range toStringList(data) {
		ip := net.ParseIP(ipStr)
		v4 := ip.To4()
		if v4 == nil {
			return fmt.Errorf("invalid IPv4 address: %s", ipStr)
		}
		*records = append(*records, Record{
			Name: owner, Type: packet.TypeA, Class: packet.ClassIN,
			TTL: ttl, RDLength: 4, RData: append([]byte(nil), v4...),
		})
	}
	return nil
}

func appendNS(records *Set, owner string, data interface{}, ttl uint32) error {
	if data == nil {
		return nil
	}
	for _, ns := range toStringList(data) {
		rdata, err := encodeTargetName(dns.Fqdn(ns))
		if err != nil {
			return err
		}
		*records = append(*records, Record{
			Name: owner, Type: packet.TypeNS, Class: packet.ClassIN,
			TTL: ttl, RDLength: uint16(len(rdata)), RData: rdata,
		})
	}
	return nil
}

func appendCNAME(records *Set, owner, target string, ttl uint32) error {
	rdata, err := encodeTargetName(dns.Fqdn(target))
	if err != nil {
		return err
	}
	*records = append(*records, Record{
		Name: owner, Type: packet.TypeCNAME, Class: packet.ClassIN,
		TTL: ttl, RDLength: uint16(len(rdata)), RData: rdata,
	})
	return nil
}

// toStringList accepts either a single scalar value or a YAML sequence,
// matching the shorthand the original dnszone format allows for
// multi-valued record sets (e.g. round-robin A records).
func toStringList(data interface{}) []string {
	switch v := data.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
