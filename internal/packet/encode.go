package packet

import (
	"encoding/binary"
	"strings"
)

// EncodeHeader writes the 12-byte header in wire order and returns the
// number of bytes written.
func EncodeHeader(buf []byte, h Header) int {
	binary.BigEndian.PutUint16(buf[0:2], h.ID)
	binary.BigEndian.PutUint16(buf[2:4], h.Flags)
	binary.BigEndian.PutUint16(buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], h.ARCount)
	return headerSize
}

// EncodeName writes name as uncompressed length-prefixed labels
// terminated by a zero byte. An empty string encodes as the single
// root label (a lone zero byte), matching the root name ".".
func EncodeName(buf []byte, name string) (int, error) {
	labels := splitLabels(name)

	n := 0
	for _, label := range labels {
		if len(label) == 0 || len(label) > maxLabelLength {
			return 0, ErrInvalidName
		}
		if n+1+len(label) > len(buf) {
			return 0, ErrTruncated
		}
		buf[n] = byte(len(label))
		n++
		n += copy(buf[n:], label)
	}

	if n+1 > len(buf) {
		return 0, ErrTruncated
	}
	buf[n] = 0
	n++

	return n, nil
}

// splitLabels splits a canonical dotted name ("foo.bar.") into its
// labels, dropping the trailing empty segment the final dot produces
// and treating "." (root) as zero labels.
func splitLabels(name string) []string {
	if name == "" || name == "." {
		return nil
	}
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ".")
}

// EncodedNameLen reports how many bytes EncodeName would write, without
// writing them, so callers can check a buffer budget up front.
func EncodedNameLen(name string) int {
	labels := splitLabels(name)
	n := 1 // terminating zero
	for _, l := range labels {
		n += 1 + len(l)
	}
	return n
}

// EncodeQuestion writes a question section entry and returns the bytes
// written.
func EncodeQuestion(buf []byte, q Question) (int, error) {
	n, err := EncodeName(buf, q.Name)
	if err != nil {
		return 0, err
	}
	if n+4 > len(buf) {
		return 0, ErrTruncated
	}
	binary.BigEndian.PutUint16(buf[n:n+2], q.Type)
	binary.BigEndian.PutUint16(buf[n+2:n+4], q.Class)
	return n + 4, nil
}

// EncodeRR writes a resource record (uncompressed name, verbatim rdata)
// and returns the bytes written.
func EncodeRR(buf []byte, rr RR) (int, error) {
	n, err := EncodeName(buf, rr.Name)
	if err != nil {
		return 0, err
	}
	if n+10+len(rr.RData) > len(buf) {
		return 0, ErrTruncated
	}
	binary.BigEndian.PutUint16(buf[n:n+2], rr.Type)
	binary.BigEndian.PutUint16(buf[n+2:n+4], rr.Class)
	binary.BigEndian.PutUint32(buf[n+4:n+8], rr.TTL)
	binary.BigEndian.PutUint16(buf[n+8:n+10], uint16(len(rr.RData)))
	n += 10
	n += copy(buf[n:], rr.RData)
	return n, nil
}

// EncodedRRLen reports the wire size of rr without writing it.
func EncodedRRLen(rr RR) int {
	return EncodedNameLen(rr.Name) + 10 + len(rr.RData)
}

// Encode writes m into buf with uncompressed labels throughout. If the
// full message does not fit, Encode truncates at the last RR boundary
// that does fit, sets the TC flag, and adjusts the section counts to
// match what was actually emitted — records are dropped from the tail
// first (additional, then authority, then answer), consistent with the
// section order on the wire.
func Encode(buf []byte, m Message) (int, error) {
	n := EncodeHeader(buf, m.Header)

	for _, q := range m.Question {
		written, err := EncodeQuestion(buf[n:], q)
		if err != nil {
			return 0, err
		}
		n += written
	}

	an, n, truncated := encodeRRSection(buf, n, m.Answer)
	ns, n, truncAuth := encodeRRSectionIf(buf, n, m.Authority, !truncated)
	ar, n, truncAddl := encodeRRSectionIf(buf, n, m.Additional, !truncated && !truncAuth)

	tc := truncated || truncAuth || truncAddl
	flags := m.Header.Flags
	if tc {
		flags |= FlagTC
	}

	h := m.Header
	h.Flags = flags
	h.QDCount = uint16(len(m.Question))
	h.ANCount = uint16(an)
	h.NSCount = uint16(ns)
	h.ARCount = uint16(ar)
	EncodeHeader(buf, h)

	return n, nil
}

// encodeRRSection writes as many of rrs as fit in buf and
// reports how many it wrote, the new write cursor, and whether it had
// to stop short.
func encodeRRSection(buf []byte, offset int, rrs []RR) (written int, cursor int, truncated bool) {
	cursor = offset
	for _, rr := range rrs {
		size := EncodedRRLen(rr)
		if cursor+size > len(buf) {
			return written, cursor, true
		}
		n, err := EncodeRR(buf[cursor:], rr)
		if err != nil {
			return written, cursor, true
		}
		cursor += n
		written++
	}
	return written, cursor, false
}

func encodeRRSectionIf(buf []byte, offset int, rrs []RR, ok bool) (written int, cursor int, truncated bool) {
	if !ok {
		return 0, offset, true
	}
	return encodeRRSection(buf, offset, rrs)
}
