package packet

import (
	"encoding/binary"
	"fmt"
)

// decoder walks a borrowed byte slice and produces an owned Message.
type decoder struct {
	msg    []byte
	offset int
}

// Decode parses a complete DNS message. A message whose buffer ends
// before the header's section counts are exhausted, at a record
// boundary or inside a record's fixed-size fields, is returned with
// Truncated set and the records read so far, rather than an error —
// the caller decides whether a partial Message is acceptable. A name
// or an rdata field cut short by the end of the buffer is an error
// wrapping ErrTruncated.
func Decode(msg []byte) (*Message, error) {
	if len(msg) < headerSize {
		return nil, ErrTooShort
	}

	d := &decoder{msg: msg}
	m := &Message{}

	m.Header = d.decodeHeader()

	if int(m.Header.QDCount) > maxSectionCount ||
		int(m.Header.ANCount) > maxSectionCount ||
		int(m.Header.NSCount) > maxSectionCount ||
		int(m.Header.ARCount) > maxSectionCount {
		return nil, ErrCountTooLarge
	}

	var err error
	m.Question, m.Truncated, err = d.decodeQuestions(int(m.Header.QDCount))
	if err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	if m.Truncated {
		return m, nil
	}

	m.Answer, m.Truncated, err = d.decodeRRs(int(m.Header.ANCount))
	if err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	if m.Truncated {
		return m, nil
	}

	m.Authority, m.Truncated, err = d.decodeRRs(int(m.Header.NSCount))
	if err != nil {
		return nil, fmt.Errorf("decode authority: %w", err)
	}
	if m.Truncated {
		return m, nil
	}

	m.Additional, m.Truncated, err = d.decodeRRs(int(m.Header.ARCount))
	if err != nil {
		return nil, fmt.Errorf("decode additional: %w", err)
	}

	return m, nil
}

// DecodeHeader reads just the 12-byte header, without touching any
// section that follows. The event loop uses this for upstream replies,
// which are relayed verbatim and never re-encoded — the only thing it
// needs out of them is the transaction ID to find the waiting client.
func DecodeHeader(msg []byte) (Header, error) {
	if len(msg) < headerSize {
		return Header{}, ErrTooShort
	}
	d := &decoder{msg: msg}
	return d.decodeHeader(), nil
}

func (d *decoder) decodeHeader() Header {
	h := Header{
		ID:      binary.BigEndian.Uint16(d.msg[0:2]),
		Flags:   binary.BigEndian.Uint16(d.msg[2:4]),
		QDCount: binary.BigEndian.Uint16(d.msg[4:6]),
		ANCount: binary.BigEndian.Uint16(d.msg[6:8]),
		NSCount: binary.BigEndian.Uint16(d.msg[8:10]),
		ARCount: binary.BigEndian.Uint16(d.msg[10:12]),
	}
	d.offset = headerSize
	return h
}

func (d *decoder) decodeQuestions(count int) ([]Question, bool, error) {
	out := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		if d.offset >= len(d.msg) {
			return out, true, nil
		}

		name, err := d.decodeName()
		if err != nil {
			return nil, false, err
		}

		if d.offset+4 > len(d.msg) {
			return out, true, nil
		}

		q := Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(d.msg[d.offset : d.offset+2]),
			Class: binary.BigEndian.Uint16(d.msg[d.offset+2 : d.offset+4]),
		}
		d.offset += 4
		out = append(out, q)
	}
	return out, false, nil
}

func (d *decoder) decodeRRs(count int) ([]RR, bool, error) {
	out := make([]RR, 0, count)
	for i := 0; i < count; i++ {
		if d.offset >= len(d.msg) {
			return out, true, nil
		}

		name, err := d.decodeName()
		if err != nil {
			return nil, false, err
		}

		if d.offset+10 > len(d.msg) {
			return out, true, nil
		}

		rr := RR{
			Name:     name,
			Type:     binary.BigEndian.Uint16(d.msg[d.offset : d.offset+2]),
			Class:    binary.BigEndian.Uint16(d.msg[d.offset+2 : d.offset+4]),
			TTL:      binary.BigEndian.Uint32(d.msg[d.offset+4 : d.offset+8]),
			RDLength: binary.BigEndian.Uint16(d.msg[d.offset+8 : d.offset+10]),
		}
		d.offset += 10

		if d.offset+int(rr.RDLength) > len(d.msg) {
			return nil, false, ErrTruncated
		}

		rr.RData = make([]byte, rr.RDLength)
		copy(rr.RData, d.msg[d.offset:d.offset+int(rr.RDLength)])
		d.offset += int(rr.RDLength)

		out = append(out, rr)
	}
	return out, false, nil
}

// decodeName resolves a (possibly compressed) name starting at d.offset
// and advances d.offset past it: to the byte after the terminating zero
// for an uncompressed name, or to the byte after the two-byte pointer
// for a compressed one — never to the pointer's target.
func (d *decoder) decodeName() (string, error) {
	var labels []string
	depth := 0
	cursor := d.offset
	startOffset := d.offset
	jumped := false

	for {
		if cursor >= len(d.msg) {
			return "", ErrTruncated
		}

		lead := d.msg[cursor]

		switch lead & 0xC0 {
		case 0xC0: // compression pointer
			if cursor+1 >= len(d.msg) {
				return "", ErrTruncated
			}
			if depth >= maxPointerDepth {
				return "", ErrMalformedName
			}

			ptr := int(binary.BigEndian.Uint16(d.msg[cursor:cursor+2]) & 0x3FFF)

			// A pointer must target strictly before where this name
			// started resolving (backwards-only), which rules out
			// both direct self-reference and multi-hop cycles without
			// needing a visited-set.
			if ptr >= startOffset {
				return "", ErrMalformedName
			}

			if !jumped {
				d.offset = cursor + 2
				jumped = true
			}

			startOffset = ptr
			cursor = ptr
			depth++
			continue

		case 0x80, 0x40: // reserved label tags (01, 10)
			return "", ErrMalformedName

		default: // ordinary length-prefixed label, 0x00..0x3F
			length := int(lead)
			if length == 0 {
				if !jumped {
					d.offset = cursor + 1
				}
				return joinLabels(labels)
			}
			if length > maxLabelLength {
				return "", ErrMalformedName
			}

			cursor++
			if cursor+length > len(d.msg) {
				return "", ErrTruncated
			}

			label := make([]byte, length)
			copy(label, d.msg[cursor:cursor+length])
			labels = append(labels, string(label))
			cursor += length
		}
	}
}

func joinLabels(labels []string) (string, error) {
	if len(labels) == 0 {
		return ".", nil
	}

	wireLen := 0
	for _, l := range labels {
		wireLen += len(l) + 1
	}
	wireLen++ // terminating zero
	if wireLen > maxDomainLength {
		return "", ErrMalformedName
	}

	name := ""
	for _, l := range labels {
		name += l + "."
	}
	return name, nil
}
