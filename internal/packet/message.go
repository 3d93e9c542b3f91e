// Package packet implements the DNS wire format: decoding and encoding of
// the 12-byte header, question section entries, and resource records,
// including compression-pointer resolution on decode (RFC 1035 §4.1.4).
package packet

import "errors"

var (
	// ErrTooShort indicates a buffer smaller than the 12-byte header.
	ErrTooShort = errors.New("packet: message shorter than header")

	// ErrTruncated indicates a section ran past the end of the buffer.
	ErrTruncated = errors.New("packet: section truncated")

	// ErrMalformedName indicates a reserved label tag, a compression
	// cycle, excessive pointer depth, or an over-long name.
	ErrMalformedName = errors.New("packet: malformed name")

	// ErrInvalidName indicates an encode-time label length violation.
	ErrInvalidName = errors.New("packet: invalid name")

	// ErrCountTooLarge indicates a section count exceeds the sanity cap.
	ErrCountTooLarge = errors.New("packet: section count too large")
)

const (
	headerSize = 12

	maxLabelLength  = 63
	maxDomainLength = 255

	// maxPointerDepth bounds the number of compression pointers followed
	// while resolving a single name. RFC 1035 doesn't fix a number; this
	// is comfortably above any legitimate message and well short of
	// anything that would let an adversarial message force unbounded work.
	maxPointerDepth = 10

	// maxSectionCount caps QDCOUNT/ANCOUNT/NSCOUNT/ARCOUNT. A real
	// datagram has no legitimate reason to carry hundreds of records;
	// this exists purely to bound allocation for hostile input.
	maxSectionCount = 256
)

// Header is the fixed 12-byte DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Flag bit positions within Flags, MSB = bit 15.
const (
	FlagQR = 1 << 15
	FlagAA = 1 << 10
	FlagTC = 1 << 9
	FlagRD = 1 << 8
	FlagRA = 1 << 7

	opcodeShift = 11
	opcodeMask  = 0x0F
	zShift      = 4
	zMask       = 0x07
	rcodeMask   = 0x0F
)

// Opcode returns the 4-bit Opcode field.
func (h Header) Opcode() uint8 { return uint8((h.Flags >> opcodeShift) & opcodeMask) }

// Rcode returns the 4-bit RCODE field.
func (h Header) Rcode() uint8 { return uint8(h.Flags & rcodeMask) }

// SetOpcode returns Flags with the Opcode field replaced.
func SetOpcode(flags uint16, opcode uint8) uint16 {
	return (flags &^ (opcodeMask << opcodeShift)) | (uint16(opcode&opcodeMask) << opcodeShift)
}

// SetRcode returns Flags with the RCODE field replaced.
func SetRcode(flags uint16, rcode uint8) uint16 {
	return (flags &^ rcodeMask) | uint16(rcode&rcodeMask)
}

// Question is a decoded question section entry.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// RR is a decoded resource record. RData is retained verbatim; names
// embedded inside rdata (NS/CNAME/PTR/MX targets) are never decompressed
// or otherwise interpreted by the codec.
type RR struct {
	Name     string
	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16
	RData    []byte
}

// Message is a fully (or partially, if Truncated) decoded DNS transaction.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR

	// Truncated is set when decoding reached end-of-buffer before the
	// header's section counts were exhausted. The caller decides whether
	// a partial Message is usable.
	Truncated bool
}

// Known type codes (§4.1).
const (
	TypeA     = 1
	TypeNS    = 2
	TypeCNAME = 5
	TypeSOA   = 6
	TypePTR   = 12
	TypeMX    = 15
	TypeTXT   = 16
	TypeAAAA  = 28
)

// Known class codes.
const (
	ClassIN  = 1
	ClassCS  = 2
	ClassCH  = 3
	ClassHS  = 4
	ClassANY = 255
)

// Known opcodes.
const (
	OpcodeQuery  = 0
	OpcodeIQuery = 1
	OpcodeStatus = 2
	OpcodeNotify = 4
	OpcodeUpdate = 5
)

// Known response codes.
const (
	RcodeNoError   = 0
	RcodeFormErr   = 1
	RcodeServFail  = 2
	RcodeNXDomain  = 3
	RcodeNotImp    = 4
	RcodeRefused   = 5
	RcodeYXDomain  = 6
	RcodeYXRRSet   = 7
	RcodeNXRRSet   = 8
	RcodeNotAuth   = 9
	RcodeNotZone   = 10
)

// TypeNames maps known type codes to their mnemonic, for logging.
var TypeNames = map[uint16]string{
	TypeA:     "A",
	TypeNS:    "NS",
	TypeCNAME: "CNAME",
	TypeSOA:   "SOA",
	TypePTR:   "PTR",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
}
