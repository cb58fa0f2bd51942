package chunk

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/lumenstream/rtmppub/internal/binary24"
)

// extendedTimestampSentinel is the 3-byte timestamp/delta value that signals
// a 4-byte extended timestamp field follows the rest of the message header.
const extendedTimestampSentinel uint32 = 0xFFFFFF

// Header describes one chunk's basic + message header, plus the absolute
// timestamp it resolves to once any delta has been applied against the
// previous header seen on the same chunk stream ID.
type Header struct {
	Fmt             uint8
	Csid            uint32
	Timestamp       uint32 // absolute
	Delta           uint32
	MessageLength   uint32
	TypeID          uint8
	MessageStreamID uint32
}

// selectType picks the minimal chunk header type that can represent
// "header" as a continuation of "prev" (nil if this is the first message
// ever sent/received on this chunk stream ID).
func selectType(prev *Header, msid uint32, typeID uint8, length uint32, timestamp uint32) (fmtType uint8, delta uint32) {
	if prev == nil {
		return Type0, 0
	}
	if msid != prev.MessageStreamID {
		return Type0, 0
	}
	if timestamp < prev.Timestamp {
		// A backward timestamp cannot be represented as a delta.
		return Type0, 0
	}
	delta = timestamp - prev.Timestamp
	if typeID != prev.TypeID || length != prev.MessageLength {
		return Type1, delta
	}
	if delta != prev.Delta {
		return Type2, delta
	}
	return Type3, delta
}

// encodeBasicHeader appends the basic header (1-3 bytes) for fmtType/csid to
// dst and returns the result.
func encodeBasicHeader(dst []byte, fmtType uint8, csid uint32) []byte {
	switch {
	case csid <= 63:
		return append(dst, (fmtType<<6)|uint8(csid))
	case csid <= 319:
		return append(dst, fmtType<<6, uint8(csid-64))
	default:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(csid-64))
		return append(append(dst, (fmtType<<6)|0x01), b...)
	}
}

// encodeMessageHeader appends the message header fields for fmtType to dst,
// following the field layout the format mandates, and returns the result.
// A 4-byte extended timestamp is appended when the timestamp or delta does
// not fit the 3-byte field.
func encodeMessageHeader(dst []byte, fmtType uint8, h *Header) []byte {
	ts := h.Timestamp
	if fmtType != Type0 {
		ts = h.Delta
	}
	wireTs := ts
	extended := ts >= extendedTimestampSentinel
	if extended {
		wireTs = extendedTimestampSentinel
	}

	switch fmtType {
	case Type0:
		dst = appendUint24(dst, wireTs)
		dst = appendUint24(dst, h.MessageLength)
		dst = append(dst, h.TypeID)
		msid := make([]byte, 4)
		binary.LittleEndian.PutUint32(msid, h.MessageStreamID)
		dst = append(dst, msid...)
	case Type1:
		dst = appendUint24(dst, wireTs)
		dst = appendUint24(dst, h.MessageLength)
		dst = append(dst, h.TypeID)
	case Type2:
		dst = appendUint24(dst, wireTs)
	case Type3:
		// No message header fields.
	}
	if extended {
		ext := make([]byte, 4)
		binary.BigEndian.PutUint32(ext, ts)
		dst = append(dst, ext...)
	}
	return dst
}

func appendUint24(dst []byte, v uint32) []byte {
	b := make([]byte, 3)
	binary24.BigEndian.PutUint24(b, v)
	return append(dst, b...)
}

// readBasicHeader reads the basic header from r.
func readBasicHeader(r io.Reader) (fmtType uint8, csid uint32, n int, err error) {
	var b [1]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return 0, 0, 0, err
	}
	n++
	fmtType = b[0] >> 6
	low := b[0] & 0x3F
	switch low {
	case 0:
		var ext [1]byte
		if _, err = io.ReadFull(r, ext[:]); err != nil {
			return 0, 0, n, err
		}
		n++
		csid = uint32(ext[0]) + 64
	case 1:
		var ext [2]byte
		r2, err := io.ReadFull(r, ext[:])
		n += r2
		if err != nil {
			return 0, 0, n, err
		}
		csid = uint32(binary.BigEndian.Uint16(ext[:])) + 64
	default:
		csid = uint32(low)
	}
	return fmtType, csid, n, nil
}

// readMessageHeader reads the message header fields present for fmtType,
// inheriting any omitted field from prev (which must be non-nil for any
// fmtType other than Type0).
func readMessageHeader(r io.Reader, fmtType uint8, csid uint32, prev *Header) (h Header, n int, err error) {
	h.Fmt = fmtType
	h.Csid = csid
	if prev != nil {
		h.MessageLength = prev.MessageLength
		h.TypeID = prev.TypeID
		h.MessageStreamID = prev.MessageStreamID
	} else if fmtType != Type0 {
		return h, 0, errors.Errorf("chunk: type %d header on csid %d with no prior header", fmtType, csid)
	}

	var wireTs uint32
	switch fmtType {
	case Type0:
		buf := make([]byte, 11)
		r2, err := io.ReadFull(r, buf)
		n += r2
		if err != nil {
			return h, n, err
		}
		wireTs = readUint24(buf[0:3])
		h.MessageLength = readUint24(buf[3:6])
		h.TypeID = buf[6]
		h.MessageStreamID = binary.LittleEndian.Uint32(buf[7:11])
	case Type1:
		buf := make([]byte, 7)
		r2, err := io.ReadFull(r, buf)
		n += r2
		if err != nil {
			return h, n, err
		}
		wireTs = readUint24(buf[0:3])
		h.MessageLength = readUint24(buf[3:6])
		h.TypeID = buf[6]
	case Type2:
		buf := make([]byte, 3)
		r2, err := io.ReadFull(r, buf)
		n += r2
		if err != nil {
			return h, n, err
		}
		wireTs = readUint24(buf[0:3])
	case Type3:
		// Nothing on the wire; delta is implicitly the same as prev's.
		if prev != nil {
			wireTs = prev.Delta
		}
	default:
		return h, n, errors.Errorf("chunk: unknown chunk header type %d", fmtType)
	}

	if wireTs == extendedTimestampSentinel {
		var ext [4]byte
		r2, err := io.ReadFull(r, ext[:])
		n += r2
		if err != nil {
			return h, n, err
		}
		wireTs = binary.BigEndian.Uint32(ext[:])
	}

	if fmtType == Type0 {
		h.Timestamp = wireTs
		h.Delta = 0
	} else {
		h.Delta = wireTs
		if prev != nil {
			h.Timestamp = prev.Timestamp + wireTs
		} else {
			h.Timestamp = wireTs
		}
	}
	return h, n, nil
}

func readUint24(b []byte) uint32 {
	return binary24.BigEndian.Uint24(b)
}
