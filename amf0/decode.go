package amf0

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// ErrEndOfObject is returned by ReadPropertyKey when the next token on the
// wire is an object/array terminator rather than a property name.
var ErrEndOfObject = errors.New("amf0: end of object/array reached")

func (b *Buffer) atObjectEnd() bool {
	p, err := b.peek(3)
	if err != nil {
		return false
	}
	return p[0] == 0x00 && p[1] == 0x00 && p[2] == TypeObjectEnd
}

// ReadObjectEnd consumes the 3-byte object/array terminator. It is an error
// to call it when the cursor isn't positioned on one.
func (b *Buffer) ReadObjectEnd() error {
	if !b.atObjectEnd() {
		return errors.New("amf0: expected end-of-object marker")
	}
	b.advance(3)
	return nil
}

// ReadObjectStart consumes an Object or ECMA array header and returns the
// element count (0 for a plain Object, since it has none on the wire).
func (b *Buffer) ReadObjectStart() (count uint32, ecma bool, err error) {
	tag, err := b.readByte()
	if err != nil {
		return 0, false, err
	}
	switch tag {
	case TypeObject:
		return 0, false, nil
	case TypeECMAArray:
		p, err := b.peek(4)
		if err != nil {
			return 0, false, err
		}
		b.advance(4)
		return binary.BigEndian.Uint32(p), true, nil
	default:
		return 0, false, errors.Errorf("amf0: expected object or ECMA array, got tag 0x%02x", tag)
	}
}

// ReadPropertyKey reads a bare (untagged) string, as used for object/array
// property names.
func (b *Buffer) ReadPropertyKey() (string, error) {
	if b.atObjectEnd() {
		return "", ErrEndOfObject
	}
	p, err := b.peek(2)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(p))
	b.advance(2)
	s, err := b.peek(n)
	if err != nil {
		return "", err
	}
	b.advance(n)
	return string(s), nil
}

// ReadNumber reads a tagged Number value.
func (b *Buffer) ReadNumber() (float64, error) {
	tag, err := b.readByte()
	if err != nil {
		return 0, err
	}
	if tag != TypeNumber {
		return 0, errors.Errorf("amf0: expected Number, got tag 0x%02x", tag)
	}
	p, err := b.peek(8)
	if err != nil {
		return 0, err
	}
	b.advance(8)
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// ReadBoolean reads a tagged Boolean value.
func (b *Buffer) ReadBoolean() (bool, error) {
	tag, err := b.readByte()
	if err != nil {
		return false, err
	}
	if tag != TypeBoolean {
		return false, errors.Errorf("amf0: expected Boolean, got tag 0x%02x", tag)
	}
	v, err := b.readByte()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadString reads a tagged String or LongString value.
func (b *Buffer) ReadString() (string, error) {
	tag, err := b.readByte()
	if err != nil {
		return "", err
	}
	var n int
	switch tag {
	case TypeString:
		p, err := b.peek(2)
		if err != nil {
			return "", err
		}
		b.advance(2)
		n = int(binary.BigEndian.Uint16(p))
	case TypeLongString:
		p, err := b.peek(4)
		if err != nil {
			return "", err
		}
		b.advance(4)
		n = int(binary.BigEndian.Uint32(p))
	default:
		return "", errors.Errorf("amf0: expected String, got tag 0x%02x", tag)
	}
	s, err := b.peek(n)
	if err != nil {
		return "", err
	}
	b.advance(n)
	return string(s), nil
}

// ReadNull reads a tagged Null value.
func (b *Buffer) ReadNull() error {
	tag, err := b.readByte()
	if err != nil {
		return err
	}
	if tag != TypeNull && tag != TypeUndefined {
		return errors.Errorf("amf0: expected Null, got tag 0x%02x", tag)
	}
	return nil
}

func (b *Buffer) readByte() (byte, error) {
	p, err := b.peek(1)
	if err != nil {
		return 0, err
	}
	b.advance(1)
	return p[0], nil
}

// SkipData skips over one complete AMF0-encoded value of any type
// DecodeValue supports, advancing the read cursor past it; other type tags
// return an error. Used to discard values a caller isn't interested in.
func (b *Buffer) SkipData() error {
	_, err := DecodeValue(b)
	return err
}

// DecodeValue decodes and returns the next AMF0 value from b, inferring the
// Go type to use from the wire type tag. Possible return types: float64,
// bool, string, map[string]interface{}, amf0.ECMAArray, time.Time, nil, and
// amf0.ObjectEnd when the cursor is on an object/array terminator.
func DecodeValue(b *Buffer) (interface{}, error) {
	if b.atObjectEnd() {
		b.advance(3)
		return ObjectEnd{}, nil
	}
	p, err := b.peek(1)
	if err != nil {
		return nil, err
	}
	switch p[0] {
	case TypeNumber:
		return b.ReadNumber()
	case TypeBoolean:
		return b.ReadBoolean()
	case TypeString, TypeLongString:
		return b.ReadString()
	case TypeObject:
		return decodeObject(b, false)
	case TypeECMAArray:
		return decodeObject(b, true)
	case TypeNull, TypeUndefined:
		return nil, b.ReadNull()
	case TypeDate:
		return decodeDate(b)
	default:
		return nil, errors.Errorf("amf0: cannot decode value with tag 0x%02x", p[0])
	}
}

func decodeObject(b *Buffer, ecma bool) (interface{}, error) {
	_, _, err := b.ReadObjectStart()
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	for {
		key, err := b.ReadPropertyKey()
		if err == ErrEndOfObject {
			break
		}
		if err != nil {
			return nil, err
		}
		val, err := DecodeValue(b)
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
	if err := b.ReadObjectEnd(); err != nil {
		return nil, err
	}
	if ecma {
		return ECMAArray(m), nil
	}
	return m, nil
}

func decodeDate(b *Buffer) (time.Time, error) {
	tag, err := b.readByte()
	if err != nil {
		return time.Time{}, err
	}
	if tag != TypeDate {
		return time.Time{}, errors.Errorf("amf0: expected Date, got tag 0x%02x", tag)
	}
	p, err := b.peek(8)
	if err != nil {
		return time.Time{}, err
	}
	b.advance(8)
	ms := int64(math.Float64frombits(binary.BigEndian.Uint64(p)))
	// Bytes 9-10 (time zone) are always 0, and are skipped.
	if _, err := b.peek(2); err != nil {
		return time.Time{}, err
	}
	b.advance(2)
	return time.Unix(0, ms*int64(time.Millisecond)), nil
}
