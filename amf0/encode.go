package amf0

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Encode appends the values of args to buf, driven by a printf-style format
// string. It is the AMF0 counterpart of fmt.Fprintf and mirrors the original
// amf_encode token set:
//
//	%f  Number  (float64, float32, int, int32, int64 or uint32)
//	%u  Boolean (bool, or an int/uint8 treated as non-zero/zero; any other
//	    argument type encodes false)
//	%s  String  (string) -- also used for property names inside { } and [ ]
//	{   start of an Object.   Properties are %s/value pairs. No arg.
//	}   end of an Object. No arg.
//	[%d start of an ECMA array, arg is the element count (int). Followed by
//	    that many %s/value pairs.
//	]   end of an ECMA array. No arg.
//	0   Null. No arg.
//
// ',' ':' ' ' '\t' '\n' are ignored between tokens to improve readability of
// the format string.
func Encode(buf *Buffer, format string, args ...interface{}) error {
	var stack []int // count of key/value tokens written so far, per open object/array
	argi := 0

	next := func() (interface{}, error) {
		if argi >= len(args) {
			return nil, errors.Errorf("amf0: format %q needs more arguments than the %d given", format, len(args))
		}
		v := args[argi]
		argi++
		return v, nil
	}

	// inKeyPosition reports whether the next token written belongs to an
	// open object/array and occupies a key slot (even-numbered token).
	inKeyPosition := func() bool {
		return len(stack) > 0 && stack[len(stack)-1]%2 == 0
	}

	// consumeSlot records that a token was written at the top of the stack.
	consumeSlot := func() {
		if len(stack) > 0 {
			stack[len(stack)-1]++
		}
	}

	i := 0
	for i < len(format) {
		c := format[i]
		switch c {
		case ',', ':', ' ', '\t', '\n':
			i++
			continue
		case '%':
			if i+1 >= len(format) {
				return errors.Errorf("amf0: truncated format token in %q", format)
			}
			tok := format[i+1]
			i += 2
			switch tok {
			case 'f':
				if inKeyPosition() {
					return errors.New("amf0: object/array key must be a string (%s), got %f")
				}
				v, err := next()
				if err != nil {
					return err
				}
				f, err := toFloat64(v)
				if err != nil {
					return err
				}
				buf.write(encodeNumber(f))
				consumeSlot()
			case 'u':
				if inKeyPosition() {
					return errors.New("amf0: object/array key must be a string (%s), got %u")
				}
				v, err := next()
				if err != nil {
					return err
				}
				buf.write(encodeBoolean(toBool(v)))
				consumeSlot()
			case 's':
				v, err := next()
				if err != nil {
					return err
				}
				s, ok := v.(string)
				if !ok {
					return errors.Errorf("amf0: %%s expects a string argument, got %T", v)
				}
				if inKeyPosition() {
					buf.write(encodeBareString(s))
				} else {
					buf.write(encodeString(s))
				}
				consumeSlot()
			default:
				return errors.Errorf("amf0: unknown format token %%%c", tok)
			}
		case '{':
			if inKeyPosition() {
				return errors.New("amf0: object/array key must be a string (%s), got {")
			}
			consumeSlot()
			buf.write([]byte{TypeObject})
			stack = append(stack, 0)
			i++
		case '}':
			if len(stack) == 0 {
				return errors.New("amf0: unmatched '}' in format string")
			}
			stack = stack[:len(stack)-1]
			buf.write(encodeObjectEnd())
			i++
		case '[':
			if !hasPrefixAt(format, i, "[%d") {
				return errors.Errorf("amf0: expected \"[%%d\" at offset %d in %q", i, format)
			}
			if inKeyPosition() {
				return errors.New("amf0: object/array key must be a string (%s), got [")
			}
			v, err := next()
			if err != nil {
				return err
			}
			count, err := toInt(v)
			if err != nil {
				return err
			}
			consumeSlot()
			header := make([]byte, 5)
			header[0] = TypeECMAArray
			binary.BigEndian.PutUint32(header[1:], uint32(count))
			buf.write(header)
			stack = append(stack, 0)
			i += 3
		case ']':
			if len(stack) == 0 {
				return errors.New("amf0: unmatched ']' in format string")
			}
			stack = stack[:len(stack)-1]
			buf.write(encodeObjectEnd())
			i++
		case '0':
			if inKeyPosition() {
				return errors.New("amf0: object/array key must be a string (%s), got 0")
			}
			buf.write(encodeNull())
			consumeSlot()
			i++
		default:
			return errors.Errorf("amf0: unexpected character %q in format %q", c, format)
		}
	}

	if len(stack) != 0 {
		return errors.Errorf("amf0: unterminated object/array in format %q", format)
	}
	return nil
}

func hasPrefixAt(s string, i int, prefix string) bool {
	if i+len(prefix) > len(s) {
		return false
	}
	return s[i:i+len(prefix)] == prefix
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	default:
		return 0, errors.Errorf("amf0: %%f expects a numeric argument, got %T", v)
	}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("amf0: %%d expects an integer argument, got %T", v)
	}
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case uint8:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

// EncodeValue encodes a single Go value as an AMF0-typed buffer, inferring
// the wire type from the value's Go type. It is used where a value (such as
// a command object map or an ECMAArray) is held as a Go value rather than
// built from a fixed format string.
func EncodeValue(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case float64:
		return encodeNumber(x), nil
	case int:
		return encodeNumber(float64(x)), nil
	case bool:
		return encodeBoolean(x), nil
	case string:
		return encodeString(x), nil
	case map[string]interface{}:
		return encodeObject(x), nil
	case ECMAArray:
		return encodeECMAArray(x), nil
	case time.Time:
		return encodeDate(x), nil
	case nil:
		return encodeNull(), nil
	default:
		return nil, errors.Errorf("amf0: cannot encode value of type %T", v)
	}
}

func encodeDate(t time.Time) []byte {
	timestamp := t.UnixNano() / int64(time.Millisecond)
	buf := make([]byte, 11)
	buf[0] = TypeDate
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(float64(timestamp)))
	// Bytes 9-10 are the time zone, which per the AMF0 spec is always 0.
	return buf
}

func encodeECMAArray(a ECMAArray) []byte {
	obj := encodeObject(a)
	payload := obj[1 : len(obj)-3]
	buf := make([]byte, 1+4+len(payload)+3)
	buf[0] = TypeECMAArray
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(a)))
	copy(buf[5:], payload)
	copy(buf[5+len(payload):], encodeObjectEnd())
	return buf
}

func encodeNull() []byte {
	return []byte{TypeNull}
}

func encodeObject(m map[string]interface{}) []byte {
	var payload []byte
	for key, val := range m {
		payload = append(payload, encodeBareString(key)...)
		v, err := EncodeValue(val)
		if err != nil {
			continue
		}
		payload = append(payload, v...)
	}
	buf := make([]byte, 1+len(payload)+3)
	buf[0] = TypeObject
	copy(buf[1:], payload)
	copy(buf[1+len(payload):], encodeObjectEnd())
	return buf
}

func encodeObjectEnd() []byte {
	return []byte{0x00, 0x00, TypeObjectEnd}
}

// encodeBareString encodes s the way a property name is encoded inside an
// object or array: a 2-byte length followed by the raw bytes, with no
// TypeString marker byte.
func encodeBareString(s string) []byte {
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(s)))
	copy(buf[2:], s)
	return buf
}

func encodeString(s string) []byte {
	if len(s) < 65535 {
		buf := make([]byte, 3+len(s))
		buf[0] = TypeString
		binary.BigEndian.PutUint16(buf[1:3], uint16(len(s)))
		copy(buf[3:], s)
		return buf
	}
	buf := make([]byte, 5+len(s))
	buf[0] = TypeLongString
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(s)))
	copy(buf[5:], s)
	return buf
}

func encodeBoolean(b bool) []byte {
	if b {
		return []byte{TypeBoolean, 1}
	}
	return []byte{TypeBoolean, 0}
}

func encodeNumber(n float64) []byte {
	buf := make([]byte, 9)
	buf[0] = TypeNumber
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(n))
	return buf
}
