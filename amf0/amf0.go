// Package amf0 implements the AMF0 (Action Message Format, version 0)
// serialization used by the RTMP command and data message dialogue.
package amf0

// ECMAArray is a map encoded with the ECMA array marker (has an associative
// count ahead of its properties, unlike a plain Object).
type ECMAArray map[string]interface{}

// ObjectEnd is returned by DecodeValue when the next value on the wire is an
// object/array terminator rather than a value.
type ObjectEnd struct{}

// Type markers, as laid out in the AMF0 specification.
const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E // reserved, not supported
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
)
