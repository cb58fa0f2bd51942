package amf0

import (
	"bytes"
	"testing"
)

func TestEncodeNumber(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "%f", 3.5); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got := buf.Bytes()
	want := encodeNumber(3.5)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEncodeString(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "%s", "publish"); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got := buf.Bytes()
	want := encodeString("publish")
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEncodeCommandHeader(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "%s%f", "connect", 1.0); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	name, err := back.ReadString()
	if err != nil {
		t.Fatalf("ReadString returned error: %v", err)
	}
	if name != "connect" {
		t.Errorf("got name %q, want %q", name, "connect")
	}
	id, err := back.ReadNumber()
	if err != nil {
		t.Fatalf("ReadNumber returned error: %v", err)
	}
	if id != 1.0 {
		t.Errorf("got transaction id %v, want %v", id, 1.0)
	}
}

func TestEncodeObjectKeyValuePairs(t *testing.T) {
	buf := NewBuffer(nil)
	err := Encode(buf, "{%s%s%s%f}", "app", "live", "capabilities", 31.0)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	if _, _, err := back.ReadObjectStart(); err != nil {
		t.Fatalf("ReadObjectStart returned error: %v", err)
	}
	app, err := back.ReadPropertyKey()
	if err != nil {
		t.Fatalf("ReadPropertyKey returned error: %v", err)
	}
	if app != "app" {
		t.Errorf("got first key %q, want %q", app, "app")
	}
	appVal, err := back.ReadString()
	if err != nil {
		t.Fatalf("ReadString returned error: %v", err)
	}
	if appVal != "live" {
		t.Errorf("got app value %q, want %q", appVal, "live")
	}
	capsKey, err := back.ReadPropertyKey()
	if err != nil {
		t.Fatalf("ReadPropertyKey returned error: %v", err)
	}
	if capsKey != "capabilities" {
		t.Errorf("got second key %q, want %q", capsKey, "capabilities")
	}
	capsVal, err := back.ReadNumber()
	if err != nil {
		t.Fatalf("ReadNumber returned error: %v", err)
	}
	if capsVal != 31.0 {
		t.Errorf("got capabilities value %v, want %v", capsVal, 31.0)
	}
	if err := back.ReadObjectEnd(); err != nil {
		t.Fatalf("ReadObjectEnd returned error: %v", err)
	}
}

func TestEncodeECMAArray(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "[%d%s%f]", 1, "duration", 12.5); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	count, ecma, err := back.ReadObjectStart()
	if err != nil {
		t.Fatalf("ReadObjectStart returned error: %v", err)
	}
	if !ecma || count != 1 {
		t.Errorf("got ecma=%v count=%d, want ecma=true count=1", ecma, count)
	}
}

func TestEncodeNullAndCosmeticChars(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "%s, %f : 0", "name", 2.0); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	if _, err := back.ReadString(); err != nil {
		t.Fatalf("ReadString returned error: %v", err)
	}
	if _, err := back.ReadNumber(); err != nil {
		t.Fatalf("ReadNumber returned error: %v", err)
	}
	if err := back.ReadNull(); err != nil {
		t.Fatalf("ReadNull returned error: %v", err)
	}
}

func TestEncodeRejectsNonStringKey(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "{%f}", 1.0); err == nil {
		t.Error("expected an error for a non-string object key, got nil")
	}
}

func TestEncodeValueRoundTrip(t *testing.T) {
	m := map[string]interface{}{"code": "NetStream.Publish.Start"}
	enc, err := EncodeValue(m)
	if err != nil {
		t.Fatalf("EncodeValue returned error: %v", err)
	}
	back := NewBuffer(enc)
	decoded, err := DecodeValue(back)
	if err != nil {
		t.Fatalf("DecodeValue returned error: %v", err)
	}
	decodedMap, ok := decoded.(map[string]interface{})
	if !ok {
		t.Fatalf("got type %T, want map[string]interface{}", decoded)
	}
	if decodedMap["code"] != "NetStream.Publish.Start" {
		t.Errorf("got code %v, want %v", decodedMap["code"], "NetStream.Publish.Start")
	}
}
