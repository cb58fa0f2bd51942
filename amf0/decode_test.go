package amf0

import "testing"

func TestReadNumber(t *testing.T) {
	buf := NewBuffer(encodeNumber(42.25))
	got, err := buf.ReadNumber()
	if err != nil {
		t.Fatalf("ReadNumber returned error: %v", err)
	}
	if got != 42.25 {
		t.Errorf("got %v, want %v", got, 42.25)
	}
}

func TestReadBoolean(t *testing.T) {
	tests := []struct {
		name string
		in   bool
	}{
		{"true", true},
		{"false", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer(encodeBoolean(tt.in))
			got, err := buf.ReadBoolean()
			if err != nil {
				t.Fatalf("ReadBoolean returned error: %v", err)
			}
			if got != tt.in {
				t.Errorf("got %v, want %v", got, tt.in)
			}
		})
	}
}

func TestReadStringRejectsWrongTag(t *testing.T) {
	buf := NewBuffer(encodeNumber(1))
	if _, err := buf.ReadString(); err == nil {
		t.Error("expected an error reading a String from a Number-tagged value, got nil")
	}
}

func TestDecodeValueObject(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "{%s%f%s%u}", "level", 1.0, "clientId", true); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	v, err := DecodeValue(back)
	if err != nil {
		t.Fatalf("DecodeValue returned error: %v", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("got type %T, want map[string]interface{}", v)
	}
	if m["level"] != 1.0 {
		t.Errorf("got level %v, want %v", m["level"], 1.0)
	}
	if m["clientId"] != true {
		t.Errorf("got clientId %v, want %v", m["clientId"], true)
	}
}

func TestDecodeValueECMAArray(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "[%d%s%f]", 1, "duration", 5.0); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	v, err := DecodeValue(back)
	if err != nil {
		t.Fatalf("DecodeValue returned error: %v", err)
	}
	arr, ok := v.(ECMAArray)
	if !ok {
		t.Fatalf("got type %T, want ECMAArray", v)
	}
	if arr["duration"] != 5.0 {
		t.Errorf("got duration %v, want %v", arr["duration"], 5.0)
	}
}

func TestSkipDataAdvancesPastValue(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "0%f", 9.0); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	if err := back.SkipData(); err != nil {
		t.Fatalf("SkipData returned error: %v", err)
	}
	got, err := back.ReadNumber()
	if err != nil {
		t.Fatalf("ReadNumber returned error: %v", err)
	}
	if got != 9.0 {
		t.Errorf("got %v, want %v", got, 9.0)
	}
}

func TestReadPropertyKeyAtObjectEnd(t *testing.T) {
	buf := NewBuffer(nil)
	if err := Encode(buf, "{}"); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	back := NewBuffer(buf.Bytes())
	if _, _, err := back.ReadObjectStart(); err != nil {
		t.Fatalf("ReadObjectStart returned error: %v", err)
	}
	if _, err := back.ReadPropertyKey(); err != ErrEndOfObject {
		t.Errorf("got err %v, want ErrEndOfObject", err)
	}
}
