package chunk

import (
	"bytes"
	"testing"

	"go.uber.org/zap"
)

// boundedWriter accepts at most n bytes per Write call, used to exercise
// Flush's partial-write resumption.
type boundedWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		p = p[:w.n]
	}
	return w.buf.Write(p)
}

func TestWriteMessageQueueFull(t *testing.T) {
	s := New(zap.NewNop())
	for i := 0; i < MaxQueuedMessages; i++ {
		if err := s.WriteMessage(3, MsgCommandAMF0, 0, 0, []byte("x")); err != nil {
			t.Fatalf("WriteMessage %d returned error: %v", i, err)
		}
	}
	if err := s.WriteMessage(3, MsgCommandAMF0, 0, 0, []byte("x")); err != ErrQueueFull {
		t.Errorf("got err %v, want ErrQueueFull", err)
	}
}

func TestFlushPartialWriteResumes(t *testing.T) {
	s := New(zap.NewNop())
	payload := bytes.Repeat([]byte("a"), 50)
	if err := s.WriteMessage(3, MsgCommandAMF0, 0, 0, payload); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}

	w := &boundedWriter{n: 10}
	if err := s.Flush(w); err != ErrAgainWritable {
		t.Fatalf("got err %v, want ErrAgainWritable", err)
	}
	if !s.Pending() {
		t.Error("expected Pending() to report queued data remaining")
	}

	w.n = 1 << 20
	for s.Pending() {
		if err := s.Flush(w); err != nil {
			t.Fatalf("Flush returned error: %v", err)
		}
	}
	if w.buf.Len() == 0 {
		t.Error("expected some bytes to have been written")
	}
}

func TestWriteReadMessageRoundTrip(t *testing.T) {
	tx := New(zap.NewNop())
	tx.SetOutChunkSize(16)
	payload := bytes.Repeat([]byte("z"), 40)
	if err := tx.WriteMessage(5, MsgVideo, 1, 1000, payload); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}
	var wire bytes.Buffer
	if err := tx.Flush(&wire); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	rx := New(zap.NewNop())
	rx.SetInChunkSize(16)
	msg, err := rx.ReadMessage(&wire)
	if err != nil {
		t.Fatalf("ReadMessage returned error: %v", err)
	}
	if msg.TypeID != MsgVideo {
		t.Errorf("got type %d, want %d", msg.TypeID, MsgVideo)
	}
	if msg.Timestamp != 1000 {
		t.Errorf("got timestamp %d, want 1000", msg.Timestamp)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Errorf("got payload %q, want %q", msg.Payload, payload)
	}
}

func TestAckDueAtHalfWindow(t *testing.T) {
	s := New(zap.NewNop())
	s.SetWindowAckSize(100)
	s.accountBytes(40)
	if due, _ := s.AckDue(); due {
		t.Error("expected AckDue to be false below half the window")
	}
	s.accountBytes(20)
	due, total := s.AckDue()
	if !due {
		t.Error("expected AckDue to be true at half the window")
	}
	if total != 60 {
		t.Errorf("got total %d, want 60", total)
	}
	if due, _ := s.AckDue(); due {
		t.Error("expected AckDue to reset after firing")
	}
}
