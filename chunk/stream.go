// Package chunk implements the RTMP chunk stream layer: splitting outgoing
// messages into chunks with the minimal header needed, and reassembling
// incoming chunks back into messages.
package chunk

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by WriteMessage when a chunk stream ID's queue of
// framed-but-not-yet-written messages has reached MaxQueuedMessages.
var ErrQueueFull = errors.New("chunk: tx queue is full")

// ErrAgainWritable is returned by Flush when the underlying writer accepted
// only part of the pending data. The caller should retry Flush once the
// writer is writable again; nothing is lost, as the remainder stays queued.
var ErrAgainWritable = errors.New("chunk: write would block, retry once writable")

// Message is one complete, reassembled RTMP message.
type Message struct {
	Csid      uint32
	TypeID    uint8
	StreamID  uint32
	Timestamp uint32
	Payload   []byte
}

type rxChannel struct {
	prev *Header
	acc  []byte
	want uint32
}

type txChannel struct {
	prev   *Header
	queue  [][]byte
	offset int
}

// Stream holds all per-connection chunk stream state: the tx/rx channel
// tables, the negotiated chunk sizes, and the acknowledgement/bandwidth
// bookkeeping that spans every channel.
type Stream struct {
	logger *zap.Logger

	mu sync.Mutex

	inChunkSize  uint32
	outChunkSize uint32

	// windowAckSize is the window size the peer announced in its Window
	// Acknowledgement Size message; we send an Acknowledgement every time
	// we've received half of it.
	windowAckSize   uint32
	bytesSinceAck   uint32
	totalBytesRead  uint32

	peerBandwidth      uint32
	peerBandwidthLimit uint8

	rx map[uint32]*rxChannel
	tx map[uint32]*txChannel
}

// New creates a Stream with the protocol's default chunk size (128 bytes)
// in both directions.
func New(logger *zap.Logger) *Stream {
	return &Stream{
		logger:             logger,
		inChunkSize:        DefaultChunkSize,
		outChunkSize:       DefaultChunkSize,
		peerBandwidthLimit: LimitUnknown,
		rx:                 make(map[uint32]*rxChannel),
		tx:                 make(map[uint32]*txChannel),
	}
}

// SetInChunkSize updates the chunk size this side will use to reassemble
// incoming messages, in response to a received Set Chunk Size message.
func (s *Stream) SetInChunkSize(size uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inChunkSize = size
}

// SetOutChunkSize updates the chunk size used to frame outgoing messages.
// It does not announce the new size to the peer; the caller sends the Set
// Chunk Size message itself.
func (s *Stream) SetOutChunkSize(size uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outChunkSize = size
}

// SetWindowAckSize sets the window size the acknowledgement cadence is
// computed from.
func (s *Stream) SetWindowAckSize(size uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowAckSize = size
}

// SetPeerBandwidth records the bandwidth limit the peer advertised.
func (s *Stream) SetPeerBandwidth(size uint32, limit uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerBandwidth = size
	s.peerBandwidthLimit = limit
}

// WriteMessage frames payload as one RTMP message on chunk stream csid and
// queues it for Flush. The header type (0-3) is chosen to be the minimal
// one that can represent this message as a continuation of whatever was
// last sent on csid.
func (s *Stream) WriteMessage(csid uint32, typeID uint8, msid uint32, timestamp uint32, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.tx[csid]
	if !ok {
		ch = &txChannel{}
		s.tx[csid] = ch
	}
	if len(ch.queue) >= MaxQueuedMessages {
		return ErrQueueFull
	}

	fmtType, delta := selectType(ch.prev, msid, typeID, uint32(len(payload)), timestamp)
	h := &Header{
		Fmt:             fmtType,
		Csid:            csid,
		Timestamp:       timestamp,
		Delta:           delta,
		MessageLength:   uint32(len(payload)),
		TypeID:          typeID,
		MessageStreamID: msid,
	}

	framed := s.frame(h, payload)
	ch.queue = append(ch.queue, framed)
	ch.prev = h
	return nil
}

// frame builds the full wire representation (header + chunked payload,
// including type-3 continuation headers) of one message.
func (s *Stream) frame(h *Header, payload []byte) []byte {
	buf := encodeBasicHeader(nil, h.Fmt, h.Csid)
	buf = encodeMessageHeader(buf, h.Fmt, h)

	chunkSize := int(s.outChunkSize)
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	if len(payload) <= chunkSize {
		return append(buf, payload...)
	}

	buf = append(buf, payload[:chunkSize]...)
	offset := chunkSize
	contHeader := continuationHeader(h)
	for offset < len(payload) {
		buf = append(buf, contHeader...)
		end := offset + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		buf = append(buf, payload[offset:end]...)
		offset = end
	}
	return buf
}

// continuationHeader builds the type-3 basic (+ extended timestamp, if the
// message's timestamp needed one) header chunk continuations use.
func continuationHeader(h *Header) []byte {
	buf := encodeBasicHeader(nil, Type3, h.Csid)
	ts := h.Timestamp
	if h.Fmt != Type0 {
		ts = h.Delta
	}
	if ts >= extendedTimestampSentinel {
		ext := make([]byte, 4)
		ext[0] = byte(ts >> 24)
		ext[1] = byte(ts >> 16)
		ext[2] = byte(ts >> 8)
		ext[3] = byte(ts)
		buf = append(buf, ext...)
	}
	return buf
}

// Flush writes as much queued data as w accepts, in FIFO order per channel,
// round-robining across channels so one busy stream cannot starve another.
// If w returns a short write, Flush remembers the offset and returns
// ErrAgainWritable; the remaining bytes are written on the next call.
func (s *Stream) Flush(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := true
	for progress {
		progress = false
		for _, ch := range s.tx {
			if len(ch.queue) == 0 {
				continue
			}
			data := ch.queue[0][ch.offset:]
			n, err := w.Write(data)
			ch.offset += n
			if err != nil {
				return err
			}
			if n < len(data) {
				return ErrAgainWritable
			}
			ch.queue = ch.queue[1:]
			ch.offset = 0
			progress = true
		}
	}
	return nil
}

// Pending reports whether any channel still has queued, unflushed data.
func (s *Stream) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.tx {
		if len(ch.queue) > 0 {
			return true
		}
	}
	return false
}

// ReadMessage blocks until one complete message has been read from r,
// assembling it from as many chunks as the negotiated chunk size requires.
func (s *Stream) ReadMessage(r io.Reader) (Message, error) {
	for {
		fmtType, csid, _, err := readBasicHeader(r)
		if err != nil {
			return Message{}, err
		}

		s.mu.Lock()
		ch, ok := s.rx[csid]
		if !ok {
			ch = &rxChannel{}
			s.rx[csid] = ch
		}
		var prev *Header
		if ok {
			prev = ch.prev
		}
		inChunkSize := s.inChunkSize
		s.mu.Unlock()

		h, n, err := readMessageHeader(r, fmtType, csid, prev)
		if err != nil {
			return Message{}, err
		}
		s.accountBytes(uint32(n))

		s.mu.Lock()
		ch.prev = &h
		s.mu.Unlock()

		want := int(inChunkSize)
		remaining := int(h.MessageLength) - len(ch.acc)
		if remaining < want {
			want = remaining
		}
		if want < 0 {
			want = 0
		}
		piece := make([]byte, want)
		if want > 0 {
			if _, err := io.ReadFull(r, piece); err != nil {
				return Message{}, err
			}
			s.accountBytes(uint32(want))
		}
		ch.acc = append(ch.acc, piece...)

		if uint32(len(ch.acc)) >= h.MessageLength {
			payload := ch.acc
			ch.acc = nil
			return Message{
				Csid:      csid,
				TypeID:    h.TypeID,
				StreamID:  h.MessageStreamID,
				Timestamp: h.Timestamp,
				Payload:   payload,
			}, nil
		}
		// Message spans further chunks; loop back for the next chunk header.
	}
}

// accountBytes feeds n bytes into the acknowledgement cadence. Whether an
// Acknowledgement is now due is reported by AckDue; the caller (the
// connection state machine) is responsible for actually sending it, since
// that requires access to the protocol channel's WriteMessage.
func (s *Stream) accountBytes(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalBytesRead += n
	s.bytesSinceAck += n
}

// AckDue reports whether enough bytes have been read since the last
// Acknowledgement to warrant sending a new one, per the cadence of sending
// one every half window-ack-size bytes. When it returns true, it also
// resets the internal counter and returns the total byte count to report.
func (s *Stream) AckDue() (due bool, totalBytesRead uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.windowAckSize == 0 {
		return false, 0
	}
	if s.bytesSinceAck < s.windowAckSize/2 {
		return false, 0
	}
	s.bytesSinceAck = 0
	return true, s.totalBytesRead
}
