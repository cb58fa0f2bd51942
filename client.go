// Package rtmp implements an RTMP publishing client: the chunk stream
// framing, handshake, and AMF0 command dialogue needed to connect to an
// RTMP server and publish a live audio/video stream to it. It does not
// implement the server side of the protocol, nor playback (subscribing to
// a stream) -- this is a one-way, publish-only client.
package rtmp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumenstream/rtmppub/amf0"
	"github.com/lumenstream/rtmppub/chunk"
	"github.com/lumenstream/rtmppub/config"
	"github.com/lumenstream/rtmppub/rand"
)

// Callbacks groups the notifications a Client delivers. Only
// ConnectionState is mandatory to act on; the others are informational.
type Callbacks struct {
	// ConnectionState is called on every state transition, including the
	// final one back to StateIdle, at which point reason explains why.
	ConnectionState func(state State, reason DisconnectionReason)

	// PeerBandwidthChanged is called whenever the server sends a new Set
	// Peer Bandwidth protocol message.
	PeerBandwidthChanged func(bandwidth uint32, limit uint8)

	// DataUnref is called once a frame passed to SendVideoFrame,
	// SendVideoAVCC, SendAudioData, SendAudioSpecificConfig or
	// SendPackedMetadata has been copied into the outgoing queue (not
	// necessarily written to the socket yet) and frameUserdata may be
	// reused or freed by the caller.
	DataUnref func(frameUserdata interface{})
}

// Client is one RTMP publishing connection. It is not safe to share a
// Client across goroutines calling Connect concurrently, but Send*/Flush
// may be called from any goroutine once Connect has returned successfully.
type Client struct {
	cfg       *config.Config
	logger    *zap.Logger
	callbacks Callbacks
	id        string

	mu    sync.Mutex
	state State
	conn  net.Conn
	r     *bufio.Reader
	w     *bufio.Writer

	stream *chunk.Stream
	msid   uint32

	app       string
	streamKey string
	tcURL     string

	nextAMFID      float64
	pendingByID    map[float64]string
	publishResult  chan error
	closed         bool
	closeOnce      sync.Once

	dns    *watchdog
	socket *watchdog
}

// New creates a Client. cfg and logger must be non-nil; use
// config.DefaultConfig() and a zap.Logger from the log package if the
// caller has no preference.
func New(cfg *config.Config, logger *zap.Logger, callbacks Callbacks) *Client {
	c := &Client{
		cfg:           cfg,
		logger:        logger,
		callbacks:     callbacks,
		id:            rand.GenerateUuid(),
		state:         StateIdle,
		nextAMFID:     1,
		pendingByID:   make(map[float64]string),
		publishResult: make(chan error, 1),
	}
	c.dns = newWatchdog(func() { c.abort(ErrTimeout, ReasonTimeout) })
	c.socket = newWatchdog(func() { c.abort(ErrTimeout, ReasonTimeout) })
	return c
}

// Connect parses uri, dials the server it names, performs the handshake, and runs the connect/
// createStream/publish dialogue through to onStatus(NetStream.Publish.Start).
// It blocks until the client reaches StateReady or the dialogue fails.
func (c *Client) Connect(ctx context.Context, uri string) error {
	target, err := ParseURI(uri, c.cfg)
	if err != nil {
		return err
	}

	c.logger.Info("connecting", zap.String("client", c.id), zap.String("uri", target.Anonymize()))

	c.setState(StateWaitDNS)
	c.dns.Arm(c.cfg.DialTimeout)
	c.setState(StateWaitTCP)
	conn, err := c.dial(ctx, target, target.Addr())
	c.dns.Stop()
	if err != nil {
		c.setIdle(ReasonNetworkError)
		return errors.Wrap(ErrNetwork, err.Error())
	}
	c.conn = conn
	c.r = bufio.NewReaderSize(conn, c.cfg.BufioSize)
	c.w = bufio.NewWriterSize(conn, c.cfg.BufioSize)
	c.socket.Arm(c.cfg.HandshakeTimeout)

	c.setState(StateWaitS0S1)
	if err := c.handshake(); err != nil {
		c.setIdle(reasonFor(err))
		return err
	}
	c.socket.Arm(c.cfg.SocketIdleTimeout)

	c.setState(StateWaitFMS)
	c.stream = chunk.New(c.logger)
	c.stream.SetOutChunkSize(c.cfg.ChunkSize)

	go c.readLoop()

	if err := c.runPublishDialogue(target); err != nil {
		c.setIdle(reasonFor(err))
		return err
	}

	c.setState(StateReady)
	return nil
}

func (c *Client) dial(ctx context.Context, target *URI, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	if !target.Secure {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(rawConn, &tls.Config{ServerName: target.Host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// handshake performs C0/C1 -> S0/S1/S2 -> C2, advancing through
// StateWaitS0S1 and StateWaitS2 for the ConnectionState callback's benefit.
func (c *Client) handshake() error {
	c1, err := sendC0C1(c.w)
	if err != nil {
		return err
	}
	c.setState(StateWaitS2)
	s1, s2, err := readS0S1S2(c.r)
	if err != nil {
		return err
	}
	if !bytes.Equal(c1, s2) {
		return errWrongS2Message
	}
	return sendC2(c.w, s1)
}

// runPublishDialogue drives connect -> releaseStream -> FCPublish ->
// createStream -> publish, and blocks until the readLoop reports the
// outcome via c.publishResult (signalled from onStatus/_error handling).
func (c *Client) runPublishDialogue(target *URI) error {
	c.app = target.App
	c.streamKey = target.StreamKey
	c.tcURL = target.String()

	if err := c.sendSetChunkSize(c.cfg.ChunkSize); err != nil {
		return err
	}
	if err := c.requestConnect(); err != nil {
		return err
	}

	timer := time.NewTimer(c.cfg.FmsWaitTimeout)
	defer timer.Stop()
	select {
	case err := <-c.publishResult:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

func reasonFor(err error) DisconnectionReason {
	var se *statusError
	if errors.As(err, &se) {
		return se.reason
	}
	switch errors.Cause(err) {
	case ErrTimeout:
		return ReasonTimeout
	case ErrNetwork:
		return ReasonNetworkError
	default:
		return ReasonInternalError
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.callbacks.ConnectionState != nil {
		c.callbacks.ConnectionState(s, 0)
	}
}

func (c *Client) setIdle(reason DisconnectionReason) {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	if c.callbacks.ConnectionState != nil {
		c.callbacks.ConnectionState(StateIdle, reason)
	}
}

// abort tears the connection down immediately, used by the watchdog timers.
func (c *Client) abort(err error, reason DisconnectionReason) {
	c.logger.Warn("aborting connection", zap.String("client", c.id), zap.Error(err))
	select {
	case c.publishResult <- err:
	default:
	}
	c.Disconnect()
	c.setIdle(reason)
}

// Disconnect closes the underlying connection. It is safe to call more
// than once and safe to call from any goroutine.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()
		c.dns.Stop()
		c.socket.Stop()
		if conn != nil {
			conn.Close()
		}
	})
}

func (c *Client) nextTransactionID() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextAMFID
	c.nextAMFID++
	return id
}

func (c *Client) trackPending(id float64, command string) {
	c.mu.Lock()
	c.pendingByID[id] = command
	c.mu.Unlock()
}

func (c *Client) takePending(id float64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd, ok := c.pendingByID[id]
	if ok {
		delete(c.pendingByID, id)
	}
	return cmd, ok
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.state == StateReady
}

// sendSetChunkSize sends a Set Chunk Size protocol message and updates the
// outgoing chunk size used for every subsequent message.
func (c *Client) sendSetChunkSize(size uint32) error {
	c.stream.SetOutChunkSize(size)
	if err := c.stream.WriteMessage(chunk.ProtocolChannel, chunk.MsgSetChunkSize, 0, 0, chunk.EncodeSetChunkSize(size)); err != nil {
		return err
	}
	return c.flushLocked()
}

func (c *Client) flushLocked() error {
	if err := c.stream.Flush(c.w); err != nil {
		if errors.Is(err, chunk.ErrAgainWritable) {
			return errors.Wrap(ErrAgainWritable, err.Error())
		}
		return errors.Wrap(ErrNetwork, err.Error())
	}
	return c.w.Flush()
}

// Flush drains every chunk stream's outgoing queue against the socket now,
// blocking until it either succeeds or the connection errors.
func (c *Client) Flush() error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	return c.flushLocked()
}

// encodeCommand builds "name" "%f" transactionID followed by the AMF0
// encoding of extra, used by every command this client sends.
func encodeCommand(name string, transactionID float64, extra ...interface{}) ([]byte, error) {
	buf := amf0.NewBuffer(nil)
	if err := amf0.Encode(buf, "%s%f", name, transactionID); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	for _, v := range extra {
		enc, err := amf0.EncodeValue(v)
		if err != nil {
			return nil, err
		}
		data = append(data, enc...)
	}
	return data, nil
}
