package rtmp

import "github.com/pkg/errors"

// Error taxonomy. Every error this package returns either is one of these
// sentinels or wraps one of them with errors.Wrap, so callers can classify
// a failure with errors.Is/errors.Cause without parsing message text.
var (
	// ErrInvalidArgument is returned when a caller-supplied argument is
	// nonsensical (a nil buffer, an empty URI, a negative duration, ...).
	ErrInvalidArgument = errors.New("rtmp: invalid argument")

	// ErrProtocol is returned when the peer's behavior violates the RTMP
	// specification in a way that can't be recovered from (a handshake
	// echo mismatch, an out-of-order command, ...).
	ErrProtocol = errors.New("rtmp: protocol violation")

	// ErrMalformed is returned when a message's bytes can't be parsed as
	// the AMF0/chunk structure they claim to be.
	ErrMalformed = errors.New("rtmp: malformed message")

	// ErrNoMemory classifies a buffer that would have to grow past a sane
	// bound to hold an incoming message. No function in this package
	// returns it; incoming messages are not size-bounded.
	ErrNoMemory = errors.New("rtmp: refusing to allocate a buffer this large")

	// ErrNetwork wraps a lower-level net/TLS error.
	ErrNetwork = errors.New("rtmp: network error")

	// ErrTimeout is returned when a watchdog timer (DNS, socket idle,
	// handshake, publish dialogue) expires.
	ErrTimeout = errors.New("rtmp: timed out")

	// ErrQueueFull is returned by Send* calls when a chunk stream's
	// outgoing queue is full; re-exported from the chunk package so
	// callers don't need to import it directly.
	ErrQueueFull = errors.New("rtmp: send queue is full")

	// ErrAgainWritable is returned when a Flush could not write
	// everything queued because the socket would have blocked.
	ErrAgainWritable = errors.New("rtmp: write would block")

	// ErrUnsupported classifies RTMP features this client deliberately
	// doesn't implement (AMF3, server-side roles, ...). No function in this
	// package returns it; unsupported incoming messages are logged and
	// ignored.
	ErrUnsupported = errors.New("rtmp: unsupported")

	// ErrNotConnected is returned by Send*/Flush when called before the
	// client reaches StateReady.
	ErrNotConnected = errors.New("rtmp: not connected")

	// ErrClosed marks a client that has been disconnected. No function in
	// this package returns it: Send* and Flush calls made after Disconnect
	// return ErrNotConnected.
	ErrClosed = errors.New("rtmp: client closed")
)

// DisconnectionReason classifies why a connection ended, passed to the
// ConnectionState callback alongside StateIdle.
type DisconnectionReason uint8

const (
	ReasonClientRequest DisconnectionReason = iota
	ReasonServerRequest
	ReasonNetworkError
	ReasonRefused
	ReasonAlreadyInUse
	ReasonTimeout
	ReasonInternalError
	ReasonUnknown
)

func (r DisconnectionReason) String() string {
	switch r {
	case ReasonClientRequest:
		return "client request"
	case ReasonServerRequest:
		return "server request"
	case ReasonNetworkError:
		return "network error"
	case ReasonRefused:
		return "refused"
	case ReasonAlreadyInUse:
		return "already in use"
	case ReasonTimeout:
		return "timeout"
	case ReasonInternalError:
		return "internal error"
	default:
		return "unknown"
	}
}

// statusError pairs a protocol error with the DisconnectionReason the
// server's status code/description mapped to, so reasonFor can recover it
// without re-parsing the status text.
type statusError struct {
	err    error
	reason DisconnectionReason
}

func newStatusError(code, description string, err error) error {
	return &statusError{err: err, reason: reasonFromStatus(code, description)}
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Cause() error  { return e.err }
func (e *statusError) Unwrap() error { return e.err }

// reasonFromStatus maps an onStatus/_error info object's "code"/"description"
// to a DisconnectionReason, following the same description-substring then
// code-prefix heuristic the original client used to interpret servers that
// don't agree on exact status codes.
func reasonFromStatus(code, description string) DisconnectionReason {
	switch {
	case containsFold(description, "already") && containsFold(description, "use"):
		return ReasonAlreadyInUse
	case containsFold(description, "refused") || containsFold(description, "rejected") || containsFold(description, "denied"):
		return ReasonRefused
	}
	switch {
	case hasPrefixFold(code, "NetConnection.Connect.Rejected"),
		hasPrefixFold(code, "NetConnection.Connect.InvalidApp"):
		return ReasonRefused
	case hasPrefixFold(code, "NetStream.Publish.BadName"):
		return ReasonAlreadyInUse
	}
	return ReasonUnknown
}
