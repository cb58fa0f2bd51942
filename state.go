package rtmp

// State is one stage of a Client's connection lifecycle. Callbacks receive
// every transition through ConnectionState, in the order listed below.
type State uint8

const (
	// StateIdle is the initial state, and the state a Client returns to
	// after Disconnect or any connection failure.
	StateIdle State = iota
	// StateWaitDNS is resolving the server's hostname.
	StateWaitDNS
	// StateWaitTCP is waiting for the TCP (or TLS, for rtmps) connection
	// to establish.
	StateWaitTCP
	// StateWaitS0S1 is waiting for the server's S0/S1 response to our C0/C1.
	StateWaitS0S1
	// StateWaitS2 is waiting for the server to echo our C1 back as S2.
	StateWaitS2
	// StateWaitFMS covers the whole connect/releaseStream/FCPublish/
	// createStream/publish dialogue, up to the server's
	// onStatus(NetStream.Publish.Start).
	StateWaitFMS
	// StateReady means the publish dialogue has completed: media sent
	// through Send* from here on reaches the server.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitDNS:
		return "wait-dns"
	case StateWaitTCP:
		return "wait-tcp"
	case StateWaitS0S1:
		return "wait-s0-s1"
	case StateWaitS2:
		return "wait-s2"
	case StateWaitFMS:
		return "wait-fms"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
