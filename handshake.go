package rtmp

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/lumenstream/rtmppub/rand"
)

// RTMP version advertised in C0/S0. This client only speaks (and only
// accepts) the plain, unencrypted version 3 handshake; Non-goal per the
// specification's scope, so no digest/crypto handshake variants are
// attempted.
const rtmpVersion3 = 3

var (
	errUnsupportedRTMPVersion = errors.Wrap(ErrProtocol, "server does not speak RTMP version 3")
	errWrongS2Message         = errors.Wrap(ErrProtocol, "S2 echo does not match the C1 we sent")
)

func sendC0C1(w *bufio.Writer) ([]byte, error) {
	var c0c1 [1537]byte
	c0c1[0] = rtmpVersion3
	if err := rand.GenerateCryptoSafeRandomData(c0c1[9:]); err != nil {
		return nil, err
	}
	if err := sendFlush(w, c0c1[:]); err != nil {
		return nil, err
	}
	return c0c1[1:], nil
}

func readS0S1S2(r *bufio.Reader) (s1, s2 []byte, err error) {
	var buf [1 + 2*1536]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, nil, errors.Wrap(ErrNetwork, err.Error())
	}
	if buf[0] != rtmpVersion3 {
		return nil, nil, errUnsupportedRTMPVersion
	}
	return buf[1:1537], buf[1537:], nil
}

func sendC2(w *bufio.Writer, s1 []byte) error {
	var c2 [1536]byte
	copy(c2[:], s1)
	return sendFlush(w, c2[:])
}

func sendFlush(w *bufio.Writer, p []byte) error {
	if _, err := w.Write(p); err != nil {
		return errors.Wrap(ErrNetwork, err.Error())
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(ErrNetwork, err.Error())
	}
	return nil
}
