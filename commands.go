package rtmp

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumenstream/rtmppub/amf0"
	"github.com/lumenstream/rtmppub/chunk"
)

// requestConnect sends the "connect" command that opens the dialogue. Its
// command object mirrors the fields an encoder (OBS, ffmpeg, FMLE) sends,
// the same set the teacher library's StartPlayback built.
func (c *Client) requestConnect() error {
	id := c.nextTransactionID()
	c.trackPending(id, "connect")

	cmdObj := map[string]interface{}{
		"app":           c.app,
		"flashVer":      c.cfg.FlashVersion,
		"tcUrl":         c.tcURL,
		"fpad":          false,
		"capabilities":  float64(c.cfg.Capabilities),
		"audioCodecs":   float64(4071),
		"videoCodecs":   float64(252),
		"videoFunction": float64(1),
	}
	payload, err := encodeCommand("connect", id, cmdObj)
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, 0, payload)
}

func (c *Client) requestReleaseStream() error {
	id := c.nextTransactionID()
	c.trackPending(id, "releaseStream")
	payload, err := encodeCommand("releaseStream", id, nil, c.streamKey)
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, 0, payload)
}

func (c *Client) requestFCPublish() error {
	id := c.nextTransactionID()
	c.trackPending(id, "FCPublish")
	payload, err := encodeCommand("FCPublish", id, nil, c.streamKey)
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, 0, payload)
}

func (c *Client) requestCreateStream() error {
	id := c.nextTransactionID()
	c.trackPending(id, "createStream")
	payload, err := encodeCommand("createStream", id, nil)
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, 0, payload)
}

func (c *Client) requestPublish() error {
	id := c.nextTransactionID()
	c.trackPending(id, "publish")
	payload, err := encodeCommand("publish", id, nil, c.streamKey, "live")
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, c.msid, payload)
}

// requestCheckBW answers the server's onBWDone notification the same way
// the original implementation's handle_bwdone did: a courtesy _checkbw
// call with a fresh transaction ID that nothing downstream waits on.
func (c *Client) requestCheckBW() error {
	id := c.nextTransactionID()
	payload, err := encodeCommand("_checkbw", id, nil)
	if err != nil {
		return err
	}
	return c.sendCommand(chunk.CommandChannel, 0, payload)
}

func (c *Client) sendCommand(csid, msid uint32, payload []byte) error {
	if err := c.stream.WriteMessage(csid, chunk.MsgCommandAMF0, msid, 0, payload); err != nil {
		return err
	}
	return c.flushLocked()
}

// readLoop pulls messages off the wire until the connection closes or
// errors, dispatching each one by its message type ID.
func (c *Client) readLoop() {
	for {
		msg, err := c.stream.ReadMessage(c.r)
		if err != nil {
			c.logger.Info("read loop ending", zap.String("client", c.id), zap.Error(err))
			select {
			case c.publishResult <- errors.Wrap(ErrNetwork, err.Error()):
			default:
			}
			c.Disconnect()
			c.setIdle(ReasonNetworkError)
			return
		}
		c.socket.Arm(c.cfg.SocketIdleTimeout)
		c.dispatch(msg)
		if due, total := c.stream.AckDue(); due {
			c.sendAck(total)
		}
	}
}

func (c *Client) sendAck(total uint32) {
	if err := c.stream.WriteMessage(chunk.ProtocolChannel, chunk.MsgAck, 0, 0, chunk.EncodeAck(total)); err != nil {
		c.logger.Warn("failed to queue ack", zap.Error(err))
		return
	}
	if err := c.flushLocked(); err != nil {
		c.logger.Warn("failed to flush ack", zap.Error(err))
	}
}

func (c *Client) dispatch(msg chunk.Message) {
	switch msg.TypeID {
	case chunk.MsgSetChunkSize:
		c.stream.SetInChunkSize(chunk.DecodeSetChunkSize(msg.Payload))
	case chunk.MsgWindowAckSize:
		c.stream.SetWindowAckSize(chunk.DecodeWindowAckSize(msg.Payload))
	case chunk.MsgSetPeerBandwidth:
		size, limit := chunk.DecodeSetPeerBandwidth(msg.Payload)
		c.stream.SetPeerBandwidth(size, limit)
		if c.callbacks.PeerBandwidthChanged != nil {
			c.callbacks.PeerBandwidthChanged(size, limit)
		}
	case chunk.MsgUserControl:
		c.handleUserControl(msg.Payload)
	case chunk.MsgAck, chunk.MsgAbortMessage:
		// Both are ignored. Acknowledgements from the server are
		// informational. An Abort does not discard the partial message
		// chunk.Stream may hold for the aborted csid.
	case chunk.MsgCommandAMF0:
		c.handleCommand(msg)
	default:
		c.logger.Debug("ignoring unsupported incoming message", zap.Uint8("type", msg.TypeID))
	}
}

func (c *Client) handleUserControl(payload []byte) {
	event, data := chunk.DecodeUserControl(payload)
	if event != chunk.EventPingRequest {
		return
	}
	resp := chunk.EncodeUserControl(chunk.EventPingResponse, data)
	if err := c.stream.WriteMessage(chunk.ProtocolChannel, chunk.MsgUserControl, 0, 0, resp); err != nil {
		c.logger.Warn("failed to queue ping response", zap.Error(err))
		return
	}
	if err := c.flushLocked(); err != nil {
		c.logger.Warn("failed to flush ping response", zap.Error(err))
	}
}

func (c *Client) handleCommand(msg chunk.Message) {
	buf := amf0.NewBuffer(msg.Payload)
	name, err := buf.ReadString()
	if err != nil {
		c.logger.Warn("malformed command name", zap.Error(err))
		return
	}
	id, err := buf.ReadNumber()
	if err != nil {
		c.logger.Warn("malformed command transaction id", zap.Error(err))
		return
	}

	switch name {
	case "_result", "_error":
		c.handleResult(name, id, buf)
	case "onStatus":
		c.handleStatus(buf)
	case "onBWDone":
		if err := c.requestCheckBW(); err != nil {
			c.logger.Warn("failed to answer onBWDone", zap.Error(err))
		}
	default:
		c.logger.Debug("ignoring unsupported command", zap.String("name", name))
	}
}

func (c *Client) handleResult(name string, id float64, buf *amf0.Buffer) {
	command, ok := c.takePending(id)
	if !ok {
		return
	}

	if name == "_error" {
		c.failPublish(errors.Wrapf(ErrProtocol, "%s was rejected by the server", command))
		return
	}

	switch command {
	case "connect":
		// First value is the server's properties object, second is the
		// status information object; only the latter matters here.
		_ = buf.SkipData()
		info, err := amf0.DecodeValue(buf)
		if err != nil {
			c.failPublish(errors.Wrap(ErrMalformed, err.Error()))
			return
		}
		m, _ := info.(map[string]interface{})
		if code, _ := m["code"].(string); code != "" && !hasPrefixFold(code, "NetConnection.Connect.Success") {
			desc, _ := m["description"].(string)
			c.failPublish(newStatusError(code, desc, errors.Wrapf(ErrProtocol, "connect rejected: %s (%s)", code, desc)))
			return
		}
		if err := c.requestReleaseStream(); err != nil {
			c.failPublish(err)
			return
		}
		if err := c.requestFCPublish(); err != nil {
			c.failPublish(err)
			return
		}
		if err := c.requestCreateStream(); err != nil {
			c.failPublish(err)
		}
	case "createStream":
		_ = buf.SkipData()
		streamID, err := amf0.DecodeValue(buf)
		if err != nil {
			c.failPublish(errors.Wrap(ErrMalformed, err.Error()))
			return
		}
		id, ok := streamID.(float64)
		if !ok {
			c.failPublish(errors.Wrap(ErrProtocol, "createStream result did not contain a stream ID"))
			return
		}
		c.msid = uint32(id)
		if err := c.requestPublish(); err != nil {
			c.failPublish(err)
		}
	case "releaseStream", "FCPublish":
		// Fire-and-forget: neither result gates the publish dialogue.
	}
}

func (c *Client) handleStatus(buf *amf0.Buffer) {
	_ = buf.SkipData() // command object, always null for onStatus
	info, err := amf0.DecodeValue(buf)
	if err != nil {
		c.logger.Warn("malformed onStatus info object", zap.Error(err))
		return
	}
	m, _ := info.(map[string]interface{})
	code, _ := m["code"].(string)
	level, _ := m["level"].(string)
	description, _ := m["description"].(string)

	c.logger.Info("onStatus", zap.String("code", code), zap.String("level", level))

	switch {
	case code == "NetStream.Publish.Start":
		c.completePublish(nil)
	case level == "error":
		c.failPublish(newStatusError(code, description, errors.Wrapf(ErrProtocol, "%s: %s", code, description)))
	}
}

func (c *Client) failPublish(err error) {
	select {
	case c.publishResult <- err:
	default:
	}
}

func (c *Client) completePublish(err error) {
	select {
	case c.publishResult <- err:
	default:
	}
}
