package rtmp

import (
	"github.com/pkg/errors"

	"github.com/lumenstream/rtmppub/amf0"
	"github.com/lumenstream/rtmppub/chunk"
)

// metadataChannel carries onMetadata and other AMF0 data messages; the
// teacher library put these on the same channel as AMF0 commands.
const metadataChannel = chunk.CommandChannel

// SendMetadata sends an onMetadata data message describing the stream about
// to be published. It should be called once, right after Connect returns,
// before any audio/video data.
func (c *Client) SendMetadata(duration, width, height, framerate, audioSampleRate, audioSampleSize float64) error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	buf := amf0.NewBuffer(nil)
	if err := amf0.Encode(buf, "%s", "onMetaData"); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	arr := metadataArray(duration, width, height, framerate, audioSampleRate, audioSampleSize)
	enc, err := amf0.EncodeValue(arr)
	if err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	payload := append(buf.Bytes(), enc...)
	return c.sendData(payload)
}

// SendPackedMetadata sends a caller-supplied, already-AMF0-encoded data
// message verbatim, for callers that built their own onMetadata payload (or
// are relaying one captured from another source) instead of using
// SendMetadata's built-in field set.
func (c *Client) SendPackedMetadata(data []byte, timestamp uint32, frameUserdata interface{}) error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	if err := c.stream.WriteMessage(metadataChannel, chunk.MsgDataAMF0, c.msid, timestamp, data); err != nil {
		return c.mapQueueErr(err)
	}
	return c.flushAndUnref(frameUserdata)
}

func (c *Client) sendData(payload []byte) error {
	if err := c.stream.WriteMessage(metadataChannel, chunk.MsgDataAMF0, c.msid, 0, payload); err != nil {
		return c.mapQueueErr(err)
	}
	return c.flushLocked()
}

// SendAudioSpecificConfig sends an AAC AudioSpecificConfig as an AAC
// sequence header; the server requires it once, before the first
// SendAudioData call, so decoders downstream can configure themselves.
func (c *Client) SendAudioSpecificConfig(asc []byte, frameUserdata interface{}) error {
	return c.sendAudio(buildAudioSpecificConfigPayload(asc), 0, frameUserdata)
}

// SendAudioData sends one AAC audio frame with the given presentation
// timestamp, in milliseconds.
func (c *Client) SendAudioData(data []byte, timestamp uint32, frameUserdata interface{}) error {
	return c.sendAudio(buildAudioDataPayload(data), timestamp, frameUserdata)
}

func (c *Client) sendAudio(payload []byte, timestamp uint32, frameUserdata interface{}) error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	if err := c.stream.WriteMessage(c.cfg.AudioChunkStreamID, chunk.MsgAudio, c.msid, timestamp, payload); err != nil {
		return c.mapQueueErr(err)
	}
	return c.flushAndUnref(frameUserdata)
}

// SendVideoAVCC sends an AVCDecoderConfigurationRecord as an AVC sequence
// header; required once, before the first SendVideoFrame call.
func (c *Client) SendVideoAVCC(avcc []byte, frameUserdata interface{}) error {
	return c.sendVideo(buildVideoAVCCPayload(avcc), 0, frameUserdata)
}

// SendVideoFrame sends one AVCC-formatted (4-byte NAL length prefixes)
// access unit with the given presentation timestamp, in milliseconds.
// Whether the frame is a keyframe is inferred from its NAL units.
func (c *Client) SendVideoFrame(avcc []byte, timestamp uint32, frameUserdata interface{}) error {
	return c.sendVideo(buildVideoFramePayload(avcc), timestamp, frameUserdata)
}

func (c *Client) sendVideo(payload []byte, timestamp uint32, frameUserdata interface{}) error {
	if !c.isConnected() {
		return ErrNotConnected
	}
	if err := c.stream.WriteMessage(chunk.VideoChannel, chunk.MsgVideo, c.msid, timestamp, payload); err != nil {
		return c.mapQueueErr(err)
	}
	return c.flushAndUnref(frameUserdata)
}

func (c *Client) mapQueueErr(err error) error {
	if errors.Is(err, chunk.ErrQueueFull) {
		return errors.Wrap(ErrQueueFull, err.Error())
	}
	return err
}

// flushAndUnref attempts to flush immediately so the caller gets a timely
// ErrNetwork signal (ErrAgainWritable is not reported, since the data stays
// queued for the next flush), then releases frameUserdata back to
// the caller once the data is at least queued (not necessarily on the wire
// yet, matching the teacher library's fire-and-forget buffering model).
func (c *Client) flushAndUnref(frameUserdata interface{}) error {
	err := c.flushLocked()
	if c.callbacks.DataUnref != nil {
		c.callbacks.DataUnref(frameUserdata)
	}
	if err != nil && !errors.Is(err, ErrAgainWritable) {
		return err
	}
	return nil
}
