package rtmp

import (
	"github.com/lumenstream/rtmppub/amf0"
	"github.com/lumenstream/rtmppub/audio"
	"github.com/lumenstream/rtmppub/video"
)

// audioHeaderByte packs the FLV audio tag header byte: format in the high
// nibble, sample rate/size/channel count in the low nibble, the same
// bit layout message_manager.go's onAudioMessage parses on the way in.
func audioHeaderByte(format audio.Format, rate audio.SampleRate, size audio.SampleSize, channels audio.Channel) byte {
	return byte(format)<<4 | byte(rate)<<2 | byte(size)<<1 | byte(channels)
}

// videoHeaderByte packs the FLV video tag header byte: frame type in the
// high nibble, codec ID in the low nibble.
func videoHeaderByte(frameType video.FrameType, codec video.Codec) byte {
	return byte(frameType)<<4 | byte(codec)
}

// buildAudioSpecificConfigPayload wraps an AAC AudioSpecificConfig as an FLV
// AAC audio tag body: header byte, AACPacketType (sequence header), then the
// raw config bytes.
func buildAudioSpecificConfigPayload(asc []byte) []byte {
	payload := make([]byte, 2+len(asc))
	payload[0] = audioHeaderByte(audio.AAC, audio.Rate44KHz, audio.Size16Bit, audio.Stereo)
	payload[1] = byte(audio.AACSequenceHeader)
	copy(payload[2:], asc)
	return payload
}

// buildAudioDataPayload wraps one AAC frame as an FLV AAC audio tag body.
func buildAudioDataPayload(data []byte) []byte {
	payload := make([]byte, 2+len(data))
	payload[0] = audioHeaderByte(audio.AAC, audio.Rate44KHz, audio.Size16Bit, audio.Stereo)
	payload[1] = byte(audio.AACRaw)
	copy(payload[2:], data)
	return payload
}

// buildVideoAVCCPayload wraps an AVCDecoderConfigurationRecord as an FLV AVC
// video tag body (AVCSequenceHeader, composition time 0).
func buildVideoAVCCPayload(avcc []byte) []byte {
	payload := make([]byte, 5+len(avcc))
	payload[0] = videoHeaderByte(video.KeyFrame, video.H264)
	payload[1] = byte(video.AVCSequenceHeader)
	// Bytes 2-4 are the composition time, always 0 for a sequence header.
	copy(payload[5:], avcc)
	return payload
}

// buildVideoFramePayload wraps one AVCC-formatted access unit (4-byte NAL
// length prefixes, as produced by most encoders' RTP/RTMP output mode) as
// an FLV AVC video tag body, inferring the frame type from whether any NAL
// unit in it is an IDR slice (type 5).
func buildVideoFramePayload(avcc []byte) []byte {
	frameType := video.InterFrame
	if containsIDR(avcc) {
		frameType = video.KeyFrame
	}
	payload := make([]byte, 5+len(avcc))
	payload[0] = videoHeaderByte(frameType, video.H264)
	payload[1] = byte(video.AVCNALU)
	copy(payload[5:], avcc)
	return payload
}

// containsIDR scans a 4-byte-length-prefixed AVCC access unit for a NAL
// unit of type 5 (IDR slice), which marks the access unit as a keyframe.
func containsIDR(avcc []byte) bool {
	offset := 0
	for offset+4 <= len(avcc) {
		naluLen := int(avcc[offset])<<24 | int(avcc[offset+1])<<16 | int(avcc[offset+2])<<8 | int(avcc[offset+3])
		offset += 4
		if naluLen <= 0 || offset+naluLen > len(avcc) {
			return false
		}
		nalType := avcc[offset] & 0x1F
		if nalType == 5 {
			return true
		}
		offset += naluLen
	}
	return false
}

// metadataArray builds the onMetadata ECMA array SendMetadata sends,
// filling in the defaults the original implementation's
// rtmp_client_send_metadata used for fields the caller doesn't supply
// values for.
func metadataArray(duration, width, height, framerate, audioSampleRate, audioSampleSize float64) amf0.ECMAArray {
	m := amf0.ECMAArray{
		"duration":        duration,
		"width":           width,
		"height":          height,
		"videocodecid":    float64(video.H264),
		"videodatarate":   float64(0),
		"framerate":       framerate,
		"audiocodecid":    float64(audio.AAC),
		"audiodatarate":   float64(0),
		"audiosamplerate": audioSampleRate,
		"audiosamplesize": audioSampleSize,
		"stereo":          true,
	}
	if framerate == 0 {
		m["framerate"] = 29.97
	}
	return m
}
