package rtpcodec

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtcencoder"
)

func TestToRTPCodecCapability(t *testing.T) {
	format := rtcencoder.CreateH264Format(rtcencoder.H264ProfileConstrainedBaseline, rtcencoder.H264Level3_1, "1")
	c := ToRTPCodecCapability(format)
	assert.Equal(t, webrtc.MimeTypeH264, c.MimeType)
	assert.Equal(t, uint32(90000), c.ClockRate)
	assert.Equal(t, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f", c.SDPFmtpLine)
	assert.Contains(t, c.RTCPFeedback, webrtc.RTCPFeedback{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"})

	c = ToRTPCodecCapability(rtcencoder.NewSDPVideoFormat("vp8", nil))
	assert.Equal(t, webrtc.MimeTypeVP8, c.MimeType)
	assert.Empty(t, c.SDPFmtpLine)
}

func TestFromRTPCodecCapability(t *testing.T) {
	format, err := FromRTPCodecCapability(webrtc.RTPCodecCapability{
		MimeType:    "video/vp9",
		ClockRate:   90000,
		SDPFmtpLine: "profile-id=2",
	})
	require.NoError(t, err)
	assert.Equal(t, rtcencoder.CodecNameVP9, format.Name)
	assert.True(t, format.IsSameCodec(rtcencoder.CreateVP9Format(rtcencoder.VP9Profile2)))

	_, err = FromRTPCodecCapability(webrtc.RTPCodecCapability{MimeType: "audio/opus"})
	assert.Error(t, err)
	_, err = FromRTPCodecCapability(webrtc.RTPCodecCapability{MimeType: "video/"})
	assert.Error(t, err)
}

func TestRegisterVideoCodecs(t *testing.T) {
	formats := append(
		[]rtcencoder.SDPVideoFormat{rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameVP8, nil)},
		rtcencoder.DefaultH264Formats()...,
	)

	me := &webrtc.MediaEngine{}
	registered, err := RegisterVideoCodecs(me, formats, 96)
	require.NoError(t, err)
	require.Len(t, registered, len(formats))
	for idx, params := range registered {
		assert.Equal(t, webrtc.PayloadType(96+2*idx), params.PayloadType)
		back, err := FromRTPCodecParameters(params)
		require.NoError(t, err)
		assert.True(t, back.IsSameCodec(formats[idx]), "%s != %s", back, formats[idx])
	}

	_, err = RegisterVideoCodecs(&webrtc.MediaEngine{}, formats, 120)
	assert.Error(t, err)

	for _, pt := range []webrtc.PayloadType{1, 26, 95} {
		_, err = RegisterVideoCodecs(&webrtc.MediaEngine{}, formats, pt)
		assert.Error(t, err, "payload type %d", pt)
	}
}
