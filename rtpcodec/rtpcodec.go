// Package rtpcodec converts SDP video formats into pion/webrtc codec
// descriptions, so the formats a factory supports can be negotiated.
package rtpcodec

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/xaionaro-go/rtcencoder"
)

const (
	ClockRate = 90000

	// FirstDynamicPayloadType is the lowest payload type not statically
	// assigned by RFC 3551.
	FirstDynamicPayloadType = webrtc.PayloadType(96)

	mimeTypePrefixVideo = "video/"
)

// VideoRTCPFeedback is what WebRTC video senders normally support.
func VideoRTCPFeedback() []webrtc.RTCPFeedback {
	return []webrtc.RTCPFeedback{
		{Type: webrtc.TypeRTCPFBGoogREMB},
		{Type: webrtc.TypeRTCPFBCCM, Parameter: "fir"},
		{Type: webrtc.TypeRTCPFBNACK},
		{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
		{Type: webrtc.TypeRTCPFBTransportCC},
	}
}

func MimeType(codec rtcencoder.CodecName) string {
	return mimeTypePrefixVideo + string(codec.Canonical())
}

func ToRTPCodecCapability(format rtcencoder.SDPVideoFormat) webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:     MimeType(format.Name),
		ClockRate:    ClockRate,
		SDPFmtpLine:  format.FmtpLine(),
		RTCPFeedback: VideoRTCPFeedback(),
	}
}

func FromRTPCodecCapability(c webrtc.RTPCodecCapability) (rtcencoder.SDPVideoFormat, error) {
	if len(c.MimeType) <= len(mimeTypePrefixVideo) ||
		!strings.EqualFold(c.MimeType[:len(mimeTypePrefixVideo)], mimeTypePrefixVideo) {
		return rtcencoder.SDPVideoFormat{}, fmt.Errorf("'%s' is not a video MIME type", c.MimeType)
	}
	name := rtcencoder.CodecName(c.MimeType[len(mimeTypePrefixVideo):]).Canonical()
	return rtcencoder.NewSDPVideoFormat(name, rtcencoder.ParseFmtpLine(c.SDPFmtpLine)), nil
}

func FromRTPCodecParameters(p webrtc.RTPCodecParameters) (rtcencoder.SDPVideoFormat, error) {
	return FromRTPCodecCapability(p.RTPCodecCapability)
}

// RegisterVideoCodecs registers every format with its own payload type,
// followed by an RTX payload type bound to it through "apt".
// It returns the registered codec parameters, RTX entries excluded.
func RegisterVideoCodecs(
	mediaEngine *webrtc.MediaEngine,
	formats []rtcencoder.SDPVideoFormat,
	firstPayloadType webrtc.PayloadType,
) ([]webrtc.RTPCodecParameters, error) {
	if firstPayloadType < FirstDynamicPayloadType {
		return nil, fmt.Errorf("payload type %d is not dynamic, dynamic ones start from %d", firstPayloadType, FirstDynamicPayloadType)
	}
	if int(firstPayloadType)+2*len(formats) > 128 {
		return nil, fmt.Errorf("%d formats do not fit into the dynamic payload types starting from %d", len(formats), firstPayloadType)
	}

	result := make([]webrtc.RTPCodecParameters, 0, len(formats))
	pt := firstPayloadType
	for _, format := range formats {
		params := webrtc.RTPCodecParameters{
			RTPCodecCapability: ToRTPCodecCapability(format),
			PayloadType:        pt,
		}
		if err := mediaEngine.RegisterCodec(params, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("unable to register %s as payload type %d: %w", format, pt, err)
		}
		result = append(result, params)

		rtx := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeRTX,
				ClockRate:   ClockRate,
				SDPFmtpLine: fmt.Sprintf("apt=%d", pt),
			},
			PayloadType: pt + 1,
		}
		if err := mediaEngine.RegisterCodec(rtx, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("unable to register RTX for payload type %d: %w", pt, err)
		}
		pt += 2
	}
	return result, nil
}
