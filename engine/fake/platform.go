package fake

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtcencoder"
)

// PlatformFactory imitates an OS-provided factory (like VideoToolbox's)
// that advertises its own list of formats.
type PlatformFactory struct {
	Engine  *Engine
	Formats []rtcencoder.SDPVideoFormat
}

var _ rtcencoder.VideoEncoderFactory = (*PlatformFactory)(nil)

func NewPlatformFactory() *PlatformFactory {
	return &PlatformFactory{
		Engine: NewEngine(rtcencoder.EncoderTypeVideoToolbox, rtcencoder.CodecNameH264, rtcencoder.CodecNameVP8),
		Formats: []rtcencoder.SDPVideoFormat{
			rtcencoder.CreateH264Format(rtcencoder.H264ProfileConstrainedHigh, rtcencoder.H264Level3_1, "1"),
			rtcencoder.CreateH264Format(rtcencoder.H264ProfileConstrainedBaseline, rtcencoder.H264Level3_1, "1"),
			rtcencoder.NewSDPVideoFormat(rtcencoder.CodecNameVP8, nil),
		},
	}
}

func (f *PlatformFactory) GetSupportedFormats(context.Context) []rtcencoder.SDPVideoFormat {
	return f.Formats
}

func (f *PlatformFactory) CreateVideoEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
) (rtcencoder.Encoder, error) {
	if !rtcencoder.ContainsFormat(f.Formats, format) {
		return nil, fmt.Errorf("%w: %s", rtcencoder.ErrUnsupportedFormat, format)
	}
	return f.Engine.NewEncoder(ctx, format, rtcencoder.HardwareContexts{})
}
