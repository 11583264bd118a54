//go:build with_libav && darwin
// +build with_libav,darwin

package libav

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
)

// PlatformFactory exposes VideoToolbox's H264 encoder.
type PlatformFactory struct {
	Engine  *Engine
	Formats []rtcencoder.SDPVideoFormat
}

var _ rtcencoder.VideoEncoderFactory = (*PlatformFactory)(nil)

func NewPlatformFactory(ctx context.Context) (rtcencoder.VideoEncoderFactory, error) {
	e := &Engine{Spec: VideoToolboxSpec}
	if len(e.Codecs()) == 0 {
		return nil, fmt.Errorf("libav is compiled without h264_videotoolbox")
	}
	if !e.IsSupported(ctx, rtcencoder.CodecNameH264, rtcencoder.HardwareContexts{}) {
		return nil, fmt.Errorf("h264_videotoolbox is not usable")
	}
	logger.Debugf(ctx, "VideoToolbox is available")
	return &PlatformFactory{
		Engine: e,
		Formats: []rtcencoder.SDPVideoFormat{
			rtcencoder.CreateH264Format(rtcencoder.H264ProfileConstrainedHigh, rtcencoder.H264Level3_1, "1"),
			rtcencoder.CreateH264Format(rtcencoder.H264ProfileConstrainedBaseline, rtcencoder.H264Level3_1, "1"),
		},
	}, nil
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
