//go:build with_mediadevices
// +build with_mediadevices

package mediadevices

import (
	"context"
	"fmt"

	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/codec/x264"
	"github.com/xaionaro-go/rtcencoder"
)

type builderFactory func(settings rtcencoder.CodecSettings) (codec.VideoEncoderBuilder, error)

type Engine struct {
	Type     rtcencoder.EncoderType
	builders map[rtcencoder.CodecName]builderFactory
}

var _ rtcencoder.Engine = (*Engine)(nil)

func Engines(ctx context.Context) []rtcencoder.Engine {
	result := []rtcencoder.Engine{
		&Engine{
			Type: rtcencoder.EncoderTypeSoftware,
			builders: map[rtcencoder.CodecName]builderFactory{
				rtcencoder.CodecNameVP8:  newVP8Builder,
				rtcencoder.CodecNameVP9:  newVP9Builder,
				rtcencoder.CodecNameH264: newX264Builder,
			},
		},
	}
	if e := mmalEngine(); e != nil {
		result = append(result, e)
	}
	return result
}

func (e *Engine) String() string {
	return fmt.Sprintf("mediadevices-%s", e.Type)
}

func (e *Engine) EncoderType() rtcencoder.EncoderType {
	return e.Type
}

func (e *Engine) Codecs() []rtcencoder.CodecName {
	var result []rtcencoder.CodecName
	for _, codecName := range rtcencoder.KnownCodecNames() {
		if _, ok := e.builders[codecName]; ok {
			result = append(result, codecName)
		}
	}
	return result
}

func (e *Engine) IsSupported(
	ctx context.Context,
	codecName rtcencoder.CodecName,
	hw rtcencoder.HardwareContexts,
) bool {
	_, err := e.newBuilder(codecName, rtcencoder.CodecSettings{})
	return err == nil
}

func (e *Engine) NewEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
	hw rtcencoder.HardwareContexts,
) (rtcencoder.Encoder, error) {
	if _, err := e.newBuilder(format.Name, rtcencoder.CodecSettings{}); err != nil {
		return nil, err
	}
	return newEncoder(ctx, e, format), nil
}

func (e *Engine) newBuilder(
	codecName rtcencoder.CodecName,
	settings rtcencoder.CodecSettings,
) (codec.VideoEncoderBuilder, error) {
	newBuilder, ok := e.builders[codecName.Canonical()]
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot encode %s", rtcencoder.ErrUnsupportedFormat, e, codecName)
	}
	return newBuilder(settings)
}

func bitrateOf(settings rtcencoder.CodecSettings) int {
	if settings.StartBitrate != 0 {
		return int(settings.StartBitrate)
	}
	return int(settings.MaxBitrate)
}

func applyBaseParams(p *codec.BaseParams, settings rtcencoder.CodecSettings) {
	if bitrate := bitrateOf(settings); bitrate > 0 {
		p.BitRate = bitrate
	}
	if settings.KeyFrameInterval > 0 {
		p.KeyFrameInterval = settings.KeyFrameInterval
	}
}

func newVP8Builder(settings rtcencoder.CodecSettings) (codec.VideoEncoderBuilder, error) {
	params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize VP8 parameters: %w", err)
	}
	applyBaseParams(&params.BaseParams, settings)
	return &params, nil
}

func newVP9Builder(settings rtcencoder.CodecSettings) (codec.VideoEncoderBuilder, error) {
	params, err := vpx.NewVP9Params()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize VP9 parameters: %w", err)
	}
	applyBaseParams(&params.BaseParams, settings)
	return &params, nil
}

func newX264Builder(settings rtcencoder.CodecSettings) (codec.VideoEncoderBuilder, error) {
	params, err := x264.NewParams()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize x264 parameters: %w", err)
	}
	params.Preset = x264.PresetVeryfast
	applyBaseParams(&params.BaseParams, settings)
	return &params, nil
}
