//go:build with_mediadevices && with_mmal
// +build with_mediadevices,with_mmal

package mediadevices

import (
	"fmt"

	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/mmal"
	"github.com/xaionaro-go/rtcencoder"
)

func mmalEngine() *Engine {
	return &Engine{
		Type: rtcencoder.EncoderTypeMMAL,
		builders: map[rtcencoder.CodecName]builderFactory{
			rtcencoder.CodecNameH264: newMMALBuilder,
		},
	}
}

func newMMALBuilder(settings rtcencoder.CodecSettings) (codec.VideoEncoderBuilder, error) {
	params, err := mmal.NewParams()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize MMAL parameters: %w", err)
	}
	applyBaseParams(&params.BaseParams, settings)
	return &params, nil
}
