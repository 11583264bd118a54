//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
)

type Engine struct {
	Spec EngineSpec
}

var _ rtcencoder.Engine = (*Engine)(nil)

// Engines returns an engine per EngineSpecs entry that has at least one
// of its encoders compiled into libavcodec.
func Engines(ctx context.Context) []rtcencoder.Engine {
	var result []rtcencoder.Engine
	for _, spec := range EngineSpecs {
		e := &Engine{Spec: spec}
		if len(e.Codecs()) == 0 {
			logger.Debugf(ctx, "libav has no encoders for %s", spec.Type)
			continue
		}
		result = append(result, e)
	}
	return result
}

func (e *Engine) String() string {
	return fmt.Sprintf("libav-%s", e.Spec.Type)
}

func (e *Engine) EncoderType() rtcencoder.EncoderType {
	return e.Spec.Type
}

// Codecs returns only the codecs libavcodec has an encoder for.
func (e *Engine) Codecs() []rtcencoder.CodecName {
	var result []rtcencoder.CodecName
	for _, codec := range e.Spec.Codecs() {
		if c, _ := findEncoder(e.Spec.encoderNames(codec)); c != nil {
			result = append(result, codec)
		}
	}
	return result
}

func (e *Engine) IsSupported(
	ctx context.Context,
	codec rtcencoder.CodecName,
	hw rtcencoder.HardwareContexts,
) bool {
	c, name := findEncoder(e.Spec.encoderNames(codec))
	if c == nil {
		return false
	}
	if err := probeHardwareDevice(ctx, e.Spec.HardwareDeviceTypeName, e.Spec.hardwareDeviceName(hw)); err != nil {
		logger.Debugf(ctx, "encoder '%s' is not usable: %v", name, err)
		return false
	}
	return true
}

func (e *Engine) NewEncoder(
	ctx context.Context,
	format rtcencoder.SDPVideoFormat,
	hw rtcencoder.HardwareContexts,
) (rtcencoder.Encoder, error) {
	c, name := findEncoder(e.Spec.encoderNames(format.Name))
	if c == nil {
		return nil, fmt.Errorf("%w: libav has no %s encoder for %s", rtcencoder.ErrUnsupportedFormat, e.Spec.Type, format.Name)
	}
	return newEncoder(ctx, e, name, format, hw), nil
}
