// Package builtin assembles the engines compiled into the binary.
package builtin

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtcencoder"
	"github.com/xaionaro-go/rtcencoder/engine/libav"
	"github.com/xaionaro-go/rtcencoder/engine/mediadevices"
)

// Engines returns the libav engines followed by the mediadevices ones,
// so a libav engine wins when both implement the same encoder type.
func Engines(ctx context.Context) []rtcencoder.Engine {
	var result []rtcencoder.Engine
	result = append(result, libav.Engines(ctx)...)
	result = append(result, mediadevices.Engines(ctx)...)
	return result
}

func NewRegistry(ctx context.Context) *rtcencoder.Registry {
	engines := Engines(ctx)
	logger.Debugf(ctx, "built-in engines: %v", engines)
	return rtcencoder.NewRegistry(engines...)
}

func NewPlatformFactory(ctx context.Context) (rtcencoder.VideoEncoderFactory, error) {
	return libav.NewPlatformFactory(ctx)
}
